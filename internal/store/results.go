package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"positioning-analyzer/internal/models"
)

// UpsertResult writes the analysis result for a session, replacing any
// earlier one. Gaps may be nil and are stored as NULL.
func (s *Store) UpsertResult(ctx context.Context, result *models.AnalysisResult) error {
	synthesis, err := json.Marshal(result.Synthesis)
	if err != nil {
		return fmt.Errorf("encode synthesis: %w", err)
	}
	bank, err := json.Marshal(result.EvidenceBank)
	if err != nil {
		return fmt.Errorf("encode evidence bank: %w", err)
	}
	var gaps interface{}
	if result.Gaps != nil {
		data, err := json.Marshal(result.Gaps)
		if err != nil {
			return fmt.Errorf("encode gaps: %w", err)
		}
		gaps = data
	}

	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_results (id, session_id, synthesis, evidence_bank, gaps, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (session_id) DO UPDATE
		 SET synthesis = EXCLUDED.synthesis,
		     evidence_bank = EXCLUDED.evidence_bank,
		     gaps = EXCLUDED.gaps,
		     updated_at = EXCLUDED.updated_at`,
		result.ID, result.SessionID, synthesis, bank, gaps, now,
	)
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

// GetResultBySession fetches the stored analysis for a session.
func (s *Store) GetResultBySession(ctx context.Context, sessionID string) (*models.AnalysisResult, error) {
	var (
		result    models.AnalysisResult
		synthesis []byte
		bank      []byte
		gaps      []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, synthesis, evidence_bank, gaps, created_at, updated_at
		 FROM analysis_results WHERE session_id = $1`,
		sessionID,
	).Scan(&result.ID, &result.SessionID, &synthesis, &bank, &gaps,
		&result.CreatedAt, &result.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	if err := json.Unmarshal(synthesis, &result.Synthesis); err != nil {
		return nil, fmt.Errorf("decode synthesis: %w", err)
	}
	if err := json.Unmarshal(bank, &result.EvidenceBank); err != nil {
		return nil, fmt.Errorf("decode evidence bank: %w", err)
	}
	if len(gaps) > 0 {
		if err := json.Unmarshal(gaps, &result.Gaps); err != nil {
			return nil, fmt.Errorf("decode gaps: %w", err)
		}
	}
	return &result, nil
}

// SaveConfirmedPositioning upserts the user-edited positioning for a session.
func (s *Store) SaveConfirmedPositioning(ctx context.Context, cp *models.ConfirmedPositioning) error {
	proofPoints, err := json.Marshal(cp.ProofPoints)
	if err != nil {
		return fmt.Errorf("encode proof points: %w", err)
	}
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.ConfirmedAt.IsZero() {
		cp.ConfirmedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO confirmed_positioning
		   (id, session_id, positioning_statement, category, primary_value_prop, target_persona, key_differentiator, proof_points, confirmed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (session_id) DO UPDATE
		 SET positioning_statement = EXCLUDED.positioning_statement,
		     category = EXCLUDED.category,
		     primary_value_prop = EXCLUDED.primary_value_prop,
		     target_persona = EXCLUDED.target_persona,
		     key_differentiator = EXCLUDED.key_differentiator,
		     proof_points = EXCLUDED.proof_points,
		     confirmed_at = EXCLUDED.confirmed_at`,
		cp.ID, cp.SessionID, cp.PositioningStatement, cp.Category, cp.PrimaryValueProp,
		cp.TargetPersona, cp.KeyDifferentiator, proofPoints, cp.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("save confirmed positioning: %w", err)
	}
	return nil
}

// GetConfirmedPositioning fetches the confirmed positioning for a session.
func (s *Store) GetConfirmedPositioning(ctx context.Context, sessionID string) (*models.ConfirmedPositioning, error) {
	var (
		cp          models.ConfirmedPositioning
		proofPoints []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, positioning_statement, category, primary_value_prop, target_persona, key_differentiator, proof_points, confirmed_at
		 FROM confirmed_positioning WHERE session_id = $1`,
		sessionID,
	).Scan(&cp.ID, &cp.SessionID, &cp.PositioningStatement, &cp.Category,
		&cp.PrimaryValueProp, &cp.TargetPersona, &cp.KeyDifferentiator,
		&proofPoints, &cp.ConfirmedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get confirmed positioning: %w", err)
	}
	if err := json.Unmarshal(proofPoints, &cp.ProofPoints); err != nil {
		return nil, fmt.Errorf("decode proof points: %w", err)
	}
	return &cp, nil
}

// CreateShareToken stores a share token pointing at a session.
func (s *Store) CreateShareToken(ctx context.Context, sessionID, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO share_tokens (token, session_id, created_at) VALUES ($1, $2, $3)`,
		token, sessionID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("create share token: %w", err)
	}
	return nil
}

// ResolveShareToken returns the session a share token points at.
func (s *Store) ResolveShareToken(ctx context.Context, token string) (string, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id FROM share_tokens WHERE token = $1`,
		token,
	).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve share token: %w", err)
	}
	return sessionID, nil
}
