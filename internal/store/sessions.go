package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"positioning-analyzer/internal/models"
)

// PageInput is one URL requested for a new session, in submission order.
type PageInput struct {
	URL      string
	PageType string
}

// CreateSession inserts the session and its pages in one transaction. Page
// positions follow the submission order and never change afterwards.
func (s *Store) CreateSession(ctx context.Context, userID, name, companyName string, pages []PageInput) (*models.Session, []*models.Page, error) {
	now := time.Now().UTC()
	session := &models.Session{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		CompanyName: companyName,
		Status:      models.SessionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, name, company_name, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.UserID, session.Name, session.CompanyName, session.Status,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert session: %w", err)
	}

	created := make([]*models.Page, 0, len(pages))
	for i, p := range pages {
		page := &models.Page{
			ID:        uuid.New().String(),
			SessionID: session.ID,
			URL:       p.URL,
			PageType:  p.PageType,
			Status:    models.PagePending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_pages (id, session_id, position, url, page_type, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			page.ID, page.SessionID, i, page.URL, page.PageType, page.Status,
			page.CreatedAt, page.UpdatedAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("insert page %d: %w", i, err)
		}
		created = append(created, page)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return session, created, nil
}

// GetSession fetches one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, company_name, status, created_at, updated_at
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(&session.ID, &session.UserID, &session.Name, &session.CompanyName,
		&session.Status, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// ListSessionsByUser returns the user's sessions, most recent first.
func (s *Store) ListSessionsByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, company_name, status, created_at, updated_at
		 FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(&session.ID, &session.UserID, &session.Name, &session.CompanyName,
			&session.Status, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// TransitionSession moves a session from one status to another only if it is
// still in the expected status. The conditional update is the single
// concurrency-control point: two concurrent starts race on the same row and
// exactly one sees an affected row.
func (s *Store) TransitionSession(ctx context.Context, id string, from, to models.SessionStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now().UTC(), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition session: %w", err)
	}
	return n == 1, nil
}

// SetSessionStatus writes a status unconditionally. Used for terminal
// transitions from the single goroutine that owns the running session.
func (s *Store) SetSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	return nil
}

// FailStaleSessions force-fails sessions stuck in processing since before the
// cutoff. Covers crashes that orphaned a run mid-flight.
func (s *Store) FailStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = $1, updated_at = $2
		 WHERE status = $3 AND updated_at < $4`,
		models.SessionFailed, time.Now().UTC(), models.SessionProcessing, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale sessions: %w", err)
	}
	return res.RowsAffected()
}
