package analyzegaps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "positioning-analyzer/internal/common/errors"
	"positioning-analyzer/internal/common/logger"
	"positioning-analyzer/internal/models"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testInput() *Input {
	return &Input{
		Synthesis: &models.SynthesisResult{PositioningStatement: "Acme is fastest."},
		Bank: &models.EvidenceBank{
			Quotes: []models.Quote{
				{ID: "Q1", Text: "fastest deploys", StructuralContext: "h1"},
			},
			StatisticalClaims: []models.StatClaim{{ID: "S1", Claim: "99.99% uptime"}},
		},
	}
}

func run(t *testing.T, response string) *models.GapAnalysisResult {
	t.Helper()
	h := NewHandler(DefaultConfig(), &fakeGenerator{response: response}, logger.NewNop())
	result, err := h.Execute(context.Background(), testInput())
	require.NoError(t, err)
	return result
}

func TestExecute_QuickWinsSortFirst(t *testing.T) {
	result := run(t, `{
		"specificity_score": 40,
		"actionable_recommendations": [
			{"priority": 1, "category": "structural_change", "recommendation": "rewrite h1"},
			{"priority": 3, "category": "quick_win", "recommendation": "add stat to hero"},
			{"priority": 2, "category": "proof_needed", "recommendation": "add case study"},
			{"priority": 1, "category": "quick_win", "recommendation": "name the audience"}
		]
	}`)

	recs := result.ActionableRecommendations
	require.Len(t, recs, 4)
	assert.Equal(t, "name the audience", recs[0].Recommendation)
	assert.Equal(t, "add stat to hero", recs[1].Recommendation)
	assert.Equal(t, "rewrite h1", recs[2].Recommendation)
	assert.Equal(t, "add case study", recs[3].Recommendation)
}

func TestExecute_SeverityFloorByStructuralLevel(t *testing.T) {
	result := run(t, `{
		"so_what_gaps": [
			{"claim": "vague h1", "structural_level": "h1", "severity": "low"},
			{"claim": "vague h2", "structural_level": "h2"},
			{"claim": "vague h3", "structural_level": "h3", "severity": "critical"},
			{"claim": "vague body", "structural_level": "body"}
		]
	}`)

	gaps := result.SoWhatGaps
	require.Len(t, gaps, 4)
	assert.Equal(t, models.SeverityCritical, gaps[0].Severity)
	assert.Equal(t, models.SeverityHigh, gaps[1].Severity)
	// Above the floor stays as rated.
	assert.Equal(t, models.SeverityCritical, gaps[2].Severity)
	assert.Equal(t, models.SeverityLow, gaps[3].Severity)
}

func TestExecute_ScrubsDanglingCitations(t *testing.T) {
	result := run(t, `{
		"executive_summary": {
			"ten_second_takeaway": "fast but vague",
			"three_key_strengths": [{"strength": "speed", "evidence": ["Q1", "Q9"]}],
			"three_key_weaknesses": [{"weakness": "no proof", "evidence": ["S1", "S2"], "severity": "high"}]
		},
		"so_what_gaps": [{"claim": "c", "missing_context": "m", "evidence_id": "Q44"}],
		"critical_observations": [
			{"observation": "o", "severity": "high", "evidence_ids": ["Q1", "CV3"], "category": "proof"}
		],
		"proof_points": [{"claim": "p", "proof_type": "statistic", "verdict": "strong", "evidence_id": "S1"}],
		"actionable_recommendations": [
			{"priority": 1, "category": "quick_win", "recommendation": "r", "evidence_ids": ["Q1", "Q2"]}
		]
	}`)

	assert.Equal(t, []string{"Q1"}, result.ExecutiveSummary.ThreeKeyStrengths[0].Evidence)
	assert.Equal(t, []string{"S1"}, result.ExecutiveSummary.ThreeKeyWeaknesses[0].Evidence)
	assert.Empty(t, result.SoWhatGaps[0].EvidenceID)
	assert.Equal(t, []string{"Q1"}, result.CriticalObservations[0].EvidenceIDs)
	assert.Equal(t, "S1", result.ProofPoints[0].EvidenceID)
	assert.Equal(t, []string{"Q1"}, result.ActionableRecommendations[0].EvidenceIDs)
}

func TestExecute_Defaults(t *testing.T) {
	result := run(t, `{
		"specificity_score": 130,
		"proof_score": -5,
		"executive_summary": {"ten_second_takeaway": "fast"},
		"critical_observations": [{"observation": "o", "category": "proof"}],
		"actionable_recommendations": [{"priority": 9, "category": "content_gap", "recommendation": "r"}]
	}`)

	assert.Equal(t, models.DifferentiationGeneric, result.DifferentiationStrength)
	assert.Equal(t, 100, result.SpecificityScore)
	assert.Equal(t, 0, result.ProofScore)
	assert.Equal(t, models.SeverityMedium, result.CriticalObservations[0].Severity)
	assert.Equal(t, 5, result.ActionableRecommendations[0].Priority)
	assert.Equal(t, "fast", result.TenSecondTakeaway)
	assert.NotNil(t, result.UnsubstantiatedClaims)
}

func TestExecute_GeneratorError(t *testing.T) {
	h := NewHandler(DefaultConfig(), &fakeGenerator{err: errors.New("down")}, logger.NewNop())
	_, err := h.Execute(context.Background(), testInput())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeGapAnalysisFailed, apperrors.CodeOf(err))
}

func TestExecute_UndecodableResponse(t *testing.T) {
	h := NewHandler(DefaultConfig(), &fakeGenerator{response: "sorry"}, logger.NewNop())
	_, err := h.Execute(context.Background(), testInput())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeGapAnalysisFailed, apperrors.CodeOf(err))
}
