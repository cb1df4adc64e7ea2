package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positioning-analyzer/internal/common/logger"
	"positioning-analyzer/internal/models"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, logger.NewNop()), mock
}

func TestTransitionSession_Wins(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE sessions SET status = \$1, updated_at = \$2 WHERE id = \$3 AND status = \$4`).
		WithArgs(models.SessionProcessing, sqlmock.AnyArg(), "sess-1", models.SessionPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.TransitionSession(context.Background(), "sess-1", models.SessionPending, models.SessionProcessing)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionSession_LosesRace(t *testing.T) {
	s, mock := newTestStore(t)

	// Another caller already moved the session out of pending.
	mock.ExpectExec(`UPDATE sessions SET status = \$1, updated_at = \$2 WHERE id = \$3 AND status = \$4`).
		WithArgs(models.SessionProcessing, sqlmock.AnyArg(), "sess-1", models.SessionPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.TransitionSession(context.Background(), "sess-1", models.SessionPending, models.SessionProcessing)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSession_InsertsSessionAndPagesInOrder(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs(sqlmock.AnyArg(), "user-1", "Q3 review", "Acme", models.SessionPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO session_pages`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 0, "https://acme.io", "homepage", models.PagePending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO session_pages`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1, "https://acme.io/pricing", "pricing", models.PagePending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	session, pages, err := s.CreateSession(context.Background(), "user-1", "Q3 review", "Acme", []PageInput{
		{URL: "https://acme.io", PageType: "homepage"},
		{URL: "https://acme.io/pricing", PageType: "pricing"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.SessionPending, session.Status)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://acme.io", pages[0].URL)
	assert.Equal(t, "https://acme.io/pricing", pages[1].URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSession_NotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id, user_id, name, company_name, status, created_at, updated_at`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPages_DecodesAnnotation(t *testing.T) {
	s, mock := newTestStore(t)

	annotation, err := json.Marshal(&models.PageAnnotation{
		Headlines: []models.Headline{{Text: "Ship faster", Level: "h1", EmphasisScore: 10}},
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "session_id", "url", "page_type", "raw_markdown", "annotation",
		"status", "error_message", "created_at", "updated_at",
	}).
		AddRow("page-1", "sess-1", "https://acme.io", "homepage", "# Ship faster", annotation,
			models.PageComplete, "", now, now).
		AddRow("page-2", "sess-1", "https://acme.io/pricing", "pricing", nil, nil,
			models.PageFailed, "fetch failed", now, now)

	mock.ExpectQuery(`FROM session_pages WHERE session_id = \$1 ORDER BY position`).
		WithArgs("sess-1").
		WillReturnRows(rows)

	pages, err := s.ListPages(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, pages, 2)

	require.NotNil(t, pages[0].Annotation)
	require.Len(t, pages[0].Annotation.Headlines, 1)
	assert.Equal(t, "Ship faster", pages[0].Annotation.Headlines[0].Text)
	assert.Equal(t, "# Ship faster", pages[0].RawMarkdown)

	assert.Nil(t, pages[1].Annotation)
	assert.Empty(t, pages[1].RawMarkdown)
	assert.Equal(t, "fetch failed", pages[1].ErrorMessage)
}

func TestUpsertResult_NilGapsStoredAsNull(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO analysis_results`).
		WithArgs(sqlmock.AnyArg(), "sess-1", sqlmock.AnyArg(), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertResult(context.Background(), &models.AnalysisResult{
		SessionID:    "sess-1",
		Synthesis:    &models.SynthesisResult{PositioningStatement: "Acme is the fastest."},
		EvidenceBank: &models.EvidenceBank{},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetResultBySession_RoundTrip(t *testing.T) {
	s, mock := newTestStore(t)

	synthesis, _ := json.Marshal(&models.SynthesisResult{PositioningStatement: "Acme leads."})
	bank, _ := json.Marshal(&models.EvidenceBank{
		Quotes: []models.Quote{{ID: "Q1", Text: "fastest deploys", PageURL: "https://acme.io"}},
	})

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM analysis_results WHERE session_id = \$1`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "session_id", "synthesis", "evidence_bank", "gaps", "created_at", "updated_at",
		}).AddRow("res-1", "sess-1", synthesis, bank, nil, now, now))

	result, err := s.GetResultBySession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme leads.", result.Synthesis.PositioningStatement)
	require.Len(t, result.EvidenceBank.Quotes, 1)
	assert.Equal(t, "Q1", result.EvidenceBank.Quotes[0].ID)
	assert.Nil(t, result.Gaps)
}

func TestFailStaleSessions(t *testing.T) {
	s, mock := newTestStore(t)

	cutoff := time.Now().Add(-30 * time.Minute)
	mock.ExpectExec(`UPDATE sessions SET status = \$1, updated_at = \$2`).
		WithArgs(models.SessionFailed, sqlmock.AnyArg(), models.SessionProcessing, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.FailStaleSessions(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestResolveShareToken_NotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT session_id FROM share_tokens`).
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"session_id"}))

	_, err := s.ResolveShareToken(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)
}
