package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positioning-analyzer/internal/common/auth"
	apperrors "positioning-analyzer/internal/common/errors"
	"positioning-analyzer/internal/common/logger"
	"positioning-analyzer/internal/models"
	"positioning-analyzer/internal/store"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	sessions map[string]*models.Session
	pages    map[string][]*models.Page
	results  map[string]*models.AnalysisResult
	tokens   map[string]string
	confirms map[string]*models.ConfirmedPositioning
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]*models.Session{},
		pages:    map[string][]*models.Page{},
		results:  map[string]*models.AnalysisResult{},
		tokens:   map[string]string{},
		confirms: map[string]*models.ConfirmedPositioning{},
	}
}

func (f *fakeStore) CreateSession(ctx context.Context, userID, name, companyName string, pages []store.PageInput) (*models.Session, []*models.Page, error) {
	session := &models.Session{
		ID: uuid.New().String(), UserID: userID, Name: name, CompanyName: companyName,
		Status: models.SessionPending, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.sessions[session.ID] = session
	var created []*models.Page
	for _, p := range pages {
		created = append(created, &models.Page{
			ID: uuid.New().String(), SessionID: session.ID, URL: p.URL,
			PageType: p.PageType, Status: models.PagePending,
		})
	}
	f.pages[session.ID] = created
	return session, created, nil
}

func (f *fakeStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return session, nil
}

func (f *fakeStore) ListSessionsByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	var out []*models.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPages(ctx context.Context, sessionID string) ([]*models.Page, error) {
	return f.pages[sessionID], nil
}

func (f *fakeStore) GetResultBySession(ctx context.Context, sessionID string) (*models.AnalysisResult, error) {
	result, ok := f.results[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return result, nil
}

func (f *fakeStore) SaveConfirmedPositioning(ctx context.Context, cp *models.ConfirmedPositioning) error {
	f.confirms[cp.SessionID] = cp
	return nil
}

func (f *fakeStore) CreateShareToken(ctx context.Context, sessionID, token string) error {
	f.tokens[token] = sessionID
	return nil
}

func (f *fakeStore) ResolveShareToken(ctx context.Context, token string) (string, error) {
	sessionID, ok := f.tokens[token]
	if !ok {
		return "", store.ErrNotFound
	}
	return sessionID, nil
}

type fakeRunner struct {
	err     error
	started []string
}

func (f *fakeRunner) Start(ctx context.Context, sessionID, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, sessionID)
	return nil
}

type fakeAuth struct{}

func (fakeAuth) Authenticate(ctx context.Context, token string) (*auth.Principal, error) {
	switch token {
	case "alice-token":
		return &auth.Principal{UserID: "alice", Email: "alice@example.com"}, nil
	case "bob-token":
		return &auth.Principal{UserID: "bob", Email: "bob@example.com"}, nil
	}
	return nil, auth.ErrInvalidToken
}

type fixture struct {
	store  *fakeStore
	runner *fakeRunner
	srv    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newFakeStore()
	runner := &fakeRunner{}
	s := New(st, runner, fakeAuth{}, nil, 10, logger.NewNop())
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &fixture{store: st, runner: runner, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (f *fixture) seedSession(userID string, status models.SessionStatus) *models.Session {
	session := &models.Session{
		ID: uuid.New().String(), UserID: userID, CompanyName: "Acme", Status: status,
	}
	f.store.sessions[session.ID] = session
	return session
}

func TestAuth_MissingToken(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/extractions", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/extractions", "alice-token", map[string]interface{}{
		"company_name": "Acme",
		"urls": []map[string]string{
			{"url": "https://acme.io", "page_type": "homepage"},
			{"url": "https://acme.io/pricing", "page_type": "pricing"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body sessionResponse
	decode(t, resp, &body)
	assert.Equal(t, "Acme", body.Session.CompanyName)
	assert.Equal(t, models.SessionPending, body.Session.Status)
	// Blank name is auto-generated from company and date.
	assert.Contains(t, body.Session.Name, "Acme - ")
	require.Len(t, body.Pages, 2)
}

func TestCreateSession_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing company", map[string]interface{}{
			"urls": []map[string]string{{"url": "https://acme.io"}},
		}},
		{"no urls", map[string]interface{}{"company_name": "Acme", "urls": []map[string]string{}}},
		{"bad scheme", map[string]interface{}{
			"company_name": "Acme",
			"urls":         []map[string]string{{"url": "ftp://acme.io"}},
		}},
		{"not a url", map[string]interface{}{
			"company_name": "Acme",
			"urls":         []map[string]string{{"url": "not a url"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/extractions", "alice-token", tt.body)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCreateSession_TooManyURLs(t *testing.T) {
	f := newFixture(t)
	urls := make([]map[string]string, 11)
	for i := range urls {
		urls[i] = map[string]string{"url": "https://acme.io"}
	}
	resp := f.do(t, http.MethodPost, "/api/extractions", "alice-token", map[string]interface{}{
		"company_name": "Acme", "urls": urls,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSession_UnownedReportsNotFound(t *testing.T) {
	f := newFixture(t)
	session := f.seedSession("alice", models.SessionPending)

	resp := f.do(t, http.MethodGet, "/api/extractions/"+session.ID, "bob-token", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRun_Accepted(t *testing.T) {
	f := newFixture(t)
	session := f.seedSession("alice", models.SessionPending)

	resp := f.do(t, http.MethodPost, "/api/extractions/"+session.ID+"/run", "alice-token", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{session.ID}, f.runner.started)
}

func TestRun_StateConflict(t *testing.T) {
	f := newFixture(t)
	session := f.seedSession("alice", models.SessionProcessing)
	f.runner.err = apperrors.NewSessionStateConflictError(session.ID, "processing")

	resp := f.do(t, http.MethodPost, "/api/extractions/"+session.ID+"/run", "alice-token", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestResults_NotFoundUntilPresent(t *testing.T) {
	f := newFixture(t)
	session := f.seedSession("alice", models.SessionProcessing)

	resp := f.do(t, http.MethodGet, "/api/extractions/"+session.ID+"/results", "alice-token", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.store.results[session.ID] = &models.AnalysisResult{
		SessionID: session.ID,
		Synthesis: &models.SynthesisResult{PositioningStatement: "Acme leads."},
	}

	resp = f.do(t, http.MethodGet, "/api/extractions/"+session.ID+"/results", "alice-token", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result models.AnalysisResult
	decode(t, resp, &result)
	assert.Equal(t, "Acme leads.", result.Synthesis.PositioningStatement)
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	session := f.seedSession("alice", models.SessionComplete)

	resp := f.do(t, http.MethodPost, "/api/extractions/"+session.ID+"/confirm", "alice-token", map[string]interface{}{
		"positioning_statement": "Acme is the fastest deploy platform.",
		"category":              "deployment",
		"proof_points":          []string{"99.99% uptime"},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	saved := f.store.confirms[session.ID]
	require.NotNil(t, saved)
	assert.Equal(t, "Acme is the fastest deploy platform.", saved.PositioningStatement)
}

func TestShare_RequiresCompleteSession(t *testing.T) {
	f := newFixture(t)
	session := f.seedSession("alice", models.SessionProcessing)

	resp := f.do(t, http.MethodPost, "/api/extractions/"+session.ID+"/share", "alice-token", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestShare_PublicRead(t *testing.T) {
	f := newFixture(t)
	session := f.seedSession("alice", models.SessionComplete)
	f.store.results[session.ID] = &models.AnalysisResult{
		SessionID: session.ID,
		Synthesis: &models.SynthesisResult{PositioningStatement: "Acme leads."},
	}

	resp := f.do(t, http.MethodPost, "/api/extractions/"+session.ID+"/share", "alice-token", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var issued map[string]string
	decode(t, resp, &issued)
	require.Len(t, issued["token"], 32)

	// The share read needs no auth header.
	resp = f.do(t, http.MethodGet, "/api/share/"+issued["token"], "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		CompanyName string                 `json:"company_name"`
		Result      *models.AnalysisResult `json:"result"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "Acme", body.CompanyName)
	assert.Equal(t, "Acme leads.", body.Result.Synthesis.PositioningStatement)
}

func TestShareRead_MalformedToken(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/share/not-a-token", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRun_UnknownSession(t *testing.T) {
	f := newFixture(t)
	f.runner.err = apperrors.NewSessionNotFoundError("missing")

	resp := f.do(t, http.MethodPost, "/api/extractions/missing/run", "alice-token", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
