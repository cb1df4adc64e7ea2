package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"positioning-analyzer/internal/models"
	"positioning-analyzer/internal/sharing"
	"positioning-analyzer/internal/store"
)

type createSessionRequest struct {
	CompanyName string `json:"company_name"`
	Name        string `json:"name"`
	URLs        []struct {
		URL      string `json:"url"`
		PageType string `json:"page_type"`
	} `json:"urls"`
}

type sessionResponse struct {
	Session *models.Session `json:"session"`
	Pages   []*models.Page  `json:"pages"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}
	if req.CompanyName == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "company_name is required")
		return
	}
	if len(req.URLs) == 0 || len(req.URLs) > s.maxURLs {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST",
			fmt.Sprintf("between 1 and %d urls required", s.maxURLs))
		return
	}

	inputs := make([]store.PageInput, 0, len(req.URLs))
	for _, u := range req.URLs {
		parsed, err := url.Parse(u.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST",
				fmt.Sprintf("invalid url: %s", u.URL))
			return
		}
		inputs = append(inputs, store.PageInput{URL: u.URL, PageType: u.PageType})
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s - %s", req.CompanyName, time.Now().UTC().Format("2006-01-02"))
	}

	session, pages, err := s.store.CreateSession(r.Context(), principal.UserID, name, req.CompanyName, inputs)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sessionResponse{Session: session, Pages: pages})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	sessions, err := s.store.ListSessionsByUser(r.Context(), principal.UserID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// loadOwnedSession fetches the session and enforces ownership. Unowned is
// reported as not found so session ids stay unguessable across principals.
func (s *Server) loadOwnedSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	principal := principalFrom(r)
	session, err := s.store.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAppError(w, err)
		return nil, false
	}
	if session.UserID != principal.UserID {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return nil, false
	}
	return session, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadOwnedSession(w, r)
	if !ok {
		return
	}
	pages, err := s.store.ListPages(r.Context(), session.ID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{Session: session, Pages: pages})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if err := s.runner.Start(r.Context(), chi.URLParam(r, "id"), principal.UserID); err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": string(models.SessionProcessing)})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadOwnedSession(w, r)
	if !ok {
		return
	}
	result, err := s.store.GetResultBySession(r.Context(), session.ID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type confirmRequest struct {
	PositioningStatement string   `json:"positioning_statement"`
	Category             string   `json:"category"`
	PrimaryValueProp     string   `json:"primary_value_prop"`
	TargetPersona        string   `json:"target_persona"`
	KeyDifferentiator    string   `json:"key_differentiator"`
	ProofPoints          []string `json:"proof_points"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadOwnedSession(w, r)
	if !ok {
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body")
		return
	}
	if req.ProofPoints == nil {
		req.ProofPoints = []string{}
	}

	cp := &models.ConfirmedPositioning{
		SessionID:            session.ID,
		PositioningStatement: req.PositioningStatement,
		Category:             req.Category,
		PrimaryValueProp:     req.PrimaryValueProp,
		TargetPersona:        req.TargetPersona,
		KeyDifferentiator:    req.KeyDifferentiator,
		ProofPoints:          req.ProofPoints,
	}
	if err := s.store.SaveConfirmedPositioning(r.Context(), cp); err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadOwnedSession(w, r)
	if !ok {
		return
	}
	if session.Status != models.SessionComplete {
		s.writeError(w, http.StatusConflict, "SESSION_STATE_CONFLICT", "only complete sessions can be shared")
		return
	}

	token, err := sharing.NewToken()
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if err := s.store.CreateShareToken(r.Context(), session.ID, token); err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{
		"token": token,
		"path":  "/api/share/" + token,
	})
}

func (s *Server) handleShareRead(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if !sharing.Valid(token) {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}

	sessionID, err := s.store.ResolveShareToken(r.Context(), token)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	session, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	result, err := s.store.GetResultBySession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
			return
		}
		s.writeAppError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"company_name": session.CompanyName,
		"result":       result,
	})
}
