// Package server exposes the HTTP API: session CRUD, the guarded run
// trigger, the polling surface, results, confirmation and public sharing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"positioning-analyzer/internal/common/auth"
	apperrors "positioning-analyzer/internal/common/errors"
	"positioning-analyzer/internal/common/logger"
	"positioning-analyzer/internal/models"
	"positioning-analyzer/internal/store"
)

// Store is the persistence surface the API needs; *store.Store satisfies it.
type Store interface {
	CreateSession(ctx context.Context, userID, name, companyName string, pages []store.PageInput) (*models.Session, []*models.Page, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]*models.Session, error)
	ListPages(ctx context.Context, sessionID string) ([]*models.Page, error)
	GetResultBySession(ctx context.Context, sessionID string) (*models.AnalysisResult, error)
	SaveConfirmedPositioning(ctx context.Context, cp *models.ConfirmedPositioning) error
	CreateShareToken(ctx context.Context, sessionID, token string) error
	ResolveShareToken(ctx context.Context, token string) (string, error)
}

// RunStarter triggers analysis runs; *pipeline.Runner satisfies it.
type RunStarter interface {
	Start(ctx context.Context, sessionID, userID string) error
}

// Pinger reports backend liveness for the health endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	store   Store
	runner  RunStarter
	auth    auth.Authenticator
	db      Pinger
	maxURLs int
	logger  logger.Logger
}

func New(st Store, runner RunStarter, authn auth.Authenticator, db Pinger, maxURLs int, log logger.Logger) *Server {
	if maxURLs <= 0 {
		maxURLs = 10
	}
	return &Server{
		store:   st,
		runner:  runner,
		auth:    authn,
		db:      db,
		maxURLs: maxURLs,
		logger:  log.With(map[string]interface{}{"component": "server"}),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Share reads are the one public surface; the token is the capability.
		r.Get("/share/{token}", s.handleShareRead)

		r.Route("/extractions", func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/", s.handleCreateSession)
			r.Get("/", s.handleListSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Post("/run", s.handleRun)
				r.Get("/results", s.handleResults)
				r.Post("/confirm", s.handleConfirm)
				r.Post("/share", s.handleShare)
			})
		})
	})

	return r
}

type contextKey string

const principalKey contextKey = "principal"

// authenticate resolves the bearer token and stores the principal on the
// request context. No token or an unknown token is a 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromHeader(r.Header.Get("Authorization"))
		principal, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing token")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(r *http.Request) *auth.Principal {
	p, _ := r.Context().Value(principalKey).(*auth.Principal)
	return p
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, "UNHEALTHY", "database unreachable")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- response helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	s.writeJSON(w, status, body)
}

// writeAppError maps a pipeline/store error onto the HTTP surface.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		s.writeError(w, apperrors.HTTPStatus(err), string(stdErr.Code), stdErr.Message)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	s.logger.Error("request failed", map[string]interface{}{"error": err.Error()})
	s.writeError(w, http.StatusInternalServerError, string(apperrors.ErrCodeInternal), "internal error")
}
