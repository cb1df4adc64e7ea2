// Package pipeline orchestrates an analysis run across the stages: fetch
// every page, annotate it, build the evidence bank, synthesize positioning,
// analyze gaps, persist the result. One goroutine owns one running session;
// the guarded start transition is the only cross-goroutine contention point.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "positioning-analyzer/internal/common/errors"
	"positioning-analyzer/internal/common/logger"
	"positioning-analyzer/internal/common/metrics"
	"positioning-analyzer/internal/common/observability"
	analyzegaps "positioning-analyzer/internal/stages/analyze-gaps"
	synthesizepositioning "positioning-analyzer/internal/stages/synthesize-positioning"
	"positioning-analyzer/internal/models"
)

// SessionStore is the session persistence the runner needs.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	TransitionSession(ctx context.Context, id string, from, to models.SessionStatus) (bool, error)
	SetSessionStatus(ctx context.Context, id string, status models.SessionStatus) error
}

// PageStore persists per-page progress.
type PageStore interface {
	ListPages(ctx context.Context, sessionID string) ([]*models.Page, error)
	SetPageStatus(ctx context.Context, pageID string, status models.PageStatus) error
	SavePageContent(ctx context.Context, pageID, markdown string) error
	SavePageAnnotation(ctx context.Context, pageID string, annotation *models.PageAnnotation) error
	FailPage(ctx context.Context, pageID, message string) error
}

// ResultStore persists the final analysis.
type ResultStore interface {
	UpsertResult(ctx context.Context, result *models.AnalysisResult) error
}

// Stage capabilities, one per pipeline phase.
type (
	ContentFetcher interface {
		Execute(ctx context.Context, url string) (string, error)
	}
	PageAnnotator interface {
		Execute(ctx context.Context, pageURL, markdown string) (*models.PageAnnotation, error)
	}
	EvidenceBuilder interface {
		Execute(ctx context.Context, pages []*models.Page) (*models.EvidenceBank, error)
	}
	PositioningSynthesizer interface {
		Execute(ctx context.Context, input *synthesizepositioning.Input) (*models.SynthesisResult, error)
	}
	GapAnalyzer interface {
		Execute(ctx context.Context, input *analyzegaps.Input) (*models.GapAnalysisResult, error)
	}
)

// Runner drives analysis runs. Safe for concurrent Start calls; the
// conditional status transition guarantees at most one run per session.
type Runner struct {
	sessions SessionStore
	pages    PageStore
	results  ResultStore

	fetcher     ContentFetcher
	annotator   PageAnnotator
	builder     EvidenceBuilder
	synthesizer PositioningSynthesizer
	gapAnalyzer GapAnalyzer

	obs    *observability.Observability
	logger logger.Logger
	wg     sync.WaitGroup
}

type RunnerDeps struct {
	Sessions SessionStore
	Pages    PageStore
	Results  ResultStore

	Fetcher     ContentFetcher
	Annotator   PageAnnotator
	Builder     EvidenceBuilder
	Synthesizer PositioningSynthesizer
	GapAnalyzer GapAnalyzer

	Observability *observability.Observability
}

func NewRunner(deps RunnerDeps, log logger.Logger) *Runner {
	return &Runner{
		sessions:    deps.Sessions,
		pages:       deps.Pages,
		results:     deps.Results,
		fetcher:     deps.Fetcher,
		annotator:   deps.Annotator,
		builder:     deps.Builder,
		synthesizer: deps.Synthesizer,
		gapAnalyzer: deps.GapAnalyzer,
		obs:         deps.Observability,
		logger:      log.With(map[string]interface{}{"component": "pipeline"}),
	}
}

// Start begins an analysis run for the session. It validates ownership,
// claims the session with a pending -> processing transition, spawns the
// run goroutine and returns. Rejections happen before any side effect.
func (r *Runner) Start(ctx context.Context, sessionID, userID string) error {
	session, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return apperrors.NewSessionNotFoundError(sessionID)
	}
	if session.UserID != userID {
		return apperrors.NewSessionNotOwnedError(sessionID)
	}

	claimed, err := r.sessions.TransitionSession(ctx, sessionID, models.SessionPending, models.SessionProcessing)
	if err != nil {
		return err
	}
	if !claimed {
		return apperrors.NewSessionStateConflictError(sessionID, string(session.Status))
	}

	metrics.SessionsActive.Inc()
	r.wg.Add(1)
	go r.run(sessionID)

	return nil
}

// Wait blocks until every in-flight run finishes. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// run executes the whole pipeline for one claimed session. It is the
// outermost failure boundary: any panic or error below lands the session
// in failed, never in a stuck processing state.
func (r *Runner) run(sessionID string) {
	// Detached from the request context: the caller polls for progress.
	ctx := context.Background()
	start := time.Now()
	log := r.logger.With(map[string]interface{}{"session_id": sessionID})

	status := models.SessionFailed
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("run panicked", map[string]interface{}{"panic": fmt.Sprint(rec)})
			status = models.SessionFailed
		}
		if err := r.sessions.SetSessionStatus(ctx, sessionID, status); err != nil {
			log.Error("failed to record terminal status", map[string]interface{}{"error": err.Error()})
		}
		metrics.SessionsActive.Dec()
		metrics.SessionsCompleted.WithLabelValues(string(status)).Inc()
		if r.obs != nil {
			r.obs.RecordRun(ctx, string(status))
			r.obs.RecordRunDuration(ctx, time.Since(start), string(status))
		}
		log.Info("run finished", map[string]interface{}{
			"status":   string(status),
			"duration": time.Since(start).String(),
		})
		r.wg.Done()
	}()

	pages, err := r.pages.ListPages(ctx, sessionID)
	if err != nil {
		log.Error("failed to load pages", map[string]interface{}{"error": err.Error()})
		return
	}

	completed := r.processPages(ctx, pages, log)
	if len(completed) == 0 {
		log.Error("no page completed; aborting run", nil)
		return
	}

	bank, err := r.builder.Execute(ctx, completed)
	if err != nil {
		log.Error("evidence build failed", map[string]interface{}{"error": err.Error()})
		return
	}

	synthesis, err := r.synthesizer.Execute(ctx, &synthesizepositioning.Input{Pages: completed, Bank: bank})
	if err != nil {
		log.Error("synthesis failed", map[string]interface{}{"error": err.Error()})
		return
	}

	result := &models.AnalysisResult{
		SessionID:    sessionID,
		Synthesis:    synthesis,
		EvidenceBank: bank,
	}

	gaps, err := r.gapAnalyzer.Execute(ctx, &analyzegaps.Input{Synthesis: synthesis, Bank: bank, Pages: completed})
	if err != nil {
		// Degraded, not failed: the result ships without gap fields.
		log.Warn("gap analysis failed; completing without gaps", map[string]interface{}{"error": err.Error()})
	} else {
		result.Gaps = gaps
	}

	if err := r.results.UpsertResult(ctx, result); err != nil {
		log.Error("failed to persist result", map[string]interface{}{"error": err.Error()})
		return
	}

	status = models.SessionComplete
}

// processPages walks the pages strictly in creation order. A page failure
// is terminal for that page only; the loop continues.
func (r *Runner) processPages(ctx context.Context, pages []*models.Page, log logger.Logger) []*models.Page {
	var completed []*models.Page

	for _, page := range pages {
		pageLog := log.With(map[string]interface{}{"page_id": page.ID, "url": page.URL})

		if err := r.pages.SetPageStatus(ctx, page.ID, models.PageScraping); err != nil {
			pageLog.Error("failed to mark page scraping", map[string]interface{}{"error": err.Error()})
			continue
		}
		page.Status = models.PageScraping

		markdown, err := r.fetcher.Execute(ctx, page.URL)
		if err != nil {
			pageLog.Warn("fetch failed", map[string]interface{}{"error": err.Error()})
			r.failPage(ctx, page, err, pageLog)
			continue
		}
		if err := r.pages.SavePageContent(ctx, page.ID, markdown); err != nil {
			pageLog.Error("failed to persist content", map[string]interface{}{"error": err.Error()})
			r.failPage(ctx, page, err, pageLog)
			continue
		}
		page.RawMarkdown = markdown
		page.Status = models.PageExtracting

		annotation, err := r.annotator.Execute(ctx, page.URL, markdown)
		if err != nil {
			pageLog.Warn("annotation failed", map[string]interface{}{"error": err.Error()})
			r.failPage(ctx, page, err, pageLog)
			continue
		}
		if err := r.pages.SavePageAnnotation(ctx, page.ID, annotation); err != nil {
			pageLog.Error("failed to persist annotation", map[string]interface{}{"error": err.Error()})
			r.failPage(ctx, page, err, pageLog)
			continue
		}
		page.Annotation = annotation
		page.Status = models.PageComplete

		completed = append(completed, page)
	}

	return completed
}

func (r *Runner) failPage(ctx context.Context, page *models.Page, cause error, log logger.Logger) {
	page.Status = models.PageFailed
	page.ErrorMessage = cause.Error()
	if err := r.pages.FailPage(ctx, page.ID, cause.Error()); err != nil {
		log.Error("failed to record page failure", map[string]interface{}{"error": err.Error()})
	}
}
