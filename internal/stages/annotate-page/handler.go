// internal/stages/annotate-page/handler.go
package annotatepage

import (
	"context"
	"time"

	apperrors "positioning-analyzer/internal/common/errors"
	"positioning-analyzer/internal/common/genai"
	"positioning-analyzer/internal/common/llmjson"
	"positioning-analyzer/internal/common/logger"
	"positioning-analyzer/internal/common/metrics"
	"positioning-analyzer/internal/models"
)

const StageName = "annotate-page"

// Handler turns fetched page markdown into a structured claim inventory.
type Handler struct {
	config    *Config
	generator genai.Generator
	logger    logger.Logger
}

func NewHandler(config *Config, generator genai.Generator, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		generator: generator,
		logger:    log.With(map[string]interface{}{"stage": StageName}),
	}
}

// Execute annotates one page. Any failure is terminal for this page only;
// the caller records it and moves on to the next URL.
func (h *Handler) Execute(ctx context.Context, pageURL, markdown string) (*models.PageAnnotation, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineStageDuration.WithLabelValues(StageName).Observe(time.Since(start).Seconds())
	}()

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	response, err := h.generator.Generate(ctx, buildPrompt(pageURL, markdown))
	if err != nil {
		metrics.PipelineStageFailures.WithLabelValues(StageName, string(apperrors.CodeOf(err))).Inc()
		return nil, apperrors.NewAnnotationFailedError(err)
	}

	var annotation models.PageAnnotation
	if err := llmjson.UnmarshalValidated(response, &annotation, annotationSchema); err != nil {
		metrics.PipelineStageFailures.WithLabelValues(StageName, string(apperrors.ErrCodeResponseParseFailed)).Inc()
		return nil, apperrors.NewAnnotationFailedError(apperrors.NewResponseParseFailedError(err))
	}

	applyDefaults(&annotation)

	h.logger.Info("page annotated", map[string]interface{}{
		"url":         pageURL,
		"headlines":   len(annotation.Headlines),
		"value_props": len(annotation.ValuePropositions),
		"ctas":        len(annotation.CTAs),
	})
	return &annotation, nil
}

// applyDefaults guarantees every list is non-nil so downstream stages never
// branch on missing fields.
func applyDefaults(a *models.PageAnnotation) {
	if a.Headlines == nil {
		a.Headlines = []models.Headline{}
	}
	if a.ValuePropositions == nil {
		a.ValuePropositions = []models.ValueProposition{}
	}
	if a.ProofPoints == nil {
		a.ProofPoints = []models.ProofPoint{}
	}
	if a.CTAs == nil {
		a.CTAs = []models.CTA{}
	}
	if a.TargetAudienceSignals == nil {
		a.TargetAudienceSignals = []models.AudienceSignal{}
	}
	if a.CompetitivePositioning == nil {
		a.CompetitivePositioning = []models.CompetitiveClaim{}
	}
	if a.PricingSignals == nil {
		a.PricingSignals = []string{}
	}
	if a.TrustSignals == nil {
		a.TrustSignals = []models.TrustSignal{}
	}
	if a.InternalContradictions == nil {
		a.InternalContradictions = []models.InternalContradiction{}
	}

	for i := range a.Headlines {
		if a.Headlines[i].EmphasisScore < 1 {
			a.Headlines[i].EmphasisScore = 1
		}
		if a.Headlines[i].EmphasisScore > 10 {
			a.Headlines[i].EmphasisScore = 10
		}
	}
}
