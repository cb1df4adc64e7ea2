// internal/stages/build-evidence/handler.go
package buildevidence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "positioning-analyzer/internal/common/errors"
	"positioning-analyzer/internal/common/genai"
	"positioning-analyzer/internal/common/llmjson"
	"positioning-analyzer/internal/common/logger"
	"positioning-analyzer/internal/common/metrics"
	"positioning-analyzer/internal/models"
)

const StageName = "build-evidence"

// Handler distills annotated pages into the run's citable evidence bank.
// The bank is built once and treated as immutable afterwards; every
// downstream citation resolves against it.
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

// Execute builds the evidence bank from the session's completed pages.
// Failure here is fatal to the session.
func (h *Handler) Execute(ctx context.Context, pages []*models.Page) (*models.EvidenceBank, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineStageDuration.WithLabelValues(StageName).Observe(time.Since(start).Seconds())
	}()

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	response, err := h.generator.Generate(ctx, buildPrompt(pages))
	if err != nil {
		metrics.PipelineStageFailures.WithLabelValues(StageName, string(apperrors.CodeOf(err))).Inc()
		return nil, apperrors.NewEvidenceBuildFailedError(err)
	}

	var bank models.EvidenceBank
	if err := llmjson.Unmarshal(response, &bank); err != nil {
		metrics.PipelineStageFailures.WithLabelValues(StageName, string(apperrors.ErrCodeResponseParseFailed)).Inc()
		return nil, apperrors.NewEvidenceBuildFailedError(apperrors.NewResponseParseFailedError(err))
	}

	normalize(&bank)
	metrics.EvidenceBankSize.Observe(float64(bank.Len()))

	h.logger.Info("evidence bank built", map[string]interface{}{
		"quotes":         len(bank.Quotes),
		"stat_claims":    len(bank.StatisticalClaims),
		"customer_voice": len(bank.CustomerVoice),
	})
	return &bank, nil
}

// normalize enforces the bank invariants the generator cannot be trusted
// with: non-nil ledgers, quotes within the length cap, and unique
// kind-prefixed ids.
func normalize(bank *models.EvidenceBank) {
	if bank.Quotes == nil {
		bank.Quotes = []models.Quote{}
	}
	if bank.StatisticalClaims == nil {
		bank.StatisticalClaims = []models.StatClaim{}
	}
	if bank.CustomerVoice == nil {
		bank.CustomerVoice = []models.CustomerVoice{}
	}

	for i := range bank.Quotes {
		bank.Quotes[i].Text = truncateQuote(bank.Quotes[i].Text)
	}

	if !idsValid(bank) {
		backfillIDs(bank)
	}
}

// idsValid reports whether every entry carries a correctly prefixed id that
// is unique across the whole bank.
func idsValid(bank *models.EvidenceBank) bool {
	seen := make(map[string]bool, bank.Len())
	check := func(id, prefix string) bool {
		if id == "" || !strings.HasPrefix(id, prefix) || seen[id] {
			return false
		}
		seen[id] = true
		return true
	}

	// CV entries first so "CV1" is never claimed as a quote id.
	for _, v := range bank.CustomerVoice {
		if !check(v.ID, models.VoiceIDPrefix) {
			return false
		}
	}
	for _, q := range bank.Quotes {
		if !check(q.ID, models.QuoteIDPrefix) || strings.HasPrefix(q.ID, models.VoiceIDPrefix) {
			return false
		}
	}
	for _, s := range bank.StatisticalClaims {
		if !check(s.ID, models.StatIDPrefix) {
			return false
		}
	}
	return true
}

// backfillIDs reassigns sequential ids in emission order. One bad id means
// every id is reassigned, so citations never point at a renumbered survivor.
func backfillIDs(bank *models.EvidenceBank) {
	for i := range bank.Quotes {
		bank.Quotes[i].ID = fmt.Sprintf("%s%d", models.QuoteIDPrefix, i+1)
	}
	for i := range bank.StatisticalClaims {
		bank.StatisticalClaims[i].ID = fmt.Sprintf("%s%d", models.StatIDPrefix, i+1)
	}
	for i := range bank.CustomerVoice {
		bank.CustomerVoice[i].ID = fmt.Sprintf("%s%d", models.VoiceIDPrefix, i+1)
	}
}

func truncateQuote(s string) string {
	if len(s) <= models.MaxQuoteLength {
		return s
	}
	return s[:models.MaxQuoteLength-3] + "..."
}

func buildPrompt(pages []*models.Page) string {
	var b strings.Builder

	b.WriteString(`You are building an evidence bank for positioning analysis. From the pages
below, extract three ledgers of citable evidence:

1. "quotes": verbatim excerpts worth citing. Each entry: id ("Q1", "Q2", ...),
   text (VERBATIM, maximum 150 characters), page_url, structural_context
   (h1|h2|h3|body|testimonial|cta), category (value_prop|differentiation|
   proof|audience|pain|trust|pricing), specificity_rating (1-5).
2. "statistical_claims": every number or statistic. Each entry: id ("S1", ...),
   claim, page_url, specificity (specific|vague|unverifiable), context.
3. "customer_voice": testimonials and customer quotes. Each entry: id
   ("CV1", ...), quote, attribution, page_url, credibility (high = named
   person and company, medium = company only, low = anonymous).

Ids must be unique and sequential within each ledger. Respond with a single
JSON object {"quotes": [...], "statistical_claims": [...], "customer_voice": [...]}.

PAGES:
`)

	for _, page := range pages {
		fmt.Fprintf(&b, "\n--- PAGE: %s ---\n", page.URL)
		fmt.Fprintf(&b, "CONTENT:\n%s\n", truncateText(page.RawMarkdown, MaxMarkdownChars))
		if page.Annotation != nil {
			annotation, err := json.Marshal(page.Annotation)
			if err == nil {
				fmt.Fprintf(&b, "EXTRACTED ELEMENTS:\n%s\n", annotation)
			}
		}
	}

	return b.String()
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
