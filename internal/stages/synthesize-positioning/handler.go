// internal/stages/synthesize-positioning/handler.go
package synthesizepositioning

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "positioning-analyzer/internal/common/errors"
	"positioning-analyzer/internal/common/genai"
	"positioning-analyzer/internal/common/llmjson"
	"positioning-analyzer/internal/common/logger"
	"positioning-analyzer/internal/common/metrics"
	"positioning-analyzer/internal/models"
)

const StageName = "synthesize-positioning"

// Input is everything the synthesis reads: the session's completed pages
// and the immutable evidence bank.
type Input struct {
	Pages []*models.Page
	Bank  *models.EvidenceBank
}

// Handler produces the cross-page positioning read. The generator drafts
// it; the deterministic pass afterwards enforces citation integrity and
// the prominence-first value ranking.
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

// Execute synthesizes positioning from the completed pages. Failure here is
// fatal to the session.
func (h *Handler) Execute(ctx context.Context, input *Input) (*models.SynthesisResult, error) {
	start := time.Now()
	defer func() {
		metrics.PipelineStageDuration.WithLabelValues(StageName).Observe(time.Since(start).Seconds())
	}()

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	response, err := h.generator.Generate(ctx, buildPrompt(input))
	if err != nil {
		metrics.PipelineStageFailures.WithLabelValues(StageName, string(apperrors.CodeOf(err))).Inc()
		return nil, apperrors.NewSynthesisFailedError(err)
	}

	var result models.SynthesisResult
	if err := llmjson.Unmarshal(response, &result); err != nil {
		metrics.PipelineStageFailures.WithLabelValues(StageName, string(apperrors.ErrCodeResponseParseFailed)).Inc()
		return nil, apperrors.NewSynthesisFailedError(apperrors.NewResponseParseFailedError(err))
	}

	applyDefaults(&result)
	scrubCitations(&result, input.Bank)
	rerankValueHierarchy(&result, input.Bank)
	deriveConversionStrategy(&result, input.Pages)

	h.logger.Info("positioning synthesized", map[string]interface{}{
		"confidence":      result.PositioningConfidence,
		"value_themes":    len(result.ValueHierarchy),
		"contradictions":  len(result.CrossPageContradictions),
		"consistency":     result.OverallConsistencyScore,
	})
	return &result, nil
}

func applyDefaults(r *models.SynthesisResult) {
	switch r.PositioningConfidence {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
	default:
		r.PositioningConfidence = models.ConfidenceMedium
	}

	if r.PositioningEvidence == nil {
		r.PositioningEvidence = []string{}
	}
	if r.CategoryEvidence == nil {
		r.CategoryEvidence = []string{}
	}
	if r.ValueHierarchy == nil {
		r.ValueHierarchy = []models.ValueHierarchyItem{}
	}
	if r.SecondaryPersonas == nil {
		r.SecondaryPersonas = []models.PersonaProfile{}
	}
	if r.PainPoints == nil {
		r.PainPoints = []models.PainPoint{}
	}
	if r.MessagingVariants == nil {
		r.MessagingVariants = []models.MessagingVariant{}
	}
	if r.CrossPageContradictions == nil {
		r.CrossPageContradictions = []models.CrossPageContradiction{}
	}
	if r.NavigationAnalysis.PrimaryCTAs == nil {
		r.NavigationAnalysis.PrimaryCTAs = []string{}
	}
	if r.OverallConsistencyScore < 0 {
		r.OverallConsistencyScore = 0
	}
	if r.OverallConsistencyScore > 100 {
		r.OverallConsistencyScore = 100
	}
}

// scrubCitations drops every evidence id that does not resolve in the bank.
// Citations are advisory; a dangling id must never be persisted.
func scrubCitations(r *models.SynthesisResult, bank *models.EvidenceBank) {
	r.PositioningEvidence = keepKnown(r.PositioningEvidence, bank)
	r.CategoryEvidence = keepKnown(r.CategoryEvidence, bank)

	for i := range r.ValueHierarchy {
		r.ValueHierarchy[i].EvidenceIDs = keepKnown(r.ValueHierarchy[i].EvidenceIDs, bank)
	}

	r.PrimaryPersona.EvidenceIDs = keepKnown(r.PrimaryPersona.EvidenceIDs, bank)
	for i := range r.SecondaryPersonas {
		r.SecondaryPersonas[i].EvidenceIDs = keepKnown(r.SecondaryPersonas[i].EvidenceIDs, bank)
	}
	for i := range r.PainPoints {
		r.PainPoints[i].EvidenceIDs = keepKnown(r.PainPoints[i].EvidenceIDs, bank)
	}

	for i := range r.MessagingVariants {
		for j := range r.MessagingVariants[i].Variants {
			if !bank.Has(r.MessagingVariants[i].Variants[j].EvidenceID) {
				r.MessagingVariants[i].Variants[j].EvidenceID = ""
			}
		}
	}

	for i := range r.CrossPageContradictions {
		if !bank.Has(r.CrossPageContradictions[i].PageA.EvidenceID) {
			r.CrossPageContradictions[i].PageA.EvidenceID = ""
		}
		if !bank.Has(r.CrossPageContradictions[i].PageB.EvidenceID) {
			r.CrossPageContradictions[i].PageB.EvidenceID = ""
		}
	}
}

func keepKnown(ids []string, bank *models.EvidenceBank) []string {
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if bank.Has(id) {
			kept = append(kept, id)
		}
	}
	return kept
}

// Structural weights for ranking. A value claimed once in an h1 outranks
// one repeated across every footer.
var structuralWeight = map[string]int{
	"h1":          6,
	"h2":          5,
	"h3":          4,
	"cta":         3,
	"testimonial": 2,
	"body":        1,
}

// rerankValueHierarchy orders themes by structural prominence, breaking
// ties by page appearance count and then the generator's emphasis score.
func rerankValueHierarchy(r *models.SynthesisResult, bank *models.EvidenceBank) {
	type ranked struct {
		item   models.ValueHierarchyItem
		weight int
	}
	items := make([]ranked, len(r.ValueHierarchy))
	for i, item := range r.ValueHierarchy {
		items[i] = ranked{item: item, weight: prominence(item, bank)}
	}

	sort.SliceStable(items, func(a, b int) bool {
		if items[a].weight != items[b].weight {
			return items[a].weight > items[b].weight
		}
		pa, pb := len(items[a].item.PageAppearances), len(items[b].item.PageAppearances)
		if pa != pb {
			return pa > pb
		}
		return items[a].item.EmphasisScore > items[b].item.EmphasisScore
	})

	for i, it := range items {
		it.item.Rank = i + 1
		r.ValueHierarchy[i] = it.item
	}
}

// prominence is the max structural weight over the item's cited evidence,
// falling back to a weight derived from the emphasis score when uncited.
func prominence(item models.ValueHierarchyItem, bank *models.EvidenceBank) int {
	best := 0
	for _, id := range item.EvidenceIDs {
		if w := evidenceWeight(id, bank); w > best {
			best = w
		}
	}
	if best > 0 {
		return best
	}
	return emphasisWeight(item.EmphasisScore)
}

func evidenceWeight(id string, bank *models.EvidenceBank) int {
	if strings.HasPrefix(id, models.VoiceIDPrefix) {
		for _, v := range bank.CustomerVoice {
			if v.ID == id {
				return structuralWeight["testimonial"]
			}
		}
		return 0
	}
	if strings.HasPrefix(id, models.QuoteIDPrefix) {
		for _, q := range bank.Quotes {
			if q.ID == id {
				if w, ok := structuralWeight[q.StructuralContext]; ok {
					return w
				}
				return structuralWeight["body"]
			}
		}
		return 0
	}
	if strings.HasPrefix(id, models.StatIDPrefix) {
		for _, s := range bank.StatisticalClaims {
			if s.ID == id {
				return structuralWeight["body"]
			}
		}
	}
	return 0
}

func emphasisWeight(score int) int {
	switch {
	case score >= 9:
		return 6
	case score >= 7:
		return 5
	case score >= 5:
		return 4
	case score >= 3:
		return 3
	case score >= 2:
		return 2
	default:
		return 1
	}
}

// deriveConversionStrategy reads the dominant prominent CTA off the
// annotated pages. The generator's own guess is only kept when the pages
// carry no signal.
func deriveConversionStrategy(r *models.SynthesisResult, pages []*models.Page) {
	selfServe, salesLed := 0, 0
	for _, page := range pages {
		if page.Annotation == nil {
			continue
		}
		for _, cta := range page.Annotation.CTAs {
			if cta.Placement != "hero" && cta.Placement != "navigation" {
				continue
			}
			switch cta.ActionType {
			case "signup":
				selfServe++
			case "demo", "contact":
				salesLed++
			default:
				if strings.Contains(strings.ToLower(cta.Text), "trial") {
					selfServe++
				}
			}
		}
	}

	switch {
	case selfServe > salesLed:
		r.NavigationAnalysis.ConversionStrategy = models.ConversionSelfServe
	case salesLed > selfServe:
		r.NavigationAnalysis.ConversionStrategy = models.ConversionSalesLed
	default:
		switch r.NavigationAnalysis.ConversionStrategy {
		case models.ConversionSelfServe, models.ConversionSalesLed:
			// No page signal either way; keep the generator's read.
		default:
			r.NavigationAnalysis.ConversionStrategy = models.ConversionUnclear
		}
	}
}

func buildPrompt(input *Input) string {
	var b strings.Builder

	b.WriteString(`You are synthesizing a company's positioning from its web pages and a bank
of citable evidence. Every claim you make should cite evidence ids from the
bank (Q*, S*, CV*). Produce a single JSON object with:

- positioning_statement, positioning_confidence (high|medium|low),
  positioning_evidence (evidence ids)
- category_claimed, category_evidence
- value_hierarchy: ranked value themes, each with rank, value_proposition,
  emphasis_score (1-10), page_appearances (urls), evidence_ids. Rank by
  structural prominence: what the h1s say matters more than what is repeated
  in body text.
- primary_persona and secondary_personas: title, seniority, industry,
  pain_points, desired_outcomes, evidence_ids
- pain_points: pain, frequency, pages_mentioned, evidence_ids
- navigation_analysis: primary_ctas, cta_consistency_score (0-100),
  nav_priority_alignment, conversion_strategy (self_serve|sales_led|unclear)
- messaging_variants: per concept, the variant texts across pages with
  page_url, structural_level, evidence_id, and a consistency_score (0-100)
- cross_page_contradictions: topic, page_a {url, says, evidence_id},
  page_b {url, says, evidence_id}, severity (critical|moderate|minor)
- overall_consistency_score (0-100)

EVIDENCE BANK:
`)

	if bankJSON, err := json.Marshal(input.Bank); err == nil {
		b.Write(bankJSON)
	}

	b.WriteString("\n\nPAGES:\n")
	for _, page := range input.Pages {
		fmt.Fprintf(&b, "\n--- PAGE: %s ---\n", page.URL)
		fmt.Fprintf(&b, "CONTENT:\n%s\n", truncateText(page.RawMarkdown, MaxMarkdownChars))
		if page.Annotation != nil {
			if annotation, err := json.Marshal(page.Annotation); err == nil {
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
