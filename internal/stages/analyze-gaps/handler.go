// internal/stages/analyze-gaps/handler.go
package analyzegaps

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

const StageName = "analyze-gaps"

// Input carries the synthesis under critique plus the evidence it cites.
type Input struct {
	Synthesis *models.SynthesisResult
	Bank      *models.EvidenceBank
	Pages     []*models.Page
}

// Handler critiques the synthesized positioning against the evidence bank.
// A failure here degrades the session result but never fails it.
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*models.GapAnalysisResult, error) {
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
		return nil, apperrors.NewGapAnalysisFailedError(err)
	}

	var result models.GapAnalysisResult
	if err := llmjson.Unmarshal(response, &result); err != nil {
		metrics.PipelineStageFailures.WithLabelValues(StageName, string(apperrors.ErrCodeResponseParseFailed)).Inc()
		return nil, apperrors.NewGapAnalysisFailedError(apperrors.NewResponseParseFailedError(err))
	}

	applyDefaults(&result)
	scrubCitations(&result, input.Bank)
	applySeverityFloors(&result)
	sortRecommendations(&result)

	h.logger.Info("gap analysis complete", map[string]interface{}{
		"specificity_score": result.SpecificityScore,
		"proof_score":       result.ProofScore,
		"so_what_gaps":      len(result.SoWhatGaps),
		"recommendations":   len(result.ActionableRecommendations),
	})
	return &result, nil
}

func applyDefaults(r *models.GapAnalysisResult) {
	switch r.DifferentiationStrength {
	case models.DifferentiationStrong, models.DifferentiationModerate, models.DifferentiationWeak, models.DifferentiationGeneric:
	default:
		r.DifferentiationStrength = models.DifferentiationGeneric
	}

	if r.SoWhatGaps == nil {
		r.SoWhatGaps = []models.SoWhatGap{}
	}
	if r.StructuralMisalignments == nil {
		r.StructuralMisalignments = []models.StructuralMisalignment{}
	}
	if r.CriticalObservations == nil {
		r.CriticalObservations = []models.CriticalObservation{}
	}
	if r.ProofPoints == nil {
		r.ProofPoints = []models.AuditedProofPoint{}
	}
	if r.UnsubstantiatedClaims == nil {
		r.UnsubstantiatedClaims = []string{}
	}
	if r.ActionableRecommendations == nil {
		r.ActionableRecommendations = []models.ActionableRecommendation{}
	}
	if r.ExecutiveSummary.ThreeKeyStrengths == nil {
		r.ExecutiveSummary.ThreeKeyStrengths = []models.KeyStrength{}
	}
	if r.ExecutiveSummary.ThreeKeyWeaknesses == nil {
		r.ExecutiveSummary.ThreeKeyWeaknesses = []models.KeyWeakness{}
	}
	if r.TenSecondTakeaway == "" {
		r.TenSecondTakeaway = r.ExecutiveSummary.TenSecondTakeaway
	}

	for i := range r.CriticalObservations {
		if r.CriticalObservations[i].Severity == "" {
			r.CriticalObservations[i].Severity = models.SeverityMedium
		}
		if r.CriticalObservations[i].EvidenceIDs == nil {
			r.CriticalObservations[i].EvidenceIDs = []string{}
		}
	}
	for i := range r.ActionableRecommendations {
		rec := &r.ActionableRecommendations[i]
		if rec.Priority < 1 || rec.Priority > 5 {
			rec.Priority = 5
		}
		if rec.EvidenceIDs == nil {
			rec.EvidenceIDs = []string{}
		}
	}

	r.SpecificityScore = clampScore(r.SpecificityScore)
	r.ProofScore = clampScore(r.ProofScore)
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func scrubCitations(r *models.GapAnalysisResult, bank *models.EvidenceBank) {
	for i := range r.ExecutiveSummary.ThreeKeyStrengths {
		r.ExecutiveSummary.ThreeKeyStrengths[i].Evidence = keepKnown(r.ExecutiveSummary.ThreeKeyStrengths[i].Evidence, bank)
	}
	for i := range r.ExecutiveSummary.ThreeKeyWeaknesses {
		r.ExecutiveSummary.ThreeKeyWeaknesses[i].Evidence = keepKnown(r.ExecutiveSummary.ThreeKeyWeaknesses[i].Evidence, bank)
	}
	for i := range r.SoWhatGaps {
		if !bank.Has(r.SoWhatGaps[i].EvidenceID) {
			r.SoWhatGaps[i].EvidenceID = ""
		}
	}
	for i := range r.StructuralMisalignments {
		if !bank.Has(r.StructuralMisalignments[i].WhatsInH1.EvidenceID) {
			r.StructuralMisalignments[i].WhatsInH1.EvidenceID = ""
		}
		if !bank.Has(r.StructuralMisalignments[i].WhatsBuried.EvidenceID) {
			r.StructuralMisalignments[i].WhatsBuried.EvidenceID = ""
		}
	}
	for i := range r.CriticalObservations {
		r.CriticalObservations[i].EvidenceIDs = keepKnown(r.CriticalObservations[i].EvidenceIDs, bank)
	}
	for i := range r.ProofPoints {
		if !bank.Has(r.ProofPoints[i].EvidenceID) {
			r.ProofPoints[i].EvidenceID = ""
		}
	}
	for i := range r.ActionableRecommendations {
		r.ActionableRecommendations[i].EvidenceIDs = keepKnown(r.ActionableRecommendations[i].EvidenceIDs, bank)
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

// severityFloor maps structural level to the minimum severity of a so-what
// gap there. A vague h1 is always critical; the same vagueness in body text
// is low.
var severityFloor = map[string]string{
	"h1":   models.SeverityCritical,
	"h2":   models.SeverityHigh,
	"h3":   models.SeverityMedium,
	"body": models.SeverityLow,
}

var severityRank = map[string]int{
	models.SeverityCritical: 4,
	models.SeverityHigh:     3,
	models.SeverityMedium:   2,
	models.SeverityLow:      1,
}

func applySeverityFloors(r *models.GapAnalysisResult) {
	for i := range r.SoWhatGaps {
		gap := &r.SoWhatGaps[i]
		floor, ok := severityFloor[gap.StructuralLevel]
		if !ok {
			floor = models.SeverityLow
		}
		if severityRank[gap.Severity] < severityRank[floor] {
			gap.Severity = floor
		}
	}
}

// sortRecommendations puts quick wins strictly first, then orders by
// ascending priority. The sort is stable so the generator's ordering
// survives within equal keys.
func sortRecommendations(r *models.GapAnalysisResult) {
	sort.SliceStable(r.ActionableRecommendations, func(a, b int) bool {
		ra, rb := r.ActionableRecommendations[a], r.ActionableRecommendations[b]
		aQuick := ra.Category == models.RecommendationQuickWin
		bQuick := rb.Category == models.RecommendationQuickWin
		if aQuick != bQuick {
			return aQuick
		}
		return ra.Priority < rb.Priority
	})
}

func buildPrompt(input *Input) string {
	var b strings.Builder

	b.WriteString(`You are auditing a company's positioning for gaps. Be direct and specific;
cite evidence ids (Q*, S*, CV*) from the bank for every finding. Produce a
single JSON object with:

- executive_summary: ten_second_takeaway, three_key_strengths
  [{strength, evidence}], three_key_weaknesses [{weakness, evidence, severity}]
- specificity_score (0-100): how falsifiable the claims are overall
- so_what_gaps: claims that never answer "so what?", each with claim,
  missing_context, structural_level (h1|h2|h3|body), severity
  (critical|high|medium|low), evidence_id
- differentiation_strength (strong|moderate|weak|generic): strong requires
  uniqueness AND prominent placement; a unique claim buried in body text is weak
- structural_misalignments: issue, whats_in_h1 {text, evidence_id},
  whats_buried {text, evidence_id, location}, severity
- ten_second_takeaway: what a visitor retains after ten seconds
- critical_observations: observation, severity, evidence_ids, category
  (structural_gap|specificity|differentiation|proof|consistency|audience)
- proof_score (0-100) and proof_points: audited proof with claim, proof_type,
  specificity_score (1-10), location, verdict (strong|weak|missing),
  evidence_id, raw_text, page_url
- unsubstantiated_claims: claims with no proof anywhere on the site
- actionable_recommendations: priority (1-5, 1 highest), category
  (quick_win|structural_change|content_gap|proof_needed), recommendation,
  rationale, evidence_ids, effort (low|medium|high), impact (low|medium|high)

SYNTHESIZED POSITIONING:
`)

	if synthesisJSON, err := json.Marshal(input.Synthesis); err == nil {
		b.Write(synthesisJSON)
	}

	b.WriteString("\n\nEVIDENCE BANK:\n")
	if bankJSON, err := json.Marshal(input.Bank); err == nil {
		b.Write(bankJSON)
	}

	b.WriteString("\n\nPAGES:\n")
	for _, page := range input.Pages {
		fmt.Fprintf(&b, "\n--- PAGE: %s ---\n%s\n", page.URL, truncateText(page.RawMarkdown, MaxMarkdownChars))
	}

	return b.String()
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
