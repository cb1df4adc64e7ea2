package models

// PageAnnotation is the structured claim inventory extracted from a single
// page's markdown. Every list is non-nil after decoding; the annotate-page
// stage applies defaults before handing the annotation downstream.
type PageAnnotation struct {
	Headlines              []Headline              `json:"headlines"`
	ValuePropositions      []ValueProposition      `json:"value_propositions"`
	ProofPoints            []ProofPoint            `json:"proof_points"`
	CTAs                   []CTA                   `json:"ctas"`
	TargetAudienceSignals  []AudienceSignal        `json:"target_audience_signals"`
	CompetitivePositioning []CompetitiveClaim      `json:"competitive_positioning"`
	PricingSignals         []string                `json:"pricing_signals"`
	TrustSignals           []TrustSignal           `json:"trust_signals"`
	InternalContradictions []InternalContradiction `json:"internal_contradictions"`
}

// Headline carries a heading's text together with its structural weight.
// EmphasisScore is 1-10, derived from heading level and placement.
type Headline struct {
	Text          string `json:"text"`
	Level         string `json:"level"` // h1|h2|h3
	EmphasisScore int    `json:"emphasis_score"`
	PageSection   string `json:"page_section,omitempty"` // hero|features|benefits|social_proof|pricing|footer|other
	RawText       string `json:"raw_text,omitempty"`
}

type ValueProposition struct {
	Claim             string `json:"claim"`
	RawText           string `json:"raw_text,omitempty"`
	PageSection       string `json:"page_section,omitempty"`
	StructuralLevel   string `json:"structural_level,omitempty"` // h1|h2|h3|body
	SpecificityRating int    `json:"specificity_rating,omitempty"`
	SpecificityReason string `json:"specificity_reason,omitempty"`
}

type ProofPoint struct {
	Claim             string `json:"claim"`
	ProofType         string `json:"proof_type"`  // statistic|testimonial|case_study|logo|award|certification|none
	Specificity       string `json:"specificity"` // specific|vague|missing
	RawText           string `json:"raw_text,omitempty"`
	PageSection       string `json:"page_section,omitempty"`
	StructuralLevel   string `json:"structural_level,omitempty"`
	SpecificityReason string `json:"specificity_reason,omitempty"`
}

type CTA struct {
	Text       string `json:"text"`
	Placement  string `json:"placement"`   // hero|navigation|inline|footer
	ActionType string `json:"action_type"` // signup|demo|contact|learn_more|pricing|other
}

type AudienceSignal struct {
	Signal          string `json:"signal"`
	RawText         string `json:"raw_text,omitempty"`
	Explicit        bool   `json:"explicit"` // true = "for marketing teams", false = implied by jargon
	StructuralLevel string `json:"structural_level,omitempty"`
}

type CompetitiveClaim struct {
	Claim           string `json:"claim"`
	RawText         string `json:"raw_text,omitempty"`
	StructuralLevel string `json:"structural_level,omitempty"`
}

type TrustSignal struct {
	Signal     string `json:"signal"`
	RawText    string `json:"raw_text,omitempty"`
	SignalType string `json:"signal_type,omitempty"` // logo|testimonial|certification|award|press|stat
}

// InternalContradiction is a same-page conflict between two statements.
type InternalContradiction struct {
	Topic      string `json:"topic"`
	StatementA string `json:"statement_a"`
	StatementB string `json:"statement_b"`
	Severity   string `json:"severity"` // high|medium|low
}
