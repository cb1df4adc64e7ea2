package models

// Severity tiers shared by gap findings.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Differentiation strength classification. "strong" requires uniqueness AND
// prominent placement; unique claims buried in body text rate "weak".
const (
	DifferentiationStrong   = "strong"
	DifferentiationModerate = "moderate"
	DifferentiationWeak     = "weak"
	DifferentiationGeneric  = "generic"
)

// Recommendation categories. quick_win always sorts before the others.
const (
	RecommendationQuickWin         = "quick_win"
	RecommendationStructuralChange = "structural_change"
	RecommendationContentGap       = "content_gap"
	RecommendationProofNeeded      = "proof_needed"
)

// GapAnalysisResult is the critique of a synthesis against the evidence
// bank. Its absence degrades but does not fail a session.
type GapAnalysisResult struct {
	ExecutiveSummary          ExecutiveSummary          `json:"executive_summary"`
	SpecificityScore          int                       `json:"specificity_score"` // 0-100
	SoWhatGaps                []SoWhatGap               `json:"so_what_gaps"`
	DifferentiationStrength   string                    `json:"differentiation_strength"` // strong|moderate|weak|generic
	StructuralMisalignments   []StructuralMisalignment  `json:"structural_misalignments"`
	TenSecondTakeaway         string                    `json:"ten_second_takeaway"`
	CriticalObservations      []CriticalObservation     `json:"critical_observations"`
	ProofScore                int                       `json:"proof_score"` // 0-100
	ProofPoints               []AuditedProofPoint       `json:"proof_points"`
	UnsubstantiatedClaims     []string                  `json:"unsubstantiated_claims"`
	ActionableRecommendations []ActionableRecommendation `json:"actionable_recommendations"`
}

type ExecutiveSummary struct {
	TenSecondTakeaway  string         `json:"ten_second_takeaway"`
	ThreeKeyStrengths  []KeyStrength  `json:"three_key_strengths"`
	ThreeKeyWeaknesses []KeyWeakness  `json:"three_key_weaknesses"`
}

type KeyStrength struct {
	Strength string   `json:"strength"`
	Evidence []string `json:"evidence"`
}

type KeyWeakness struct {
	Weakness string   `json:"weakness"`
	Evidence []string `json:"evidence"`
	Severity string   `json:"severity"` // critical|high|medium|low
}

// SoWhatGap flags a claim that never answers "why should I care?".
// Severity scales with structural prominence: the same defect in an h1 is
// critical, in body text low.
type SoWhatGap struct {
	Claim           string `json:"claim"`
	MissingContext  string `json:"missing_context"`
	StructuralLevel string `json:"structural_level,omitempty"` // h1|h2|h3|body
	Severity        string `json:"severity,omitempty"`
	EvidenceID      string `json:"evidence_id,omitempty"`
}

// StructuralMisalignment pairs an overprominent generic claim with a
// stronger claim buried elsewhere on the site.
type StructuralMisalignment struct {
	Issue       string           `json:"issue"`
	WhatsInH1   CitedText        `json:"whats_in_h1"`
	WhatsBuried BuriedCitedText  `json:"whats_buried"`
	Severity    string           `json:"severity"` // critical|high|medium
}

type CitedText struct {
	Text       string `json:"text"`
	EvidenceID string `json:"evidence_id,omitempty"`
}

type BuriedCitedText struct {
	Text       string `json:"text"`
	EvidenceID string `json:"evidence_id,omitempty"`
	Location   string `json:"location,omitempty"`
}

type CriticalObservation struct {
	Observation string   `json:"observation"`
	Severity    string   `json:"severity"`
	EvidenceIDs []string `json:"evidence_ids"`
	Category    string   `json:"category"` // structural_gap|specificity|differentiation|proof|consistency|audience
}

type AuditedProofPoint struct {
	Claim            string `json:"claim"`
	ProofType        string `json:"proof_type"`
	SpecificityScore int    `json:"specificity_score"` // 1-10
	Location         string `json:"location"`          // H1|H2|H3|body|buried
	Verdict          string `json:"verdict"`           // strong|weak|missing
	EvidenceID       string `json:"evidence_id,omitempty"`
	RawText          string `json:"raw_text,omitempty"`
	PageURL          string `json:"page_url,omitempty"`
}

type ActionableRecommendation struct {
	Priority       int      `json:"priority"` // 1-5, 1 = highest
	Category       string   `json:"category"` // quick_win|structural_change|content_gap|proof_needed
	Recommendation string   `json:"recommendation"`
	Rationale      string   `json:"rationale"`
	EvidenceIDs    []string `json:"evidence_ids"`
	Effort         string   `json:"effort"` // low|medium|high
	Impact         string   `json:"impact"` // low|medium|high
}
