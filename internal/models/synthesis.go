package models

// Confidence tiers for the positioning statement.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Conversion strategy signals derived from the dominant primary CTA.
const (
	ConversionSelfServe = "self_serve"
	ConversionSalesLed  = "sales_led"
	ConversionUnclear   = "unclear"
)

// SynthesisResult is the cross-page positioning read, with advisory
// citations into the run's evidence bank. A missing citation is a quality
// signal for gap analysis, never a hard error.
type SynthesisResult struct {
	PositioningStatement    string                   `json:"positioning_statement"`
	PositioningConfidence   string                   `json:"positioning_confidence"` // high|medium|low
	PositioningEvidence     []string                 `json:"positioning_evidence"`
	CategoryClaimed         string                   `json:"category_claimed"`
	CategoryEvidence        []string                 `json:"category_evidence"`
	ValueHierarchy          []ValueHierarchyItem     `json:"value_hierarchy"`
	PrimaryPersona          PersonaProfile           `json:"primary_persona"`
	SecondaryPersonas       []PersonaProfile         `json:"secondary_personas"`
	PainPoints              []PainPoint              `json:"pain_points"`
	NavigationAnalysis      NavigationAnalysis       `json:"navigation_analysis"`
	MessagingVariants       []MessagingVariant       `json:"messaging_variants"`
	CrossPageContradictions []CrossPageContradiction `json:"cross_page_contradictions"`
	OverallConsistencyScore int                      `json:"overall_consistency_score"`
}

// ValueHierarchyItem ranks one value theme. Ordering is by structural
// prominence first; frequency across pages only breaks ties.
type ValueHierarchyItem struct {
	Rank             int      `json:"rank"`
	ValueProposition string   `json:"value_proposition"`
	EmphasisScore    int      `json:"emphasis_score"`
	PageAppearances  []string `json:"page_appearances"`
	EvidenceIDs      []string `json:"evidence_ids"`
}

type PersonaProfile struct {
	Title           string   `json:"title"`
	Seniority       string   `json:"seniority,omitempty"`
	Industry        string   `json:"industry,omitempty"`
	PainPoints      []string `json:"pain_points"`
	DesiredOutcomes []string `json:"desired_outcomes"`
	EvidenceIDs     []string `json:"evidence_ids"`
}

type PainPoint struct {
	Pain           string   `json:"pain"`
	Frequency      int      `json:"frequency"`
	PagesMentioned []string `json:"pages_mentioned"`
	EvidenceIDs    []string `json:"evidence_ids"`
}

type NavigationAnalysis struct {
	PrimaryCTAs          []string `json:"primary_ctas"`
	CTAConsistencyScore  int      `json:"cta_consistency_score"`
	NavPriorityAlignment string   `json:"nav_priority_alignment"`
	ConversionStrategy   string   `json:"conversion_strategy"` // self_serve|sales_led|unclear
}

type MessagingVariant struct {
	Concept          string           `json:"concept"`
	Variants         []VariantMention `json:"variants"`
	ConsistencyScore int              `json:"consistency_score"`
}

type VariantMention struct {
	Text            string `json:"text"`
	PageURL         string `json:"page_url"`
	StructuralLevel string `json:"structural_level"` // h1|h2|h3|body
	EvidenceID      string `json:"evidence_id,omitempty"`
}

// CrossPageContradiction records two pages saying conflicting things about
// the same topic.
type CrossPageContradiction struct {
	Topic    string            `json:"topic"`
	PageA    ContradictionSide `json:"page_a"`
	PageB    ContradictionSide `json:"page_b"`
	Severity string            `json:"severity"` // critical|moderate|minor
}

type ContradictionSide struct {
	URL        string `json:"url"`
	Says       string `json:"says"`
	EvidenceID string `json:"evidence_id,omitempty"`
}
