package models

import "time"

// AnalysisResult is the persisted per-session outcome: the synthesis, the
// evidence bank it cites into, and - when gap analysis succeeded - the gap
// fields. Gap fields stay nil when that stage failed; the session still
// completes.
type AnalysisResult struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`

	Synthesis    *SynthesisResult   `json:"synthesis"`
	EvidenceBank *EvidenceBank      `json:"evidence_bank"`
	Gaps         *GapAnalysisResult `json:"gaps,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
