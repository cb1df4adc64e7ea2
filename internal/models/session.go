package models

import "time"

// SessionStatus is the lifecycle state of an analysis session.
// Transitions: pending -> processing -> {complete, failed}. Terminal states
// never change; a new analysis requires a new session.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionProcessing SessionStatus = "processing"
	SessionComplete   SessionStatus = "complete"
	SessionFailed     SessionStatus = "failed"
)

// PageStatus is the per-URL lifecycle state within a session.
// Transitions only move forward: pending -> scraping -> extracting -> {complete, failed}.
type PageStatus string

const (
	PagePending    PageStatus = "pending"
	PageScraping   PageStatus = "scraping"
	PageExtracting PageStatus = "extracting"
	PageComplete   PageStatus = "complete"
	PageFailed     PageStatus = "failed"
)

// Session is one requested analysis over a fixed set of URLs for one company.
type Session struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Name        string        `json:"name,omitempty"`
	CompanyName string        `json:"company_name"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Page tracks fetch/annotation state for a single URL of a session.
// RawMarkdown and Annotation stay empty until the corresponding phase ran.
type Page struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	URL          string          `json:"url"`
	PageType     string          `json:"page_type,omitempty"`
	RawMarkdown  string          `json:"raw_markdown,omitempty"`
	Annotation   *PageAnnotation `json:"annotation,omitempty"`
	Status       PageStatus      `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ConfirmedPositioning holds the user-edited positioning saved after
// reviewing a completed analysis.
type ConfirmedPositioning struct {
	ID                   string    `json:"id"`
	SessionID            string    `json:"session_id"`
	PositioningStatement string    `json:"positioning_statement,omitempty"`
	Category             string    `json:"category,omitempty"`
	PrimaryValueProp     string    `json:"primary_value_prop,omitempty"`
	TargetPersona        string    `json:"target_persona,omitempty"`
	KeyDifferentiator    string    `json:"key_differentiator,omitempty"`
	ProofPoints          []string  `json:"proof_points,omitempty"`
	ConfirmedAt          time.Time `json:"confirmed_at"`
}
