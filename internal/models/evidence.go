package models

import (
	"fmt"
	"strings"
)

// Evidence id prefixes. Every bank entry gets a kind-prefixed sequential id
// (Q1, S3, CV2...); downstream citations reference these ids.
const (
	QuoteIDPrefix = "Q"
	StatIDPrefix  = "S"
	VoiceIDPrefix = "CV"
)

// MaxQuoteLength caps verbatim quotes so citations stay scannable.
const MaxQuoteLength = 150

// Quote is a short verbatim excerpt tagged with where it appears on the page.
type Quote struct {
	ID                string `json:"id"`
	Text              string `json:"text"`
	PageURL           string `json:"page_url"`
	StructuralContext string `json:"structural_context"` // h1|h2|h3|body|testimonial|cta
	Category          string `json:"category"`           // value_prop|differentiation|proof|audience|pain|trust|pricing
	SpecificityRating int    `json:"specificity_rating"` // 1-5
}

// StatClaim is a numeric or statistical claim with a verifiability tag.
type StatClaim struct {
	ID          string `json:"id"`
	Claim       string `json:"claim"`
	PageURL     string `json:"page_url"`
	Specificity string `json:"specificity"` // specific|vague|unverifiable
	Context     string `json:"context"`
}

// CustomerVoice is a testimonial or customer quote rated by attribution
// quality: named person/company = high, company only = medium, anonymous = low.
type CustomerVoice struct {
	ID          string `json:"id"`
	Quote       string `json:"quote"`
	Attribution string `json:"attribution,omitempty"`
	PageURL     string `json:"page_url"`
	Credibility string `json:"credibility"` // high|medium|low
}

// EvidenceBank is the per-run ledger of citable evidence. It is built once
// after annotation and treated as immutable for the rest of the run.
type EvidenceBank struct {
	Quotes            []Quote         `json:"quotes"`
	StatisticalClaims []StatClaim     `json:"statistical_claims"`
	CustomerVoice     []CustomerVoice `json:"customer_voice"`
}

// Len returns the total number of entries across all three ledgers.
func (b *EvidenceBank) Len() int {
	return len(b.Quotes) + len(b.StatisticalClaims) + len(b.CustomerVoice)
}

// Has reports whether id resolves to an entry in the bank.
func (b *EvidenceBank) Has(id string) bool {
	if b == nil || id == "" {
		return false
	}
	// CV before Q/S: "CV" ids must not be mistaken for anything else.
	if strings.HasPrefix(id, VoiceIDPrefix) {
		for _, v := range b.CustomerVoice {
			if v.ID == id {
				return true
			}
		}
		return false
	}
	if strings.HasPrefix(id, QuoteIDPrefix) {
		for _, q := range b.Quotes {
			if q.ID == id {
				return true
			}
		}
		return false
	}
	if strings.HasPrefix(id, StatIDPrefix) {
		for _, s := range b.StatisticalClaims {
			if s.ID == id {
				return true
			}
		}
	}
	return false
}

// FormatCitation renders an evidence id as a bracketed inline citation,
// e.g. [Q7: "AI-powered brand voice" - body].
func (b *EvidenceBank) FormatCitation(id string) string {
	if strings.HasPrefix(id, VoiceIDPrefix) {
		for _, v := range b.CustomerVoice {
			if v.ID == id {
				attr := v.Attribution
				if attr == "" {
					attr = "anonymous"
				}
				return fmt.Sprintf("[%s: %q - %s]", v.ID, truncate(v.Quote, 50), attr)
			}
		}
	} else if strings.HasPrefix(id, QuoteIDPrefix) {
		for _, q := range b.Quotes {
			if q.ID == id {
				return fmt.Sprintf("[%s: %q - %s]", q.ID, truncate(q.Text, 50), q.StructuralContext)
			}
		}
	} else if strings.HasPrefix(id, StatIDPrefix) {
		for _, s := range b.StatisticalClaims {
			if s.ID == id {
				return fmt.Sprintf("[%s: %s - %s]", s.ID, s.Claim, s.Specificity)
			}
		}
	}
	return fmt.Sprintf("[%s: not found]", id)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
