// internal/stages/annotate-page/prompt.go
package annotatepage

import (
	"fmt"
	"strings"
)

// annotationSchema is the minimum contract on generator output. Element
// shapes are checked loosely; the defaults pass normalizes the rest.
const annotationSchema = `{
	"type": "object",
	"properties": {
		"headlines": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"text": {"type": "string"},
					"level": {"type": "string"},
					"emphasis_score": {"type": "integer"}
				},
				"required": ["text", "level"]
			}
		},
		"value_propositions": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {"claim": {"type": "string"}},
				"required": ["claim"]
			}
		},
		"proof_points": {"type": "array"},
		"ctas": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"text": {"type": "string"},
					"placement": {"type": "string"},
					"action_type": {"type": "string"}
				},
				"required": ["text"]
			}
		},
		"target_audience_signals": {"type": "array"},
		"competitive_positioning": {"type": "array"},
		"pricing_signals": {"type": "array", "items": {"type": "string"}},
		"trust_signals": {"type": "array"},
		"internal_contradictions": {"type": "array"}
	},
	"required": ["headlines", "value_propositions", "proof_points", "ctas"]
}`

func buildPrompt(pageURL, markdown string) string {
	var b strings.Builder

	b.WriteString("You are a positioning analyst. Extract every marketing claim from this web page into structured JSON.\n\n")
	fmt.Fprintf(&b, "PAGE URL: %s\n\nPAGE CONTENT (markdown):\n%s\n\n", pageURL, markdown)

	b.WriteString(`EXTRACTION RULES:
- headlines: every heading with its level (h1|h2|h3) and an emphasis_score 1-10.
  Score by structural weight and placement: an h1 in the hero is 9-10, an h2
  above the fold 6-8, an h3 or footer heading 1-4. Record the page_section
  (hero|features|benefits|social_proof|pricing|footer|other) and raw_text.
- value_propositions: each claimed benefit with claim, raw_text, page_section,
  structural_level (h1|h2|h3|body), specificity_rating 1-5 and
  specificity_reason. 5 = quantified and falsifiable, 1 = pure platitude.
- proof_points: claim, proof_type (statistic|testimonial|case_study|logo|award|certification|none),
  specificity (specific|vague|missing), raw_text, page_section, structural_level.
- ctas: text, placement (hero|navigation|inline|footer), action_type
  (signup|demo|contact|learn_more|pricing|other).
- target_audience_signals: signal, raw_text, explicit (true for "for marketing teams",
  false when only implied by jargon), structural_level.
- competitive_positioning: direct or implied comparisons with claim, raw_text, structural_level.
- pricing_signals: strings describing any pricing information.
- trust_signals: signal, raw_text, signal_type (logo|testimonial|certification|award|press|stat).
- internal_contradictions: statements on THIS page that conflict, with topic,
  statement_a, statement_b, severity (high|medium|low).

Quote raw_text verbatim from the page. Use empty arrays for element types the
page does not contain. Respond with a single JSON object and nothing else.`)

	return b.String()
}
