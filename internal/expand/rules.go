package expand

import (
	"strings"
)

// Rule-based variant confidences. Synonym substitution preserves intent
// well; keyword reduction loses nuance.
const (
	synonymConfidence = 0.75
	keywordConfidence = 0.6
)

// RuleExpander generates variants without any external service. It is the
// fallback path when the LLM expander is disabled or failing, so it must
// never return an error.
type RuleExpander struct {
	maxSubstitutions int
}

// NewRuleExpander creates a rule-based expander.
func NewRuleExpander() *RuleExpander {
	return &RuleExpander{maxSubstitutions: 2}
}

// Expand generates rule-based variants for the analyzed query.
func (r *RuleExpander) Expand(query string, analysis Analysis) []Variant {
	var variants []Variant

	variants = append(variants, r.synonymVariants(query)...)

	// Questions also get a bare-keyword variant, which matches documents
	// that state the answer without restating the question.
	if analysis.IsQuestion && len(analysis.Terms) > 0 {
		keywords := strings.Join(analysis.Terms, " ")
		if !strings.EqualFold(keywords, query) {
			variants = append(variants, Variant{
				Text:       keywords,
				Confidence: keywordConfidence,
				Source:     SourceRules,
			})
		}
	}

	return variants
}

// synonymVariants substitutes known synonyms into the query, one term at a
// time so each variant stays close to the original.
func (r *RuleExpander) synonymVariants(query string) []Variant {
	words := strings.Fields(query)
	var variants []Variant

	substituted := 0
	for i, word := range words {
		if substituted >= r.maxSubstitutions {
			break
		}
		key := strings.ToLower(strings.Trim(word, "?!.,;:"))
		syns := synonymsFor(key)
		if len(syns) == 0 {
			continue
		}
		substituted++

		// One variant per substituted term, using its best synonym.
		replaced := make([]string, len(words))
		copy(replaced, words)
		replaced[i] = syns[0]
		variants = append(variants, Variant{
			Text:       strings.Join(replaced, " "),
			Confidence: synonymConfidence,
			Source:     SourceRules,
		})
	}

	return variants
}
