// Package expand generates query variants to bridge vocabulary mismatch
// between user queries and document terminology. An LLM-backed expander
// produces the richest variants; a rule-based expander serves as the
// always-available fallback.
package expand

// Source identifies what produced a variant.
type Source string

const (
	SourceLLM   Source = "llm"
	SourceRules Source = "rules"
	SourceCache Source = "cache"
)

// Variant is a single generated query variant.
type Variant struct {
	// Text is the variant query text.
	Text string

	// Confidence estimates how likely the variant preserves intent (0-1).
	Confidence float64

	// Source is what generated the variant.
	Source Source
}

// Complexity buckets a query for strategy selection.
type Complexity int

const (
	ComplexitySimple Complexity = iota
	ComplexityModerate
	ComplexityComplex
)

// String implements fmt.Stringer.
func (c Complexity) String() string {
	switch c {
	case ComplexitySimple:
		return "simple"
	case ComplexityModerate:
		return "moderate"
	case ComplexityComplex:
		return "complex"
	default:
		return "unknown"
	}
}

// Analysis is the result of query analysis.
type Analysis struct {
	// Terms are the normalized query terms.
	Terms []string

	// Complexity buckets the query.
	Complexity Complexity

	// IsQuestion reports whether the query is an analytical question.
	IsQuestion bool
}

// Expansion is the full expander output for one query.
type Expansion struct {
	// Original is the untouched input query.
	Original string

	// Variants are generated alternatives, highest confidence first.
	// The original query is never included.
	Variants []Variant

	// Analysis carries the query classification used downstream.
	Analysis Analysis
}

// Queries returns the original query plus all variant texts, in search order.
func (e *Expansion) Queries() []string {
	out := make([]string, 0, len(e.Variants)+1)
	out = append(out, e.Original)
	for _, v := range e.Variants {
		out = append(out, v.Text)
	}
	return out
}
