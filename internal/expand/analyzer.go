package expand

import (
	"strings"

	"github.com/seekly/seekly/internal/store"
)

// AnalyzerConfig configures query analysis.
type AnalyzerConfig struct {
	// ComplexKeywords mark comparative or relational queries as complex.
	ComplexKeywords []string

	// QuestionKeywords mark analytical questions.
	QuestionKeywords []string

	// LongQueryTerms is the term count at which a query counts as complex.
	LongQueryTerms int
}

// DefaultAnalyzerConfig returns the built-in bilingual keyword lists.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		ComplexKeywords: []string{
			"compare", "difference", "versus", "relationship", "impact",
			"vergleich", "unterschied", "zusammenhang",
		},
		QuestionKeywords: []string{
			"why", "how", "explain", "warum", "wieso", "erkläre",
		},
		LongQueryTerms: 12,
	}
}

// Analyzer classifies queries by complexity and question-ness.
// The classification drives both expansion and strategy selection.
type Analyzer struct {
	tokenizer        *store.Tokenizer
	complexKeywords  map[string]struct{}
	questionKeywords map[string]struct{}
	longQueryTerms   int
}

// NewAnalyzer creates an analyzer. The tokenizer should be the same one the
// lexical index uses so term counts line up.
func NewAnalyzer(tokenizer *store.Tokenizer, cfg AnalyzerConfig) *Analyzer {
	if cfg.LongQueryTerms <= 0 {
		cfg.LongQueryTerms = DefaultAnalyzerConfig().LongQueryTerms
	}
	if cfg.ComplexKeywords == nil {
		cfg.ComplexKeywords = DefaultAnalyzerConfig().ComplexKeywords
	}
	if cfg.QuestionKeywords == nil {
		cfg.QuestionKeywords = DefaultAnalyzerConfig().QuestionKeywords
	}
	return &Analyzer{
		tokenizer:        tokenizer,
		complexKeywords:  store.BuildStopWordMap(cfg.ComplexKeywords),
		questionKeywords: store.BuildStopWordMap(cfg.QuestionKeywords),
		longQueryTerms:   cfg.LongQueryTerms,
	}
}

// Analyze classifies a query.
//
// Complexity rules:
//   - any complex keyword, multiple sub-clauses, or a long query => complex
//   - an analytical question or a medium-length query => moderate
//   - otherwise => simple
func (a *Analyzer) Analyze(query string) Analysis {
	terms := a.tokenizer.Terms(query)
	lower := strings.ToLower(query)

	isQuestion := strings.Contains(query, "?")
	for _, w := range strings.Fields(lower) {
		if _, ok := a.questionKeywords[strings.Trim(w, "?!.,")]; ok {
			isQuestion = true
			break
		}
	}

	complexity := ComplexitySimple
	switch {
	case a.hasComplexKeyword(terms) || countClauses(query) > 1 || len(terms) >= a.longQueryTerms:
		complexity = ComplexityComplex
	case isQuestion || len(terms) >= 5:
		complexity = ComplexityModerate
	}

	return Analysis{
		Terms:      terms,
		Complexity: complexity,
		IsQuestion: isQuestion,
	}
}

func (a *Analyzer) hasComplexKeyword(terms []string) bool {
	for _, t := range terms {
		if _, ok := a.complexKeywords[t]; ok {
			return true
		}
	}
	return false
}

// countClauses approximates sub-clause count from conjunctions and
// punctuation.
func countClauses(query string) int {
	clauses := 1
	for _, sep := range []string{";", ",", " and ", " und ", " versus ", " vs "} {
		clauses += strings.Count(strings.ToLower(query), sep)
	}
	return clauses
}
