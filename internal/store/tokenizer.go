package store

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// versionRegex matches technical version tokens (1.2.3, v2.0) that would
// otherwise be shredded by punctuation stripping.
var versionRegex = regexp.MustCompile(`\bv?\d+(?:\.\d+){1,3}\b`)

// wordRegex matches letter/digit/underscore runs after normalization.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// numericRegex matches pure-numeric tokens, which carry no lexical signal.
var numericRegex = regexp.MustCompile(`^\d+$`)

// foldTransformer strips combining marks after NFKD decomposition, folding
// diacritics (Müller -> Muller) so German and English text index uniformly.
var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// MinTokenLength is the minimum length of an indexable token.
const MinTokenLength = 2

// Tokenizer normalizes text into index terms: Unicode-folded, lower-cased,
// stop-word filtered, with technical tokens (version numbers, acronyms)
// retained intact.
type Tokenizer struct {
	stopWords map[string]struct{}
}

// NewTokenizer creates a tokenizer with the given stop-word list.
func NewTokenizer(stopWords []string) *Tokenizer {
	return &Tokenizer{stopWords: BuildStopWordMap(stopWords)}
}

// Terms tokenizes text into normalized terms.
func (t *Tokenizer) Terms(text string) []string {
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		folded = text
	}
	lower := strings.ToLower(folded)

	var tokens []string
	seenSpans := make([][2]int, 0, 4)

	// Retain version tokens whole before general word splitting.
	for _, span := range versionRegex.FindAllStringIndex(lower, -1) {
		tokens = append(tokens, lower[span[0]:span[1]])
		seenSpans = append(seenSpans, [2]int{span[0], span[1]})
	}

	for _, span := range wordRegex.FindAllStringIndex(lower, -1) {
		if overlaps([2]int{span[0], span[1]}, seenSpans) {
			continue
		}
		tok := lower[span[0]:span[1]]
		if len(tok) < MinTokenLength {
			continue
		}
		if numericRegex.MatchString(tok) {
			continue
		}
		if _, stop := t.stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}

	return tokens
}

// overlaps reports whether span intersects any of the retained spans.
func overlaps(span [2]int, retained [][2]int) bool {
	for _, r := range retained {
		if span[0] < r[1] && span[1] > r[0] {
			return true
		}
	}
	return false
}

// BuildStopWordMap converts a slice of stop words to a lookup map.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

// DefaultStopWords is the bilingual (English + German) stop-word list used
// when the configuration does not supply one.
var DefaultStopWords = []string{
	// English
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if",
	"in", "into", "is", "it", "no", "not", "of", "on", "or", "such", "that",
	"the", "their", "then", "there", "these", "they", "this", "to", "was",
	"will", "with", "what", "which", "who", "how",
	// German
	"der", "die", "das", "ein", "eine", "und", "oder", "aber", "ist", "sind",
	"war", "mit", "von", "zu", "im", "auf", "des", "den", "dem", "als",
	"auch", "bei", "nach", "wie", "wird", "werden", "nicht", "sich",
}
