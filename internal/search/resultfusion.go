package search

import (
	"sort"
	"strings"

	"github.com/seekly/seekly/internal/store"
)

// ResultFuser merges candidate lists from multiple query variants and shapes
// the final list: deduplication, a bounded quality bonus, and a per-document
// diversity cap.
type ResultFuser struct {
	// QualityField names the metadata field carrying a quality signal in
	// [0,1]. Empty disables the bonus.
	QualityField string

	// QualityCap bounds the bonus a perfect quality signal can add.
	QualityCap float64

	// PerDocCap limits passages per source document in the final list.
	PerDocCap int
}

// NewResultFuser creates a ResultFuser with the given shaping parameters.
func NewResultFuser(qualityField string, qualityCap float64, perDocCap int) *ResultFuser {
	if perDocCap <= 0 {
		perDocCap = 3
	}
	return &ResultFuser{
		QualityField: qualityField,
		QualityCap:   qualityCap,
		PerDocCap:    perDocCap,
	}
}

// Merge combines candidate lists from multiple query variants. Duplicated
// chunk IDs keep the occurrence with the highest final score; retrieval
// flags (InBothLists, matched terms) merge so no signal is lost.
func (r *ResultFuser) Merge(lists ...[]*Candidate) []*Candidate {
	byID := make(map[string]*Candidate)
	for _, list := range lists {
		for _, c := range list {
			existing, ok := byID[c.ChunkID]
			if !ok {
				clone := *c
				byID[c.ChunkID] = &clone
				continue
			}
			if c.FinalScore > existing.FinalScore {
				terms := existing.MatchedTerms
				inBoth := existing.InBothLists
				*existing = *c
				existing.InBothLists = existing.InBothLists || inBoth
				if len(existing.MatchedTerms) == 0 {
					existing.MatchedTerms = terms
				}
				continue
			}
			existing.InBothLists = existing.InBothLists || c.InBothLists
			if len(existing.MatchedTerms) == 0 {
				existing.MatchedTerms = c.MatchedTerms
			}
		}
	}

	merged := make([]*Candidate, 0, len(byID))
	for _, c := range byID {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].FinalScore != merged[j].FinalScore {
			return merged[i].FinalScore > merged[j].FinalScore
		}
		return compareCandidates(merged[i], merged[j])
	})
	return merged
}

// Content length band rewarded by the quality signal. Passages inside the
// band read as complete thoughts; shorter ones are usually fragments.
const (
	qualityLengthMin = 200
	qualityLengthMax = 1200
)

// ApplyQualityBonus adds a bounded content-quality bonus to each candidate:
// length inside the target band and term overlap with the primary query raise
// the signal, a trailing mid-sentence cut lowers it, and a curated quality
// metadata field (when present) blends in. The bonus is relative to the base
// score and can never exceed QualityCap of it, so retrieval ranking still
// dominates.
func (r *ResultFuser) ApplyQualityBonus(candidates []*Candidate, queryTerms []string) {
	if r.QualityCap <= 0 {
		return
	}
	for _, c := range candidates {
		q := r.qualitySignal(c, queryTerms)
		if q <= 0 {
			continue
		}
		c.FinalScore += r.QualityCap * q * c.FinalScore
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FinalScore != candidates[j].FinalScore {
			return candidates[i].FinalScore > candidates[j].FinalScore
		}
		return compareCandidates(candidates[i], candidates[j])
	})
}

func (r *ResultFuser) qualitySignal(c *Candidate, queryTerms []string) float64 {
	q := 0.4*lengthBandScore(len(c.Content)) + 0.6*termOverlap(c.Content, queryTerms)
	if endsMidSentence(c.Content) {
		q -= 0.25
	}
	if r.QualityField != "" {
		if v, ok := c.Metadata[r.QualityField]; ok && v.Kind == store.MetaNumber {
			q = (q + clamp01(v.Num)) / 2
		}
	}
	return clamp01(q)
}

func lengthBandScore(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n < qualityLengthMin:
		return float64(n) / qualityLengthMin
	case n <= qualityLengthMax:
		return 1
	default:
		return qualityLengthMax / float64(n)
	}
}

// termOverlap is the fraction of distinct query terms appearing in the
// content. Substring matching on the lowercased content keeps inflected
// forms ("cats" for "cat") counting.
func termOverlap(content string, queryTerms []string) float64 {
	if len(queryTerms) == 0 || content == "" {
		return 0
	}
	lower := strings.ToLower(content)
	seen := make(map[string]bool, len(queryTerms))
	matched := 0
	for _, term := range queryTerms {
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		if strings.Contains(lower, term) {
			matched++
		}
	}
	if len(seen) == 0 {
		return 0
	}
	return float64(matched) / float64(len(seen))
}

func endsMidSentence(content string) bool {
	trimmed := strings.TrimRight(content, " \t\n")
	if trimmed == "" {
		return false
	}
	last := trimmed[len(trimmed)-1]
	switch last {
	case '.', '!', '?', ':', ';', '"', '\'', ')', ']', '`':
		return false
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Diversify walks the ranked list and caps passages per source document,
// returning at most topK results. Skipped passages make room for other
// documents further down the ranking.
func (r *ResultFuser) Diversify(candidates []*Candidate, topK int) []*Candidate {
	if topK <= 0 {
		return []*Candidate{}
	}
	perDoc := make(map[string]int)
	out := make([]*Candidate, 0, topK)
	for _, c := range candidates {
		if c.DocID != "" && perDoc[c.DocID] >= r.PerDocCap {
			continue
		}
		perDoc[c.DocID]++
		out = append(out, c)
		if len(out) == topK {
			break
		}
	}
	return out
}
