package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// BM25Config configures the lexical index.
type BM25Config struct {
	// K1 is the term-frequency saturation parameter (default: 1.5).
	K1 float64

	// B is the length-normalization parameter (default: 0.75).
	B float64

	// StopWords is the stop-word list for tokenization.
	StopWords []string
}

// DefaultBM25Config returns the default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:        1.5,
		B:         0.75,
		StopWords: DefaultStopWords,
	}
}

// lexicalDoc is the per-document bookkeeping owned by the index.
// Immutable once indexed except for removal.
type lexicalDoc struct {
	chunkID  string
	docID    string
	length   int // total term count
	termFreq map[string]int
	metadata Metadata
}

// BM25Index is an in-memory inverted index with BM25 scoring.
//
// It owns per-term document frequencies and per-document term frequencies.
// The invariant avgDocLength == totalLength / len(docs) is re-established on
// every Add and Remove; scoring correctness depends on it.
type BM25Index struct {
	mu sync.RWMutex

	cfg       BM25Config
	tokenizer *Tokenizer

	docs        map[string]*lexicalDoc // chunkID -> doc
	docFreq     map[string]int         // term -> number of docs containing it
	totalLength int
	avgDocLen   float64
}

// NewBM25Index creates an empty lexical index.
func NewBM25Index(cfg BM25Config) *BM25Index {
	if cfg.K1 <= 0 {
		cfg.K1 = 1.5
	}
	if cfg.B <= 0 {
		cfg.B = 0.75
	}
	if cfg.StopWords == nil {
		cfg.StopWords = DefaultStopWords
	}
	return &BM25Index{
		cfg:       cfg,
		tokenizer: NewTokenizer(cfg.StopWords),
		docs:      make(map[string]*lexicalDoc),
		docFreq:   make(map[string]int),
	}
}

// Tokenizer exposes the index's tokenizer so queries are normalized with the
// same rules as documents.
func (b *BM25Index) Tokenizer() *Tokenizer {
	return b.tokenizer
}

// Add indexes the given passages. An existing chunk ID is replaced.
func (b *BM25Index) Add(passages []*Passage) error {
	if len(passages) == 0 {
		return nil
	}

	// Tokenization happens outside the lock.
	prepared := make([]*lexicalDoc, 0, len(passages))
	for _, p := range passages {
		if p.ChunkID == "" {
			return fmt.Errorf("passage missing chunk ID")
		}
		terms := b.tokenizer.Terms(p.Content)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		prepared = append(prepared, &lexicalDoc{
			chunkID:  p.ChunkID,
			docID:    p.DocID,
			length:   len(terms),
			termFreq: tf,
			metadata: p.Metadata,
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, doc := range prepared {
		if old, exists := b.docs[doc.chunkID]; exists {
			b.removeLocked(old)
		}
		b.docs[doc.chunkID] = doc
		b.totalLength += doc.length
		for term := range doc.termFreq {
			b.docFreq[term]++
		}
	}
	b.recomputeAvgLocked()

	return nil
}

// Remove deletes a document from the index, decrementing the document
// frequency of every distinct term it contributed. Returns false if the
// chunk ID is not indexed.
func (b *BM25Index) Remove(chunkID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, ok := b.docs[chunkID]
	if !ok {
		return false
	}
	b.removeLocked(doc)
	b.recomputeAvgLocked()
	return true
}

// removeLocked unlinks doc from all frequency maps. Caller holds the lock.
func (b *BM25Index) removeLocked(doc *lexicalDoc) {
	delete(b.docs, doc.chunkID)
	b.totalLength -= doc.length
	for term := range doc.termFreq {
		if b.docFreq[term] <= 1 {
			delete(b.docFreq, term)
		} else {
			b.docFreq[term]--
		}
	}
}

// recomputeAvgLocked re-establishes the average-document-length invariant.
func (b *BM25Index) recomputeAvgLocked() {
	if len(b.docs) == 0 {
		b.totalLength = 0
		b.avgDocLen = 0
		return
	}
	b.avgDocLen = float64(b.totalLength) / float64(len(b.docs))
}

// matchedDoc carries the per-candidate state needed to score outside the lock.
type matchedDoc struct {
	chunkID string
	length  int
	tf      map[string]int // query term -> frequency in doc
}

// Search scores the query against all indexed documents and returns the topK
// highest-scoring results. Documents with no matching query term are excluded.
// The filter is applied as an exact-match metadata predicate before scoring.
// An empty index returns an empty result, never an error.
func (b *BM25Index) Search(ctx context.Context, query string, topK int, filter Filter) ([]*LexicalResult, error) {
	if topK <= 0 {
		return []*LexicalResult{}, nil
	}
	queryTerms := b.tokenizer.Terms(query)
	if len(queryTerms) == 0 {
		return []*LexicalResult{}, nil
	}
	// Deduplicate query terms; BM25 sums per distinct matching term.
	seen := make(map[string]struct{}, len(queryTerms))
	terms := queryTerms[:0]
	for _, t := range queryTerms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}

	// Gather candidate state under the read lock; score afterwards.
	b.mu.RLock()
	n := len(b.docs)
	if n == 0 {
		b.mu.RUnlock()
		return []*LexicalResult{}, nil
	}
	avgLen := b.avgDocLen
	df := make(map[string]int, len(terms))
	for _, t := range terms {
		df[t] = b.docFreq[t]
	}
	var matched []matchedDoc
	for _, doc := range b.docs {
		if !filter.Matches(doc.metadata) {
			continue
		}
		var tf map[string]int
		for _, t := range terms {
			if c, ok := doc.termFreq[t]; ok {
				if tf == nil {
					tf = make(map[string]int, len(terms))
				}
				tf[t] = c
			}
		}
		if tf == nil {
			continue // zero matching terms: excluded, not scored 0
		}
		matched = append(matched, matchedDoc{chunkID: doc.chunkID, length: doc.length, tf: tf})
	}
	b.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]*LexicalResult, 0, len(matched))
	for _, m := range matched {
		var score float64
		matchedTerms := make([]string, 0, len(m.tf))
		for term, tf := range m.tf {
			idf := math.Log((float64(n) - float64(df[term]) + 0.5) / (float64(df[term]) + 0.5))
			norm := 1 - b.cfg.B + b.cfg.B*(float64(m.length)/avgLen)
			score += idf * (float64(tf) * (b.cfg.K1 + 1)) / (float64(tf) + b.cfg.K1*norm)
			matchedTerms = append(matchedTerms, term)
		}
		sort.Strings(matchedTerms)
		results = append(results, &LexicalResult{
			ChunkID:      m.chunkID,
			Score:        score,
			MatchedTerms: matchedTerms,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Contains reports whether a chunk ID is indexed.
func (b *BM25Index) Contains(chunkID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.docs[chunkID]
	return ok
}

// Stats returns a snapshot of the global lexical statistics.
func (b *BM25Index) Stats() LexicalStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return LexicalStats{
		DocumentCount: len(b.docs),
		TermCount:     len(b.docFreq),
		AvgDocLength:  b.avgDocLen,
	}
}

// DocFreq returns the document frequency of a term. Exposed for invariant
// checks and diagnostics.
func (b *BM25Index) DocFreq(term string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.docFreq[term]
}
