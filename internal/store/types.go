// Package store provides the lexical BM25 index, the HNSW vector store, and
// passage metadata persistence (SQLite). This is the persistence layer for all
// indexed data.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MetaKind discriminates the MetaValue tagged union.
type MetaKind uint8

const (
	MetaString MetaKind = iota
	MetaNumber
	MetaBool
	MetaStringList
)

// MetaValue is a small tagged-union value for passage metadata.
// Keeping the shape closed (string, number, bool, list-of-string) keeps
// filter predicates type-checkable.
type MetaValue struct {
	Kind MetaKind
	Str  string
	Num  float64
	Bool bool
	List []string
}

// String creates a string-valued MetaValue.
func String(s string) MetaValue { return MetaValue{Kind: MetaString, Str: s} }

// Number creates a number-valued MetaValue.
func Number(n float64) MetaValue { return MetaValue{Kind: MetaNumber, Num: n} }

// Boolean creates a bool-valued MetaValue.
func Boolean(b bool) MetaValue { return MetaValue{Kind: MetaBool, Bool: b} }

// StringList creates a list-of-string MetaValue.
func StringList(ss ...string) MetaValue { return MetaValue{Kind: MetaStringList, List: ss} }

// Equal reports whether two values carry the same kind and payload.
func (v MetaValue) Equal(o MetaValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case MetaString:
		return v.Str == o.Str
	case MetaNumber:
		return v.Num == o.Num
	case MetaBool:
		return v.Bool == o.Bool
	case MetaStringList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != o.List[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Display renders the payload for logging and serialization.
func (v MetaValue) Display() string {
	switch v.Kind {
	case MetaString:
		return v.Str
	case MetaNumber:
		return fmt.Sprintf("%g", v.Num)
	case MetaBool:
		return fmt.Sprintf("%t", v.Bool)
	case MetaStringList:
		return fmt.Sprintf("%v", v.List)
	}
	return ""
}

// metaWire is the JSON wire form of MetaValue. Exactly one field is set.
type metaWire struct {
	Str  *string  `json:"s,omitempty"`
	Num  *float64 `json:"n,omitempty"`
	Bool *bool    `json:"b,omitempty"`
	List []string `json:"l,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v MetaValue) MarshalJSON() ([]byte, error) {
	var w metaWire
	switch v.Kind {
	case MetaString:
		w.Str = &v.Str
	case MetaNumber:
		w.Num = &v.Num
	case MetaBool:
		w.Bool = &v.Bool
	case MetaStringList:
		if v.List == nil {
			w.List = []string{}
		} else {
			w.List = v.List
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var w metaWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Str != nil:
		*v = String(*w.Str)
	case w.Num != nil:
		*v = Number(*w.Num)
	case w.Bool != nil:
		*v = Boolean(*w.Bool)
	default:
		*v = StringList(w.List...)
	}
	return nil
}

// Metadata maps field names to tagged-union values.
type Metadata map[string]MetaValue

// Filter is an exact-match predicate over passage metadata.
// A nil or empty filter matches every passage.
type Filter map[string]MetaValue

// Matches reports whether md satisfies every field of the filter.
func (f Filter) Matches(md Metadata) bool {
	if len(f) == 0 {
		return true
	}
	for k, want := range f {
		got, ok := md[k]
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// Passage is a retrievable unit of document content.
type Passage struct {
	ChunkID   string   // unique chunk identifier
	DocID     string   // parent document identifier
	Content   string   // passage text
	Metadata  Metadata // custom metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LexicalResult is a single BM25 search result.
type LexicalResult struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// LexicalStats describes the global state of the lexical index.
type LexicalStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// VectorResult is a single nearest-neighbor search result.
type VectorResult struct {
	ID    string
	Score float32 // normalized similarity (0-1)
}

// VectorSearcher is the dense-vector search capability the engine consumes.
// The in-process HNSW store implements it; a remote vector database can be
// substituted behind the same interface.
type VectorSearcher interface {
	// Search finds the k nearest neighbors to the query vector.
	Search(ctx context.Context, query []float32, k int, filter Filter) ([]*VectorResult, error)

	// Upsert inserts or replaces vectors with their IDs and metadata.
	Upsert(ctx context.Context, ids []string, vectors [][]float32, metadata []Metadata) error

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored vectors.
	Count() int

	Close() error
}

// PassageStore persists passage content and metadata for enrichment and
// warm restart.
type PassageStore interface {
	SavePassages(ctx context.Context, passages []*Passage) error
	GetPassage(ctx context.Context, chunkID string) (*Passage, error)
	GetPassages(ctx context.Context, chunkIDs []string) ([]*Passage, error)
	DeletePassage(ctx context.Context, chunkID string) error
	AllPassages(ctx context.Context) ([]*Passage, error)
	Close() error
}

// ErrDimensionMismatch indicates a query or stored vector has the wrong width.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
