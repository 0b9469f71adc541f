package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPassageStore(t *testing.T) *SQLitePassageStore {
	t.Helper()
	s, err := NewSQLitePassageStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteSaveAndGetPassage(t *testing.T) {
	// Given a saved passage with metadata
	s := newTestPassageStore(t)
	ctx := context.Background()
	p := &Passage{
		ChunkID: "c1",
		DocID:   "d1",
		Content: "the cat sat",
		Metadata: Metadata{
			"lang":  String("en"),
			"score": Number(0.5),
			"tags":  StringList("animals", "short"),
		},
	}
	require.NoError(t, s.SavePassages(ctx, []*Passage{p}))

	// When reading it back
	got, err := s.GetPassage(ctx, "c1")

	// Then all fields round-trip, including the tagged-union metadata
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.ChunkID)
	assert.Equal(t, "d1", got.DocID)
	assert.Equal(t, "the cat sat", got.Content)
	assert.True(t, got.Metadata["lang"].Equal(String("en")))
	assert.True(t, got.Metadata["score"].Equal(Number(0.5)))
	assert.True(t, got.Metadata["tags"].Equal(StringList("animals", "short")))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteGetMissingPassageReturnsNil(t *testing.T) {
	s := newTestPassageStore(t)

	got, err := s.GetPassage(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteGetPassagesPreservesOrderAndSkipsMissing(t *testing.T) {
	// Given three saved passages
	s := newTestPassageStore(t)
	ctx := context.Background()
	require.NoError(t, s.SavePassages(ctx, []*Passage{
		{ChunkID: "c1", DocID: "d1", Content: "one"},
		{ChunkID: "c2", DocID: "d1", Content: "two"},
		{ChunkID: "c3", DocID: "d2", Content: "three"},
	}))

	// When fetching in a caller-chosen order with an unknown ID mixed in
	got, err := s.GetPassages(ctx, []string{"c3", "missing", "c1"})

	// Then the result follows the requested order and skips the unknown ID
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c3", got[0].ChunkID)
	assert.Equal(t, "c1", got[1].ChunkID)
}

func TestSQLiteSaveUpsertsExisting(t *testing.T) {
	// Given a saved passage
	s := newTestPassageStore(t)
	ctx := context.Background()
	require.NoError(t, s.SavePassages(ctx, []*Passage{
		{ChunkID: "c1", DocID: "d1", Content: "before"},
	}))

	// When saving the same chunk ID again
	require.NoError(t, s.SavePassages(ctx, []*Passage{
		{ChunkID: "c1", DocID: "d1", Content: "after", UpdatedAt: time.Now().Add(time.Hour)},
	}))

	// Then the stored content is replaced, not duplicated
	all, err := s.AllPassages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "after", all[0].Content)
}

func TestSQLiteDeletePassage(t *testing.T) {
	s := newTestPassageStore(t)
	ctx := context.Background()
	require.NoError(t, s.SavePassages(ctx, []*Passage{
		{ChunkID: "c1", DocID: "d1", Content: "one"},
	}))

	require.NoError(t, s.DeletePassage(ctx, "c1"))

	got, err := s.GetPassage(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is a no-op.
	require.NoError(t, s.DeletePassage(ctx, "c1"))
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	// Given a file-backed store with saved passages
	path := filepath.Join(t.TempDir(), "passages.db")
	s, err := NewSQLitePassageStore(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.SavePassages(ctx, []*Passage{
		{ChunkID: "c1", DocID: "d1", Content: "survives restart", Metadata: Metadata{"lang": String("de")}},
	}))
	require.NoError(t, s.Close())

	// When reopening the same path
	s2, err := NewSQLitePassageStore(path)
	require.NoError(t, err)
	defer s2.Close()

	// Then the passage is still there for index rebuild
	all, err := s2.AllPassages(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "survives restart", all[0].Content)
	assert.True(t, all[0].Metadata["lang"].Equal(String("de")))
}

func TestSQLiteRejectsMissingChunkID(t *testing.T) {
	s := newTestPassageStore(t)

	err := s.SavePassages(context.Background(), []*Passage{{DocID: "d1", Content: "no id"}})

	assert.Error(t, err)
}

func TestSQLiteClosedStoreRejectsOperations(t *testing.T) {
	s, err := NewSQLitePassageStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Error(t, s.SavePassages(context.Background(), []*Passage{{ChunkID: "c1"}}))
	_, err = s.GetPassage(context.Background(), "c1")
	assert.Error(t, err)
	assert.NoError(t, s.Close())
}
