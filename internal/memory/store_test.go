package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "memories.jsonl"))
	require.NoError(t, err)
	return s
}

func TestTokenize(t *testing.T) {
	toks := tokenize("The Quick brown fox and a cat")
	assert.Equal(t, []string{"quick", "brown", "fox", "cat"}, toks)
}

func TestStore_AddAndSearch(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("User likes pizza with mushrooms", "sess-1", nil, 0, "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	_, err = s.Add("Weather today is sunny", "sess-1", nil, 0, "2026-01-01T00:01:00Z")
	require.NoError(t, err)

	results := s.Search("what pizza toppings does the user like", 3)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "pizza")
}

func TestStore_Search_NoMatchReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("User likes pizza", "sess-1", nil, 0, "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	results := s.Search("completely unrelated topic zzz", 3)
	assert.Empty(t, results)
}

func TestStore_Search_ImportanceBoosts(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("User: I love hiking\nAssistant: noted", "sess-1", nil, 0.5, "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	_, err = s.Add("hiking hiking hiking", "sess-1", nil, 0, "2026-01-01T00:01:00Z")
	require.NoError(t, err)

	results := s.Search("hiking", 5)
	require.Len(t, results, 2)
	// a query token counts once however often it repeats, so both records
	// score 1 on "hiking"; the first's 0.5 importance multiplies its score
	// by 1.5, ranking it ahead (1.5 vs 1).
	assert.Len(t, results, 2)
	assert.Equal(t, "User: I love hiking\nAssistant: noted", results[0].Content)
}

func TestStore_Search_TagMatch(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Add("Some unrelated content", "sess-1", []string{"birthday"}, 0, "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	results := s.Search("when is their birthday", 3)
	require.Len(t, results, 1)
}

func TestStore_Search_TopK(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		_, err := s.Add(fmt.Sprintf("apple apple apple record %d", i), "sess-1", nil, 0, "2026-01-01T00:00:00Z")
		require.NoError(t, err)
	}
	results := s.Search("apple", 3)
	assert.Len(t, results, 3)
}

func TestStore_CapacityEviction(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < Capacity+5; i++ {
		_, err := s.Add(fmt.Sprintf("entry %d", i), "sess-1", nil, 0, "2026-01-01T00:00:00Z")
		require.NoError(t, err)
	}
	assert.Equal(t, Capacity, s.Len())
}

func TestStore_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memories.jsonl")

	s1, err := New(path)
	require.NoError(t, err)
	_, err = s1.Add("persisted content", "sess-1", nil, 0, "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	s2, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, 1, s2.Len())
}

func TestStore_CorruptLineSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memories.jsonl")

	s1, err := New(path)
	require.NoError(t, err)
	_, err = s1.Add("good record", "sess-1", nil, 0, "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s2, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, 1, s2.Len())
}
