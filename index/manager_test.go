// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package index

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/storage"
	bstore "github.com/poiesic/retrievit/storage/badger"
	"github.com/poiesic/retrievit/token"
)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	tok, err := token.NewTokenizer(token.DefaultConfig())
	require.NoError(t, err)
	m, err := NewManager(tok, opts...)
	require.NoError(t, err)
	return m
}

func newTestManagerWithStore(t *testing.T) (*Manager, storage.BlobStore) {
	t.Helper()
	store, err := bstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return newTestManager(t, WithBlobStore(store)), store
}

func TestNewManagerRequiresTokenizer(t *testing.T) {
	_, err := NewManager(nil)
	require.ErrorIs(t, err, ErrTokenizerRequired)
}

func TestAddDocumentsAndSearch(t *testing.T) {
	m := newTestManager(t)

	docs := []string{
		"Databases store structured records on disk",
		"The weather today is sunny with scattered clouds",
		"Relational databases use tables and indexes",
	}
	ids := []string{"doc-1", "doc-2", "doc-3"}

	res, err := m.AddDocuments("kb", docs, ids, false)
	require.NoError(t, err)
	assert.Equal(t, "kb", res.Namespace)
	assert.Equal(t, 3, res.DocumentCount)
	assert.Zero(t, res.FilteredCount)
	assert.False(t, res.Appended)

	sr, err := m.Search("kb", "database records", 10)
	require.NoError(t, err)
	assert.Equal(t, 3, sr.TotalDocs)
	require.NotEmpty(t, sr.Matches)
	assert.Equal(t, "doc-1", sr.Matches[0].ID)

	for i, match := range sr.Matches {
		assert.Greater(t, match.Score, 0.0)
		assert.Equal(t, i+1, match.Rank)
		assert.Equal(t, "kb", match.Namespace)
		if i > 0 {
			assert.GreaterOrEqual(t, sr.Matches[i-1].Score, match.Score)
		}
	}
}

func TestAddDocumentsReplaceIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	docs := []string{"first document text", "second document text"}
	ids := []string{"a", "b"}

	for range 3 {
		res, err := m.AddDocuments("ns", docs, ids, false)
		require.NoError(t, err)
		assert.Equal(t, 2, res.DocumentCount)
	}

	stats, err := m.Stats("ns")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount)
}

func TestAddDocumentsAppend(t *testing.T) {
	m := newTestManager(t)

	_, err := m.AddDocuments("ns",
		[]string{"original entry about planets", "unrelated entry about oceans"},
		[]string{"a", "filler"}, false)
	require.NoError(t, err)

	res, err := m.AddDocuments("ns", []string{"additional entry about moons"}, []string{"b"}, true)
	require.NoError(t, err)
	assert.True(t, res.Appended)
	assert.Equal(t, 3, res.DocumentCount)

	sr, err := m.Search("ns", "planets", 10)
	require.NoError(t, err)
	require.Len(t, sr.Matches, 1)
	assert.Equal(t, "a", sr.Matches[0].ID)
}

func TestAddDocumentsAppendToMissingNamespaceCreatesIt(t *testing.T) {
	m := newTestManager(t)

	res, err := m.AddDocuments("fresh", []string{"some searchable text"}, []string{"a"}, true)
	require.NoError(t, err)
	// Nothing existed to append to, so this is a plain create.
	assert.False(t, res.Appended)
	assert.Equal(t, 1, res.DocumentCount)
}

func TestAddDocumentsFiltersEmptyDocuments(t *testing.T) {
	m := newTestManager(t)

	docs := []string{
		"meaningful searchable content",
		"!!! ??? ...",
		"the of and",
		"volcano eruption reports",
		"tidal wave measurements",
	}
	ids := []string{"keep", "drop-1", "drop-2", "f1", "f2"}

	res, err := m.AddDocuments("ns", docs, ids, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.DocumentCount)
	assert.Equal(t, 2, res.FilteredCount)

	sr, err := m.Search("ns", "searchable content", 10)
	require.NoError(t, err)
	require.Len(t, sr.Matches, 1)
	assert.Equal(t, "keep", sr.Matches[0].ID)
}

func TestAddDocumentsAllFiltered(t *testing.T) {
	m := newTestManager(t)

	_, err := m.AddDocuments("ns", []string{"...", "the and or"}, []string{"a", "b"}, false)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestAddDocumentsValidation(t *testing.T) {
	m := newTestManager(t)

	_, err := m.AddDocuments("", []string{"text"}, []string{"a"}, false)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = m.AddDocuments("ns", []string{"one", "two"}, []string{"a"}, false)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = m.AddDocuments("ns", nil, nil, false)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSearchUnknownNamespace(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Search("nowhere", "query", 10)
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "not_found", core.Kind(err))
}

func TestSearchEmptyQuery(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AddDocuments("ns", []string{"document text here"}, []string{"a"}, false)
	require.NoError(t, err)

	_, err = m.Search("ns", "   ", 10)
	require.ErrorIs(t, err, core.ErrEmptyQuery)

	// Stopwords and punctuation tokenize to nothing.
	_, err = m.Search("ns", "the of and!", 10)
	require.ErrorIs(t, err, core.ErrEmptyQuery)
}

func TestSearchTopKLimit(t *testing.T) {
	m := newTestManager(t)

	// Every document shares "keyword" but carries unique vocabulary, which
	// keeps the epsilon idf floor positive.
	variants := []string{
		"keyword anchors maritime navigation charts",
		"keyword drives hydraulic piston assemblies",
		"keyword colors impressionist painting styles",
		"keyword shapes glacier erosion valleys",
		"keyword flavors fermented chili pastes",
		"keyword powers orbital telemetry relays",
	}
	docs := make([]string, len(variants))
	ids := make([]string, len(variants))
	for i, text := range variants {
		docs[i] = text
		ids[i] = core.IDFromContent(text)
	}
	_, err := m.AddDocuments("ns", docs, ids, false)
	require.NoError(t, err)

	sr, err := m.Search("ns", "keyword", 2)
	require.NoError(t, err)
	assert.Len(t, sr.Matches, 2)

	_, err = m.Search("ns", "keyword", 0)
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSearchExcludesZeroScores(t *testing.T) {
	m := newTestManager(t)

	docs := []string{
		"quantum computing with entangled qubits",
		"gardening tips for tomato seedlings",
		"bread baking hydration ratios",
	}
	_, err := m.AddDocuments("ns", docs, []string{"q", "g", "b"}, false)
	require.NoError(t, err)

	sr, err := m.Search("ns", "qubits", 10)
	require.NoError(t, err)
	require.Len(t, sr.Matches, 1)
	assert.Equal(t, "q", sr.Matches[0].ID)
}

func TestSearchCommonTermsScenario(t *testing.T) {
	m := newTestManager(t)

	docs := []string{
		"The cat sat on the mat",
		"The dog played in the yard",
		"Cats and dogs are friends",
	}
	_, err := m.AddDocuments("pets", docs, []string{"d1", "d2", "d3"}, false)
	require.NoError(t, err)

	// Both query terms appear in a majority-adjacent share of the corpus,
	// so their idfs are floored rather than dropped. The document matching
	// both terms still wins.
	sr, err := m.Search("pets", "cat dog", 10)
	require.NoError(t, err)
	require.Len(t, sr.Matches, 3)
	assert.Equal(t, "d3", sr.Matches[0].ID)
	assert.Greater(t, sr.Matches[0].Score, sr.Matches[1].Score)
}

func TestUpdateDocument(t *testing.T) {
	m := newTestManager(t)

	docs := []string{
		"article about sailing boats",
		"article about mountain hiking",
		"article about desert photography",
	}
	_, err := m.AddDocuments("ns", docs, []string{"a", "b", "c"}, false)
	require.NoError(t, err)

	res, err := m.UpdateDocument("ns", "b", "article about sailing regattas")
	require.NoError(t, err)
	assert.Equal(t, 3, res.DocumentCount)

	sr, err := m.Search("ns", "hiking", 10)
	require.NoError(t, err)
	assert.Empty(t, sr.Matches)

	sr, err = m.Search("ns", "regattas", 10)
	require.NoError(t, err)
	require.Len(t, sr.Matches, 1)
	assert.Equal(t, "b", sr.Matches[0].ID)
}

func TestUpdateDocumentNotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.AddDocuments("ns", []string{"some text"}, []string{"a"}, false)
	require.NoError(t, err)

	_, err = m.UpdateDocument("ns", "missing", "new text")
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = m.UpdateDocument("other", "a", "new text")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestRemoveDocument(t *testing.T) {
	m := newTestManager(t)

	docs := []string{"first topic text", "second topic text"}
	_, err := m.AddDocuments("ns", docs, []string{"a", "b"}, false)
	require.NoError(t, err)

	res, err := m.RemoveDocument("ns", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, res.DocumentCount)
	assert.False(t, res.Cleared)

	_, err = m.RemoveDocument("ns", "a")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestRemoveLastDocumentClearsNamespace(t *testing.T) {
	m := newTestManager(t)

	_, err := m.AddDocuments("ns", []string{"only document"}, []string{"a"}, false)
	require.NoError(t, err)

	res, err := m.RemoveDocument("ns", "a")
	require.NoError(t, err)
	assert.True(t, res.Cleared)

	_, err = m.Search("ns", "document", 10)
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, m.Namespaces())
}

func TestStats(t *testing.T) {
	m := newTestManager(t)

	docs := []string{"cats chase small mice", "dogs chase cats"}
	_, err := m.AddDocuments("ns", docs, []string{"a", "b"}, false)
	require.NoError(t, err)

	stats, err := m.Stats("ns")
	require.NoError(t, err)
	assert.Equal(t, "ns", stats.Namespace)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Greater(t, stats.AvgDocLength, 0.0)

	_, err = m.Stats("missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestClearNamespaceAndListing(t *testing.T) {
	m := newTestManager(t)

	for _, ns := range []string{"zeta", "alpha", "mid"} {
		_, err := m.AddDocuments(ns, []string{"namespace content here"}, []string{"a"}, false)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, m.Namespaces())

	require.NoError(t, m.ClearNamespace("mid"))
	assert.Equal(t, []string{"alpha", "zeta"}, m.Namespaces())

	require.ErrorIs(t, m.ClearNamespace("mid"), core.ErrNotFound)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, store := newTestManagerWithStore(t)
	ctx := context.Background()

	docs := []string{
		"distributed consensus with raft leaders",
		"log compaction keeps snapshots small",
		"heartbeats detect failed followers",
	}
	_, err := m.AddDocuments("cluster", docs, []string{"a", "b", "c"}, false)
	require.NoError(t, err)

	before, err := m.Search("cluster", "raft snapshots", 10)
	require.NoError(t, err)

	saved, err := m.Save(ctx, "cluster")
	require.NoError(t, err)
	assert.Equal(t, "bm25_indices/cluster", saved.Key)
	assert.Equal(t, 3, saved.DocumentCount)
	assert.Greater(t, saved.SizeBytes, 0)

	// Restore into a fresh manager backed by the same store.
	tok, err := token.NewTokenizer(token.DefaultConfig())
	require.NoError(t, err)
	m2, err := NewManager(tok, WithBlobStore(store))
	require.NoError(t, err)

	loaded, err := m2.Load(ctx, "cluster")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.DocumentCount)

	after, err := m2.Search("cluster", "raft snapshots", 10)
	require.NoError(t, err)
	require.Len(t, after.Matches, len(before.Matches))
	for i := range before.Matches {
		assert.Equal(t, before.Matches[i].ID, after.Matches[i].ID)
		assert.InDelta(t, before.Matches[i].Score, after.Matches[i].Score, 1e-9)
		assert.Equal(t, before.Matches[i].Rank, after.Matches[i].Rank)
	}
}

func TestLoadMissing(t *testing.T) {
	m, _ := newTestManagerWithStore(t)
	_, err := m.Load(context.Background(), "never-saved")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestLoadCorruptBlob(t *testing.T) {
	m, store := newTestManagerWithStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, blobKeyPrefix+"bad", []byte{0x01, 0x02, 0x03}))

	_, err := m.Load(ctx, "bad")
	require.ErrorIs(t, err, core.ErrCorruptState)
	assert.Equal(t, "corrupt_state", core.Kind(err))
}

func TestPersistenceRequiresStore(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.AddDocuments("ns", []string{"text here"}, []string{"a"}, false)
	require.NoError(t, err)

	_, err = m.Save(ctx, "ns")
	require.ErrorIs(t, err, core.ErrDependencyUnavailable)

	_, err = m.Load(ctx, "ns")
	require.ErrorIs(t, err, core.ErrDependencyUnavailable)
}

func TestSaveAll(t *testing.T) {
	m, store := newTestManagerWithStore(t)
	ctx := context.Background()

	for _, ns := range []string{"one", "two"} {
		_, err := m.AddDocuments(ns, []string{"content for " + ns}, []string{"a"}, false)
		require.NoError(t, err)
	}

	res, err := m.SaveAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SavedCount)
	assert.Equal(t, 2, res.TotalCount)
	assert.Empty(t, res.Errors)

	keys, err := store.List(ctx, blobKeyPrefix)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestDeleteSaved(t *testing.T) {
	m, _ := newTestManagerWithStore(t)
	ctx := context.Background()

	_, err := m.AddDocuments("ns", []string{"content"}, []string{"a"}, false)
	require.NoError(t, err)
	_, err = m.Save(ctx, "ns")
	require.NoError(t, err)

	require.NoError(t, m.DeleteSaved(ctx, "ns"))
	require.ErrorIs(t, m.DeleteSaved(ctx, "ns"), core.ErrNotFound)
}

func TestConcurrentSearchDuringAppend(t *testing.T) {
	m := newTestManager(t)

	_, err := m.AddDocuments("ns", []string{"seed document about storage engines"}, []string{"seed"}, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := core.IDFromContent("extra" + string(rune('a'+n)))
			_, err := m.AddDocuments("ns",
				[]string{"another document about storage engines"},
				[]string{id}, true)
			assert.NoError(t, err)
		}(i)
	}
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sr, err := m.Search("ns", "storage engines", 20)
			assert.NoError(t, err)
			for j := 1; j < len(sr.Matches); j++ {
				assert.GreaterOrEqual(t, sr.Matches[j-1].Score, sr.Matches[j].Score)
			}
		}()
	}
	wg.Wait()

	stats, err := m.Stats("ns")
	require.NoError(t, err)
	assert.Equal(t, 9, stats.DocumentCount)
}
