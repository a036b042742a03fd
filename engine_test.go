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


package retrievit

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/ai/mock"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/search"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithInMemory()}, opts...)
	e, err := NewEngine("", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func testDocuments() []core.Document {
	return []core.Document{
		{ID: "go", Text: "Go compiles quickly and ships static binaries"},
		{ID: "rust", Text: "Rust enforces memory safety through ownership"},
		{ID: "python", Text: "Python favors readability and rapid prototyping"},
	}
}

func TestEngineIndexAndQuery(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.IndexDocuments(ctx, "langs", testDocuments(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.DocumentCount)

	sr, err := e.Query(ctx, "langs", "memory ownership", 10)
	require.NoError(t, err)
	require.NotEmpty(t, sr.Matches)
	assert.Equal(t, "rust", sr.Matches[0].ID)
}

func TestEngineGeneratesDocumentIDs(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	docs := []core.Document{
		{Text: "anonymous first document body"},
		{Text: "anonymous second document body"},
		{Text: "anonymous third document body"},
	}
	_, err := e.IndexDocuments(ctx, "anon", docs, false)
	require.NoError(t, err)

	sr, err := e.Query(ctx, "anon", "first", 10)
	require.NoError(t, err)
	require.Len(t, sr.Matches, 1)
	assert.Equal(t, core.IDFromContent("anonymous first document body"), sr.Matches[0].ID)
}

func TestEngineHybridQuerySparseOnly(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.IndexDocuments(ctx, "langs", testDocuments(), false)
	require.NoError(t, err)

	res, err := e.HybridQuery(ctx, "langs", "static binaries", search.DefaultParams())
	require.NoError(t, err)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "go", res.Matches[0].ID)
	assert.Zero(t, res.Fusion.DenseCount)
}

func TestEngineHybridQueryWithInternalVectors(t *testing.T) {
	e := newTestEngine(t, WithEmbedder(mock.NewMockEmbedder()))
	ctx := context.Background()

	_, err := e.IndexDocuments(ctx, "langs", testDocuments(), false)
	require.NoError(t, err)

	res, err := e.HybridQuery(ctx, "langs", "memory ownership", search.DefaultParams())
	require.NoError(t, err)
	require.NotEmpty(t, res.Matches)
	// The mock embedder is deterministic, so the dense leg always returns
	// the stored vectors ranked the same way.
	assert.Equal(t, 3, res.Fusion.DenseCount)
	assert.Greater(t, res.Fusion.UniqueDocs, 0)
}

func TestEngineHybridQueryWithRerank(t *testing.T) {
	e := newTestEngine(t, WithScorer(mock.NewMockScorer()))
	ctx := context.Background()

	_, err := e.IndexDocuments(ctx, "langs", testDocuments(), false)
	require.NoError(t, err)

	res, err := e.HybridQueryWithRerank(ctx, "langs", "memory ownership", search.DefaultParams())
	require.NoError(t, err)
	assert.True(t, res.Reranked)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "rust", res.Matches[0].ID)
}

func TestEngineRerankWithoutScorerDegrades(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.IndexDocuments(ctx, "langs", testDocuments(), false)
	require.NoError(t, err)

	res, err := e.HybridQueryWithRerank(ctx, "langs", "memory ownership", search.DefaultParams())
	require.NoError(t, err)
	assert.False(t, res.Reranked)
	assert.True(t, res.RerankUnavailable)
	require.NotEmpty(t, res.Matches)
}

func TestEngineUpdateAndRemove(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.IndexDocuments(ctx, "langs", testDocuments(), false)
	require.NoError(t, err)

	_, err = e.UpdateDocument(ctx, "langs", "python", "Python dominates scientific notebooks")
	require.NoError(t, err)

	sr, err := e.Query(ctx, "langs", "notebooks", 10)
	require.NoError(t, err)
	require.Len(t, sr.Matches, 1)
	assert.Equal(t, "python", sr.Matches[0].ID)

	rm, err := e.RemoveDocument(ctx, "langs", "python")
	require.NoError(t, err)
	assert.Equal(t, 2, rm.DocumentCount)

	stats, err := e.Stats("langs")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount)
}

func TestEnginePersistenceRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.IndexDocuments(ctx, "langs", testDocuments(), false)
	require.NoError(t, err)

	saved, err := e.SaveIndex(ctx, "langs")
	require.NoError(t, err)
	assert.Equal(t, 3, saved.DocumentCount)

	names, err := e.ListSavedIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"langs"}, names)

	require.NoError(t, e.ClearNamespace("langs"))
	assert.Empty(t, e.Namespaces())

	loaded, err := e.LoadIndex(ctx, "langs")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.DocumentCount)

	sr, err := e.Query(ctx, "langs", "ownership", 10)
	require.NoError(t, err)
	require.NotEmpty(t, sr.Matches)
	assert.Equal(t, "rust", sr.Matches[0].ID)

	require.NoError(t, e.DeleteSavedIndex(ctx, "langs"))
	names, err = e.ListSavedIndexes(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestEngineSaveAll(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.IndexDocuments(ctx, "one", testDocuments(), false)
	require.NoError(t, err)
	_, err = e.IndexDocuments(ctx, "two", testDocuments(), false)
	require.NoError(t, err)

	res, err := e.SaveAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SavedCount)
	assert.Empty(t, res.Errors)
}

func TestEngineMultiNamespaceQuery(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.IndexDocuments(ctx, "alpha", testDocuments(), false)
	require.NoError(t, err)
	_, err = e.IndexDocuments(ctx, "beta", testDocuments(), false)
	require.NoError(t, err)

	res, err := e.QueryNamespaces(ctx, []string{"alpha", "beta"}, "memory ownership", "beta", search.DefaultParams())
	require.NoError(t, err)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "beta", res.Matches[0].Namespace)
	assert.True(t, res.Matches[0].Boosted)
}

func TestEngineStructuredErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Query(ctx, "missing", "anything", 10)
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = e.IndexDocuments(ctx, "", testDocuments(), false)
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = e.Stats("missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestSnippetKeepsValidUTF8(t *testing.T) {
	short := "a plain short text"
	assert.Equal(t, short, snippet(short))

	// A multi-byte rune straddling the byte limit must not be split.
	long := strings.Repeat("a", snippetLimit-1) + "é" + strings.Repeat("b", 40)
	s := snippet(long)
	assert.LessOrEqual(t, len(s), snippetLimit)
	assert.True(t, utf8.ValidString(s))
	assert.Equal(t, strings.Repeat("a", snippetLimit-1), s)

	allMultibyte := strings.Repeat("日", snippetLimit)
	s = snippet(allMultibyte)
	assert.True(t, utf8.ValidString(s))
	assert.LessOrEqual(t, len(s), snippetLimit)
}
