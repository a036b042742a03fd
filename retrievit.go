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
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/index"
	"github.com/poiesic/retrievit/rerank"
	"github.com/poiesic/retrievit/search"
	"github.com/poiesic/retrievit/storage/badger"
	"github.com/poiesic/retrievit/token"
)

// Engine is the top-level retrieval engine: a persistent sparse BM25 index,
// an optional dense vector leg, fusion, and optional relevance reranking,
// all behind one facade. Construct it with NewEngine and release it with
// Close.
type Engine struct {
	store    *badger.Store
	vectors  *badger.VectorStore
	index    *index.Manager
	searcher *search.Searcher
	reranker *rerank.Reranker
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	inMemory     bool
	tokenizerCfg token.Config
	embedder     ai.Embedder
	retriever    ai.DenseRetriever
	scorer       ai.RelevanceScorer
	cacheSize    int
	cacheTTL     time.Duration
	logger       *slog.Logger
}

// WithInMemory keeps all storage in memory, for tests and experiments.
func WithInMemory() Option {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithTokenizerConfig overrides the default tokenization pipeline.
func WithTokenizerConfig(cfg token.Config) Option {
	return func(o *engineOptions) {
		o.tokenizerCfg = cfg
	}
}

// WithEmbedder enables the dense leg using the engine's own vector store
// for nearest-neighbor lookup. Indexed documents are embedded and stored
// alongside the sparse index.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *engineOptions) {
		o.embedder = embedder
	}
}

// WithDenseRetriever supplies an external nearest-neighbor service instead
// of the engine's own vector store. An embedder is still required to embed
// queries.
func WithDenseRetriever(retriever ai.DenseRetriever) Option {
	return func(o *engineOptions) {
		o.retriever = retriever
	}
}

// WithScorer enables relevance reranking.
func WithScorer(scorer ai.RelevanceScorer) Option {
	return func(o *engineOptions) {
		o.scorer = scorer
	}
}

// WithProvider wires both the embedder and the scorer from one AI provider.
func WithProvider(provider ai.Provider) Option {
	return func(o *engineOptions) {
		o.embedder = provider.Embedder()
		o.scorer = provider.Scorer()
	}
}

// WithQueryCache sizes the query result cache. size <= 0 disables it.
func WithQueryCache(size int, ttl time.Duration) Option {
	return func(o *engineOptions) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewEngine opens (or creates) an engine rooted at filePath.
func NewEngine(filePath string, opts ...Option) (*Engine, error) {
	options := &engineOptions{
		tokenizerCfg: token.DefaultConfig(),
		cacheSize:    search.DefaultCacheSize,
		cacheTTL:     search.DefaultCacheTTL,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	store, err := badger.OpenStore(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	tokenizer, err := token.NewTokenizer(options.tokenizerCfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	manager, err := index.NewManager(tokenizer,
		index.WithBlobStore(store),
		index.WithLogger(options.logger))
	if err != nil {
		store.Close()
		return nil, err
	}

	vectors := badger.NewVectorStore(store)
	retriever := options.retriever
	if retriever == nil {
		retriever = vectors
	}

	reranker, err := rerank.NewReranker(options.scorer,
		rerank.WithLogger(options.logger))
	if err != nil {
		store.Close()
		return nil, err
	}

	searchOpts := []search.Option{
		search.WithCache(options.cacheSize, options.cacheTTL),
		search.WithReranker(reranker),
		search.WithLogger(options.logger),
	}
	if options.embedder != nil {
		searchOpts = append(searchOpts, search.WithDense(options.embedder, retriever))
	}
	searcher, err := search.NewSearcher(manager, searchOpts...)
	if err != nil {
		reranker.Close()
		store.Close()
		return nil, err
	}

	return &Engine{
		store:    store,
		vectors:  vectors,
		index:    manager,
		searcher: searcher,
		reranker: reranker,
		embedder: options.embedder,
		logger:   options.logger,
	}, nil
}

// Close releases the searcher, reranker, and backing store.
func (e *Engine) Close() error {
	e.searcher.Close()
	e.reranker.Close()
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing storage", "err", err)
		return err
	}
	return nil
}

// guard converts a panic escaping the engine boundary into an error, so
// callers always get an error value rather than a crash.
func guard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("internal failure: %v", r)
	}
}

// IndexDocuments adds a batch of documents to a namespace. Documents with an
// empty ID get a content-derived one. With the dense leg enabled the texts
// are also embedded and upserted into the vector store, so both retrieval
// legs stay in step. Search results become visible atomically once the batch
// is fully indexed.
func (e *Engine) IndexDocuments(ctx context.Context, namespace string, documents []core.Document, appendMode bool) (result *index.AddResult, err error) {
	defer guard(&err)

	texts := make([]string, len(documents))
	ids := make([]string, len(documents))
	for i, doc := range documents {
		if doc.ID == "" {
			doc.ID = core.IDFromContent(doc.Text)
		}
		texts[i] = doc.Text
		ids[i] = doc.ID
	}

	result, err = e.index.AddDocuments(namespace, texts, ids, appendMode)
	if err != nil {
		return nil, err
	}

	if err := e.upsertVectors(ctx, namespace, documents, texts, ids); err != nil {
		return nil, err
	}

	e.searcher.InvalidateCache()
	return result, nil
}

// upsertVectors embeds the texts and stores one vector entry per document.
// A no-op when the engine has no embedder.
func (e *Engine) upsertVectors(ctx context.Context, namespace string, documents []core.Document, texts, ids []string) error {
	if e.embedder == nil {
		return nil
	}
	embeddings, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embedding documents: %w", core.ErrDependencyUnavailable, err)
	}
	if len(embeddings) != len(texts) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d texts",
			core.ErrDependencyUnavailable, len(embeddings), len(texts))
	}
	for i := range documents {
		metadata := map[string]string{core.MetadataTextSnippet: snippet(texts[i])}
		for k, v := range documents[i].Metadata {
			metadata[k] = v
		}
		entry := &core.VectorEntry{ID: ids[i], Vector: embeddings[i], Metadata: metadata}
		if err := e.vectors.Upsert(ctx, namespace, entry); err != nil {
			return err
		}
	}
	return nil
}

const snippetLimit = 512

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= snippetLimit {
		return text
	}
	// Back off to a rune boundary so the cut never leaves invalid UTF-8.
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// Query runs a sparse BM25 search in one namespace.
func (e *Engine) Query(ctx context.Context, namespace, query string, topK int) (result *index.SearchResult, err error) {
	defer guard(&err)
	return e.index.Search(namespace, query, topK)
}

// HybridQuery fuses sparse and dense rankings for one namespace.
func (e *Engine) HybridQuery(ctx context.Context, namespace, query string, params search.Params) (result *search.Result, err error) {
	defer guard(&err)
	return e.searcher.HybridQuery(ctx, namespace, query, params)
}

// HybridQueryWithRerank fuses both rankings and reorders the candidates with
// the relevance scorer. Without a configured scorer this degrades to
// HybridQuery and flags the result accordingly.
func (e *Engine) HybridQueryWithRerank(ctx context.Context, namespace, query string, params search.Params) (result *search.Result, err error) {
	defer guard(&err)
	return e.searcher.HybridQueryWithRerank(ctx, namespace, query, params)
}

// QueryNamespaces runs a sparse search across several namespaces and merges
// the rankings, boosting the primary namespace.
func (e *Engine) QueryNamespaces(ctx context.Context, namespaces []string, query, primary string, params search.Params) (result *search.Result, err error) {
	defer guard(&err)
	return e.searcher.QueryNamespaces(ctx, namespaces, query, primary, params)
}

// HybridQueryNamespaces runs the hybrid pipeline across several namespaces
// and merges the fused rankings, boosting the primary namespace.
func (e *Engine) HybridQueryNamespaces(ctx context.Context, namespaces []string, query, primary string, params search.Params) (result *search.Result, err error) {
	defer guard(&err)
	return e.searcher.HybridQueryNamespaces(ctx, namespaces, query, primary, params)
}

// UpdateDocument replaces a document's text in both retrieval legs.
func (e *Engine) UpdateDocument(ctx context.Context, namespace, docID, newText string) (result *index.AddResult, err error) {
	defer guard(&err)

	result, err = e.index.UpdateDocument(namespace, docID, newText)
	if err != nil {
		return nil, err
	}
	if e.embedder != nil {
		doc := core.Document{ID: docID, Text: newText}
		if err := e.upsertVectors(ctx, namespace, []core.Document{doc}, []string{newText}, []string{docID}); err != nil {
			return nil, err
		}
	}
	e.searcher.InvalidateCache()
	return result, nil
}

// RemoveDocument deletes a document from both retrieval legs.
func (e *Engine) RemoveDocument(ctx context.Context, namespace, docID string) (result *index.RemoveResult, err error) {
	defer guard(&err)

	result, err = e.index.RemoveDocument(namespace, docID)
	if err != nil {
		return nil, err
	}
	if e.embedder != nil {
		if err := e.vectors.Remove(ctx, namespace, docID); err != nil {
			e.logger.Warn("removing vector entry failed",
				"namespace", namespace, "doc_id", docID, "err", err)
		}
	}
	e.searcher.InvalidateCache()
	return result, nil
}

// Stats reports document count and average document length for a namespace.
func (e *Engine) Stats(namespace string) (stats *core.NamespaceStats, err error) {
	defer guard(&err)
	return e.index.Stats(namespace)
}

// Namespaces lists all in-memory namespaces, sorted.
func (e *Engine) Namespaces() []string {
	return e.index.Namespaces()
}

// ClearNamespace drops a namespace's in-memory index. Persisted snapshots
// are unaffected; use DeleteSavedIndex for those.
func (e *Engine) ClearNamespace(namespace string) (err error) {
	defer guard(&err)
	if err := e.index.ClearNamespace(namespace); err != nil {
		return err
	}
	e.searcher.InvalidateCache()
	return nil
}

// SaveIndex persists a namespace's index snapshot.
func (e *Engine) SaveIndex(ctx context.Context, namespace string) (result *index.SaveResult, err error) {
	defer guard(&err)
	return e.index.Save(ctx, namespace)
}

// LoadIndex restores a namespace's index from its persisted snapshot.
func (e *Engine) LoadIndex(ctx context.Context, namespace string) (result *index.LoadResult, err error) {
	defer guard(&err)
	result, err = e.index.Load(ctx, namespace)
	if err != nil {
		return nil, err
	}
	e.searcher.InvalidateCache()
	return result, nil
}

// SaveAll persists every in-memory namespace, collecting per-namespace
// failures.
func (e *Engine) SaveAll(ctx context.Context) (result *index.SaveAllResult, err error) {
	defer guard(&err)
	return e.index.SaveAll(ctx)
}

// DeleteSavedIndex removes a namespace's persisted snapshot.
func (e *Engine) DeleteSavedIndex(ctx context.Context, namespace string) (err error) {
	defer guard(&err)
	return e.index.DeleteSaved(ctx, namespace)
}

// ListSavedIndexes returns the namespaces that have a persisted snapshot.
func (e *Engine) ListSavedIndexes(ctx context.Context) (namespaces []string, err error) {
	defer guard(&err)
	keys, err := e.store.List(ctx, "bm25_indices/")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, strings.TrimPrefix(key, "bm25_indices/"))
	}
	return names, nil
}

// Index exposes the sparse index manager for advanced callers.
func (e *Engine) Index() *index.Manager {
	return e.index
}

// Searcher exposes the query pipeline for advanced callers.
func (e *Engine) Searcher() *search.Searcher {
	return e.searcher
}
