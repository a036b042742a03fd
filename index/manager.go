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
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/storage"
	"github.com/poiesic/retrievit/token"
)

const blobKeyPrefix = "bm25_indices/"

// snapshot is the immutable index state of one namespace. The three parallel
// slices always have equal length and matching positions; the model is built
// over corpus. Readers obtain a snapshot through an atomic pointer and never
// observe partial state.
type snapshot struct {
	docIDs    []string
	documents []string
	corpus    [][]string
	model     *bm25Model
}

// namespaceIndex pairs the published snapshot with a mutation lock.
// The lock serializes rebuilds; reads never take it.
type namespaceIndex struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// Manager provides per-namespace lexical search using Okapi BM25 scoring.
// Namespaces are created lazily on first AddDocuments and are fully
// independent of each other. Every mutation rebuilds the namespace statistics
// over the full corpus and publishes the result atomically, so concurrent
// searches are lock-free and always see a consistent index.
type Manager struct {
	tokenizer *token.Tokenizer
	store     storage.BlobStore // nil disables persistence
	logger    *slog.Logger

	mu         sync.Mutex
	namespaces map[string]*namespaceIndex
}

// Option configures a Manager.
type Option func(*Manager) error

// WithBlobStore enables Save/Load persistence against the given store.
func WithBlobStore(store storage.BlobStore) Option {
	return func(m *Manager) error {
		m.store = store
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewManager creates a sparse index manager.
func NewManager(tokenizer *token.Tokenizer, opts ...Option) (*Manager, error) {
	if tokenizer == nil {
		return nil, ErrTokenizerRequired
	}
	m := &Manager{
		tokenizer:  tokenizer,
		logger:     slog.Default().With("component", "sparse-index"),
		namespaces: make(map[string]*namespaceIndex),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AddResult reports the outcome of an index mutation.
type AddResult struct {
	Namespace     string
	DocumentCount int // documents in the namespace after the operation
	FilteredCount int // input documents discarded because they tokenized empty
	Appended      bool
}

// SearchResult holds the matches for one sparse query.
type SearchResult struct {
	Namespace   string
	Matches     []core.RankedMatch
	QueryTokens []string
	TotalDocs   int
}

// RemoveResult reports a document removal.
type RemoveResult struct {
	Namespace     string
	DocumentCount int
	Cleared       bool // removing the last document cleared the namespace
}

// SaveResult reports a persisted snapshot.
type SaveResult struct {
	Namespace     string
	Key           string
	DocumentCount int
	SizeBytes     int
}

// LoadResult reports a restored snapshot.
type LoadResult struct {
	Namespace     string
	Key           string
	DocumentCount int
}

// SaveAllResult reports a bulk persistence pass.
type SaveAllResult struct {
	SavedCount int
	TotalCount int
	Errors     map[string]error // per-namespace failures, empty when all saved
}

// AddDocuments tokenizes and indexes a batch of documents. Documents that
// tokenize to nothing are discarded and reported via FilteredCount. With
// appendMode set and an existing index, the valid documents are appended to
// the existing parallel sequences; otherwise the namespace index is replaced
// outright. Either way the BM25 statistics are rebuilt over the full corpus
// and swapped in atomically.
func (m *Manager) AddDocuments(namespace string, documents, docIDs []string, appendMode bool) (*AddResult, error) {
	if err := core.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	if err := core.ValidateBatch(documents, docIDs); err != nil {
		return nil, err
	}

	validDocs, validIDs, validCorpus := m.tokenizeBatch(documents, docIDs)
	if len(validCorpus) == 0 {
		return nil, fmt.Errorf("%w: no valid documents after tokenization", core.ErrInvalidInput)
	}
	filtered := len(documents) - len(validIDs)

	ns := m.namespace(namespace, true)
	ns.mu.Lock()
	defer ns.mu.Unlock()

	cur := ns.snap.Load()
	appended := appendMode && cur != nil

	var next *snapshot
	if appended {
		// Extend the existing sequences in place rather than copying the
		// whole corpus; readers of the old snapshot keep their shorter
		// slice headers and are unaffected.
		next = &snapshot{
			docIDs:    append(cur.docIDs, validIDs...),
			documents: append(cur.documents, validDocs...),
			corpus:    append(cur.corpus, validCorpus...),
		}
	} else {
		next = &snapshot{docIDs: validIDs, documents: validDocs, corpus: validCorpus}
	}
	next.model = newBM25Model(next.corpus)
	ns.snap.Store(next)

	m.logger.Debug("indexed documents",
		"namespace", namespace,
		"document_count", len(next.docIDs),
		"filtered_count", filtered,
		"appended", appended)

	return &AddResult{
		Namespace:     namespace,
		DocumentCount: len(next.docIDs),
		FilteredCount: filtered,
		Appended:      appended,
	}, nil
}

// Search scores every document in the namespace against the query, keeps
// only positive scores, and returns the topK best with contiguous 1-based
// ranks. Reads are lock-free against the published snapshot.
func (m *Manager) Search(namespace, query string, topK int) (*SearchResult, error) {
	if err := core.ValidateTopK(topK); err != nil {
		return nil, err
	}
	ns := m.namespace(namespace, false)
	if ns == nil {
		return nil, fmt.Errorf("%w: namespace %s has no sparse index", core.ErrNotFound, namespace)
	}
	snap := ns.snap.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: namespace %s has no sparse index", core.ErrNotFound, namespace)
	}

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", core.ErrEmptyQuery)
	}
	tokens := m.tokenizer.Tokenize(query)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: query has no valid tokens after preprocessing", core.ErrEmptyQuery)
	}

	scores := snap.model.scores(tokens)
	matches := []core.RankedMatch{}
	for i, score := range scores {
		// No lexical overlap means no relevance signal; excluded.
		if score <= 0 {
			continue
		}
		matches = append(matches, core.RankedMatch{
			ID:        snap.docIDs[i],
			Score:     score,
			Namespace: namespace,
			Metadata:  map[string]string{core.MetadataFullText: snap.documents[i]},
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	for i := range matches {
		matches[i].Rank = i + 1
	}

	return &SearchResult{
		Namespace:   namespace,
		Matches:     matches,
		QueryTokens: tokens,
		TotalDocs:   len(snap.docIDs),
	}, nil
}

// UpdateDocument replaces one document's text and rebuilds the namespace
// index. This is a full rebuild, O(namespace size), not an incremental edit.
func (m *Manager) UpdateDocument(namespace, docID, newText string) (*AddResult, error) {
	ns := m.namespace(namespace, false)
	if ns == nil {
		return nil, fmt.Errorf("%w: namespace %s has no sparse index", core.ErrNotFound, namespace)
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	cur := ns.snap.Load()
	if cur == nil {
		return nil, fmt.Errorf("%w: namespace %s has no sparse index", core.ErrNotFound, namespace)
	}
	idx := slices.Index(cur.docIDs, docID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: document %s not found in namespace %s", core.ErrNotFound, docID, namespace)
	}

	documents := slices.Clone(cur.documents)
	documents[idx] = newText
	return m.rebuildLocked(ns, namespace, documents, slices.Clone(cur.docIDs))
}

// RemoveDocument deletes one document and rebuilds the namespace index.
// Removing the last document clears the namespace entirely.
func (m *Manager) RemoveDocument(namespace, docID string) (*RemoveResult, error) {
	ns := m.namespace(namespace, false)
	if ns == nil {
		return nil, fmt.Errorf("%w: namespace %s has no sparse index", core.ErrNotFound, namespace)
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	cur := ns.snap.Load()
	if cur == nil {
		return nil, fmt.Errorf("%w: namespace %s has no sparse index", core.ErrNotFound, namespace)
	}
	idx := slices.Index(cur.docIDs, docID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: document %s not found in namespace %s", core.ErrNotFound, docID, namespace)
	}

	if len(cur.docIDs) == 1 {
		m.dropNamespace(namespace)
		m.logger.Debug("removed last document, cleared namespace", "namespace", namespace)
		return &RemoveResult{Namespace: namespace, Cleared: true}, nil
	}

	docIDs := slices.Delete(slices.Clone(cur.docIDs), idx, idx+1)
	documents := slices.Delete(slices.Clone(cur.documents), idx, idx+1)
	res, err := m.rebuildLocked(ns, namespace, documents, docIDs)
	if err != nil {
		return nil, err
	}
	return &RemoveResult{Namespace: namespace, DocumentCount: res.DocumentCount}, nil
}

// rebuildLocked retokenizes the given documents and publishes a fresh
// snapshot. Caller must hold ns.mu.
func (m *Manager) rebuildLocked(ns *namespaceIndex, namespace string, documents, docIDs []string) (*AddResult, error) {
	validDocs, validIDs, validCorpus := m.tokenizeBatch(documents, docIDs)
	if len(validCorpus) == 0 {
		return nil, fmt.Errorf("%w: no valid documents after tokenization", core.ErrInvalidInput)
	}
	next := &snapshot{
		docIDs:    validIDs,
		documents: validDocs,
		corpus:    validCorpus,
		model:     newBM25Model(validCorpus),
	}
	ns.snap.Store(next)
	return &AddResult{
		Namespace:     namespace,
		DocumentCount: len(validIDs),
		FilteredCount: len(documents) - len(validIDs),
	}, nil
}

// Stats returns the document count and average tokenized document length of
// a namespace.
func (m *Manager) Stats(namespace string) (*core.NamespaceStats, error) {
	ns := m.namespace(namespace, false)
	if ns == nil {
		return nil, fmt.Errorf("%w: namespace %s has no sparse index", core.ErrNotFound, namespace)
	}
	snap := ns.snap.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: namespace %s has no sparse index", core.ErrNotFound, namespace)
	}
	return &core.NamespaceStats{
		Namespace:     namespace,
		DocumentCount: len(snap.docIDs),
		AvgDocLength:  snap.model.avgDocLen,
	}, nil
}

// ClearNamespace removes a namespace's in-memory index.
func (m *Manager) ClearNamespace(namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.namespaces[namespace]; !ok {
		return fmt.Errorf("%w: namespace %s has no sparse index", core.ErrNotFound, namespace)
	}
	delete(m.namespaces, namespace)
	return nil
}

// Namespaces returns all namespaces with an in-memory index, sorted.
func (m *Manager) Namespaces() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.namespaces))
	for name := range m.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save serializes the namespace's complete index state to the blob store.
// The snapshot is read atomically and serialized outside any lock; only the
// pointer read touches shared state.
func (m *Manager) Save(ctx context.Context, namespace string) (*SaveResult, error) {
	if m.store == nil {
		return nil, fmt.Errorf("%w: no blob store configured", core.ErrDependencyUnavailable)
	}
	ns := m.namespace(namespace, false)
	if ns == nil {
		return nil, fmt.Errorf("%w: namespace %s has no sparse index", core.ErrNotFound, namespace)
	}
	snap := ns.snap.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: namespace %s has no sparse index", core.ErrNotFound, namespace)
	}

	state := &core.IndexState{
		Namespace:     namespace,
		DocIDs:        snap.docIDs,
		Documents:     snap.documents,
		Corpus:        snap.corpus,
		DocumentCount: len(snap.docIDs),
		AvgDocLength:  snap.model.avgDocLen,
	}
	data := storage.MarshalIndexState(state)

	key := blobKeyPrefix + namespace
	if err := m.store.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("%w: saving index for namespace %s: %w", core.ErrDependencyUnavailable, namespace, err)
	}
	m.logger.Info("saved sparse index",
		"namespace", namespace, "key", key, "size_bytes", len(data))

	return &SaveResult{
		Namespace:     namespace,
		Key:           key,
		DocumentCount: len(snap.docIDs),
		SizeBytes:     len(data),
	}, nil
}

// Load restores a namespace's index from the blob store. The deserialized
// state is validated and staged completely before being swapped in; a failed
// load never disturbs the live index.
func (m *Manager) Load(ctx context.Context, namespace string) (*LoadResult, error) {
	if m.store == nil {
		return nil, fmt.Errorf("%w: no blob store configured", core.ErrDependencyUnavailable)
	}
	key := blobKeyPrefix + namespace
	data, err := m.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: no saved index for namespace %s", core.ErrNotFound, namespace)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading index for namespace %s: %w", core.ErrDependencyUnavailable, namespace, err)
	}

	state, err := storage.UnmarshalIndexState(data)
	if err != nil {
		return nil, fmt.Errorf("%w: namespace %s: %w", core.ErrCorruptState, namespace, err)
	}
	if err := core.ValidateIndexState(state); err != nil {
		return nil, err
	}
	if state.Namespace != namespace {
		return nil, fmt.Errorf("%w: blob for namespace %s contains state for %s",
			core.ErrCorruptState, namespace, state.Namespace)
	}

	// Stage the full snapshot off to the side, then publish it.
	next := &snapshot{
		docIDs:    state.DocIDs,
		documents: state.Documents,
		corpus:    state.Corpus,
		model:     newBM25Model(state.Corpus),
	}
	ns := m.namespace(namespace, true)
	ns.mu.Lock()
	ns.snap.Store(next)
	ns.mu.Unlock()

	m.logger.Info("loaded sparse index",
		"namespace", namespace, "key", key, "document_count", len(next.docIDs))

	return &LoadResult{
		Namespace:     namespace,
		Key:           key,
		DocumentCount: len(next.docIDs),
	}, nil
}

// SaveAll persists every in-memory namespace. Per-namespace failures are
// collected rather than aborting the pass.
func (m *Manager) SaveAll(ctx context.Context) (*SaveAllResult, error) {
	names := m.Namespaces()
	result := &SaveAllResult{TotalCount: len(names), Errors: make(map[string]error)}
	for _, name := range names {
		if _, err := m.Save(ctx, name); err != nil {
			result.Errors[name] = err
			continue
		}
		result.SavedCount++
	}
	return result, nil
}

// DeleteSaved removes a namespace's persisted index blob.
func (m *Manager) DeleteSaved(ctx context.Context, namespace string) error {
	if m.store == nil {
		return fmt.Errorf("%w: no blob store configured", core.ErrDependencyUnavailable)
	}
	err := m.store.Delete(ctx, blobKeyPrefix+namespace)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: no saved index for namespace %s", core.ErrNotFound, namespace)
	}
	return err
}

// tokenizeBatch tokenizes documents and drops the ones that come out empty,
// keeping the three output slices aligned.
func (m *Manager) tokenizeBatch(documents, docIDs []string) (validDocs, validIDs []string, validCorpus [][]string) {
	validDocs = make([]string, 0, len(documents))
	validIDs = make([]string, 0, len(documents))
	validCorpus = make([][]string, 0, len(documents))
	for i, doc := range documents {
		tokens := m.tokenizer.Tokenize(doc)
		if len(tokens) == 0 {
			continue
		}
		validDocs = append(validDocs, doc)
		validIDs = append(validIDs, docIDs[i])
		validCorpus = append(validCorpus, tokens)
	}
	return validDocs, validIDs, validCorpus
}

// namespace returns the index holder for a namespace, creating it when
// create is set. Returns nil when absent and create is false.
func (m *Manager) namespace(name string, create bool) *namespaceIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[name]
	if !ok {
		if !create {
			return nil
		}
		ns = &namespaceIndex{}
		m.namespaces[name] = ns
	}
	return ns
}

// dropNamespace removes a namespace from the map. Caller may hold the
// namespace's own mutation lock but must not hold m.mu.
func (m *Manager) dropNamespace(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, name)
}
