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


package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/fusion"
	"github.com/poiesic/retrievit/index"
	"github.com/poiesic/retrievit/rerank"
)

const (
	// DefaultTopK is the result count when the caller doesn't specify one.
	DefaultTopK = 10
	// rerankTopKMultiplier sizes the default rerank shortlist relative to
	// topK, so the scorer sees more candidates than the caller asked for.
	rerankTopKMultiplier = 2
	// DefaultBoostFactor is the score multiplier for the primary namespace
	// in multi-namespace queries.
	DefaultBoostFactor = 1.25
	// DefaultFanOut bounds concurrent per-namespace queries.
	DefaultFanOut = 8

	// fetchMultiplier widens both retrieval legs before fusion so documents
	// ranked just outside topK on one side can still surface after merging.
	fetchMultiplier = 2
)

// Params shape a single query.
// Zero values fall back to the package defaults.
type Params struct {
	TopK        int
	Alpha       float64
	Method      fusion.Method
	UseRerank   bool
	RerankTopK  int
	BoostFactor float64
}

// DefaultParams returns the standard query parameters.
func DefaultParams() Params {
	return Params{
		TopK:        DefaultTopK,
		Alpha:       fusion.DefaultAlpha,
		Method:      fusion.MethodRRF,
		RerankTopK:  rerankTopKMultiplier * DefaultTopK,
		BoostFactor: DefaultBoostFactor,
	}
}

func (p Params) normalized() Params {
	if p.TopK == 0 {
		p.TopK = DefaultTopK
	}
	if p.Alpha == 0 {
		p.Alpha = fusion.DefaultAlpha
	}
	if p.Method == "" {
		p.Method = fusion.MethodRRF
	}
	if p.RerankTopK == 0 {
		p.RerankTopK = rerankTopKMultiplier * p.TopK
	}
	if p.BoostFactor == 0 {
		p.BoostFactor = DefaultBoostFactor
	}
	return p
}

func (p Params) validate() error {
	if err := core.ValidateTopK(p.TopK); err != nil {
		return err
	}
	if err := core.ValidateAlpha(p.Alpha); err != nil {
		return err
	}
	if p.BoostFactor <= 0 {
		return fmt.Errorf("%w: boost factor must be positive, got %g", core.ErrInvalidInput, p.BoostFactor)
	}
	return nil
}

// Result is a completed query: the final candidate list plus how it was
// produced.
type Result struct {
	Namespace  string   // single-namespace queries
	Namespaces []string // multi-namespace queries
	Matches    []core.Candidate
	Fusion     fusion.Metadata

	Reranked          bool
	RerankUnavailable bool
	RerankFiltered    int
	Cached            bool

	// Degradation flags: the named leg failed and the result was answered
	// by the surviving leg alone.
	SparseFailed bool
	DenseFailed  bool
}

// Searcher runs the retrieval pipeline: sparse BM25 search, optional dense
// vector search, score fusion, optional relevance reranking, and
// multi-namespace merging with primary boosting. The dense leg and the
// reranker are both optional; the pipeline degrades to the legs that are
// available.
type Searcher struct {
	index     *index.Manager
	embedder  ai.Embedder
	retriever ai.DenseRetriever
	reranker  *rerank.Reranker
	monitor   SearchMonitor
	pool      *ants.Pool
	cache     *resultCache
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*searcherConfig)

type searcherConfig struct {
	embedder  ai.Embedder
	retriever ai.DenseRetriever
	reranker  *rerank.Reranker
	monitor   SearchMonitor
	fanOut    int
	cacheSize int
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// WithDense enables the dense retrieval leg.
// Both the embedder and the retriever are required for dense search.
func WithDense(embedder ai.Embedder, retriever ai.DenseRetriever) Option {
	return func(c *searcherConfig) {
		c.embedder = embedder
		c.retriever = retriever
	}
}

// WithReranker enables relevance reranking.
func WithReranker(reranker *rerank.Reranker) Option {
	return func(c *searcherConfig) {
		c.reranker = reranker
	}
}

// WithMonitor installs pipeline observation hooks.
func WithMonitor(monitor SearchMonitor) Option {
	return func(c *searcherConfig) {
		if monitor != nil {
			c.monitor = monitor
		}
	}
}

// WithFanOut bounds concurrent per-namespace queries.
func WithFanOut(n int) Option {
	return func(c *searcherConfig) {
		if n > 0 {
			c.fanOut = n
		}
	}
}

// WithCache sizes the query result cache. size <= 0 disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *searcherConfig) {
		c.cacheSize = size
		c.cacheTTL = ttl
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *searcherConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewSearcher creates a searcher over the given sparse index manager.
func NewSearcher(manager *index.Manager, opts ...Option) (*Searcher, error) {
	if manager == nil {
		return nil, ErrIndexManagerRequired
	}

	cfg := &searcherConfig{
		monitor:   &noopMonitor{},
		fanOut:    DefaultFanOut,
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
		logger:    slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := ants.NewPool(cfg.fanOut)
	if err != nil {
		return nil, fmt.Errorf("creating fan-out pool: %w", err)
	}

	return &Searcher{
		index:     manager,
		embedder:  cfg.embedder,
		retriever: cfg.retriever,
		reranker:  cfg.reranker,
		monitor:   cfg.monitor,
		pool:      pool,
		cache:     newResultCache(cfg.cacheSize, cfg.cacheTTL),
		logger:    cfg.logger,
	}, nil
}

// Close releases the fan-out pool.
func (s *Searcher) Close() {
	s.pool.Release()
}

// InvalidateCache drops all cached query results. Callers that mutate the
// index and need fresh results immediately should invalidate rather than
// wait out the TTL.
func (s *Searcher) InvalidateCache() {
	s.cache.purge()
}

func (s *Searcher) denseEnabled() bool {
	return s.embedder != nil && s.retriever != nil
}

// HybridQuery runs sparse plus dense retrieval against one namespace and
// fuses the two rankings. When the dense leg is not configured or fails,
// the sparse ranking alone is fused; the reverse degradation also holds,
// including for a missing sparse index or an empty-tokenizing query.
// Invalid parameters fail outright, and a failure of every available leg
// propagates the sparse error.
func (s *Searcher) HybridQuery(ctx context.Context, namespace, query string, params Params) (*Result, error) {
	params = params.normalized()
	params.UseRerank = false
	if err := params.validate(); err != nil {
		return nil, err
	}

	key := cacheKey([]string{namespace}, "", query, params)
	if cached, ok := s.cache.get(key); ok {
		return cached, nil
	}

	s.monitor.Start(query)
	result, err := s.hybridOne(ctx, namespace, query, params, params.TopK)
	if err != nil {
		return nil, err
	}
	s.monitor.Finish(result)

	s.cache.add(key, result)
	return result, nil
}

// HybridQueryWithRerank runs HybridQuery and then reorders the fused
// candidates with the relevance scorer. Reranking never fails the query: a
// scorer error falls back to the fused ordering, and a missing scorer is
// reported via RerankUnavailable.
func (s *Searcher) HybridQueryWithRerank(ctx context.Context, namespace, query string, params Params) (*Result, error) {
	params = params.normalized()
	params.UseRerank = true
	if err := params.validate(); err != nil {
		return nil, err
	}

	key := cacheKey([]string{namespace}, "", query, params)
	if cached, ok := s.cache.get(key); ok {
		return cached, nil
	}

	s.monitor.Start(query)

	// Fuse a wider candidate list so the scorer sees more than topK.
	fuseK := params.TopK
	if params.RerankTopK > fuseK {
		fuseK = params.RerankTopK
	}
	result, err := s.hybridOne(ctx, namespace, query, params, fuseK)
	if err != nil {
		return nil, err
	}

	result = s.applyRerank(ctx, query, result, params)
	s.monitor.Finish(result)

	s.cache.add(key, result)
	return result, nil
}

// applyRerank reorders result.Matches in place and truncates to TopK.
func (s *Searcher) applyRerank(ctx context.Context, query string, result *Result, params Params) *Result {
	switch {
	case s.reranker == nil:
		result.RerankUnavailable = true
	default:
		rr, err := s.reranker.Rerank(ctx, query, result.Matches, params.RerankTopK)
		if err != nil {
			s.logger.Warn("rerank failed, keeping fused order", "query", query, "err", err)
		} else {
			result.Matches = rr.Matches
			result.Reranked = rr.Reranked
			result.RerankUnavailable = rr.Unavailable
			result.RerankFiltered = rr.FilteredCount
			s.monitor.AfterRerank(result.Namespace, result.Matches)
		}
	}
	if len(result.Matches) > params.TopK {
		result.Matches = result.Matches[:params.TopK]
	}
	return result
}

// hybridOne executes both retrieval legs for one namespace and fuses them
// into up to fuseK candidates.
func (s *Searcher) hybridOne(ctx context.Context, namespace, query string, params Params, fuseK int) (*Result, error) {
	fetchK := fetchMultiplier * params.TopK
	if params.RerankTopK > params.TopK && params.UseRerank {
		fetchK = fetchMultiplier * params.RerankTopK
	}

	sparse, sparseErr := s.sparseLeg(namespace, query, fetchK)
	dense, denseErr := s.denseLeg(ctx, namespace, query, fetchK)

	var sparseFailed, denseFailed bool
	if sparseErr != nil {
		// Malformed arguments are authoritative regardless of the dense
		// leg. Everything else, a missing sparse index and an
		// empty-tokenizing query included, degrades to dense-only when the
		// dense leg can still answer.
		if errors.Is(sparseErr, core.ErrInvalidInput) {
			return nil, sparseErr
		}
		if denseErr != nil || !s.denseEnabled() {
			return nil, sparseErr
		}
		sparseFailed = true
		s.logger.Warn("sparse leg failed, continuing dense-only",
			"namespace", namespace, "err", sparseErr)
	}
	if denseErr != nil {
		denseFailed = true
		s.logger.Warn("dense leg failed, continuing sparse-only",
			"namespace", namespace, "err", denseErr)
	}

	fused, err := fusion.HybridSearch(dense, sparse, params.Method, params.Alpha, fuseK)
	if err != nil {
		return nil, err
	}
	s.monitor.AfterFusion(namespace, fused.Matches)

	return &Result{
		Namespace:    namespace,
		Matches:      fused.Matches,
		Fusion:       fused.Metadata,
		SparseFailed: sparseFailed,
		DenseFailed:  denseFailed,
	}, nil
}

func (s *Searcher) sparseLeg(namespace, query string, fetchK int) ([]core.RankedMatch, error) {
	sr, err := s.index.Search(namespace, query, fetchK)
	if err != nil {
		return nil, err
	}
	s.monitor.AfterSparseSearch(namespace, sr.Matches)
	return sr.Matches, nil
}

func (s *Searcher) denseLeg(ctx context.Context, namespace, query string, fetchK int) ([]core.RankedMatch, error) {
	if !s.denseEnabled() {
		return nil, nil
	}
	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", core.ErrDependencyUnavailable, err)
	}
	matches, err := s.retriever.Query(ctx, namespace, vector, fetchK)
	if err != nil {
		return nil, fmt.Errorf("%w: dense query: %w", core.ErrDependencyUnavailable, err)
	}
	s.monitor.AfterDenseSearch(namespace, matches)
	return matches, nil
}

// QueryNamespaces runs a sparse-only query across several namespaces and
// merges the rankings, boosting matches from the primary namespace. The
// merge is deterministic: namespaces contribute in their given order, and
// ties keep that order.
func (s *Searcher) QueryNamespaces(ctx context.Context, namespaces []string, query, primary string, params Params) (*Result, error) {
	return s.fanOutNamespaces(ctx, namespaces, query, primary, params,
		func(_ context.Context, ns string) ([]core.Candidate, error) {
			matches, err := s.sparseLeg(ns, query, fetchMultiplier*params.normalized().TopK)
			if err != nil {
				return nil, err
			}
			return matchesToCandidates(matches), nil
		})
}

// HybridQueryNamespaces runs the full hybrid pipeline in every namespace and
// merges the fused rankings with primary boosting.
func (s *Searcher) HybridQueryNamespaces(ctx context.Context, namespaces []string, query, primary string, params Params) (*Result, error) {
	return s.fanOutNamespaces(ctx, namespaces, query, primary, params,
		func(ctx context.Context, ns string) ([]core.Candidate, error) {
			res, err := s.hybridOne(ctx, ns, query, params.normalized(), params.normalized().TopK)
			if err != nil {
				return nil, err
			}
			return res.Matches, nil
		})
}

// fanOutNamespaces queries every namespace concurrently, applies the primary
// boost, and merges into a single topK ranking. Per-namespace failures are
// tolerated unless every namespace fails.
func (s *Searcher) fanOutNamespaces(
	ctx context.Context,
	namespaces []string,
	query, primary string,
	params Params,
	queryFn func(ctx context.Context, namespace string) ([]core.Candidate, error),
) (*Result, error) {
	params = params.normalized()
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(namespaces) == 0 {
		return nil, fmt.Errorf("%w: no namespaces given", core.ErrInvalidInput)
	}

	key := cacheKey(namespaces, primary, query, params)
	if cached, ok := s.cache.get(key); ok {
		return cached, nil
	}

	perNS := make([][]core.Candidate, len(namespaces))
	errs := make([]error, len(namespaces))

	var wg sync.WaitGroup
	for i, ns := range namespaces {
		i, ns := i, ns
		wg.Add(1)
		if submitErr := s.pool.Submit(func() {
			defer wg.Done()
			perNS[i], errs[i] = queryFn(ctx, ns)
		}); submitErr != nil {
			errs[i] = submitErr
			wg.Done()
		}
	}
	wg.Wait()

	failures := 0
	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		failures++
		if firstErr == nil {
			firstErr = err
		}
		s.logger.Warn("namespace query failed",
			"namespace", namespaces[i], "err", err)
	}
	if failures == len(namespaces) {
		return nil, fmt.Errorf("%w: all %d namespaces failed: %w",
			core.ErrNoResults, len(namespaces), firstErr)
	}

	// Merge in namespace order so equal scores resolve deterministically.
	var merged []core.Candidate
	for i, candidates := range perNS {
		for _, c := range candidates {
			if c.Namespace == "" {
				c.Namespace = namespaces[i]
			}
			if c.Namespace == primary && primary != "" {
				c.OriginalScore = c.Score
				c.Score *= params.BoostFactor
				c.Boosted = true
			}
			merged = append(merged, c)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > params.TopK {
		merged = merged[:params.TopK]
	}

	result := &Result{
		Namespaces: namespaces,
		Matches:    merged,
	}
	s.cache.add(key, result)
	return result, nil
}

// matchesToCandidates lifts sparse matches into the fused-candidate shape.
func matchesToCandidates(matches []core.RankedMatch) []core.Candidate {
	candidates := make([]core.Candidate, len(matches))
	for i, m := range matches {
		candidates[i] = core.Candidate{
			ID:          m.ID,
			Score:       m.Score,
			SparseScore: m.Score,
			SparseRank:  m.Rank,
			InSparse:    true,
			Namespace:   m.Namespace,
			Metadata:    m.Metadata,
		}
	}
	return candidates
}
