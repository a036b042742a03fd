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


package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
)

// DefaultConcurrency is the default number of concurrent scoring calls.
const DefaultConcurrency = 8

// Result reports a reranking pass.
type Result struct {
	Matches       []core.Candidate
	Reranked      bool // scores were replaced by relevance judgments
	Unavailable   bool // no scorer configured, candidates passed through
	FilteredCount int  // candidates dropped for lacking any scorable text
	OriginalCount int
}

// Reranker reorders fused candidates by asking a relevance scorer to judge
// each candidate's text against the query. Without a configured scorer it
// degrades to a structured no-op, so callers can wire it unconditionally.
type Reranker struct {
	scorer ai.RelevanceScorer // nil means reranking is unavailable
	pool   *ants.Pool
	logger *slog.Logger
}

// Option configures a Reranker.
type Option func(*config)

type config struct {
	concurrency int
	logger      *slog.Logger
}

// WithConcurrency bounds the number of concurrent scoring calls.
func WithConcurrency(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewReranker creates a reranker backed by the given scorer. A nil scorer is
// allowed and produces a reranker that passes candidates through unchanged.
func NewReranker(scorer ai.RelevanceScorer, opts ...Option) (*Reranker, error) {
	cfg := &config{
		concurrency: DefaultConcurrency,
		logger:      slog.Default().With("component", "reranker"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := ants.NewPool(cfg.concurrency)
	if err != nil {
		return nil, fmt.Errorf("creating scoring pool: %w", err)
	}

	return &Reranker{
		scorer: scorer,
		pool:   pool,
		logger: cfg.logger,
	}, nil
}

// Close releases the scoring worker pool.
func (r *Reranker) Close() {
	r.pool.Release()
}

// Available reports whether a relevance scorer is configured.
func (r *Reranker) Available() bool {
	return r.scorer != nil
}

// Rerank scores up to topN candidates against the query and reorders them by
// relevance. Candidates beyond topN keep their fused order and are appended
// after the reranked block. Candidates without any scorable text are dropped
// and counted. Every surviving candidate records its pre-rerank score and
// 1-based position in OriginalScore and OriginalRank.
//
// Any scoring failure aborts the pass with an error so callers can fall back
// to the fused ordering.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []core.Candidate, topN int) (*Result, error) {
	original := len(candidates)

	if r.scorer == nil {
		r.logger.Debug("no relevance scorer configured, skipping rerank")
		return &Result{
			Matches:       candidates,
			Unavailable:   true,
			OriginalCount: original,
		}, nil
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	head, tail := candidates[:topN], candidates[topN:]

	// Keep only candidates that carry text to judge.
	scorable := make([]core.Candidate, 0, len(head))
	for i, c := range head {
		text := candidateText(c)
		if text == "" {
			continue
		}
		c.OriginalScore = c.Score
		c.OriginalRank = i + 1
		scorable = append(scorable, c)
	}
	filtered := len(head) - len(scorable)

	scores, err := r.scoreAll(ctx, query, scorable)
	if err != nil {
		return nil, err
	}
	for i := range scorable {
		scorable[i].Score = scores[i]
	}
	sort.SliceStable(scorable, func(i, j int) bool {
		return scorable[i].Score > scorable[j].Score
	})

	matches := append(scorable, tail...)
	r.logger.Debug("reranked candidates",
		"scored", len(scorable), "filtered", filtered, "passthrough", len(tail))

	return &Result{
		Matches:       matches,
		Reranked:      true,
		FilteredCount: filtered,
		OriginalCount: original,
	}, nil
}

// scoreAll fans the scoring calls out over the worker pool and returns the
// scores aligned with the input candidates.
func (r *Reranker) scoreAll(ctx context.Context, query string, candidates []core.Candidate) ([]float64, error) {
	scores := make([]float64, len(candidates))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range candidates {
		i := i
		text := candidateText(candidates[i])
		wg.Add(1)
		submitErr := r.pool.Submit(func() {
			defer wg.Done()
			score, err := r.scorer.Score(ctx, query, text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			scores[i] = score
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("%w: relevance scoring failed: %w", core.ErrDependencyUnavailable, firstErr)
	}
	return scores, nil
}

// candidateText picks the richest text a candidate carries, preferring the
// full document over snippets.
func candidateText(c core.Candidate) string {
	if c.Metadata == nil {
		return ""
	}
	for _, key := range []string{core.MetadataFullText, core.MetadataTextSnippet, core.MetadataText} {
		if text, ok := c.Metadata[key]; ok && text != "" {
			return text
		}
	}
	return ""
}
