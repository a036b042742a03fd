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


package fusion

import (
	"fmt"
	"sort"

	"github.com/poiesic/retrievit/core"
)

const (
	// DefaultRRFK is the rank smoothing constant for reciprocal rank fusion.
	DefaultRRFK = 60
	// DefaultAlpha is the dense-side weight when none is specified.
	DefaultAlpha = 0.7
)

// Method selects a fusion algorithm.
type Method string

const (
	MethodRRF      Method = "rrf"
	MethodWeighted Method = "weighted"
)

// Metadata describes how a fused result set was produced.
type Metadata struct {
	FusionMethod string  `json:"fusion_method"`
	Alpha        float64 `json:"alpha"`
	DenseCount   int     `json:"dense_count"`
	SparseCount  int     `json:"sparse_count"`
	MergedCount  int     `json:"merged_count"`
	UniqueDocs   int     `json:"unique_docs"`
}

// Result is a fused, ranked candidate list plus its provenance metadata.
type Result struct {
	Matches  []core.Candidate
	Metadata Metadata
}

// HybridSearch merges a dense and a sparse result list with the requested
// method and returns the top topK fused candidates. Either input list may be
// empty; the other side then dominates. topK <= 0 returns all candidates.
func HybridSearch(dense, sparse []core.RankedMatch, method Method, alpha float64, topK int) (*Result, error) {
	if err := core.ValidateAlpha(alpha); err != nil {
		return nil, err
	}

	var candidates []core.Candidate
	switch method {
	case MethodRRF:
		candidates = ReciprocalRankFusion(dense, sparse, DefaultRRFK, alpha)
	case MethodWeighted:
		candidates = WeightedScoreFusion(dense, sparse, alpha)
	default:
		return nil, fmt.Errorf("%w: unknown fusion method %q", core.ErrInvalidInput, method)
	}

	unique := len(candidates)
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	return &Result{
		Matches: candidates,
		Metadata: Metadata{
			FusionMethod: string(method),
			Alpha:        alpha,
			DenseCount:   len(dense),
			SparseCount:  len(sparse),
			MergedCount:  len(candidates),
			UniqueDocs:   unique,
		},
	}, nil
}

// ReciprocalRankFusion scores each document by the reciprocal of its rank in
// the lists that contain it:
//
//	score = alpha/(k+dense_rank) + (1-alpha)/(k+sparse_rank)
//
// A document absent from one list simply receives no contribution from that
// side. Explicit Rank fields are honored; entries without one take their
// 1-based list position. k <= 0 falls back to DefaultRRFK.
func ReciprocalRankFusion(dense, sparse []core.RankedMatch, k int, alpha float64) []core.Candidate {
	if k <= 0 {
		k = DefaultRRFK
	}
	merged := mergeCandidates(dense, sparse)
	for i := range merged {
		c := &merged[i]
		if c.InDense {
			c.Score += alpha / float64(k+c.DenseRank)
		}
		if c.InSparse {
			c.Score += (1 - alpha) / float64(k+c.SparseRank)
		}
	}
	sortCandidates(merged)
	return merged
}

// WeightedScoreFusion min-max normalizes each list's raw scores to [0, 1]
// and combines them as alpha*dense + (1-alpha)*sparse. A list whose scores
// are all equal normalizes to 1.0 across the board; a document absent from
// one list contributes 0 from that side.
func WeightedScoreFusion(dense, sparse []core.RankedMatch, alpha float64) []core.Candidate {
	denseNorm := normalizeScores(dense)
	sparseNorm := normalizeScores(sparse)

	merged := mergeCandidates(dense, sparse)
	for i := range merged {
		c := &merged[i]
		if c.InDense {
			c.Score += alpha * denseNorm[c.ID]
		}
		if c.InSparse {
			c.Score += (1 - alpha) * sparseNorm[c.ID]
		}
	}
	sortCandidates(merged)
	return merged
}

// mergeCandidates unions the two lists into per-document candidates, dense
// entries first so that dense ordering wins score ties under a stable sort.
func mergeCandidates(dense, sparse []core.RankedMatch) []core.Candidate {
	byID := make(map[string]int, len(dense)+len(sparse))
	candidates := make([]core.Candidate, 0, len(dense)+len(sparse))

	for i, match := range dense {
		c := core.Candidate{
			ID:         match.ID,
			DenseScore: match.Score,
			DenseRank:  rankOf(match, i),
			InDense:    true,
			Namespace:  match.Namespace,
			Metadata:   match.Metadata,
		}
		byID[match.ID] = len(candidates)
		candidates = append(candidates, c)
	}
	for i, match := range sparse {
		if idx, ok := byID[match.ID]; ok {
			c := &candidates[idx]
			c.SparseScore = match.Score
			c.SparseRank = rankOf(match, i)
			c.InSparse = true
			if c.Metadata == nil {
				c.Metadata = match.Metadata
			}
			continue
		}
		c := core.Candidate{
			ID:          match.ID,
			SparseScore: match.Score,
			SparseRank:  rankOf(match, i),
			InSparse:    true,
			Namespace:   match.Namespace,
			Metadata:    match.Metadata,
		}
		byID[match.ID] = len(candidates)
		candidates = append(candidates, c)
	}
	return candidates
}

func rankOf(match core.RankedMatch, position int) int {
	if match.Rank > 0 {
		return match.Rank
	}
	return position + 1
}

func sortCandidates(candidates []core.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

// normalizeScores min-max scales a list's scores into [0, 1] keyed by
// document ID. When every score is identical the whole list maps to 1.0.
func normalizeScores(matches []core.RankedMatch) map[string]float64 {
	norm := make(map[string]float64, len(matches))
	if len(matches) == 0 {
		return norm
	}
	min, max := matches[0].Score, matches[0].Score
	for _, m := range matches[1:] {
		if m.Score < min {
			min = m.Score
		}
		if m.Score > max {
			max = m.Score
		}
	}
	spread := max - min
	for _, m := range matches {
		if spread == 0 {
			norm[m.ID] = 1.0
			continue
		}
		norm[m.ID] = (m.Score - min) / spread
	}
	return norm
}
