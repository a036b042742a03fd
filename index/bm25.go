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

import "math"

// Okapi BM25 tuning constants. Standard values recommended by Robertson et al.
const (
	// bm25K1 controls term frequency saturation. Higher = slower saturation.
	bm25K1 = 1.5

	// bm25B controls document length normalization.
	// 0 = no normalization, 1 = full normalization.
	bm25B = 0.75

	// bm25Epsilon floors negative IDF values at epsilon * average IDF, so
	// terms appearing in most documents still contribute a small positive
	// amount instead of flipping the score sign.
	bm25Epsilon = 0.25
)

// bm25Model holds the Okapi BM25 statistics for one namespace corpus.
// Statistics are global to the corpus: any corpus change requires a full
// rebuild via newBM25Model. The model is immutable after construction and
// safe for concurrent scoring.
type bm25Model struct {
	corpusSize int
	avgDocLen  float64
	docLens    []int
	// termFreqs[i] maps each term to its frequency within document i.
	termFreqs []map[string]int
	// idf maps each term to its (epsilon-floored) inverse document frequency.
	idf map[string]float64
}

// newBM25Model builds the statistics model over a tokenized corpus.
func newBM25Model(corpus [][]string) *bm25Model {
	m := &bm25Model{
		corpusSize: len(corpus),
		docLens:    make([]int, len(corpus)),
		termFreqs:  make([]map[string]int, len(corpus)),
		idf:        make(map[string]float64),
	}
	if len(corpus) == 0 {
		return m
	}

	// Per-document term frequencies and document frequencies.
	docFreq := make(map[string]int)
	total := 0
	for i, tokens := range corpus {
		m.docLens[i] = len(tokens)
		total += len(tokens)
		freqs := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freqs[t]++
		}
		m.termFreqs[i] = freqs
		for t := range freqs {
			docFreq[t]++
		}
	}
	m.avgDocLen = float64(total) / float64(len(corpus))

	// IDF with negative-value flooring: terms in more than half the corpus
	// get idf = epsilon * average positive-sum IDF.
	var idfSum float64
	var negative []string
	n := float64(m.corpusSize)
	for term, freq := range docFreq {
		idf := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		m.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	eps := bm25Epsilon * idfSum / float64(len(m.idf))
	for _, term := range negative {
		m.idf[term] = eps
	}

	return m
}

// scores computes the BM25 score of every document in the corpus for the
// given query tokens, in corpus order.
func (m *bm25Model) scores(queryTokens []string) []float64 {
	scores := make([]float64, m.corpusSize)
	for _, term := range queryTokens {
		idf, ok := m.idf[term]
		if !ok {
			continue
		}
		for i, freqs := range m.termFreqs {
			tf := float64(freqs[term])
			if tf == 0 {
				continue
			}
			dl := float64(m.docLens[i])
			denom := tf + bm25K1*(1-bm25B+bm25B*dl/m.avgDocLen)
			scores[i] += idf * tf * (bm25K1 + 1) / denom
		}
	}
	return scores
}
