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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBM25ModelStats(t *testing.T) {
	corpus := [][]string{
		{"alpha", "beta"},
		{"alpha", "gamma"},
		{"beta", "gamma"},
		{"delta"},
	}
	m := newBM25Model(corpus)

	assert.Equal(t, 4, m.corpusSize)
	assert.InDelta(t, 1.75, m.avgDocLen, 1e-9)
	assert.Equal(t, []float64{2, 2, 2, 1}, m.docLens)
}

func TestScoresKnownValues(t *testing.T) {
	corpus := [][]string{
		{"alpha", "beta"},
		{"alpha", "gamma"},
		{"beta", "gamma"},
		{"delta"},
	}
	m := newBM25Model(corpus)

	// delta appears in 1 of 4 documents:
	//   idf = ln(4-1+0.5) - ln(1+0.5) = ln(7/3) ~ 0.847298
	// and only the last document (length 1, avgdl 1.75) contains it:
	//   score = idf * 1*(1.5+1) / (1 + 1.5*(1-0.75+0.75*1/1.75)) ~ 1.049750
	scores := m.scores([]string{"delta"})
	require.Len(t, scores, 4)
	assert.Zero(t, scores[0])
	assert.Zero(t, scores[1])
	assert.Zero(t, scores[2])
	assert.InDelta(t, 1.049750, scores[3], 1e-5)
}

func TestScoresZeroIDFTerm(t *testing.T) {
	corpus := [][]string{
		{"alpha", "beta"},
		{"alpha", "gamma"},
		{"beta", "gamma"},
		{"delta"},
	}
	m := newBM25Model(corpus)

	// alpha appears in exactly half the corpus: idf = ln(2.5) - ln(2.5) = 0,
	// which is not negative and is not floored. Every score is zero.
	scores := m.scores([]string{"alpha"})
	for _, s := range scores {
		assert.Zero(t, s)
	}
}

func TestNegativeIDFFloored(t *testing.T) {
	// cat appears in 3 of 5 documents, so its raw idf is negative:
	//   ln(5-3+0.5) - ln(3.5) = ln(2.5/3.5) ~ -0.336472
	// dog and fish each score ln(4.5/1.5) = ln(3) ~ 1.098612. The floor is
	//   0.25 * (2*1.098612 - 0.336472) / 3 ~ 0.155063
	corpus := [][]string{
		{"cat"}, {"cat"}, {"cat"}, {"dog"}, {"fish"},
	}
	m := newBM25Model(corpus)

	require.Contains(t, m.idf, "cat")
	assert.InDelta(t, 0.155063, m.idf["cat"], 1e-5)
	assert.InDelta(t, 1.098612, m.idf["dog"], 1e-5)

	// All document lengths equal avgdl, so the tf term is exactly 1 and the
	// score for a single-occurrence query term is the floored idf itself.
	scores := m.scores([]string{"cat"})
	assert.InDelta(t, 0.155063, scores[0], 1e-5)
	assert.Zero(t, scores[3])
}

func TestScoresUnknownTermIgnored(t *testing.T) {
	corpus := [][]string{{"alpha"}, {"beta"}}
	m := newBM25Model(corpus)

	scores := m.scores([]string{"zeta"})
	require.Len(t, scores, 2)
	assert.Zero(t, scores[0])
	assert.Zero(t, scores[1])
}

func TestTermFrequencySaturation(t *testing.T) {
	corpus := [][]string{
		{"echo", "echo", "echo", "echo"},
		{"echo", "filler", "filler", "filler"},
		{"other", "words", "entirely", "here"},
	}
	m := newBM25Model(corpus)

	scores := m.scores([]string{"echo"})
	// Higher term frequency scores higher, but sublinearly: four
	// occurrences must not score four times one occurrence.
	assert.Greater(t, scores[0], scores[1])
	assert.Less(t, scores[0], 4*scores[1])
	assert.Zero(t, scores[2])
}
