package mock

import (
	"context"
	"strings"
)

// MockScorer is a test double for ai.RelevanceScorer.
// The default behavior scores by query term overlap, which is deterministic
// and monotonic in shared vocabulary. Custom behavior can be injected via
// ScoreFunc.
type MockScorer struct {
	// ScoreFunc is called by Score if set.
	ScoreFunc func(ctx context.Context, query, text string) (float64, error)

	callCount int
}

// NewMockScorer creates a mock scorer with default overlap-based behavior.
func NewMockScorer() *MockScorer {
	return &MockScorer{}
}

// Score returns the fraction of query words present in the text.
func (m *MockScorer) Score(ctx context.Context, query, text string) (float64, error) {
	m.callCount++

	if m.ScoreFunc != nil {
		return m.ScoreFunc(ctx, query, text)
	}

	queryWords := strings.Fields(strings.ToLower(query))
	if len(queryWords) == 0 {
		return 0, nil
	}
	lowered := strings.ToLower(text)
	hits := 0
	for _, w := range queryWords {
		if strings.Contains(lowered, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(queryWords)), nil
}

// CallCount returns the number of Score calls.
func (m *MockScorer) CallCount() int {
	return m.callCount
}
