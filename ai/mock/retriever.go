package mock

import (
	"context"

	"github.com/poiesic/retrievit/core"
)

// MockRetriever is a test double for ai.DenseRetriever.
// Canned matches can be staged per namespace, or behavior injected via
// QueryFunc.
type MockRetriever struct {
	// QueryFunc is called by Query if set.
	QueryFunc func(ctx context.Context, namespace string, vector []float32, topK int) ([]core.RankedMatch, error)

	// Matches holds canned results keyed by namespace, returned in order
	// when QueryFunc is nil.
	Matches map[string][]core.RankedMatch

	callCount int
}

// NewMockRetriever creates a mock retriever with no staged matches.
func NewMockRetriever() *MockRetriever {
	return &MockRetriever{Matches: make(map[string][]core.RankedMatch)}
}

// Stage sets the canned matches for a namespace. Ranks are assigned from
// list position when absent.
func (m *MockRetriever) Stage(namespace string, matches []core.RankedMatch) {
	for i := range matches {
		if matches[i].Rank == 0 {
			matches[i].Rank = i + 1
		}
		if matches[i].Namespace == "" {
			matches[i].Namespace = namespace
		}
	}
	m.Matches[namespace] = matches
}

// Query returns the staged matches for the namespace, truncated to topK.
func (m *MockRetriever) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]core.RankedMatch, error) {
	m.callCount++

	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, namespace, vector, topK)
	}

	matches := m.Matches[namespace]
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// CallCount returns the number of Query calls.
func (m *MockRetriever) CallCount() int {
	return m.callCount
}
