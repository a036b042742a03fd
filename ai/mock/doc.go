// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.DenseRetriever,
// and ai.RelevanceScorer for use in unit tests. The mocks allow tests to run
// without external AI service dependencies and enable controlled,
// deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	embedder := mock.NewMockEmbedder()
//	vector, err := embedder.EmbedText(ctx, "test")
//
//	// Canned dense results
//	retriever := mock.NewMockRetriever()
//	retriever.Stage("docs", []core.RankedMatch{{ID: "a", Score: 0.9}})
//
//	// Custom behavior injection
//	scorer := mock.NewMockScorer()
//	scorer.ScoreFunc = func(ctx context.Context, query, text string) (float64, error) {
//	    return 0.5, nil
//	}
//
// # Default Behavior
//
//   - MockEmbedder: deterministic vectors derived from a text hash
//   - MockRetriever: staged per-namespace results, truncated to topK
//   - MockScorer: fraction of query words found in the text
package mock
