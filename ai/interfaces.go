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


package ai

import (
	"context"

	"github.com/poiesic/retrievit/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in a batch, in the
	// same order as the input. Batch calls are cheaper than repeated
	// EmbedText calls.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// DenseRetriever answers nearest-neighbor queries over embedded documents.
// Implementations must be thread-safe for concurrent use.
type DenseRetriever interface {
	// Query returns up to topK matches for the query vector in the given
	// namespace, best first, with 1-based ranks assigned.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]core.RankedMatch, error)
}

// RelevanceScorer judges how relevant a document text is to a query.
// Implementations must be thread-safe for concurrent use.
type RelevanceScorer interface {
	// Score returns a relevance score in [0, 1] for the query/text pair.
	Score(ctx context.Context, query, text string) (float64, error)
}

// Provider aggregates AI services for convenient initialization and
// lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Scorer returns the relevance scoring service.
	Scorer() RelevanceScorer

	// Close releases resources held by the provider and its services.
	Close() error
}
