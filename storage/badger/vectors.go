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


package badger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/storage"
)

const vectorKeyPrefix = "vectors/"

// VectorStore persists embeddings in a blob store and serves dense retrieval
// over them with an exact cosine-similarity scan. It is the local stand-in
// for a managed vector service; namespaces share nothing but the store.
type VectorStore struct {
	store  storage.BlobStore
	logger *slog.Logger
}

var _ ai.DenseRetriever = (*VectorStore)(nil)

// NewVectorStore creates a vector store on top of a blob store.
func NewVectorStore(store storage.BlobStore) *VectorStore {
	return &VectorStore{
		store:  store,
		logger: slog.Default().With("component", "vector-store"),
	}
}

func vectorKey(namespace, id string) string {
	return vectorKeyPrefix + namespace + "/" + id
}

// Upsert stores or replaces an embedding in a namespace.
func (v *VectorStore) Upsert(ctx context.Context, namespace string, entry *core.VectorEntry) error {
	if err := core.ValidateNamespace(namespace); err != nil {
		return err
	}
	if entry.ID == "" || len(entry.Vector) == 0 {
		return fmt.Errorf("%w: vector entry needs an ID and a non-empty vector", core.ErrInvalidInput)
	}
	return v.store.Put(ctx, vectorKey(namespace, entry.ID), storage.MarshalVectorEntry(entry))
}

// Remove deletes an embedding from a namespace.
func (v *VectorStore) Remove(ctx context.Context, namespace, id string) error {
	return v.store.Delete(ctx, vectorKey(namespace, id))
}

// Query returns the topK stored entries most similar to the query vector,
// best first. Implements ai.DenseRetriever.
func (v *VectorStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]core.RankedMatch, error) {
	if err := core.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	if err := core.ValidateTopK(topK); err != nil {
		return nil, err
	}

	prefix := vectorKeyPrefix + namespace + "/"
	keys, err := v.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	matches := []core.RankedMatch{}
	for _, key := range keys {
		data, err := v.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		entry, err := storage.UnmarshalVectorEntry(data)
		if err != nil {
			return nil, fmt.Errorf("vector %s: %w", strings.TrimPrefix(key, prefix), err)
		}
		score := cosineSimilarity(vector, entry.Vector)
		matches = append(matches, core.RankedMatch{
			ID:        entry.ID,
			Score:     score,
			Namespace: namespace,
			Metadata:  entry.Metadata,
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
	return matches, nil
}

// cosineSimilarity returns 0 for mismatched or zero-magnitude vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
