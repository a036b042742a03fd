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


package storage

import "context"

// BlobStore is a durable key-value store for opaque blobs. It is the
// persistence boundary for index snapshots and stored vectors.
// Implementations must be thread-safe and support concurrent access.
type BlobStore interface {
	// Put stores data under key, replacing any existing blob.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the blob stored under key.
	// Returns ErrNotFound if no blob exists for the key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob stored under key.
	// Returns ErrNotFound if no blob exists for the key.
	Delete(ctx context.Context, key string) error

	// List returns all keys with the given prefix, in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
