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


// Package index maintains per-namespace sparse text indices scored with
// Okapi BM25. Each namespace holds its documents as an immutable snapshot
// published through an atomic pointer, so searches are lock-free while
// mutations rebuild and swap the snapshot under a per-namespace lock.
// Snapshots can be persisted to and restored from a storage.BlobStore.
package index
