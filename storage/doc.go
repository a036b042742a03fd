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


// Package storage provides the persistence abstraction layer for retrievit.
//
// The BlobStore interface decouples index persistence from any particular
// backend: index snapshots and stored vectors are opaque blobs addressed by
// key. The badger subpackage provides the default embedded implementation;
// tests use its in-memory mode.
//
// Serialization uses the MUS binary format. The serializers in this package
// define the wire layout of every persisted type; their field order is the
// format and must stay stable across versions.
//
// All BlobStore methods accept a context.Context. Implementations must be
// thread-safe.
package storage
