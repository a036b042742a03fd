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


// Package token implements the deterministic text-to-token pipeline shared by
// indexing and querying.
//
// The pipeline lowercases, collapses whitespace, strips punctuation, drops
// stopwords and single-character tokens, and applies exactly one morphological
// normalization strategy (Porter stemming or dictionary lemmatization),
// selected at construction. Running the same pipeline on both sides is what
// keeps index and query vocabulary aligned.
package token
