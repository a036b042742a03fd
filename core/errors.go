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


package core

import "errors"

// Retrieval error taxonomy. Every operation exposed by the engine classifies
// its failures against these sentinels; callers test with errors.Is and use
// Kind for a stable string tag in responses.
var (
	// ErrInvalidInput indicates mismatched or malformed arguments, including
	// an unknown fusion method.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates an unknown namespace or document.
	ErrNotFound = errors.New("not found")

	// ErrEmptyQuery indicates a query that produced zero tokens after
	// preprocessing.
	ErrEmptyQuery = errors.New("empty query")

	// ErrNoResults indicates there were no candidates to rank.
	ErrNoResults = errors.New("no results")

	// ErrDependencyUnavailable indicates the reranker scorer or persistence
	// backend is unreachable.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrCorruptState indicates a persisted index blob failed shape
	// validation on load.
	ErrCorruptState = errors.New("corrupt index state")
)

// Kind returns a stable classification tag for an error, suitable for
// embedding in a response envelope. Unclassified errors map to "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, ErrNoResults):
		return "no_results"
	case errors.Is(err, ErrDependencyUnavailable):
		return "dependency_unavailable"
	case errors.Is(err, ErrCorruptState):
		return "corrupt_state"
	default:
		return "internal"
	}
}
