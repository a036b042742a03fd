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

import "fmt"

// ValidateNamespace checks that a namespace identifier is usable.
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("%w: namespace must not be empty", ErrInvalidInput)
	}
	return nil
}

// ValidateBatch checks an add-documents batch: texts and IDs must be the same
// length and the batch must not be empty.
func ValidateBatch(documents []string, docIDs []string) error {
	if len(documents) != len(docIDs) {
		return fmt.Errorf("%w: documents and doc IDs must have same length (%d != %d)",
			ErrInvalidInput, len(documents), len(docIDs))
	}
	if len(documents) == 0 {
		return fmt.Errorf("%w: no documents provided", ErrInvalidInput)
	}
	return nil
}

// ValidateTopK checks a result-count parameter.
func ValidateTopK(topK int) error {
	if topK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidInput, topK)
	}
	return nil
}

// ValidateIndexState checks the shape of a deserialized index state before it
// may be accepted: the three parallel sequences must align with each other and
// with the recorded statistics.
func ValidateIndexState(state *IndexState) error {
	if state == nil {
		return fmt.Errorf("%w: nil index state", ErrCorruptState)
	}
	if state.Namespace == "" {
		return fmt.Errorf("%w: missing namespace", ErrCorruptState)
	}
	n := len(state.DocIDs)
	if len(state.Documents) != n || len(state.Corpus) != n {
		return fmt.Errorf("%w: parallel sequences misaligned (%d ids, %d documents, %d corpus entries)",
			ErrCorruptState, n, len(state.Documents), len(state.Corpus))
	}
	if n == 0 {
		return fmt.Errorf("%w: empty index state", ErrCorruptState)
	}
	if state.DocumentCount != n {
		return fmt.Errorf("%w: document count %d does not match %d entries",
			ErrCorruptState, state.DocumentCount, n)
	}
	total := 0
	for _, tokens := range state.Corpus {
		if len(tokens) == 0 {
			return fmt.Errorf("%w: empty tokenized document in corpus", ErrCorruptState)
		}
		total += len(tokens)
	}
	avg := float64(total) / float64(n)
	if diff := state.AvgDocLength - avg; diff > 1e-6 || diff < -1e-6 {
		return fmt.Errorf("%w: recorded average document length %g does not match corpus (%g)",
			ErrCorruptState, state.AvgDocLength, avg)
	}
	return nil
}

// ValidateAlpha checks a fusion weight.
func ValidateAlpha(alpha float64) error {
	if alpha < 0 || alpha > 1 {
		return fmt.Errorf("%w: alpha must be in [0,1], got %g", ErrInvalidInput, alpha)
	}
	return nil
}
