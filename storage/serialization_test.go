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

import (
	"testing"

	"github.com/poiesic/retrievit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexStateRoundTrip(t *testing.T) {
	state := &core.IndexState{
		Namespace:     "articles",
		DocIDs:        []string{"d1", "d2", "d3"},
		Documents:     []string{"first text", "second text", "third text"},
		Corpus:        [][]string{{"first", "text"}, {"second", "text"}, {"third", "text"}},
		DocumentCount: 3,
		AvgDocLength:  2.0,
	}

	data := MarshalIndexState(state)
	require.NotEmpty(t, data)

	got, err := UnmarshalIndexState(data)
	require.NoError(t, err)

	assert.Equal(t, state.Namespace, got.Namespace)
	assert.Equal(t, state.DocIDs, got.DocIDs)
	assert.Equal(t, state.Documents, got.Documents)
	assert.Equal(t, state.Corpus, got.Corpus)
	assert.Equal(t, state.DocumentCount, got.DocumentCount)
	assert.InDelta(t, state.AvgDocLength, got.AvgDocLength, 1e-12)

	require.NoError(t, core.ValidateIndexState(got))
}

func TestUnmarshalIndexStateTruncated(t *testing.T) {
	state := &core.IndexState{
		Namespace:     "articles",
		DocIDs:        []string{"d1"},
		Documents:     []string{"only document"},
		Corpus:        [][]string{{"document"}},
		DocumentCount: 1,
		AvgDocLength:  1.0,
	}
	data := MarshalIndexState(state)

	_, err := UnmarshalIndexState(data[:len(data)/2])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestVectorEntryRoundTrip(t *testing.T) {
	entry := &core.VectorEntry{
		ID:     "doc-42",
		Vector: []float32{0.25, -1.5, 3.0},
		Metadata: map[string]string{
			core.MetadataTextSnippet: "the original text",
			"source":                 "ingest",
		},
	}

	data := MarshalVectorEntry(entry)
	require.NotEmpty(t, data)

	got, err := UnmarshalVectorEntry(data)
	require.NoError(t, err)

	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.Vector, got.Vector)
	assert.Equal(t, entry.Metadata, got.Metadata)
}

func TestUnmarshalVectorEntryTruncated(t *testing.T) {
	entry := &core.VectorEntry{ID: "doc-1", Vector: []float32{1, 2, 3, 4}}
	data := MarshalVectorEntry(entry)

	_, err := UnmarshalVectorEntry(data[:3])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
