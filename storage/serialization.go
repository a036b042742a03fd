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
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/retrievit/core"
)

// MUS serializers for the persisted types. Written against the mus-go
// primitive serializers; field order is the wire format and must not change.
var (
	stringSliceMUS  = ord.NewSliceSer[string](ord.String)
	corpusMUS       = ord.NewSliceSer[[]string](stringSliceMUS)
	float32SliceMUS = ord.NewSliceSer[float32](varint.Float32)
	metadataMUS     = ord.NewMapSer[string, string](ord.String, ord.String)

	// IndexStateMUS serializes a complete per-namespace sparse index state.
	IndexStateMUS = indexStateSer{}

	// VectorEntryMUS serializes a stored embedding.
	VectorEntryMUS = vectorEntrySer{}
)

type indexStateSer struct{}

func (indexStateSer) Marshal(s core.IndexState, bs []byte) (n int) {
	n = ord.String.Marshal(s.Namespace, bs)
	n += stringSliceMUS.Marshal(s.DocIDs, bs[n:])
	n += stringSliceMUS.Marshal(s.Documents, bs[n:])
	n += corpusMUS.Marshal(s.Corpus, bs[n:])
	n += varint.Int.Marshal(s.DocumentCount, bs[n:])
	n += varint.Float64.Marshal(s.AvgDocLength, bs[n:])
	return n
}

func (indexStateSer) Unmarshal(bs []byte) (s core.IndexState, n int, err error) {
	var m int
	if s.Namespace, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if s.DocIDs, m, err = stringSliceMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.Documents, m, err = stringSliceMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.Corpus, m, err = corpusMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.DocumentCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	if s.AvgDocLength, m, err = varint.Float64.Unmarshal(bs[n:]); err != nil {
		return s, n + m, err
	}
	n += m
	return s, n, nil
}

func (indexStateSer) Size(s core.IndexState) (size int) {
	size = ord.String.Size(s.Namespace)
	size += stringSliceMUS.Size(s.DocIDs)
	size += stringSliceMUS.Size(s.Documents)
	size += corpusMUS.Size(s.Corpus)
	size += varint.Int.Size(s.DocumentCount)
	size += varint.Float64.Size(s.AvgDocLength)
	return size
}

type vectorEntrySer struct{}

func (vectorEntrySer) Marshal(v core.VectorEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += float32SliceMUS.Marshal(v.Vector, bs[n:])
	n += metadataMUS.Marshal(v.Metadata, bs[n:])
	return n
}

func (vectorEntrySer) Unmarshal(bs []byte) (v core.VectorEntry, n int, err error) {
	var m int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.Vector, m, err = float32SliceMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.Metadata, m, err = metadataMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	return v, n, nil
}

func (vectorEntrySer) Size(v core.VectorEntry) (size int) {
	size = ord.String.Size(v.ID)
	size += float32SliceMUS.Size(v.Vector)
	size += metadataMUS.Size(v.Metadata)
	return size
}

// MarshalIndexState serializes an index state to bytes.
func MarshalIndexState(state *core.IndexState) []byte {
	buf := make([]byte, IndexStateMUS.Size(*state))
	IndexStateMUS.Marshal(*state, buf)
	return buf
}

// UnmarshalIndexState deserializes an index state from bytes.
func UnmarshalIndexState(data []byte) (*core.IndexState, error) {
	state, _, err := IndexStateMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &state, nil
}

// MarshalVectorEntry serializes a vector entry to bytes.
func MarshalVectorEntry(entry *core.VectorEntry) []byte {
	buf := make([]byte, VectorEntryMUS.Size(*entry))
	VectorEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalVectorEntry deserializes a vector entry from bytes.
func UnmarshalVectorEntry(data []byte) (*core.VectorEntry, error) {
	entry, _, err := VectorEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &entry, nil
}
