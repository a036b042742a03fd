package core

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// IDFromContent generates a deterministic document ID from text content using
// BLAKE2b hashing. Identical content always produces the same ID, which lets
// callers ingest raw text without inventing identifiers.
func IDFromContent(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return "doc-" + hexEncode(binary.LittleEndian.Uint64(sum))
}

const hexDigits = "0123456789abcdef"

func hexEncode(v uint64) string {
	var buf [16]byte
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf[:])
}

// Document is a unit of indexable text. ID must be unique within a namespace.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string // optional; may carry full_text / text_snippet fields
}

// Metadata keys recognized by the reranking stage, in order of preference.
const (
	MetadataFullText    = "full_text"
	MetadataTextSnippet = "text_snippet"
	MetadataText        = "text"
)

// RankedMatch is a single entry in a ranked retrieval result, best first.
// Rank is 1-based; a zero Rank means the position in the list is the rank.
type RankedMatch struct {
	ID        string
	Score     float64
	Rank      int
	Namespace string
	Metadata  map[string]string
}

// Candidate is the output unit of fusion and multi-namespace merging.
// It carries the fused score plus full provenance from both retrieval sides.
type Candidate struct {
	ID    string
	Score float64

	// Provenance from the dense (semantic) side.
	DenseScore float64
	DenseRank  int // 1-based, 0 if absent from the dense list
	InDense    bool

	// Provenance from the sparse (lexical) side.
	SparseScore float64
	SparseRank  int // 1-based, 0 if absent from the sparse list
	InSparse    bool

	Namespace string
	Metadata  map[string]string

	// Boosted is set when a primary-namespace multiplier was applied.
	Boosted bool

	// Reranking provenance; populated only after a rerank stage ran.
	OriginalScore float64
	OriginalRank  int
}

// NamespaceStats describes the sparse index state of one namespace.
type NamespaceStats struct {
	Namespace     string
	DocumentCount int
	AvgDocLength  float64
}

// IndexState is the serializable sparse-index state of one namespace: the
// three parallel sequences plus the statistics the scoring model was built
// with. DocIDs, Documents and Corpus always have equal length and matching
// positions.
type IndexState struct {
	Namespace     string
	DocIDs        []string
	Documents     []string
	Corpus        [][]string
	DocumentCount int
	AvgDocLength  float64
}

// VectorEntry is a stored embedding for the dense side of retrieval.
type VectorEntry struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}
