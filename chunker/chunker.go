// Package chunker splits a seekable byte source into (offset, length)
// boundaries. Two variants are provided: fixed-size and content-defined
// (rolling-hash, ZPAQ-style). spec.md §4.3 / §9 "iterator returning
// chunker" — modeled as a restartable finite sequence producer rather than
// an infinite stream.
package chunker

import (
	"io"

	"github.com/uplo-tech/errors"
)

// Chunk is a non-overlapping byte range within a source. Concatenated in
// order, a source's Chunks reproduce it exactly.
type Chunk struct {
	Offset int64
	Length int64
}

// Source is the seekable random-access byte source a Chunker consumes. The
// chunker closes it at the end of Chunk, matching spec.md §4.3.
type Source interface {
	io.ReadSeeker
	io.Closer
}

// Chunker produces the boundary list for a Source. Implementations must be
// deterministic: identical bytes and parameters yield identical boundaries
// across runs and platforms (spec.md §4.3 "Determinism").
type Chunker interface {
	Chunk(src Source) ([]Chunk, error)
}

// Spec names a chunker and its parameters, as persisted in a repository's
// config table under the "chunker" property (spec.md §3).
type Spec struct {
	Kind      Kind
	BlockSize int64 // meaningful for KindFixed
	TargetBit uint  // meaningful for KindRolling: target size is 2^TargetBit
}

// Kind selects the chunker variant.
type Kind uint8

const (
	// KindFixed splits into equal blocks of BlockSize bytes, the last
	// chunk being the remainder.
	KindFixed Kind = iota
	// KindRolling splits at content-defined boundaries using a rolling
	// hash.
	KindRolling
)

// ErrInvalidSpec is returned when a Spec has parameters a Chunker can't
// act on (e.g. a zero block size).
var ErrInvalidSpec = errors.New("invalid chunker spec")

// New constructs the Chunker described by spec.
func New(spec Spec) (Chunker, error) {
	switch spec.Kind {
	case KindFixed:
		if spec.BlockSize <= 0 {
			return nil, ErrInvalidSpec
		}
		return FixedChunker{Size: spec.BlockSize}, nil
	case KindRolling:
		if spec.TargetBit == 0 {
			return nil, ErrInvalidSpec
		}
		return NewRollingHashChunker(spec.TargetBit), nil
	default:
		return nil, ErrInvalidSpec
	}
}

// WholeFile is the repository default chunker spec: one chunk per file
// (spec.md §3 "effectively unbounded size").
func WholeFile() Spec {
	return Spec{Kind: KindFixed, BlockSize: 1 << 62}
}
