// Package checksum provides the opaque digest type used to content-address
// every blob, version and repository format marker in reversion.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/uplo-tech/errors"
	"lukechampine.com/blake3"
)

// Size256 is the digest size, in bytes, produced by SHA-256 and BLAKE3.
const Size256 = 32

// ErrInvalidAlgorithm is returned when an unrecognised algorithm name is
// parsed or used.
var ErrInvalidAlgorithm = errors.New("invalid hash algorithm")

// Checksum is an opaque digest. Equality and ordering are by raw bytes.
type Checksum []byte

// String encodes the checksum to lower-case hex, as used for blob store
// filenames.
func (c Checksum) String() string {
	return hex.EncodeToString(c)
}

// Equal reports whether two checksums carry identical bytes.
func (c Checksum) Equal(o Checksum) bool {
	return bytes.Equal(c, o)
}

// Compare orders two checksums by raw bytes, matching bytes.Compare.
func (c Checksum) Compare(o Checksum) int {
	return bytes.Compare(c, o)
}

// FromHex decodes a lower-case hex string into a Checksum.
func FromHex(s string) (Checksum, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.AddContext(err, "could not decode checksum hex")
	}
	return Checksum(b), nil
}

// Algorithm identifies a supported digest algorithm. Modeled on the
// teacher's crypto.CipherType: a small closed value type with a
// String/ParseAlgorithm round trip, switched rather than reflected.
type Algorithm uint8

// Recognised algorithms. SHA256 is the repository default.
const (
	SHA256 Algorithm = iota
	BLAKE3
)

// String returns the canonical name of the algorithm, as persisted in the
// repository's config table and format.json.
func (a Algorithm) String() string {
	switch a {
	case SHA256:
		return "SHA-256"
	case BLAKE3:
		return "BLAKE3"
	default:
		return ""
	}
}

// ParseAlgorithm parses the canonical name produced by Algorithm.String.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "SHA-256", "":
		return SHA256, nil
	case "BLAKE3":
		return BLAKE3, nil
	default:
		return 0, errors.Extend(ErrInvalidAlgorithm, errors.New(s))
	}
}

// NewHash returns a fresh streaming hash.Hash for the algorithm.
func (a Algorithm) NewHash() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case BLAKE3:
		return blake3.New(Size256, nil), nil
	default:
		return nil, ErrInvalidAlgorithm
	}
}

// Stream digests everything read from r.
func (a Algorithm) Stream(r io.Reader) (Checksum, error) {
	h, err := a.NewHash()
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return nil, errors.AddContext(err, "could not read stream for digest")
	}
	return Checksum(h.Sum(nil)), nil
}

// Bytes digests an in-memory buffer.
func (a Algorithm) Bytes(b []byte) (Checksum, error) {
	h, err := a.NewHash()
	if err != nil {
		return nil, err
	}
	h.Write(b)
	return Checksum(h.Sum(nil)), nil
}

// File digests the file at path without holding its full contents in
// memory.
func (a Algorithm) File(path string) (Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.AddContext(err, "could not open file for digest")
	}
	defer f.Close()
	return a.Stream(f)
}
