package chunker

import (
	"bytes"
	"os"

	"github.com/uplo-tech/errors"
)

// OpenFile returns a Source over the file at path.
func OpenFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.AddContext(err, "could not open file for chunking")
	}
	return f, nil
}

type bytesSource struct {
	*bytes.Reader
}

func (bytesSource) Close() error { return nil }

// FromBytes returns a Source over an in-memory buffer, mainly useful for
// tests.
func FromBytes(data []byte) Source {
	return bytesSource{bytes.NewReader(data)}
}
