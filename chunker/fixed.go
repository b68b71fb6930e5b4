package chunker

import (
	"io"

	"github.com/uplo-tech/errors"
)

// FixedChunker yields (0, Size), (Size, Size), ... with the final chunk
// being whatever remainder is left (spec.md §4.3 "Fixed-size(N)").
type FixedChunker struct {
	Size int64
}

// Chunk implements Chunker.
func (c FixedChunker) Chunk(src Source) ([]Chunk, error) {
	defer src.Close()
	total, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.AddContext(err, "could not seek to end of source")
	}
	if total == 0 {
		return []Chunk{{Offset: 0, Length: 0}}, nil
	}
	var chunks []Chunk
	for off := int64(0); off < total; off += c.Size {
		length := c.Size
		if off+length > total {
			length = total - off
		}
		chunks = append(chunks, Chunk{Offset: off, Length: length})
	}
	return chunks, nil
}
