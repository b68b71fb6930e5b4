// Package blob provides lazy, re-readable byte sources identified by a
// content digest. A Blob may be realised from a file path, an in-memory
// buffer, a bounded slice of another source, or a lazy concatenation of
// blobs. This is the tagged-variant replacement for the teacher's
// inheritance-based design (spec.md §9 "inheritance-based Blob variants").
package blob

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/lostatc/reversion/checksum"
	"github.com/uplo-tech/errors"
)

// Blob is a logical byte source identified by its Checksum. Opening a Blob
// yields a fresh cursor positioned at zero; the same Blob may be opened
// repeatedly. This package's implementations compute Checksum lazily on
// first access and cache it for the life of the value, per spec.md §9's
// "lazy delegated checksum"; blobstore's file-backed blobs recompute it on
// every call.
type Blob interface {
	// Open returns a fresh ReadCloser over the blob's bytes, starting at
	// offset zero.
	Open() (io.ReadCloser, error)

	// Checksum returns the digest of the blob's bytes under the given
	// algorithm. This package's implementations compute it on first call
	// and memoise it thereafter.
	Checksum(alg checksum.Algorithm) (checksum.Checksum, error)

	// Size returns the number of bytes the blob will yield.
	Size() (int64, error)
}

// lazyChecksum memoises a single algorithm's digest. Mixing algorithms
// against the same Blob value is a programmer error (spec.md §4.1); the
// cache holds the most recently requested algorithm's digest, and asking
// for a different algorithm recomputes and replaces it.
type lazyChecksum struct {
	mu  sync.Mutex
	alg checksum.Algorithm
	set bool
	sum checksum.Checksum
}

func (l *lazyChecksum) get(alg checksum.Algorithm, open func() (io.ReadCloser, error)) (checksum.Checksum, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set && l.alg == alg {
		return l.sum, nil
	}
	r, err := open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	sum, err := alg.Stream(r)
	if err != nil {
		return nil, err
	}
	l.alg, l.sum, l.set = alg, sum, true
	return sum, nil
}

// fileBlob is a Blob backed by a file on disk. The underlying file must not
// change between Checksum and later Open calls; doing so is caller misuse
// per spec.md §4.2.
type fileBlob struct {
	path string
	lc   lazyChecksum
}

// FromFile returns a Blob backed by the file at path.
func FromFile(path string) Blob {
	return &fileBlob{path: path}
}

func (b *fileBlob) Open() (io.ReadCloser, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, errors.AddContext(err, "could not open file blob")
	}
	return f, nil
}

func (b *fileBlob) Checksum(alg checksum.Algorithm) (checksum.Checksum, error) {
	return b.lc.get(alg, b.Open)
}

func (b *fileBlob) Size() (int64, error) {
	fi, err := os.Stat(b.path)
	if err != nil {
		return 0, errors.AddContext(err, "could not stat file blob")
	}
	return fi.Size(), nil
}

// bufferBlob is a Blob backed by an in-memory byte slice.
type bufferBlob struct {
	data []byte
	lc   lazyChecksum
}

// FromBytes returns a Blob backed by an in-memory buffer. The buffer is not
// copied; callers must not mutate it after this call.
func FromBytes(data []byte) Blob {
	return &bufferBlob{data: data}
}

func (b *bufferBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (b *bufferBlob) Checksum(alg checksum.Algorithm) (checksum.Checksum, error) {
	return b.lc.get(alg, b.Open)
}

func (b *bufferBlob) Size() (int64, error) {
	return int64(len(b.data)), nil
}

// boundedBlob is a Blob reading at most length bytes starting at offset
// within another seekable source. It satisfies partial-file reads when
// chunking a larger Blob or file into pieces.
type boundedBlob struct {
	open   func() (io.ReadSeeker, error)
	offset int64
	length int64
	lc     lazyChecksum
}

// FromSlice returns a Blob over [offset, offset+length) of the byte source
// produced by open. open is called once per Open/Checksum invocation so the
// resulting Blob remains re-readable.
func FromSlice(open func() (io.ReadSeeker, error), offset, length int64) Blob {
	return &boundedBlob{open: open, offset: offset, length: length}
}

// FileSlice is a convenience constructor for a bounded slice of a file on
// disk, the common case used by the chunker to turn Chunks into Blobs.
func FileSlice(path string, offset, length int64) Blob {
	return FromSlice(func() (io.ReadSeeker, error) {
		return os.Open(path)
	}, offset, length)
}

type boundedReader struct {
	io.Reader
	closer io.Closer
}

func (b *boundedReader) Close() error {
	if b.closer != nil {
		return b.closer.Close()
	}
	return nil
}

func (b *boundedBlob) Open() (io.ReadCloser, error) {
	rs, err := b.open()
	if err != nil {
		return nil, errors.AddContext(err, "could not open bounded blob source")
	}
	if _, err := rs.Seek(b.offset, io.SeekStart); err != nil {
		if c, ok := rs.(io.Closer); ok {
			c.Close()
		}
		return nil, errors.AddContext(err, "could not seek bounded blob source")
	}
	lr := io.LimitReader(rs, b.length)
	closer, _ := rs.(io.Closer)
	return &boundedReader{Reader: lr, closer: closer}, nil
}

func (b *boundedBlob) Checksum(alg checksum.Algorithm) (checksum.Checksum, error) {
	return b.lc.get(alg, b.Open)
}

func (b *boundedBlob) Size() (int64, error) {
	return b.length, nil
}

// concatBlob lazily concatenates a sequence of child blobs, opening one
// child cursor at a time to bound the number of simultaneously open file
// descriptors (spec.md §4.2).
type concatBlob struct {
	children []Blob
	lc       lazyChecksum
}

// Concat returns a Blob that reads each child in order, opening each one
// only when the previous child is exhausted.
func Concat(children ...Blob) Blob {
	return &concatBlob{children: children}
}

type concatReader struct {
	children []Blob
	idx      int
	cur      io.ReadCloser
}

func (r *concatReader) Read(p []byte) (int, error) {
	for {
		if r.cur == nil {
			if r.idx >= len(r.children) {
				return 0, io.EOF
			}
			c, err := r.children[r.idx].Open()
			if err != nil {
				return 0, err
			}
			r.cur = c
		}
		n, err := r.cur.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == io.EOF {
			r.cur.Close()
			r.cur = nil
			r.idx++
			continue
		}
		if err != nil {
			return 0, err
		}
	}
}

func (r *concatReader) Close() error {
	if r.cur != nil {
		return r.cur.Close()
	}
	return nil
}

func (b *concatBlob) Open() (io.ReadCloser, error) {
	return &concatReader{children: b.children}, nil
}

func (b *concatBlob) Checksum(alg checksum.Algorithm) (checksum.Checksum, error) {
	return b.lc.get(alg, b.Open)
}

func (b *concatBlob) Size() (int64, error) {
	var total int64
	for _, c := range b.children {
		n, err := c.Size()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Equal reports whether two blobs carry identical content under the given
// algorithm, per spec.md §4.2 "equality is by checksum".
func Equal(a, b Blob, alg checksum.Algorithm) (bool, error) {
	sa, err := a.Checksum(alg)
	if err != nil {
		return false, err
	}
	sb, err := b.Checksum(alg)
	if err != nil {
		return false, err
	}
	return sa.Equal(sb), nil
}
