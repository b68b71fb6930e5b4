package blob

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/lostatc/reversion/checksum"
)

func TestBufferBlobRoundTrip(t *testing.T) {
	b := FromBytes([]byte("apple"))
	r, err := b.Open()
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "apple" {
		t.Fatalf("got %q", data)
	}
	// Re-open must yield a fresh cursor at position 0.
	r2, _ := b.Open()
	data2, _ := io.ReadAll(r2)
	r2.Close()
	if string(data2) != "apple" {
		t.Fatalf("second open got %q", data2)
	}
}

func TestFileBlobChecksumMemoised(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a")
	os.WriteFile(p, []byte("apple"), 0600)
	b := FromFile(p)
	s1, err := b.Checksum(checksum.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := b.Checksum(checksum.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if !s1.Equal(s2) {
		t.Fatal("memoised checksum changed")
	}
	want, _ := checksum.SHA256.Bytes([]byte("apple"))
	if !s1.Equal(want) {
		t.Fatal("file blob checksum does not match expected digest")
	}
}

func TestBoundedBlob(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a")
	os.WriteFile(p, []byte("applepie"), 0600)
	b := FileSlice(p, 5, 3)
	r, err := b.Open()
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "pie" {
		t.Fatalf("got %q", data)
	}
}

func TestConcatBlob(t *testing.T) {
	c := Concat(FromBytes([]byte("app")), FromBytes([]byte("le")), FromBytes([]byte("pie")))
	r, err := c.Open()
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "applepie" {
		t.Fatalf("got %q", data)
	}
	sum, err := c.Checksum(checksum.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := checksum.SHA256.Bytes([]byte("applepie"))
	if !sum.Equal(want) {
		t.Fatal("concat checksum mismatch")
	}
}

func TestEqual(t *testing.T) {
	a := FromBytes([]byte("apple"))
	b := FromBytes([]byte("apple"))
	c := FromBytes([]byte("orange"))
	if eq, err := Equal(a, b, checksum.SHA256); err != nil || !eq {
		t.Fatalf("expected equal, got %v %v", eq, err)
	}
	if eq, err := Equal(a, c, checksum.SHA256); err != nil || eq {
		t.Fatalf("expected not equal, got %v %v", eq, err)
	}
}
