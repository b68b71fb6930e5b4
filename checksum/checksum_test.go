package checksum

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestAlgorithmBytesRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{SHA256, BLAKE3} {
		c1, err := alg.Bytes([]byte("apple"))
		if err != nil {
			t.Fatalf("%v: %v", alg, err)
		}
		c2, err := alg.Bytes([]byte("apple"))
		if err != nil {
			t.Fatalf("%v: %v", alg, err)
		}
		if !c1.Equal(c2) {
			t.Fatalf("%v: digest not deterministic", alg)
		}
		if len(c1) != Size256 {
			t.Fatalf("%v: expected %d bytes, got %d", alg, Size256, len(c1))
		}
	}
}

func TestAlgorithmFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a")
	if err := os.WriteFile(p, []byte("apple"), 0600); err != nil {
		t.Fatal(err)
	}
	fileSum, err := SHA256.File(p)
	if err != nil {
		t.Fatal(err)
	}
	bufSum, err := SHA256.Bytes([]byte("apple"))
	if err != nil {
		t.Fatal(err)
	}
	if !fileSum.Equal(bufSum) {
		t.Fatal("file digest does not match buffer digest for identical content")
	}
}

func TestHexRoundTrip(t *testing.T) {
	c, _ := SHA256.Bytes([]byte("apple"))
	s := c.String()
	back, err := FromHex(s)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(c, back) {
		t.Fatal("hex round trip mismatch")
	}
}

func TestParseAlgorithm(t *testing.T) {
	if a, err := ParseAlgorithm("SHA-256"); err != nil || a != SHA256 {
		t.Fatalf("got %v, %v", a, err)
	}
	if a, err := ParseAlgorithm("BLAKE3"); err != nil || a != BLAKE3 {
		t.Fatalf("got %v, %v", a, err)
	}
	if _, err := ParseAlgorithm("MD5"); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}
