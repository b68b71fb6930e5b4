package config

import (
	"strconv"
	"strings"

	"github.com/lostatc/reversion/checksum"
	"github.com/lostatc/reversion/chunker"
)

// HashAlgorithm is the digest used for files and blobs in this repository
// (spec.md §3).
var HashAlgorithm = Property[checksum.Algorithm]{
	Key:     "hashAlgorithm",
	Default: checksum.SHA256,
	Name:    "Hash algorithm",
	Description: "Digest algorithm used for checksums of files and blobs " +
		"(SHA-256 or BLAKE3).",
	Convert: func(ctx ConvertContext, raw string) (checksum.Algorithm, error) {
		alg, err := checksum.ParseAlgorithm(raw)
		if err != nil {
			return 0, ctx.Fail(err.Error())
		}
		return alg, nil
	},
}

// BlockSize is the fixed-size chunker's block size in bytes, meaningful
// only when ChunkerKind is KindFixed (spec.md §3).
var BlockSize = Property[int64]{
	Key:         "blockSize",
	Default:     chunker.WholeFile().BlockSize,
	Name:        "Block size",
	Description: "Block size in bytes for the fixed-size chunker.",
	Convert: func(ctx ConvertContext, raw string) (int64, error) {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return 0, ctx.Fail("must be a positive integer")
		}
		return n, nil
	},
}

// ChunkerKind selects between the fixed-size and rolling-hash chunker
// variants (spec.md §3 "chunker").
var ChunkerKind = Property[chunker.Kind]{
	Key:         "chunkerKind",
	Default:     chunker.KindFixed,
	Name:        "Chunker kind",
	Description: "Chunk boundary strategy: \"fixed\" or \"rolling\".",
	Convert: func(ctx ConvertContext, raw string) (chunker.Kind, error) {
		switch strings.ToLower(raw) {
		case "fixed":
			return chunker.KindFixed, nil
		case "rolling":
			return chunker.KindRolling, nil
		default:
			return 0, ctx.Fail("must be \"fixed\" or \"rolling\"")
		}
	},
}

// ChunkerTargetBit is the rolling-hash chunker's target-size bit width,
// meaningful only when ChunkerKind is KindRolling.
var ChunkerTargetBit = Property[uint]{
	Key:         "chunkerTargetBit",
	Default:     20, // ~1 MiB average chunk size
	Name:        "Chunker target size (bits)",
	Description: "log2 of the rolling-hash chunker's target chunk size.",
	Convert: func(ctx ConvertContext, raw string) (uint, error) {
		n, err := strconv.ParseUint(raw, 10, 8)
		if err != nil || n == 0 || n > 40 {
			return 0, ctx.Fail("must be an integer between 1 and 40")
		}
		return uint(n), nil
	},
}

// ChunkerSpec resolves the full chunker.Spec for a Config, combining
// ChunkerKind with whichever of BlockSize/ChunkerTargetBit applies.
func ChunkerSpec(c *Config) (chunker.Spec, error) {
	kind, err := Get(c, ChunkerKind)
	if err != nil {
		return chunker.Spec{}, err
	}
	switch kind {
	case chunker.KindRolling:
		bit, err := Get(c, ChunkerTargetBit)
		if err != nil {
			return chunker.Spec{}, err
		}
		return chunker.Spec{Kind: chunker.KindRolling, TargetBit: bit}, nil
	default:
		size, err := Get(c, BlockSize)
		if err != nil {
			return chunker.Spec{}, err
		}
		return chunker.Spec{Kind: chunker.KindFixed, BlockSize: size}, nil
	}
}
