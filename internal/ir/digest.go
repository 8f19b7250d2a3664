package ir

import (
	"fmt"
	"hash/crc32"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Digest names accepted by DigesterByName.
const (
	DigestCRC32C = "crc32c"
	DigestXXHash = "xxhash"
)

// Digest is the fingerprint of a folded field collection.
//
// Value is the wire form embedded in every patch and must fit the one byte
// length prefix, so it is never longer than 255 bytes.
type Digest struct {
	Value  []byte
	Length int
}

// Digester fingerprints a byte sequence for divergence detection.
// Implementations must be deterministic; they are not required to be
// cryptographically strong.
type Digester interface {
	Name() string
	Digest(data []byte) Digest
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C is the default digester: CRC-32C (Castagnoli) rendered as the
// decimal ASCII of the checksum.
//
// Example: CRC32C{}.Digest([]byte("Test")).Value == []byte("1367696971")
type CRC32C struct{}

// Name implements Digester.
func (CRC32C) Name() string { return DigestCRC32C }

// Digest implements Digester.
func (CRC32C) Digest(data []byte) Digest {
	sum := crc32.Checksum(data, castagnoli)
	value := strconv.AppendUint(nil, uint64(sum), 10)
	return Digest{Value: value, Length: len(value)}
}

// XXHash64 fingerprints with xxHash64, rendered as decimal ASCII.
// Both parties must agree on the digester; the wire format does not name it.
type XXHash64 struct{}

// Name implements Digester.
func (XXHash64) Name() string { return DigestXXHash }

// Digest implements Digester.
func (XXHash64) Digest(data []byte) Digest {
	value := strconv.AppendUint(nil, xxhash.Sum64(data), 10)
	return Digest{Value: value, Length: len(value)}
}

// DigesterByName resolves a digester from its configuration name.
// An empty name selects CRC32C.
func DigesterByName(name string) (Digester, error) {
	switch name {
	case "", DigestCRC32C:
		return CRC32C{}, nil
	case DigestXXHash:
		return XXHash64{}, nil
	default:
		return nil, fmt.Errorf("unknown digest %q: must be one of [%s %s]", name, DigestCRC32C, DigestXXHash)
	}
}
