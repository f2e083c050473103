package commitment

import (
	"encoding/binary"
	"fmt"
)

const (
	// ChunkBits is the payload width of a part.
	ChunkBits = 56
	chunkMask = 1<<ChunkBits - 1
	chunkSize = ChunkBits / 8

	DigestParts = 4
	NonceParts  = 2
	NonceSize   = NonceParts * chunkSize

	digestHeader = 1
	nonceHeader  = 9

	// FieldModulus is the Goldilocks prime every part stays below.
	FieldModulus uint64 = 0xFFFFFFFF00000001
)

// Part is one transport sized piece of a digest or of a nonce.
type Part uint64

func newPart(header uint8, chunk uint64) Part {
	return Part(uint64(header)<<ChunkBits | chunk&chunkMask)
}

// Header returns the position tag of p.
func (p Part) Header() uint8 {
	return uint8(uint64(p) >> ChunkBits)
}

// Chunk returns the 56 bit payload of p.
func (p Part) Chunk() uint64 {
	return uint64(p) & chunkMask
}

// DigestIndex returns the position of p inside a digest.
func (p Part) DigestIndex() (int, bool) {
	h := p.Header()
	if h < digestHeader || h >= digestHeader+DigestParts {
		return 0, false
	}
	return int(h - digestHeader), true
}

// NonceIndex returns the position of p inside a nonce.
func (p Part) NonceIndex() (int, bool) {
	h := p.Header()
	if h < nonceHeader || h >= nonceHeader+NonceParts {
		return 0, false
	}
	return int(h - nonceHeader), true
}

// IsDigest reports whether p is a well formed digest part.
func (p Part) IsDigest() bool {
	_, ok := p.DigestIndex()
	return ok && uint64(p) < FieldModulus
}

// IsNonce reports whether p is a well formed nonce part.
func (p Part) IsNonce() bool {
	_, ok := p.NonceIndex()
	return ok && uint64(p) < FieldModulus
}

func (p Part) String() string {
	return fmt.Sprintf("%d:%014x", p.Header(), p.Chunk())
}

// split cuts b into count 7 byte chunks tagged with consecutive headers.
func split(b []byte, header uint8, count int) []Part {
	parts := make([]Part, count)
	var buf [8]byte
	for i := range count {
		copy(buf[1:], b[i*chunkSize:(i+1)*chunkSize])
		parts[i] = newPart(header+uint8(i), binary.BigEndian.Uint64(buf[:]))
	}
	return parts
}

// join is the inverse of split. Parts may be in any order; missing,
// duplicated or foreign parts make it fail.
func join(parts []Part, header uint8, count int) ([]byte, bool) {
	if len(parts) != count {
		return nil, false
	}
	out := make([]byte, count*chunkSize)
	seen := make([]bool, count)
	var buf [8]byte
	for _, p := range parts {
		if uint64(p) >= FieldModulus {
			return nil, false
		}
		h := p.Header()
		if h < header || int(h-header) >= count {
			return nil, false
		}
		i := int(h - header)
		if seen[i] {
			return nil, false
		}
		seen[i] = true
		binary.BigEndian.PutUint64(buf[:], p.Chunk())
		copy(out[i*chunkSize:], buf[1:])
	}
	return out, true
}
