package commitment

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/suites"
	"lukechampine.com/blake3"
)

// Scheme computes the digest a commitment is made of. The output must be at
// least DigestParts*7 bytes long; extra bytes are dropped.
type Scheme interface {
	Name() string
	Digest(move uint32, nonce []byte) ([]byte, error)
}

const domainTag = "mental-arena/commit/v1"

func preimage(move uint32, nonce []byte) []byte {
	b := make([]byte, 0, len(domainTag)+4+len(nonce))
	b = append(b, domainTag...)
	b = binary.BigEndian.AppendUint32(b, move)
	return append(b, nonce...)
}

// SHA256 hashes the move and nonce with SHA-256.
type SHA256 struct{}

func (SHA256) Name() string { return "sha256" }

func (SHA256) Digest(move uint32, nonce []byte) ([]byte, error) {
	sum := sha256.Sum256(preimage(move, nonce))
	return sum[:], nil
}

// Blake3 hashes the move and nonce with BLAKE3.
type Blake3 struct{}

func (Blake3) Name() string { return "blake3" }

func (Blake3) Digest(move uint32, nonce []byte) ([]byte, error) {
	sum := blake3.Sum256(preimage(move, nonce))
	return sum[:], nil
}

// Pedersen commits with C = m*G + r*H over Ed25519, where H is a fixed point
// with unknown discrete log and r is expanded from the nonce.
type Pedersen struct {
	suite suites.Suite
	h     kyber.Point
}

// NewPedersen derives the second generator from a public seed.
func NewPedersen() *Pedersen {
	suite := suites.MustFind("Ed25519")
	return &Pedersen{
		suite: suite,
		h:     suite.Point().Pick(suite.XOF([]byte(domainTag + "/pedersen/h"))),
	}
}

func (p *Pedersen) Name() string { return "pedersen" }

func (p *Pedersen) Digest(move uint32, nonce []byte) ([]byte, error) {
	m := p.suite.Scalar().SetInt64(int64(move))
	r := p.suite.Scalar().Pick(p.suite.XOF(preimage(0, nonce)))
	c := p.suite.Point().Add(
		p.suite.Point().Mul(m, nil),
		p.suite.Point().Mul(r, p.h),
	)
	b, err := c.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal commitment point: %w", err)
	}
	return b, nil
}

// SchemeByName returns the scheme registered under name.
func SchemeByName(name string) (Scheme, error) {
	switch name {
	case "sha256", "":
		return SHA256{}, nil
	case "blake3":
		return Blake3{}, nil
	case "pedersen":
		return NewPedersen(), nil
	}
	return nil, fmt.Errorf("unknown commitment scheme %q", name)
}
