package commitment

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/luca-patrignani/mental-arena/errs"
)

// DefaultMaxMove is the move range of the standard arena roster.
const DefaultMaxMove = 20

// Commitment is the local secret of one round: the move, its nonce and the
// public digest parts.
type Commitment struct {
	Move   uint32          `json:"move"`
	Nonce  [NonceSize]byte `json:"nonce"`
	Digest []Part          `json:"digest"`
}

// Reveal is what a player publishes to open a commitment.
type Reveal struct {
	Move  uint32 `json:"move"`
	Nonce []Part `json:"nonce"`
}

// Engine creates and verifies commitments with one scheme.
type Engine struct {
	scheme  Scheme
	maxMove uint32
	rand    io.Reader
}

type Option func(*Engine)

// WithRandom replaces the nonce source. Tests only.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) {
		e.rand = r
	}
}

// WithMaxMove sets the upper bound of the move range.
func WithMaxMove(n uint32) Option {
	return func(e *Engine) {
		e.maxMove = n
	}
}

func NewEngine(scheme Scheme, opts ...Option) *Engine {
	e := &Engine{
		scheme:  scheme,
		maxMove: DefaultMaxMove,
		rand:    rand.Reader,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scheme returns the digest scheme of e.
func (e *Engine) Scheme() Scheme {
	return e.scheme
}

func (e *Engine) checkMove(move uint32) error {
	if move < 1 || move > e.maxMove {
		return errs.Newf(errs.CodeInvalidMove, "move %d outside [1, %d]", move, e.maxMove)
	}
	return nil
}

// Commit draws a fresh nonce and commits to move.
func (e *Engine) Commit(move uint32) (Commitment, error) {
	if err := e.checkMove(move); err != nil {
		return Commitment{}, err
	}
	c := Commitment{Move: move}
	if _, err := io.ReadFull(e.rand, c.Nonce[:]); err != nil {
		return Commitment{}, fmt.Errorf("read nonce: %w", err)
	}
	parts, err := e.digestParts(move, c.Nonce[:])
	if err != nil {
		return Commitment{}, err
	}
	c.Digest = parts
	return c, nil
}

func (e *Engine) digestParts(move uint32, nonce []byte) ([]Part, error) {
	d, err := e.scheme.Digest(move, nonce)
	if err != nil {
		return nil, fmt.Errorf("%s digest: %w", e.scheme.Name(), err)
	}
	if len(d) < DigestParts*chunkSize {
		return nil, fmt.Errorf("%s digest too short: %d bytes", e.scheme.Name(), len(d))
	}
	return split(d, digestHeader, DigestParts), nil
}

// Reveal builds the reveal of c.
func (c Commitment) Reveal() Reveal {
	return Reveal{Move: c.Move, Nonce: split(c.Nonce[:], nonceHeader, NonceParts)}
}

// RevealOf chunks nonce into parts. No hashing happens.
func (e *Engine) RevealOf(move uint32, nonce []byte) (Reveal, error) {
	if err := e.checkMove(move); err != nil {
		return Reveal{}, err
	}
	if len(nonce) != NonceSize {
		return Reveal{}, fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	return Reveal{Move: move, Nonce: split(nonce, nonceHeader, NonceParts)}, nil
}

// Verify recomputes the digest of (move, nonce) and compares it with the
// published digest parts. Both part lists may be in any order. Any
// malformed input makes it return false.
func (e *Engine) Verify(move uint32, nonceParts, digestParts []Part) bool {
	if e.checkMove(move) != nil {
		return false
	}
	nonce, ok := join(nonceParts, nonceHeader, NonceParts)
	if !ok {
		return false
	}
	published, ok := join(digestParts, digestHeader, DigestParts)
	if !ok {
		return false
	}
	expected, err := e.digestParts(move, nonce)
	if err != nil {
		return false
	}
	recomputed, _ := join(expected, digestHeader, DigestParts)
	return subtle.ConstantTimeCompare(published, recomputed) == 1
}

// VerifyReveal is Verify on a Reveal value.
func (e *Engine) VerifyReveal(r Reveal, digestParts []Part) bool {
	return e.Verify(r.Move, r.Nonce, digestParts)
}
