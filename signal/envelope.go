package signal

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/note"
)

// Category is the explicit tag carried by an envelope.
type Category string

const (
	CategoryJoin      Category = "join"
	CategoryAccept    Category = "accept"
	CategoryLeave     Category = "leave"
	CategoryDraftPick Category = "draft_pick"
	CategoryCommit    Category = "commit"
	CategoryReveal    Category = "reveal"
	CategoryMalformed Category = "malformed"
)

// Categories lists every classifiable category.
var Categories = []Category{CategoryJoin, CategoryAccept, CategoryLeave, CategoryDraftPick, CategoryCommit, CategoryReveal}

func (c Category) valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Envelope is the payload of every protocol note. An empty Tag marks a
// legacy envelope whose category is inferred from Amount and Parts.
//
// Recipient and Match are signed with the rest, so a note cannot be posted
// again to another player or into another match.
type Envelope struct {
	Tag       Category `json:"tag,omitempty"`
	Round     uint32   `json:"round"`
	Amount    uint64   `json:"amount,omitempty"`
	Parts     []uint64 `json:"parts,omitempty"`
	Recipient string   `json:"recipient,omitempty"`
	Match     string   `json:"match,omitempty"`
	Timestamp int64    `json:"timestamp"`
	Signature []byte   `json:"signature,omitempty"`
}

// serialize returns the JSON form of the envelope without its signature.
func (e *Envelope) serialize() ([]byte, error) {
	tmp := *e
	tmp.Signature = nil
	return json.Marshal(tmp)
}

// Sign stamps the envelope and signs it with priv.
func (e *Envelope) Sign(priv ed25519.PrivateKey) error {
	e.Timestamp = time.Now().UnixNano()
	b, err := e.serialize()
	if err != nil {
		return err
	}
	e.Signature = ed25519.Sign(priv, b)
	return nil
}

// VerifySignature checks the envelope signature against pub.
func (e *Envelope) VerifySignature(pub ed25519.PublicKey) (bool, error) {
	if len(e.Signature) == 0 {
		return false, errors.New("missing signature")
	}
	b, err := e.serialize()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, b, e.Signature), nil
}

// Join announces the wish to play against the recipient.
func Join() Envelope { return Envelope{Tag: CategoryJoin} }

// Accept answers a join and names the match both players sign into.
func Accept(match string) Envelope { return Envelope{Tag: CategoryAccept, Match: match} }

// Leave abandons the match.
func Leave(round uint32) Envelope { return Envelope{Tag: CategoryLeave, Round: round} }

// DraftPick selects a roster unit; pick is the position in the draft order.
func DraftPick(pick uint32, unit uint8) Envelope {
	return Envelope{Tag: CategoryDraftPick, Round: pick, Amount: uint64(unit) + 1}
}

// Commit publishes digest parts for round.
func Commit(round uint32, digest []commitment.Part) Envelope {
	return Envelope{Tag: CategoryCommit, Round: round, Parts: fromParts(digest)}
}

// Reveal publishes the move and nonce parts for round.
func Reveal(round uint32, r commitment.Reveal) Envelope {
	return Envelope{Tag: CategoryReveal, Round: round, Amount: uint64(r.Move), Parts: fromParts(r.Nonce)}
}

func fromParts(parts []commitment.Part) []uint64 {
	out := make([]uint64, len(parts))
	for i, p := range parts {
		out[i] = uint64(p)
	}
	return out
}

// Signer holds the ed25519 identity of a player. The hex encoded public key
// is the sender identity on the transport.
type Signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewSigner generates a fresh identity.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Signer{pub: pub, priv: priv}, nil
}

// SignerFromSeed rebuilds an identity from a 32 byte seed.
func SignerFromSeed(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

// Identity returns the sender identity of s.
func (s *Signer) Identity() string {
	return hex.EncodeToString(s.pub)
}

// Seed returns the private seed of s.
func (s *Signer) Seed() []byte {
	return s.priv.Seed()
}

// Seal addresses e to recipient, signs it and returns the note payload.
func (s *Signer) Seal(recipient string, e Envelope) ([]byte, error) {
	e.Recipient = recipient
	if err := e.Sign(s.priv); err != nil {
		return nil, fmt.Errorf("sign envelope: %w", err)
	}
	return json.Marshal(e)
}

// Open decodes the payload of m and checks that it was signed by m.Sender
// for m.Recipient.
func Open(m note.Message) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(m.Payload, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	pub, err := hex.DecodeString(m.Sender)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return Envelope{}, fmt.Errorf("sender %q is not a public key", m.Sender)
	}
	ok, err := e.VerifySignature(pub)
	if err != nil {
		return Envelope{}, err
	}
	if !ok {
		return Envelope{}, errors.New("invalid signature")
	}
	if e.Recipient != m.Recipient {
		return Envelope{}, fmt.Errorf("envelope for %q delivered to %q", e.Recipient, m.Recipient)
	}
	return e, nil
}
