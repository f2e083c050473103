package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/errs"
	"github.com/luca-patrignani/mental-arena/note"
	"github.com/luca-patrignani/mental-arena/signal"
	"github.com/luca-patrignani/mental-arena/turn"
)

// Client is the view of an Arena for one player. Commits and reveals are
// submitted to the arena before they are relayed; every other envelope is
// only relayed.
type Client struct {
	arena    *Arena
	identity string
	relay    turn.Transport
}

// NewClient returns the client of identity. relay carries the notes that
// are not settled by the arena and may be nil.
func NewClient(arena *Arena, identity string, relay turn.Transport) *Client {
	return &Client{arena: arena, identity: identity, relay: relay}
}

func (c *Client) Send(ctx context.Context, recipient string, payload []byte) (note.ID, error) {
	env, err := signal.Open(note.Message{Sender: c.identity, Recipient: recipient, Payload: payload})
	if err != nil {
		return "", errs.Wrap(errs.CodeMalformedSignal, "open envelope", err)
	}
	switch env.Tag {
	case signal.CategoryCommit:
		err = c.arena.SubmitCommit(c.identity, env.Round, parts(env.Parts))
	case signal.CategoryReveal:
		err = c.arena.SubmitReveal(c.identity, env.Round, uint32(env.Amount), parts(env.Parts))
	}
	if err != nil {
		return "", err
	}
	if c.relay == nil {
		return note.ID(uuid.NewString()), nil
	}
	return c.relay.Send(ctx, recipient, payload)
}

func (c *Client) Observe(ctx context.Context, f note.Filter) ([]note.Message, error) {
	if c.relay == nil {
		return nil, nil
	}
	return c.relay.Observe(ctx, f)
}

func (c *Client) ReadRound(_ context.Context, round uint32) (turn.RoundView, error) {
	return c.arena.ReadRound(c.identity, round)
}

func parts(words []uint64) []commitment.Part {
	out := make([]commitment.Part, len(words))
	for i, w := range words {
		out[i] = commitment.Part(w)
	}
	return out
}
