package network

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luca-patrignani/mental-arena/errs"
	"github.com/luca-patrignani/mental-arena/note"
)

// Board is an in-memory note store safe for concurrent use.
type Board struct {
	mu     sync.Mutex
	notes  []note.Message
	clocks map[string]uint64
	subs   map[chan note.Message]string
	now    func() time.Time
}

func NewBoard() *Board {
	return &Board{
		clocks: make(map[string]uint64),
		subs:   make(map[chan note.Message]string),
		now:    time.Now,
	}
}

// Clock returns the number of notes posted by sender.
func (b *Board) Clock(sender string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clocks[sender]
}

// Post appends a note. clock must equal the sender's current clock.
func (b *Board) Post(sender, recipient string, clock uint64, payload []byte) (note.Message, error) {
	if sender == "" {
		return note.Message{}, errs.New(errs.CodeMalformedSignal, "missing sender")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur := b.clocks[sender]; clock != cur {
		return note.Message{}, errs.Newf(errs.CodeStateMismatch, "sender clock is %d, post carried %d", cur, clock)
	}
	m := note.Message{
		ID:        note.ID(uuid.NewString()),
		Sender:    sender,
		Recipient: recipient,
		Payload:   append([]byte(nil), payload...),
		Created:   b.now().UTC(),
	}
	b.notes = append(b.notes, m)
	b.clocks[sender]++
	for ch, r := range b.subs {
		if r != "" && r != recipient {
			continue
		}
		select {
		case ch <- m:
		default:
		}
	}
	return m, nil
}

// List returns the notes matching f in posting order.
func (b *Board) List(f note.Filter) []note.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []note.Message
	for _, m := range b.notes {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out
}

// Subscribe delivers every new note addressed to recipient (all notes when
// recipient is empty) until cancel is called. Slow subscribers miss notes;
// they are expected to poll.
func (b *Board) Subscribe(recipient string) (notes <-chan note.Message, cancel func()) {
	ch := make(chan note.Message, 16)
	b.mu.Lock()
	b.subs[ch] = recipient
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// Endpoint is a Transport for one identity on an in-process Board.
type Endpoint struct {
	board    *Board
	identity string
	sendMu   sync.Mutex
}

// Endpoint returns the transport of identity.
func (b *Board) Endpoint(identity string) *Endpoint {
	return &Endpoint{board: b, identity: identity}
}

func (e *Endpoint) Send(ctx context.Context, recipient string, payload []byte) (note.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	m, err := e.board.Post(e.identity, recipient, e.board.Clock(e.identity), payload)
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (e *Endpoint) Observe(ctx context.Context, f note.Filter) ([]note.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.board.List(f), nil
}
