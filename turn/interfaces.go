package turn

import (
	"context"

	"github.com/luca-patrignani/mental-arena/note"
)

// Transport posts and observes notes. Send is never called concurrently for
// the same sender.
type Transport interface {
	Send(ctx context.Context, recipient string, payload []byte) (note.ID, error)
	Observe(ctx context.Context, filter note.Filter) ([]note.Message, error)
}

// Winner is the declared result of a match as seen by one player.
type Winner uint8

const (
	WinnerNone Winner = iota
	WinnerLocal
	WinnerOpponent
	WinnerDraw
)

// RoundView is a read-only view of one round on a settlement ledger, from
// the point of view of the reading player. Moves are zero until the ledger
// has verified the corresponding reveal.
type RoundView struct {
	Current           uint32
	LocalCommitted    bool
	OpponentCommitted bool
	LocalMove         uint32
	OpponentMove      uint32
	Winner            Winner
}

// LedgerReader reads settled round state.
type LedgerReader interface {
	ReadRound(ctx context.Context, round uint32) (RoundView, error)
}

// Persister stores session snapshots so a match can be resumed.
type Persister interface {
	Save(ctx context.Context, matchID string, s Snapshot) error
}
