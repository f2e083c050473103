package main

import (
	"context"
	"time"

	"github.com/luca-patrignani/mental-arena/ledger"
)

// arenaTick is the period the practice arena counts idle time in. A claim
// needs several idle ticks in a row.
const arenaTick = 10 * time.Second

// referee lets one seat of a practice arena claim a stalled match.
type referee struct {
	arena  *ledger.Arena
	player string
}

// tickArena advances the arena clock until ctx is done.
func tickArena(ctx context.Context, arena *ledger.Arena, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			arena.Tick()
		}
	}
}

func (r *referee) canClaim() bool {
	return r != nil && r.arena.CanClaimTimeout(r.player) == nil
}

func (r *referee) claim() error {
	return r.arena.ClaimTimeout(r.player)
}
