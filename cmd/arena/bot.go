package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/pterm/pterm"

	"github.com/luca-patrignani/mental-arena/lobby"
	"github.com/luca-patrignani/mental-arena/turn"
)

// botDraft joins host as a guest and drafts random units.
func botDraft(ctx context.Context, cfg lobby.Config, host string) (*lobby.Lobby, error) {
	l, err := lobby.Join(ctx, cfg, host)
	if err != nil {
		return nil, err
	}
	if err := l.WaitForAccept(ctx); err != nil {
		return nil, err
	}
	d := l.Draft()
	for !d.Done() {
		if !l.MyTurn() {
			if _, err := l.AwaitPick(ctx); err != nil {
				return nil, err
			}
			continue
		}
		available := d.Available()
		if err := l.Pick(ctx, available[rand.IntN(len(available))]); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// playBot runs sess and submits a random move whenever a round is open. With
// a referee it claims the match as soon as the opponent stalls.
func playBot(ctx context.Context, sess *turn.Session, every time.Duration, ref *referee) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			reportBot(sess, err)
		}
	}()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	var played uint32
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		st := sess.Status()
		if waiting(st.Phase) && ref.canClaim() {
			// The session picks the result up from the ledger.
			_ = ref.claim()
			continue
		}
		if st.Phase == turn.PhaseAnimating {
			_ = sess.Do(ctx, func(ctx context.Context, s *turn.Session) error {
				return s.CompleteAnimation(ctx)
			})
			continue
		}
		if st.Phase != turn.PhaseChoosing || st.Round == played {
			continue
		}
		_, actions := abilityOptions(st.My)
		if len(actions) == 0 {
			continue
		}
		action := actions[rand.IntN(len(actions))]
		err := sess.Do(ctx, func(ctx context.Context, s *turn.Session) error {
			return s.SubmitMove(ctx, action)
		})
		if err == nil {
			played = st.Round
		}
	}
}

func waiting(p turn.Phase) bool {
	return p == turn.PhaseWaitingCommit || p == turn.PhaseWaitingReveal
}

func reportBot(sess *turn.Session, err error) {
	st := sess.Status()
	pterm.Warning.Printfln("The bot stopped in round %d: %v", st.Round, err)
}
