package main

import (
	"context"
	"errors"
	"time"

	"github.com/pterm/pterm"

	"github.com/luca-patrignani/mental-arena/turn"
)

const leaveOption = "Leave the match"

// play runs sess until the match ends, asking for a move whenever a round
// is open and drawing every resolved round. With a referee it offers to
// claim the match once the opponent stalls.
func (a *app) play(ctx context.Context, sess *turn.Session, opponent string, ref *referee) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan turn.Update, 16)
	sess.Subscribe(func(u turn.Update) {
		select {
		case updates <- u:
		default:
		}
	})
	runErr := make(chan error, 1)
	go func() {
		runErr <- sess.Run(ctx)
	}()

	var claimCheck <-chan time.Time
	if ref != nil {
		ticker := time.NewTicker(arenaTick)
		defer ticker.Stop()
		claimCheck = ticker.C
	}

	printState(sess.Status(), opponent)
	var asked uint32
	for {
		st := sess.Status()
		if st.Phase == turn.PhaseAnimating && a.cfg.AnimationDelay == 0 {
			err := sess.Do(ctx, func(ctx context.Context, s *turn.Session) error {
				return s.CompleteAnimation(ctx)
			})
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, turn.ErrSessionClosed):
				return a.finish(sess, opponent, <-runErr)
			case err != nil:
				a.logger.Debug("completing animation", "err", err)
			}
			continue
		}
		if st.Phase == turn.PhaseChoosing && st.Round != asked {
			err := a.chooseMove(ctx, sess, st)
			switch {
			case errors.Is(err, turn.ErrSessionClosed):
			case err != nil:
				if ctx.Err() != nil {
					return ctx.Err()
				}
				pterm.Error.Println(err.Error())
				continue
			default:
				asked = st.Round
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-runErr:
			return a.finish(sess, opponent, err)
		case <-claimCheck:
			if waiting(sess.Status().Phase) && ref.canClaim() {
				a.offerClaim(ref, opponent)
			}
		case u := <-updates:
			if u.Err != nil {
				pterm.Warning.Println(u.Err.Error())
			}
			if len(u.Events) > 0 {
				printState(sess.Status(), opponent, getEventsPanel(u.Round, u.Events))
			}
		}
	}
}

func (a *app) offerClaim(ref *referee, opponent string) {
	ok, _ := pterm.DefaultInteractiveConfirm.
		WithDefaultText(opponent + " stalled. Claim the match?").
		Show()
	if !ok {
		return
	}
	if err := ref.claim(); err != nil {
		pterm.Error.Println(err.Error())
	}
}

func (a *app) chooseMove(ctx context.Context, sess *turn.Session, st turn.Status) error {
	options, actions := abilityOptions(st.My)
	options = append(options, leaveOption)
	choice, _ := pterm.DefaultInteractiveSelect.
		WithDefaultText(pterm.Sprintf("Round %d: choose an ability", st.Round)).
		WithOptions(options).
		WithMaxHeight(len(options)).
		Show()
	if choice == leaveOption {
		return sess.Do(ctx, func(ctx context.Context, s *turn.Session) error {
			return s.Leave(ctx)
		})
	}
	for i, o := range options[:len(actions)] {
		if o != choice {
			continue
		}
		spinner, _ := pterm.DefaultSpinner.Start("Committing to your move ...")
		err := sess.Do(ctx, func(ctx context.Context, s *turn.Session) error {
			return s.SubmitMove(ctx, actions[i])
		})
		if err != nil {
			spinner.Fail()
			return err
		}
		spinner.Success("Move committed, waiting for the opponent")
		return nil
	}
	return nil
}

// finish draws the end of the match once Run has returned.
func (a *app) finish(sess *turn.Session, opponent string, err error) error {
	st := sess.Status()
	switch {
	case st.Outcome != nil:
		printState(st, opponent, getOutcomePanel(*st.Outcome))
		return nil
	case st.Phase == turn.PhaseHalted:
		pterm.Error.Printfln("The match was halted in round %d: %v", st.Round, err)
		return err
	}
	return err
}
