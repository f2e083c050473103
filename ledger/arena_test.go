package ledger

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/domain/combat"
	"github.com/luca-patrignani/mental-arena/errs"
	"github.com/luca-patrignani/mental-arena/network"
	"github.com/luca-patrignani/mental-arena/signal"
	"github.com/luca-patrignani/mental-arena/turn"
)

var quiet = slog.New(slog.DiscardHandler)

const (
	// Gale Gust and Boulder Rock Slam
	galeGust    = 9
	boulderSlam = 3
)

func mustTeam(t *testing.T, ids ...uint8) combat.Team {
	t.Helper()
	team, err := combat.NewTeam(ids...)
	if err != nil {
		t.Fatal(err)
	}
	return team
}

func newArena(t *testing.T, opts ...Option) (*Arena, *commitment.Engine) {
	t.Helper()
	engine := commitment.NewEngine(commitment.SHA256{})
	a, err := NewArena(engine,
		[2]string{"alice", "bob"},
		[2]combat.Team{mustTeam(t, 4, 3, 5), mustTeam(t, 1, 6, 7)},
		append([]Option{WithLogger(quiet)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return a, engine
}

func commit(t *testing.T, a *Arena, e *commitment.Engine, player string, move uint32) commitment.Commitment {
	t.Helper()
	c, err := e.Commit(move)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.SubmitCommit(player, a.Round(), c.Digest); err != nil {
		t.Fatalf("SubmitCommit(%s): %v", player, err)
	}
	return c
}

func reveal(t *testing.T, a *Arena, player string, round uint32, c commitment.Commitment) {
	t.Helper()
	r := c.Reveal()
	if err := a.SubmitReveal(player, round, r.Move, r.Nonce); err != nil {
		t.Fatalf("SubmitReveal(%s): %v", player, err)
	}
}

func TestNewArenaValidation(t *testing.T) {
	engine := commitment.NewEngine(commitment.SHA256{})
	teams := [2]combat.Team{mustTeam(t, 4, 3, 5), mustTeam(t, 1, 6, 7)}
	if _, err := NewArena(engine, [2]string{"alice", "alice"}, teams); err == nil {
		t.Error("expected duplicate players to be rejected")
	}
	if _, err := NewArena(engine, [2]string{"alice", ""}, teams); err == nil {
		t.Error("expected an empty seat to be rejected")
	}
	if _, err := NewArena(nil, [2]string{"alice", "bob"}, teams); err == nil {
		t.Error("expected a missing engine to be rejected")
	}
	shared := [2]combat.Team{mustTeam(t, 4, 3, 5), mustTeam(t, 4, 6, 7)}
	if _, err := NewArena(engine, [2]string{"alice", "bob"}, shared); err == nil {
		t.Error("expected teams sharing a unit to be rejected")
	}
}

func TestArenaSettlesRound(t *testing.T) {
	a, e := newArena(t)
	ca := commit(t, a, e, "alice", galeGust)
	cb := commit(t, a, e, "bob", boulderSlam)

	v, err := a.ReadRound("bob", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !v.LocalCommitted || !v.OpponentCommitted || v.OpponentMove != 0 {
		t.Fatalf("unexpected view before reveals %+v", v)
	}

	reveal(t, a, "alice", 1, ca)
	v, _ = a.ReadRound("bob", 1)
	if v.OpponentMove != galeGust || v.LocalMove != 0 || v.Current != 1 {
		t.Fatalf("unexpected view after one reveal %+v", v)
	}

	reveal(t, a, "bob", 1, cb)
	if a.Round() != 2 {
		t.Fatalf("expected round 2, got %d", a.Round())
	}
	v, _ = a.ReadRound("alice", 1)
	if v.OpponentMove != boulderSlam || v.LocalMove != galeGust || v.Current != 2 || v.Winner != turn.WinnerNone {
		t.Fatalf("unexpected view of the settled round %+v", v)
	}
	v, _ = a.ReadRound("alice", 2)
	if v.LocalCommitted || v.OpponentCommitted {
		t.Fatalf("the new round must start empty, got %+v", v)
	}

	teams := a.Teams()
	if hp := teams[0].Units[0].HP; hp != 10 {
		t.Errorf("expected Gale at 10 HP, got %d", hp)
	}
	if hp := teams[1].Units[0].HP; hp != 114 {
		t.Errorf("expected Boulder at 114 HP, got %d", hp)
	}

	blocks := a.Chain().Blocks()
	kinds := []Kind{KindGenesis, KindCommit, KindCommit, KindReveal, KindReveal, KindResolve}
	if len(blocks) != len(kinds) {
		t.Fatalf("expected %d blocks, got %d", len(kinds), len(blocks))
	}
	for i, k := range kinds {
		if blocks[i].Entry.Kind != k {
			t.Errorf("block %d: expected %s, got %s", i, k, blocks[i].Entry.Kind)
		}
	}
	settled := blocks[len(blocks)-1].Entry
	if len(settled.Events) != 2 || len(settled.State) != 2 {
		t.Fatalf("unexpected settlement %+v", settled)
	}
	unpacked, err := combat.UnpackTeam(settled.State[0])
	if err != nil {
		t.Fatal(err)
	}
	if unpacked.Units[0].HP != 10 {
		t.Errorf("packed state holds Gale at %d HP", unpacked.Units[0].HP)
	}
	if err := a.Chain().Verify(); err != nil {
		t.Fatal(err)
	}
}

func TestArenaRejections(t *testing.T) {
	a, e := newArena(t)
	ca := commit(t, a, e, "alice", galeGust)
	r := ca.Reveal()

	if err := a.SubmitReveal("alice", 1, r.Move, r.Nonce); !errors.Is(err, errs.ErrWrongPhase) {
		t.Errorf("reveal before the opponent committed: expected a wrong phase, got %v", err)
	}
	if err := a.SubmitCommit("alice", 1, ca.Digest); err != nil {
		t.Errorf("resubmitting the same digest must be accepted: %v", err)
	}
	other, err := e.Commit(galeGust + 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.SubmitCommit("alice", 1, other.Digest); !errors.Is(err, errs.ErrWrongPhase) {
		t.Errorf("second commit: expected a wrong phase, got %v", err)
	}
	if err := a.SubmitCommit("bob", 2, other.Digest); !errors.Is(err, errs.ErrWrongPhase) {
		t.Errorf("commit for a future round: expected a wrong phase, got %v", err)
	}
	if err := a.SubmitCommit("bob", 1, other.Digest[:2]); !errors.Is(err, errs.ErrMalformedSignal) {
		t.Errorf("short digest: expected a malformed signal, got %v", err)
	}
	if err := a.SubmitCommit("mallory", 1, other.Digest); err == nil {
		t.Error("expected an unseated player to be rejected")
	}

	commit(t, a, e, "bob", boulderSlam)
	if err := a.SubmitReveal("alice", 1, r.Move+2, r.Nonce); !errors.Is(err, errs.ErrVerificationFailed) {
		t.Errorf("tampered reveal: expected a verification failure, got %v", err)
	}

	// a valid commitment to a unit that is not on the team
	a2, e2 := newArena(t)
	bad := commit(t, a2, e2, "alice", 1)
	commit(t, a2, e2, "bob", boulderSlam)
	rb := bad.Reveal()
	if err := a2.SubmitReveal("alice", 1, rb.Move, rb.Nonce); !errors.Is(err, errs.ErrInvalidMove) {
		t.Errorf("foreign unit: expected an invalid move, got %v", err)
	}
	if len(a2.Chain().Blocks()) != 3 {
		t.Errorf("rejected reveals must not be recorded")
	}
}

func TestArenaTimeout(t *testing.T) {
	a, e := newArena(t, WithTimeoutRounds(2))
	commit(t, a, e, "alice", galeGust)

	if err := a.ClaimTimeout("alice"); !errors.Is(err, errs.ErrWrongPhase) {
		t.Fatalf("early claim: expected a wrong phase, got %v", err)
	}
	a.Tick()
	a.Tick()
	if err := a.ClaimTimeout("bob"); !errors.Is(err, errs.ErrWrongPhase) {
		t.Fatalf("claim without progress: expected a wrong phase, got %v", err)
	}
	if err := a.CanClaimTimeout("bob"); !errors.Is(err, errs.ErrWrongPhase) {
		t.Fatalf("bob should not be able to claim, got %v", err)
	}
	if err := a.CanClaimTimeout("alice"); err != nil {
		t.Fatalf("alice should be able to claim, got %v", err)
	}
	if err := a.ClaimTimeout("alice"); err != nil {
		t.Fatal(err)
	}
	for player, expected := range map[string]turn.Winner{"alice": turn.WinnerLocal, "bob": turn.WinnerOpponent} {
		v, err := a.ReadRound(player, 1)
		if err != nil {
			t.Fatal(err)
		}
		if v.Winner != expected {
			t.Errorf("%s: expected winner %d, got %d", player, expected, v.Winner)
		}
	}
	if err := a.SubmitCommit("bob", 1, make([]commitment.Part, commitment.DigestParts)); !errors.Is(err, errs.ErrWrongPhase) {
		t.Fatalf("commit after the end: expected a wrong phase, got %v", err)
	}
	if last := a.Chain().Latest(); last.Entry.Kind != KindTimeout || last.Entry.Winner != "alice" {
		t.Fatalf("unexpected last block %+v", last)
	}
	if err := a.CanClaimTimeout("alice"); !errors.Is(err, errs.ErrWrongPhase) {
		t.Fatalf("second claim: expected a wrong phase, got %v", err)
	}
}

func TestProgressResetsIdleTicks(t *testing.T) {
	a, e := newArena(t, WithTimeoutRounds(1))
	a.Tick()
	commit(t, a, e, "alice", galeGust)
	if err := a.ClaimTimeout("alice"); !errors.Is(err, errs.ErrWrongPhase) {
		t.Fatalf("expected the commit to reset the idle ticks, got %v", err)
	}
}

func firstLiveAttack(team combat.Team) combat.Action {
	for _, u := range team.Units {
		if !u.KO {
			return combat.Action{Unit: u.RosterID}
		}
	}
	return combat.Action{}
}

// arenaSessions starts two sessions settling on a fresh arena.
func arenaSessions(t *testing.T, ctx context.Context) (*Arena, [2]*turn.Session) {
	t.Helper()
	board := network.NewBoard()
	var signers [2]*signal.Signer
	for i := range signers {
		s, err := signal.NewSigner()
		if err != nil {
			t.Fatal(err)
		}
		signers[i] = s
	}
	teams := [2]combat.Team{mustTeam(t, 4, 3, 5), mustTeam(t, 1, 6, 7)}
	engine := commitment.NewEngine(commitment.SHA256{})
	arena, err := NewArena(engine, [2]string{signers[0].Identity(), signers[1].Identity()}, teams, WithLogger(quiet))
	if err != nil {
		t.Fatal(err)
	}

	var sessions [2]*turn.Session
	for i, s := range signers {
		client := NewClient(arena, s.Identity(), board.Endpoint(s.Identity()))
		cfg := turn.Config{
			Engine:    engine,
			Transport: client,
			Signer:    s,
			Opponent:  signers[1-i].Identity(),
			Authority: turn.AuthorityLedger,
			Ledger:    client,
			Logger:    quiet,
		}
		sess, err := turn.NewSession(cfg, teams[i], teams[1-i])
		if err != nil {
			t.Fatal(err)
		}
		if err := sess.Start(ctx); err != nil {
			t.Fatal(err)
		}
		sessions[i] = sess
	}
	return arena, sessions
}

func TestSessionsSettleOnArena(t *testing.T) {
	ctx := context.Background()
	arena, sessions := arenaSessions(t, ctx)

	for round := 1; ; round++ {
		if round > 100 {
			t.Fatal("match did not end")
		}
		for _, s := range sessions {
			if err := s.SubmitMove(ctx, firstLiveAttack(s.Status().My)); err != nil {
				t.Fatalf("round %d: %v", round, err)
			}
		}
		for i := 0; i < 3; i++ {
			for _, s := range sessions {
				if err := s.Step(ctx); err != nil {
					t.Fatal(err)
				}
			}
		}
		for i, s := range sessions {
			if st := s.Status(); st.Phase != turn.PhaseAnimating {
				t.Fatalf("round %d, player %d: expected phase %s, got %s (last error %v)", round, i, turn.PhaseAnimating, st.Phase, st.LastError)
			}
			if err := s.CompleteAnimation(ctx); err != nil {
				t.Fatal(err)
			}
		}
		if sessions[0].Status().Phase == turn.PhaseGameOver {
			break
		}
	}

	for i, s := range sessions {
		st := s.Status()
		mine := arena.Teams()[i]
		for j, u := range st.My.Units {
			if u.HP != mine.Units[j].HP {
				t.Errorf("player %d unit %d: session has %d HP, arena has %d", i, u.RosterID, u.HP, mine.Units[j].HP)
			}
		}
	}
	a, b := sessions[0].Status().Outcome, sessions[1].Status().Outcome
	if a == nil || b == nil {
		t.Fatal("expected both sessions to have an outcome")
	}
	complementary := map[turn.Result]turn.Result{
		turn.ResultWin:  turn.ResultLoss,
		turn.ResultLoss: turn.ResultWin,
		turn.ResultDraw: turn.ResultDraw,
	}
	if complementary[a.Result] != b.Result {
		t.Fatalf("results do not match: %s and %s", a.Result, b.Result)
	}
	v, err := arena.ReadRound(arena.Players()[0], arena.Round())
	if err != nil {
		t.Fatal(err)
	}
	expected := map[turn.Result]turn.Winner{turn.ResultWin: turn.WinnerLocal, turn.ResultLoss: turn.WinnerOpponent, turn.ResultDraw: turn.WinnerDraw}
	if v.Winner != expected[a.Result] {
		t.Fatalf("arena declared %d, session reported %s", v.Winner, a.Result)
	}
	if err := arena.Chain().Verify(); err != nil {
		t.Fatal(err)
	}
}

func TestTimeoutClaimEndsBothSessions(t *testing.T) {
	ctx := context.Background()
	arena, sessions := arenaSessions(t, ctx)
	alice, bob := sessions[0], sessions[1]
	players := arena.Players()

	if err := alice.SubmitMove(ctx, firstLiveAttack(alice.Status().My)); err != nil {
		t.Fatal(err)
	}
	if err := alice.Step(ctx); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		arena.Tick()
	}
	if err := arena.ClaimTimeout(players[1]); !errors.Is(err, errs.ErrWrongPhase) {
		t.Fatalf("the stalling player claimed: %v", err)
	}
	if err := arena.ClaimTimeout(players[0]); err != nil {
		t.Fatal(err)
	}

	for range 2 {
		for _, s := range sessions {
			if err := s.Step(ctx); err != nil {
				t.Fatal(err)
			}
		}
	}
	for i, expected := range []turn.Result{turn.ResultWin, turn.ResultLoss} {
		st := sessions[i].Status()
		if st.Phase != turn.PhaseGameOver {
			t.Fatalf("player %d: expected phase %s, got %s", i, turn.PhaseGameOver, st.Phase)
		}
		if st.Outcome == nil || st.Outcome.Result != expected || st.Outcome.Round != 1 {
			t.Fatalf("player %d: expected %s in round 1, got %+v", i, expected, st.Outcome)
		}
	}
	if err := bob.SubmitMove(ctx, firstLiveAttack(bob.Status().My)); err == nil {
		t.Fatal("expected no move after the match ended")
	}
}
