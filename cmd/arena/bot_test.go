package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/domain/combat"
	"github.com/luca-patrignani/mental-arena/ledger"
	"github.com/luca-patrignani/mental-arena/lobby"
	"github.com/luca-patrignani/mental-arena/network"
	"github.com/luca-patrignani/mental-arena/signal"
	"github.com/luca-patrignani/mental-arena/turn"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newSigner(t *testing.T) *signal.Signer {
	t.Helper()
	s, err := signal.NewSigner()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAbilityOptions(t *testing.T) {
	team, err := combat.NewTeam(4, 3, 5)
	if err != nil {
		t.Fatal(err)
	}
	options, actions := abilityOptions(team)
	if len(options) != combat.TeamSize*combat.AbilitiesPerUnit || len(actions) != len(options) {
		t.Fatalf("expected %d options, got %d options and %d actions", combat.TeamSize*combat.AbilitiesPerUnit, len(options), len(actions))
	}
	team.Units[0].KO = true
	_, actions = abilityOptions(team)
	for _, a := range actions {
		if a.Unit == team.Units[0].RosterID {
			t.Fatalf("knocked out unit %d still offered", a.Unit)
		}
		if err := team.CanAct(a); err != nil {
			t.Fatalf("offered action %+v cannot be played: %v", a, err)
		}
	}
}

func TestBotsPlayAMatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	board := network.NewBoard()
	host, guest := newSigner(t), newSigner(t)
	lobbyCfg := func(s *signal.Signer) lobby.Config {
		return lobby.Config{
			Transport:    board.Endpoint(s.Identity()),
			Signer:       s,
			PollInterval: 5 * time.Millisecond,
			Logger:       quiet,
		}
	}

	hl, err := lobby.Host(ctx, lobbyCfg(host))
	if err != nil {
		t.Fatal(err)
	}
	guestLobby := make(chan *lobby.Lobby, 1)
	guestErr := make(chan error, 1)
	go func() {
		gl, err := botDraft(ctx, lobbyCfg(guest), host.Identity())
		if err != nil {
			guestErr <- err
			return
		}
		guestLobby <- gl
	}()
	if _, err := hl.WaitForGuest(ctx); err != nil {
		t.Fatal(err)
	}
	for d := hl.Draft(); !d.Done(); {
		if !hl.MyTurn() {
			if _, err := hl.AwaitPick(ctx); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := hl.Pick(ctx, d.Available()[0]); err != nil {
			t.Fatal(err)
		}
	}
	var gl *lobby.Lobby
	select {
	case gl = <-guestLobby:
	case err := <-guestErr:
		t.Fatal(err)
	}

	cfg := turn.Config{
		Engine:         commitment.NewEngine(commitment.SHA256{}),
		PollInterval:   5 * time.Millisecond,
		AnimationDelay: time.Millisecond,
		Logger:         quiet,
	}
	var sessions []*turn.Session
	for _, l := range []*lobby.Lobby{hl, gl} {
		sess, err := l.Session(cfg)
		if err != nil {
			t.Fatal(err)
		}
		sessions = append(sessions, sess)
	}
	done := make(chan struct{}, len(sessions))
	for _, sess := range sessions {
		go func() {
			playBot(ctx, sess, 5*time.Millisecond, nil)
			done <- struct{}{}
		}()
	}
	for range sessions {
		<-done
	}

	a, b := sessions[0].Status().Outcome, sessions[1].Status().Outcome
	if a == nil || b == nil {
		t.Fatalf("expected both bots to finish the match, got %v and %v", sessions[0].Status().Phase, sessions[1].Status().Phase)
	}
	expected := map[turn.Result]turn.Result{
		turn.ResultWin:  turn.ResultLoss,
		turn.ResultLoss: turn.ResultWin,
		turn.ResultDraw: turn.ResultDraw,
	}
	if want, ok := expected[a.Result]; !ok || b.Result != want {
		t.Fatalf("results do not match: %s and %s", a.Result, b.Result)
	}
	if a.Round != b.Round {
		t.Fatalf("match ended in round %d and %d", a.Round, b.Round)
	}
}

func TestBotClaimsStalledMatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	board := network.NewBoard()
	bot, staller := newSigner(t), newSigner(t)
	engine := commitment.NewEngine(commitment.SHA256{})
	teams := [2]combat.Team{}
	for i, ids := range [][]uint8{{4, 3, 5}, {1, 6, 7}} {
		team, err := combat.NewTeam(ids...)
		if err != nil {
			t.Fatal(err)
		}
		teams[i] = team
	}
	arena, err := ledger.NewArena(engine, [2]string{bot.Identity(), staller.Identity()}, teams,
		ledger.WithTimeoutRounds(2), ledger.WithLogger(quiet))
	if err != nil {
		t.Fatal(err)
	}
	client := ledger.NewClient(arena, bot.Identity(), board.Endpoint(bot.Identity()))
	sess, err := turn.NewSession(turn.Config{
		Engine:       engine,
		Transport:    client,
		Signer:       bot,
		Opponent:     staller.Identity(),
		Authority:    turn.AuthorityLedger,
		Ledger:       client,
		PollInterval: 5 * time.Millisecond,
		Logger:       quiet,
	}, teams[0], teams[1])
	if err != nil {
		t.Fatal(err)
	}

	go tickArena(ctx, arena, 5*time.Millisecond)
	playBot(ctx, sess, 5*time.Millisecond, &referee{arena: arena, player: bot.Identity()})

	st := sess.Status()
	if st.Outcome == nil || st.Outcome.Result != turn.ResultWin {
		t.Fatalf("expected the bot to win on a timeout, got phase %s and outcome %+v", st.Phase, st.Outcome)
	}
	if last := arena.Chain().Latest(); last.Entry.Kind != ledger.KindTimeout || last.Entry.Winner != bot.Identity() {
		t.Fatalf("unexpected last block %+v", last.Entry)
	}
}

func TestRefereeWithoutArena(t *testing.T) {
	var ref *referee
	if ref.canClaim() {
		t.Fatal("a missing referee cannot claim")
	}
}
