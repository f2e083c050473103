package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/domain/combat"
	"github.com/luca-patrignani/mental-arena/errs"
	"github.com/luca-patrignani/mental-arena/turn"
)

const (
	noWinner = -1
	draw     = 2

	commitPoints = 1
	revealPoints = 2
)

type slot struct {
	digest   []commitment.Part
	move     uint32
	nonce    []commitment.Part
	revealed bool
}

func (s slot) committed() bool {
	return s.digest != nil
}

func (s slot) points() int {
	switch {
	case s.revealed:
		return revealPoints
	case s.committed():
		return commitPoints
	}
	return 0
}

// record is what the arena remembers of a settled round.
type record struct {
	committed [2]bool
	moves     [2]uint32
}

// Arena referees one match between two seats. It is safe for concurrent use.
type Arena struct {
	mu            sync.Mutex
	engine        *commitment.Engine
	chain         *Blockchain
	players       [2]string
	teams         [2]combat.Team
	round         uint32
	slots         [2]slot
	history       map[uint32]record
	winner        int
	idle          int
	timeoutRounds int
	logger        *slog.Logger
}

type Option func(*Arena)

// WithTimeoutRounds sets how many idle ticks allow a timeout claim.
func WithTimeoutRounds(n int) Option {
	return func(a *Arena) {
		a.timeoutRounds = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Arena) {
		a.logger = l
	}
}

// NewArena opens a match at round 1. players and teams are in seat order.
func NewArena(engine *commitment.Engine, players [2]string, teams [2]combat.Team, opts ...Option) (*Arena, error) {
	if engine == nil {
		return nil, errors.New("ledger: missing commitment engine")
	}
	if players[0] == "" || players[1] == "" || players[0] == players[1] {
		return nil, fmt.Errorf("ledger: players must be two distinct identities, got %q and %q", players[0], players[1])
	}
	if err := combat.ValidateOpposing(teams[0], teams[1]); err != nil {
		return nil, err
	}
	a := &Arena{
		engine:        engine,
		chain:         NewBlockchain(),
		players:       players,
		teams:         [2]combat.Team{teams[0].Clone(), teams[1].Clone()},
		round:         1,
		history:       make(map[uint32]record),
		winner:        noWinner,
		timeoutRounds: 3,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Chain returns the settlement chain of the match.
func (a *Arena) Chain() *Blockchain {
	return a.chain
}

// Round is the round currently open for commitments.
func (a *Arena) Round() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.round
}

// Players returns both identities in seat order.
func (a *Arena) Players() [2]string {
	return a.players
}

// Teams returns both teams in seat order.
func (a *Arena) Teams() [2]combat.Team {
	a.mu.Lock()
	defer a.mu.Unlock()
	return [2]combat.Team{a.teams[0].Clone(), a.teams[1].Clone()}
}

func (a *Arena) seat(player string) (int, error) {
	for i, p := range a.players {
		if p == player {
			return i, nil
		}
	}
	return 0, fmt.Errorf("ledger: %q is not seated in this arena", player)
}

func (a *Arena) checkOpen(round uint32) error {
	if a.winner != noWinner {
		return errs.New(errs.CodeWrongPhase, "match is over")
	}
	if round != a.round {
		return errs.Newf(errs.CodeWrongPhase, "round %d is not open, current round is %d", round, a.round)
	}
	return nil
}

// SubmitCommit stores the digest of player for round. The slot must be
// empty; resubmitting the stored digest is a no-op.
func (a *Arena) SubmitCommit(player string, round uint32, digest []commitment.Part) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	seat, err := a.seat(player)
	if err != nil {
		return err
	}
	if err := a.checkOpen(round); err != nil {
		return err
	}
	s := &a.slots[seat]
	if s.committed() {
		if equalParts(s.digest, digest) {
			return nil
		}
		return errs.Newf(errs.CodeWrongPhase, "commit slot of round %d is taken", round)
	}
	if len(digest) != commitment.DigestParts {
		return errs.Newf(errs.CodeMalformedSignal, "expected %d digest parts, got %d", commitment.DigestParts, len(digest))
	}
	if _, err := a.chain.append(Entry{Kind: KindCommit, Round: round, Player: player, Parts: words(digest)}); err != nil {
		return err
	}
	s.digest = append([]commitment.Part(nil), digest...)
	a.idle = 0
	a.logger.Debug("commit recorded", "round", round, "seat", seat)
	return nil
}

// SubmitReveal verifies the reveal of player against its stored commitment.
// Both commitments of the round must be recorded. The second reveal
// resolves the round and opens the next one.
func (a *Arena) SubmitReveal(player string, round, move uint32, nonce []commitment.Part) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	seat, err := a.seat(player)
	if err != nil {
		return err
	}
	if err := a.checkOpen(round); err != nil {
		// the reveal that resolved the previous round may be resent
		if rec, ok := a.history[round]; ok && rec.moves[seat] == move {
			return nil
		}
		return err
	}
	s := &a.slots[seat]
	if s.revealed {
		if s.move == move && equalParts(s.nonce, nonce) {
			return nil
		}
		return errs.Newf(errs.CodeWrongPhase, "reveal of round %d already recorded", round)
	}
	if !s.committed() || !a.slots[1-seat].committed() {
		return errs.Newf(errs.CodeWrongPhase, "round %d is still waiting for commitments", round)
	}
	if !a.engine.Verify(move, nonce, s.digest) {
		return errs.Newf(errs.CodeVerificationFailed, "reveal of round %d does not match the commitment", round)
	}
	action, err := combat.Decode(combat.Move(move))
	if err != nil {
		return err
	}
	if err := a.teams[seat].CanAct(action); err != nil {
		return err
	}
	if _, err := a.chain.append(Entry{Kind: KindReveal, Round: round, Player: player, Move: move, Parts: words(nonce)}); err != nil {
		return err
	}
	s.move, s.nonce, s.revealed = move, append([]commitment.Part(nil), nonce...), true
	a.idle = 0
	if a.slots[1-seat].revealed {
		return a.resolve()
	}
	return nil
}

// resolve applies the round from seat 0's point of view.
func (a *Arena) resolve() error {
	var actions [2]combat.Action
	for i, s := range a.slots {
		action, err := combat.Decode(combat.Move(s.move))
		if err != nil {
			return err
		}
		actions[i] = action
	}
	t0, t1, events, err := combat.ResolveTurn(a.teams[0], a.teams[1], actions[0], actions[1])
	if err != nil {
		return err
	}
	entry := Entry{Kind: KindResolve, Round: a.round}
	for _, ev := range events {
		entry.Events = append(entry.Events, ev.String())
	}
	for _, t := range []combat.Team{t0, t1} {
		packed, err := combat.PackTeam(t)
		if err != nil {
			return err
		}
		entry.State = append(entry.State, packed)
	}
	winner := noWinner
	switch e0, e1 := t0.Eliminated(), t1.Eliminated(); {
	case e0 && e1:
		winner = draw
	case e0:
		winner = 1
	case e1:
		winner = 0
	}
	entry.Winner = a.winnerName(winner)
	if _, err := a.chain.append(entry); err != nil {
		return err
	}

	a.teams = [2]combat.Team{t0, t1}
	a.history[a.round] = record{
		committed: [2]bool{true, true},
		moves:     [2]uint32{a.slots[0].move, a.slots[1].move},
	}
	a.logger.Info("round settled", "round", a.round, "events", len(events))
	a.slots = [2]slot{}
	a.winner = winner
	if winner == noWinner {
		a.round++
	}
	return nil
}

func (a *Arena) winnerName(w int) string {
	switch w {
	case noWinner:
		return ""
	case draw:
		return "draw"
	}
	return a.players[w]
}

// Tick marks the passing of one period. Commits and reveals reset the idle
// count.
func (a *Arena) Tick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.winner == noWinner {
		a.idle++
	}
}

// ClaimTimeout ends a stalled match in favour of player. The claim needs the
// configured number of idle ticks and strictly more progress in the current
// round than the opponent, a reveal counting more than a commit.
func (a *Arena) ClaimTimeout(player string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	seat, err := a.claimable(player)
	if err != nil {
		return err
	}
	if _, err := a.chain.append(Entry{Kind: KindTimeout, Round: a.round, Player: player, Winner: player}); err != nil {
		return err
	}
	a.winner = seat
	a.logger.Info("timeout claimed", "round", a.round, "winner", player)
	return nil
}

// CanClaimTimeout reports why a claim by player would fail, nil when it
// would succeed.
func (a *Arena) CanClaimTimeout(player string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.claimable(player)
	return err
}

func (a *Arena) claimable(player string) (int, error) {
	seat, err := a.seat(player)
	if err != nil {
		return 0, err
	}
	if err := a.checkOpen(a.round); err != nil {
		return 0, err
	}
	if a.idle < a.timeoutRounds {
		return 0, errs.Newf(errs.CodeWrongPhase, "match idle for %d of %d ticks", a.idle, a.timeoutRounds)
	}
	mine, theirs := a.slots[seat].points(), a.slots[1-seat].points()
	if mine <= theirs {
		return 0, errs.Newf(errs.CodeWrongPhase, "no progress advantage (%d against %d)", mine, theirs)
	}
	return seat, nil
}

// ReadRound returns round as seen by player. Moves are reported once the
// arena verified them.
func (a *Arena) ReadRound(player string, round uint32) (turn.RoundView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	seat, err := a.seat(player)
	if err != nil {
		return turn.RoundView{}, err
	}
	rec, ok := a.history[round]
	if !ok && round == a.round {
		for i, s := range a.slots {
			rec.committed[i] = s.committed()
			if s.revealed {
				rec.moves[i] = s.move
			}
		}
	}
	v := turn.RoundView{
		Current:           a.round,
		LocalCommitted:    rec.committed[seat],
		OpponentCommitted: rec.committed[1-seat],
		LocalMove:         rec.moves[seat],
		OpponentMove:      rec.moves[1-seat],
	}
	switch a.winner {
	case noWinner:
	case draw:
		v.Winner = turn.WinnerDraw
	case seat:
		v.Winner = turn.WinnerLocal
	default:
		v.Winner = turn.WinnerOpponent
	}
	return v, nil
}

func words(parts []commitment.Part) []uint64 {
	out := make([]uint64, len(parts))
	for i, p := range parts {
		out[i] = uint64(p)
	}
	return out
}

func equalParts(a, b []commitment.Part) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
