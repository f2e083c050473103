package turn

import (
	"fmt"
	"log/slog"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/domain/combat"
	"github.com/luca-patrignani/mental-arena/errs"
	"github.com/luca-patrignani/mental-arena/signal"
)

// Outbound is a message the machine needs published.
type Outbound struct {
	Round    uint32
	Envelope signal.Envelope
}

// Outcome describes a finished match.
type Outcome struct {
	Result   Result            `json:"result"`
	Round    uint32            `json:"round"`
	MVP      combat.BattleUnit `json:"mvp"`
	MVPLocal bool              `json:"mvp_local"`
}

// Update is delivered to subscribers on every phase change. Events is set
// when the change follows a resolution.
type Update struct {
	Round  uint32
	From   Phase
	To     Phase
	Events []combat.Event
	Err    error
}

// LocalRound is the local player's secret state for the current round.
type LocalRound struct {
	Action       combat.Action         `json:"action"`
	Commitment   commitment.Commitment `json:"commitment"`
	CommitSent   bool                  `json:"commit_sent"`
	RevealIssued bool                  `json:"reveal_issued"`
	RevealSent   bool                  `json:"reveal_sent"`
}

// Machine is the per-match phase machine. It is not safe for concurrent use;
// the Session serializes every call.
type Machine struct {
	engine    *commitment.Engine
	authority Authority
	logger    *slog.Logger

	round   uint32
	phase   Phase
	my      combat.Team
	opp     combat.Team
	events  []combat.Event
	local   *LocalRound
	lastErr error
	outcome *Outcome

	oppCommits   map[uint32][]commitment.Part
	oppCommitted map[uint32]bool
	oppReveals   map[uint32]commitment.Reveal
	verified     map[uint32]bool
	resolved     map[uint32]bool

	subscribers []func(Update)
}

type MachineOption func(*Machine)

func WithAuthority(a Authority) MachineOption {
	return func(m *Machine) {
		m.authority = a
	}
}

func WithMachineLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = l
	}
}

// NewMachine starts a match at round 1 in Choosing.
func NewMachine(engine *commitment.Engine, my, opponent combat.Team, opts ...MachineOption) (*Machine, error) {
	if err := combat.ValidateOpposing(my, opponent); err != nil {
		return nil, err
	}
	m := &Machine{
		engine:       engine,
		logger:       slog.Default(),
		round:        1,
		phase:        PhaseChoosing,
		my:           my.Clone(),
		opp:          opponent.Clone(),
		oppCommits:   make(map[uint32][]commitment.Part),
		oppCommitted: make(map[uint32]bool),
		oppReveals:   make(map[uint32]commitment.Reveal),
		verified:     make(map[uint32]bool),
		resolved:     make(map[uint32]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Subscribe registers fn for phase changes and resolved events.
func (m *Machine) Subscribe(fn func(Update)) {
	m.subscribers = append(m.subscribers, fn)
}

func (m *Machine) Phase() Phase {
	return m.phase
}

func (m *Machine) Round() uint32 {
	return m.round
}

// LastError returns the error of the last failed operation: a retryable
// transport error while the phase is unchanged, or the integrity error that
// halted the match.
func (m *Machine) LastError() error {
	return m.lastErr
}

// Teams returns copies of both team states.
func (m *Machine) Teams() (my, opponent combat.Team) {
	return m.my.Clone(), m.opp.Clone()
}

// Events returns the append-only event log of the match.
func (m *Machine) Events() []combat.Event {
	return append([]combat.Event(nil), m.events...)
}

// Outcome returns the match result once the machine is in GameOver.
func (m *Machine) Outcome() (Outcome, bool) {
	if m.outcome == nil {
		return Outcome{}, false
	}
	return *m.outcome, true
}

func (m *Machine) setPhase(to Phase, events []combat.Event) {
	from := m.phase
	m.phase = to
	m.logger.Debug("phase change", "round", m.round, "from", from, "to", to)
	u := Update{Round: m.round, From: from, To: to, Events: events, Err: m.lastErr}
	for _, fn := range m.subscribers {
		fn(u)
	}
}

func (m *Machine) wrongPhase(op string) error {
	return errs.Newf(errs.CodeWrongPhase, "%s not allowed in phase %s", op, m.phase)
}

func (m *Machine) halt(err error) {
	m.lastErr = err
	m.logger.Error("round halted", "round", m.round, "err", err)
	m.setPhase(PhaseHalted, nil)
}

// SubmitMove commits to the local action. It is only legal in Choosing and
// has no effect when it fails.
func (m *Machine) SubmitMove(a combat.Action) (Outbound, error) {
	if m.phase != PhaseChoosing {
		return Outbound{}, m.wrongPhase("submit move")
	}
	move, err := combat.Encode(a)
	if err != nil {
		return Outbound{}, err
	}
	if err := m.my.CanAct(a); err != nil {
		return Outbound{}, err
	}
	c, err := m.engine.Commit(uint32(move))
	if err != nil {
		return Outbound{}, fmt.Errorf("commit move: %w", err)
	}
	m.local = &LocalRound{Action: a, Commitment: c}
	m.lastErr = nil
	m.setPhase(PhaseCommitting, nil)
	return m.commitOutbound(), nil
}

func (m *Machine) commitOutbound() Outbound {
	return Outbound{Round: m.round, Envelope: signal.Commit(m.round, m.local.Commitment.Digest)}
}

func (m *Machine) revealOutbound() Outbound {
	return Outbound{Round: m.round, Envelope: signal.Reveal(m.round, m.local.Commitment.Reveal())}
}

// Pending returns the message that still has to be sent for the current
// phase, if any. It is what a retry resends.
func (m *Machine) Pending() (Outbound, bool) {
	if m.local == nil {
		return Outbound{}, false
	}
	switch {
	case m.phase == PhaseCommitting && !m.local.CommitSent:
		return m.commitOutbound(), true
	case m.phase == PhaseRevealing && !m.local.RevealSent:
		return m.revealOutbound(), true
	}
	return Outbound{}, false
}

// SendFailed records a failed send. The phase does not change.
func (m *Machine) SendFailed(err error) {
	if errs.CodeOf(err) == errs.CodeUnknown {
		err = errs.Wrap(errs.CodeTransportSendFailed, "send", err)
	}
	m.lastErr = err
	m.logger.Warn("send failed", "round", m.round, "phase", m.phase, "err", err)
}

func (m *Machine) opponentCommitKnown(round uint32) bool {
	if m.authority == AuthorityLedger {
		return m.oppCommitted[round]
	}
	_, ok := m.oppCommits[round]
	return ok
}

// CommitSent advances past Committing once the local commitment is published.
// The returned Outbound is the local reveal when the opponent had already
// committed.
func (m *Machine) CommitSent() (*Outbound, error) {
	if m.phase != PhaseCommitting {
		return nil, m.wrongPhase("commit sent")
	}
	m.local.CommitSent = true
	m.lastErr = nil
	if m.opponentCommitKnown(m.round) {
		return m.enterRevealing(), nil
	}
	m.setPhase(PhaseWaitingCommit, nil)
	return nil, nil
}

func (m *Machine) enterRevealing() *Outbound {
	m.setPhase(PhaseRevealing, nil)
	if m.local.RevealIssued {
		return nil
	}
	m.local.RevealIssued = true
	out := m.revealOutbound()
	return &out
}

// OpponentCommit records the opponent's digest for round. Commitments for
// past rounds are ignored; the first commitment seen for a round wins.
func (m *Machine) OpponentCommit(round uint32, digest []commitment.Part) *Outbound {
	if m.authority == AuthorityLedger {
		return nil
	}
	if round < m.round || m.phase.Terminal() {
		return nil
	}
	if prev, ok := m.oppCommits[round]; ok {
		if !sameParts(prev, digest) {
			m.logger.Warn("ignoring second commitment", "round", round)
		}
		return nil
	}
	m.oppCommits[round] = append([]commitment.Part(nil), digest...)
	if _, ok := m.oppReveals[round]; ok {
		m.verify(round)
	}
	return m.afterOpponentCommit(round)
}

// OpponentCommittedOnLedger records that the ledger holds the opponent's
// commitment for round.
func (m *Machine) OpponentCommittedOnLedger(round uint32) *Outbound {
	if m.authority != AuthorityLedger || round < m.round || m.phase.Terminal() {
		return nil
	}
	if m.oppCommitted[round] {
		return nil
	}
	m.oppCommitted[round] = true
	return m.afterOpponentCommit(round)
}

func (m *Machine) afterOpponentCommit(round uint32) *Outbound {
	if round == m.round && m.phase == PhaseWaitingCommit {
		return m.enterRevealing()
	}
	return nil
}

// OpponentReveal records the opponent's reveal for round and verifies it as
// soon as the matching commitment is known.
func (m *Machine) OpponentReveal(round, move uint32, nonce []commitment.Part) {
	if m.authority == AuthorityLedger {
		return
	}
	if round < m.round || m.resolved[round] || m.phase.Terminal() {
		return
	}
	if _, ok := m.oppReveals[round]; ok {
		return
	}
	m.oppReveals[round] = commitment.Reveal{Move: move, Nonce: append([]commitment.Part(nil), nonce...)}
	if _, ok := m.oppCommits[round]; ok {
		m.verify(round)
	}
	m.afterOpponentReveal(round)
}

// OpponentRevealedOnLedger records a move the ledger has already verified.
func (m *Machine) OpponentRevealedOnLedger(round, move uint32) {
	if m.authority != AuthorityLedger || round < m.round || m.resolved[round] || m.phase.Terminal() {
		return
	}
	if m.verified[round] {
		return
	}
	m.oppCommitted[round] = true
	m.oppReveals[round] = commitment.Reveal{Move: move}
	m.verified[round] = true
	m.afterOpponentReveal(round)
}

func (m *Machine) verify(round uint32) {
	r := m.oppReveals[round]
	if !m.engine.Verify(r.Move, r.Nonce, m.oppCommits[round]) {
		m.halt(errs.Newf(errs.CodeVerificationFailed, "opponent reveal for round %d does not match its commitment", round))
		return
	}
	m.verified[round] = true
}

func (m *Machine) afterOpponentReveal(round uint32) {
	if round == m.round && m.phase == PhaseWaitingReveal && m.verified[round] {
		m.resolve()
	}
}

// RevealSent advances past Revealing once the local reveal is published.
func (m *Machine) RevealSent() error {
	if m.phase != PhaseRevealing {
		return m.wrongPhase("reveal sent")
	}
	m.local.RevealSent = true
	m.lastErr = nil
	if m.verified[m.round] {
		m.resolve()
		return nil
	}
	m.setPhase(PhaseWaitingReveal, nil)
	return nil
}

// resolve applies the round. It runs at most once per round and either
// applies fully or not at all.
func (m *Machine) resolve() {
	if m.resolved[m.round] {
		return
	}
	m.resolved[m.round] = true
	m.setPhase(PhaseResolving, nil)

	r := m.oppReveals[m.round]
	oppAction, err := combat.Decode(combat.Move(r.Move))
	if err != nil {
		m.halt(fmt.Errorf("opponent move: %w", err))
		return
	}
	my, opp, events, err := combat.ResolveTurn(m.my, m.opp, m.local.Action, oppAction)
	if err != nil {
		m.halt(err)
		return
	}
	m.my, m.opp = my, opp
	m.events = append(m.events, events...)
	m.logger.Info("round resolved", "round", m.round, "events", len(events))
	m.setPhase(PhaseAnimating, events)
}

// AnimationDone ends the presentation pause. It either starts the next round
// or finishes the match.
func (m *Machine) AnimationDone() error {
	if m.phase != PhaseAnimating {
		return m.wrongPhase("animation done")
	}
	myOut, oppOut := m.my.Eliminated(), m.opp.Eliminated()
	switch {
	case myOut && oppOut:
		m.finish(ResultDraw)
	case myOut:
		m.finish(ResultLoss)
	case oppOut:
		m.finish(ResultWin)
	default:
		m.advance()
	}
	return nil
}

func (m *Machine) advance() {
	for r := range m.oppCommits {
		if r <= m.round {
			delete(m.oppCommits, r)
		}
	}
	for r := range m.oppReveals {
		if r <= m.round {
			delete(m.oppReveals, r)
		}
	}
	for r := range m.oppCommitted {
		if r <= m.round {
			delete(m.oppCommitted, r)
		}
	}
	for r := range m.verified {
		if r <= m.round {
			delete(m.verified, r)
		}
	}
	m.round++
	m.local = nil
	m.lastErr = nil
	m.setPhase(PhaseChoosing, nil)
}

func (m *Machine) finish(result Result) {
	o := &Outcome{Result: result, Round: m.round}
	if mvp, ok := combat.MVP(m.my, m.opp); ok {
		o.MVP = mvp
		_, o.MVPLocal = m.my.Unit(mvp.RosterID)
	}
	m.outcome = o
	m.setPhase(PhaseGameOver, nil)
}

// Abandon ends the match because one side left.
func (m *Machine) Abandon(result Result) {
	if m.phase == PhaseGameOver {
		return
	}
	m.finish(result)
}

// DeclaredWinner ends the match on the result the ledger declared, even in
// the middle of a round. A round already resolved here finishes through
// AnimationDone instead.
func (m *Machine) DeclaredWinner(w Winner) {
	if m.authority != AuthorityLedger || m.phase.Terminal() || m.phase == PhaseResolving || m.phase == PhaseAnimating {
		return
	}
	switch w {
	case WinnerLocal:
		m.finish(ResultWin)
	case WinnerOpponent:
		m.finish(ResultLoss)
	case WinnerDraw:
		m.finish(ResultDraw)
	}
}

func sameParts(a, b []commitment.Part) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[commitment.Part]bool, len(a))
	for _, p := range a {
		set[p] = true
	}
	for _, p := range b {
		if !set[p] {
			return false
		}
	}
	return true
}
