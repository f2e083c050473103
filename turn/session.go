package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/domain/combat"
	"github.com/luca-patrignani/mental-arena/errs"
	"github.com/luca-patrignani/mental-arena/note"
	"github.com/luca-patrignani/mental-arena/signal"
)

// ErrSessionClosed is returned by Do once Run has returned.
var ErrSessionClosed = errors.New("session closed")

// Config wires a Session to its collaborators.
type Config struct {
	Engine    *commitment.Engine
	Transport Transport
	Signer    *signal.Signer
	// Opponent is the identity of the other player.
	Opponent string
	// Classifier is shared with the lobby that set the match up. When nil the
	// session creates its own and baselines it in Start.
	Classifier *signal.Classifier
	Authority  Authority
	// Ledger is required with AuthorityLedger.
	Ledger    LedgerReader
	Persister Persister
	// MatchID keys the local snapshot.
	MatchID string
	// Match is the match named by the host. It is signed into every envelope
	// and envelopes of other matches are dropped.
	Match string

	PollInterval time.Duration
	// AnimationDelay ends Animating automatically. Zero waits for
	// CompleteAnimation.
	AnimationDelay time.Duration
	// Wake triggers an observation before the next poll tick. A closed Wake
	// falls back to polling.
	Wake   <-chan struct{}
	Logger *slog.Logger
}

// Status is a read-only view of a session, safe to read from any goroutine.
type Status struct {
	Round     uint32
	Phase     Phase
	LastError error
	Outcome   *Outcome
	My        combat.Team
	Opponent  combat.Team
}

type command struct {
	fn    func(context.Context, *Session) error
	reply chan error
}

// Session drives a Machine over a Transport. All machine calls and all sends
// happen on the goroutine running Run, or on the caller's goroutine when the
// synchronous methods are used directly without Run.
type Session struct {
	cfg        Config
	machine    *Machine
	classifier *signal.Classifier
	baseline   bool
	logger     *slog.Logger

	commands chan command
	done     chan struct{}
	status   atomic.Pointer[Status]
}

// NewSession starts a new match between my and opponent.
func NewSession(cfg Config, my, opponent combat.Team) (*Session, error) {
	if err := checkConfig(&cfg); err != nil {
		return nil, err
	}
	m, err := NewMachine(cfg.Engine, my, opponent, WithAuthority(cfg.Authority), WithMachineLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}
	s := newSession(cfg, m)
	if cfg.Classifier == nil {
		s.classifier = newClassifier(cfg)
		s.baseline = true
	}
	return s, nil
}

// ResumeSession continues a match from a persisted snapshot. The handled
// note ids stored in the snapshot replace the baseline.
func ResumeSession(cfg Config, snap Snapshot) (*Session, error) {
	if cfg.Opponent == "" {
		cfg.Opponent = snap.OpponentID
	}
	if cfg.Match == "" {
		cfg.Match = snap.Match
	}
	cfg.Authority = snap.Authority
	if err := checkConfig(&cfg); err != nil {
		return nil, err
	}
	m, err := RestoreMachine(cfg.Engine, snap, WithMachineLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}
	s := newSession(cfg, m)
	if cfg.Classifier == nil {
		s.classifier = newClassifier(cfg)
	}
	s.classifier.Restore(snap.Handled)
	return s, nil
}

func checkConfig(cfg *Config) error {
	switch {
	case cfg.Engine == nil:
		return errors.New("session: missing commitment engine")
	case cfg.Transport == nil:
		return errors.New("session: missing transport")
	case cfg.Signer == nil:
		return errors.New("session: missing signer")
	case cfg.Opponent == "":
		return errors.New("session: missing opponent identity")
	case cfg.Authority == AuthorityLedger && cfg.Ledger == nil:
		return errors.New("session: ledger authority needs a ledger reader")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 750 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return nil
}

func newClassifier(cfg Config) *signal.Classifier {
	return signal.NewClassifier(
		signal.WithCounterparty(cfg.Opponent),
		signal.WithMatch(cfg.Match),
		signal.WithMaxMove(uint32(combat.MaxMove)),
		signal.WithLogger(cfg.Logger),
	)
}

func newSession(cfg Config, m *Machine) *Session {
	s := &Session{
		cfg:        cfg,
		machine:    m,
		classifier: cfg.Classifier,
		logger:     cfg.Logger.With("opponent", shortID(cfg.Opponent)),
		commands:   make(chan command),
		done:       make(chan struct{}),
	}
	s.publish()
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Subscribe registers fn for machine updates. fn runs on the session
// goroutine and must not call back into the session.
func (s *Session) Subscribe(fn func(Update)) {
	s.machine.Subscribe(fn)
}

// Status returns the state published after the last operation.
func (s *Session) Status() Status {
	return *s.status.Load()
}

func (s *Session) publish() {
	my, opp := s.machine.Teams()
	st := &Status{
		Round:     s.machine.Round(),
		Phase:     s.machine.Phase(),
		LastError: s.machine.LastError(),
		My:        my,
		Opponent:  opp,
	}
	if o, ok := s.machine.Outcome(); ok {
		st.Outcome = &o
	}
	s.status.Store(st)
}

// Start captures the baseline of notes that predate the match. It is a
// no-op for sessions built on a lobby classifier or resumed from a snapshot.
func (s *Session) Start(ctx context.Context) error {
	if !s.baseline {
		return nil
	}
	s.baseline = false
	msgs, err := s.observe(ctx)
	if errors.Is(err, errs.ErrNotReady) {
		s.logger.Info("transport not ready, deferring baseline")
		s.classifier.DeferBaseline()
		return nil
	}
	if err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	s.classifier.Baseline(msgs)
	return nil
}

func (s *Session) observe(ctx context.Context) ([]note.Message, error) {
	return s.cfg.Transport.Observe(ctx, note.Filter{Sender: s.cfg.Opponent, Recipient: s.cfg.Signer.Identity()})
}

// SubmitMove commits to a and publishes the commitment. A failed send leaves
// the round in Committing and is returned as a retryable error.
func (s *Session) SubmitMove(ctx context.Context, a combat.Action) error {
	defer s.publish()
	out, err := s.machine.SubmitMove(a)
	if err != nil {
		return err
	}
	err = s.send(ctx, out)
	s.persist(ctx)
	return err
}

// Retry resends whatever the current phase still has to publish.
func (s *Session) Retry(ctx context.Context) error {
	defer s.publish()
	out, ok := s.machine.Pending()
	if !ok {
		return nil
	}
	err := s.send(ctx, out)
	s.persist(ctx)
	return err
}

// CompleteAnimation ends the presentation of the last resolved round.
func (s *Session) CompleteAnimation(ctx context.Context) error {
	defer s.publish()
	if err := s.machine.AnimationDone(); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// Leave tells the opponent the local player quit and ends the match as a
// forfeit. When the notice cannot be sent the match goes on.
func (s *Session) Leave(ctx context.Context) error {
	defer s.publish()
	if s.machine.Phase() == PhaseGameOver {
		return nil
	}
	payload, err := s.seal(signal.Leave(s.machine.Round()))
	if err != nil {
		return fmt.Errorf("seal leave: %w", err)
	}
	if _, err := s.cfg.Transport.Send(ctx, s.cfg.Opponent, payload); err != nil {
		return errs.Wrap(errs.CodeTransportSendFailed, "send leave", err)
	}
	s.machine.Abandon(ResultForfeit)
	s.persist(ctx)
	return nil
}

// Step resends pending messages, observes the transport once and feeds every
// new signal to the machine.
func (s *Session) Step(ctx context.Context) error {
	defer s.publish()
	if s.machine.Phase().Terminal() {
		return nil
	}
	if out, ok := s.machine.Pending(); ok {
		if err := s.send(ctx, out); err != nil {
			s.logger.Debug("resend failed", "err", err)
		}
	}

	msgs, err := s.observe(ctx)
	switch {
	case errors.Is(err, errs.ErrNotReady):
		return nil
	case err != nil:
		return fmt.Errorf("observe: %w", err)
	}
	for _, sig := range s.classifier.Classify(msgs) {
		s.dispatch(ctx, sig)
		if s.machine.Phase().Terminal() {
			break
		}
	}

	if s.cfg.Authority == AuthorityLedger && !s.machine.Phase().Terminal() {
		if err := s.readLedger(ctx); err != nil {
			return err
		}
	}
	s.persist(ctx)
	return nil
}

func (s *Session) dispatch(ctx context.Context, sig signal.Signal) {
	switch sig := sig.(type) {
	case signal.Commit:
		if out := s.machine.OpponentCommit(sig.Round, sig.Digest); out != nil {
			_ = s.send(ctx, *out)
		}
	case signal.Reveal:
		s.machine.OpponentReveal(sig.Round, sig.Move, sig.Nonce)
	case signal.Leave:
		s.logger.Info("opponent left", "round", sig.Round)
		s.machine.Abandon(ResultOpponentLeft)
	case signal.Malformed:
		s.logger.Warn("ignoring malformed note", "id", sig.ID, "reason", sig.Reason)
	default:
		s.logger.Debug("ignoring signal", "category", sig.Category())
	}
}

func (s *Session) readLedger(ctx context.Context) error {
	round := s.machine.Round()
	view, err := s.cfg.Ledger.ReadRound(ctx, round)
	if err != nil {
		return fmt.Errorf("read ledger round %d: %w", round, err)
	}
	if view.OpponentCommitted {
		if out := s.machine.OpponentCommittedOnLedger(round); out != nil {
			_ = s.send(ctx, *out)
		}
	}
	if view.OpponentMove != 0 {
		s.machine.OpponentRevealedOnLedger(round, view.OpponentMove)
	}
	if view.Winner != WinnerNone {
		s.machine.DeclaredWinner(view.Winner)
	}
	return nil
}

func (s *Session) seal(e signal.Envelope) ([]byte, error) {
	e.Match = s.cfg.Match
	return s.cfg.Signer.Seal(s.cfg.Opponent, e)
}

// send publishes out and reports the result to the machine. A commit that
// finds the opponent already committed chains straight into the reveal.
func (s *Session) send(ctx context.Context, out Outbound) error {
	payload, err := s.seal(out.Envelope)
	if err != nil {
		s.machine.SendFailed(err)
		return err
	}
	id, err := s.cfg.Transport.Send(ctx, s.cfg.Opponent, payload)
	if err != nil {
		s.machine.SendFailed(err)
		return s.machine.LastError()
	}
	s.logger.Debug("sent", "tag", out.Envelope.Tag, "round", out.Round, "id", id)

	switch out.Envelope.Tag {
	case signal.CategoryCommit:
		next, err := s.machine.CommitSent()
		if err != nil {
			return err
		}
		if next != nil {
			return s.send(ctx, *next)
		}
	case signal.CategoryReveal:
		return s.machine.RevealSent()
	}
	return nil
}

func (s *Session) persist(ctx context.Context) {
	if s.cfg.Persister == nil {
		return
	}
	snap := s.machine.Snapshot()
	snap.OpponentID = s.cfg.Opponent
	snap.Match = s.cfg.Match
	snap.Handled = s.classifier.Handled()
	if err := s.cfg.Persister.Save(ctx, s.cfg.MatchID, snap); err != nil {
		s.logger.Warn("could not persist session", "match", s.cfg.MatchID, "err", err)
	}
}

// Run polls the transport and executes commands until the match ends or ctx
// is done. It returns the integrity error of a halted match.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	if err := s.Start(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	wake := s.cfg.Wake
	var animation <-chan time.Time
	for {
		switch s.machine.Phase() {
		case PhaseGameOver:
			return nil
		case PhaseHalted:
			return s.machine.LastError()
		case PhaseAnimating:
			if s.cfg.AnimationDelay > 0 && animation == nil {
				animation = time.After(s.cfg.AnimationDelay)
			}
		default:
			animation = nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-s.commands:
			c.reply <- c.fn(ctx, s)
		case <-ticker.C:
			s.tick(ctx)
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			s.tick(ctx)
		case <-animation:
			animation = nil
			if err := s.CompleteAnimation(ctx); err != nil {
				s.logger.Debug("animation timer", "err", err)
			}
		}
	}
}

func (s *Session) tick(ctx context.Context) {
	if err := s.Step(ctx); err != nil {
		s.logger.Warn("step failed", "err", err)
	}
}

// Do runs fn on the goroutine executing Run and returns its error. It is how
// other goroutines submit moves or leave while Run is active.
func (s *Session) Do(ctx context.Context, fn func(context.Context, *Session) error) error {
	c := command{fn: fn, reply: make(chan error, 1)}
	select {
	case s.commands <- c:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
