package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/luca-patrignani/mental-arena/domain/combat"
	"github.com/luca-patrignani/mental-arena/errs"
	"github.com/luca-patrignani/mental-arena/note"
	"github.com/luca-patrignani/mental-arena/signal"
	"github.com/luca-patrignani/mental-arena/turn"
)

// ErrOpponentLeft is returned while waiting when the counterparty sent a leave.
var ErrOpponentLeft = errors.New("opponent left the lobby")

var errNothingYet = errors.New("nothing observed yet")

type Config struct {
	Transport turn.Transport
	Signer    *signal.Signer
	// PollInterval is the pause between two observations while waiting.
	PollInterval time.Duration
	// Legacy accepts untagged envelopes from older clients.
	Legacy bool
	Logger *slog.Logger
}

// Lobby is one side of a pairing. It is not safe for concurrent use.
type Lobby struct {
	cfg        Config
	role       Role
	opponent   string
	match      string
	classifier *signal.Classifier
	draft      *Draft
	backlog    []signal.Signal
	logger     *slog.Logger
}

func newLobby(cfg Config, role Role, opponent string) (*Lobby, error) {
	if cfg.Transport == nil || cfg.Signer == nil {
		return nil, errors.New("lobby: transport and signer are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 750 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	opts := []signal.Option{
		signal.WithCounterparty(opponent),
		signal.WithMaxMove(uint32(combat.MaxMove)),
		signal.WithLogger(cfg.Logger),
	}
	if cfg.Legacy {
		opts = append(opts, signal.WithLegacy(signal.DefaultLegacyAmounts))
	}
	return &Lobby{
		cfg:        cfg,
		role:       role,
		opponent:   opponent,
		classifier: signal.NewClassifier(opts...),
		draft:      NewDraft(),
		logger:     cfg.Logger.With("role", role),
	}, nil
}

// Host opens a lobby and baselines the joins already addressed to the local
// player.
func Host(ctx context.Context, cfg Config) (*Lobby, error) {
	l, err := newLobby(cfg, RoleHost, "")
	if err != nil {
		return nil, err
	}
	if err := l.baseline(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Join baselines the notes of host and asks it for a match.
func Join(ctx context.Context, cfg Config, host string) (*Lobby, error) {
	if host == "" {
		return nil, errors.New("lobby: missing host identity")
	}
	l, err := newLobby(cfg, RoleGuest, host)
	if err != nil {
		return nil, err
	}
	if err := l.baseline(ctx); err != nil {
		return nil, err
	}
	if err := l.send(ctx, signal.Join()); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Lobby) Role() Role {
	return l.role
}

// Opponent is the identity of the counterparty, empty until a host has been
// joined.
func (l *Lobby) Opponent() string {
	return l.opponent
}

// Match names the match every envelope after the accept is signed for. It
// is empty before the accept and with a legacy host.
func (l *Lobby) Match() string {
	return l.match
}

func (l *Lobby) Draft() *Draft {
	return l.draft
}

// Classifier returns the classifier holding the lobby baseline.
func (l *Lobby) Classifier() *signal.Classifier {
	return l.classifier
}

func (l *Lobby) filter() note.Filter {
	return note.Filter{Sender: l.opponent, Recipient: l.cfg.Signer.Identity()}
}

func (l *Lobby) baseline(ctx context.Context) error {
	msgs, err := l.cfg.Transport.Observe(ctx, l.filter())
	if errors.Is(err, errs.ErrNotReady) {
		l.logger.Info("transport not ready, deferring baseline")
		l.classifier.DeferBaseline()
		return nil
	}
	if err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	l.classifier.Baseline(msgs)
	return nil
}

func (l *Lobby) send(ctx context.Context, e signal.Envelope) error {
	if e.Match == "" {
		e.Match = l.match
	}
	payload, err := l.cfg.Signer.Seal(l.opponent, e)
	if err != nil {
		return err
	}
	if _, err := l.cfg.Transport.Send(ctx, l.opponent, payload); err != nil {
		return errs.Wrap(errs.CodeTransportSendFailed, fmt.Sprintf("send %s", e.Tag), err)
	}
	return nil
}

// lobbyCategories are the categories the lobby consumes. Commits and reveals
// stay unclassified for the battle session.
var lobbyCategories = []signal.Category{signal.CategoryJoin, signal.CategoryAccept, signal.CategoryLeave, signal.CategoryDraftPick}

// wait observes the transport until handle reports a result. handle returns
// errNothingYet to keep waiting. Draft picks that were not consumed are kept
// for the next wait.
func wait[T any](ctx context.Context, l *Lobby, handle func(signal.Signal) (T, error)) (T, error) {
	op := func() (T, error) {
		var zero T
		msgs, err := l.cfg.Transport.Observe(ctx, l.filter())
		if err != nil {
			if errs.Retryable(err) {
				return zero, err
			}
			return zero, backoff.Permanent(err)
		}
		l.classifier.AbsorbDeferred(msgs)
		sigs := append(l.backlog, l.classifier.ClassifyCategories(msgs, lobbyCategories...)...)
		l.backlog = nil
		for i, sig := range sigs {
			if l.opponent != "" && sig.From() != l.opponent {
				continue
			}
			if _, ok := sig.(signal.Leave); ok && l.opponent != "" {
				return zero, backoff.Permanent(ErrOpponentLeft)
			}
			v, err := handle(sig)
			if errors.Is(err, errNothingYet) {
				if _, ok := sig.(signal.DraftPick); ok {
					l.backlog = append(l.backlog, sig)
				}
				continue
			}
			l.backlog = append(l.backlog, sigs[i+1:]...)
			if err != nil {
				return zero, backoff.Permanent(err)
			}
			return v, nil
		}
		return zero, errNothingYet
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(l.cfg.PollInterval)),
		backoff.WithMaxElapsedTime(0),
	)
}

// WaitForGuest blocks until a player joins, answers it with an accept and
// returns its identity.
func (l *Lobby) WaitForGuest(ctx context.Context) (string, error) {
	if l.role != RoleHost {
		return "", errs.New(errs.CodeWrongPhase, "only the host waits for a guest")
	}
	guest, err := wait(ctx, l, func(sig signal.Signal) (string, error) {
		if j, ok := sig.(signal.Join); ok {
			return j.Sender, nil
		}
		return "", errNothingYet
	})
	if err != nil {
		return "", err
	}
	l.opponent = guest
	l.match = uuid.NewString()
	l.classifier.SetCounterparty(guest)
	l.classifier.SetMatch(l.match)
	l.logger.Info("guest joined", "guest", guest, "match", l.match)
	if err := l.send(ctx, signal.Accept(l.match)); err != nil {
		return "", err
	}
	return guest, nil
}

// WaitForAccept blocks until the host accepts the join.
func (l *Lobby) WaitForAccept(ctx context.Context) error {
	if l.role != RoleGuest {
		return errs.New(errs.CodeWrongPhase, "only a guest waits for an accept")
	}
	a, err := wait(ctx, l, func(sig signal.Signal) (signal.Accept, error) {
		if a, ok := sig.(signal.Accept); ok {
			return a, nil
		}
		return signal.Accept{}, errNothingYet
	})
	if err != nil {
		return err
	}
	l.match = a.Match
	l.classifier.SetMatch(a.Match)
	l.logger.Info("join accepted", "match", a.Match)
	return nil
}

// MyTurn reports whether the local player picks next.
func (l *Lobby) MyTurn() bool {
	r, ok := l.draft.Turn()
	return ok && r == l.role
}

// Pick drafts unit for the local player and publishes it.
func (l *Lobby) Pick(ctx context.Context, unit uint8) error {
	if l.opponent == "" {
		return errs.New(errs.CodeWrongPhase, "no opponent yet")
	}
	if err := l.draft.Check(l.role, unit); err != nil {
		return err
	}
	if err := l.send(ctx, signal.DraftPick(l.draft.Next(), unit)); err != nil {
		return err
	}
	_, err := l.draft.Apply(l.role, unit)
	return err
}

// AwaitPick blocks until the opponent makes the next pick. An invalid pick
// aborts the draft.
func (l *Lobby) AwaitPick(ctx context.Context) (Pick, error) {
	opp := l.role.other()
	if r, ok := l.draft.Turn(); !ok || r != opp {
		return Pick{}, errs.New(errs.CodeWrongPhase, "not the opponent's turn")
	}
	return wait(ctx, l, func(sig signal.Signal) (Pick, error) {
		p, ok := sig.(signal.DraftPick)
		if !ok || p.Pick > l.draft.Next() {
			return Pick{}, errNothingYet
		}
		if p.Pick < l.draft.Next() {
			return Pick{}, errs.Newf(errs.CodeInvalidTeam, "opponent replayed pick %d", p.Pick)
		}
		return l.draft.Apply(opp, p.Unit)
	})
}

// Teams returns the drafted teams from the local point of view.
func (l *Lobby) Teams() (my, opponent combat.Team, err error) {
	if my, err = l.draft.Team(l.role); err != nil {
		return combat.Team{}, combat.Team{}, err
	}
	if opponent, err = l.draft.Team(l.role.other()); err != nil {
		return combat.Team{}, combat.Team{}, err
	}
	return my, opponent, nil
}

// Session starts the battle for the drafted teams. Signer, opponent, match
// and classifier of cfg are taken from the lobby, and so is the transport unless
// cfg sets one.
func (l *Lobby) Session(cfg turn.Config) (*turn.Session, error) {
	my, opp, err := l.Teams()
	if err != nil {
		return nil, err
	}
	if cfg.Transport == nil {
		cfg.Transport = l.cfg.Transport
	}
	cfg.Signer = l.cfg.Signer
	cfg.Opponent = l.opponent
	cfg.Match = l.match
	cfg.Classifier = l.classifier
	if cfg.Logger == nil {
		cfg.Logger = l.cfg.Logger
	}
	return turn.NewSession(cfg, my, opp)
}

// Leave notifies the opponent, if any, that the local player gave up.
func (l *Lobby) Leave(ctx context.Context) error {
	if l.opponent == "" {
		return nil
	}
	return l.send(ctx, signal.Leave(0))
}
