package turn

import (
	"errors"
	"sort"
	"strings"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/domain/combat"
	"github.com/luca-patrignani/mental-arena/errs"
	"github.com/luca-patrignani/mental-arena/note"
	"github.com/luca-patrignani/mental-arena/signal"
)

// Snapshot is the persisted state of a match: what a caller hands back to
// resume it after a restart.
type Snapshot struct {
	Round             uint32                        `json:"round"`
	Phase             Phase                         `json:"phase"`
	Authority         Authority                     `json:"authority"`
	My                combat.Team                   `json:"my"`
	Opponent          combat.Team                   `json:"opponent"`
	Events            []combat.Event                `json:"events,omitempty"`
	Local             *LocalRound                   `json:"local,omitempty"`
	OpponentCommits   map[uint32][]commitment.Part  `json:"opponent_commits,omitempty"`
	OpponentCommitted map[uint32]bool               `json:"opponent_committed,omitempty"`
	OpponentReveals   map[uint32]commitment.Reveal  `json:"opponent_reveals,omitempty"`
	Verified          map[uint32]bool               `json:"verified,omitempty"`
	Resolved          []uint32                      `json:"resolved,omitempty"`
	Outcome           *Outcome                      `json:"outcome,omitempty"`
	LastError         string                        `json:"last_error,omitempty"`
	LastErrorCode     errs.Code                     `json:"last_error_code,omitempty"`
	OpponentID        string                        `json:"opponent_id,omitempty"`
	Match             string                        `json:"match,omitempty"`
	Handled           map[signal.Category][]note.ID `json:"handled,omitempty"`
}

// Snapshot captures the machine state. Handled, the match and the opponent
// identity are filled in by the Session.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		Round:             m.round,
		Phase:             m.phase,
		Authority:         m.authority,
		My:                m.my.Clone(),
		Opponent:          m.opp.Clone(),
		Events:            m.Events(),
		OpponentCommits:   make(map[uint32][]commitment.Part, len(m.oppCommits)),
		OpponentCommitted: make(map[uint32]bool, len(m.oppCommitted)),
		OpponentReveals:   make(map[uint32]commitment.Reveal, len(m.oppReveals)),
		Verified:          make(map[uint32]bool, len(m.verified)),
	}
	if m.local != nil {
		l := *m.local
		s.Local = &l
	}
	for r, d := range m.oppCommits {
		s.OpponentCommits[r] = append([]commitment.Part(nil), d...)
	}
	for r, v := range m.oppCommitted {
		s.OpponentCommitted[r] = v
	}
	for r, v := range m.oppReveals {
		s.OpponentReveals[r] = v
	}
	for r, v := range m.verified {
		s.Verified[r] = v
	}
	for r := range m.resolved {
		s.Resolved = append(s.Resolved, r)
	}
	sort.Slice(s.Resolved, func(i, j int) bool { return s.Resolved[i] < s.Resolved[j] })
	if m.outcome != nil {
		o := *m.outcome
		s.Outcome = &o
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
		s.LastErrorCode = errs.CodeOf(m.lastErr)
	}
	return s
}

// RestoreMachine rebuilds a machine from a snapshot. A snapshot can never be
// taken inside Resolving, since resolution is synchronous.
func RestoreMachine(engine *commitment.Engine, s Snapshot, opts ...MachineOption) (*Machine, error) {
	if s.Phase == PhaseResolving {
		return nil, errors.New("snapshot taken while resolving")
	}
	if s.Phase != PhaseChoosing && !s.Phase.Terminal() && s.Phase != PhaseAnimating && s.Local == nil {
		return nil, errs.Newf(errs.CodeWrongPhase, "snapshot in phase %s has no local commitment", s.Phase)
	}
	m, err := NewMachine(engine, s.My, s.Opponent, append([]MachineOption{WithAuthority(s.Authority)}, opts...)...)
	if err != nil {
		return nil, err
	}
	m.round = s.Round
	m.phase = s.Phase
	m.events = append([]combat.Event(nil), s.Events...)
	if s.Local != nil {
		l := *s.Local
		m.local = &l
	}
	for r, d := range s.OpponentCommits {
		m.oppCommits[r] = append([]commitment.Part(nil), d...)
	}
	for r, v := range s.OpponentCommitted {
		m.oppCommitted[r] = v
	}
	for r, v := range s.OpponentReveals {
		m.oppReveals[r] = v
	}
	for r, v := range s.Verified {
		m.verified[r] = v
	}
	for _, r := range s.Resolved {
		m.resolved[r] = true
	}
	if s.Outcome != nil {
		o := *s.Outcome
		m.outcome = &o
	}
	if s.LastError != "" {
		m.lastErr = errs.New(s.LastErrorCode, strings.TrimPrefix(s.LastError, string(s.LastErrorCode)+": "))
		if s.LastErrorCode == "" {
			m.lastErr = errors.New(s.LastError)
		}
	}
	return m, nil
}
