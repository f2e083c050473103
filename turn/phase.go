package turn

import "fmt"

// Phase is the position of the local player inside a round.
type Phase uint8

const (
	PhaseChoosing Phase = iota
	PhaseCommitting
	PhaseWaitingCommit
	PhaseRevealing
	PhaseWaitingReveal
	PhaseResolving
	PhaseAnimating
	PhaseGameOver
	PhaseHalted
)

func (p Phase) String() string {
	switch p {
	case PhaseChoosing:
		return "choosing"
	case PhaseCommitting:
		return "committing"
	case PhaseWaitingCommit:
		return "waiting-commit"
	case PhaseRevealing:
		return "revealing"
	case PhaseWaitingReveal:
		return "waiting-reveal"
	case PhaseResolving:
		return "resolving"
	case PhaseAnimating:
		return "animating"
	case PhaseGameOver:
		return "game-over"
	case PhaseHalted:
		return "halted"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// Terminal reports whether no further round can be played.
func (p Phase) Terminal() bool {
	return p == PhaseGameOver || p == PhaseHalted
}

// Authority selects who verifies opponent reveals.
type Authority uint8

const (
	AuthorityLocal Authority = iota
	AuthorityLedger
)

// ParseAuthority parses "local" or "ledger".
func ParseAuthority(s string) (Authority, error) {
	switch s {
	case "local", "":
		return AuthorityLocal, nil
	case "ledger":
		return AuthorityLedger, nil
	}
	return 0, fmt.Errorf("unknown verification authority %q", s)
}

// Result is the end of a match from the local point of view.
type Result uint8

const (
	ResultNone Result = iota
	ResultWin
	ResultLoss
	ResultDraw
	ResultForfeit      // the local player left
	ResultOpponentLeft // the opponent left
)

func (r Result) String() string {
	switch r {
	case ResultWin:
		return "win"
	case ResultLoss:
		return "loss"
	case ResultDraw:
		return "draw"
	case ResultForfeit:
		return "forfeit"
	case ResultOpponentLeft:
		return "opponent left"
	}
	return "none"
}
