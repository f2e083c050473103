package lobby

import (
	"github.com/luca-patrignani/mental-arena/domain/combat"
	"github.com/luca-patrignani/mental-arena/errs"
)

// Role is the side of a player in the lobby.
type Role uint8

const (
	RoleHost Role = iota
	RoleGuest
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "guest"
}

func (r Role) other() Role {
	if r == RoleHost {
		return RoleGuest
	}
	return RoleHost
}

// SnakeOrder is who picks at each position of the draft.
var SnakeOrder = [2 * combat.TeamSize]Role{RoleHost, RoleGuest, RoleGuest, RoleHost, RoleHost, RoleGuest}

// Pick is one drafted unit.
type Pick struct {
	Index uint32
	Role  Role
	Unit  uint8
}

// Draft tracks the picks of both players.
type Draft struct {
	picks []Pick
	taken map[uint8]bool
}

func NewDraft() *Draft {
	return &Draft{taken: make(map[uint8]bool)}
}

// Turn returns who picks next. ok is false once the draft is complete.
func (d *Draft) Turn() (role Role, ok bool) {
	if d.Done() {
		return 0, false
	}
	return SnakeOrder[len(d.picks)], true
}

func (d *Draft) Done() bool {
	return len(d.picks) == len(SnakeOrder)
}

// Next is the index of the next pick.
func (d *Draft) Next() uint32 {
	return uint32(len(d.picks))
}

// Check validates a pick without applying it.
func (d *Draft) Check(role Role, unit uint8) error {
	turn, ok := d.Turn()
	if !ok {
		return errs.New(errs.CodeWrongPhase, "draft is complete")
	}
	if turn != role {
		return errs.Newf(errs.CodeWrongPhase, "pick %d belongs to the %s", d.Next(), turn)
	}
	if int(unit) >= combat.RosterSize {
		return errs.Newf(errs.CodeInvalidTeam, "unknown unit %d", unit)
	}
	if d.taken[unit] {
		return errs.Newf(errs.CodeInvalidTeam, "unit %d already drafted", unit)
	}
	return nil
}

// Apply records a pick.
func (d *Draft) Apply(role Role, unit uint8) (Pick, error) {
	if err := d.Check(role, unit); err != nil {
		return Pick{}, err
	}
	p := Pick{Index: d.Next(), Role: role, Unit: unit}
	d.picks = append(d.picks, p)
	d.taken[unit] = true
	return p, nil
}

func (d *Draft) Picks() []Pick {
	return append([]Pick(nil), d.picks...)
}

// Available lists the units nobody has drafted yet.
func (d *Draft) Available() []uint8 {
	var out []uint8
	for id := 0; id < combat.RosterSize; id++ {
		if !d.taken[uint8(id)] {
			out = append(out, uint8(id))
		}
	}
	return out
}

// Team returns the units drafted by role, in pick order.
func (d *Draft) Team(role Role) (combat.Team, error) {
	if !d.Done() {
		return combat.Team{}, errs.Newf(errs.CodeInvalidTeam, "draft incomplete after %d picks", len(d.picks))
	}
	var ids []uint8
	for _, p := range d.picks {
		if p.Role == role {
			ids = append(ids, p.Unit)
		}
	}
	return combat.NewTeam(ids...)
}
