package combat

import "github.com/luca-patrignani/mental-arena/errs"

// Move is the integer encoding of an Action, in [1, MaxMove].
type Move uint32

// MaxMove is the largest valid Move.
const MaxMove = RosterSize * AbilitiesPerUnit

// Valid reports whether m is inside [1, MaxMove].
func (m Move) Valid() bool {
	return m >= 1 && m <= MaxMove
}

// Encode maps an Action to its Move: unit*AbilitiesPerUnit + ability + 1.
func Encode(a Action) (Move, error) {
	if int(a.Unit) >= RosterSize || int(a.Ability) >= AbilitiesPerUnit {
		return 0, errs.Newf(errs.CodeInvalidMove, "action (unit %d, ability %d) out of range", a.Unit, a.Ability)
	}
	return Move(uint32(a.Unit)*AbilitiesPerUnit + uint32(a.Ability) + 1), nil
}

// Decode is the inverse of Encode.
func Decode(m Move) (Action, error) {
	if !m.Valid() {
		return Action{}, errs.Newf(errs.CodeInvalidMove, "move %d outside [1, %d]", m, MaxMove)
	}
	v := uint32(m) - 1
	return Action{
		Unit:    uint8(v / AbilitiesPerUnit),
		Ability: uint8(v % AbilitiesPerUnit),
	}, nil
}

// Lookup returns the static ability the action refers to.
func (a Action) Lookup() (Ability, error) {
	u, err := Lookup(a.Unit)
	if err != nil {
		return Ability{}, errs.Wrap(errs.CodeInvalidMove, "lookup action", err)
	}
	if int(a.Ability) >= AbilitiesPerUnit {
		return Ability{}, errs.Newf(errs.CodeInvalidMove, "ability index %d out of range", a.Ability)
	}
	return u.Abilities[a.Ability], nil
}
