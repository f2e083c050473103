package combat

import (
	"fmt"

	"github.com/luca-patrignani/mental-arena/errs"
)

// NewTeam builds a team of fresh units. Ids must exist and be distinct.
func NewTeam(ids ...uint8) (Team, error) {
	if len(ids) != TeamSize {
		return Team{}, errs.Newf(errs.CodeInvalidTeam, "team needs %d units, got %d", TeamSize, len(ids))
	}
	seen := make(map[uint8]bool, len(ids))
	t := Team{Units: make([]BattleUnit, 0, len(ids))}
	for _, id := range ids {
		if seen[id] {
			return Team{}, errs.Newf(errs.CodeInvalidTeam, "duplicate unit %d", id)
		}
		seen[id] = true
		u, err := InitUnit(id)
		if err != nil {
			return Team{}, errs.Wrap(errs.CodeInvalidTeam, "init unit", err)
		}
		t.Units = append(t.Units, u)
	}
	return t, nil
}

// ValidateOpposing checks that two teams share no unit.
func ValidateOpposing(a, b Team) error {
	for _, u := range a.Units {
		if b.index(u.RosterID) >= 0 {
			return errs.Newf(errs.CodeInvalidTeam, "unit %d fielded by both teams", u.RosterID)
		}
	}
	return nil
}

// Clone returns a deep copy of t.
func (t Team) Clone() Team {
	out := Team{Units: make([]BattleUnit, len(t.Units))}
	for i, u := range t.Units {
		out.Units[i] = u
		if u.Modifiers != nil {
			out.Units[i].Modifiers = append([]Modifier(nil), u.Modifiers...)
		}
	}
	return out
}

// Unit returns the unit with the given roster id.
func (t Team) Unit(id uint8) (BattleUnit, bool) {
	i := t.index(id)
	if i < 0 {
		return BattleUnit{}, false
	}
	return t.Units[i], true
}

func (t Team) index(id uint8) int {
	for i, u := range t.Units {
		if u.RosterID == id {
			return i
		}
	}
	return -1
}

// Eliminated reports whether every unit of t is knocked out.
func (t Team) Eliminated() bool {
	for _, u := range t.Units {
		if !u.KO {
			return false
		}
	}
	return true
}

// IsTeamEliminated is Eliminated as a function.
func IsTeamEliminated(t Team) bool {
	return t.Eliminated()
}

// CanAct checks that a belongs to a live unit of t.
func (t Team) CanAct(a Action) error {
	if _, err := a.Lookup(); err != nil {
		return err
	}
	u, ok := t.Unit(a.Unit)
	if !ok {
		return errs.Newf(errs.CodeInvalidMove, "unit %d is not on the team", a.Unit)
	}
	if u.KO {
		return errs.Newf(errs.CodeInvalidMove, "unit %d is knocked out", a.Unit)
	}
	return nil
}

func (t Team) validate() error {
	for _, u := range t.Units {
		if int(u.RosterID) >= RosterSize {
			return errs.Newf(errs.CodeInvalidTeam, "unknown roster id %d", u.RosterID)
		}
	}
	return nil
}

type actor struct {
	team   *Team
	index  int
	action Action
}

func (a actor) unit() *BattleUnit {
	return &a.team.Units[a.index]
}

// ResolveTurn resolves one simultaneous round and returns the new states of
// both teams and the events in execution order. The input teams are not
// modified. On error nothing is applied.
func ResolveTurn(my, opponent Team, myAction, opponentAction Action) (Team, Team, []Event, error) {
	if err := my.validate(); err != nil {
		return Team{}, Team{}, nil, err
	}
	if err := opponent.validate(); err != nil {
		return Team{}, Team{}, nil, err
	}
	if err := my.CanAct(myAction); err != nil {
		return Team{}, Team{}, nil, fmt.Errorf("local action: %w", err)
	}
	if err := opponent.CanAct(opponentAction); err != nil {
		return Team{}, Team{}, nil, fmt.Errorf("opponent action: %w", err)
	}

	newMy := my.Clone()
	newOpponent := opponent.Clone()
	first := actor{team: &newMy, index: newMy.index(myAction.Unit), action: myAction}
	second := actor{team: &newOpponent, index: newOpponent.index(opponentAction.Unit), action: opponentAction}
	if goesFirst(*second.unit(), *first.unit()) {
		first, second = second, first
	}

	var events []Event
	events = execute(first, second, events)
	if !second.unit().KO {
		events = execute(second, first, events)
	}
	events = tickBurns(first.team, events)
	events = tickBurns(second.team, events)
	tickModifiers(first.team)
	tickModifiers(second.team)
	return newMy, newOpponent, events, nil
}

// goesFirst reports whether a acts before b. Ties on speed and roster id keep
// the argument order of ResolveTurn.
func goesFirst(a, b BattleUnit) bool {
	sa, sb := EffectiveSpeed(a), EffectiveSpeed(b)
	if sa != sb {
		return sa > sb
	}
	return a.RosterID < b.RosterID
}

func execute(self, other actor, events []Event) []Event {
	ability := roster[self.action.Unit].Abilities[self.action.Ability]
	caster := self.unit()
	target := other.unit()
	switch ability.Effect {
	case Damage, DamageOverTime:
		dmg, eff := ComputeDamage(ability, *caster, *target)
		dealt := dmg
		if dealt > target.HP {
			dealt = target.HP
		}
		target.HP -= dealt
		caster.DamageDealt += dealt
		events = append(events, Event{
			Kind:          EventAttack,
			Actor:         caster.RosterID,
			Target:        target.RosterID,
			Amount:        dealt,
			HP:            target.HP,
			Effectiveness: eff,
		})
		if target.HP == 0 {
			events = knockOut(target, events)
			break
		}
		if ability.Effect == DamageOverTime && ability.Duration > 0 {
			target.Burn = ability.Duration
			events = append(events, Event{
				Kind:     EventBurnApplied,
				Actor:    caster.RosterID,
				Target:   target.RosterID,
				HP:       target.HP,
				Duration: ability.Duration,
			})
		}
	case Heal:
		before := caster.HP
		caster.HP += ability.Heal
		if caster.HP > caster.MaxHP {
			caster.HP = caster.MaxHP
		}
		events = append(events, Event{
			Kind:   EventHeal,
			Actor:  caster.RosterID,
			Target: caster.RosterID,
			Amount: caster.HP - before,
			HP:     caster.HP,
		})
	case StatModifier:
		if ability.Value <= 0 || ability.Duration <= 0 {
			break
		}
		m := Modifier{Stat: ability.Stat, Magnitude: ability.Value, TurnsRemaining: ability.Duration, Debuff: ability.Debuff}
		receiver, kind := caster, EventBuff
		if ability.Debuff {
			receiver, kind = target, EventDebuff
		}
		if len(receiver.Modifiers) >= MaxModifiers {
			break
		}
		receiver.Modifiers = append(receiver.Modifiers, m)
		events = append(events, Event{
			Kind:     kind,
			Actor:    caster.RosterID,
			Target:   receiver.RosterID,
			Amount:   ability.Value,
			HP:       receiver.HP,
			Stat:     ability.Stat,
			Duration: ability.Duration,
		})
	}
	return events
}

func knockOut(u *BattleUnit, events []Event) []Event {
	u.KO = true
	u.Burn = 0
	return append(events, Event{Kind: EventKnockout, Actor: u.RosterID, Target: u.RosterID})
}

func tickBurns(t *Team, events []Event) []Event {
	for i := range t.Units {
		u := &t.Units[i]
		if u.Burn <= 0 || u.KO {
			continue
		}
		dmg := BurnDamage(*u)
		if dmg > u.HP {
			dmg = u.HP
		}
		u.HP -= dmg
		u.Burn--
		events = append(events, Event{
			Kind:   EventBurnTick,
			Actor:  u.RosterID,
			Target: u.RosterID,
			Amount: dmg,
			HP:     u.HP,
		})
		if u.HP == 0 {
			events = knockOut(u, events)
		}
	}
	return events
}

func tickModifiers(t *Team) {
	for i := range t.Units {
		u := &t.Units[i]
		if len(u.Modifiers) == 0 {
			continue
		}
		kept := u.Modifiers[:0]
		for _, m := range u.Modifiers {
			m.TurnsRemaining--
			if m.TurnsRemaining > 0 {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		u.Modifiers = kept
	}
}

// MVP returns the unit with the highest cumulative damage across the given
// teams, scanning them in order. Ties keep the first unit found. ok is false
// when the teams are empty.
func MVP(teams ...Team) (unit BattleUnit, ok bool) {
	for _, t := range teams {
		for _, u := range t.Units {
			if !ok || u.DamageDealt > unit.DamageDealt {
				unit, ok = u, true
			}
		}
	}
	return unit, ok
}
