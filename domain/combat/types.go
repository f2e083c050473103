package combat

import "fmt"

// Element tags used by the advantage cycle.
type Element uint8

const (
	Neutral Element = iota // never gets a multiplier
	Fire
	Earth
	Wind
	Water
)

func (e Element) String() string {
	switch e {
	case Fire:
		return "Fire"
	case Earth:
		return "Earth"
	case Wind:
		return "Wind"
	case Water:
		return "Water"
	}
	return "Neutral"
}

// Stat is the attribute a modifier acts on.
type Stat uint8

const (
	Defense Stat = iota
	Speed
	Attack
)

func (s Stat) String() string {
	switch s {
	case Defense:
		return "DEF"
	case Speed:
		return "SPD"
	case Attack:
		return "ATK"
	}
	return fmt.Sprintf("Stat(%d)", uint8(s))
}

// EffectKind is what an ability does when used.
type EffectKind uint8

const (
	Damage EffectKind = iota
	DamageOverTime
	Heal
	StatModifier
)

// Effectiveness annotates an attack with the elemental outcome.
type Effectiveness uint8

const (
	Normal Effectiveness = iota
	SuperEffective
	Resisted
)

func (e Effectiveness) String() string {
	switch e {
	case SuperEffective:
		return "super effective"
	case Resisted:
		return "resisted"
	}
	return "neutral"
}

// Ability is a static ability entry. Only the fields relevant to Effect are set.
type Ability struct {
	Name     string
	Effect   EffectKind
	Element  Element
	Power    int
	Heal     int
	Stat     Stat
	Value    int
	Duration int // modifier turns or burn turns
	Debuff   bool
}

// Unit is a static roster entry.
type Unit struct {
	ID        uint8
	Name      string
	Element   Element
	HP        int
	Attack    int
	Defense   int
	Speed     int
	Abilities [AbilitiesPerUnit]Ability
}

// Modifier is a timed buff or debuff on one stat.
type Modifier struct {
	Stat           Stat `json:"stat"`
	Magnitude      int  `json:"magnitude"`
	TurnsRemaining int  `json:"turns_remaining"`
	Debuff         bool `json:"debuff"`
}

// BattleUnit is the live state of a unit. It is only mutated by ResolveTurn.
type BattleUnit struct {
	RosterID    uint8      `json:"roster_id"`
	HP          int        `json:"hp"`
	MaxHP       int        `json:"max_hp"`
	Modifiers   []Modifier `json:"modifiers,omitempty"`
	Burn        int        `json:"burn,omitempty"` // remaining burn ticks
	KO          bool       `json:"ko"`
	DamageDealt int        `json:"damage_dealt"`
}

// Team is the set of units fielded by one player, in draft order.
type Team struct {
	Units []BattleUnit `json:"units"`
}

// Action selects one of the acting unit's abilities.
type Action struct {
	Unit    uint8 `json:"unit"`
	Ability uint8 `json:"ability"`
}

// EventKind discriminates Event records.
type EventKind uint8

const (
	EventAttack EventKind = iota + 1
	EventHeal
	EventBuff
	EventDebuff
	EventBurnApplied
	EventBurnTick
	EventKnockout
)

func (k EventKind) String() string {
	switch k {
	case EventAttack:
		return "attack"
	case EventHeal:
		return "heal"
	case EventBuff:
		return "buff"
	case EventDebuff:
		return "debuff"
	case EventBurnApplied:
		return "burn_applied"
	case EventBurnTick:
		return "burn_tick"
	case EventKnockout:
		return "ko"
	}
	return "unknown"
}

// Event is one step of a resolved round.
//
// Actor is the unit that caused the event and Target the unit it affected;
// for heals, buffs, burn ticks and knockouts they refer to the same unit.
// HP is the target's HP right after the event.
type Event struct {
	Kind          EventKind     `json:"kind"`
	Actor         uint8         `json:"actor"`
	Target        uint8         `json:"target"`
	Amount        int           `json:"amount,omitempty"`
	HP            int           `json:"hp"`
	Effectiveness Effectiveness `json:"effectiveness,omitempty"`
	Stat          Stat          `json:"stat,omitempty"`
	Duration      int           `json:"duration,omitempty"`
}

func (e Event) String() string {
	switch e.Kind {
	case EventAttack:
		return fmt.Sprintf("%s hits %s for %d (%s)", unitName(e.Actor), unitName(e.Target), e.Amount, e.Effectiveness)
	case EventHeal:
		return fmt.Sprintf("%s heals %d, now %d HP", unitName(e.Actor), e.Amount, e.HP)
	case EventBuff:
		return fmt.Sprintf("%s gains +%d %s for %d turns", unitName(e.Actor), e.Amount, e.Stat, e.Duration)
	case EventDebuff:
		return fmt.Sprintf("%s inflicts -%d %s on %s for %d turns", unitName(e.Actor), e.Amount, e.Stat, unitName(e.Target), e.Duration)
	case EventBurnApplied:
		return fmt.Sprintf("%s sets %s on fire for %d turns", unitName(e.Actor), unitName(e.Target), e.Duration)
	case EventBurnTick:
		return fmt.Sprintf("%s burns for %d", unitName(e.Target), e.Amount)
	case EventKnockout:
		return fmt.Sprintf("%s is knocked out", unitName(e.Target))
	}
	return "unknown event"
}

func unitName(id uint8) string {
	u, err := Lookup(id)
	if err != nil {
		return fmt.Sprintf("#%d", id)
	}
	return u.Name
}
