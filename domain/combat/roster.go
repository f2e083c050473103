package combat

import "fmt"

const (
	RosterSize       = 10
	AbilitiesPerUnit = 2
	TeamSize         = 3
	MaxModifiers     = 8
)

var roster = [RosterSize]Unit{
	{ID: 0, Name: "Inferno", Element: Fire, HP: 80, Attack: 20, Defense: 5, Speed: 16, Abilities: [AbilitiesPerUnit]Ability{
		{Name: "Eruption", Effect: Damage, Element: Fire, Power: 35},
		{Name: "Ignite", Effect: DamageOverTime, Element: Fire, Power: 20, Duration: 2},
	}},
	{ID: 1, Name: "Boulder", Element: Earth, HP: 140, Attack: 14, Defense: 16, Speed: 5, Abilities: [AbilitiesPerUnit]Ability{
		{Name: "Rock Slam", Effect: Damage, Element: Earth, Power: 28},
		{Name: "Fortify", Effect: StatModifier, Stat: Defense, Value: 6, Duration: 2},
	}},
	{ID: 2, Name: "Ember", Element: Fire, HP: 90, Attack: 16, Defense: 8, Speed: 14, Abilities: [AbilitiesPerUnit]Ability{
		{Name: "Fireball", Effect: Damage, Element: Fire, Power: 25},
		{Name: "Flame Shield", Effect: StatModifier, Stat: Defense, Value: 5, Duration: 2},
	}},
	{ID: 3, Name: "Torrent", Element: Water, HP: 110, Attack: 12, Defense: 12, Speed: 10, Abilities: [AbilitiesPerUnit]Ability{
		{Name: "Tidal Wave", Effect: Damage, Element: Water, Power: 22},
		{Name: "Mend", Effect: Heal, Heal: 25},
	}},
	{ID: 4, Name: "Gale", Element: Wind, HP: 75, Attack: 15, Defense: 6, Speed: 18, Abilities: [AbilitiesPerUnit]Ability{
		{Name: "Gust", Effect: Damage, Element: Neutral, Power: 24},
		{Name: "Tailwind", Effect: StatModifier, Stat: Speed, Value: 5, Duration: 2},
	}},
	{ID: 5, Name: "Tide", Element: Water, HP: 100, Attack: 11, Defense: 14, Speed: 9, Abilities: [AbilitiesPerUnit]Ability{
		{Name: "Riptide", Effect: Damage, Element: Water, Power: 20},
		{Name: "Mist", Effect: StatModifier, Stat: Attack, Value: 4, Duration: 2, Debuff: true},
	}},
	{ID: 6, Name: "Quake", Element: Earth, HP: 130, Attack: 13, Defense: 15, Speed: 7, Abilities: [AbilitiesPerUnit]Ability{
		{Name: "Tremor", Effect: Damage, Element: Earth, Power: 26},
		{Name: "Stone Skin", Effect: StatModifier, Stat: Defense, Value: 8, Duration: 1},
	}},
	{ID: 7, Name: "Storm", Element: Wind, HP: 85, Attack: 17, Defense: 7, Speed: 15, Abilities: [AbilitiesPerUnit]Ability{
		{Name: "Lightning", Effect: Damage, Element: Wind, Power: 30},
		{Name: "Static", Effect: StatModifier, Stat: Speed, Value: 6, Duration: 2},
	}},
	{ID: 8, Name: "Cinder", Element: Fire, HP: 95, Attack: 18, Defense: 9, Speed: 12, Abilities: [AbilitiesPerUnit]Ability{
		{Name: "Scorch", Effect: DamageOverTime, Element: Fire, Power: 18, Duration: 3},
		{Name: "Kindle", Effect: StatModifier, Stat: Attack, Value: 5, Duration: 2},
	}},
	{ID: 9, Name: "Reef", Element: Water, HP: 120, Attack: 12, Defense: 13, Speed: 8, Abilities: [AbilitiesPerUnit]Ability{
		{Name: "Undertow", Effect: Damage, Element: Water, Power: 24},
		{Name: "Soak", Effect: StatModifier, Stat: Defense, Value: 5, Duration: 2, Debuff: true},
	}},
}

// Lookup returns the static roster entry for id.
func Lookup(id uint8) (Unit, error) {
	if int(id) >= RosterSize {
		return Unit{}, fmt.Errorf("unknown roster id %d", id)
	}
	return roster[id], nil
}

// Roster returns a copy of the full roster ordered by id.
func Roster() []Unit {
	out := make([]Unit, RosterSize)
	copy(out, roster[:])
	return out
}

// InitUnit builds a fresh unit at full HP with no modifiers.
func InitUnit(id uint8) (BattleUnit, error) {
	u, err := Lookup(id)
	if err != nil {
		return BattleUnit{}, err
	}
	return BattleUnit{
		RosterID: id,
		HP:       u.HP,
		MaxHP:    u.HP,
	}, nil
}
