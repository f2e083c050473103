package combat

import (
	"reflect"
	"testing"
)

func TestPackUnitRoundTrip(t *testing.T) {
	u := BattleUnit{
		RosterID:    8,
		HP:          41,
		MaxHP:       95,
		KO:          false,
		DamageDealt: 77,
		Burn:        2,
		Modifiers: []Modifier{
			{Stat: Attack, Magnitude: 5, TurnsRemaining: 2},
			{Stat: Defense, Magnitude: 5, TurnsRemaining: 1, Debuff: true},
		},
	}
	w, err := PackUnit(u)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range w {
		if v >= FieldModulus {
			t.Fatalf("word %d = %d not below the modulus", i, v)
		}
	}
	back, err := UnpackUnit(w)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(u, back) {
		t.Fatalf("expected %+v, got %+v", u, back)
	}
}

func TestPackTeamRoundTrip(t *testing.T) {
	team, err := NewTeam(0, 5, 9)
	if err != nil {
		t.Fatal(err)
	}
	team.Units[1].KO = true
	team.Units[1].HP = 0
	words, err := PackTeam(team)
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 3*WordsPerUnit {
		t.Fatalf("expected %d words, got %d", 3*WordsPerUnit, len(words))
	}
	back, err := UnpackTeam(words)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(team, back) {
		t.Fatalf("expected %+v, got %+v", team, back)
	}
}

func TestPackRejectsOverflow(t *testing.T) {
	u, _ := InitUnit(1)
	for range 5 {
		u.Modifiers = append(u.Modifiers, Modifier{Stat: Defense, Magnitude: 1, TurnsRemaining: 1})
	}
	if _, err := PackUnit(u); err == nil {
		t.Fatal("expected error for five modifiers")
	}
	u.Modifiers = []Modifier{{Stat: Defense, Magnitude: 64, TurnsRemaining: 1}}
	if _, err := PackUnit(u); err == nil {
		t.Fatal("expected error for magnitude above 63")
	}
	if _, err := UnpackTeam(make([]uint64, 5)); err == nil {
		t.Fatal("expected error for ragged word count")
	}
}
