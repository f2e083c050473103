package combat

import (
	"errors"
	"testing"

	"github.com/luca-patrignani/mental-arena/errs"
)

func TestMoveBijection(t *testing.T) {
	seen := make(map[Move]Action)
	for u := uint8(0); u < RosterSize; u++ {
		for a := uint8(0); a < AbilitiesPerUnit; a++ {
			action := Action{Unit: u, Ability: a}
			m, err := Encode(action)
			if err != nil {
				t.Fatalf("Encode(%v): %v", action, err)
			}
			if !m.Valid() {
				t.Fatalf("Encode(%v) = %d outside range", action, m)
			}
			if prev, ok := seen[m]; ok {
				t.Fatalf("%v and %v both encode to %d", prev, action, m)
			}
			seen[m] = action
			back, err := Decode(m)
			if err != nil {
				t.Fatalf("Decode(%d): %v", m, err)
			}
			if back != action {
				t.Fatalf("expected %v, got %v", action, back)
			}
		}
	}
	if len(seen) != MaxMove {
		t.Fatalf("expected %d moves, got %d", MaxMove, len(seen))
	}
}

func TestMoveRejectsOutOfRange(t *testing.T) {
	for _, m := range []Move{0, MaxMove + 1, 1 << 20} {
		if _, err := Decode(m); !errors.Is(err, errs.ErrInvalidMove) {
			t.Errorf("Decode(%d): expected ErrInvalidMove, got %v", m, err)
		}
	}
	for _, a := range []Action{{Unit: RosterSize}, {Unit: 0, Ability: AbilitiesPerUnit}, {Unit: 255, Ability: 255}} {
		if _, err := Encode(a); !errors.Is(err, errs.ErrInvalidMove) {
			t.Errorf("Encode(%v): expected ErrInvalidMove, got %v", a, err)
		}
	}
}

func TestEncodeKnownValues(t *testing.T) {
	tests := []struct {
		action Action
		move   Move
	}{
		{Action{Unit: 0, Ability: 0}, 1},
		{Action{Unit: 0, Ability: 1}, 2},
		{Action{Unit: 4, Ability: 0}, 9},
		{Action{Unit: 9, Ability: 1}, 20},
	}
	for _, tt := range tests {
		m, err := Encode(tt.action)
		if err != nil || m != tt.move {
			t.Errorf("Encode(%v): expected %d, got %d (%v)", tt.action, tt.move, m, err)
		}
	}
}
