package combat

import "fmt"

// FieldModulus is the Goldilocks prime 2^64 - 2^32 + 1. Every packed word is
// strictly below it.
const FieldModulus uint64 = 0xFFFFFFFF00000001

// WordsPerUnit is the number of field elements PackUnit produces.
const WordsPerUnit = 4

const (
	packedModifiers = 4
	modifierBits    = 16
	maxPackedValue  = 1<<6 - 1
	maxPackedTurns  = 1<<4 - 1
)

// PackUnit encodes u into four field elements:
//
//	w0 = hp<<32 | maxHP
//	w1 = ko<<32 | damageDealt
//	w2 = four 16 bit modifier slots: stat:2 | debuff:1 | value:6 | turns:4 | active:1
//	w3 = burn<<32 | rosterID
//
// Units carrying more than four modifiers, or values that do not fit their
// slot, cannot be packed.
func PackUnit(u BattleUnit) ([WordsPerUnit]uint64, error) {
	var w [WordsPerUnit]uint64
	if u.HP < 0 || u.MaxHP < 0 || u.DamageDealt < 0 || u.Burn < 0 {
		return w, fmt.Errorf("unit %d: negative counter", u.RosterID)
	}
	if len(u.Modifiers) > packedModifiers {
		return w, fmt.Errorf("unit %d: %d modifiers, at most %d can be packed", u.RosterID, len(u.Modifiers), packedModifiers)
	}
	w[0] = uint64(uint32(u.HP))<<32 | uint64(uint32(u.MaxHP))
	if u.KO {
		w[1] = 1 << 32
	}
	w[1] |= uint64(uint32(u.DamageDealt))
	for i, m := range u.Modifiers {
		if m.Magnitude < 0 || m.Magnitude > maxPackedValue || m.TurnsRemaining < 0 || m.TurnsRemaining > maxPackedTurns {
			return w, fmt.Errorf("unit %d: modifier %d does not fit", u.RosterID, i)
		}
		slot := uint64(m.Stat&0x3) |
			uint64(boolBit(m.Debuff))<<2 |
			uint64(m.Magnitude)<<3 |
			uint64(m.TurnsRemaining)<<9 |
			1<<13
		w[2] |= slot << (modifierBits * i)
	}
	w[3] = uint64(uint32(u.Burn))<<32 | uint64(u.RosterID)
	for i, v := range w {
		if v >= FieldModulus {
			return w, fmt.Errorf("unit %d: word %d exceeds field modulus", u.RosterID, i)
		}
	}
	return w, nil
}

// UnpackUnit is the inverse of PackUnit.
func UnpackUnit(w [WordsPerUnit]uint64) (BattleUnit, error) {
	u := BattleUnit{
		HP:          int(uint32(w[0] >> 32)),
		MaxHP:       int(uint32(w[0])),
		KO:          w[1]>>32 == 1,
		DamageDealt: int(uint32(w[1])),
		Burn:        int(uint32(w[3] >> 32)),
	}
	id := uint32(w[3])
	if id >= RosterSize {
		return BattleUnit{}, fmt.Errorf("unknown roster id %d", id)
	}
	u.RosterID = uint8(id)
	for i := 0; i < packedModifiers; i++ {
		slot := (w[2] >> (modifierBits * i)) & 0xFFFF
		if slot&(1<<13) == 0 {
			continue
		}
		u.Modifiers = append(u.Modifiers, Modifier{
			Stat:           Stat(slot & 0x3),
			Debuff:         slot>>2&1 == 1,
			Magnitude:      int(slot >> 3 & maxPackedValue),
			TurnsRemaining: int(slot >> 9 & maxPackedTurns),
		})
	}
	return u, nil
}

// PackTeam packs every unit of t in order.
func PackTeam(t Team) ([]uint64, error) {
	out := make([]uint64, 0, len(t.Units)*WordsPerUnit)
	for _, u := range t.Units {
		w, err := PackUnit(u)
		if err != nil {
			return nil, err
		}
		out = append(out, w[:]...)
	}
	return out, nil
}

// UnpackTeam is the inverse of PackTeam.
func UnpackTeam(words []uint64) (Team, error) {
	if len(words)%WordsPerUnit != 0 {
		return Team{}, fmt.Errorf("packed team has %d words, not a multiple of %d", len(words), WordsPerUnit)
	}
	t := Team{Units: make([]BattleUnit, 0, len(words)/WordsPerUnit)}
	for i := 0; i < len(words); i += WordsPerUnit {
		u, err := UnpackUnit([WordsPerUnit]uint64(words[i : i+WordsPerUnit]))
		if err != nil {
			return Team{}, err
		}
		t.Units = append(t.Units, u)
	}
	return t, nil
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
