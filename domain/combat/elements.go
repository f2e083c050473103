package combat

// beats returns the element e has advantage over: Fire > Earth > Wind > Water > Fire.
func (e Element) beats() Element {
	switch e {
	case Fire:
		return Earth
	case Earth:
		return Wind
	case Wind:
		return Water
	case Water:
		return Fire
	}
	return Neutral
}

// Multiplier returns the damage multiplier (x100) of an attack element
// against a defender element.
func Multiplier(attack, defender Element) (int, Effectiveness) {
	if attack == Neutral || defender == Neutral {
		return 100, Normal
	}
	if attack.beats() == defender {
		return 150, SuperEffective
	}
	if defender.beats() == attack {
		return 67, Resisted
	}
	return 100, Normal
}
