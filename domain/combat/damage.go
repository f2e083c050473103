package combat

// modifierSum adds the magnitudes of active modifiers on stat, split by kind.
func modifierSum(u BattleUnit, stat Stat) (buffs, debuffs int) {
	for _, m := range u.Modifiers {
		if m.Stat != stat || m.TurnsRemaining <= 0 {
			continue
		}
		if m.Debuff {
			debuffs += m.Magnitude
		} else {
			buffs += m.Magnitude
		}
	}
	return
}

// EffectiveSpeed is base speed plus active non-debuff speed modifiers.
func EffectiveSpeed(u BattleUnit) int {
	buffs, _ := modifierSum(u, Speed)
	return roster[u.RosterID].Speed + buffs
}

func effectiveStat(base int, u BattleUnit, stat Stat) int {
	buffs, debuffs := modifierSum(u, stat)
	v := base + buffs - debuffs
	if v < 0 {
		return 0
	}
	return v
}

// EffectiveAttack is base attack adjusted by attack modifiers, never negative.
func EffectiveAttack(u BattleUnit) int {
	return effectiveStat(roster[u.RosterID].Attack, u, Attack)
}

// EffectiveDefense is base defense adjusted by defense modifiers, never negative.
func EffectiveDefense(u BattleUnit) int {
	return effectiveStat(roster[u.RosterID].Defense, u, Defense)
}

// ComputeDamage returns the damage an ability deals from attacker to defender.
// The result is at least 1.
func ComputeDamage(ability Ability, attacker, defender BattleUnit) (int, Effectiveness) {
	mult, eff := Multiplier(ability.Element, roster[defender.RosterID].Element)
	atk := EffectiveAttack(attacker)
	def := EffectiveDefense(defender)
	raw := ability.Power * (20 + atk) * mult / 2000
	if raw > def {
		return raw - def, eff
	}
	return 1, eff
}

// BurnDamage is the damage of one burn tick: a tenth of max HP, at least 1.
func BurnDamage(u BattleUnit) int {
	d := u.MaxHP / 10
	if d < 1 {
		return 1
	}
	return d
}
