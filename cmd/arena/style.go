package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/luca-patrignani/mental-arena/domain/combat"
	"github.com/luca-patrignani/mental-arena/turn"
)

const hpBarWidth = 20

func hpBar(hp, max int) string {
	if max <= 0 {
		return ""
	}
	filled := hp * hpBarWidth / max
	if hp > 0 && filled == 0 {
		filled = 1
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", hpBarWidth-filled)
	switch {
	case hp*4 <= max:
		return pterm.LightRed(bar)
	case hp*2 <= max:
		return pterm.LightYellow(bar)
	}
	return pterm.LightGreen(bar)
}

func unitName(id uint8) string {
	u, err := combat.Lookup(id)
	if err != nil {
		return "#" + strconv.Itoa(int(id))
	}
	return u.Name
}

func printUnitInfo(u combat.BattleUnit) string {
	static, err := combat.Lookup(u.RosterID)
	if err != nil {
		return pterm.LightRed(err.Error())
	}
	status := pterm.LightGreen("Active")
	if u.KO {
		status = pterm.LightRed("KO")
	}
	var effects []string
	if u.Burn > 0 {
		effects = append(effects, pterm.LightRed(fmt.Sprintf("burn %d", u.Burn)))
	}
	for _, m := range u.Modifiers {
		sign := "+"
		if m.Debuff {
			sign = "-"
		}
		effects = append(effects, fmt.Sprintf("%s%d %s (%d)", sign, m.Magnitude, m.Stat, m.TurnsRemaining))
	}
	line := pterm.Sprintf("%s [%s] %s\n%s %d/%d  dmg %d",
		pterm.LightCyan(static.Name), static.Element, status, hpBar(u.HP, u.MaxHP), u.HP, u.MaxHP, u.DamageDealt)
	if len(effects) > 0 {
		line += "\n" + strings.Join(effects, ", ")
	}
	return line
}

func printTeamInfo(title string, t combat.Team, main bool) string {
	hpadding := 4
	if main {
		hpadding = 8
	}
	pbox := pterm.DefaultBox.WithHorizontalPadding(hpadding).WithTopPadding(1).WithBottomPadding(1)
	var units []string
	for _, u := range t.Units {
		units = append(units, printUnitInfo(u))
	}
	return pbox.WithTitle(title).WithTitleTopLeft().Sprint(strings.Join(units, "\n\n"))
}

func getEventsPanel(round uint32, events []combat.Event) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	var lines []string
	for _, ev := range events {
		lines = append(lines, ev.String())
	}
	if len(lines) == 0 {
		lines = append(lines, "Nothing happened")
	}
	title := pterm.LightYellow(fmt.Sprintf("|ROUND %d|", round))
	return pterm.Panel{Data: pbox.WithTitle(title).WithTitleTopCenter().Sprint(strings.Join(lines, "\n"))}
}

func resultText(r turn.Result) string {
	switch r {
	case turn.ResultWin:
		return pterm.LightGreen("You won!")
	case turn.ResultLoss:
		return pterm.LightRed("You lost.")
	case turn.ResultDraw:
		return pterm.LightYellow("Draw.")
	case turn.ResultForfeit:
		return pterm.LightRed("You left the match.")
	case turn.ResultOpponentLeft:
		return pterm.LightGreen("Your opponent left the match.")
	}
	return r.String()
}

func getOutcomePanel(o turn.Outcome) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	text := pterm.Sprintfln("%s after %d rounds", resultText(o.Result), o.Round)
	if o.MVP.MaxHP > 0 {
		owner := "opponent's"
		if o.MVPLocal {
			owner = "your"
		}
		text += pterm.Sprintfln("MVP: %s %s with %d damage", owner, pterm.LightCyan(unitName(o.MVP.RosterID)), o.MVP.DamageDealt)
	}
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightGreen("|GAME OVER|")).WithTitleTopCenter().Sprint(text)}
}

func printState(st turn.Status, opponent string, additionalPanel ...pterm.Panel) {
	me := pterm.Panel{Data: printTeamInfo("You", st.My, true)}
	them := pterm.Panel{Data: printTeamInfo(opponent, st.Opponent, false)}
	dashboard := []pterm.Panel{me}
	dashboard = append(dashboard, additionalPanel...)
	_ = pterm.DefaultPanel.WithPanels([][]pterm.Panel{
		{them},
		dashboard,
	}).Render()
}

// abilityOptions lists the abilities of the live units of t, in the order of
// the returned actions.
func abilityOptions(t combat.Team) ([]string, []combat.Action) {
	var options []string
	var actions []combat.Action
	for _, u := range t.Units {
		if u.KO {
			continue
		}
		static, err := combat.Lookup(u.RosterID)
		if err != nil {
			continue
		}
		for i, ab := range static.Abilities {
			options = append(options, fmt.Sprintf("%s: %s (%s)", static.Name, ab.Name, describeAbility(ab)))
			actions = append(actions, combat.Action{Unit: u.RosterID, Ability: uint8(i)})
		}
	}
	return options, actions
}

func describeAbility(ab combat.Ability) string {
	switch ab.Effect {
	case combat.Damage:
		return fmt.Sprintf("%s, power %d", ab.Element, ab.Power)
	case combat.DamageOverTime:
		return fmt.Sprintf("%s, power %d, burn %d turns", ab.Element, ab.Power, ab.Duration)
	case combat.Heal:
		return fmt.Sprintf("heal %d", ab.Heal)
	case combat.StatModifier:
		if ab.Debuff {
			return fmt.Sprintf("-%d %s on target for %d turns", ab.Value, ab.Stat, ab.Duration)
		}
		return fmt.Sprintf("+%d %s for %d turns", ab.Value, ab.Stat, ab.Duration)
	}
	return ""
}

func renderRoster(available []uint8) {
	data := pterm.TableData{{"Unit", "Element", "HP", "ATK", "DEF", "SPD", "Abilities"}}
	for _, id := range available {
		u, err := combat.Lookup(id)
		if err != nil {
			continue
		}
		var abilities []string
		for _, ab := range u.Abilities {
			abilities = append(abilities, ab.Name)
		}
		data = append(data, []string{
			u.Name, u.Element.String(),
			strconv.Itoa(u.HP), strconv.Itoa(u.Attack), strconv.Itoa(u.Defense), strconv.Itoa(u.Speed),
			strings.Join(abilities, ", "),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}
