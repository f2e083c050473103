package signal

import "fmt"

// LegacyAmounts maps untagged envelopes to categories by amount. Draft picks
// occupy [1, DraftPicks] as unit id + 1.
type LegacyAmounts struct {
	Join       uint64
	Accept     uint64
	Leave      uint64
	DraftPicks uint64
}

// DefaultLegacyAmounts are the amounts of the untagged protocol. Leave
// overlaps the draft pick range, so untagged leaves are never accepted.
var DefaultLegacyAmounts = LegacyAmounts{
	Join:       100,
	Accept:     101,
	Leave:      1,
	DraftPicks: 10,
}

// categorize infers the category of an untagged amount-only envelope. An
// amount claimed by more than one category is rejected.
func (l LegacyAmounts) categorize(amount uint64) (Category, error) {
	var matches []Category
	if amount == l.Join {
		matches = append(matches, CategoryJoin)
	}
	if amount == l.Accept {
		matches = append(matches, CategoryAccept)
	}
	if amount == l.Leave {
		matches = append(matches, CategoryLeave)
	}
	if amount >= 1 && amount <= l.DraftPicks {
		matches = append(matches, CategoryDraftPick)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("untagged amount %d matches no category", amount)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("untagged amount %d is ambiguous between %v, a tag is required", amount, matches)
}
