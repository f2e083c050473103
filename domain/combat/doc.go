// Package combat implements the deterministic battle rules of the arena:
// static roster data, elemental advantage, damage, and the resolution of one
// simultaneous round between two teams.
//
// # Core Types
//
// Unit: static roster entry (stats, element, two abilities).
//
// BattleUnit: the live state of a unit during a match (HP, modifiers, burn,
// knockout flag, damage dealt).
//
// Team: the ordered units fielded by one player.
//
// Action and Move: a (unit, ability) choice and its integer encoding.
//
// Event: a tagged record of what happened during resolution.
//
// # Resolution
//
// ResolveTurn orders the two acting units by effective speed (lower roster id
// on ties), executes the first action, skips the second one if its unit was
// knocked out, ticks burns and then ticks modifiers once. Inputs are never
// mutated and the output depends only on the inputs, so both players compute
// the same round independently.
//
// # Packing
//
// PackUnit and PackTeam encode live state into field elements below the
// Goldilocks prime so the ledger can record a compact state digest.
package combat
