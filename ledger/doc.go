// Package ledger settles a match on an append-only hash chain.
//
// # Core Components
//
// Blockchain: an append-only log of settlement entries with hash chaining
// for tamper detection.
//
// Arena: the authoritative referee of one match. It stores each player's
// commitment, re-verifies reveals with its own commitment engine, resolves
// the round once both moves are known and records every step as a block.
// A stalled match can be claimed by the player that made more progress in
// the current round.
//
// Client: the view of an Arena for one player. It implements
// turn.Transport, submitting commits and reveals to the arena, and
// turn.LedgerReader.
//
// # Security Properties
//
// The chain provides:
//   - Immutability: once recorded, blocks cannot be modified
//   - Tamper detection: any modification breaks the hash chain
//
// A player can read the opponent's move only after both commitments of the
// round are recorded.
package ledger
