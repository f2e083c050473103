// Package turn drives the simultaneous-move protocol of a match.
//
// # Core Components
//
// Machine: a single owned state struct advanced by discrete events
// (SubmitMove, CommitSent, OpponentCommit, RevealSent, OpponentReveal,
// AnimationDone). It never performs I/O: events that require a message to be
// published return an Outbound for the caller to send.
//
// Session: the single loop that owns a Machine, a Transport and a
// signal.Classifier. Commands from the presentation layer and polling ticks
// are processed one at a time, so sends are strictly sequential and the
// machine is never touched concurrently.
//
// # Round Phases
//
//	Choosing -> Committing -> (WaitingCommit) -> Revealing -> (WaitingReveal)
//	         -> Resolving -> Animating -> Choosing | GameOver
//
// WaitingCommit and WaitingReveal are skipped when the opponent's message was
// observed before the local send completed. A reveal that does not open the
// opponent's commitment moves the machine to Halted.
//
// # Verification Authority
//
// With AuthorityLocal the machine verifies opponent reveals itself. With
// AuthorityLedger it ignores commit and reveal notes and advances only on
// views read from a LedgerReader that verifies on its own.
//
// # Failure Handling
//
// A failed send leaves the phase unchanged and records a retryable error;
// the Session resends the same message on the next tick. Resolution is
// atomic and guarded so a round is resolved exactly once.
package turn
