// Package commitment implements the commit-reveal scheme used to exchange
// simultaneous moves over an untrusted channel.
//
// A player commits to a move by publishing a digest of (move, nonce), split
// into parts that fit the transport. Once both commitments are public each
// player publishes the move and the nonce parts, and the counterparty
// recomputes the digest.
//
// # Parts
//
// Every value travels as a Part: a 64 bit integer below the Goldilocks prime
// made of an 8 bit header and a 56 bit chunk. Headers 1..4 mark digest parts
// and 9..10 mark nonce parts, so a part is never zero, never collides with
// small protocol amounts, and carries its own position. Parts may therefore be
// received in any order.
//
// # Schemes
//
// The digest function is pluggable. SHA256 and Blake3 are byte oriented
// hashes; Pedersen computes m*G + r*H on the Ed25519 curve with kyber, the way
// an algebraic settlement layer would. Both players of a match must use the
// same scheme.
package commitment
