// Package network carries protocol notes between players.
//
// # Core Components
//
// Board: append-only note store. Every sender has a clock, the number of
// notes it has posted. A post must carry the sender's current clock; a stale
// clock is rejected as an initial state mismatch, so two sends of the same
// sender can never interleave.
//
// Server: HTTP front end of a Board, with a websocket feed that tells
// subscribers a note addressed to them arrived.
//
// Client: turn.Transport over a Server. It serializes its own sends, retries
// transient failures with backoff and resynchronizes its clock after a
// mismatch.
//
// Endpoint: turn.Transport bound directly to an in-process Board.
//
// # Endpoints
//
//	POST /notes   Sender, Recipient and Clock headers, raw payload body
//	GET  /notes   ?sender=&recipient= filter, JSON list of notes
//	GET  /clock   ?sender=, current clock of a sender
//	GET  /feed    ?recipient=, websocket of note ids
package network
