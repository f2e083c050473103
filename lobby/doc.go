// Package lobby pairs two players on a note board and runs the draft.
//
// The host announces nothing: it waits for the first join note addressed to
// it and answers with an accept. The guest sends a join and waits for the
// accept. Both sides baseline every category before talking, so that notes
// of an earlier match between the same players are never taken as new.
//
// The draft is a six pick snake (host, guest, guest, host, host, guest). A
// unit can be drafted once, so the two resulting teams never overlap. The
// lobby classifier is handed to the battle session, which keeps the
// baseline of the lobby.
package lobby
