package signal

import (
	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/note"
)

// Signal is the closed set of classified inbound messages: Join, Accept,
// Leave, DraftPick, Commit, Reveal and Malformed.
type Signal interface {
	Category() Category
	From() string
	signal()
}

type Join struct {
	ID     note.ID
	Sender string
}

// Accept carries the match the host opened. Legacy hosts leave it empty.
type Accept struct {
	ID     note.ID
	Sender string
	Match  string
}

type Leave struct {
	ID     note.ID
	Sender string
	Round  uint32
}

type DraftPick struct {
	ID     note.ID
	Sender string
	Pick   uint32
	Unit   uint8
}

// Commit is a complete set of digest parts, possibly assembled from several notes.
type Commit struct {
	IDs    []note.ID
	Sender string
	Round  uint32
	Digest []commitment.Part
}

// Reveal is a move with its complete set of nonce parts.
type Reveal struct {
	IDs    []note.ID
	Sender string
	Round  uint32
	Move   uint32
	Nonce  []commitment.Part
}

// Malformed is a note that could not be classified. It is reported once and
// never fixed up.
type Malformed struct {
	ID     note.ID
	Sender string
	Reason string
}

func (Join) Category() Category      { return CategoryJoin }
func (Accept) Category() Category    { return CategoryAccept }
func (Leave) Category() Category     { return CategoryLeave }
func (DraftPick) Category() Category { return CategoryDraftPick }
func (Commit) Category() Category    { return CategoryCommit }
func (Reveal) Category() Category    { return CategoryReveal }
func (Malformed) Category() Category { return CategoryMalformed }

func (s Join) From() string      { return s.Sender }
func (s Accept) From() string    { return s.Sender }
func (s Leave) From() string     { return s.Sender }
func (s DraftPick) From() string { return s.Sender }
func (s Commit) From() string    { return s.Sender }
func (s Reveal) From() string    { return s.Sender }
func (s Malformed) From() string { return s.Sender }

func (Join) signal()      {}
func (Accept) signal()    {}
func (Leave) signal()     {}
func (DraftPick) signal() {}
func (Commit) signal()    {}
func (Reveal) signal()    {}
func (Malformed) signal() {}
