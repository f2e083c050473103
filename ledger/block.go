package ledger

// Kind is the type of a settlement entry.
type Kind string

const (
	KindGenesis Kind = "genesis"
	KindCommit  Kind = "commit"
	KindReveal  Kind = "reveal"
	KindResolve Kind = "resolve"
	KindTimeout Kind = "timeout"
)

// Block is one entry of the chain.
type Block struct {
	Index     int    `json:"index"`
	Timestamp int64  `json:"timestamp"`
	PrevHash  string `json:"prev_hash"`
	Hash      string `json:"hash"`
	Entry     Entry  `json:"entry"`
}

// Entry is the settlement data of a block. State holds both teams packed
// into field elements after a resolution, seat order.
type Entry struct {
	Kind   Kind       `json:"kind"`
	Round  uint32     `json:"round"`
	Player string     `json:"player,omitempty"`
	Parts  []uint64   `json:"parts,omitempty"`
	Move   uint32     `json:"move,omitempty"`
	Events []string   `json:"events,omitempty"`
	State  [][]uint64 `json:"state,omitempty"`
	Winner string     `json:"winner,omitempty"`
}
