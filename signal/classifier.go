package signal

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/domain/combat"
	"github.com/luca-patrignani/mental-arena/note"
)

type assemblyKey struct {
	sender   string
	category Category
	round    uint32
}

// assembly collects the parts of one commit or reveal spread over several notes.
type assembly struct {
	ids   []note.ID
	parts map[uint8]commitment.Part
	move  uint32
}

// Classifier turns observed notes into signals. Every note is returned at
// most once: its id is added to the handled set of its category, and handled
// sets only grow.
type Classifier struct {
	counterparty string
	match        string
	legacy       *LegacyAmounts
	maxMove      uint32
	rosterSize   uint64
	handled      map[Category]map[note.ID]struct{}
	deferred     map[Category]bool
	pending      map[assemblyKey]*assembly
	logger       *slog.Logger
}

type Option func(*Classifier)

// WithCounterparty restricts classification to notes sent by identity.
func WithCounterparty(identity string) Option {
	return func(c *Classifier) {
		c.counterparty = identity
	}
}

// WithMatch drops envelopes signed for any other match.
func WithMatch(match string) Option {
	return func(c *Classifier) {
		c.match = match
	}
}

// WithLegacy enables classification of untagged envelopes.
func WithLegacy(l LegacyAmounts) Option {
	return func(c *Classifier) {
		c.legacy = &l
	}
}

func WithMaxMove(n uint32) Option {
	return func(c *Classifier) {
		c.maxMove = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = l
	}
}

func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		maxMove:    combat.MaxMove,
		rosterSize: combat.RosterSize,
		handled:    make(map[Category]map[note.ID]struct{}),
		deferred:   make(map[Category]bool),
		pending:    make(map[assemblyKey]*assembly),
		logger:     slog.Default(),
	}
	for _, cat := range append(Categories, CategoryMalformed) {
		c.handled[cat] = make(map[note.ID]struct{})
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCounterparty fixes the counterparty once it becomes known, for example
// after a join from an unknown player.
func (c *Classifier) SetCounterparty(identity string) {
	c.counterparty = identity
}

// SetMatch fixes the match once the host has named it.
func (c *Classifier) SetMatch(match string) {
	c.match = match
}

// Match returns the match envelopes must be signed for, if any.
func (c *Classifier) Match() string {
	return c.match
}

// Counterparty returns the identity notes are restricted to, if any.
func (c *Classifier) Counterparty() string {
	return c.counterparty
}

func (c *Classifier) isHandled(cat Category, id note.ID) bool {
	_, ok := c.handled[cat][id]
	return ok
}

// MarkHandled adds ids to the handled set of cat.
func (c *Classifier) MarkHandled(cat Category, ids ...note.ID) {
	set, ok := c.handled[cat]
	if !ok {
		set = make(map[note.ID]struct{})
		c.handled[cat] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// Handled returns a sorted copy of the handled sets, for persistence.
func (c *Classifier) Handled() map[Category][]note.ID {
	out := make(map[Category][]note.ID, len(c.handled))
	for cat, set := range c.handled {
		if len(set) == 0 {
			continue
		}
		ids := make([]note.ID, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out[cat] = ids
	}
	return out
}

// Restore marks previously persisted ids as handled.
func (c *Classifier) Restore(handled map[Category][]note.ID) {
	for cat, ids := range handled {
		c.MarkHandled(cat, ids...)
	}
}

func wants(cats []Category, cat Category) bool {
	if len(cats) == 0 {
		return true
	}
	for _, c := range cats {
		if c == cat {
			return true
		}
	}
	return false
}

// Baseline marks every note in msgs that belongs to one of cats (all
// categories when cats is empty) as handled, so that leftovers of an earlier
// match are never reported.
func (c *Classifier) Baseline(msgs []note.Message, cats ...Category) {
	for _, m := range msgs {
		if !c.fromCounterparty(m) {
			continue
		}
		cat, _, err := c.decode(m)
		if err != nil {
			c.MarkHandled(CategoryMalformed, m.ID)
			continue
		}
		if wants(cats, cat) {
			c.MarkHandled(cat, m.ID)
		}
	}
}

// DeferBaseline is used when the transport cannot be observed yet: the first
// Classify call afterwards absorbs the notes of cats as a baseline instead of
// reporting them.
func (c *Classifier) DeferBaseline(cats ...Category) {
	if len(cats) == 0 {
		cats = Categories
	}
	for _, cat := range cats {
		c.deferred[cat] = true
	}
}

// BaselinePending reports whether a deferred baseline is still waiting for
// its first observation.
func (c *Classifier) BaselinePending() bool {
	return len(c.deferred) > 0
}

func (c *Classifier) fromCounterparty(m note.Message) bool {
	return c.counterparty == "" || m.Sender == c.counterparty
}

// AbsorbDeferred completes a deferred baseline with msgs for every category
// still waiting for it.
func (c *Classifier) AbsorbDeferred(msgs []note.Message) {
	if len(c.deferred) == 0 {
		return
	}
	cats := make([]Category, 0, len(c.deferred))
	for cat := range c.deferred {
		cats = append(cats, cat)
	}
	c.deferred = make(map[Category]bool)
	c.Baseline(msgs, cats...)
}

// Classify returns the signals carried by the notes not handled yet.
func (c *Classifier) Classify(msgs []note.Message) []Signal {
	return c.ClassifyCategories(msgs)
}

// ClassifyCategories is Classify restricted to cats. Notes of other
// categories are left untouched for a later call. Malformed notes are always
// reported.
func (c *Classifier) ClassifyCategories(msgs []note.Message, cats ...Category) []Signal {
	var out []Signal
	deferred := make(map[Category]bool)
	for cat := range c.deferred {
		if wants(cats, cat) {
			deferred[cat] = true
			delete(c.deferred, cat)
		}
	}

	for _, m := range msgs {
		if !c.fromCounterparty(m) || c.isHandled(CategoryMalformed, m.ID) {
			continue
		}
		cat, env, err := c.decode(m)
		if err != nil {
			out = append(out, c.malformed(m, err.Error()))
			continue
		}
		if !wants(cats, cat) || c.isHandled(cat, m.ID) {
			continue
		}
		if deferred[cat] {
			c.MarkHandled(cat, m.ID)
			continue
		}
		if s := c.accept(m, cat, env); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (c *Classifier) malformed(m note.Message, reason string) Signal {
	c.MarkHandled(CategoryMalformed, m.ID)
	c.logger.Warn("malformed signal", "id", m.ID, "sender", m.Sender, "reason", reason)
	return Malformed{ID: m.ID, Sender: m.Sender, Reason: reason}
}

// decode opens the envelope and determines its category.
func (c *Classifier) decode(m note.Message) (Category, Envelope, error) {
	env, err := Open(m)
	if err != nil {
		return "", Envelope{}, err
	}
	// A join is sent before the host names the match.
	if c.match != "" && env.Tag != CategoryJoin && env.Match != c.match {
		return "", Envelope{}, fmt.Errorf("envelope signed for match %q", env.Match)
	}
	if env.Tag != "" {
		if !env.Tag.valid() {
			return "", Envelope{}, fmt.Errorf("unknown tag %q", env.Tag)
		}
		return env.Tag, env, nil
	}
	if c.legacy == nil {
		return "", Envelope{}, fmt.Errorf("untagged envelope")
	}
	if len(env.Parts) > 0 {
		cat, err := categorizeParts(env.Parts)
		return cat, env, err
	}
	cat, err := c.legacy.categorize(env.Amount)
	return cat, env, err
}

func categorizeParts(parts []uint64) (Category, error) {
	var digest, nonce int
	for _, v := range parts {
		p := commitment.Part(v)
		switch {
		case p.IsDigest():
			digest++
		case p.IsNonce():
			nonce++
		default:
			return "", fmt.Errorf("value %d is not a commitment part", v)
		}
	}
	if digest > 0 && nonce > 0 {
		return "", fmt.Errorf("envelope mixes digest and nonce parts")
	}
	if digest > 0 {
		return CategoryCommit, nil
	}
	return CategoryReveal, nil
}

// accept validates the shape of an envelope and returns its signal, or nil
// when it only contributed parts to an incomplete assembly.
func (c *Classifier) accept(m note.Message, cat Category, env Envelope) Signal {
	switch cat {
	case CategoryJoin, CategoryAccept, CategoryLeave:
		if len(env.Parts) > 0 {
			return c.malformed(m, fmt.Sprintf("%s carries parts", cat))
		}
		c.MarkHandled(cat, m.ID)
		switch cat {
		case CategoryJoin:
			return Join{ID: m.ID, Sender: m.Sender}
		case CategoryAccept:
			return Accept{ID: m.ID, Sender: m.Sender, Match: env.Match}
		}
		return Leave{ID: m.ID, Sender: m.Sender, Round: env.Round}
	case CategoryDraftPick:
		if len(env.Parts) > 0 || env.Amount < 1 || env.Amount > c.rosterSize {
			return c.malformed(m, fmt.Sprintf("draft pick amount %d out of range", env.Amount))
		}
		c.MarkHandled(cat, m.ID)
		return DraftPick{ID: m.ID, Sender: m.Sender, Pick: env.Round, Unit: uint8(env.Amount - 1)}
	case CategoryCommit:
		return c.assemble(m, cat, env, commitment.Part.IsDigest, commitment.DigestParts)
	case CategoryReveal:
		return c.assemble(m, cat, env, commitment.Part.IsNonce, commitment.NonceParts)
	}
	return c.malformed(m, fmt.Sprintf("unexpected category %s", cat))
}

func (c *Classifier) assemble(m note.Message, cat Category, env Envelope, valid func(commitment.Part) bool, want int) Signal {
	if cat == CategoryCommit && env.Amount != 0 {
		return c.malformed(m, "commit carries an amount")
	}
	if cat == CategoryReveal && env.Amount > uint64(c.maxMove) {
		return c.malformed(m, fmt.Sprintf("revealed move %d out of range", env.Amount))
	}
	if cat == CategoryCommit && len(env.Parts) == 0 {
		return c.malformed(m, "commit without parts")
	}
	key := assemblyKey{sender: m.Sender, category: cat, round: env.Round}
	a, ok := c.pending[key]
	if !ok {
		a = &assembly{parts: make(map[uint8]commitment.Part)}
	}
	fresh := make(map[uint8]commitment.Part, len(env.Parts))
	for _, v := range env.Parts {
		p := commitment.Part(v)
		if !valid(p) {
			return c.malformed(m, fmt.Sprintf("value %d is not a %s part", v, cat))
		}
		if prev, ok := a.parts[p.Header()]; ok && prev != p {
			return c.malformed(m, fmt.Sprintf("conflicting %s part %d", cat, p.Header()))
		}
		if prev, ok := fresh[p.Header()]; ok && prev != p {
			return c.malformed(m, fmt.Sprintf("conflicting %s part %d", cat, p.Header()))
		}
		fresh[p.Header()] = p
	}
	if env.Amount != 0 {
		if a.move != 0 && a.move != uint32(env.Amount) {
			return c.malformed(m, fmt.Sprintf("conflicting revealed move %d", env.Amount))
		}
		a.move = uint32(env.Amount)
	}
	for h, p := range fresh {
		a.parts[h] = p
	}
	a.ids = append(a.ids, m.ID)
	c.pending[key] = a
	c.MarkHandled(cat, m.ID)

	if len(a.parts) < want || (cat == CategoryReveal && a.move == 0) {
		return nil
	}
	delete(c.pending, key)
	parts := make([]commitment.Part, 0, len(a.parts))
	for _, p := range a.parts {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })
	if cat == CategoryCommit {
		return Commit{IDs: a.ids, Sender: m.Sender, Round: env.Round, Digest: parts}
	}
	return Reveal{IDs: a.ids, Sender: m.Sender, Round: env.Round, Move: a.move, Nonce: parts}
}

// Pending returns the number of incomplete commit or reveal assemblies.
func (c *Classifier) Pending() int {
	return len(c.pending)
}
