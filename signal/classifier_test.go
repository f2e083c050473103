package signal

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/note"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func seal(t *testing.T, s *Signer, id string, e Envelope) note.Message {
	t.Helper()
	payload, err := s.Seal("", e)
	if err != nil {
		t.Fatal(err)
	}
	return note.Message{ID: note.ID(id), Sender: s.Identity(), Payload: payload}
}

func count[T Signal](signals []Signal) int {
	n := 0
	for _, s := range signals {
		if _, ok := s.(T); ok {
			n++
		}
	}
	return n
}

func TestBaselineFiltersStaleJoins(t *testing.T) {
	opp := newSigner(t)
	var msgs []note.Message
	for i := range 3 {
		msgs = append(msgs, seal(t, opp, fmt.Sprintf("old-%d", i), Join()))
	}
	c := NewClassifier(WithCounterparty(opp.Identity()), WithLogger(quiet))
	c.Baseline(msgs, CategoryJoin)

	for range 3 {
		if got := count[Join](c.Classify(msgs)); got != 0 {
			t.Fatalf("expected no new joins after baseline, got %d", got)
		}
	}
	msgs = append(msgs, seal(t, opp, "new", Join()))
	signals := c.Classify(msgs)
	if len(signals) != 1 {
		t.Fatalf("expected exactly the new join, got %v", signals)
	}
	if j, ok := signals[0].(Join); !ok || j.ID != "new" {
		t.Fatalf("expected join new, got %v", signals[0])
	}
	if got := c.Classify(msgs); len(got) != 0 {
		t.Fatalf("expected nothing on a repeated pass, got %v", got)
	}
}

func TestBaselineOnlyCoversRequestedCategories(t *testing.T) {
	opp := newSigner(t)
	msgs := []note.Message{
		seal(t, opp, "j", Join()),
		seal(t, opp, "l", Leave(0)),
	}
	c := NewClassifier(WithLogger(quiet))
	c.Baseline(msgs, CategoryJoin)
	signals := c.Classify(msgs)
	if len(signals) != 1 || signals[0].Category() != CategoryLeave {
		t.Fatalf("expected only the leave, got %v", signals)
	}
}

func TestDeferredBaseline(t *testing.T) {
	opp := newSigner(t)
	c := NewClassifier(WithCounterparty(opp.Identity()), WithLogger(quiet))
	c.DeferBaseline(CategoryJoin, CategoryAccept)
	if !c.BaselinePending() {
		t.Fatal("expected pending baseline")
	}

	old := []note.Message{seal(t, opp, "a", Join()), seal(t, opp, "b", Accept(""))}
	if got := c.Classify(old); len(got) != 0 {
		t.Fatalf("first observation must be absorbed, got %v", got)
	}
	if c.BaselinePending() {
		t.Fatal("baseline should be captured")
	}
	msgs := append(old, seal(t, opp, "c", Join()))
	signals := c.Classify(msgs)
	if len(signals) != 1 || signals[0].(Join).ID != "c" {
		t.Fatalf("expected only join c, got %v", signals)
	}
}

func TestCounterpartyFilter(t *testing.T) {
	opp := newSigner(t)
	stranger := newSigner(t)
	c := NewClassifier(WithCounterparty(opp.Identity()), WithLogger(quiet))
	signals := c.Classify([]note.Message{
		seal(t, stranger, "x", Join()),
		seal(t, opp, "y", Join()),
	})
	if len(signals) != 1 || signals[0].From() != opp.Identity() {
		t.Fatalf("expected only the counterparty join, got %v", signals)
	}
	c.SetCounterparty(stranger.Identity())
	if signals := c.Classify([]note.Message{seal(t, stranger, "x", Join())}); len(signals) != 1 {
		t.Fatalf("expected stranger join once counterparty changed, got %v", signals)
	}
}

func TestCommitAssembledFromChunks(t *testing.T) {
	opp := newSigner(t)
	e := commitment.NewEngine(commitment.SHA256{})
	com, err := e.Commit(11)
	if err != nil {
		t.Fatal(err)
	}
	c := NewClassifier(WithLogger(quiet))
	first := seal(t, opp, "c2", Commit(4, com.Digest[2:]))
	second := seal(t, opp, "c1", Commit(4, com.Digest[:2]))

	if got := c.Classify([]note.Message{first}); len(got) != 0 {
		t.Fatalf("half a commitment must not be reported, got %v", got)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected one pending assembly, got %d", c.Pending())
	}
	signals := c.Classify([]note.Message{first, second})
	if len(signals) != 1 {
		t.Fatalf("expected one commit, got %v", signals)
	}
	got := signals[0].(Commit)
	if got.Round != 4 || len(got.IDs) != 2 || len(got.Digest) != commitment.DigestParts {
		t.Fatalf("unexpected commit %+v", got)
	}

	r := com.Reveal()
	revealSignals := c.Classify([]note.Message{
		seal(t, opp, "r2", Envelope{Tag: CategoryReveal, Round: 4, Parts: []uint64{uint64(r.Nonce[1])}}),
		seal(t, opp, "r1", Reveal(4, commitment.Reveal{Move: r.Move, Nonce: r.Nonce[:1]})),
	})
	if len(revealSignals) != 1 {
		t.Fatalf("expected one reveal, got %v", revealSignals)
	}
	rev := revealSignals[0].(Reveal)
	if !e.Verify(rev.Move, rev.Nonce, got.Digest) {
		t.Fatal("assembled reveal does not verify against assembled commit")
	}
}

func TestConflictingPartsAreMalformed(t *testing.T) {
	opp := newSigner(t)
	com, err := commitment.NewEngine(commitment.SHA256{}).Commit(2)
	if err != nil {
		t.Fatal(err)
	}
	forged := append([]commitment.Part(nil), com.Digest[:1]...)
	forged[0] ^= 1
	c := NewClassifier(WithLogger(quiet))
	signals := c.Classify([]note.Message{
		seal(t, opp, "a", Commit(1, com.Digest[:2])),
		seal(t, opp, "b", Commit(1, forged)),
	})
	if len(signals) != 1 {
		t.Fatalf("expected one malformed signal, got %v", signals)
	}
	if m, ok := signals[0].(Malformed); !ok || m.ID != "b" {
		t.Fatalf("expected b to be malformed, got %v", signals[0])
	}
}

func TestShapeValidation(t *testing.T) {
	opp := newSigner(t)
	com, err := commitment.NewEngine(commitment.SHA256{}).Commit(2)
	if err != nil {
		t.Fatal(err)
	}
	nonce := com.Reveal().Nonce
	tests := []struct {
		name string
		env  Envelope
	}{
		{"unknown tag", Envelope{Tag: "vote"}},
		{"join with parts", Envelope{Tag: CategoryJoin, Parts: []uint64{uint64(com.Digest[0])}}},
		{"draft pick zero", Envelope{Tag: CategoryDraftPick, Amount: 0}},
		{"draft pick too high", Envelope{Tag: CategoryDraftPick, Amount: 11}},
		{"commit with nonce parts", Commit(1, nonce)},
		{"commit without parts", Envelope{Tag: CategoryCommit}},
		{"reveal with digest parts", Envelope{Tag: CategoryReveal, Amount: 2, Parts: []uint64{uint64(com.Digest[0])}}},
		{"reveal move too high", Envelope{Tag: CategoryReveal, Amount: 21, Parts: []uint64{uint64(nonce[0])}}},
		{"untagged without legacy", Envelope{Amount: 100}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(WithLogger(quiet))
			msg := seal(t, opp, fmt.Sprint(i), tt.env)
			signals := c.Classify([]note.Message{msg})
			if len(signals) != 1 || signals[0].Category() != CategoryMalformed {
				t.Fatalf("expected malformed, got %v", signals)
			}
			if again := c.Classify([]note.Message{msg}); len(again) != 0 {
				t.Fatalf("malformed note reported twice: %v", again)
			}
		})
	}
}

func TestForgedSenderIsMalformed(t *testing.T) {
	opp := newSigner(t)
	mallory := newSigner(t)
	msg := seal(t, mallory, "x", Join())
	msg.Sender = opp.Identity()
	signals := NewClassifier(WithLogger(quiet)).Classify([]note.Message{msg})
	if len(signals) != 1 || signals[0].Category() != CategoryMalformed {
		t.Fatalf("expected malformed, got %v", signals)
	}
}

func TestRedirectedNoteIsMalformed(t *testing.T) {
	opp := newSigner(t)
	payload, err := opp.Seal("bob", Leave(2))
	if err != nil {
		t.Fatal(err)
	}
	bob := note.Message{ID: "to-bob", Sender: opp.Identity(), Recipient: "bob", Payload: payload}
	if _, err := Open(bob); err != nil {
		t.Fatalf("expected the note to open for its recipient, got %v", err)
	}
	carol := note.Message{ID: "to-carol", Sender: opp.Identity(), Recipient: "carol", Payload: payload}
	if _, err := Open(carol); err == nil {
		t.Fatal("expected a note posted again to another recipient to be rejected")
	}
	signals := NewClassifier(WithLogger(quiet)).Classify([]note.Message{carol})
	if len(signals) != 1 || signals[0].Category() != CategoryMalformed {
		t.Fatalf("expected malformed, got %v", signals)
	}
}

func TestOtherMatchIsMalformed(t *testing.T) {
	opp := newSigner(t)
	old := Leave(1)
	old.Match = "match-1"
	current := Leave(1)
	current.Match = "match-2"
	msgs := []note.Message{seal(t, opp, "old", old), seal(t, opp, "current", current), seal(t, opp, "join", Join())}

	c := NewClassifier(WithMatch("match-2"), WithLogger(quiet))
	signals := c.Classify(msgs)
	if len(signals) != 3 {
		t.Fatalf("expected 3 signals, got %v", signals)
	}
	if _, ok := signals[2].(Join); !ok {
		t.Fatalf("expected the join to pass without a match, got %v", signals[2])
	}
	if m, ok := signals[0].(Malformed); !ok || m.ID != "old" {
		t.Fatalf("expected the note of the other match to be malformed, got %v", signals[0])
	}
	if l, ok := signals[1].(Leave); !ok || l.ID != "current" {
		t.Fatalf("expected the leave of the current match, got %v", signals[1])
	}
}

func TestAcceptNamesMatch(t *testing.T) {
	host := newSigner(t)
	signals := NewClassifier(WithLogger(quiet)).Classify([]note.Message{seal(t, host, "a", Accept("match-7"))})
	if len(signals) != 1 {
		t.Fatalf("expected one signal, got %v", signals)
	}
	if a, ok := signals[0].(Accept); !ok || a.Match != "match-7" {
		t.Fatalf("expected an accept for match-7, got %v", signals[0])
	}
}

func TestLegacyAmounts(t *testing.T) {
	opp := newSigner(t)
	com, err := commitment.NewEngine(commitment.SHA256{}).Commit(2)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		env  Envelope
		want Category
	}{
		{"join", Envelope{Amount: 100}, CategoryJoin},
		{"accept", Envelope{Amount: 101}, CategoryAccept},
		{"draft pick", Envelope{Amount: 5}, CategoryDraftPick},
		{"leave collides with draft pick", Envelope{Amount: 1}, CategoryMalformed},
		{"tagged leave", Envelope{Tag: CategoryLeave, Amount: 1}, CategoryLeave},
		{"tagged draft pick", Envelope{Tag: CategoryDraftPick, Amount: 1}, CategoryDraftPick},
		{"unknown amount", Envelope{Amount: 55}, CategoryMalformed},
		{"untagged commit parts", Envelope{Parts: []uint64{uint64(com.Digest[0])}}, ""},
		{"mixed parts", Envelope{Parts: []uint64{uint64(com.Digest[0]), uint64(com.Reveal().Nonce[0])}}, CategoryMalformed},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(WithLegacy(DefaultLegacyAmounts), WithLogger(quiet))
			signals := c.Classify([]note.Message{seal(t, opp, fmt.Sprint(i), tt.env)})
			if tt.want == "" {
				if len(signals) != 0 || c.Pending() != 1 {
					t.Fatalf("expected a pending assembly, got %v", signals)
				}
				return
			}
			if len(signals) != 1 || signals[0].Category() != tt.want {
				t.Fatalf("expected %s, got %v", tt.want, signals)
			}
		})
	}
}

func TestDraftPickDecoding(t *testing.T) {
	opp := newSigner(t)
	signals := NewClassifier(WithLogger(quiet)).Classify([]note.Message{seal(t, opp, "p", DraftPick(3, 0))})
	if len(signals) != 1 {
		t.Fatalf("expected one pick, got %v", signals)
	}
	p := signals[0].(DraftPick)
	if p.Pick != 3 || p.Unit != 0 {
		t.Fatalf("unexpected pick %+v", p)
	}
}

func TestHandledRestore(t *testing.T) {
	opp := newSigner(t)
	msgs := []note.Message{seal(t, opp, "a", Join()), seal(t, opp, "b", Accept(""))}
	c := NewClassifier(WithLogger(quiet))
	if got := c.Classify(msgs); len(got) != 2 {
		t.Fatalf("expected 2 signals, got %v", got)
	}
	restored := NewClassifier(WithLogger(quiet))
	restored.Restore(c.Handled())
	if got := restored.Classify(msgs); len(got) != 0 {
		t.Fatalf("restored classifier reported handled notes: %v", got)
	}
}

func TestClassifyCategoriesLeavesOthersUntouched(t *testing.T) {
	opp := newSigner(t)
	e := commitment.NewEngine(commitment.SHA256{})
	c1, err := e.Commit(3)
	if err != nil {
		t.Fatal(err)
	}
	msgs := []note.Message{
		seal(t, opp, "pick", DraftPick(5, 2)),
		seal(t, opp, "commit", Commit(1, c1.Digest)),
	}
	c := NewClassifier(WithCounterparty(opp.Identity()), WithLogger(quiet))

	signals := c.ClassifyCategories(msgs, CategoryDraftPick)
	if len(signals) != 1 || signals[0].Category() != CategoryDraftPick {
		t.Fatalf("expected only the draft pick, got %v", signals)
	}
	signals = c.Classify(msgs)
	if len(signals) != 1 || signals[0].Category() != CategoryCommit {
		t.Fatalf("expected the commit on the next pass, got %v", signals)
	}
}

func TestAbsorbDeferred(t *testing.T) {
	opp := newSigner(t)
	c := NewClassifier(WithCounterparty(opp.Identity()), WithLogger(quiet))
	c.DeferBaseline()

	old := []note.Message{seal(t, opp, "old-join", Join()), seal(t, opp, "old-leave", Leave(3))}
	c.AbsorbDeferred(old)
	if c.BaselinePending() {
		t.Fatal("expected the baseline to be captured")
	}
	if got := c.ClassifyCategories(old, CategoryJoin); len(got) != 0 {
		t.Fatalf("expected nothing new, got %v", got)
	}
	if got := c.Classify(old); len(got) != 0 {
		t.Fatalf("expected the leave to be part of the baseline, got %v", got)
	}
}
