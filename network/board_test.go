package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/luca-patrignani/mental-arena/errs"
	"github.com/luca-patrignani/mental-arena/note"
)

func TestBoardClock(t *testing.T) {
	b := NewBoard()
	if _, err := b.Post("alice", "bob", 0, []byte("first")); err != nil {
		t.Fatal(err)
	}
	_, err := b.Post("alice", "bob", 0, []byte("again"))
	if !errors.Is(err, errs.ErrStateMismatch) {
		t.Fatalf("expected a state mismatch, got %v", err)
	}
	if !errs.Retryable(err) {
		t.Fatalf("expected a mismatch to be retryable")
	}
	if _, err := b.Post("alice", "bob", 1, []byte("second")); err != nil {
		t.Fatal(err)
	}
	if c := b.Clock("alice"); c != 2 {
		t.Fatalf("expected clock 2, got %d", c)
	}
	if c := b.Clock("bob"); c != 0 {
		t.Fatalf("expected clock 0 for a silent sender, got %d", c)
	}
}

func TestBoardList(t *testing.T) {
	b := NewBoard()
	posts := []struct{ sender, recipient string }{
		{"alice", "bob"}, {"bob", "alice"}, {"carol", "bob"}, {"alice", "carol"},
	}
	for _, p := range posts {
		if _, err := b.Post(p.sender, p.recipient, b.Clock(p.sender), nil); err != nil {
			t.Fatal(err)
		}
	}
	tests := []struct {
		filter   note.Filter
		expected int
	}{
		{note.Filter{}, 4},
		{note.Filter{Sender: "alice"}, 2},
		{note.Filter{Recipient: "bob"}, 2},
		{note.Filter{Sender: "alice", Recipient: "bob"}, 1},
		{note.Filter{Sender: "dave"}, 0},
	}
	for _, test := range tests {
		if got := len(b.List(test.filter)); got != test.expected {
			t.Errorf("List(%+v): expected %d notes, got %d", test.filter, test.expected, got)
		}
	}
	ids := make(map[note.ID]bool)
	for _, m := range b.List(note.Filter{}) {
		if ids[m.ID] {
			t.Fatalf("duplicate id %s", m.ID)
		}
		ids[m.ID] = true
	}
}

func TestBoardSubscribe(t *testing.T) {
	b := NewBoard()
	notes, cancel := b.Subscribe("bob")
	defer cancel()

	if _, err := b.Post("alice", "carol", 0, nil); err != nil {
		t.Fatal(err)
	}
	m, err := b.Post("alice", "bob", 1, []byte("hi"))
	if err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-notes:
		if got.ID != m.ID {
			t.Fatalf("expected note %s, got %s", m.ID, got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no note delivered")
	}
	select {
	case got := <-notes:
		t.Fatalf("unexpected note %+v", got)
	default:
	}
}

func TestEndpoint(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()
	alice, bob := b.Endpoint("alice"), b.Endpoint("bob")
	for i := 0; i < 3; i++ {
		if _, err := alice.Send(ctx, "bob", []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	notes, err := bob.Observe(ctx, note.Filter{Sender: "alice", Recipient: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(notes))
	}
	for i, m := range notes {
		if m.Payload[0] != byte(i) {
			t.Errorf("note %d out of order: %v", i, m.Payload)
		}
	}
}
