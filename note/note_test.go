package note

import "testing"

func TestFilterMatch(t *testing.T) {
	m := Message{ID: "1", Sender: "alice", Recipient: "bob"}
	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"sender", Filter{Sender: "alice"}, true},
		{"wrong sender", Filter{Sender: "bob"}, false},
		{"both", Filter{Sender: "alice", Recipient: "bob"}, true},
		{"wrong recipient", Filter{Recipient: "carol"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(m); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
