// Package note holds the message types exchanged through a transport.
//
// A note is an opaque payload posted by one sender, optionally addressed to a
// recipient. Transports only guarantee that a posted note eventually becomes
// observable; they do not order notes of different senders.
package note

import "time"

// ID identifies a note. Classification is keyed by ID, never by content.
type ID string

// Message is a note as seen by an observer.
type Message struct {
	ID        ID        `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient,omitempty"`
	Payload   []byte    `json:"payload"`
	Created   time.Time `json:"created"`
}

// Filter selects notes. Empty fields match anything.
type Filter struct {
	Sender    string
	Recipient string
}

// Match reports whether m passes the filter.
func (f Filter) Match(m Message) bool {
	if f.Sender != "" && m.Sender != f.Sender {
		return false
	}
	if f.Recipient != "" && m.Recipient != f.Recipient {
		return false
	}
	return true
}
