package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// Announcement advertises a hosted lobby.
type Announcement struct {
	Name string `json:"name"`
	// Host is the signer identity of the hosting player.
	Host string `json:"host"`
	// Board is the URL of the note board the host plays on.
	Board string `json:"board"`
}

func (a Announcement) Validate() error {
	if a.Host == "" {
		return errors.New("announcement without host")
	}
	u, err := url.Parse(a.Board)
	if err != nil {
		return fmt.Errorf("announcement board: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("announcement board %q is not an http url", a.Board)
	}
	return nil
}

func Decode(b []byte) (Announcement, error) {
	var a Announcement
	if err := json.Unmarshal(b, &a); err != nil {
		return Announcement{}, fmt.Errorf("decode announcement: %w", err)
	}
	if err := a.Validate(); err != nil {
		return Announcement{}, err
	}
	return a, nil
}

// Announce advertises a until the returned Discover is closed.
func Announce(a Announcement, port uint16, interval time.Duration, logger *slog.Logger) (*Discover, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	info, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	d := &Discover{Info: info, Port: port, Interval: interval, Logger: logger}
	if err := d.Start(); err != nil {
		return nil, err
	}
	return d, nil
}

// Browse reports every lobby announced on port once per host until ctx is
// done. Invalid announcements are skipped.
func Browse(ctx context.Context, port uint16, logger *slog.Logger) (<-chan Announcement, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Discover{Port: port, Logger: logger}
	if err := d.Start(); err != nil {
		return nil, err
	}
	lobbies := make(chan Announcement)
	go func() {
		<-ctx.Done()
		if err := d.Close(); err != nil {
			logger.Warn("closing discovery", "err", err)
		}
	}()
	go func() {
		defer close(lobbies)
		seen := make(map[string]bool)
		for entry := range d.Entries {
			a, err := Decode(entry.Info)
			if err != nil {
				logger.Debug("ignoring announcement", "from", entry.From, "err", err)
				continue
			}
			if seen[a.Host] {
				continue
			}
			seen[a.Host] = true
			select {
			case lobbies <- a:
			case <-ctx.Done():
			}
		}
	}()
	return lobbies, nil
}
