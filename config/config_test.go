package config

import (
	"testing"
	"time"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/turn"
)

func TestArenaDefaults(t *testing.T) {
	var cfg Arena
	if err := parseEnviron(&cfg, map[string]string{}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must be valid: %v", err)
	}
	if cfg.PollInterval != 750*time.Millisecond {
		t.Errorf("expected a 750ms poll interval, got %s", cfg.PollInterval)
	}
	if cfg.DiscoveryPort != 53550 {
		t.Errorf("expected discovery port 53550, got %d", cfg.DiscoveryPort)
	}
	a, err := cfg.Authority()
	if err != nil || a != turn.AuthorityLocal {
		t.Errorf("expected local authority, got %v (%v)", a, err)
	}
	e, err := cfg.Engine()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Scheme().(commitment.SHA256); !ok {
		t.Errorf("expected the sha256 scheme, got %T", e.Scheme())
	}
}

func TestArenaFromEnvironment(t *testing.T) {
	var cfg Arena
	err := parseEnviron(&cfg, map[string]string{
		"ARENA_PLAYER_NAME":      "alice",
		"ARENA_BOARD_URL":        "https://arena.local:8443",
		"ARENA_POLL_INTERVAL":    "2s",
		"ARENA_COMMIT_SCHEME":    "pedersen",
		"ARENA_VERIFY_AUTHORITY": "ledger",
		"ARENA_LEGACY":           "true",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.PlayerName != "alice" || cfg.PollInterval != 2*time.Second || !cfg.Legacy {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if a, _ := cfg.Authority(); a != turn.AuthorityLedger {
		t.Errorf("expected ledger authority, got %v", a)
	}
}

func TestArenaValidation(t *testing.T) {
	valid := func() Arena {
		var cfg Arena
		if err := parseEnviron(&cfg, map[string]string{}); err != nil {
			t.Fatal(err)
		}
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Arena)
	}{
		{"scheme", func(c *Arena) { c.CommitScheme = "md5" }},
		{"authority", func(c *Arena) { c.VerifyAuthority = "oracle" }},
		{"poll interval", func(c *Arena) { c.PollInterval = 0 }},
		{"send timeout", func(c *Arena) { c.SendTimeout = -time.Second }},
		{"animation delay", func(c *Arena) { c.AnimationDelay = -time.Second }},
		{"board url", func(c *Arena) { c.BoardURL = "board:8080" }},
		{"player name", func(c *Arena) { c.PlayerName = "" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected the config to be rejected")
			}
		})
	}
}

func TestMalformedEnvironment(t *testing.T) {
	var cfg Arena
	if err := parseEnviron(&cfg, map[string]string{"ARENA_POLL_INTERVAL": "soon"}); err == nil {
		t.Fatal("expected an unparsable duration to fail")
	}
}

func TestBoard(t *testing.T) {
	var cfg Board
	if err := parseEnviron(&cfg, map[string]string{"BOARD_TLS": "true"}); err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8080" || !cfg.TLS || cfg.PublicAddr != "localhost" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	cfg.PublicAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected tls without public address to be rejected")
	}
}
