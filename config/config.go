// Package config loads the configuration of the binaries from the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/luca-patrignani/mental-arena/commitment"
	"github.com/luca-patrignani/mental-arena/turn"
)

// Arena configures a player.
type Arena struct {
	PlayerName      string        `env:"ARENA_PLAYER_NAME" envDefault:"player"`
	BoardURL        string        `env:"ARENA_BOARD_URL"`
	CAFile          string        `env:"ARENA_CA_FILE"`
	PollInterval    time.Duration `env:"ARENA_POLL_INTERVAL" envDefault:"750ms"`
	CommitScheme    string        `env:"ARENA_COMMIT_SCHEME" envDefault:"sha256"`
	VerifyAuthority string        `env:"ARENA_VERIFY_AUTHORITY" envDefault:"local"`
	DBPath          string        `env:"ARENA_DB_PATH" envDefault:"arena.db"`
	DiscoveryPort   uint16        `env:"ARENA_DISCOVERY_PORT" envDefault:"53550"`
	AnimationDelay  time.Duration `env:"ARENA_ANIMATION_DELAY" envDefault:"1500ms"`
	SendTimeout     time.Duration `env:"ARENA_SEND_TIMEOUT" envDefault:"10s"`
	Legacy          bool          `env:"ARENA_LEGACY"`
}

// Board configures the note board server. With TLS a self-signed
// certificate is issued for PublicAddr and written to CertFile for the
// players to trust.
type Board struct {
	Addr       string `env:"BOARD_ADDR" envDefault:":8080"`
	TLS        bool   `env:"BOARD_TLS"`
	PublicAddr string `env:"BOARD_PUBLIC_ADDR" envDefault:"localhost"`
	CertFile   string `env:"BOARD_CERT_FILE" envDefault:"board.pem"`
}

// ParseEnv loads target from the process environment.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func parseEnviron(target any, environ map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadArena parses and validates the player configuration.
func LoadArena() (Arena, error) {
	var cfg Arena
	if err := ParseEnv(&cfg); err != nil {
		return Arena{}, err
	}
	return cfg, cfg.Validate()
}

// LoadBoard parses and validates the board configuration.
func LoadBoard() (Board, error) {
	var cfg Board
	if err := ParseEnv(&cfg); err != nil {
		return Board{}, err
	}
	return cfg, cfg.Validate()
}

func (c Arena) Validate() error {
	var errs []error
	if _, err := commitment.SchemeByName(c.CommitScheme); err != nil {
		errs = append(errs, err)
	}
	if _, err := turn.ParseAuthority(c.VerifyAuthority); err != nil {
		errs = append(errs, err)
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.SendTimeout <= 0 {
		errs = append(errs, fmt.Errorf("send timeout must be positive, got %s", c.SendTimeout))
	}
	if c.AnimationDelay < 0 {
		errs = append(errs, fmt.Errorf("animation delay must not be negative, got %s", c.AnimationDelay))
	}
	if c.BoardURL != "" {
		u, err := url.Parse(c.BoardURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("board url %q is not an http url", c.BoardURL))
		}
	}
	if c.PlayerName == "" {
		errs = append(errs, errors.New("player name is required"))
	}
	return errors.Join(errs...)
}

// Engine returns the commitment engine of the configured scheme.
func (c Arena) Engine(opts ...commitment.Option) (*commitment.Engine, error) {
	scheme, err := commitment.SchemeByName(c.CommitScheme)
	if err != nil {
		return nil, err
	}
	return commitment.NewEngine(scheme, opts...), nil
}

// Authority returns the configured verification authority.
func (c Arena) Authority() (turn.Authority, error) {
	return turn.ParseAuthority(c.VerifyAuthority)
}

func (c Board) Validate() error {
	if c.Addr == "" {
		return errors.New("board address is required")
	}
	if c.TLS && c.PublicAddr == "" {
		return errors.New("public address is required with tls")
	}
	return nil
}
