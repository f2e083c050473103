// Package store persists match snapshots and player identities in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/luca-patrignani/mental-arena/note"
	"github.com/luca-patrignani/mental-arena/signal"
	"github.com/luca-patrignani/mental-arena/store/migrations"
	"github.com/luca-patrignani/mental-arena/turn"
)

// ErrNotFound is returned when a match or identity is not stored.
var ErrNotFound = errors.New("not found")

// Store implements turn.Persister on a SQLite database.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Match summarizes a stored match.
type Match struct {
	ID        string
	Opponent  string
	Round     uint32
	Phase     string
	Finished  bool
	UpdatedAt time.Time
}

// Open opens the database at path and applies the migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save stores snap as the latest state of matchID. Handled note ids are
// only ever added.
func (s *Store) Save(ctx context.Context, matchID string, snap turn.Snapshot) error {
	if strings.TrimSpace(matchID) == "" {
		return fmt.Errorf("match id is required")
	}
	handled := snap.Handled
	snap.Handled = nil
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO matches (match_id, opponent, round, phase, finished, snapshot, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (match_id) DO UPDATE SET
	opponent = excluded.opponent,
	round = excluded.round,
	phase = excluded.phase,
	finished = excluded.finished,
	snapshot = excluded.snapshot,
	updated_at = excluded.updated_at
`,
		matchID,
		snap.OpponentID,
		snap.Round,
		snap.Phase.String(),
		snap.Phase.Terminal(),
		string(body),
		s.now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("save match: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO handled_notes (match_id, category, note_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare handled notes: %w", err)
	}
	defer stmt.Close()
	for cat, ids := range handled {
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, matchID, string(cat), string(id)); err != nil {
				return fmt.Errorf("save handled note %s: %w", id, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load returns the latest snapshot of matchID with its handled note ids.
func (s *Store) Load(ctx context.Context, matchID string) (turn.Snapshot, error) {
	var body string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT snapshot FROM matches WHERE match_id = ?`, matchID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return turn.Snapshot{}, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return turn.Snapshot{}, fmt.Errorf("load match: %w", err)
	}
	var snap turn.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return turn.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT category, note_id FROM handled_notes WHERE match_id = ? ORDER BY category, note_id`, matchID)
	if err != nil {
		return turn.Snapshot{}, fmt.Errorf("load handled notes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat, id string
		if err := rows.Scan(&cat, &id); err != nil {
			return turn.Snapshot{}, fmt.Errorf("scan handled note: %w", err)
		}
		if snap.Handled == nil {
			snap.Handled = make(map[signal.Category][]note.ID)
		}
		snap.Handled[signal.Category(cat)] = append(snap.Handled[signal.Category(cat)], note.ID(id))
	}
	if err := rows.Err(); err != nil {
		return turn.Snapshot{}, fmt.Errorf("iterate handled notes: %w", err)
	}
	return snap, nil
}

// Unfinished lists the matches that can be resumed, most recent first.
func (s *Store) Unfinished(ctx context.Context) ([]Match, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT match_id, opponent, round, phase, finished, updated_at
FROM matches
WHERE finished = 0
ORDER BY updated_at DESC, match_id
`)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()
	var out []Match
	for rows.Next() {
		var (
			m       Match
			updated int64
		)
		if err := rows.Scan(&m.ID, &m.Opponent, &m.Round, &m.Phase, &m.Finished, &updated); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

// Delete removes a match and its handled note ids.
func (s *Store) Delete(ctx context.Context, matchID string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM matches WHERE match_id = ?`, matchID); err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	return nil
}

// Identity returns the signer stored under name, creating and storing a new
// one the first time.
func (s *Store) Identity(ctx context.Context, name string) (*signal.Signer, error) {
	var seed []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT seed FROM identities WHERE name = ?`, name).Scan(&seed)
	switch {
	case err == nil:
		return signal.SignerFromSeed(seed)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("load identity: %w", err)
	}
	signer, err := signal.NewSigner()
	if err != nil {
		return nil, err
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO identities (name, seed, created_at) VALUES (?, ?, ?)`,
		name, signer.Seed(), s.now().UTC().UnixMilli(),
	); err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}
	return signer, nil
}
