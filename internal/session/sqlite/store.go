// Package sqlite is the durable SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// Store persists sessions, turns, and state entries in SQLite.
type Store struct {
	db *sql.DB
}

var _ ports.SessionStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			app_name TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (app_name, user_id, session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			app_name TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			stage TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS state (
			app_name TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			ord INTEGER NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (app_name, user_id, session_id, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(app_name, user_id, session_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) GetOrCreate(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (app_name, user_id, session_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (app_name, user_id, session_id) DO NOTHING`,
		key.AppName, key.UserID, key.SessionID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s.load(ctx, key)
}

func (s *Store) Get(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	return s.load(ctx, key)
}

func (s *Store) load(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	sess := &domain.Session{Key: key, State: domain.NewStateBag()}

	err := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM sessions
		WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		key.AppName, key.UserID, key.SessionID).Scan(&sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ports.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, text, stage, created_at FROM turns
		WHERE app_name = ? AND user_id = ? AND session_id = ?
		ORDER BY seq ASC`,
		key.AppName, key.UserID, key.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t domain.Turn
		var stage sql.NullString
		if err := rows.Scan(&t.Role, &t.Text, &stage, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Stage = stage.String
		sess.Append(t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stateRows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM state
		WHERE app_name = ? AND user_id = ? AND session_id = ?
		ORDER BY ord ASC`,
		key.AppName, key.UserID, key.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}
	defer stateRows.Close()

	for stateRows.Next() {
		var k, v string
		if err := stateRows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan state entry: %w", err)
		}
		sess.State.Set(k, v)
	}

	return sess, stateRows.Err()
}

func (s *Store) AppendTurn(ctx context.Context, key domain.SessionKey, turn domain.Turn) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (app_name, user_id, session_id, role, text, stage, created_at)
		SELECT app_name, user_id, session_id, ?, ?, ?, ?
		FROM sessions WHERE app_name = ? AND user_id = ? AND session_id = ?`,
		turn.Role, turn.Text, turn.Stage, turn.CreatedAt,
		key.AppName, key.UserID, key.SessionID)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ports.ErrSessionNotFound
	}
	return nil
}

func (s *Store) SaveState(ctx context.Context, key domain.SessionKey, bag *domain.StateBag) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for ord, entry := range bag.Entries() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO state (app_name, user_id, session_id, ord, key, value)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (app_name, user_id, session_id, key)
			DO UPDATE SET value = excluded.value`,
			key.AppName, key.UserID, key.SessionID, ord, entry.Key, entry.Value)
		if err != nil {
			return fmt.Errorf("failed to upsert state entry: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}
