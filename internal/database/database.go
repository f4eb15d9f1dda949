package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection holding the operator-facing record: security
// events, the action audit trail, session history, game results, and bans.
// World state is never persisted; the grid regenerates every boot.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	conn.SetMaxOpenConns(1) // SQLite is single-writer

	db := &DB{conn: conn, path: dbPath}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return db, nil
}

// Size returns the total disk usage in bytes (main DB + WAL + SHM files).
func (db *DB) Size() int64 {
	var total int64
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if info, err := os.Stat(db.path + suffix); err == nil {
			total += info.Size()
		}
	}
	return total
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS security_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			player_id TEXT    NOT NULL,
			reason    TEXT    NOT NULL,
			severity  TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_timestamp ON security_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_events_player    ON security_events(player_id);

		CREATE TABLE IF NOT EXISTS action_audit (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			player_id TEXT    NOT NULL,
			action    TEXT    NOT NULL,
			x         INTEGER NOT NULL,
			y         INTEGER NOT NULL,
			accepted  INTEGER NOT NULL DEFAULT 0,
			reason    TEXT    NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON action_audit(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_player    ON action_audit(player_id, timestamp);

		CREATE TABLE IF NOT EXISTS session_history (
			session_id      TEXT PRIMARY KEY,
			player_id       TEXT    NOT NULL,
			username        TEXT    NOT NULL DEFAULT '',
			connected_at    INTEGER NOT NULL,
			disconnected_at INTEGER NOT NULL DEFAULT 0,
			evict_reason    TEXT    NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS game_results (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at   INTEGER NOT NULL,
			ended_at     INTEGER NOT NULL,
			total_mines  INTEGER NOT NULL,
			winner_id    TEXT    NOT NULL DEFAULT '',
			winner_name  TEXT    NOT NULL DEFAULT '',
			winner_score INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS bans (
			player_id TEXT PRIMARY KEY,
			banned_at INTEGER NOT NULL,
			reason    TEXT    NOT NULL DEFAULT ''
		);
	`)
	return err
}
