package database

import (
	"fmt"
	"time"
)

// AuditEntry is one row of the action audit trail.
type AuditEntry struct {
	Timestamp int64
	PlayerID  string
	Action    string
	X         int
	Y         int
	Accepted  bool
	Reason    string
}

// InsertAudits batch-inserts audit rows in a single transaction.
func (db *DB) InsertAudits(entries []AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO action_audit (timestamp, player_id, action, x, y, accepted, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, a := range entries {
		accepted := 0
		if a.Accepted {
			accepted = 1
		}
		if _, err := stmt.Exec(a.Timestamp, a.PlayerID, a.Action, a.X, a.Y, accepted, a.Reason); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec: %w", err)
		}
	}

	return tx.Commit()
}

// RecentAudits returns the most recent N audit rows for a player. An empty
// player id returns rows across all players.
func (db *DB) RecentAudits(playerID string, limit int) ([]AuditEntry, error) {
	query := `SELECT timestamp, player_id, action, x, y, accepted, reason
		FROM action_audit`
	args := []any{}
	if playerID != "" {
		query += ` WHERE player_id = ?`
		args = append(args, playerID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AuditEntry
	for rows.Next() {
		var a AuditEntry
		var accepted int
		if err := rows.Scan(&a.Timestamp, &a.PlayerID, &a.Action, &a.X, &a.Y, &accepted, &a.Reason); err != nil {
			return nil, err
		}
		a.Accepted = accepted == 1
		result = append(result, a)
	}
	return result, rows.Err()
}

// PruneAudits deletes audit rows older than the given duration.
func (db *DB) PruneAudits(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	result, err := db.conn.Exec(`DELETE FROM action_audit WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
