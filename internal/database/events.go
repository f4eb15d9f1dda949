package database

import (
	"fmt"
	"time"
)

// EventEntry is one persisted security event.
type EventEntry struct {
	Timestamp int64  `json:"timestamp"`
	PlayerID  string `json:"playerId"`
	Reason    string `json:"reason"`
	Severity  string `json:"severity"`
}

// InsertEvents batch-inserts security events.
func (db *DB) InsertEvents(events []EventEntry) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO security_events (timestamp, player_id, reason, severity)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(ev.Timestamp, ev.PlayerID, ev.Reason, ev.Severity); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec: %w", err)
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N security events.
func (db *DB) RecentEvents(limit int) ([]EventEntry, error) {
	rows, err := db.conn.Query(`SELECT timestamp, player_id, reason, severity
		FROM security_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EventEntry
	for rows.Next() {
		var ev EventEntry
		if err := rows.Scan(&ev.Timestamp, &ev.PlayerID, &ev.Reason, &ev.Severity); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

// EventCountByPlayer returns per-player event counts since the cutoff.
func (db *DB) EventCountByPlayer(since int64) (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT player_id, COUNT(*)
		FROM security_events WHERE timestamp >= ? GROUP BY player_id`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		result[id] = n
	}
	return result, rows.Err()
}

// PruneEvents deletes events older than the given duration.
func (db *DB) PruneEvents(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	result, err := db.conn.Exec(`DELETE FROM security_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// InsertBan records an operator ban.
func (db *DB) InsertBan(playerID, reason string) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO bans (player_id, banned_at, reason)
		VALUES (?, ?, ?)`, playerID, time.Now().Unix(), reason)
	return err
}

// RemoveBan lifts a ban.
func (db *DB) RemoveBan(playerID string) error {
	_, err := db.conn.Exec(`DELETE FROM bans WHERE player_id = ?`, playerID)
	return err
}

// Bans returns all banned player ids.
func (db *DB) Bans() ([]string, error) {
	rows, err := db.conn.Query(`SELECT player_id FROM bans`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}
