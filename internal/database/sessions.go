package database

import "time"

// SessionRecord is one row of the session history.
type SessionRecord struct {
	SessionID      string `json:"sessionId"`
	PlayerID       string `json:"playerId"`
	Username       string `json:"username"`
	ConnectedAt    int64  `json:"connectedAt"`
	DisconnectedAt int64  `json:"disconnectedAt"`
	EvictReason    string `json:"evictReason"`
}

// RecordSessionStart inserts a session-history row at session creation.
func (db *DB) RecordSessionStart(sessionID, playerID, username string) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO session_history
		(session_id, player_id, username, connected_at)
		VALUES (?, ?, ?, ?)`, sessionID, playerID, username, time.Now().Unix())
	return err
}

// RecordSessionEnd closes a session-history row with the eviction reason.
func (db *DB) RecordSessionEnd(sessionID, reason string) error {
	_, err := db.conn.Exec(`UPDATE session_history
		SET disconnected_at = ?, evict_reason = ?
		WHERE session_id = ?`, time.Now().Unix(), reason, sessionID)
	return err
}

// SessionHistory returns the most recent N session rows.
func (db *DB) SessionHistory(limit int) ([]SessionRecord, error) {
	rows, err := db.conn.Query(`SELECT session_id, player_id, username, connected_at, disconnected_at, evict_reason
		FROM session_history ORDER BY connected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SessionRecord
	for rows.Next() {
		var s SessionRecord
		if err := rows.Scan(&s.SessionID, &s.PlayerID, &s.Username, &s.ConnectedAt, &s.DisconnectedAt, &s.EvictReason); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
