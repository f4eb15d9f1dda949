package database

// GameResult is one completed game.
type GameResult struct {
	StartedAt   int64  `json:"startedAt"`
	EndedAt     int64  `json:"endedAt"`
	TotalMines  int    `json:"totalMines"`
	WinnerID    string `json:"winnerId"`
	WinnerName  string `json:"winnerName"`
	WinnerScore int    `json:"winnerScore"`
}

// InsertGameResult records a finished game.
func (db *DB) InsertGameResult(r GameResult) error {
	_, err := db.conn.Exec(`INSERT INTO game_results
		(started_at, ended_at, total_mines, winner_id, winner_name, winner_score)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.StartedAt, r.EndedAt, r.TotalMines, r.WinnerID, r.WinnerName, r.WinnerScore)
	return err
}

// GameResults returns the most recent N finished games.
func (db *DB) GameResults(limit int) ([]GameResult, error) {
	rows, err := db.conn.Query(`SELECT started_at, ended_at, total_mines, winner_id, winner_name, winner_score
		FROM game_results ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GameResult
	for rows.Next() {
		var r GameResult
		if err := rows.Scan(&r.StartedAt, &r.EndedAt, &r.TotalMines, &r.WinnerID, &r.WinnerName, &r.WinnerScore); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
