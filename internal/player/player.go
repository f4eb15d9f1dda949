package player

import (
	"time"
)

// Player is the single authoritative record for one participant. It is
// mutated only by the action pipeline and the connection fan-out, both of
// which serialize through the engine lock.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`

	X     int `json:"x"`
	Y     int `json:"y"`
	Score int `json:"score"`
	Flags int `json:"flags"`

	Alive     bool `json:"alive"`
	Connected bool `json:"connected"`

	SessionID string `json:"-"`
	ConnID    string `json:"-"`

	JoinedAt   time.Time `json:"-"`
	LastAction time.Time `json:"-"`
}

// MaxUsernameLen bounds usernames on the wire and in the leaderboard.
const MaxUsernameLen = 12
