package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ColorValue accepts either an HSL string or a bare 0..360 hue on the wire.
// Some client builds send one, some the other.
type ColorValue string

func (c *ColorValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = ColorValue(s)
		return nil
	}

	var hue float64
	if err := json.Unmarshal(data, &hue); err == nil {
		for hue < 0 {
			hue += 360
		}
		for hue >= 360 {
			hue -= 360
		}
		*c = ColorValue("hsl(" + strconv.Itoa(int(hue)) + ", 70%, 50%)")
		return nil
	}

	return fmt.Errorf("color: expected string or hue number")
}

// PlayerPreferences is the welcome/reconnect request.
type PlayerPreferences struct {
	Name         string     `json:"name"`
	Color        ColorValue `json:"color"`
	SessionID    string     `json:"sessionId,omitempty"`
	SessionToken string     `json:"sessionToken,omitempty"`
}

// PlayerAction is a move/flip/flag/unflag request.
type PlayerAction struct {
	Action         string `json:"action"`
	X              int    `json:"x"`
	Y              int    `json:"y"`
	SessionID      string `json:"sessionId,omitempty"`
	SessionToken   string `json:"sessionToken,omitempty"`
	ViewportWidth  int    `json:"viewportWidth,omitempty"`
	ViewportHeight int    `json:"viewportHeight,omitempty"`
}

// DashboardRequest gates the operator dashboard; Ban, Unban, and LogLevel
// are optional commands carried on the same topic.
type DashboardRequest struct {
	AdminKey string `json:"adminKey"`
	Ban      string `json:"ban,omitempty"`
	Unban    string `json:"unban,omitempty"`
	LogLevel string `json:"logLevel,omitempty"`
}

// SessionAssigned echoes the session credentials back to the client.
type SessionAssigned struct {
	SessionID      string `json:"sessionId"`
	SessionToken   string `json:"sessionToken"`
	IsReconnection bool   `json:"isReconnection"`
}

// PlayerState is the public projection of a player record.
type PlayerState struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Score     int    `json:"score"`
	Flags     int    `json:"flags"`
	Alive     bool   `json:"alive"`
	Connected bool   `json:"connected"`
	Color     string `json:"color"`
}

// TileState is a sanitized tile as sent to clients. Kind, Number, and
// Exploded are omitted for tiles the viewer is not entitled to see.
type TileState struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Revealed  bool   `json:"revealed"`
	Flagged   bool   `json:"flagged"`
	Kind      string `json:"kind,omitempty"`
	Number    int    `json:"number,omitempty"`
	FlaggedBy string `json:"flaggedBy,omitempty"`
	Exploded  bool   `json:"exploded,omitempty"`
}

// GameState summarizes match progress. MinesRemaining is a percentage; the
// raw count stays hidden.
type GameState struct {
	StartTime      int64 `json:"startTime"`
	Ended          bool  `json:"ended"`
	MinesRemaining int   `json:"minesRemaining"`
}

// Viewport is the sanitized window around one player.
type Viewport struct {
	Tiles   []TileState   `json:"tiles"`
	Players []PlayerState `json:"players"`
}

type Welcome struct {
	PlayerID  string      `json:"playerId"`
	Player    PlayerState `json:"player"`
	GameState GameState   `json:"gameState"`
	Viewport  Viewport    `json:"viewport"`
}

type ViewportUpdate struct {
	TargetPlayerID string        `json:"targetPlayerId"`
	Tiles          []TileState   `json:"tiles"`
	Players        []PlayerState `json:"players"`
}

type PlayerUpdate struct {
	Player PlayerState `json:"player"`
}

type TileUpdate struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Action    string `json:"action"`
	PlayerID  string `json:"playerId"`
	Timestamp int64  `json:"timestamp"`
}

type LeaderboardEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	Flags    int    `json:"flags"`
	Alive    bool   `json:"alive"`
	Color    string `json:"color"`
}

type LeaderboardUpdate struct {
	Players []LeaderboardEntry `json:"players"`
}

type Explosion struct {
	X             int         `json:"x"`
	Y             int         `json:"y"`
	AffectedTiles []TileState `json:"affectedTiles"`
	KilledPlayers []string    `json:"killedPlayers"`
}

// DeathDelayMs is a UI hint so clients can play the explosion before the
// death screen.
const DeathDelayMs = 1500

type PlayerDeath struct {
	PlayerID string `json:"playerId"`
	Reason   string `json:"reason"`
	Delay    int    `json:"delay"`
}

// DashboardReport is the operator snapshot returned on the dashboard topic.
// The history fields are typed by their producers (security monitor, audit
// store, logger); the protocol layer treats them as opaque.
type DashboardReport struct {
	Players      int         `json:"players"`
	Connected    int         `json:"connected"`
	Sessions     int         `json:"sessions"`
	GameState    GameState   `json:"gameState"`
	Security     interface{} `json:"security"`
	RecentEvents interface{} `json:"recentEvents,omitempty"`
	RecentAudits interface{} `json:"recentAudits,omitempty"`
	EventCounts  interface{} `json:"eventCounts,omitempty"`
	RecentLog    interface{} `json:"recentLog,omitempty"`
	DBSizeBytes  int64       `json:"dbSizeBytes"`
}

type GameEnd struct {
	Reason      string             `json:"reason"`
	Timestamp   int64              `json:"timestamp"`
	Leaderboard []LeaderboardEntry `json:"leaderboard,omitempty"`
}
