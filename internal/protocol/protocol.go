package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound topics.
const (
	TopicPlayerPreferences = "player-preferences"
	TopicPlayerAction      = "player-action"
	TopicDisconnect        = "disconnect"
	TopicSecurityDashboard = "security-dashboard"
)

// Outbound topics.
const (
	TopicSessionAssigned   = "session-assigned"
	TopicWelcome           = "welcome"
	TopicActionRejected    = "action-rejected"
	TopicViewportUpdate    = "viewport-update"
	TopicPlayerUpdate      = "player-update"
	TopicTileUpdate        = "tile-update"
	TopicLeaderboardUpdate = "leaderboard-update"
	TopicExplosion         = "explosion"
	TopicPlayerDeath       = "player-death"
	TopicGameEnd           = "game-end"
	TopicDashboardReport   = "dashboard-report"
)

// Action kinds accepted on the player-action topic.
const (
	ActionMove   = "move"
	ActionFlip   = "flip"
	ActionFlag   = "flag"
	ActionUnflag = "unflag"
)

// Message is the frame envelope: a topic string plus a structured payload.
type Message struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Parse decodes a raw frame into a Message.
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	if msg.Topic == "" {
		return nil, fmt.Errorf("missing topic")
	}
	return &msg, nil
}

// Encode marshals a topic and payload into a wire frame.
func Encode(topic string, payload interface{}) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	data, _ := json.Marshal(Message{Topic: topic, Payload: raw})
	return data
}

// Decode unmarshals a message payload into the given struct.
func Decode(msg *Message, v interface{}) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.Topic, err)
	}
	return nil
}
