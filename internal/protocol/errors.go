package protocol

import "fmt"

// Reject reasons. Rule rejections are expected during normal play; security
// rejections feed the risk monitor.
const (
	ReasonBanned          = "banned"
	ReasonDead            = "dead"
	ReasonInvalidSession  = "invalid_session"
	ReasonSessionMismatch = "session_mismatch"
	ReasonRateLimited     = "rate_limited"
	ReasonReplay          = "replay"
	ReasonDuplicate       = "duplicate"
	ReasonSequence        = "sequence"
	ReasonFlagAlternation = "flag_alternation"
	ReasonOutOfBounds     = "out_of_bounds"
	ReasonNotAdjacent     = "not_adjacent"
	ReasonOwnTile         = "own_tile"
	ReasonNotWalkable     = "not_walkable"
	ReasonAlreadyRevealed = "already_revealed"
	ReasonTileFlagged     = "tile_flagged"
	ReasonNoFlags         = "no_flags"
	ReasonUnflagDisabled  = "unflag_disabled"
	ReasonGameOver        = "game_over"
	ReasonUnknownAction   = "unknown_action"
)

// RejectError is the structured rejection every pipeline failure surfaces as.
// Disconnect marks the connection for teardown (session/player mismatch).
type RejectError struct {
	Reason     string `json:"reason"`
	Severity   string `json:"severity"`
	Disconnect bool   `json:"disconnect,omitempty"`
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("action rejected: %s (%s)", e.Reason, e.Severity)
}

func NewReject(reason, severity string) *RejectError {
	return &RejectError{Reason: reason, Severity: severity}
}
