package game

import (
	"fmt"
	"time"

	"minegrid/internal/player"
	"minegrid/internal/protocol"
	"minegrid/internal/security"
)

// Handle is the single entry point for player actions. Checks run in a fixed
// order and short-circuit on the first failure; on acceptance the world is
// mutated under the engine lock and the broadcast set is planned.
func (e *Engine) Handle(req Request) Result {
	now := time.Now()
	payload := fmt.Sprintf("%d,%d", req.X, req.Y)

	if res, done := e.securityChecks(req, payload, now); done {
		return res
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.players.Get(req.PlayerID)
	if p == nil {
		return e.reject(req, protocol.ReasonInvalidSession, security.SeverityMedium, false)
	}

	if e.world.Ended() {
		return e.reject(req, protocol.ReasonGameOver, security.SeverityLow, false)
	}

	if rej := e.checkGeometry(p, req); rej != nil {
		e.monitor.RecordRejection(req.PlayerID, rej.Reason, security.Severity(rej.Severity))
		e.audit(AuditRecord{PlayerID: req.PlayerID, Action: req.Action, X: req.X, Y: req.Y, Reason: rej.Reason, At: time.Now()})
		return Result{Reject: rej}
	}

	var out actionOutcome
	var rej *protocol.RejectError

	switch req.Action {
	case protocol.ActionMove:
		rej = e.applyMove(p, req.X, req.Y, &out)
	case protocol.ActionFlip:
		rej = e.applyFlip(p, req.X, req.Y, &out)
	case protocol.ActionFlag:
		rej = e.applyFlag(p, req.X, req.Y, &out)
	case protocol.ActionUnflag:
		rej = protocol.NewReject(protocol.ReasonUnflagDisabled, string(security.SeverityLow))
	default:
		rej = protocol.NewReject(protocol.ReasonUnknownAction, string(security.SeverityLow))
	}

	if rej != nil {
		// Rule rejections are expected during normal play; log at debug only.
		e.log.Debugf("game", "rejected %s by %s at (%d,%d): %s", req.Action, req.PlayerID, req.X, req.Y, rej.Reason)
		e.audit(AuditRecord{PlayerID: req.PlayerID, Action: req.Action, X: req.X, Y: req.Y, Reason: rej.Reason, At: time.Now()})
		return Result{Reject: rej}
	}

	// Only accepted actions enter the replay history: a rule-rejected
	// submission may legitimately be retried.
	e.guard.Record(req.PlayerID, req.Action, payload, now)

	e.audit(AuditRecord{PlayerID: req.PlayerID, Action: req.Action, X: req.X, Y: req.Y, Accepted: true, At: time.Now()})
	return e.planBroadcasts(p, req, &out)
}

// securityChecks runs the gates that precede the engine lock: ban set,
// aliveness, session, rate limit, replay guard. Returns done=true when the
// request was decided here.
func (e *Engine) securityChecks(req Request, payload string, now time.Time) (Result, bool) {
	if e.monitor.IsBanned(req.PlayerID) {
		res := e.reject(req, protocol.ReasonBanned, security.SeverityHigh, true)
		return res, true
	}

	// Dead players keep a spectator camera: move stays allowed, everything
	// else requires being alive. Alive is written under the engine lock, so
	// the read takes it too.
	if req.Action != protocol.ActionMove {
		e.mu.Lock()
		p := e.players.Get(req.PlayerID)
		dead := p != nil && !p.Alive
		e.mu.Unlock()
		if dead {
			res := e.reject(req, protocol.ReasonDead, security.SeverityLow, false)
			return res, true
		}
	}

	boundID, ok := e.sessions.Validate(req.SessionID, req.SessionToken)
	if !ok {
		res := e.reject(req, protocol.ReasonInvalidSession, security.SeverityHigh, true)
		return res, true
	}
	if boundID != req.PlayerID {
		res := e.reject(req, protocol.ReasonSessionMismatch, security.SeverityHigh, true)
		return res, true
	}

	if !e.limiter.Allow(req.PlayerID, req.Action) {
		res := e.reject(req, protocol.ReasonRateLimited, security.SeverityMedium, false)
		return res, true
	}

	if v := e.guard.Check(req.PlayerID, req.Action, payload, now); v != nil {
		reason := guardReason(v.Reason)
		res := e.reject(req, reason, v.Severity, false)
		if v.Reason == "replay" && e.guard.Flagged(req.PlayerID) {
			e.log.Warnf("security", "player %s flagged for review: %d replay strikes", req.PlayerID, e.guard.Strikes(req.PlayerID))
		}
		return res, true
	}

	return Result{}, false
}

func guardReason(reason string) string {
	switch reason {
	case "replay":
		return protocol.ReasonReplay
	case "duplicate":
		return protocol.ReasonDuplicate
	case "flag_alternation":
		return protocol.ReasonFlagAlternation
	default:
		return protocol.ReasonSequence
	}
}

// checkGeometry enforces target bounds and adjacency before any rule runs.
func (e *Engine) checkGeometry(p *player.Player, req Request) *protocol.RejectError {
	if !e.world.InBounds(req.X, req.Y) {
		return protocol.NewReject(protocol.ReasonOutOfBounds, string(security.SeverityLow))
	}

	dx := req.X - p.X
	dy := req.Y - p.Y

	if req.Action == protocol.ActionMove {
		// Moves are cardinal, one tile.
		if absInt(dx)+absInt(dy) != 1 {
			return protocol.NewReject(protocol.ReasonNotAdjacent, string(security.SeverityLow))
		}
		return nil
	}

	// Tile actions reach the 8-neighborhood but never the actor's own tile.
	if dx == 0 && dy == 0 {
		return protocol.NewReject(protocol.ReasonOwnTile, string(security.SeverityLow))
	}
	if absInt(dx) > 1 || absInt(dy) > 1 {
		return protocol.NewReject(protocol.ReasonNotAdjacent, string(security.SeverityLow))
	}
	return nil
}

func (e *Engine) reject(req Request, reason string, severity security.Severity, disconnect bool) Result {
	rej := &protocol.RejectError{Reason: reason, Severity: string(severity), Disconnect: disconnect}
	if severity != security.SeverityLow {
		e.monitor.RecordRejection(req.PlayerID, reason, severity)
	}
	e.audit(AuditRecord{PlayerID: req.PlayerID, Action: req.Action, X: req.X, Y: req.Y, Reason: reason, At: time.Now()})
	return Result{Reject: rej}
}

// actionOutcome collects what a rule handler changed, for broadcast planning.
type actionOutcome struct {
	tileChanged   bool
	tileAction    string // reveal, flag, explode
	playerChanged bool
	scoreChanged  bool
	explosion     *protocol.Explosion
	killed        []string
	gameEnded     bool
}

// planBroadcasts formulates the outbound set for an accepted action. The
// actor's viewport update always precedes the derived broadcasts; the
// tile-update precedes the leaderboard update.
func (e *Engine) planBroadcasts(p *player.Player, req Request, out *actionOutcome) Result {
	now := time.Now().UnixMilli()

	tiles, players := e.materializeLocked(p, req.ViewportW, req.ViewportH)
	res := Result{
		Accepted: true,
		Viewport: &protocol.ViewportUpdate{TargetPlayerID: p.ID, Tiles: tiles, Players: players},
	}

	if out.tileChanged {
		res.Broadcasts = append(res.Broadcasts, Broadcast{
			Topic: protocol.TopicTileUpdate,
			Payload: protocol.TileUpdate{
				X: req.X, Y: req.Y,
				Action:    out.tileAction,
				PlayerID:  p.ID,
				Timestamp: now,
			},
		})
	}

	if out.explosion != nil {
		res.Broadcasts = append(res.Broadcasts, Broadcast{
			Topic:   protocol.TopicExplosion,
			Payload: *out.explosion,
		})
	}

	if out.playerChanged || out.scoreChanged {
		res.Broadcasts = append(res.Broadcasts, Broadcast{
			Topic:   protocol.TopicPlayerUpdate,
			Payload: protocol.PlayerUpdate{Player: publicState(p)},
		})
	}

	for _, id := range out.killed {
		if victim := e.players.Get(id); victim != nil {
			res.Broadcasts = append(res.Broadcasts, Broadcast{
				Topic:   protocol.TopicPlayerUpdate,
				Payload: protocol.PlayerUpdate{Player: publicState(victim)},
			})
		}
		res.Broadcasts = append(res.Broadcasts, Broadcast{
			Topic:   protocol.TopicPlayerDeath,
			Payload: protocol.PlayerDeath{PlayerID: id, Reason: "explosion", Delay: protocol.DeathDelayMs},
		})
	}

	if out.scoreChanged {
		res.Broadcasts = append(res.Broadcasts, Broadcast{
			Topic:   protocol.TopicLeaderboardUpdate,
			Payload: protocol.LeaderboardUpdate{Players: leaderboardEntries(e.players.Leaderboard())},
		})
	}

	if out.gameEnded {
		res.Broadcasts = append(res.Broadcasts, Broadcast{
			Topic: protocol.TopicGameEnd,
			Payload: protocol.GameEnd{
				Reason:      "all_mines_cleared",
				Timestamp:   now,
				Leaderboard: leaderboardEntries(e.players.Leaderboard()),
			},
		})
	}

	return res
}
