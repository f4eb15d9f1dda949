package game

import (
	"time"

	"minegrid/internal/player"
	"minegrid/internal/protocol"
	"minegrid/internal/security"
	"minegrid/internal/world"
)

// applyMove walks the player one tile. Walkable means revealed non-mine or
// flagged; covered tiles block movement.
func (e *Engine) applyMove(p *player.Player, x, y int, out *actionOutcome) *protocol.RejectError {
	t := e.world.At(x, y)
	if t == nil || !t.Walkable() {
		return protocol.NewReject(protocol.ReasonNotWalkable, string(security.SeverityLow))
	}

	p.X = x
	p.Y = y
	p.LastAction = time.Now()
	out.playerChanged = true
	return nil
}

// applyFlip reveals a covered tile. Revealing a mine detonates it; there is
// no flood fill — exactly the clicked tile is revealed.
func (e *Engine) applyFlip(p *player.Player, x, y int, out *actionOutcome) *protocol.RejectError {
	t := e.world.At(x, y)
	if t.Revealed {
		return protocol.NewReject(protocol.ReasonAlreadyRevealed, string(security.SeverityLow))
	}
	if t.Flagged {
		return protocol.NewReject(protocol.ReasonTileFlagged, string(security.SeverityLow))
	}

	p.LastAction = time.Now()

	switch t.Kind {
	case world.KindMine:
		explosion, killed := e.detonateLocked(x, y)
		out.explosion = &explosion
		out.killed = killed
		out.tileChanged = true
		out.tileAction = "explode"
		out.playerChanged = true
		out.gameEnded = e.checkGameEndLocked()
		return nil

	case world.KindFlagToken:
		t.Revealed = true
		p.Flags += e.cfg.FlagsPerToken
		p.Score++
		// The collected cell becomes a normal tile with its real count.
		if n := e.world.AdjacentMines(x, y); n > 0 {
			t.Kind = world.KindNumbered
			t.Number = n
		} else {
			t.Kind = world.KindEmpty
		}
		out.tileChanged = true
		out.tileAction = "reveal"
		out.playerChanged = true
		out.scoreChanged = true
		return nil

	default:
		t.Revealed = true
		p.Score++
		out.tileChanged = true
		out.tileAction = "reveal"
		out.playerChanged = true
		out.scoreChanged = true
		return nil
	}
}

// applyFlag plants a flag from the player's inventory. Flags are permanent;
// a flag on a mine scores and advances the mine count.
func (e *Engine) applyFlag(p *player.Player, x, y int, out *actionOutcome) *protocol.RejectError {
	t := e.world.At(x, y)
	if t.Revealed {
		return protocol.NewReject(protocol.ReasonAlreadyRevealed, string(security.SeverityLow))
	}
	if t.Flagged {
		return protocol.NewReject(protocol.ReasonTileFlagged, string(security.SeverityLow))
	}
	if p.Flags < 1 {
		return protocol.NewReject(protocol.ReasonNoFlags, string(security.SeverityLow))
	}

	p.Flags--
	p.LastAction = time.Now()
	t.Flagged = true
	t.FlaggedBy = p.ID

	out.tileChanged = true
	out.tileAction = "flag"
	out.playerChanged = true

	if t.Kind == world.KindMine {
		p.Score += minedFlagScore
		e.world.RecordFlaggedMine()
		out.scoreChanged = true
		out.gameEnded = e.checkGameEndLocked()
	}
	return nil
}

// minedFlagScore rewards a correct flag.
const minedFlagScore = 3

// checkGameEndLocked latches the end state the first time every mine is
// accounted for. Returns true only on the transition so the game-end
// broadcast fires exactly once.
func (e *Engine) checkGameEndLocked() bool {
	if e.gameEndSent || e.world.MinesRemaining() > 0 {
		return false
	}
	e.world.SetEnded()
	e.gameEndSent = true
	e.log.Infof("game", "all mines cleared, game over (total=%d)", e.world.TotalMines())
	return true
}
