package game

import (
	"math"
	"time"

	"minegrid/internal/protocol"
	"minegrid/internal/world"
)

// detonateLocked explodes the mine at the origin. Every tile within the
// Euclidean radius is revealed and marked exploded; non-origin, non-mine
// cells turn into explosion debris. Mines caught in the blast are scheduled
// for their own detonation after the chain delay, producing the cascade.
// Every alive player within the radius of the origin dies.
//
// The caller holds the engine lock.
func (e *Engine) detonateLocked(x, y int) (protocol.Explosion, []string) {
	r := e.cfg.ExplosionRadius
	rSq := r * r

	origin := e.world.At(x, y)
	if !origin.Exploded {
		// Chained origins were already claimed by the blast that scheduled them.
		origin.Exploded = true
		if origin.Flagged {
			origin.Flagged = false
			origin.FlaggedBy = ""
		} else {
			e.world.RecordExplodedMine()
		}
	}
	origin.Revealed = true

	var affected []protocol.TileState
	var chained []world.Point

	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > rSq {
				continue
			}
			t := e.world.At(x+dx, y+dy)
			if t == nil {
				continue
			}

			if t.Kind == world.KindMine {
				if !t.Exploded {
					// Claim the mine now so overlapping blasts schedule it once.
					t.Exploded = true
					if t.Flagged {
						t.Flagged = false
						t.FlaggedBy = ""
					} else {
						e.world.RecordExplodedMine()
					}
					chained = append(chained, world.Point{X: t.X, Y: t.Y})
				}
			} else if !(dx == 0 && dy == 0) {
				t.Kind = world.KindExplosion
				t.Number = 0
				t.Exploded = true
				if t.Flagged {
					t.Flagged = false
					t.FlaggedBy = ""
				}
			}
			t.Revealed = true

			affected = append(affected, protocol.TileState{
				X: t.X, Y: t.Y,
				Revealed: true,
				Kind:     t.Kind.String(),
				Number:   t.Number,
				Exploded: t.Exploded,
			})
		}
	}

	var killed []string
	for _, p := range e.players.All() {
		if !p.Alive {
			continue
		}
		distSq := float64((p.X-x)*(p.X-x) + (p.Y-y)*(p.Y-y))
		if math.Sqrt(distSq) <= float64(r) {
			p.Alive = false
			killed = append(killed, p.ID)
		}
	}

	for _, pt := range chained {
		e.scheduleChain(pt.X, pt.Y)
	}

	e.log.Infof("game", "explosion at (%d,%d): %d tiles, %d killed, %d chained", x, y, len(affected), len(killed), len(chained))

	return protocol.Explosion{X: x, Y: y, AffectedTiles: affected, KilledPlayers: killed}, killed
}

// scheduleChain arms a timer that re-enters the pipeline under the engine
// lock. The delay gives clients a visible ripple instead of one flash.
func (e *Engine) scheduleChain(x, y int) {
	e.timersMu.Lock()
	defer e.timersMu.Unlock()
	if e.closed {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(e.chainDelay, func() {
		e.detonateChained(x, y)
		e.timersMu.Lock()
		for i, t := range e.timers {
			if t == timer {
				e.timers = append(e.timers[:i], e.timers[i+1:]...)
				break
			}
		}
		e.timersMu.Unlock()
	})
	e.timers = append(e.timers, timer)
}

// detonateChained runs a scheduled chain explosion and emits its broadcasts
// through the async channel, since no client request is waiting on it.
func (e *Engine) detonateChained(x, y int) {
	e.mu.Lock()
	explosion, killed := e.detonateLocked(x, y)
	ended := e.checkGameEndLocked()

	var deaths []Broadcast
	for _, id := range killed {
		if victim := e.players.Get(id); victim != nil {
			deaths = append(deaths, Broadcast{
				Topic:   protocol.TopicPlayerUpdate,
				Payload: protocol.PlayerUpdate{Player: publicState(victim)},
			})
		}
		deaths = append(deaths, Broadcast{
			Topic:   protocol.TopicPlayerDeath,
			Payload: protocol.PlayerDeath{PlayerID: id, Reason: "explosion", Delay: protocol.DeathDelayMs},
		})
	}

	var end *Broadcast
	if ended {
		end = &Broadcast{
			Topic: protocol.TopicGameEnd,
			Payload: protocol.GameEnd{
				Reason:      "all_mines_cleared",
				Timestamp:   time.Now().UnixMilli(),
				Leaderboard: leaderboardEntries(e.players.Leaderboard()),
			},
		}
	}
	e.mu.Unlock()

	e.emit(Broadcast{Topic: protocol.TopicExplosion, Payload: explosion})
	for _, b := range deaths {
		e.emit(b)
	}
	if end != nil {
		e.emit(*end)
	}
}
