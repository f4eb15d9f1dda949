package security

import (
	"sync"
	"time"

	"minegrid/internal/config"
)

// Limiter enforces per-player, per-action-kind sliding windows plus a global
// per-player cap. Admission records the action; denial does not.
type Limiter struct {
	cfg    config.SecurityConfig
	window time.Duration

	players map[string]*playerWindow
	mu      sync.Mutex

	stop    chan struct{}
	stopped chan struct{}
}

type playerWindow struct {
	perKind  map[string][]time.Time
	all      []time.Time
	lastSeen time.Time
}

func NewLimiter(cfg config.SecurityConfig) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		window:  time.Duration(cfg.WindowSec) * time.Second,
		players: make(map[string]*playerWindow),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.gcLoop()
	return l
}

// Allow admits the action iff both the per-kind and the global cap hold for
// the current window, and records it on admission.
func (l *Limiter) Allow(playerID, kind string) bool {
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	pw, ok := l.players[playerID]
	if !ok {
		pw = &playerWindow{perKind: make(map[string][]time.Time)}
		l.players[playerID] = pw
	}
	pw.lastSeen = now

	pw.all = trim(pw.all, cutoff)
	kindTimes := trim(pw.perKind[kind], cutoff)
	pw.perKind[kind] = kindTimes

	if len(kindTimes) >= l.limitFor(kind) || len(pw.all) >= l.cfg.GlobalLimit {
		return false
	}

	pw.perKind[kind] = append(kindTimes, now)
	pw.all = append(pw.all, now)
	return true
}

func (l *Limiter) limitFor(kind string) int {
	switch kind {
	case "move":
		return l.cfg.MoveLimit
	case "flip":
		return l.cfg.FlipLimit
	case "flag":
		return l.cfg.FlagLimit
	case "unflag":
		return l.cfg.UnflagLimit
	default:
		return l.cfg.GlobalLimit
	}
}

// Forget drops all state for a player (eviction or ban).
func (l *Limiter) Forget(playerID string) {
	l.mu.Lock()
	delete(l.players, playerID)
	l.mu.Unlock()
}

func (l *Limiter) Stop() {
	close(l.stop)
	<-l.stopped
}

func (l *Limiter) gcLoop() {
	defer close(l.stopped)
	retention := time.Duration(l.cfg.RetentionMin) * time.Minute
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			l.mu.Lock()
			for id, pw := range l.players {
				if pw.lastSeen.Before(cutoff) {
					delete(l.players, id)
				}
			}
			l.mu.Unlock()
		}
	}
}

// trim discards timestamps at or before the cutoff. Slices are appended in
// time order, so a single scan from the front suffices.
func trim(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	return append(times[:0:0], times[i:]...)
}
