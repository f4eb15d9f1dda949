package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"minegrid/internal/config"
)

// Violation describes why the guard refused an action.
type Violation struct {
	Reason   string
	Severity Severity
}

type actionRecord struct {
	kind    string
	payload string
	at      time.Time
}

type playerHistory struct {
	recent   []actionRecord
	flagRuns int
	lastKind string
}

// Guard detects exact replays, near-duplicate submissions, and implausible
// action sequences. It hashes every accepted action with a second-granularity
// timestamp and retains records for the configured window.
type Guard struct {
	cfg config.SecurityConfig

	hashes  map[string]time.Time
	players map[string]*playerHistory
	strikes map[string]int
	mu      sync.Mutex
}

func NewGuard(cfg config.SecurityConfig) *Guard {
	return &Guard{
		cfg:     cfg,
		hashes:  make(map[string]time.Time),
		players: make(map[string]*playerHistory),
		strikes: make(map[string]int),
	}
}

// Check vets the action against the recorded history. It never records: the
// caller commits the action with Record once the rules accept it, so a
// rule-rejected submission resubmitted later sees the rule reason again
// instead of a duplicate. Alternation tracking counts attempts and therefore
// updates here.
func (g *Guard) Check(playerID, kind, payload string, now time.Time) *Violation {
	hash := contentHash(playerID, kind, payload, now)
	replayWindow := time.Duration(g.cfg.ReplayWindowMs) * time.Millisecond
	dupWindow := time.Duration(g.cfg.DuplicateWindowMs) * time.Millisecond

	g.mu.Lock()
	defer g.mu.Unlock()

	if seen, ok := g.hashes[hash]; ok && now.Sub(seen) <= replayWindow {
		g.strikes[playerID]++
		return &Violation{Reason: "replay", Severity: SeverityHigh}
	}

	h := g.history(playerID)
	g.prune(h, now)

	for i := len(h.recent) - 1; i >= 0; i-- {
		r := h.recent[i]
		if now.Sub(r.at) > dupWindow {
			break
		}
		if r.kind == kind && r.payload == payload {
			return &Violation{Reason: "duplicate", Severity: SeverityMedium}
		}
	}

	if g.burstTooDense(h, now) {
		return &Violation{Reason: "sequence", Severity: SeverityHigh}
	}

	if v := g.checkFlagAlternation(h, kind); v != nil {
		return v
	}

	return nil
}

// Record commits an accepted action into the replay and burst histories.
func (g *Guard) Record(playerID, kind, payload string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.hashes[contentHash(playerID, kind, payload, now)] = now
	h := g.history(playerID)
	h.recent = append(h.recent, actionRecord{kind: kind, payload: payload, at: now})
}

func (g *Guard) history(playerID string) *playerHistory {
	h, ok := g.players[playerID]
	if !ok {
		h = &playerHistory{}
		g.players[playerID] = h
	}
	return h
}

// burstTooDense reports whether any 1 s span within the last 5 s holds the
// configured burst of actions or more.
func (g *Guard) burstTooDense(h *playerHistory, now time.Time) bool {
	const burst = 10
	horizon := now.Add(-5 * time.Second)

	var times []time.Time
	for _, r := range h.recent {
		if r.at.After(horizon) {
			times = append(times, r.at)
		}
	}
	times = append(times, now)

	lo := 0
	for hi := range times {
		for times[hi].Sub(times[lo]) > time.Second {
			lo++
		}
		if hi-lo+1 >= burst {
			return true
		}
	}
	return false
}

func (g *Guard) checkFlagAlternation(h *playerHistory, kind string) *Violation {
	isFlagKind := kind == "flag" || kind == "unflag"
	if isFlagKind && (h.lastKind == "flag" || h.lastKind == "unflag") && h.lastKind != kind {
		h.flagRuns++
	} else {
		h.flagRuns = 0
	}
	h.lastKind = kind

	if h.flagRuns >= 6 {
		return &Violation{Reason: "flag_alternation", Severity: SeverityMedium}
	}
	return nil
}

func (g *Guard) prune(h *playerHistory, now time.Time) {
	retention := time.Duration(g.cfg.RetentionMin) * time.Minute
	cutoff := now.Add(-retention)

	i := 0
	for i < len(h.recent) && h.recent[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		h.recent = append(h.recent[:0:0], h.recent[i:]...)
	}
}

// Purge drops hashes and histories older than the retention window. Called
// periodically by the owner.
func (g *Guard) Purge(now time.Time) {
	retention := time.Duration(g.cfg.RetentionMin) * time.Minute
	cutoff := now.Add(-retention)

	g.mu.Lock()
	defer g.mu.Unlock()

	for h, at := range g.hashes {
		if at.Before(cutoff) {
			delete(g.hashes, h)
		}
	}
	for id, h := range g.players {
		g.prune(h, now)
		if len(h.recent) == 0 {
			delete(g.players, id)
		}
	}
}

// Strikes returns the replay strike count for the player.
func (g *Guard) Strikes(playerID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.strikes[playerID]
}

// Flagged reports whether the player has accumulated enough replay strikes
// to warrant operator review. The guard never auto-bans.
func (g *Guard) Flagged(playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.strikes[playerID] >= g.cfg.ReplayStrikeLimit
}

func (g *Guard) Forget(playerID string) {
	g.mu.Lock()
	delete(g.players, playerID)
	delete(g.strikes, playerID)
	g.mu.Unlock()
}

func contentHash(playerID, kind, payload string, now time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", playerID, kind, payload, now.Unix())))
	return hex.EncodeToString(sum[:])
}
