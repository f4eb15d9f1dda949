package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"minegrid/internal/config"
	"minegrid/internal/logger"
	"minegrid/internal/player"
	"minegrid/internal/protocol"
	"minegrid/internal/security"
	"minegrid/internal/session"
	"minegrid/internal/world"
)

// Broadcast is one outbound frame planned by the pipeline. An empty
// TargetPlayerID fans out to every connection.
type Broadcast struct {
	Topic          string
	Payload        interface{}
	TargetPlayerID string
}

// AuditRecord is handed to the persistence hook for every handled action.
type AuditRecord struct {
	PlayerID string
	Action   string
	X, Y     int
	Accepted bool
	Reason   string
	At       time.Time
}

// Request is one player action as it enters the pipeline.
type Request struct {
	PlayerID     string
	SessionID    string
	SessionToken string
	Action       string
	X, Y         int
	ViewportW    int
	ViewportH    int
}

// Result is the pipeline outcome. On acceptance the actor's viewport update
// must be sent before any of the broadcasts.
type Result struct {
	Accepted   bool
	Reject     *protocol.RejectError
	Viewport   *protocol.ViewportUpdate
	Broadcasts []Broadcast
}

// Engine owns the world and the player registry and serializes every
// mutation behind a single writer lock. Security state (sessions, limiter,
// guard) keeps finer-grained locks of its own; it is never touched during
// grid mutation.
type Engine struct {
	mu sync.Mutex

	cfg      config.GameConfig
	world    *world.World
	players  *player.Registry
	sessions *session.Manager
	limiter  *security.Limiter
	guard    *security.Guard
	monitor  *security.Monitor
	log      *logger.Logger
	rng      *rand.Rand

	gameEndSent bool

	chainDelay time.Duration
	timers     []*time.Timer
	timersMu   sync.Mutex
	closed     bool

	// OnBroadcast delivers frames produced outside a Handle call: chain
	// detonations and eviction updates.
	OnBroadcast func(Broadcast)

	// OnAudit receives every handled action for the audit store.
	OnAudit func(AuditRecord)
}

func NewEngine(
	cfg config.GameConfig,
	w *world.World,
	players *player.Registry,
	sessions *session.Manager,
	limiter *security.Limiter,
	guard *security.Guard,
	monitor *security.Monitor,
	log *logger.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		world:      w,
		players:    players,
		sessions:   sessions,
		limiter:    limiter,
		guard:      guard,
		monitor:    monitor,
		log:        log,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		chainDelay: time.Duration(cfg.ChainDelayMs) * time.Millisecond,
	}
}

// Close cancels pending chain detonations.
func (e *Engine) Close() {
	e.timersMu.Lock()
	e.closed = true
	for _, t := range e.timers {
		t.Stop()
	}
	e.timers = nil
	e.timersMu.Unlock()
}

// AddPlayer creates a fresh player at a random spawn point.
func (e *Engine) AddPlayer(username, color, connID string) *player.Player {
	e.mu.Lock()
	defer e.mu.Unlock()

	spawns := e.world.Spawns()
	spawn := spawns[e.rng.Intn(len(spawns))]

	p := &player.Player{
		ID:        newPlayerID(),
		Username:  username,
		Color:     color,
		X:         spawn.X,
		Y:         spawn.Y,
		Flags:     startingFlags,
		Alive:     true,
		Connected: true,
		ConnID:    connID,
		JoinedAt:  time.Now(),
	}
	e.players.Add(p)
	return p
}

// RemovePlayer drops the player record entirely (eviction or ban), along
// with the limiter and guard state keyed on it. Returns the removed record
// for the departure broadcast.
func (e *Engine) RemovePlayer(playerID string) *player.Player {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := e.players.Remove(playerID)
	if removed != nil {
		e.limiter.Forget(playerID)
		e.guard.Forget(playerID)
	}
	return removed
}

// startingFlags is the published initial flag inventory.
const startingFlags = 3

func newPlayerID() string {
	return uuid.NewString()
}

// Snapshot helpers used by the fan-out for welcome payloads.

func (e *Engine) GameState() protocol.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return protocol.GameState{
		StartTime:      e.world.StartedAt().UnixMilli(),
		Ended:          e.world.Ended(),
		MinesRemaining: 100 - e.world.Progress(),
	}
}

// PublicState snapshots the public projection of a live player. The fan-out
// must use this instead of reading record fields directly; only the engine
// lock orders those reads against pipeline writes.
func (e *Engine) PublicState(playerID string) (protocol.PlayerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.players.Get(playerID)
	if p == nil {
		return protocol.PlayerState{}, false
	}
	return publicState(p), true
}

// SetConnected flips the connection flag and returns the updated snapshot
// for the presence broadcast.
func (e *Engine) SetConnected(playerID string, connected bool) (protocol.PlayerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.players.Get(playerID)
	if p == nil {
		return protocol.PlayerState{}, false
	}
	e.players.SetConnected(playerID, connected)
	return publicState(p), true
}

// Rebind attaches a reconnecting connection to the player record.
func (e *Engine) Rebind(playerID, connID string) (protocol.PlayerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.players.Get(playerID)
	if p == nil {
		return protocol.PlayerState{}, false
	}
	e.players.Rebind(playerID, connID)
	return publicState(p), true
}

// BindSession attaches the issued session to the record and reindexes the
// registry so credential lookups resolve.
func (e *Engine) BindSession(playerID, sessionID string) (protocol.PlayerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.players.Get(playerID)
	if p == nil {
		return protocol.PlayerState{}, false
	}
	p.SessionID = sessionID
	e.players.Add(p)
	return publicState(p), true
}

// ViewportFor materializes the sanitized window around the player.
func (e *Engine) ViewportFor(playerID string, tilesX, tilesY int) (protocol.Viewport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.players.Get(playerID)
	if p == nil {
		return protocol.Viewport{}, fmt.Errorf("unknown player %s", playerID)
	}
	tiles, players := e.materializeLocked(p, tilesX, tilesY)
	return protocol.Viewport{Tiles: tiles, Players: players}, nil
}

func (e *Engine) audit(rec AuditRecord) {
	if e.OnAudit != nil {
		e.OnAudit(rec)
	}
}

func (e *Engine) emit(b Broadcast) {
	if e.OnBroadcast != nil {
		e.OnBroadcast(b)
	}
}

func publicState(p *player.Player) protocol.PlayerState {
	return protocol.PlayerState{
		ID:        p.ID,
		Username:  p.Username,
		X:         p.X,
		Y:         p.Y,
		Score:     p.Score,
		Flags:     p.Flags,
		Alive:     p.Alive,
		Connected: p.Connected,
		Color:     p.Color,
	}
}

func leaderboardEntries(players []*player.Player) []protocol.LeaderboardEntry {
	entries := make([]protocol.LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, protocol.LeaderboardEntry{
			ID:       p.ID,
			Username: p.Username,
			Score:    p.Score,
			Flags:    p.Flags,
			Alive:    p.Alive,
			Color:    p.Color,
		})
	}
	return entries
}
