package player

import (
	"sort"
	"sync"
)

// Registry maps player-id, connection-id, and session-id to a single player
// record. It keeps its own lock because the session sweeper and the dashboard
// read it outside the engine lock; all writes still funnel through the
// pipeline or the fan-out.
type Registry struct {
	players   map[string]*Player
	bySession map[string]string
	byConn    map[string]string
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		players:   make(map[string]*Player),
		bySession: make(map[string]string),
		byConn:    make(map[string]string),
	}
}

func (r *Registry) Add(p *Player) {
	r.mu.Lock()
	r.players[p.ID] = p
	if p.SessionID != "" {
		r.bySession[p.SessionID] = p.ID
	}
	if p.ConnID != "" {
		r.byConn[p.ConnID] = p.ID
	}
	r.mu.Unlock()
}

// Remove drops the player and both secondary indices. Returns the removed
// record, or nil if unknown.
func (r *Registry) Remove(id string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return nil
	}
	delete(r.players, id)
	delete(r.bySession, p.SessionID)
	delete(r.byConn, p.ConnID)
	return p
}

func (r *Registry) Get(id string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players[id]
}

func (r *Registry) GetBySession(sessionID string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.bySession[sessionID]; ok {
		return r.players[id]
	}
	return nil
}

func (r *Registry) GetByConn(connID string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.byConn[connID]; ok {
		return r.players[id]
	}
	return nil
}

// Rebind attaches a new connection id to an existing player (reconnect).
func (r *Registry) Rebind(id, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return
	}
	delete(r.byConn, p.ConnID)
	p.ConnID = connID
	if connID != "" {
		r.byConn[connID] = id
	}
	p.Connected = connID != ""
}

func (r *Registry) SetConnected(id string, connected bool) {
	r.mu.Lock()
	if p, ok := r.players[id]; ok {
		p.Connected = connected
	}
	r.mu.Unlock()
}

// All returns a snapshot slice of the current records.
func (r *Registry) All() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		result = append(result, p)
	}
	return result
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// Leaderboard returns players with score > 0, highest first. Ties break on
// username so the ordering is stable across broadcasts.
func (r *Registry) Leaderboard() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		if p.Score > 0 {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].Username < result[j].Username
	})
	return result
}
