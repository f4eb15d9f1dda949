package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"minegrid/internal/config"
	"minegrid/internal/logger"
)

// Session binds exactly one player-id to a signed token for its lifetime.
type Session struct {
	ID        string
	PlayerID  string
	Username  string
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time

	lastActivity time.Time
}

// Manager issues and validates HMAC-signed session tokens and evicts idle
// sessions. Validation fails closed: any mismatch yields no session.
type Manager struct {
	secret   []byte
	sessions map[string]*Session
	mu       sync.RWMutex

	idleTimeout   time.Duration
	maxAge        time.Duration
	sweepInterval time.Duration

	// OnEvict fires outside the manager lock when the sweeper drops a
	// session; the fan-out uses it to remove the player.
	OnEvict func(sessionID, playerID, reason string)

	log     *logger.Logger
	stop    chan struct{}
	stopped chan struct{}
}

func NewManager(cfg config.SessionConfig, log *logger.Logger) (*Manager, error) {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}

	return &Manager{
		secret:        secret,
		sessions:      make(map[string]*Session),
		idleTimeout:   time.Duration(cfg.IdleTimeoutSec) * time.Second,
		maxAge:        time.Duration(cfg.MaxAgeHours) * time.Hour,
		sweepInterval: time.Duration(cfg.SweepIntervalSec) * time.Second,
		log:           log,
		stop:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}, nil
}

// Create issues a fresh session for the player. The session id is 16 random
// bytes hex; the token signs id, player, username, and creation time.
func (m *Manager) Create(playerID, username string) (*Session, error) {
	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := time.Now()
	s := &Session{
		ID:           hex.EncodeToString(idBytes),
		PlayerID:     playerID,
		Username:     username,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.maxAge),
		lastActivity: now,
	}
	s.Token = m.sign(s)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s, nil
}

// Validate returns the bound player id if the session exists, has not
// expired, and the presented token matches in constant time. A successful
// validation bumps last-activity.
func (m *Manager) Validate(sessionID, token string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return "", false
	}

	now := time.Now()
	if now.After(s.ExpiresAt) || now.Sub(s.lastActivity) > m.idleTimeout {
		return "", false
	}

	if !hmac.Equal([]byte(token), []byte(s.Token)) {
		return "", false
	}

	s.lastActivity = now
	return s.PlayerID, true
}

// Touch bumps last-activity without a token check. Used for connection-level
// liveness (pings) where the token was already validated.
func (m *Manager) Touch(sessionID string) {
	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		s.lastActivity = time.Now()
	}
	m.mu.Unlock()
}

// Invalidate drops every session bound to the player id (ban path).
func (m *Manager) Invalidate(playerID string) {
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.PlayerID == playerID {
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Start launches the idle sweeper.
func (m *Manager) Start() {
	go m.sweepLoop()
}

func (m *Manager) Stop() {
	close(m.stop)
	<-m.stopped
}

func (m *Manager) sweepLoop() {
	defer close(m.stopped)
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	type evicted struct {
		sessionID, playerID, reason string
	}

	now := time.Now()
	var victims []evicted

	m.mu.Lock()
	for id, s := range m.sessions {
		switch {
		case now.After(s.ExpiresAt):
			delete(m.sessions, id)
			victims = append(victims, evicted{id, s.PlayerID, "expired"})
		case now.Sub(s.lastActivity) > m.idleTimeout:
			delete(m.sessions, id)
			victims = append(victims, evicted{id, s.PlayerID, "idle"})
		}
	}
	m.mu.Unlock()

	for _, v := range victims {
		m.log.Infof("session", "evicted session %s (player %s, %s)", v.sessionID, v.playerID, v.reason)
		if m.OnEvict != nil {
			m.OnEvict(v.sessionID, v.playerID, v.reason)
		}
	}
}

func (m *Manager) sign(s *Session) string {
	mac := hmac.New(sha256.New, m.secret)
	fmt.Fprintf(mac, "%s|%s|%s|%d", s.ID, s.PlayerID, s.Username, s.CreatedAt.Unix())
	return hex.EncodeToString(mac.Sum(nil))
}
