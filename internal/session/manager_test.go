package session

import (
	"strings"
	"testing"
	"time"

	"minegrid/internal/config"
	"minegrid/internal/logger"
)

func testManager(t *testing.T, cfg config.SessionConfig) *Manager {
	t.Helper()

	log, err := logger.New(t.TempDir(), "error")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	t.Cleanup(log.Close)

	m, err := NewManager(cfg, log)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func defaultSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		IdleTimeoutSec:   60,
		MaxAgeHours:      24,
		SweepIntervalSec: 60,
		Secret:           "test-secret",
	}
}

func TestCreateValidateRoundTrip(t *testing.T) {
	m := testManager(t, defaultSessionConfig())

	s, err := m.Create("player-1", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(s.ID) != 32 {
		t.Errorf("session id length = %d, want 32 hex chars", len(s.ID))
	}
	if s.Token == "" {
		t.Fatal("empty token")
	}

	playerID, ok := m.Validate(s.ID, s.Token)
	if !ok {
		t.Fatal("valid credentials rejected")
	}
	if playerID != "player-1" {
		t.Errorf("bound player = %q, want player-1", playerID)
	}
}

func TestValidateFailsClosed(t *testing.T) {
	m := testManager(t, defaultSessionConfig())
	s, _ := m.Create("player-1", "alice")

	cases := []struct {
		name      string
		sessionID string
		token     string
	}{
		{"unknown session", "0000", s.Token},
		{"empty token", s.ID, ""},
		{"tampered token", s.ID, strings.Repeat("a", len(s.Token))},
		{"truncated token", s.ID, s.Token[:len(s.Token)-2]},
		{"swapped credentials", s.Token, s.ID},
	}
	for _, tc := range cases {
		if _, ok := m.Validate(tc.sessionID, tc.token); ok {
			t.Errorf("%s: validation should fail", tc.name)
		}
	}
}

func TestTokensDifferPerSession(t *testing.T) {
	m := testManager(t, defaultSessionConfig())
	a, _ := m.Create("player-1", "alice")
	b, _ := m.Create("player-2", "bob")

	if a.Token == b.Token {
		t.Error("two sessions share a token")
	}
	// One session's token never validates another session.
	if _, ok := m.Validate(a.ID, b.Token); ok {
		t.Error("cross-session token accepted")
	}
}

func TestInvalidate(t *testing.T) {
	m := testManager(t, defaultSessionConfig())
	s, _ := m.Create("player-1", "alice")

	m.Invalidate("player-1")
	if _, ok := m.Validate(s.ID, s.Token); ok {
		t.Error("invalidated session still validates")
	}
	if m.Count() != 0 {
		t.Errorf("count = %d, want 0", m.Count())
	}
}

func TestIdleExpiry(t *testing.T) {
	cfg := defaultSessionConfig()
	cfg.IdleTimeoutSec = 1
	m := testManager(t, cfg)

	s, _ := m.Create("player-1", "alice")
	time.Sleep(1100 * time.Millisecond)

	if _, ok := m.Validate(s.ID, s.Token); ok {
		t.Error("idle session still validates")
	}
}

func TestValidateBumpsActivity(t *testing.T) {
	cfg := defaultSessionConfig()
	cfg.IdleTimeoutSec = 1
	m := testManager(t, cfg)

	s, _ := m.Create("player-1", "alice")

	// Keep touching inside the idle window; the session must stay alive past
	// its original deadline.
	for i := 0; i < 3; i++ {
		time.Sleep(600 * time.Millisecond)
		if _, ok := m.Validate(s.ID, s.Token); !ok {
			t.Fatalf("active session expired on touch %d", i)
		}
	}
}

func TestSweepEvictsIdle(t *testing.T) {
	cfg := defaultSessionConfig()
	cfg.IdleTimeoutSec = 1
	m := testManager(t, cfg)

	var evictedPlayer, evictedReason string
	m.OnEvict = func(sessionID, playerID, reason string) {
		evictedPlayer = playerID
		evictedReason = reason
	}

	m.Create("player-1", "alice")
	time.Sleep(1100 * time.Millisecond)
	m.sweep()

	if m.Count() != 0 {
		t.Errorf("count after sweep = %d, want 0", m.Count())
	}
	if evictedPlayer != "player-1" || evictedReason != "idle" {
		t.Errorf("evict hook got (%q, %q), want (player-1, idle)", evictedPlayer, evictedReason)
	}
}
