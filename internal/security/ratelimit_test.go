package security

import (
	"testing"
	"time"

	"minegrid/internal/config"
)

func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		MoveLimit:         10,
		FlipLimit:         3,
		FlagLimit:         3,
		UnflagLimit:       3,
		GlobalLimit:       6,
		WindowSec:         1,
		ReplayWindowMs:    100,
		DuplicateWindowMs: 1000,
		RetentionMin:      5,
		ReplayStrikeLimit: 3,
	}
}

func TestLimiterPerKindCap(t *testing.T) {
	l := NewLimiter(testSecurityConfig())
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("p1", "flip") {
			t.Fatalf("flip %d should be allowed", i+1)
		}
	}
	if l.Allow("p1", "flip") {
		t.Error("4th flip within the window should be denied")
	}

	// A different kind still has headroom.
	if !l.Allow("p1", "move") {
		t.Error("move should be allowed after flip cap")
	}
}

func TestLimiterGlobalCap(t *testing.T) {
	l := NewLimiter(testSecurityConfig())
	defer l.Stop()

	kinds := []string{"flip", "flip", "flag", "flag", "move", "move"}
	for i, kind := range kinds {
		if !l.Allow("p1", kind) {
			t.Fatalf("action %d (%s) should be allowed", i+1, kind)
		}
	}
	if l.Allow("p1", "move") {
		t.Error("7th action should hit the global cap")
	}
}

func TestLimiterWindowSlides(t *testing.T) {
	l := NewLimiter(testSecurityConfig())
	defer l.Stop()

	for i := 0; i < 3; i++ {
		l.Allow("p1", "flip")
	}
	if l.Allow("p1", "flip") {
		t.Fatal("cap should be hit before the window expires")
	}

	time.Sleep(1100 * time.Millisecond)

	if !l.Allow("p1", "flip") {
		t.Error("flip should be allowed once the window slides past old actions")
	}
}

func TestLimiterPlayersIndependent(t *testing.T) {
	l := NewLimiter(testSecurityConfig())
	defer l.Stop()

	for i := 0; i < 3; i++ {
		l.Allow("p1", "flip")
	}
	if !l.Allow("p2", "flip") {
		t.Error("p2 should not share p1's window")
	}
}

func TestLimiterDenialNotRecorded(t *testing.T) {
	l := NewLimiter(testSecurityConfig())
	defer l.Stop()

	for i := 0; i < 10; i++ {
		l.Allow("p1", "flip")
	}
	// Only 3 admissions count against the global cap; denials are free.
	if !l.Allow("p1", "move") {
		t.Error("denied flips should not consume the global budget")
	}
}

func TestLimiterForget(t *testing.T) {
	l := NewLimiter(testSecurityConfig())
	defer l.Stop()

	for i := 0; i < 3; i++ {
		l.Allow("p1", "flip")
	}
	l.Forget("p1")
	if !l.Allow("p1", "flip") {
		t.Error("forgotten player should start with a fresh window")
	}
}
