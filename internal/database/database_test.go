package database

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAuditRoundTrip(t *testing.T) {
	db := testDB(t)
	now := time.Now().Unix()

	entries := []AuditEntry{
		{Timestamp: now, PlayerID: "p1", Action: "flip", X: 3, Y: 4, Accepted: true},
		{Timestamp: now, PlayerID: "p1", Action: "flag", X: 5, Y: 5, Accepted: false, Reason: "no_flags"},
		{Timestamp: now, PlayerID: "p2", Action: "move", X: 1, Y: 1, Accepted: true},
	}
	if err := db.InsertAudits(entries); err != nil {
		t.Fatalf("insert: %v", err)
	}

	all, err := db.RecentAudits("", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("rows = %d, want 3", len(all))
	}

	p1, err := db.RecentAudits("p1", 10)
	if err != nil {
		t.Fatalf("query p1: %v", err)
	}
	if len(p1) != 2 {
		t.Fatalf("p1 rows = %d, want 2", len(p1))
	}
	// Most recent first.
	if p1[0].Action != "flag" || p1[0].Accepted || p1[0].Reason != "no_flags" {
		t.Errorf("unexpected row: %+v", p1[0])
	}
}

func TestPruneAudits(t *testing.T) {
	db := testDB(t)

	old := time.Now().Add(-48 * time.Hour).Unix()
	fresh := time.Now().Unix()
	db.InsertAudits([]AuditEntry{
		{Timestamp: old, PlayerID: "p1", Action: "flip"},
		{Timestamp: fresh, PlayerID: "p1", Action: "flip", X: 1},
	})

	n, err := db.PruneAudits(24 * time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	rows, _ := db.RecentAudits("", 10)
	if len(rows) != 1 || rows[0].Timestamp != fresh {
		t.Errorf("wrong survivor: %+v", rows)
	}
}

func TestEventsAndCounts(t *testing.T) {
	db := testDB(t)
	now := time.Now().Unix()

	db.InsertEvents([]EventEntry{
		{Timestamp: now, PlayerID: "p1", Reason: "replay", Severity: "high"},
		{Timestamp: now, PlayerID: "p1", Reason: "rate_limited", Severity: "medium"},
		{Timestamp: now - 3600, PlayerID: "p2", Reason: "out_of_bounds", Severity: "low"},
	})

	events, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}

	counts, err := db.EventCountByPlayer(now - 60)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts["p1"] != 2 {
		t.Errorf("p1 count = %d, want 2", counts["p1"])
	}
	if counts["p2"] != 0 {
		t.Errorf("p2 count = %d, want 0 (outside cutoff)", counts["p2"])
	}
}

func TestBans(t *testing.T) {
	db := testDB(t)

	db.InsertBan("p1", "replay abuse")
	db.InsertBan("p1", "still banned") // re-ban is an update, not a dup
	db.InsertBan("p2", "")

	banned, err := db.Bans()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(banned) != 2 {
		t.Fatalf("banned = %v, want 2 entries", banned)
	}

	db.RemoveBan("p1")
	banned, _ = db.Bans()
	if len(banned) != 1 || banned[0] != "p2" {
		t.Errorf("after unban: %v, want [p2]", banned)
	}
}

func TestSessionHistory(t *testing.T) {
	db := testDB(t)

	db.RecordSessionStart("sess-1", "p1", "alice")
	db.RecordSessionEnd("sess-1", "idle")

	history, err := db.SessionHistory(10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("rows = %d, want 1", len(history))
	}
	rec := history[0]
	if rec.PlayerID != "p1" || rec.Username != "alice" || rec.EvictReason != "idle" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.DisconnectedAt == 0 {
		t.Error("disconnect time not recorded")
	}
}

func TestGameResults(t *testing.T) {
	db := testDB(t)

	db.InsertGameResult(GameResult{
		StartedAt:   time.Now().Add(-time.Hour).Unix(),
		EndedAt:     time.Now().Unix(),
		TotalMines:  75000,
		WinnerID:    "p1",
		WinnerName:  "alice",
		WinnerScore: 420,
	})

	results, err := db.GameResults(10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("rows = %d, want 1", len(results))
	}
	if results[0].WinnerName != "alice" || results[0].WinnerScore != 420 {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestBufferFlush(t *testing.T) {
	db := testDB(t)
	b := NewBuffer(db)

	for i := 0; i < 5; i++ {
		b.AddAudit(AuditEntry{Timestamp: time.Now().Unix(), PlayerID: "p1", Action: "move", X: i})
	}
	b.AddEvent(EventEntry{Timestamp: time.Now().Unix(), PlayerID: "p1", Reason: "replay", Severity: "high"})
	b.Stop() // final flush

	audits, _ := db.RecentAudits("", 10)
	if len(audits) != 5 {
		t.Errorf("audits = %d, want 5", len(audits))
	}
	events, _ := db.RecentEvents(10)
	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}
}
