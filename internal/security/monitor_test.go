package security

import "testing"

func TestMonitorRiskWeights(t *testing.T) {
	m := NewMonitor()
	m.RecordRejection("p1", "out_of_bounds", SeverityLow)
	m.RecordRejection("p1", "rate_limited", SeverityMedium)
	m.RecordRejection("p1", "replay", SeverityHigh)

	if got := m.RiskScore("p1"); got != 9 {
		t.Errorf("risk = %d, want 9", got)
	}
	if got := m.RiskScore("p2"); got != 0 {
		t.Errorf("clean player risk = %d, want 0", got)
	}
}

func TestMonitorBans(t *testing.T) {
	m := NewMonitor()
	if m.IsBanned("p1") {
		t.Fatal("fresh player should not be banned")
	}

	m.Ban("p1")
	if !m.IsBanned("p1") {
		t.Error("banned player not reported")
	}

	m.Unban("p1")
	if m.IsBanned("p1") {
		t.Error("unbanned player still reported")
	}
}

func TestMonitorOnEvent(t *testing.T) {
	m := NewMonitor()
	var got Event
	m.OnEvent = func(ev Event) { got = ev }

	m.RecordRejection("p1", "replay", SeverityHigh)

	if got.PlayerID != "p1" || got.Reason != "replay" || got.Severity != SeverityHigh {
		t.Errorf("hook received %+v", got)
	}
}

func TestMonitorSnapshot(t *testing.T) {
	m := NewMonitor()
	m.RecordRejection("p1", "replay", SeverityHigh)
	m.Ban("p2")

	report := m.Snapshot()
	if report.RiskScores["p1"] != 5 {
		t.Errorf("snapshot risk = %d, want 5", report.RiskScores["p1"])
	}
	if len(report.RecentEvents) != 1 {
		t.Errorf("snapshot events = %d, want 1", len(report.RecentEvents))
	}
	if len(report.Banned) != 1 || report.Banned[0] != "p2" {
		t.Errorf("snapshot banned = %v, want [p2]", report.Banned)
	}

	// The snapshot is a copy.
	report.RiskScores["p1"] = 999
	if m.RiskScore("p1") != 5 {
		t.Error("mutating the snapshot leaked into the monitor")
	}
}

func TestMonitorRecentEventsBounded(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < maxRecentEvents+50; i++ {
		m.RecordRejection("p1", "rate_limited", SeverityLow)
	}
	if got := len(m.Snapshot().RecentEvents); got != maxRecentEvents {
		t.Errorf("recent events = %d, want %d", got, maxRecentEvents)
	}
}
