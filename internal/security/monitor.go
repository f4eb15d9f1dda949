package security

import (
	"sync"
	"time"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) riskWeight() int {
	switch s {
	case SeverityHigh:
		return 5
	case SeverityMedium:
		return 3
	default:
		return 1
	}
}

// Event is one security rejection, kept for the dashboard and persisted by
// the OnEvent hook.
type Event struct {
	Time     time.Time `json:"time"`
	PlayerID string    `json:"playerId"`
	Reason   string    `json:"reason"`
	Severity Severity  `json:"severity"`
}

const maxRecentEvents = 200

// Monitor accumulates per-player risk scores from security rejections and
// holds the operator ban set.
type Monitor struct {
	risk   map[string]int
	recent []Event
	bans   map[string]bool
	mu     sync.RWMutex

	OnEvent func(Event)
}

func NewMonitor() *Monitor {
	return &Monitor{
		risk: make(map[string]int),
		bans: make(map[string]bool),
	}
}

// RecordRejection bumps the player's risk score and retains the event.
func (m *Monitor) RecordRejection(playerID, reason string, severity Severity) {
	ev := Event{Time: time.Now(), PlayerID: playerID, Reason: reason, Severity: severity}

	m.mu.Lock()
	m.risk[playerID] += severity.riskWeight()
	if len(m.recent) >= maxRecentEvents {
		m.recent = m.recent[1:]
	}
	m.recent = append(m.recent, ev)
	m.mu.Unlock()

	if m.OnEvent != nil {
		m.OnEvent(ev)
	}
}

func (m *Monitor) RiskScore(playerID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.risk[playerID]
}

func (m *Monitor) Ban(playerID string) {
	m.mu.Lock()
	m.bans[playerID] = true
	m.mu.Unlock()
}

func (m *Monitor) Unban(playerID string) {
	m.mu.Lock()
	delete(m.bans, playerID)
	m.mu.Unlock()
}

func (m *Monitor) IsBanned(playerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bans[playerID]
}

// Report is the dashboard snapshot.
type Report struct {
	RiskScores   map[string]int `json:"riskScores"`
	RecentEvents []Event        `json:"recentEvents"`
	Banned       []string       `json:"banned"`
}

func (m *Monitor) Snapshot() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scores := make(map[string]int, len(m.risk))
	for id, score := range m.risk {
		scores[id] = score
	}
	events := make([]Event, len(m.recent))
	copy(events, m.recent)
	banned := make([]string, 0, len(m.bans))
	for id := range m.bans {
		banned = append(banned, id)
	}
	return Report{RiskScores: scores, RecentEvents: events, Banned: banned}
}
