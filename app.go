package main

import (
	"fmt"
	"os"
	"time"

	"minegrid/internal/config"
	"minegrid/internal/database"
	"minegrid/internal/game"
	"minegrid/internal/logger"
	"minegrid/internal/player"
	"minegrid/internal/protocol"
	"minegrid/internal/security"
	"minegrid/internal/server"
	"minegrid/internal/session"
	"minegrid/internal/world"
)

const auditRetention = 7 * 24 * time.Hour

// App wires all subsystems together and owns their lifecycle.
type App struct {
	config   *config.Config
	log      *logger.Logger
	world    *world.World
	players  *player.Registry
	sessions *session.Manager
	limiter  *security.Limiter
	guard    *security.Guard
	monitor  *security.Monitor
	engine   *game.Engine
	server   *server.Server

	// Database persistence
	db     *database.DB
	buffer *database.Buffer

	stopStats chan struct{}
}

func NewApp() *App {
	return &App{
		players:   player.NewRegistry(),
		monitor:   security.NewMonitor(),
		stopStats: make(chan struct{}),
	}
}

// Startup brings every subsystem online. Order matters: persistence and the
// world come up before the engine, the engine before the fan-out.
func (a *App) Startup() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("WARNING: failed to load config: %v, using defaults\n", err)
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.config = cfg

	log, err := logger.New(cfg.LogDir(), cfg.App.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.log = log
	// Mirror error-level entries to stderr; headless deployments watch the
	// process stream, not the log file.
	a.log.OnNewEntry = func(e logger.LogEntry) {
		if e.Level == "error" {
			fmt.Fprintf(os.Stderr, "[%s] [%s] %s\n", e.Timestamp, e.Component, e.Message)
		}
	}
	a.log.Info("app", "minegrid starting up")

	db, err := database.Open(cfg.DBPath())
	if err != nil {
		// The game runs fine without the audit store; it just leaves no trail.
		a.log.Errorf("app", "failed to open database: %v (audit trail disabled)", err)
	} else {
		a.db = db
		a.buffer = database.NewBuffer(db)
		a.buffer.OnError = func(err error) {
			a.log.Errorf("database", "flush failed: %v", err)
		}
		a.log.Infof("app", "database opened at %s", cfg.DBPath())
		a.restoreBans()
	}

	seed := cfg.Game.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	a.world = world.Generate(cfg.Game, seed)
	a.log.Infof("app", "world generated: %dx%d, %d mines, %d spawns (seed %d)",
		a.world.Size(), a.world.Size(), a.world.TotalMines(), len(a.world.Spawns()), seed)

	a.sessions, err = session.NewManager(cfg.Session, a.log)
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}

	a.limiter = security.NewLimiter(cfg.Security)
	a.guard = security.NewGuard(cfg.Security)

	a.engine = game.NewEngine(cfg.Game, a.world, a.players, a.sessions, a.limiter, a.guard, a.monitor, a.log)
	a.server = server.NewServer(&cfg.Server, a.engine, a.sessions, a.monitor, a.log)

	a.wirePersistence()
	a.server.Dashboard = a.dashboardReport

	a.sessions.Start()
	if err := a.server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	go a.statsLoop()

	return nil
}

// Shutdown stops subsystems in reverse startup order.
func (a *App) Shutdown() {
	a.log.Info("app", "shutting down")

	close(a.stopStats)
	a.server.Stop()
	a.sessions.Stop()
	a.engine.Close()
	a.limiter.Stop()

	if a.buffer != nil {
		a.buffer.Stop()
	}
	if a.db != nil {
		a.db.Close()
	}

	a.log.Info("app", "shutdown complete")
	a.log.Close()
}

// wirePersistence points the engine and server hooks at the write-behind
// buffer and the history tables.
func (a *App) wirePersistence() {
	if a.db == nil {
		return
	}

	a.engine.OnAudit = func(rec game.AuditRecord) {
		a.buffer.AddAudit(database.AuditEntry{
			Timestamp: rec.At.Unix(),
			PlayerID:  rec.PlayerID,
			Action:    rec.Action,
			X:         rec.X,
			Y:         rec.Y,
			Accepted:  rec.Accepted,
			Reason:    rec.Reason,
		})
	}

	a.monitor.OnEvent = func(ev security.Event) {
		a.buffer.AddEvent(database.EventEntry{
			Timestamp: ev.Time.Unix(),
			PlayerID:  ev.PlayerID,
			Reason:    ev.Reason,
			Severity:  string(ev.Severity),
		})
	}

	a.server.OnSessionStart = func(sessionID, playerID, username string) {
		if err := a.db.RecordSessionStart(sessionID, playerID, username); err != nil {
			a.log.Errorf("database", "record session start: %v", err)
		}
	}
	a.server.OnSessionEnd = func(sessionID, reason string) {
		if err := a.db.RecordSessionEnd(sessionID, reason); err != nil {
			a.log.Errorf("database", "record session end: %v", err)
		}
	}

	a.server.OnBan = func(playerID, reason string) {
		if err := a.db.InsertBan(playerID, reason); err != nil {
			a.log.Errorf("database", "record ban: %v", err)
		}
	}
	a.server.OnUnban = func(playerID string) {
		if err := a.db.RemoveBan(playerID); err != nil {
			a.log.Errorf("database", "remove ban: %v", err)
		}
	}

	a.server.OnGameEnd = func(end protocol.GameEnd) {
		result := database.GameResult{
			StartedAt:  a.world.StartedAt().Unix(),
			EndedAt:    end.Timestamp / 1000,
			TotalMines: a.world.TotalMines(),
		}
		if len(end.Leaderboard) > 0 {
			result.WinnerID = end.Leaderboard[0].ID
			result.WinnerName = end.Leaderboard[0].Username
			result.WinnerScore = end.Leaderboard[0].Score
		}
		if err := a.db.InsertGameResult(result); err != nil {
			a.log.Errorf("database", "record game result: %v", err)
		}
		a.log.Infof("app", "game over: %s wins with %d", result.WinnerName, result.WinnerScore)
	}
}

// restoreBans reloads the operator ban set across restarts.
func (a *App) restoreBans() {
	banned, err := a.db.Bans()
	if err != nil {
		a.log.Errorf("app", "load bans: %v", err)
		return
	}
	for _, id := range banned {
		a.monitor.Ban(id)
	}
	if len(banned) > 0 {
		a.log.Infof("app", "restored %d bans", len(banned))
	}
}

// dashboardHistoryLimit bounds the history slices in the operator report.
const dashboardHistoryLimit = 50

func (a *App) dashboardReport() protocol.DashboardReport {
	report := protocol.DashboardReport{
		Players:   a.players.Count(),
		Connected: a.players.ConnectedCount(),
		Sessions:  a.sessions.Count(),
		GameState: a.engine.GameState(),
		Security:  a.monitor.Snapshot(),
		RecentLog: a.log.GetEntries(dashboardHistoryLimit),
	}
	if a.db == nil {
		return report
	}

	// Flush pending writes so the report reflects the newest rows.
	a.buffer.Flush()
	report.DBSizeBytes = a.db.Size()

	if events, err := a.db.RecentEvents(dashboardHistoryLimit); err != nil {
		a.log.Errorf("database", "dashboard events: %v", err)
	} else {
		report.RecentEvents = events
	}
	if audits, err := a.db.RecentAudits("", dashboardHistoryLimit); err != nil {
		a.log.Errorf("database", "dashboard audits: %v", err)
	} else {
		report.RecentAudits = audits
	}
	if counts, err := a.db.EventCountByPlayer(time.Now().Add(-time.Hour).Unix()); err != nil {
		a.log.Errorf("database", "dashboard event counts: %v", err)
	} else {
		report.EventCounts = counts
	}
	return report
}

// statsLoop handles the periodic housekeeping: replay-guard purges, audit
// pruning, and the heartbeat log line.
func (a *App) statsLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	var pruneCountdown int

	for {
		select {
		case <-a.stopStats:
			return
		case <-ticker.C:
			a.guard.Purge(time.Now())

			a.log.Infof("app", "status: %d players (%d connected), %d sessions, %d%% cleared",
				a.players.Count(), a.players.ConnectedCount(), a.sessions.Count(), a.world.Progress())

			pruneCountdown--
			if pruneCountdown <= 0 && a.db != nil {
				pruneCountdown = 60
				if n, err := a.db.PruneAudits(auditRetention); err != nil {
					a.log.Errorf("database", "prune audits: %v", err)
				} else if n > 0 {
					a.log.Infof("database", "pruned %d audit rows", n)
				}
				if n, err := a.db.PruneEvents(auditRetention); err != nil {
					a.log.Errorf("database", "prune events: %v", err)
				} else if n > 0 {
					a.log.Infof("database", "pruned %d security events", n)
				}
			}
		}
	}
}
