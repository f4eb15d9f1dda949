package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"minegrid/internal/config"
	"minegrid/internal/game"
	"minegrid/internal/logger"
	"minegrid/internal/player"
	"minegrid/internal/protocol"
	"minegrid/internal/security"
	"minegrid/internal/session"
)

// Server is the websocket fan-out. It owns the client set and the mapping
// from player ids to live connections; game semantics stay in the engine.
type Server struct {
	clients  map[string]*Client
	byPlayer map[string]*Client
	clientMu sync.RWMutex

	engine   *game.Engine
	sessions *session.Manager
	monitor  *security.Monitor

	httpSrv  *http.Server
	upgrader websocket.Upgrader

	running atomic.Bool
	wg      sync.WaitGroup

	log *logger.Logger
	cfg *config.ServerConfig

	// OnSessionStart and OnSessionEnd feed the session history store.
	OnSessionStart func(sessionID, playerID, username string)
	OnSessionEnd   func(sessionID, reason string)

	// OnBan and OnUnban feed the persistent ban table so operator bans
	// survive a restart.
	OnBan   func(playerID, reason string)
	OnUnban func(playerID string)

	// Dashboard supplies the operator report payload on demand.
	Dashboard func() protocol.DashboardReport

	// OnGameEnd observes the end-of-game broadcast for the results store.
	OnGameEnd func(protocol.GameEnd)
}

func NewServer(
	cfg *config.ServerConfig,
	engine *game.Engine,
	sessions *session.Manager,
	monitor *security.Monitor,
	log *logger.Logger,
) *Server {
	s := &Server{
		clients:  make(map[string]*Client),
		byPlayer: make(map[string]*Client),
		engine:   engine,
		sessions: sessions,
		monitor:  monitor,
		log:      log,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The game client is served from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	engine.OnBroadcast = s.Dispatch
	sessions.OnEvict = s.handleEviction

	return s
}

// Start begins listening for websocket connections.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.running.Store(true)
	s.log.Infof("server", "listening on %s", addr)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("server", "listen error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpSrv != nil {
		s.httpSrv.Shutdown(ctx)
	}

	s.clientMu.Lock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.clientMu.Unlock()

	s.wg.Wait()
	s.log.Info("server", "stopped")
}

func (s *Server) IsRunning() bool {
	return s.running.Load()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("server", "upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	c := newClient(conn, s)

	s.clientMu.Lock()
	s.clients[c.id] = c
	s.clientMu.Unlock()

	s.log.Infof("server", "new connection from %s (conn %s)", conn.RemoteAddr(), c.id)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.readLoop()
	}()
}

// bindPlayer associates a live connection with a player id for unicasts.
func (s *Server) bindPlayer(playerID string, c *Client) {
	s.clientMu.Lock()
	s.byPlayer[playerID] = c
	s.clientMu.Unlock()
}

func (s *Server) removeClient(c *Client) {
	s.clientMu.Lock()
	delete(s.clients, c.id)
	if c.playerID != "" && s.byPlayer[c.playerID] == c {
		delete(s.byPlayer, c.playerID)
	}
	s.clientMu.Unlock()

	// A dropped socket leaves the player record in place so the session can
	// reclaim it; only the sweeper or a ban removes the record.
	if c.playerID != "" {
		if snap, ok := s.engine.SetConnected(c.playerID, false); ok {
			s.Broadcast(protocol.TopicPlayerUpdate, protocol.PlayerUpdate{Player: snap})
		}
	}

	s.log.Infof("server", "conn %s disconnected (player %s)", c.id, c.playerID)
}

// Broadcast fans a frame out to every live connection.
func (s *Server) Broadcast(topic string, payload interface{}) {
	data := protocol.Encode(topic, payload)
	if data == nil {
		return
	}

	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	for _, c := range s.clients {
		c.sendRaw(data)
	}
}

// Unicast sends a frame to the connection bound to the player, if any.
func (s *Server) Unicast(playerID, topic string, payload interface{}) {
	s.clientMu.RLock()
	c := s.byPlayer[playerID]
	s.clientMu.RUnlock()

	if c != nil {
		c.send(topic, payload)
	}
}

// Dispatch routes a planned frame. Both the request path and the engine's
// async path (chain detonations, evictions) funnel through here.
func (s *Server) Dispatch(b game.Broadcast) {
	if b.Topic == protocol.TopicGameEnd && s.OnGameEnd != nil {
		if end, ok := b.Payload.(protocol.GameEnd); ok {
			s.OnGameEnd(end)
		}
	}
	if b.TargetPlayerID != "" {
		s.Unicast(b.TargetPlayerID, b.Topic, b.Payload)
		return
	}
	s.Broadcast(b.Topic, b.Payload)
}

// handleEviction runs when the session sweeper drops a session: the player
// record goes away and everyone hears about the departure.
func (s *Server) handleEviction(sessionID, playerID, reason string) {
	if s.OnSessionEnd != nil {
		s.OnSessionEnd(sessionID, reason)
	}

	removed := s.engine.RemovePlayer(playerID)
	if removed == nil {
		return
	}

	s.clientMu.Lock()
	c := s.byPlayer[playerID]
	delete(s.byPlayer, playerID)
	s.clientMu.Unlock()

	removed.Connected = false
	s.Broadcast(protocol.TopicPlayerUpdate, protocol.PlayerUpdate{Player: playerPublic(removed)})

	if c != nil {
		c.conn.Close()
	}
}

// DisconnectPlayer force-closes the connection bound to a player (ban path).
func (s *Server) DisconnectPlayer(playerID string) {
	s.clientMu.RLock()
	c := s.byPlayer[playerID]
	s.clientMu.RUnlock()
	if c != nil {
		c.conn.Close()
	}
}

func (s *Server) ClientCount() int {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return len(s.clients)
}

// playerPublic projects a record that already left the registry (departure
// broadcasts). Live players go through Engine.PublicState, which snapshots
// under the engine lock.
func playerPublic(p *player.Player) protocol.PlayerState {
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
