package server

import (
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"minegrid/internal/game"
	"minegrid/internal/player"
	"minegrid/internal/protocol"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxFrameBytes  = 16 * 1024
	defaultName    = "anonymous"
	defaultColor   = "hsl(200, 70%, 50%)"
)

// Client is one websocket connection. A connection starts anonymous; the
// first player-preferences frame binds it to a new or reclaimed player.
type Client struct {
	id   string
	conn *websocket.Conn
	srv  *Server

	playerID     string
	sessionID    string
	sessionToken string

	writeMu sync.Mutex
}

func newClient(conn *websocket.Conn, srv *Server) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		srv:  srv,
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.conn.Close()
		c.srv.removeClient(c)
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		if c.sessionID != "" {
			c.srv.sessions.Touch(c.sessionID)
		}
		return nil
	})

	pingStop := make(chan struct{})
	defer close(pingStop)
	go c.pingLoop(pingStop)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.srv.log.Debugf("server", "conn %s read error: %v", c.id, err)
			}
			return
		}

		msg, err := protocol.Parse(data)
		if err != nil {
			c.srv.log.Debugf("server", "conn %s bad frame: %v", c.id, err)
			continue
		}

		switch msg.Topic {
		case protocol.TopicPlayerPreferences:
			c.handlePreferences(msg)
		case protocol.TopicPlayerAction:
			c.handleAction(msg)
		case protocol.TopicDisconnect:
			c.handleDisconnect()
			return
		case protocol.TopicSecurityDashboard:
			c.handleDashboard(msg)
		default:
			c.srv.log.Debugf("server", "conn %s unknown topic %q", c.id, msg.Topic)
		}
	}
}

func (c *Client) pingLoop(stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handlePreferences runs the join/reconnect handshake.
func (c *Client) handlePreferences(msg *protocol.Message) {
	var prefs protocol.PlayerPreferences
	if err := protocol.Decode(msg, &prefs); err != nil {
		c.srv.log.Debugf("server", "conn %s bad preferences: %v", c.id, err)
		return
	}

	// Reconnect path: valid credentials reclaim the existing player record.
	if prefs.SessionID != "" && prefs.SessionToken != "" {
		if playerID, ok := c.srv.sessions.Validate(prefs.SessionID, prefs.SessionToken); ok {
			if snap, ok := c.srv.engine.Rebind(playerID, c.id); ok {
				c.bind(playerID, prefs.SessionID, prefs.SessionToken)

				c.send(protocol.TopicSessionAssigned, protocol.SessionAssigned{
					SessionID:      prefs.SessionID,
					SessionToken:   prefs.SessionToken,
					IsReconnection: true,
				})
				c.sendWelcome(playerID)
				c.srv.Broadcast(protocol.TopicPlayerUpdate, protocol.PlayerUpdate{Player: snap})
				c.srv.log.Infof("server", "player %s (%s) reconnected on conn %s", snap.Username, playerID, c.id)
				return
			}
		}
		// Stale or forged credentials fall through to a fresh join.
		c.srv.log.Debugf("server", "conn %s presented invalid session, issuing new player", c.id)
	}

	username := sanitizeUsername(prefs.Name)
	color := string(prefs.Color)
	if color == "" {
		color = defaultColor
	}

	p := c.srv.engine.AddPlayer(username, color, c.id)

	sess, err := c.srv.sessions.Create(p.ID, username)
	if err != nil {
		c.srv.log.Errorf("server", "session create for %s failed: %v", p.ID, err)
		c.srv.engine.RemovePlayer(p.ID)
		c.conn.Close()
		return
	}

	snap, ok := c.srv.engine.BindSession(p.ID, sess.ID)
	if !ok {
		c.srv.log.Errorf("server", "player %s vanished during handshake", p.ID)
		c.conn.Close()
		return
	}
	c.bind(p.ID, sess.ID, sess.Token)

	if c.srv.OnSessionStart != nil {
		c.srv.OnSessionStart(sess.ID, p.ID, username)
	}

	c.send(protocol.TopicSessionAssigned, protocol.SessionAssigned{
		SessionID:    sess.ID,
		SessionToken: sess.Token,
	})
	c.sendWelcome(p.ID)
	c.srv.Broadcast(protocol.TopicPlayerUpdate, protocol.PlayerUpdate{Player: snap})

	c.srv.log.Infof("server", "player %s (%s) joined at (%d,%d)", username, p.ID, snap.X, snap.Y)
}

func (c *Client) bind(playerID, sessionID, token string) {
	c.playerID = playerID
	c.sessionID = sessionID
	c.sessionToken = token
	c.srv.bindPlayer(playerID, c)
}

func (c *Client) sendWelcome(playerID string) {
	snap, ok := c.srv.engine.PublicState(playerID)
	if !ok {
		return
	}
	viewport, err := c.srv.engine.ViewportFor(playerID, 0, 0)
	if err != nil {
		c.srv.log.Errorf("server", "welcome viewport for %s: %v", playerID, err)
		return
	}
	c.send(protocol.TopicWelcome, protocol.Welcome{
		PlayerID:  playerID,
		Player:    snap,
		GameState: c.srv.engine.GameState(),
		Viewport:  viewport,
	})
}

func (c *Client) handleAction(msg *protocol.Message) {
	if c.playerID == "" {
		c.srv.log.Debugf("server", "conn %s sent action before handshake", c.id)
		return
	}

	var action protocol.PlayerAction
	if err := protocol.Decode(msg, &action); err != nil {
		c.srv.log.Debugf("server", "conn %s bad action: %v", c.id, err)
		return
	}

	sessionID := action.SessionID
	sessionToken := action.SessionToken
	if sessionID == "" {
		sessionID = c.sessionID
		sessionToken = c.sessionToken
	}

	res := c.srv.engine.Handle(game.Request{
		PlayerID:     c.playerID,
		SessionID:    sessionID,
		SessionToken: sessionToken,
		Action:       action.Action,
		X:            action.X,
		Y:            action.Y,
		ViewportW:    action.ViewportWidth,
		ViewportH:    action.ViewportHeight,
	})

	if res.Reject != nil {
		c.send(protocol.TopicActionRejected, res.Reject)
		if res.Reject.Disconnect {
			c.conn.Close()
		}
		return
	}

	// The actor's viewport goes out before any derived broadcast.
	if res.Viewport != nil {
		c.send(protocol.TopicViewportUpdate, res.Viewport)
	}
	for _, b := range res.Broadcasts {
		c.srv.Dispatch(b)
	}
}

// handleDisconnect is the graceful-leave path: the record stays for the
// session to reclaim, marked disconnected.
func (c *Client) handleDisconnect() {
	c.srv.log.Infof("server", "conn %s requested disconnect (player %s)", c.id, c.playerID)
	c.conn.Close()
}

func (c *Client) handleDashboard(msg *protocol.Message) {
	var req protocol.DashboardRequest
	if err := protocol.Decode(msg, &req); err != nil {
		return
	}

	adminKey := c.srv.cfg.AdminKey
	if adminKey == "" || subtle.ConstantTimeCompare([]byte(req.AdminKey), []byte(adminKey)) != 1 {
		c.srv.log.Warnf("server", "conn %s failed dashboard auth", c.id)
		c.conn.Close()
		return
	}

	if req.Ban != "" {
		c.srv.banPlayer(req.Ban)
	}
	if req.Unban != "" {
		c.srv.unbanPlayer(req.Unban)
	}
	if req.LogLevel != "" {
		c.srv.log.SetLevel(req.LogLevel)
		c.srv.log.Infof("server", "operator set log level to %s", req.LogLevel)
	}

	if c.srv.Dashboard != nil {
		c.send(protocol.TopicDashboardReport, c.srv.Dashboard())
	}
}

// banPlayer applies an operator ban: the monitor rejects future actions, the
// session dies, the record goes away, and the connection drops. The ban is
// handed to the persistence hook so it survives a restart.
func (s *Server) banPlayer(playerID string) {
	s.monitor.Ban(playerID)
	s.sessions.Invalidate(playerID)

	if s.OnBan != nil {
		s.OnBan(playerID, "operator")
	}

	if removed := s.engine.RemovePlayer(playerID); removed != nil {
		removed.Connected = false
		s.Broadcast(protocol.TopicPlayerUpdate, protocol.PlayerUpdate{Player: playerPublic(removed)})
	}

	s.DisconnectPlayer(playerID)
	s.log.Warnf("server", "operator banned player %s", playerID)
}

// unbanPlayer lifts a ban from the monitor and the persistent ban table.
func (s *Server) unbanPlayer(playerID string) {
	s.monitor.Unban(playerID)
	if s.OnUnban != nil {
		s.OnUnban(playerID)
	}
	s.log.Infof("server", "operator unbanned player %s", playerID)
}

func (c *Client) send(topic string, payload interface{}) {
	data := protocol.Encode(topic, payload)
	if data == nil {
		return
	}
	c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.conn.Close()
	}
}

func sanitizeUsername(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultName
	}
	runes := []rune(name)
	if len(runes) > player.MaxUsernameLen {
		runes = runes[:player.MaxUsernameLen]
	}
	return string(runes)
}
