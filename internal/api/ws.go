package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smazurov/statuslight/internal/events"
	"github.com/smazurov/statuslight/internal/syncbus"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1024
)

// wsMessage is a client frame. Type "sync" queues Event on the sync bus;
// any other type is reported as a websocket message of that kind.
type wsMessage struct {
	Type    string `json:"type"`
	Event   string `json:"event,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

// wsEvent wraps a pushed bus event.
type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wsReply acknowledges a client frame or reports an error.
type wsReply struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type wsConn struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte
	events chan any
	done   chan struct{}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// registerWebsocketRoute mounts /api/ws on the mux. The first client to
// connect reports websocket-connected on the sync bus, the last one to leave
// reports websocket-disconnected.
func (s *Server) registerWebsocketRoute() {
	var clients atomic.Int32

	s.mux.HandleFunc("GET /api/ws", func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			w.Header().Set("WWW-Authenticate", authRealm)
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("Websocket upgrade failed", "error", err)
			return
		}

		if clients.Add(1) == 1 {
			s.reportWebsocket(true)
		}
		s.logger.Info("Websocket client connected", "remote_addr", r.RemoteAddr)

		c := &wsConn{
			server: s,
			conn:   conn,
			send:   make(chan []byte, 32),
			events: make(chan any, 10),
			done:   make(chan struct{}),
		}
		unsubscribe := events.SubscribeToChannel[events.StatusChangedEvent](s.eventBus, c.events)
		go c.writePump()
		c.readPump()
		unsubscribe()

		if clients.Add(-1) == 0 {
			s.reportWebsocket(false)
		}
		s.logger.Info("Websocket client disconnected", "remote_addr", r.RemoteAddr)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.options.AuthUsername == "" || s.options.AuthPassword == "" {
		return true
	}
	user, pass, ok := parseBasicAuth(r.Header.Get("Authorization"), r.URL.Query().Get("auth"))
	return ok && credentialsMatch(user, pass, s.options.AuthUsername, s.options.AuthPassword)
}

func (s *Server) reportWebsocket(connected bool) {
	if err := s.options.Sync.HandleWebsocketStatus(connected); err != nil {
		s.logger.Warn("Failed to report websocket status", "connected", connected, "error", err)
	}
}

// handleMessage applies one client frame and returns the reply.
func (s *Server) handleMessage(data []byte) wsReply {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		// Non-JSON frames still count as traffic.
		msg = wsMessage{Type: "text"}
	}

	reply := wsReply{Type: msg.Type, OK: true}
	var err error
	if strings.EqualFold(msg.Type, "sync") {
		var t syncbus.EventType
		if t, err = syncbus.ParseEventType(msg.Event); err == nil {
			err = s.options.Sync.SendEvent(t, msg.Payload)
		}
	} else {
		err = s.options.Sync.HandleWebsocketMessage(msg.Type)
	}
	if err != nil {
		reply.OK = false
		reply.Error = err.Error()
	}
	return reply
}

func (c *wsConn) readPump() {
	defer func() {
		close(c.done)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("Websocket read failed", "error", err)
			}
			return
		}
		c.queue(c.server.handleMessage(data))
	}
}

func (c *wsConn) queue(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.server.logger.Error("Failed to marshal websocket message", "error", err)
		return
	}
	select {
	case c.send <- b:
	default:
		c.server.logger.Debug("Websocket send buffer full, dropping message")
	}
}

// writePump forwards status changes and replies, and keeps the connection
// alive with pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			c.queue(wsEvent{Type: "status-changed", Data: ev})
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
