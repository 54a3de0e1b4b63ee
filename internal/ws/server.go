// Package ws handles WebSocket connection management, including upgrading
// HTTP connections, maintaining active client sessions, and dispatching
// incoming messages to the appropriate handlers.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/cloudchat/server/internal/notify"
)

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	ListenAddr     string        // address to listen on, e.g. ":8080"
	WorkerPoolSize int           // max concurrent message-handler goroutines
	MaxConnections int           // hard cap on total connections
	WriteTimeout   time.Duration // timeout for WebSocket write operations
}

// DefaultServerConfig returns a ServerConfig with sensible production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		WorkerPoolSize: 256,
		MaxConnections: 100000,
		WriteTimeout:   10 * time.Second,
	}
}

// Server is the WebSocket front end built on gobwas/ws. Each accepted
// connection gets its own read goroutine; handler execution is bounded by a
// worker-pool semaphore. Outbound pushes flow from the notification hub
// through a per-user push pump started when the client binds a name.
type Server struct {
	config     ServerConfig
	conns      *ConnectionManager
	hub        *notify.Hub
	workerPool chan struct{}                       // semaphore limiting concurrent handlers
	onMessage  func(conn *Connection, data []byte) // message handler callback
	httpServer *http.Server
	extra      map[string]http.HandlerFunc // additional HTTP routes, set before Start
	done       chan struct{}
	startedAt  time.Time
}

// NewServer creates a Server with the given configuration, notification hub
// and message callback. The onMessage function is called from a worker
// goroutine whenever a complete WebSocket text frame is received.
func NewServer(config ServerConfig, hub *notify.Hub, onMessage func(conn *Connection, data []byte)) *Server {
	return &Server{
		config:     config,
		conns:      NewConnectionManager(),
		hub:        hub,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		onMessage:  onMessage,
		extra:      make(map[string]http.HandlerFunc),
		done:       make(chan struct{}),
	}
}

// HandleFunc registers an additional HTTP route served alongside /ws and
// /health. Must be called before Start.
func (s *Server) HandleFunc(pattern string, h http.HandlerFunc) {
	s.extra[pattern] = h
}

// Start configures the HTTP server and begins accepting WebSocket
// connections. It blocks on http.Server.ListenAndServe.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)
	for pattern, h := range s.extra {
		mux.HandleFunc(pattern, h)
	}

	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: mux,
	}

	// Start the heartbeat monitor to detect and close dead connections.
	StartHeartbeat(s, DefaultHeartbeatConfig())

	log.Printf("ws: server listening on %s (workers=%d, max_conns=%d)",
		s.config.ListenAddr, s.config.WorkerPoolSize, s.config.MaxConnections)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// handleUpgrade upgrades an HTTP request to a WebSocket connection using the
// gobwas/ws zero-copy upgrader. On success it creates a Connection, registers
// it with the connection manager and starts its read loop.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	// Enforce maximum connection limit.
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	// Upgrade the HTTP connection to WebSocket.
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	c := &Connection{
		ID:        uuid.New().String(),
		Conn:      conn,
		CreatedAt: time.Now(),
	}
	c.touch()
	s.conns.Add(c)

	go s.readLoop(c)

	log.Printf("ws: new connection id=%s (total=%d)", c.ID, s.conns.Count())
}

// readLoop reads frames from a single connection until it fails or closes.
// Control frames refresh liveness; data frames are handed to the message
// callback under the worker-pool semaphore.
func (s *Server) readLoop(c *Connection) {
	defer s.RemoveConnection(c)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		header, reader, err := wsutil.NextReader(c.Conn, ws.StateServerSide)
		if err != nil {
			return
		}

		// Any frame proves the connection is alive.
		c.touch()

		if header.OpCode.IsControl() {
			if header.OpCode == ws.OpClose {
				return
			}
			if header.OpCode == ws.OpPing {
				// Drain the ping payload and answer with a pong.
				if _, err := io.Copy(io.Discard, reader); err != nil {
					return
				}
				if err := c.writePong(); err != nil {
					return
				}
				continue
			}
			// Pong: drain and move on.
			if _, err := io.Copy(io.Discard, reader); err != nil {
				return
			}
			continue
		}

		data := make([]byte, header.Length)
		if header.Length > 0 {
			if _, err := io.ReadFull(reader, data); err != nil {
				return
			}
		}
		if len(data) == 0 {
			continue
		}

		// Acquire a worker slot (blocks if pool is full).
		s.workerPool <- struct{}{}
		s.onMessage(c, data)
		<-s.workerPool
	}
}

func (c *Connection) writePong() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPongFrame(nil))
}

// handleHealth responds with the server's health status as JSON, including
// the current connection count and uptime. It is used by load balancers for
// health checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// BindUser attaches a claimed display name to a connection and starts its
// push pump: a goroutine that forwards notification events as WebSocket
// frames, with periodic keepalives. A previous connection bound to the same
// name is closed. The first event the subscriber receives is the connected
// acknowledgment.
func (s *Server) BindUser(c *Connection, name string) {
	if prev := s.conns.Bind(name, c); prev != nil {
		log.Printf("ws: name %s rebound, closing old connection id=%s", name, prev.ID)
		s.RemoveConnection(prev)
	}
	ch := s.hub.Register(name)
	s.hub.Push(name, notify.Event{Type: notify.EventConnected})
	go s.pushLoop(c, name, ch)
}

// pushLoop forwards events from the user's notification channel to the
// connection. It exits when the channel is closed (eviction, logout or
// replacement by a new connection) and then closes the connection. A
// keepalive event is sent during quiet periods so proxies keep the stream
// open.
func (s *Server) pushLoop(c *Connection, name string, ch <-chan notify.Event) {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-ch:
			if !ok {
				// A connection rebound to a new name keeps its socket;
				// only the pump for the current binding tears it down.
				if c.Name() == name {
					log.Printf("ws: push channel closed for %s, dropping connection id=%s", name, c.ID)
					s.RemoveConnection(c)
				}
				return
			}
			if err := s.writeEvent(c, ev); err != nil {
				s.RemoveConnection(c)
				return
			}
		case <-keepalive.C:
			if err := s.writeEvent(c, notify.Event{Type: notify.EventKeepalive}); err != nil {
				s.RemoveConnection(c)
				return
			}
		}
	}
}

func (s *Server) writeEvent(c *Connection, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("ws: failed to marshal event: %w", err)
	}
	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	err = c.WriteMessage(data)
	_ = c.Conn.SetWriteDeadline(time.Time{})
	return err
}

// RemoveConnection removes a connection from the connection manager and
// closes the underlying network connection. It is exported so that the
// heartbeat monitor can evict dead connections.
func (s *Server) RemoveConnection(c *Connection) {
	// Guard: only proceed if the connection was actually in the manager.
	// This prevents double cleanup when multiple goroutines race to remove
	// the same connection (e.g., read error + heartbeat timeout).
	if !s.conns.Remove(c.ID) {
		return
	}
	log.Printf("ws: connection closed id=%s (total=%d)", c.ID, s.conns.Count())
}

// SendTo writes a WebSocket text frame to the connection, honoring the
// configured write timeout. It is goroutine-safe thanks to the
// per-connection write mutex.
func (s *Server) SendTo(c *Connection, data []byte) error {
	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	err := c.WriteMessage(data)
	_ = c.Conn.SetWriteDeadline(time.Time{})
	return err
}

// Connections returns the ConnectionManager for external access to
// connection state (e.g., by the heartbeat monitor).
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown performs a graceful shutdown of the server. It stops the HTTP
// listener, signals the read loops and push pumps to exit, and closes all
// active connections.
func (s *Server) Shutdown() error {
	log.Println("ws: shutting down server...")

	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("ws: http shutdown error: %v", err)
	}

	for _, c := range s.conns.All() {
		c.Close()
	}

	log.Printf("ws: server stopped, all connections closed")
	return nil
}
