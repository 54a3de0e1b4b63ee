package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection represents a single WebSocket client connection with its
// associated metadata and a write mutex for serializing outbound frames.
type Connection struct {
	ID        string    // connection ID (UUID)
	Conn      net.Conn  // underlying TCP connection
	CreatedAt time.Time // when the connection was established

	mu       sync.Mutex // guards name and lastPing
	name     string     // bound display name, "" until a claim succeeds
	lastPing time.Time  // last frame received from the client

	writeMu sync.Mutex // serializes writes to this connection
}

// Name returns the display name bound to this connection, or "" if the
// client has not claimed one yet.
func (c *Connection) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Connection) setName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// LastPing returns the time of the last frame received from the client.
func (c *Connection) LastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()
}

// WriteMessage sends a WebSocket text frame to this connection. The write
// mutex ensures that concurrent goroutines do not interleave frame bytes.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a WebSocket protocol-level ping frame (opcode 0x9) on the
// connection. The write mutex ensures this does not interleave with other
// outbound frames.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ConnectionManager is a thread-safe registry that maps connection IDs and
// bound display names to their respective Connection objects. It supports
// O(1) lookups by both.
type ConnectionManager struct {
	mu     sync.RWMutex
	byID   map[string]*Connection // connection ID -> Connection
	byName map[string]*Connection // bound display name -> Connection
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID:   make(map[string]*Connection),
		byName: make(map[string]*Connection),
	}
}

// Add registers a new connection in the ID lookup map. The name binding
// happens later, once the client claims a name.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.ID] = conn
	cm.mu.Unlock()
}

// Bind associates a display name with a connection, replacing any previous
// binding for that name. A connection rebinding to a new name sheds its old
// name entry. The previously bound connection, if different, is returned so
// the caller can close it.
func (cm *ConnectionManager) Bind(name string, conn *Connection) *Connection {
	cm.mu.Lock()
	if old := conn.Name(); old != "" && old != name && cm.byName[old] == conn {
		delete(cm.byName, old)
	}
	prev := cm.byName[name]
	cm.byName[name] = conn
	cm.mu.Unlock()
	conn.setName(name)
	if prev == conn {
		return nil
	}
	return prev
}

// Remove removes a connection by ID along with its name binding and closes
// the underlying network connection. Returns true if the connection was
// found and removed, false if it was already gone.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		if name := conn.Name(); name != "" && cm.byName[name] == conn {
			delete(cm.byName, name)
		}
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection for the given ID, or nil if not found.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	conn := cm.byID[id]
	cm.mu.RUnlock()
	return conn
}

// GetByName returns the connection currently bound to the display name, or
// nil if none is.
func (cm *ConnectionManager) GetByName(name string) *Connection {
	cm.mu.RLock()
	conn := cm.byName[name]
	cm.mu.RUnlock()
	return conn
}

// Count returns the current number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// All returns a snapshot of all current connections. The returned slice is
// safe to iterate without holding the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
