package core

import (
	"sort"
	"sync"
	"time"

	"github.com/cloudchat/server/internal/notify"
	"github.com/cloudchat/server/internal/profile"
)

// Config tunes the core's timing windows and matchmaking behavior.
type Config struct {
	// InactivityWindow is how long a user may go without any request
	// before their presence is torn down.
	InactivityWindow time.Duration

	// ClaimGrace is how recently a name holder must have been active for
	// the name to be refused to a new claimant. A holder idle longer than
	// this is treated as stale and evicted.
	ClaimGrace time.Duration

	// LivenessWindow bounds how stale a candidate's activity may be for
	// immediate pairing.
	LivenessWindow time.Duration

	// SessionIdleCeiling is how long a session may go without a message
	// before the reaper closes it.
	SessionIdleCeiling time.Duration

	// MatchInterval is the cadence of the background matchmaking pass.
	MatchInterval time.Duration

	// ReapInterval is the cadence of the background reaper pass.
	ReapInterval time.Duration

	// HistoryWindow is the per-session message retention target. The
	// buffer is trimmed back to this size once it doubles.
	HistoryWindow int

	// ExhaustiveMatching pairs every compatible couple per matchmaking
	// pass instead of the default one pair per pass.
	ExhaustiveMatching bool

	// RetentionInterval is how often the archive prune is requested.
	RetentionInterval time.Duration

	// RetentionAge is the archive retention horizon.
	RetentionAge time.Duration
}

// DefaultConfig returns the production timing windows.
func DefaultConfig() Config {
	return Config{
		InactivityWindow:   600 * time.Second,
		ClaimGrace:         30 * time.Second,
		LivenessWindow:     300 * time.Second,
		SessionIdleCeiling: 900 * time.Second,
		MatchInterval:      5 * time.Second,
		ReapInterval:       60 * time.Second,
		HistoryWindow:      500,
		RetentionInterval:  24 * time.Hour,
		RetentionAge:       30 * 24 * time.Hour,
	}
}

// Core is the authoritative in-memory state of the chat service: presence,
// preferences, the waiting pool and the session table, all guarded by one
// mutex. Operations lock, mutate, collect notifications and persistence
// events, and unlock; both notification pushes and sink calls are
// non-blocking, so the critical sections stay short.
type Core struct {
	cfg  Config
	hub  *notify.Hub
	sink Sink
	now  func() time.Time

	mu         sync.Mutex
	names      map[string]string // lowercase -> canonical, online users only
	online     []string          // canonical names in claim order
	lastActive map[string]time.Time
	prefs      map[string]profile.Preferences
	waiting    []string             // canonical names in enqueue order
	sessions   map[string]*Session
	inSession  map[string]string    // canonical name -> session id
	dropped    map[string]time.Time // expiry-dropped names eligible for heartbeat recovery
	lastPrune  time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New builds a Core. The background loops do not run until Start is called;
// tests drive the pass functions directly instead.
func New(cfg Config, hub *notify.Hub, sink Sink) *Core {
	if sink == nil {
		sink = NopSink{}
	}
	c := &Core{
		cfg:        cfg,
		hub:        hub,
		sink:       sink,
		now:        time.Now,
		names:      make(map[string]string),
		lastActive: make(map[string]time.Time),
		prefs:      make(map[string]profile.Preferences),
		sessions:   make(map[string]*Session),
		inSession:  make(map[string]string),
		dropped:    make(map[string]time.Time),
		done:       make(chan struct{}),
	}
	c.lastPrune = c.now()
	return c
}

// Start launches the matchmaking and reaper loops.
func (c *Core) Start() {
	go c.matchLoop()
	go c.reapLoop()
}

// Stop terminates the background loops. Safe to call more than once.
func (c *Core) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Snapshot is a point-in-time view of the core's population, exported for
// the stats endpoint and metrics.
type Snapshot struct {
	Online   int `json:"online"`
	Waiting  int `json:"waiting"`
	Sessions int `json:"sessions"`
}

// Stats reports current population counts.
func (c *Core) Stats() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Online:   len(c.online),
		Waiting:  len(c.waiting),
		Sessions: len(c.sessions),
	}
}

// ListActive returns the sorted names of users still within the inactivity
// window.
func (c *Core) ListActive() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	out := make([]string, 0, len(c.online))
	for _, name := range c.online {
		if now.Sub(c.lastActive[name]) <= c.cfg.InactivityWindow {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Core) isOnlineLocked(name string) bool {
	return c.names[profile.LowerName(name)] == name
}

func (c *Core) removeOnlineLocked(name string) {
	lower := profile.LowerName(name)
	if c.names[lower] == name {
		delete(c.names, lower)
	}
	for i, n := range c.online {
		if n == name {
			c.online = append(c.online[:i], c.online[i+1:]...)
			break
		}
	}
}

// requireOnlineLocked verifies presence and refreshes activity. A caller
// found past the inactivity window is torn down on the spot.
func (c *Core) requireOnlineLocked(name string) *Error {
	if !c.isOnlineLocked(name) {
		return errf(KindNotOnline, "not online; claim a name first")
	}
	now := c.now()
	if now.Sub(c.lastActive[name]) > c.cfg.InactivityWindow {
		c.expireLocked(name)
		return errf(KindExpired, "presence expired due to inactivity")
	}
	c.lastActive[name] = now
	return nil
}

// evictLocked fully tears a user down: session, waiting pool, presence,
// preferences and push channel. Idempotent.
func (c *Core) evictLocked(name string) {
	c.leaveLocked(name)
	c.removeWaitingLocked(name)
	c.removeOnlineLocked(name)
	delete(c.lastActive, name)
	delete(c.prefs, name)
	delete(c.dropped, name)
	c.hub.Unregister(name)
}

// expireLocked tears down an inactivity-expired user like evictLocked but
// retains their last activity and preferences, marking the drop time so a
// heartbeat within the claim grace can put them back online.
func (c *Core) expireLocked(name string) {
	c.leaveLocked(name)
	c.removeWaitingLocked(name)
	c.removeOnlineLocked(name)
	c.dropped[name] = c.now()
	c.hub.Unregister(name)
}
