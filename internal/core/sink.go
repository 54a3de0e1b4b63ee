package core

import (
	"time"

	"github.com/cloudchat/server/internal/profile"
)

// Sink receives archival events from the core. All methods are
// fire-and-forget: implementations must never block the caller, and a sink
// failure must never affect live chat state. The core holds its mutex while
// calling sink methods, so implementations hand work off immediately.
type Sink interface {
	PersistUser(name string, prefs profile.Preferences, lastSeen time.Time)
	PersistSession(id string, members []string, createdAt time.Time)
	PersistMessage(msg Message)
	UpdateSessionStatus(id, status string)
	DeleteStaleSessions(cutoff time.Time)
	DeleteStaleUsers(cutoff time.Time)
}

// NopSink discards everything. Used in tests and when archiving is disabled.
type NopSink struct{}

func (NopSink) PersistUser(string, profile.Preferences, time.Time) {}
func (NopSink) PersistSession(string, []string, time.Time)         {}
func (NopSink) PersistMessage(Message)                             {}
func (NopSink) UpdateSessionStatus(string, string)                 {}
func (NopSink) DeleteStaleSessions(time.Time)                      {}
func (NopSink) DeleteStaleUsers(time.Time)                         {}
