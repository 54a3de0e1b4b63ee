package core

import (
	"log"
	"time"
)

// reapLoop runs the background expiry pass at the configured cadence until
// Stop.
func (c *Core) reapLoop() {
	ticker := time.NewTicker(c.cfg.ReapInterval)
	defer ticker.Stop()
	log.Printf("[reaper] started, interval %s", c.cfg.ReapInterval)
	for {
		select {
		case <-c.done:
			log.Printf("[reaper] stopped")
			return
		case <-ticker.C:
			safePass("reaper", c.ReapPass)
		}
	}
}

// ReapPass evicts users idle past the inactivity window, closes sessions
// idle past the ceiling, and once per retention interval asks the archive
// to drop records older than the retention age.
func (c *Core) ReapPass() {
	users := c.reapUsers()
	sessions := c.reapSessions()
	if users > 0 || sessions > 0 {
		log.Printf("[reaper] evicted %d users, closed %d sessions", users, sessions)
	}

	now := c.now()
	c.mu.Lock()
	prune := now.Sub(c.lastPrune) >= c.cfg.RetentionInterval
	if prune {
		c.lastPrune = now
	}
	c.mu.Unlock()
	if prune {
		cutoff := now.Add(-c.cfg.RetentionAge)
		c.sink.DeleteStaleSessions(cutoff)
		c.sink.DeleteStaleUsers(cutoff)
		log.Printf("[reaper] requested archive prune before %s", cutoff.Format(time.RFC3339))
	}
}

func (c *Core) reapUsers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var stale []string
	for _, name := range c.online {
		if now.Sub(c.lastActive[name]) > c.cfg.InactivityWindow {
			stale = append(stale, name)
		}
	}
	for _, name := range stale {
		log.Printf("[reaper] evicting idle user %s", name)
		c.expireLocked(name)
	}

	// Drop grace state for users whose recovery window has passed.
	for name, at := range c.dropped {
		if now.Sub(at) > c.cfg.ClaimGrace {
			delete(c.dropped, name)
			delete(c.lastActive, name)
			delete(c.prefs, name)
		}
	}
	return len(stale)
}

func (c *Core) reapSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	closed := 0
	for id, sess := range c.sessions {
		if now.Sub(sess.LastActivity) <= c.cfg.SessionIdleCeiling {
			continue
		}
		for _, m := range sess.Members {
			delete(c.inSession, m)
		}
		delete(c.sessions, id)
		c.sink.UpdateSessionStatus(id, StatusClosed)
		log.Printf("[reaper] closed idle session %s", id)
		closed++
	}
	return closed
}
