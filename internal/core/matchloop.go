package core

import (
	"log"
	"time"

	"github.com/cloudchat/server/internal/metrics"
	"github.com/cloudchat/server/internal/profile"
)

// matchLoop runs the background matchmaking pass at the configured cadence
// until Stop.
func (c *Core) matchLoop() {
	ticker := time.NewTicker(c.cfg.MatchInterval)
	defer ticker.Stop()
	log.Printf("[matcher] started, interval %s", c.cfg.MatchInterval)
	for {
		select {
		case <-c.done:
			log.Printf("[matcher] stopped")
			return
		case <-ticker.C:
			safePass("matcher", func() { c.MatchWaiting() })
		}
	}
}

// MatchWaiting runs one matchmaking pass over the waiting pool and returns
// the number of sessions created. By default at most one pair is formed per
// pass so a single slow pairing cannot monopolize the lock; exhaustive mode
// keeps pairing until no compatible couple remains.
func (c *Core) MatchWaiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := append([]string(nil), c.waiting...)
	matched := 0
	for i, a := range snapshot {
		if !c.isWaitingLocked(a) || !c.isOnlineLocked(a) {
			continue
		}
		mine, ok := c.prefs[a]
		if !ok {
			continue
		}
		for _, b := range snapshot[i+1:] {
			if !c.isWaitingLocked(b) || !c.isOnlineLocked(b) {
				continue
			}
			theirs, ok := c.prefs[b]
			if !ok {
				continue
			}
			if !profile.Compatible(mine, theirs) {
				continue
			}
			sess := c.createSessionLocked(a, b)
			log.Printf("[matcher] paired %s with %s (session %s)", a, b, sess.ID)
			metrics.MatchesTotal.WithLabelValues("background").Inc()
			matched++
			if !c.cfg.ExhaustiveMatching {
				return matched
			}
			break
		}
	}
	return matched
}

// safePass isolates a background pass so a panic is logged instead of
// killing the loop.
func safePass(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] pass panicked: %v", name, r)
		}
	}()
	fn()
}
