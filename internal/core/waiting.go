package core

import (
	"github.com/cloudchat/server/internal/metrics"
	"github.com/cloudchat/server/internal/profile"
)

// FindResult reports the outcome of a partner search.
type FindResult struct {
	Matched         bool   `json:"matched"`
	Partner         string `json:"partner,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	WaitingPosition int    `json:"waiting_position,omitempty"`
}

// FindPartner tries to pair name immediately; failing that, name joins the
// waiting pool for the background matchmaking pass.
func (c *Core) FindPartner(name string) (*FindResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOnlineLocked(name); err != nil {
		return nil, err
	}
	if _, busy := c.inSession[name]; busy {
		return nil, errf(KindConflict, "already in a chat; leave it first")
	}
	if partner, ok := c.findCandidateLocked(name); ok {
		sess := c.createSessionLocked(name, partner)
		metrics.MatchesTotal.WithLabelValues("immediate").Inc()
		return &FindResult{Matched: true, Partner: partner, SessionID: sess.ID}, nil
	}
	c.enqueueLocked(name)
	return &FindResult{WaitingPosition: c.positionLocked(name)}, nil
}

// StopWaiting removes name from the waiting pool. Reports whether name was
// actually waiting.
func (c *Core) StopWaiting(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOnlineLocked(name); err != nil {
		return false, err
	}
	return c.removeWaitingLocked(name), nil
}

// findCandidateLocked scans online users in claim order for the first
// mutually compatible, recently active user not already in a session.
func (c *Core) findCandidateLocked(name string) (string, bool) {
	mine, ok := c.prefs[name]
	if !ok {
		return "", false
	}
	now := c.now()
	for _, cand := range c.online {
		if cand == name {
			continue
		}
		if _, busy := c.inSession[cand]; busy {
			continue
		}
		if now.Sub(c.lastActive[cand]) > c.cfg.LivenessWindow {
			continue
		}
		theirs, ok := c.prefs[cand]
		if !ok {
			continue
		}
		if profile.Compatible(mine, theirs) {
			return cand, true
		}
	}
	return "", false
}

// enqueueLocked appends name to the waiting pool unless already present.
func (c *Core) enqueueLocked(name string) {
	for _, w := range c.waiting {
		if w == name {
			return
		}
	}
	c.waiting = append(c.waiting, name)
}

func (c *Core) removeWaitingLocked(name string) bool {
	for i, w := range c.waiting {
		if w == name {
			c.waiting = append(c.waiting[:i], c.waiting[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Core) isWaitingLocked(name string) bool {
	for _, w := range c.waiting {
		if w == name {
			return true
		}
	}
	return false
}

// positionLocked is name's 1-based slot in the waiting pool, 0 if absent.
func (c *Core) positionLocked(name string) int {
	for i, w := range c.waiting {
		if w == name {
			return i + 1
		}
	}
	return 0
}
