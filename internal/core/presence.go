package core

import (
	"log"

	"github.com/cloudchat/server/internal/metrics"
	"github.com/cloudchat/server/internal/profile"
)

// ClaimResult reports the outcome of a name claim. When a compatible
// partner was online, the claimant lands straight in a session.
type ClaimResult struct {
	Name            string `json:"name"`
	InChat          bool   `json:"in_chat"`
	Partner         string `json:"partner,omitempty"`
	SessionID       string `json:"session_id,omitempty"`
	WaitingPosition int    `json:"waiting_position,omitempty"`
}

// Claim registers rawName with the given profile. Names are unique
// case-insensitively; a holder idle past the claim grace is evicted and the
// name handed over. On success the claimant is either paired immediately or
// placed in the waiting pool.
func (c *Core) Claim(rawName string, p profile.Preferences) (*ClaimResult, error) {
	if err := profile.ValidateName(rawName); err != nil {
		return nil, errf(KindValidation, "%s", err)
	}
	if !profile.ValidAgeGroup(p.AgeGroup) {
		return nil, errf(KindValidation, "invalid age group")
	}
	p = profile.Normalize(p)
	name := profile.FormatName(rawName)

	c.mu.Lock()
	now := c.now()
	if holder, ok := c.names[profile.LowerName(name)]; ok {
		if now.Sub(c.lastActive[holder]) <= c.cfg.ClaimGrace {
			c.mu.Unlock()
			return nil, errf(KindConflict, "this name is already in use")
		}
		// Stale holder: tear down and take the name over.
		log.Printf("[core] evicting stale holder %s for claim", holder)
		c.evictLocked(holder)
	}
	c.names[profile.LowerName(name)] = name
	c.online = append(c.online, name)
	c.lastActive[name] = now
	c.prefs[name] = p
	delete(c.dropped, name)

	res := &ClaimResult{Name: name}
	if partner, ok := c.findCandidateLocked(name); ok {
		sess := c.createSessionLocked(name, partner)
		metrics.MatchesTotal.WithLabelValues("immediate").Inc()
		res.InChat = true
		res.Partner = partner
		res.SessionID = sess.ID
	} else {
		c.enqueueLocked(name)
		res.WaitingPosition = c.positionLocked(name)
	}
	c.mu.Unlock()

	c.sink.PersistUser(name, p, now)
	return res, nil
}

// UpdatePreferences changes what name is searching for. The declared gender
// and age group are fixed at claim time.
func (c *Core) UpdatePreferences(name, searchGender, searchAge string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOnlineLocked(name); err != nil {
		return err
	}
	p := c.prefs[name]
	p.SearchGender = searchGender
	p.SearchAge = searchAge
	c.prefs[name] = profile.Normalize(p)
	return nil
}

// Touch records a heartbeat. A user dropped by expiry within the last claim
// grace is silently put back online under their retained preferences.
func (c *Core) Touch(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.isOnlineLocked(name) {
		if now.Sub(c.lastActive[name]) > c.cfg.InactivityWindow {
			c.expireLocked(name)
			return errf(KindExpired, "presence expired due to inactivity")
		}
		c.lastActive[name] = now
		return nil
	}
	droppedAt, wasDropped := c.dropped[name]
	_, hasPrefs := c.prefs[name]
	if wasDropped && hasPrefs && now.Sub(droppedAt) <= c.cfg.ClaimGrace {
		delete(c.dropped, name)
		c.names[profile.LowerName(name)] = name
		c.online = append(c.online, name)
		c.lastActive[name] = now
		log.Printf("[core] %s re-onlined by heartbeat", name)
		return nil
	}
	return errf(KindNotOnline, "not online; claim a name first")
}

// Release tears name down entirely: any session is left, the waiting slot
// freed and the name returned to the pool. Idempotent.
func (c *Core) Release(name string) {
	c.mu.Lock()
	wasOnline := c.isOnlineLocked(name)
	c.evictLocked(name)
	c.mu.Unlock()
	if wasOnline {
		log.Printf("[core] %s logged out", name)
	}
}
