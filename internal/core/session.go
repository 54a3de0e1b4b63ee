package core

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cloudchat/server/internal/media"
	"github.com/cloudchat/server/internal/metrics"
	"github.com/cloudchat/server/internal/notify"
)

// Session status values, also used as archive statuses.
const (
	StatusActive      = "active"
	StatusPartnerLeft = "partner_left"
	StatusClosed      = "closed"
)

// Session is a 1-on-1 chat room. All fields are guarded by the core mutex.
type Session struct {
	ID           string
	Members      []string
	Messages     []Message
	CreatedAt    time.Time
	LastActivity time.Time
	Status       string
}

func (s *Session) isMember(name string) bool {
	for _, m := range s.Members {
		if m == name {
			return true
		}
	}
	return false
}

// partner returns the other member, or "" if name is alone.
func (s *Session) partner(name string) string {
	for _, m := range s.Members {
		if m != name {
			return m
		}
	}
	return ""
}

func (s *Session) removeMember(name string) {
	for i, m := range s.Members {
		if m == name {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			return
		}
	}
}

// createSessionLocked pairs a and b into a fresh session, pulls both out of
// the waiting pool and announces the connection to both sides.
func (c *Core) createSessionLocked(a, b string) *Session {
	now := c.now()
	sess := &Session{
		ID:           uuid.New().String(),
		Members:      []string{a, b},
		CreatedAt:    now,
		LastActivity: now,
		Status:       StatusActive,
	}
	c.sessions[sess.ID] = sess
	c.inSession[a] = sess.ID
	c.inSession[b] = sess.ID
	c.removeWaitingLocked(a)
	c.removeWaitingLocked(b)
	c.sink.PersistSession(sess.ID, []string{a, b}, now)
	notice := c.appendSystemLocked(sess, fmt.Sprintf("%s is connected with %s", a, b), notify.SoundNotify)
	c.fanOutLocked(sess, notice, "")
	log.Printf("[core] session %s: %s paired with %s", sess.ID, a, b)
	return sess
}

// appendLocked adds msg to the session buffer, trims the buffer once it
// doubles the history window, and refreshes session activity.
func (c *Core) appendLocked(sess *Session, msg Message) {
	sess.Messages = append(sess.Messages, msg)
	if len(sess.Messages) > 2*c.cfg.HistoryWindow {
		kept := sess.Messages[len(sess.Messages)-c.cfg.HistoryWindow:]
		sess.Messages = append([]Message(nil), kept...)
	}
	sess.LastActivity = c.now()
	c.sink.PersistMessage(msg)
}

// appendSystemLocked records a system notice with an attached sound cue.
func (c *Core) appendSystemLocked(sess *Session, text, sound string) Message {
	msg := Message{
		ID:        uuid.New().String(),
		SessionID: sess.ID,
		From:      SystemSender,
		Text:      text,
		Ts:        c.now().UnixMilli(),
		Sound:     sound,
	}
	c.appendLocked(sess, msg)
	return msg
}

// fanOutLocked pushes msg to every session member except skip. Pushes are
// non-blocking; a member without a registered channel falls back to history
// polling.
func (c *Core) fanOutLocked(sess *Session, msg Message, skip string) {
	ev := notify.Event{
		Type:      notify.EventMessage,
		SessionID: sess.ID,
		Data:      msg,
		Sound:     msg.Sound,
	}
	for _, m := range sess.Members {
		if m != skip {
			c.hub.Push(m, ev)
		}
	}
}

// Send validates and delivers a text message from sender into the session.
func (c *Core) Send(sessionID, sender, text string) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOnlineLocked(sender); err != nil {
		return Message{}, err
	}
	sess, ok := c.sessions[sessionID]
	if !ok {
		return Message{}, errf(KindSessionExpired, "chat session no longer exists")
	}
	if !sess.isMember(sender) {
		return Message{}, errf(KindNotAMember, "you are not part of this chat")
	}
	if err := media.ValidateText(text); err != nil {
		return Message{}, errf(KindValidation, "%s", err)
	}
	msg := Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		From:      sender,
		Text:      text,
		Ts:        c.now().UnixMilli(),
	}
	c.appendLocked(sess, msg)
	c.fanOutLocked(sess, msg, sender)
	metrics.MessagesTotal.WithLabelValues("text").Inc()
	return msg, nil
}

// SendMedia validates and delivers a media message. Data is raw base64; the
// stored payload is a data URL typed from the filename.
func (c *Core) SendMedia(sessionID, sender, kind, data, filename string) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOnlineLocked(sender); err != nil {
		return Message{}, err
	}
	sess, ok := c.sessions[sessionID]
	if !ok {
		return Message{}, errf(KindSessionExpired, "chat session no longer exists")
	}
	if !sess.isMember(sender) {
		return Message{}, errf(KindNotAMember, "you are not part of this chat")
	}
	if err := media.Validate(kind, data); err != nil {
		return Message{}, errf(KindValidation, "%s", err)
	}
	msg := Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		From:      sender,
		Ts:        c.now().UnixMilli(),
		MediaType: kind,
		MediaData: media.FormatDataURL(kind, filename, data),
		Filename:  filename,
		IsVoice:   kind == media.KindVoice,
	}
	c.appendLocked(sess, msg)
	c.fanOutLocked(sess, msg, sender)
	metrics.MessagesTotal.WithLabelValues("media").Inc()
	return msg, nil
}

// Leave removes name from its session. The remaining partner keeps the
// session open in partner_left state and is notified with a logout cue.
func (c *Core) Leave(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOnlineLocked(name); err != nil {
		return err
	}
	c.removeWaitingLocked(name)
	if !c.leaveLocked(name) {
		return errf(KindNotAMember, "you are not in a chat")
	}
	return nil
}

// leaveLocked detaches name from its session, if any. Reports whether a
// session membership was actually removed.
func (c *Core) leaveLocked(name string) bool {
	id, ok := c.inSession[name]
	if !ok {
		return false
	}
	delete(c.inSession, name)
	sess := c.sessions[id]
	if sess == nil {
		return false
	}
	sess.removeMember(name)
	sess.LastActivity = c.now()
	if len(sess.Members) == 0 {
		delete(c.sessions, id)
		c.sink.UpdateSessionStatus(id, StatusClosed)
		return true
	}
	sess.Status = StatusPartnerLeft
	notice := c.appendSystemLocked(sess, fmt.Sprintf("%s left the chat", name), notify.SoundLogout)
	c.fanOutLocked(sess, notice, name)
	c.sink.UpdateSessionStatus(id, StatusPartnerLeft)
	return true
}

// History returns the messages of sessionID newer than since (unix millis),
// capped to the most recent 100 entries.
func (c *Core) History(sessionID, name string, since int64) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOnlineLocked(name); err != nil {
		return nil, err
	}
	sess, ok := c.sessions[sessionID]
	if !ok {
		return nil, errf(KindSessionExpired, "chat session no longer exists")
	}
	if !sess.isMember(name) {
		return nil, errf(KindNotAMember, "you are not part of this chat")
	}
	window := sess.Messages
	if len(window) > 100 {
		window = window[len(window)-100:]
	}
	out := make([]Message, 0, len(window))
	for _, msg := range window {
		if msg.Ts > since {
			out = append(out, msg)
		}
	}
	return out, nil
}

// StatusResult describes the caller's current place in the system.
type StatusResult struct {
	InChat          bool   `json:"in_chat"`
	SessionID       string `json:"session_id,omitempty"`
	Partner         string `json:"partner,omitempty"`
	SessionStatus   string `json:"session_status,omitempty"`
	MessageCount    int    `json:"message_count,omitempty"`
	Waiting         bool   `json:"waiting"`
	WaitingPosition int    `json:"waiting_position,omitempty"`
}

// Status reports whether name is chatting, waiting, or idle. Unknown names
// report idle rather than an error so clients can poll before claiming.
func (c *Core) Status(name string) StatusResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	var res StatusResult
	if id, ok := c.inSession[name]; ok {
		if sess := c.sessions[id]; sess != nil {
			res.InChat = true
			res.SessionID = id
			res.Partner = sess.partner(name)
			res.SessionStatus = sess.Status
			res.MessageCount = len(sess.Messages)
			return res
		}
	}
	if pos := c.positionLocked(name); pos > 0 {
		res.Waiting = true
		res.WaitingPosition = pos
	}
	return res
}

// PartnerOf returns the current chat partner of name, if any.
func (c *Core) PartnerOf(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.inSession[name]
	if !ok {
		return "", false
	}
	sess := c.sessions[id]
	if sess == nil {
		return "", false
	}
	p := sess.partner(name)
	return p, p != ""
}
