package messaging

import (
	"encoding/json"
	"log"
	"time"

	"github.com/cloudchat/server/internal/core"
	"github.com/cloudchat/server/internal/profile"
)

// Archive payloads. chatd produces them, the archiver consumes them; both
// sides share these shapes.

// UserRecord is published on archive.user when a name is claimed.
type UserRecord struct {
	Name     string              `json:"name"`
	Prefs    profile.Preferences `json:"prefs"`
	LastSeen time.Time           `json:"last_seen"`
}

// SessionRecord is published on archive.session when a session is created.
type SessionRecord struct {
	ID        string    `json:"id"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageRecord is published on archive.message for every delivered chat
// message. Media payloads stay out of it: the base64 data URL can run to
// tens of megabytes, far past the NATS payload ceiling, and has no
// retention value. Only the media kind, filename and voice flag survive.
type MessageRecord struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	Text      string `json:"text,omitempty"`
	Ts        int64  `json:"ts"`
	MediaType string `json:"media_type,omitempty"`
	Filename  string `json:"filename,omitempty"`
	IsVoice   bool   `json:"is_voice,omitempty"`
}

func newMessageRecord(msg core.Message) MessageRecord {
	return MessageRecord{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		From:      msg.From,
		Text:      msg.Text,
		Ts:        msg.Ts,
		MediaType: msg.MediaType,
		Filename:  msg.Filename,
		IsVoice:   msg.IsVoice,
	}
}

// StatusRecord is published on archive.status when a session changes state.
type StatusRecord struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PruneRecord is published on archive.prune to request retention cleanup.
type PruneRecord struct {
	// Scope is "sessions" or "users".
	Scope  string    `json:"scope"`
	Cutoff time.Time `json:"cutoff"`
}

// ArchiveSink implements core.Sink on top of NATS. Events are handed to a
// buffered channel and published by a single background goroutine, so the
// core never blocks on archival; when the buffer is full the event is
// dropped with a log line. Archive data is best effort.
type ArchiveSink struct {
	client *NATSClient
	events chan archiveEvent
	done   chan struct{}
}

type archiveEvent struct {
	subject string
	payload interface{}
}

// DefaultArchiveBuffer is the queued-event capacity of an ArchiveSink.
const DefaultArchiveBuffer = 4096

// NewArchiveSink builds a sink publishing on the archive.* subjects and
// starts its publish goroutine.
func NewArchiveSink(client *NATSClient) *ArchiveSink {
	s := &ArchiveSink{
		client: client,
		events: make(chan archiveEvent, DefaultArchiveBuffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *ArchiveSink) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			data, err := json.Marshal(ev.payload)
			if err != nil {
				log.Printf("[archive] marshal %s: %v", ev.subject, err)
				continue
			}
			if err := s.client.Publish(ev.subject, data); err != nil {
				log.Printf("[archive] publish %s: %v", ev.subject, err)
			}
		}
	}
}

// Close stops the publish goroutine. Queued events are discarded.
func (s *ArchiveSink) Close() {
	close(s.done)
}

func (s *ArchiveSink) enqueue(subject string, payload interface{}) {
	select {
	case s.events <- archiveEvent{subject: subject, payload: payload}:
	default:
		log.Printf("[archive] buffer full, dropping %s event", subject)
	}
}

func (s *ArchiveSink) PersistUser(name string, prefs profile.Preferences, lastSeen time.Time) {
	s.enqueue(SubjectArchiveUser, UserRecord{Name: name, Prefs: prefs, LastSeen: lastSeen})
}

func (s *ArchiveSink) PersistSession(id string, members []string, createdAt time.Time) {
	s.enqueue(SubjectArchiveSession, SessionRecord{ID: id, Members: members, CreatedAt: createdAt})
}

func (s *ArchiveSink) PersistMessage(msg core.Message) {
	s.enqueue(SubjectArchiveMessage, newMessageRecord(msg))
}

func (s *ArchiveSink) UpdateSessionStatus(id, status string) {
	s.enqueue(SubjectArchiveStatus, StatusRecord{ID: id, Status: status})
}

func (s *ArchiveSink) DeleteStaleSessions(cutoff time.Time) {
	s.enqueue(SubjectArchivePrune, PruneRecord{Scope: "sessions", Cutoff: cutoff})
}

func (s *ArchiveSink) DeleteStaleUsers(cutoff time.Time) {
	s.enqueue(SubjectArchivePrune, PruneRecord{Scope: "users", Cutoff: cutoff})
}

var _ core.Sink = (*ArchiveSink)(nil)
