// Package protocol defines the WebSocket message types and structures used for
// communication between the client and server. All messages are serialized as
// JSON and follow a consistent envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeClaimName   = "claim_name"
	TypeUpdatePrefs = "update_preferences"
	TypeFindPartner = "find_partner"
	TypeStopWaiting = "stop_waiting"
	TypeSendMessage = "send_message"
	TypeSendMedia   = "send_media"
	TypeHistory     = "history"
	TypeChatStatus  = "chat_status"
	TypeLeave       = "leave_session"
	TypeOnline      = "online"
	TypeHeartbeat   = "heartbeat"
	TypeLogout      = "logout"
	TypeForceLogout = "force_logout"
	TypePing        = "ping"
)

// Server -> Client message types.
const (
	TypeClaimed     = "claimed"
	TypePrefsSet    = "preferences_updated"
	TypeMatched     = "matched"
	TypeWaiting     = "waiting"
	TypeStopped     = "stopped_waiting"
	TypeMessage     = "private_message"
	TypeHistoryPage = "history_page"
	TypeStatus      = "status"
	TypeOnlineList  = "online_list"
	TypeLeft        = "left"
	TypeLoggedOut   = "logged_out"
	TypeKeepalive   = "keepalive"
	TypeError       = "error"
	TypePong        = "pong"
)

// ---------------------------------------------------------------------------
// Envelope is used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// ClaimNameMsg registers a display name together with the claimant's
// declared profile and search preferences.
type ClaimNameMsg struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Gender       string `json:"gender"`
	AgeGroup     string `json:"age_group"`
	SearchGender string `json:"search_gender"`
	SearchAge    string `json:"search_age"`
}

// UpdatePrefsMsg changes what the client is searching for.
type UpdatePrefsMsg struct {
	Type         string `json:"type"`
	SearchGender string `json:"search_gender"`
	SearchAge    string `json:"search_age"`
}

// FindPartnerMsg asks for an immediate match or a slot in the waiting pool.
type FindPartnerMsg struct {
	Type string `json:"type"`
}

// StopWaitingMsg withdraws the client from the waiting pool.
type StopWaitingMsg struct {
	Type string `json:"type"`
}

// SendMessageMsg is a text message sent into a chat session.
type SendMessageMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// SendMediaMsg is a media upload: Data carries raw base64 (optionally a full
// data URL) and Kind selects the size ceiling.
type SendMediaMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Data      string `json:"data"`
	Filename  string `json:"filename"`
}

// HistoryMsg requests session messages newer than Since (unix millis).
type HistoryMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Since     int64  `json:"since"`
}

// ChatStatusMsg polls the client's place in the system.
type ChatStatusMsg struct {
	Type string `json:"type"`
}

// LeaveMsg exits the current chat session.
type LeaveMsg struct {
	Type string `json:"type"`
}

// OnlineMsg requests the list of recently active users.
type OnlineMsg struct {
	Type string `json:"type"`
}

// HeartbeatMsg refreshes the client's activity timestamp.
type HeartbeatMsg struct {
	Type string `json:"type"`
}

// LogoutMsg releases the client's name and tears down its state. ForceLogout
// carries the same shape; it is fired by page-unload handlers and is never
// answered.
type LogoutMsg struct {
	Type string `json:"type"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// AckMsg is a minimal success response for commands with no payload.
type AckMsg struct {
	Type string `json:"type"`
	OK   bool   `json:"ok"`
}

// ErrorMsg is sent by the server to communicate an error condition. Code is
// a stable machine-readable discriminator; Message is safe to display.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OnlineListMsg carries the sorted names of recently active users.
type OnlineListMsg struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeClaimName:
		var m ClaimNameMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeUpdatePrefs:
		var m UpdatePrefsMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeFindPartner:
		var m FindPartnerMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeStopWaiting:
		var m StopWaitingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendMessage:
		var m SendMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendMedia:
		var m SendMediaMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeHistory:
		var m HistoryMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatStatus:
		var m ChatStatusMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeave:
		var m LeaveMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeOnline:
		var m OnlineMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeHeartbeat:
		var m HeartbeatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLogout, TypeForceLogout:
		var m LogoutMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// may be any JSON-marshalable struct or map; this function marshals it,
// injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
