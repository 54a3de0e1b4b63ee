package core

// SystemSender marks machine-generated notices (join/leave lines).
const SystemSender = "system"

// Message is a single chat entry. Ts is unix milliseconds so ordering
// survives JSON round-trips without timezone ambiguity.
type Message struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	Text      string `json:"text,omitempty"`
	Ts        int64  `json:"ts"`

	// Media fields are set only for media messages. MediaData carries a
	// base64 data URL ready for client rendering.
	MediaType string `json:"media_type,omitempty"`
	MediaData string `json:"media_data,omitempty"`
	Filename  string `json:"filename,omitempty"`
	IsVoice   bool   `json:"is_voice,omitempty"`

	// Sound is a client-side audio cue attached to system notices.
	Sound string `json:"sound,omitempty"`
}
