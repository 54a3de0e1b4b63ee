package protocol

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid claim_name message
// ---------------------------------------------------------------------------

func TestParseClientMessage_ClaimName(t *testing.T) {
	input := []byte(`{"type":"claim_name","name":"alice_92","gender":"female","age_group":"18-25","search_gender":"male","search_age":"any"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeClaimName {
		t.Fatalf("expected type %q, got %q", TypeClaimName, msgType)
	}

	cm, ok := msg.(ClaimNameMsg)
	if !ok {
		t.Fatalf("expected ClaimNameMsg, got %T", msg)
	}
	if cm.Name != "alice_92" {
		t.Errorf("expected name %q, got %q", "alice_92", cm.Name)
	}
	if cm.Gender != "female" || cm.AgeGroup != "18-25" {
		t.Errorf("unexpected profile: gender=%q age_group=%q", cm.Gender, cm.AgeGroup)
	}
	if cm.SearchGender != "male" || cm.SearchAge != "any" {
		t.Errorf("unexpected search prefs: %q / %q", cm.SearchGender, cm.SearchAge)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a valid send_message message
// ---------------------------------------------------------------------------

func TestParseClientMessage_SendMessage(t *testing.T) {
	input := []byte(`{"type":"send_message","session_id":"abc-123","text":"Hello!"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeSendMessage {
		t.Fatalf("expected type %q, got %q", TypeSendMessage, msgType)
	}

	sm, ok := msg.(SendMessageMsg)
	if !ok {
		t.Fatalf("expected SendMessageMsg, got %T", msg)
	}
	if sm.SessionID != "abc-123" {
		t.Errorf("expected session_id %q, got %q", "abc-123", sm.SessionID)
	}
	if sm.Text != "Hello!" {
		t.Errorf("expected text %q, got %q", "Hello!", sm.Text)
	}
}

// ---------------------------------------------------------------------------
// Test: Creating an online_list server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_OnlineList(t *testing.T) {
	payload := OnlineListMsg{
		Users: []string{"alice", "bob"},
		Count: 2,
	}

	data, err := NewServerMessage(TypeOnlineList, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Decode back and verify structure.
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeOnlineList {
		t.Errorf("expected type %q, got %v", TypeOnlineList, result["type"])
	}

	users, ok := result["users"].([]interface{})
	if !ok {
		t.Fatalf("expected users to be an array, got %T", result["users"])
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0] != "alice" || users[1] != "bob" {
		t.Errorf("unexpected users: %v", users)
	}

	count, ok := result["count"].(float64)
	if !ok {
		t.Fatalf("expected count to be a number, got %T", result["count"])
	}
	if int(count) != 2 {
		t.Errorf("expected count 2, got %v", count)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing an unknown message type returns an error
// ---------------------------------------------------------------------------

func TestParseClientMessage_UnknownType(t *testing.T) {
	input := []byte(`{"type":"unknown_type","data":"something"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected an error for unknown message type, got nil")
	}
	if msg != nil {
		t.Errorf("expected nil message for unknown type, got %v", msg)
	}
	if msgType != "unknown_type" {
		t.Errorf("expected returned type %q, got %q", "unknown_type", msgType)
	}
}

// ---------------------------------------------------------------------------
// Test: Envelope UnmarshalJSON edge cases
// ---------------------------------------------------------------------------

func TestEnvelope_MissingType(t *testing.T) {
	input := []byte(`{"data":"no type field"}`)
	var env Envelope
	if err := json.Unmarshal(input, &env); err == nil {
		t.Fatal("expected error for missing type field, got nil")
	}
}

func TestEnvelope_InvalidJSON(t *testing.T) {
	input := []byte(`{invalid json}`)
	var env Envelope
	if err := json.Unmarshal(input, &env); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing all client message types succeeds
// ---------------------------------------------------------------------------

func TestParseClientMessage_AllTypes(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantType string
	}{
		{"claim_name", `{"type":"claim_name","name":"alice"}`, TypeClaimName},
		{"update_preferences", `{"type":"update_preferences","search_gender":"any","search_age":"any"}`, TypeUpdatePrefs},
		{"find_partner", `{"type":"find_partner"}`, TypeFindPartner},
		{"stop_waiting", `{"type":"stop_waiting"}`, TypeStopWaiting},
		{"send_message", `{"type":"send_message","session_id":"id1","text":"hi"}`, TypeSendMessage},
		{"send_media", `{"type":"send_media","session_id":"id1","kind":"image","data":"aGk=","filename":"a.png"}`, TypeSendMedia},
		{"history", `{"type":"history","session_id":"id1","since":0}`, TypeHistory},
		{"chat_status", `{"type":"chat_status"}`, TypeChatStatus},
		{"leave_session", `{"type":"leave_session"}`, TypeLeave},
		{"online", `{"type":"online"}`, TypeOnline},
		{"heartbeat", `{"type":"heartbeat"}`, TypeHeartbeat},
		{"logout", `{"type":"logout"}`, TypeLogout},
		{"force_logout", `{"type":"force_logout"}`, TypeForceLogout},
		{"ping", `{"type":"ping"}`, TypePing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msgType, msg, err := ParseClientMessage([]byte(tc.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msgType != tc.wantType {
				t.Errorf("expected type %q, got %q", tc.wantType, msgType)
			}
			if msg == nil {
				t.Error("expected non-nil message")
			}
		})
	}
}
