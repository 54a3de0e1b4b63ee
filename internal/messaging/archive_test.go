package messaging

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/cloudchat/server/internal/core"
)

func TestMessageRecordOmitsMediaPayload(t *testing.T) {
	msg := core.Message{
		ID:        "m1",
		SessionID: "s1",
		From:      "alice",
		Ts:        1700000000000,
		MediaType: "voice",
		MediaData: "data:audio/webm;base64,iVBORw0KGgo=",
		Filename:  "note.webm",
		IsVoice:   true,
	}

	rec := newMessageRecord(msg)
	if rec.ID != "m1" || rec.SessionID != "s1" || rec.From != "alice" || rec.Ts != msg.Ts {
		t.Errorf("record lost identity fields: %+v", rec)
	}
	if rec.MediaType != "voice" || rec.Filename != "note.webm" || !rec.IsVoice {
		t.Errorf("record lost media metadata: %+v", rec)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "base64") {
		t.Errorf("media payload leaked into the archive record: %s", data)
	}
}
