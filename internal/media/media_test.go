package media

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestValidateAcceptsRawBase64(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte("tiny image bytes"))
	if err := Validate(KindImage, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAcceptsDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4e, 0x47})
	data := "data:image/png;base64," + payload
	if err := Validate(KindImage, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		kind string
		data string
	}{
		{"empty payload", KindImage, ""},
		{"malformed data URL", KindImage, "data:image/png;base64"},
		{"disallowed mime", KindFile, "data:application/x-msdownload;base64,aGk="},
		{"not base64 marked", KindImage, "data:image/png,rawbytes"},
		{"invalid base64", KindImage, "!!!not-base64!!!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.kind, tc.data); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestValidateOversizedPayload(t *testing.T) {
	// The encoded-length pre-check fires without decoding: the voice
	// ceiling is 10MB and 15MB of base64 decodes past it.
	over := strings.Repeat("A", 15<<20)
	err := Validate(KindVoice, over)
	if err == nil {
		t.Fatal("expected oversize error")
	}
	if !strings.Contains(err.Error(), "10MB") {
		t.Errorf("expected the voice ceiling in the error, got %q", err)
	}
}

func TestCeilingFallsBackToFile(t *testing.T) {
	if Ceiling("hologram") != Ceiling(KindFile) {
		t.Error("unknown kinds should use the generic file ceiling")
	}
	if Ceiling(KindVideo) != 50<<20 {
		t.Errorf("video ceiling: got %d", Ceiling(KindVideo))
	}
}

func TestFormatDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("x"))

	// Already a data URL: passed through.
	in := "data:image/png;base64," + payload
	if got := FormatDataURL(KindImage, "a.png", in); got != in {
		t.Errorf("expected passthrough, got %q", got)
	}

	// Extension drives the MIME type.
	got := FormatDataURL(KindImage, "photo.png", payload)
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("expected image/png prefix, got %q", got)
	}

	// No extension: kind-specific fallback.
	got = FormatDataURL(KindVoice, "", payload)
	if !strings.HasPrefix(got, "data:audio/webm;base64,") {
		t.Errorf("expected audio/webm fallback, got %q", got)
	}
	got = FormatDataURL(KindFile, "", payload)
	if !strings.HasPrefix(got, "data:application/octet-stream;base64,") {
		t.Errorf("expected octet-stream fallback, got %q", got)
	}
}

func TestValidateText(t *testing.T) {
	if err := ValidateText("hello"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateText("   "); err == nil {
		t.Error("expected error for blank text")
	}
	if err := ValidateText(strings.Repeat("x", MaxTextChars)); err != nil {
		t.Errorf("exactly at the limit should pass: %v", err)
	}
	if err := ValidateText(strings.Repeat("x", MaxTextChars+1)); err == nil {
		t.Error("expected error past the limit")
	}
}
