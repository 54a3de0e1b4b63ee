// Package media validates chat media payloads before they reach the session
// layer: data-URL structure, base64 integrity, allowed MIME families, and
// per-kind size ceilings.
package media

import (
	"encoding/base64"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Media kinds accepted by the send_media command.
const (
	KindImage = "image"
	KindVideo = "video"
	KindVoice = "voice"
	KindMusic = "music"
	KindFile  = "file"
)

// Size ceilings in bytes, per media kind. KindFile is the generic ceiling
// applied to anything not listed.
var sizeCeilings = map[string]int64{
	KindImage: 20 << 20,
	KindVideo: 50 << 20,
	KindMusic: 30 << 20,
	KindVoice: 10 << 20,
	KindFile:  64 << 20,
}

// MaxTextChars is the character ceiling for plain text messages.
const MaxTextChars = 2000

// allowedMIMEPrefixes is the set of MIME families a data URL may carry.
var allowedMIMEPrefixes = []string{
	"image/", "video/", "audio/",
	"application/pdf", "text/plain",
	"application/zip", "application/x-rar-compressed",
}

// Ceiling returns the byte ceiling for a media kind.
func Ceiling(kind string) int64 {
	if c, ok := sizeCeilings[kind]; ok {
		return c
	}
	return sizeCeilings[KindFile]
}

// Validate checks a base64 media payload (raw or data-URL form) against the
// ceiling for its kind. It rejects empty payloads, malformed data URLs,
// disallowed MIME types, invalid base64, and oversized content.
func Validate(kind, data string) error {
	if data == "" {
		return fmt.Errorf("media payload is empty")
	}

	ceiling := Ceiling(kind)

	// Cheap pre-check on encoded length before decoding anything.
	if estimated := int64(len(data)) * 3 / 4; estimated > ceiling {
		return fmt.Errorf("media exceeds %dMB limit", ceiling>>20)
	}

	b64 := data
	if strings.HasPrefix(data, "data:") {
		header, payload, ok := strings.Cut(data, ",")
		if !ok {
			return fmt.Errorf("malformed data URL")
		}
		if !strings.Contains(header, "base64") {
			return fmt.Errorf("data URL is not base64-encoded")
		}
		mimeType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		if !allowedMIME(mimeType) {
			return fmt.Errorf("media type %q is not allowed", mimeType)
		}
		b64 = payload
	}

	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("invalid base64 payload")
	}
	if int64(len(decoded)) > ceiling {
		return fmt.Errorf("media exceeds %dMB limit", ceiling>>20)
	}
	return nil
}

// allowedMIME reports whether a MIME type belongs to an accepted family.
func allowedMIME(mimeType string) bool {
	for _, prefix := range allowedMIMEPrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}

// FormatDataURL ensures a payload is in data-URL form. Raw base64 gets a
// MIME prefix guessed from the filename extension, falling back to a
// kind-specific default (webm containers for recorded voice and video).
func FormatDataURL(kind, filename, data string) string {
	if strings.HasPrefix(data, "data:") {
		return data
	}
	mimeType := mime.TypeByExtension(filepath.Ext(filename))
	if mimeType == "" {
		switch kind {
		case KindVoice:
			mimeType = "audio/webm"
		case KindVideo:
			mimeType = "video/webm"
		default:
			mimeType = "application/octet-stream"
		}
	}
	return "data:" + mimeType + ";base64," + data
}

// ValidateText checks a plain text message: non-empty and at most
// MaxTextChars characters.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message text is empty")
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return fmt.Errorf("message exceeds %d character limit", MaxTextChars)
	}
	return nil
}
