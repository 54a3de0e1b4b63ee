package profile

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// MinNameLen and MaxNameLen bound the display-name length in runes.
	MinNameLen = 3
	MaxNameLen = 18
)

// reservedWords may not appear anywhere inside a display name
// (case-insensitive). They are reserved for system and staff identities.
var reservedWords = []string{"admin", "system", "root", "moderator", "support"}

// ValidateName checks a display name against the format rules: 3-18 runes,
// letters (Latin or Cyrillic), digits and underscore only, and no reserved
// word as a substring. Returns nil if the name is acceptable.
func ValidateName(name string) error {
	runes := []rune(name)
	if len(runes) < MinNameLen || len(runes) > MaxNameLen {
		return fmt.Errorf("name must be %d-%d characters", MinNameLen, MaxNameLen)
	}
	for _, r := range runes {
		if !nameRune(r) {
			return fmt.Errorf("only letters, digits and underscore are allowed")
		}
	}
	lower := strings.ToLower(name)
	for _, word := range reservedWords {
		if strings.Contains(lower, word) {
			return fmt.Errorf("this name is reserved")
		}
	}
	return nil
}

// nameRune reports whether r is allowed in a display name. The alphabet is
// ASCII letters and digits, the underscore, and Cyrillic letters.
func nameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	case unicode.Is(unicode.Cyrillic, r):
		return true
	}
	return false
}

// LowerName folds a display name for case-insensitive uniqueness checks.
// Names are claimed case-insensitively but stored and displayed as typed.
func LowerName(name string) string {
	return strings.ToLower(name)
}

// FormatName strips disallowed runes from a raw name and truncates it to the
// maximum length. It runs after validation, before the name enters the
// presence registry.
func FormatName(name string) string {
	runes := []rune(name)
	if len(runes) > MaxNameLen {
		runes = runes[:MaxNameLen]
	}
	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		if nameRune(r) {
			out = append(out, r)
		}
	}
	return strings.TrimSpace(string(out))
}
