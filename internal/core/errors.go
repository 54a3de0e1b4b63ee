package core

import (
	"errors"
	"fmt"
)

// Kind classifies a user-facing failure. Kinds are stable wire values:
// transports surface them verbatim in error responses.
type Kind string

const (
	// KindValidation: malformed input (bad name, bad enum, oversized
	// payload). Never mutates state.
	KindValidation Kind = "validation"

	// KindNotOnline: the caller is not present in the presence registry.
	KindNotOnline Kind = "not_online"

	// KindExpired: the caller's presence lapsed past the inactivity window
	// and has been torn down; a new claim is required.
	KindExpired Kind = "expired"

	// KindSessionExpired: the targeted session no longer exists.
	KindSessionExpired Kind = "session_expired"

	// KindNotAMember: the caller does not belong to the targeted session.
	KindNotAMember Kind = "not_a_member"

	// KindConflict: the requested name is held by an active user, or the
	// caller is already in a session.
	KindConflict Kind = "conflict"

	// KindInternal: unexpected failure. Surfaced as a generic error.
	KindInternal Kind = "internal"
)

// Error is the discriminated error returned by every user-facing operation.
// The Reason is human-readable and safe to show to the acting user.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// errf builds an *Error with a formatted reason.
func errf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from an error returned by a Core operation.
// Unrecognized errors map to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
