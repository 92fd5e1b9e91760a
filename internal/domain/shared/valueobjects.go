package shared

import (
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER ID
// ══════════════════════════════════════════════════════════════════════════════

// UserID identifies a platform user. The engine treats it as opaque; the
// auth layer issues UUIDs but legacy accounts carry other formats.
type UserID string

// IsValid checks that the ID is non-blank.
func (u UserID) IsValid() bool {
	return strings.TrimSpace(string(u)) != ""
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID validates and creates a UserID.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", ErrEmptyUserID
	}
	return uid, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION ID
// ══════════════════════════════════════════════════════════════════════════════

// SessionID identifies one workout submission. Replays carry the same value.
type SessionID string

// IsValid checks that the ID is non-blank.
func (s SessionID) IsValid() bool {
	return strings.TrimSpace(string(s)) != ""
}

// String returns the string representation.
func (s SessionID) String() string {
	return string(s)
}

// NewSessionID validates and creates a SessionID.
func NewSessionID(id string) (SessionID, error) {
	sid := SessionID(strings.TrimSpace(id))
	if !sid.IsValid() {
		return "", ErrEmptySessionID
	}
	return sid, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PERCENTAGE
// ══════════════════════════════════════════════════════════════════════════════

// Percentage computes round-half-up(100 × part / whole) clamped to [0, 100].
// A non-positive whole counts as complete.
func Percentage(part, whole int64) int {
	if whole <= 0 {
		return 100
	}
	if part <= 0 {
		return 0
	}
	if part >= whole {
		return 100
	}
	return int((part*200 + whole) / (whole * 2))
}
