package security

import "regexp"

// Identifier rules are fixed: length bounds plus a character allow-list,
// enforced by compiled patterns. Pure booleans, no exceptions.
var (
	// Room ids: 3-64 of alphanumerics, hyphen, underscore.
	roomIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

	// Usernames: leading alphanumeric, then alphanumeric/hyphen/underscore
	// segments joined by single dots.
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*(\.[a-zA-Z0-9][a-zA-Z0-9_-]*)*$`)
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
)

// ValidateRoomID reports whether roomID is an acceptable room identifier.
func ValidateRoomID(roomID string) bool {
	return roomIDPattern.MatchString(roomID)
}

// ValidateUsername reports whether name is an acceptable username.
func ValidateUsername(name string) bool {
	if len(name) < minUsernameLength || len(name) > maxUsernameLength {
		return false
	}
	return usernamePattern.MatchString(name)
}
