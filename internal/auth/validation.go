package auth

import (
	"regexp"
	"strings"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes
	MaxPasswordBytes = 72
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks if an email is valid
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email) && len(email) < 255
}

// ValidateUsername checks if a username is usable as a login and token subject.
// Usernames never contain '@', so an identifier with '@' can only match an email.
func ValidateUsername(username string) bool {
	return strings.TrimSpace(username) == username && username != "" && len(username) <= 255 &&
		!strings.Contains(username, "@")
}
