package util

import (
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

// IsValidUUID accepts only the canonical lowercase hyphenated form Postgres returns.
func IsValidUUID(s string) bool {
	id, err := uuid.Parse(s)
	return err == nil && id.String() == s
}

// NormalizeEmail lowercases and trims an address for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail accepts a bare address (no display name) with a dotted domain.
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}

// MaskEmail keeps the first character of the local part for log lines.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "****"
	}
	return email[:1] + "****" + email[at:]
}
