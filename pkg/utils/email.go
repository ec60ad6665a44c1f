package utils

import "strings"

// NormalizeEmail is the canonical form used for storage, lookup and hashing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
