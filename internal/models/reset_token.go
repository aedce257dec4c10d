package models

import "time"

// PasswordResetToken is one issued reset link. It is logically dead once
// Used is set or ExpiresAt has passed.
type PasswordResetToken struct {
	ID        int64
	Token     string
	UserID    int64
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
