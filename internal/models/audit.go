package models

import "time"

// ActivityEntry represents one audit_log row.
type ActivityEntry struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Action       string    `json:"action"`        // create, update, delete, password_reset
	ResourceType string    `json:"resource_type"` // diary, user
	ResourceID   int64     `json:"resource_id"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
