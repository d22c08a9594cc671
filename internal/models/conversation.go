package models

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ValidRoles is the set of all valid message roles.
var ValidRoles = []Role{RoleUser, RoleAssistant}

// IsValid returns true if the role is recognized.
func (r Role) IsValid() bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ConversationMessage is one turn of short-term dialogue. A message is
// logically invisible once now >= ExpiresAt, though the row persists until
// a cleanup pass purges it.
type ConversationMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the message is past its TTL at the given instant.
func (m ConversationMessage) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}
