package model

import (
	"time"
)

// Role tags the origin of a conversation turn
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Turn is one message of a conversation. It is never modified after creation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn creates a turn stamped with the current time
func NewTurn(role Role, content string) *Turn {
	return &Turn{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// String renders the turn as a role-tagged line for prompts
func (t *Turn) String() string {
	return string(t.Role) + ": " + t.Content
}
