package domain

import (
	"time"

	"github.com/google/uuid"
)

type Channel struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Description  *string    `json:"description,omitempty"`
	IsPublic     bool       `json:"is_public"`
	IsDM         bool       `json:"is_dm"`
	PasswordHash *string    `json:"-"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasPassword reports whether joining this channel requires a password.
func (c *Channel) HasPassword() bool {
	return c.PasswordHash != nil && *c.PasswordHash != ""
}

// Member is one row of the persisted user↔channel relation. Runtime
// subscriptions in the gateway are a separate, ephemeral concept.
type Member struct {
	ChannelID uuid.UUID `json:"channel_id"`
	UserID    uuid.UUID `json:"user_id"`
	JoinedAt  time.Time `json:"joined_at"`
}
