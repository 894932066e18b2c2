package auth

import "github.com/google/uuid"

// Identity is the verified caller extracted from a bearer token. It is the
// single authorization context threaded through handlers, services and the
// realtime gateway.
type Identity struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
}
