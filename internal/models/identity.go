package models

import "time"

type Identity struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	EmailConfirmedAt *time.Time `json:"emailConfirmedAt,omitempty"`
	PendingCleanup   bool       `json:"-"` // compensation not finished yet
	CreatedAt        time.Time  `json:"createdAt"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
