package models

import "time"

type PasswordReset struct {
	ID         int64      `json:"id"`
	IdentityID string     `json:"identityId"`
	Token      string     `json:"-"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	UsedAt     *time.Time `json:"usedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}
