package models

import "time"

// PhoneVerification holds the single active one-time code per (phone_number, country_code).
// Only the bcrypt hash of the code is persisted.
type PhoneVerification struct {
	ID          int64     `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	CountryCode string    `json:"countryCode"`
	CodeHash    string    `json:"-"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Attempts    int       `json:"attempts"`
	IsVerified  bool      `json:"isVerified"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (v *PhoneVerification) IsExpired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
