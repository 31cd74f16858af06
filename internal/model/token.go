package model

import (
	"time"
)

// PasswordResetToken is a single-use emailed verification code.
type PasswordResetToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

const resetTokenTTL = 24 * time.Hour

func (t *PasswordResetToken) IsValid(now time.Time) bool {
	return !t.Used && now.Sub(t.CreatedAt) < resetTokenTTL
}
