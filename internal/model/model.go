package model

import "time"

// AuthState is the position of a login attempt in the OTP flow.
type AuthState string

const (
	AuthStateAwaitingCredentials AuthState = "awaiting_credentials"
	AuthStateAwaitingOTP         AuthState = "awaiting_otp"
	AuthStateAuthenticated       AuthState = "authenticated"
)

// Board is addressed by BoardID, the human-assigned identifier. ID is the storage identity.
type Board struct {
	ID        string    `json:"-"`
	BoardID   string    `json:"id"`
	Title     string    `json:"title"`
	Cards     []Card    `json:"cards"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Card struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Clone returns a copy that shares no card storage with b.
func (b Board) Clone() Board {
	out := b
	out.Cards = make([]Card, len(b.Cards))
	copy(out.Cards, b.Cards)
	return out
}
