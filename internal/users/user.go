package users

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type User struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	GarminConnected bool       `json:"garminConnected"`
	LastSyncAt      *time.Time `json:"lastSyncAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`

	// sealed credential payload, see vault.SealPayload
	EncryptedCredential []byte `json:"-"`
}

// HasCredential reports whether the user connected Garmin and a sealed payload is stored.
func (u *User) HasCredential() bool {
	return u.GarminConnected && len(u.EncryptedCredential) > 0
}
