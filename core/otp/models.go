package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Purpose tags what an issued code may be used for.
type Purpose string

const PurposeLogin Purpose = "login"

// Code is a short-lived one-time passcode bound to an email and a purpose.
// At most one active code exists per (email, purpose): issuing again deletes
// the previous one.
type Code struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	Purpose   Purpose   `json:"purpose"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"` // UTC
	CreatedAt time.Time `json:"created_at"` // UTC
}

func (c Code) Expired(now time.Time) bool { return now.After(c.ExpiresAt) }

// randomCode returns a 6-digit numeric code from crypto/rand.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n), nil
}
