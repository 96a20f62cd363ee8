package models

import (
	"time"
)

// User represents a registered account
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // never sent to the client
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
