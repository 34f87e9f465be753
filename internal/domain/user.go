package domain

import (
	"errors"
	"time"
)

// ErrUserNotFound is returned when a recompute targets an unknown user.
var ErrUserNotFound = errors.New("user not found")

// User is the minimal view of an account the stats engine needs.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}
