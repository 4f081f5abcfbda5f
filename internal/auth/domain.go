package auth

import (
	"fmt"
	"time"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// User is an operator account. Role is one of the shared role constants.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// ErrUserExists indicates a duplicate username.
var ErrUserExists = fmt.Errorf("auth: user exists: %w", httpx.ErrDuplicate)

// ErrUserNotFound indicates the user record is missing.
var ErrUserNotFound = fmt.Errorf("auth: user %w", httpx.ErrNotFound)
