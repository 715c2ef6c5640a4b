package identity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/auth"
)

const entity = "user"

const (
	MinPasswordLength = 8
	maxUsernameLength = 80
)

// User is a staff account. The role is stored as user_type.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser is the input of CreateUser.
type NewUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (n *NewUser) Normalize() {
	n.Username = strings.ToLower(strings.TrimSpace(n.Username))
	n.Role = strings.ToLower(strings.TrimSpace(n.Role))
}

func (n *NewUser) Validate() error {
	if n.Username == "" {
		return apperr.Validation(entity, "username", "is required")
	}
	if utf8.RuneCountInString(n.Username) > maxUsernameLength {
		return apperr.Validation(entity, "username", "exceeds %d characters", maxUsernameLength)
	}
	if strings.ContainsAny(n.Username, " \t\r\n") {
		return apperr.Validation(entity, "username", "must not contain whitespace")
	}
	if len(n.Password) < MinPasswordLength {
		return apperr.Validation(entity, "password", "must be at least %d characters", MinPasswordLength)
	}
	if !auth.ValidRole(n.Role) {
		return apperr.Validation(entity, "role", "must be one of admin, doctor, receptionist; got %q", n.Role)
	}
	return nil
}
