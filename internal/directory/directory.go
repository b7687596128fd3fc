package directory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is a user's marketplace role.
type Role string

const (
	RoleAgent  Role = "agent"
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
	RoleAdmin  Role = "admin"
)

// User is a directory entry. The marketplace's user management lives outside
// this core; the directory only resolves identities and roles.
type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Role      Role
	CreatedAt time.Time
	UpdatedAt *time.Time
}

var ErrNotFound = errors.New("user not found")
