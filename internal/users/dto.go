package users

import (
	"strings"
	"time"

	"github.com/angelmondragon/licensedesk/pkg/db/models"
	"github.com/angelmondragon/licensedesk/pkg/enums"
	"github.com/google/uuid"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Role      enums.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     string
	PasswordHash string
	Role         enums.Role
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Username:     NormalizeUsername(c.Username),
		PasswordHash: c.PasswordHash,
		Role:         c.Role,
	}
}

// NormalizeUsername trims and lowercases a username for storage and lookup.
func NormalizeUsername(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
