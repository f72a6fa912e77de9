package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/licensedesk/pkg/db"
	"github.com/angelmondragon/licensedesk/pkg/db/models"
	"github.com/angelmondragon/licensedesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const minPasswordLength = 4

type userRepository interface {
	Create(ctx context.Context, dto CreateUserDTO) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	List(ctx context.Context) ([]models.User, error)
}

type passwordHasher interface {
	Hash(password string) (string, error)
}

// Service covers the operator-side account tasks.
type Service interface {
	SeedRoleUsers(ctx context.Context, password string) ([]UserDTO, error)
	ChangePassword(ctx context.Context, username, password string) error
	ListUsers(ctx context.Context) ([]UserDTO, error)
}

type service struct {
	repo   userRepository
	hasher passwordHasher
}

func NewService(repo userRepository, hasher passwordHasher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher required")
	}
	return &service{repo: repo, hasher: hasher}, nil
}

// SeedRoleUsers creates one user per role, named after the role, all sharing
// the given password.
func (s *service) SeedRoleUsers(ctx context.Context, password string) ([]UserDTO, error) {
	if len(password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	out := make([]UserDTO, 0, len(enums.Roles()))
	for _, role := range enums.Roles() {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		user, err := s.repo.Create(ctx, CreateUserDTO{
			Username:     string(role),
			PasswordHash: hash,
			Role:         role,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "user "+string(role)+" already exists")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user "+string(role))
		}
		out = append(out, *FromModel(user))
	}
	return out, nil
}

func (s *service) ChangePassword(ctx context.Context, username, password string) error {
	username = NormalizeUsername(username)
	if username == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	if len(password) < minPasswordLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}
	return nil
}

func (s *service) ListUsers(ctx context.Context) ([]UserDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}
