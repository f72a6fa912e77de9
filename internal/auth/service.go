package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/licensedesk/internal/users"
	pkgAuth "github.com/angelmondragon/licensedesk/pkg/auth"
	"github.com/angelmondragon/licensedesk/pkg/config"
	"github.com/angelmondragon/licensedesk/pkg/db/models"
	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
	"github.com/angelmondragon/licensedesk/pkg/logger"
	"github.com/angelmondragon/licensedesk/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const invalidCredentialsMessage = "invalid credentials"

// Service is the login surface of the api.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*MeResponse, error)
}

type userRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type passwordHasher interface {
	Hash(password string) (string, error)
}

type service struct {
	users  userRepository
	jwtCfg config.JWTConfig
	logg   *logger.Logger
	now    func() time.Time
	// decoy is verified against when the username is unknown so both
	// failure paths cost one argon2 run.
	decoy string
}

// ServiceParams bundles the login collaborators. Hasher, Logger and Now are optional.
type ServiceParams struct {
	UserRepo  userRepository
	JWTConfig config.JWTConfig
	Hasher    passwordHasher
	Logger    *logger.Logger
	Now       func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if p.JWTConfig.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	svc := &service{users: p.UserRepo, jwtCfg: p.JWTConfig, logg: p.Logger, now: p.Now}
	if svc.now == nil {
		svc.now = time.Now
	}
	if p.Hasher != nil {
		decoy, err := p.Hasher.Hash(uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("prepare decoy hash: %w", err)
		}
		svc.decoy = decoy
	}
	return svc, nil
}

// loginFailure names why a login was refused. Callers only ever see
// invalidCredentialsMessage; the reason goes to the log.
type loginFailure string

const (
	failBlankInput   loginFailure = "blank_input"
	failUnknownUser  loginFailure = "unknown_user"
	failBadPassword  loginFailure = "bad_password"
	failCorruptHash  loginFailure = "corrupt_hash"
	failRoleMismatch loginFailure = "unknown_role"
)

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	username := users.NormalizeUsername(req.Username)
	user, reason, err := s.checkCredentials(ctx, username, req.Password)
	if err != nil {
		return nil, err
	}
	if reason == "" && !user.Role.IsValid() {
		reason = failRoleMismatch
	}
	if reason != "" {
		s.refused(ctx, username, reason)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	token, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &LoginResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int(s.jwtCfg.TTL() / time.Second),
		Role:        user.Role,
	}, nil
}

// checkCredentials returns the user on success, a refusal reason on bad
// credentials, or an error when the lookup itself failed.
func (s *service) checkCredentials(ctx context.Context, username, password string) (*models.User, loginFailure, error) {
	if username == "" || password == "" {
		return nil, failBlankInput, nil
	}

	user, err := s.users.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if s.decoy != "" {
			_, _ = security.VerifyPassword(password, s.decoy)
		}
		return nil, failUnknownUser, nil
	case err != nil:
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	switch {
	case errors.Is(err, security.ErrInvalidHash):
		return nil, failCorruptHash, nil
	case err != nil:
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	case !ok:
		return nil, failBadPassword, nil
	}
	return user, "", nil
}

func (s *service) refused(ctx context.Context, username string, reason loginFailure) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"username": username,
		"reason":   string(reason),
	}), "auth.login.refused")
}

// Me re-reads the account so a deleted user loses access before the token expires.
func (s *service) Me(ctx context.Context, userID uuid.UUID) (*MeResponse, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user no longer exists")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	return &MeResponse{Username: user.Username, Role: user.Role}, nil
}
