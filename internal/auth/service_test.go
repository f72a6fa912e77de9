package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	pkgAuth "github.com/angelmondragon/licensedesk/pkg/auth"
	"github.com/angelmondragon/licensedesk/pkg/config"
	"github.com/angelmondragon/licensedesk/pkg/db/models"
	"github.com/angelmondragon/licensedesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
	"github.com/angelmondragon/licensedesk/pkg/logger"
	"github.com/angelmondragon/licensedesk/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "licensedesk",
	ExpirationMinutes: 30,
}

func TestServiceLoginIssuesRoleToken(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Username:     "license",
		PasswordHash: mustHashPassword(t, "password"),
		Role:         enums.RoleLicense,
	}
	svc := buildTestService(t, stubUserRepo{user: user})

	resp, err := svc.Login(context.Background(), LoginRequest{Username: " License ", Password: "password"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.TokenType != "bearer" || resp.Role != enums.RoleLicense {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.ExpiresIn != 1800 {
		t.Fatalf("expected 1800s expiry, got %d", resp.ExpiresIn)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.RoleLicense || claims.UserID != user.ID || claims.Username != "license" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Username:     "support",
		PasswordHash: mustHashPassword(t, "password"),
		Role:         enums.RoleSupport,
	}

	cases := []struct {
		name string
		repo stubUserRepo
		req  LoginRequest
	}{
		{"wrong password", stubUserRepo{user: user}, LoginRequest{Username: "support", Password: "nope"}},
		{"unknown user", stubUserRepo{err: gorm.ErrRecordNotFound}, LoginRequest{Username: "ghost", Password: "password"}},
		{"empty username", stubUserRepo{user: user}, LoginRequest{Username: "  ", Password: "password"}},
		{"corrupt hash", stubUserRepo{user: &models.User{ID: uuid.New(), Username: "support", PasswordHash: "plain", Role: enums.RoleSupport}}, LoginRequest{Username: "support", Password: "password"}},
		{"unknown role", stubUserRepo{user: &models.User{ID: uuid.New(), Username: "support", PasswordHash: user.PasswordHash, Role: "admin"}}, LoginRequest{Username: "support", Password: "password"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := buildTestService(t, tc.repo).Login(context.Background(), tc.req)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
				t.Fatalf("expected unauthorized error, got %v", err)
			}
			if typed.Message() != invalidCredentialsMessage {
				t.Fatalf("message must not reveal which check failed: %q", typed.Message())
			}
		})
	}
}

func TestServiceLoginLogsRefusalReason(t *testing.T) {
	buf := &bytes.Buffer{}
	svc, err := NewService(ServiceParams{
		UserRepo:  stubUserRepo{err: gorm.ErrRecordNotFound},
		JWTConfig: testJWTConfig,
		Hasher:    security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1}),
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: buf}),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{Username: "Ghost", Password: "password"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	entry := buf.String()
	if !strings.Contains(entry, `"reason":"unknown_user"`) || !strings.Contains(entry, `"username":"ghost"`) {
		t.Fatalf("expected refusal reason in log, got %s", entry)
	}
	if strings.Contains(entry, "password") {
		t.Fatalf("password must never be logged: %s", entry)
	}
}

func TestServiceLoginRepoFailureIsDependency(t *testing.T) {
	svc := buildTestService(t, stubUserRepo{err: errors.New("connection refused")})

	_, err := svc.Login(context.Background(), LoginRequest{Username: "support", Password: "password"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestServiceMe(t *testing.T) {
	user := &models.User{ID: uuid.New(), Username: "accounts", Role: enums.RoleAccounts}
	svc := buildTestService(t, stubUserRepo{user: user})

	me, err := svc.Me(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Username != "accounts" || me.Role != enums.RoleAccounts {
		t.Fatalf("unexpected me %+v", me)
	}

	if _, err := svc.Me(context.Background(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for nil id, got %v", err)
	}
	gone := buildTestService(t, stubUserRepo{err: gorm.ErrRecordNotFound})
	if _, err := gone.Me(context.Background(), user.ID); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for deleted user, got %v", err)
	}
}

func TestNewServiceValidates(t *testing.T) {
	if _, err := NewService(ServiceParams{JWTConfig: testJWTConfig}); err == nil {
		t.Fatal("expected repository error")
	}
	if _, err := NewService(ServiceParams{UserRepo: stubUserRepo{}}); err == nil {
		t.Fatal("expected secret error")
	}
}

func buildTestService(t *testing.T, repo stubUserRepo) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:  repo,
		JWTConfig: testJWTConfig,
		Now:       func() time.Time { return time.Now() },
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

type stubUserRepo struct {
	user *models.User
	err  error
}

func (s stubUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil || s.user.Username != username {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}
