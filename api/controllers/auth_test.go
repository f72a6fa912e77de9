package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/licensedesk/api/middleware"
	"github.com/angelmondragon/licensedesk/internal/auth"
	"github.com/angelmondragon/licensedesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensedesk/pkg/errors"
	"github.com/angelmondragon/licensedesk/pkg/logger"
)

type stubAuthService struct {
	loginFn func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	meFn    func(ctx context.Context, userID uuid.UUID) (*auth.MeResponse, error)
}

func (s stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, req)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*auth.MeResponse, error) {
	if s.meFn != nil {
		return s.meFn(ctx, userID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestAuthLoginSuccess(t *testing.T) {
	var got auth.LoginRequest
	svc := stubAuthService{loginFn: func(_ context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
		got = req
		return &auth.LoginResponse{AccessToken: "tok", TokenType: "bearer", ExpiresIn: 3600, Role: enums.RoleSupport}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"support","password":"password"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	AuthLogin(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.Username != "support" || got.Password != "password" {
		t.Fatalf("unexpected login request %+v", got)
	}

	var envelope struct {
		Data auth.LoginResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.AccessToken != "tok" || envelope.Data.Role != enums.RoleSupport {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestAuthLoginRejectsInvalidBody(t *testing.T) {
	called := false
	svc := stubAuthService{loginFn: func(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
		called = true
		return nil, nil
	}}

	cases := map[string]string{
		"malformed":      `{"username":`,
		"missing fields": `{"username":"support"}`,
		"unknown field":  `{"username":"support","password":"x","role":"license"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
			resp := httptest.NewRecorder()
			AuthLogin(svc, testLogger())(resp, req)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
		})
	}
	if called {
		t.Fatal("service must not be called for invalid bodies")
	}
}

func TestAuthLoginPropagatesUnauthorized(t *testing.T) {
	svc := stubAuthService{loginFn: func(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"support","password":"bad"}`))
	resp := httptest.NewRecorder()
	AuthLogin(svc, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthMeUsesTokenIdentity(t *testing.T) {
	userID := uuid.New()
	svc := stubAuthService{meFn: func(_ context.Context, id uuid.UUID) (*auth.MeResponse, error) {
		if id != userID {
			t.Errorf("unexpected user id %s", id)
		}
		return &auth.MeResponse{Username: "accounts", Role: enums.RoleAccounts}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{
		UserID:   userID,
		Username: "accounts",
		Role:     enums.RoleAccounts,
	}))
	resp := httptest.NewRecorder()
	AuthMe(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data auth.MeResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Username != "accounts" || envelope.Data.Role != enums.RoleAccounts {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}
