package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/angelmondragon/licensedesk/pkg/config"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	ok := HealthReady(cfg, testLogger(), map[string]Pinger{
		"db":      stubPinger{},
		"storage": stubPinger{},
		"redis":   nil,
	})
	resp := httptest.NewRecorder()
	ok(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-LicenseDesk-Env") != "test" {
		t.Fatal("expected env header")
	}

	failing := HealthReady(cfg, testLogger(), map[string]Pinger{
		"db":      stubPinger{},
		"storage": stubPinger{err: errors.New("bucket missing")},
	})
	resp = httptest.NewRecorder()
	failing(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code < 500 {
		t.Fatalf("expected 5xx got %d", resp.Code)
	}
}

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	resp := httptest.NewRecorder()
	HealthLive(cfg)(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestUploadsServesFilesOnly(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "abc.png"), pngBytes, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	handler := Uploads("/uploads", dir)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/uploads/abc.png", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Body.Len() != len(pngBytes) {
		t.Fatalf("unexpected body length %d", resp.Body.Len())
	}

	for _, path := range []string{"/uploads/", "/uploads/missing.png"} {
		resp = httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404 got %d", path, resp.Code)
		}
	}
}
