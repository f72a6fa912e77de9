package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/licensedesk/pkg/config"
	"github.com/angelmondragon/licensedesk/pkg/db"
	"github.com/angelmondragon/licensedesk/pkg/db/models"
	"github.com/angelmondragon/licensedesk/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShippedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
	require.NoError(t, ValidateDir(""), "embedded copy must validate too")
}

func TestEmbeddedSourceMatchesDisk(t *testing.T) {
	src, err := Source("")
	require.NoError(t, err)
	embeddedNames, err := fs.Glob(src, "*.sql")
	require.NoError(t, err)

	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	require.Len(t, embeddedNames, len(onDisk))
	for _, path := range onDisk {
		assert.Contains(t, embeddedNames, filepath.Base(path))
	}
}

func TestNewRunnerRequiresDB(t *testing.T) {
	_, err := NewRunner(nil, "")
	assert.Error(t, err)
}

func TestValidateDirMissing(t *testing.T) {
	assert.Error(t, ValidateDir(filepath.Join(t.TempDir(), "absent")))
}

func TestLicenseRequestMigrationColumns(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_license_requests.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS license_requests",
		"screenshot_url       text NOT NULL",
		"accounts_verified    boolean,",
		"license_key          text",
		"CHECK (accounts_verified IS NULL OR license_given)",
		"DROP TABLE IF EXISTS license_requests",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := createSQLMigration(dir, "Add Client Notes!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260301090000_add_client_notes.sql"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "-- +goose Up"))
	require.NoError(t, ValidateDir(dir))

	_, err = createSQLMigration(dir, "add client notes", now)
	assert.ErrorContains(t, err, "already used")
	_, err = createSQLMigration(dir, "something else", now)
	assert.ErrorContains(t, err, "already used by 20260301090000_add_client_notes.sql")

	next, err := createSQLMigration(dir, "  Rename--Column  ", now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "20260301090001_rename_column.sql", filepath.Base(next))

	_, err = createSQLMigration(dir, "!!!", now)
	assert.Error(t, err)
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"bad_name.sql":               "-- +goose Up\n-- +goose Down\n",
		"20260301090000_no_down.sql": "-- +goose Up\nSELECT 1;\n",
		"20260301090000_swapped.sql": "-- +goose Down\n-- +goose Up\n",
	}
	for name, body := range cases {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
		assert.Error(t, ValidateDir(dir), name)
	}

	dir := t.TempDir()
	for _, name := range []string{"20260301090000_a.sql", "20260301090000_b.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	}
	assert.ErrorContains(t, ValidateDir(dir), "duplicate migration version")
}

func TestEnsureAndResetSchemaOnSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{DB: config.DBConfig{Driver: "sqlite", DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())}}
	logg := logger.New(logger.Options{ServiceName: "test", Output: &strings.Builder{}})

	client, err := db.New(ctx, cfg.DB, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, EnsureSchema(ctx, cfg, logg, client))
	require.True(t, client.DB().Migrator().HasTable(&models.LicenseRequest{}))

	require.NoError(t, client.DB().Create(&models.User{Username: "support", PasswordHash: "x", Role: "support"}).Error)
	require.NoError(t, ResetSchema(ctx, client, DefaultDir))

	var count int64
	require.NoError(t, client.DB().Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}
