package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/licensedesk/pkg/config"
	"github.com/angelmondragon/licensedesk/pkg/logger"
	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that could escape the store root.
var ErrInvalidKey = errors.New("invalid object key")

// Object is a blob ready to be written.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store persists uploaded blobs and hands back the URL they are reachable at.
type Store interface {
	Put(ctx context.Context, obj Object) (string, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// New builds the configured backend.
func New(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case config.StorageBackendLocal:
		return NewLocal(cfg.LocalDir, LocalURLPrefix)
	case config.StorageBackendS3:
		return NewS3(ctx, cfg, logg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewKey names a blob <prefix><uuid><ext>. The extension comes from the
// uploaded filename, falling back to fallbackExt.
func NewKey(prefix, filename, fallbackExt string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == "." {
		ext = fallbackExt
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return prefix + uuid.NewString() + ext
}

func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\`) && !strings.Contains(key, "..")
}
