package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// LocalURLPrefix is the route that serves locally stored blobs.
const LocalURLPrefix = "/uploads"

// LocalStore keeps blobs in a directory on disk.
type LocalStore struct {
	dir       string
	urlPrefix string
}

func NewLocal(dir, urlPrefix string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir %q: %w", dir, err)
	}
	if urlPrefix == "" {
		urlPrefix = LocalURLPrefix
	}
	return &LocalStore{dir: dir, urlPrefix: urlPrefix}, nil
}

// Dir returns the directory blobs are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Put(ctx context.Context, obj Object) (string, error) {
	if !validKey(obj.Key) {
		return "", ErrInvalidKey
	}
	if obj.Body == nil {
		return "", fmt.Errorf("object body is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Write to a temp file and rename so readers never see a partial blob.
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, obj.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing %s: %w", obj.Key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", obj.Key, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, obj.Key)); err != nil {
		return "", fmt.Errorf("publishing %s: %w", obj.Key, err)
	}

	return path.Join(s.urlPrefix, obj.Key), nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}
