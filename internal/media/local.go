package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore keeps files under a directory on disk.
type LocalStore struct {
	dir       string
	urlPrefix string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates dir if needed. urlPrefix is what the server mounts
// the directory at, e.g. "/media/" or "https://cdn.example.com/media/".
func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: creating %s: %w", dir, err)
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &LocalStore{dir: dir, urlPrefix: urlPrefix}, nil
}

// Dir is the root directory, for mounting a file server.
func (s *LocalStore) Dir() string {
	return s.dir
}

// path maps a key to a file path, refusing keys that escape the root.
func (s *LocalStore) path(key string) (string, error) {
	clean := path.Clean(key)
	if key == "" || clean == "." || strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("media: invalid key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

// Save writes to a temporary file and renames it into place so readers never
// see a half-written image.
func (s *LocalStore) Save(_ context.Context, key string, data []byte, _ string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("media: creating directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("media: creating temp file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("media: writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("media: closing %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("media: moving %s into place: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("media: deleting %s: %w", key, err)
	}
	return nil
}

// List walks dir/prefix and returns slash-separated keys. A missing prefix
// directory yields no keys.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	root, err := s.path(prefix)
	if err != nil {
		return nil, err
	}

	var keys []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return fs.SkipAll
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("media: listing %s: %w", prefix, err)
	}
	return keys, nil
}

func (s *LocalStore) URL(key string) string {
	return s.urlPrefix + key
}
