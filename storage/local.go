package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path          string `mapstructure:"path"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// localStorage keeps objects on local disk, mirroring the slash hierarchy
// of the object keys. Used for development and single-node deployments.
type localStorage struct {
	absBasePath   string
	publicBaseURL string
}

// NewLocalStorage creates a local-disk provider rooted at basePath.
func NewLocalStorage(cfg LocalConfig) (Provider, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", cfg.Path, err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory '%s': %w", absPath, err)
	}
	return &localStorage{
		absBasePath:   absPath + string(os.PathSeparator),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

// resolve maps an object key to a filesystem path and rejects traversal.
func (s *localStorage) resolve(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	full := filepath.Join(s.absBasePath, filepath.FromSlash(key))
	if !strings.HasPrefix(full, s.absBasePath) {
		return "", fmt.Errorf("invalid object key, potential directory traversal: %s", key)
	}
	return full, nil
}

func (s *localStorage) Save(ctx context.Context, key string, file io.Reader, size int64, contentType string) error {
	dstPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for '%s': %w", key, err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file '%s': %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		_ = os.Remove(dstPath)
		return fmt.Errorf("failed to write object '%s': %w", key, err)
	}
	return nil
}

func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open object '%s': %w", key, err)
	}
	return file, nil
}

func (s *localStorage) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		fullPath, err := s.resolve(key)
		if err != nil {
			return err
		}
		if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete object '%s': %w", key, err)
		}
	}
	return nil
}

func (s *localStorage) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *localStorage) List(ctx context.Context, prefix string) ([]string, error) {
	root := strings.TrimSuffix(s.absBasePath, string(os.PathSeparator))
	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list local objects: %w", err)
	}
	return keys, nil
}

func (s *localStorage) PublicURL(key string) string {
	return s.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}

func (s *localStorage) Health(ctx context.Context) error {
	_, err := os.Stat(s.absBasePath)
	return err
}

func (s *localStorage) Name() string {
	return "local"
}
