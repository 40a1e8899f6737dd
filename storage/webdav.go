package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/studio-b12/gowebdav"
)

// WebDAVConfig WebDAV 配置
type WebDAVConfig struct {
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	RootPath      string `mapstructure:"root_path"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type webdavStorage struct {
	client        *gowebdav.Client
	rootPath      string
	publicBaseURL string
}

// NewWebDAVStorage creates a WebDAV-backed provider and verifies the
// connection.
func NewWebDAVStorage(cfg WebDAVConfig) (Provider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webdav URL is required")
	}

	rootPath := strings.Trim(cfg.RootPath, "/")
	if rootPath != "" {
		rootPath = "/" + rootPath
	}

	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("webdav connection test failed: %w", err)
	}

	return &webdavStorage{
		client:        client,
		rootPath:      rootPath,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *webdavStorage) fullPath(key string) string {
	return s.rootPath + "/" + strings.TrimLeft(key, "/")
}

func (s *webdavStorage) Save(ctx context.Context, key string, file io.Reader, size int64, contentType string) error {
	full := s.fullPath(key)
	if err := s.client.MkdirAll(path.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create webdav directory for '%s': %w", key, err)
	}
	if err := s.client.WriteStream(full, file, 0o644); err != nil {
		return fmt.Errorf("failed to write object '%s' to webdav: %w", key, err)
	}
	return nil
}

func (s *webdavStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	stream, err := s.client.ReadStream(s.fullPath(key))
	if err != nil {
		return nil, fmt.Errorf("failed to read object '%s' from webdav: %w", key, err)
	}
	return stream, nil
}

func (s *webdavStorage) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.client.Remove(s.fullPath(key)); err != nil {
			if gowebdav.IsErrNotFound(err) {
				continue
			}
			return fmt.Errorf("failed to delete object '%s' from webdav: %w", key, err)
		}
	}
	return nil
}

func (s *webdavStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Stat(s.fullPath(key))
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *webdavStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := s.client.ReadDir(dir)
		if err != nil {
			if gowebdav.IsErrNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to list webdav directory '%s': %w", dir, err)
		}
		for _, entry := range entries {
			full := path.Join(dir, entry.Name())
			if entry.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			key := strings.TrimPrefix(full, s.rootPath)
			key = strings.TrimLeft(key, "/")
			if prefix == "" || strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
		return nil
	}

	root := s.rootPath
	if root == "" {
		root = "/"
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *webdavStorage) PublicURL(key string) string {
	return s.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}

func (s *webdavStorage) Health(ctx context.Context) error {
	root := s.rootPath
	if root == "" {
		root = "/"
	}
	if _, err := s.client.Stat(root); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *webdavStorage) Name() string {
	return "webdav"
}
