package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Filesystem stores objects below a root directory and serves them from a public base URL.
type Filesystem struct {
	root    string
	baseURL string
	logger  zerolog.Logger
}

// NewFilesystem prepares the root directory.
func NewFilesystem(root, baseURL string, logger zerolog.Logger) (*Filesystem, error) {
	if root == "" {
		root = "./data/uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &Filesystem{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With().Str("component", "filesystem_storage").Logger(),
	}, nil
}

// Put writes the object atomically and returns its public URL.
func (s *Filesystem) Put(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(s.root, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, &contextReader{ctx: ctx, r: reader}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", fmt.Errorf("commit object: %w", err)
	}

	s.logger.Debug().Str("key", cleaned).Str("content_type", contentType).Msg("object stored")

	return s.objectURL(cleaned)
}

// Delete removes the object. Missing objects are not an error.
func (s *Filesystem) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(cleaned))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *Filesystem) objectURL(key string) (string, error) {
	if s.baseURL == "" {
		u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(s.root, key))}
		return u.String(), nil
	}
	return url.JoinPath(s.baseURL, strings.Split(key, "/")...)
}

// contextReader stops copying once the context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
