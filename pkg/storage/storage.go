// Package storage provides object storage backends for submission uploads.
package storage

import (
	"errors"
	"path"
	"strings"
)

// ErrInvalidKey indicates an object key that is empty or escapes its namespace.
var ErrInvalidKey = errors.New("invalid object key")

// CleanKey normalises an object key to a slash-separated relative path.
func CleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", ErrInvalidKey
	}

	cleaned := strings.TrimPrefix(path.Clean("/"+trimmed), "/")
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidKey
	}

	return cleaned, nil
}
