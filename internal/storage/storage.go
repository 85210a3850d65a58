// Package storage keeps uploaded documents in a blob store.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

var (
	ErrNotFound             = errors.New("blob not found")
	ErrInvalidKey           = errors.New("invalid blob key")
	ErrSignedURLUnsupported = errors.New("signed urls are not supported by this provider")
)

// Blob stores opaque documents under slash separated keys. Put returns the
// locator that the other methods accept.
type Blob interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
	SignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, locator string) error
	Provider() string
}

// CleanKey normalizes a key and rejects keys escaping the store root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}

	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", ErrInvalidKey
		}
	}

	cleaned := path.Clean(key)
	if cleaned == "." {
		return "", ErrInvalidKey
	}

	return cleaned, nil
}
