// Package blob provides binary object storage for room images.
// Drivers: memory (dev default), fs (local directory), s3 (AWS S3 or MinIO).
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	DriverMemory     Driver = "memory"
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("blob: not found")

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url,omitempty"`
}

// Store is a thin S3-like abstraction. Put overwrites existing keys.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Delete(ctx context.Context, key string) (bool, error)
	// URL returns the public address of key.
	URL(key string) string
	// KeyOf is the inverse of URL; ok is false for foreign URLs.
	KeyOf(url string) (key string, ok bool)
	Driver() Driver
}

// Config selects and configures a driver.
type Config struct {
	Driver    string
	FSRoot    string
	PublicURL string
	S3        S3Config
}

// Open constructs the configured Store. An empty driver selects memory.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(strings.ToLower(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemory(cfg.PublicURL), nil
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot, cfg.PublicURL)
	case DriverS3:
		s3cfg := cfg.S3
		if s3cfg.PublicURL == "" {
			s3cfg.PublicURL = cfg.PublicURL
		}
		return NewS3(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// prefixURL joins base and key; keyOf strips base back off.
type prefixURL string

func (p prefixURL) url(key string) string {
	return strings.TrimRight(string(p), "/") + "/" + key
}

func (p prefixURL) keyOf(u string) (string, bool) {
	base := strings.TrimRight(string(p), "/") + "/"
	if !strings.HasPrefix(u, base) {
		return "", false
	}
	key := strings.TrimPrefix(u, base)
	return key, key != ""
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}
