// Package uploads stores user-supplied images (profile photos, album covers)
// on local disk or in an S3-compatible bucket. Documents reference uploads by
// key only.
package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dmitrijs2005/indiec/internal/server/config"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmpty           = errors.New("file is empty")
)

var imageTypes = mapset.NewSet("image/jpeg", "image/png", "image/gif", "image/webp")

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store persists uploaded objects by key.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	// URL returns where clients can fetch key.
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.UploadBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.UploadBackend {
	case "", "local":
		return NewLocalStore(cfg.UploadDir, "/uploads")
	case "s3":
		return NewS3Store(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown upload backend %q", cfg.UploadBackend)
}

// NewKey returns a unique key under prefix, e.g. covers/2026/10/19/<uuid>.png.
func NewKey(prefix, contentType string) string {
	d := time.Now().UTC()
	return path.Join(prefix, fmt.Sprintf("%d/%02d/%02d", d.Year(), d.Month(), d.Day()), uuid.NewString()+extensions[contentType])
}

// Upload describes a stored image.
type Upload struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// SaveImage reads at most maxBytes from body, checks that the content sniffs
// as an accepted image type and stores it under a fresh key below prefix.
func SaveImage(ctx context.Context, store Store, prefix string, body io.Reader, maxBytes int64) (*Upload, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	if !imageTypes.Contains(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	key := NewKey(prefix, contentType)
	if err := store.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, err
	}
	url, err := store.URL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Upload{Key: key, URL: url, ContentType: contentType, Size: int64(len(data))}, nil
}
