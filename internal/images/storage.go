// Package images stores uploaded product images and serves them back by reference.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/abgdnv/stockroom/pkg/config"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrNotImage     = errors.New("file is not an image")
	ErrTooLarge     = errors.New("file is too large")
	ErrInvalidRef   = errors.New("invalid image reference")
	ErrEmptyPayload = errors.New("file is empty")
)

// Storage keeps image binaries under generated names.
type Storage interface {
	// Save stores the image read from r and returns its reference, e.g. /uploads/product-<uuid>.png.
	Save(ctx context.Context, r io.Reader) (string, error)
	// Delete removes the image behind ref. Deleting an image that does not exist is not an error.
	Delete(ctx context.Context, ref string) error
}

// LocalStorage keeps images in a directory on local disk.
type LocalStorage struct {
	dir       string
	urlPrefix string
	maxBytes  int64
	logger    *slog.Logger
}

// NewLocalStorage creates the image directory if needed.
func NewLocalStorage(cfg config.ImagesConfig, logger *slog.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultImageMaxBytes
	}
	return &LocalStorage{
		dir:       cfg.Dir,
		urlPrefix: cfg.URLPrefix,
		maxBytes:  maxBytes,
		logger:    logger.With("component", "images"),
	}, nil
}

func (s *LocalStorage) Save(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}

	name := "product-" + uuid.NewString() + mt.Extension()
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close image file: %w", err)
	}

	ref := s.urlPrefix + name
	s.logger.DebugContext(ctx, "Image stored", "ref", ref, "mime", mt.String(), "size", len(data))
	return ref, nil
}

func (s *LocalStorage) Delete(ctx context.Context, ref string) error {
	name, err := s.nameOf(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	s.logger.DebugContext(ctx, "Image deleted", "ref", ref)
	return nil
}

// Handler serves stored images. Mount it under the configured URL prefix.
func (s *LocalStorage) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.dir))
	return http.StripPrefix(s.urlPrefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// no directory listings
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}))
}

// URLPrefix returns the path prefix every reference starts with.
func (s *LocalStorage) URLPrefix() string {
	return s.urlPrefix
}

func (s *LocalStorage) nameOf(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, s.urlPrefix)
	if !ok || name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return name, nil
}
