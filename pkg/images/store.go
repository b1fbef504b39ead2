// Package images stores uploaded product pictures on local disk.
package images

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/config"
)

type Store struct {
	dir          string
	urlPrefix    string
	allowed      map[string]bool
	maxDimension int
	quality      int
	defaultImage string
	now          func() time.Time
}

func NewStore(cfg *config.UploadConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return &Store{
		dir:          cfg.Dir,
		urlPrefix:    strings.TrimSuffix(cfg.URLPrefix, "/"),
		allowed:      allowed,
		maxDimension: cfg.MaxDimension,
		quality:      cfg.Quality,
		defaultImage: cfg.DefaultImage,
		now:          time.Now,
	}, nil
}

// Allowed reports whether filename has an accepted image extension.
func (s *Store) Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	return ext != "" && s.allowed[ext]
}

// Save decodes the upload, flattens transparency onto white, shrinks it to
// fit the configured box and writes it as JPEG. It returns the reference to
// store on the product.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	if !s.Allowed(filename) {
		return "", apperr.Validation("unsupported image type %q", filepath.Ext(filename))
	}

	img, err := imaging.Decode(r)
	if err != nil {
		return "", apperr.Validation("could not read image: %v", err)
	}

	bounds := img.Bounds()
	img = imaging.Overlay(imaging.New(bounds.Dx(), bounds.Dy(), color.White), img, image.Pt(0, 0), 1.0)
	if s.maxDimension > 0 && (bounds.Dx() > s.maxDimension || bounds.Dy() > s.maxDimension) {
		img = imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)
	}

	name := s.now().Format("20060102_150405_") + sanitize(filename)
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return path.Join(s.urlPrefix, name), nil
}

// Delete removes the file behind ref. The placeholder image and files that
// are already gone are left alone.
func (s *Store) Delete(ref string) error {
	if s.IsDefault(ref) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, path.Base(ref)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

func (s *Store) IsDefault(ref string) bool {
	return ref == "" || ref == s.defaultImage || strings.Contains(ref, "default-product")
}

// sanitize keeps ASCII letters, digits, dots, dashes and underscores.
func sanitize(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	name := b.String()
	ext := filepath.Ext(name)
	stem := strings.Trim(strings.TrimSuffix(name, ext), "._")
	if stem == "" {
		stem = "image"
	}
	return stem + strings.ToLower(ext)
}
