// Package uploads stores user-selected images behind the upload boundary.
package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// DefaultMaxBytes is the per-file ceiling at the upload boundary.
	DefaultMaxBytes = 10 * 1024 * 1024
	// DefaultMaxFiles bounds a batch upload.
	DefaultMaxFiles = 10
	// URLPrefix is the public path the stored files are served under.
	URLPrefix = "/uploads"

	filenamePrefix = "image-"
)

var (
	// ErrNotFound indicates the requested file does not exist.
	ErrNotFound = errors.New("uploads: file not found")
	// ErrInvalidFilename rejects names that could escape the uploads directory.
	ErrInvalidFilename = errors.New("uploads: invalid filename")
	// ErrTooManyFiles indicates a batch larger than the configured bound.
	ErrTooManyFiles = errors.New("uploads: too many files")
	// ErrNoFiles indicates an empty batch.
	ErrNoFiles = errors.New("uploads: no files")
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".svg":  {},
}

// Upload describes a stored file.
type Upload struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

// Image is one entry of the uploads listing.
type Image struct {
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Config wires a Store.
type Config struct {
	Fs       afero.Fs
	Dir      string
	MaxBytes int64
	MaxFiles int
	NameFunc func() (string, error)
	Logger   *zap.Logger
}

// Store writes uploads to a directory of an afero filesystem.
type Store struct {
	fs       afero.Fs
	dir      string
	maxBytes int64
	maxFiles int
	nameFunc func() (string, error)
	logger   *zap.Logger
}

// NewStore constructs a Store and ensures the directory exists.
func NewStore(cfg Config) (*Store, error) {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		dir = "uploads"
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: create dir %q: %w", dir, err)
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	maxFiles := cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	nameFunc := cfg.NameFunc
	if nameFunc == nil {
		nameFunc = newUUIDName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		fs:       fs,
		dir:      dir,
		maxBytes: maxBytes,
		maxFiles: maxFiles,
		nameFunc: nameFunc,
		logger:   logger,
	}, nil
}

// MaxBytes returns the per-file ceiling.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// MaxFiles returns the batch bound.
func (s *Store) MaxFiles() int {
	return s.maxFiles
}

// Save validates and writes one image.
func (s *Store) Save(ctx context.Context, file imaging.File) (Upload, error) {
	payload, mediaType, err := imaging.ReadImage(ctx, file, s.maxBytes)
	if err != nil {
		return Upload{}, err
	}

	stem, err := s.nameFunc()
	if err != nil {
		return Upload{}, fmt.Errorf("uploads: generate name: %w", err)
	}
	filename := filenamePrefix + stem + extensionFor(payload, mediaType)
	target := path.Join(s.dir, filename)
	if err := afero.WriteReader(s.fs, target, bytes.NewReader(payload)); err != nil {
		s.logger.Error("upload write failed", zap.String("filename", filename), zap.Error(err))
		return Upload{}, fmt.Errorf("uploads: write %q: %w", filename, err)
	}

	s.logger.Info("upload stored",
		zap.String("filename", filename),
		zap.String("original_name", file.Name),
		zap.Int("size_bytes", len(payload)))
	return Upload{
		URL:          URLPrefix + "/" + filename,
		Filename:     filename,
		OriginalName: file.Name,
		Size:         int64(len(payload)),
	}, nil
}

// SaveAll stores a batch. Files already written stay in place when a later
// one fails.
func (s *Store) SaveAll(ctx context.Context, files []imaging.File) ([]Upload, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > s.maxFiles {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyFiles, len(files), s.maxFiles)
	}
	uploads := make([]Upload, 0, len(files))
	for _, file := range files {
		upload, err := s.Save(ctx, file)
		if err != nil {
			return uploads, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

// Ingest stores the file and returns its public path.
func (s *Store) Ingest(ctx context.Context, file imaging.File) (content.ImageRef, error) {
	upload, err := s.Save(ctx, file)
	if err != nil {
		return "", err
	}
	return content.ImageRef(upload.URL), nil
}

// List returns the stored images sorted by name.
func (s *Store) List(ctx context.Context) ([]Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Image{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("uploads: list: %w", err)
	}

	images := make([]Image, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		images = append(images, Image{
			Filename:   entry.Name(),
			URL:        URLPrefix + "/" + entry.Name(),
			Size:       entry.Size(),
			ModifiedAt: entry.ModTime().UTC(),
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Filename < images[j].Filename })
	return images, nil
}

// Delete removes a stored file by name.
func (s *Store) Delete(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateFilename(filename); err != nil {
		return err
	}
	target := path.Join(s.dir, filename)
	exists, err := afero.Exists(s.fs, target)
	if err != nil {
		return fmt.Errorf("uploads: stat %q: %w", filename, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if err := s.fs.Remove(target); err != nil {
		return fmt.Errorf("uploads: remove %q: %w", filename, err)
	}
	s.logger.Info("upload deleted", zap.String("filename", filename))
	return nil
}

// FileSystem exposes the uploads directory for static serving.
func (s *Store) FileSystem() http.FileSystem {
	return afero.NewHttpFs(s.fs).Dir(s.dir)
}

func validateFilename(filename string) error {
	trimmed := strings.TrimSpace(filename)
	if trimmed == "" || trimmed == "." || trimmed == ".." || strings.ContainsAny(trimmed, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return nil
}

// extensionFor derives the stored extension from the bytes, falling back to
// the accepted media type. The client's filename never decides how the file
// is served.
func extensionFor(payload []byte, mediaType string) string {
	if detected := mimetype.Detect(payload); imaging.IsImage(detected.String()) && detected.Extension() != "" {
		return detected.Extension()
	}
	if declared := mimetype.Lookup(mediaType); declared != nil {
		return declared.Extension()
	}
	return ""
}

func newUUIDName() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
