// Package imaging turns user-selected files into displayable image references.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"strings"

	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/gabriel-vasile/mimetype"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrInvalidFileType indicates the file is not an image.
	ErrInvalidFileType = errors.New("imaging: invalid file type")
	// ErrFileTooLarge indicates the file exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("imaging: file too large")
	// ErrDecodeFailure indicates the bytes could not be decoded as an image.
	ErrDecodeFailure = errors.New("imaging: decode failure")
)

const (
	// DefaultMaxBytes is the ceiling for images embedded into the document.
	DefaultMaxBytes  = 5 * 1024 * 1024
	DefaultMaxWidth  = 800
	DefaultMaxHeight = 600
	DefaultQuality   = 70
	// DefaultMaxPixels bounds the decoded size of an image; a small file can
	// declare dimensions far beyond what its bytes suggest.
	DefaultMaxPixels = 40_000_000

	octetStream = "application/octet-stream"
	outputType  = "image/jpeg"
)

// File is a user-selected file awaiting ingestion.
type File struct {
	Name      string
	MediaType string
	// Size is the declared size in bytes. Negative means unknown.
	Size    int64
	Content io.Reader
}

// Config tunes an Ingestor. Zero values select the defaults.
type Config struct {
	MaxBytes  int64
	MaxWidth  int
	MaxHeight int
	Quality   int
	MaxPixels int64
	// Downscale re-encodes the image as a bounded JPEG. When false the
	// original bytes are embedded as-is.
	Downscale bool
}

// DefaultConfig returns the settings used for locally stored documents.
func DefaultConfig() Config {
	return Config{
		MaxBytes:  DefaultMaxBytes,
		MaxWidth:  DefaultMaxWidth,
		MaxHeight: DefaultMaxHeight,
		Quality:   DefaultQuality,
		MaxPixels: DefaultMaxPixels,
		Downscale: true,
	}
}

// Ingestor produces self-contained data URI references.
type Ingestor struct {
	cfg Config
}

// NewIngestor constructs an Ingestor.
func NewIngestor(cfg Config) *Ingestor {
	defaults := DefaultConfig()
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaults.MaxBytes
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = defaults.MaxWidth
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = defaults.MaxHeight
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = defaults.Quality
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = defaults.MaxPixels
	}
	return &Ingestor{cfg: cfg}
}

// Ingest validates the file and returns a data URI reference.
func (i *Ingestor) Ingest(ctx context.Context, file File) (content.ImageRef, error) {
	payload, mediaType, err := ReadImage(ctx, file, i.cfg.MaxBytes)
	if err != nil {
		return "", err
	}
	if !i.cfg.Downscale {
		return DataURI(mediaType, payload), nil
	}

	encoded, err := i.downscale(payload)
	if err != nil {
		return "", err
	}
	return DataURI(outputType, encoded), nil
}

func (i *Ingestor) downscale(payload []byte) ([]byte, error) {
	header, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if header.Width <= 0 || header.Height <= 0 || int64(header.Width)*int64(header.Height) > i.cfg.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecodeFailure, header.Width, header.Height, i.cfg.MaxPixels)
	}

	source, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	bounds := source.Bounds()
	width, height := FitWithin(bounds.Dx(), bounds.Dy(), i.cfg.MaxWidth, i.cfg.MaxHeight)

	// JPEG carries no alpha channel; transparent pixels land on white.
	target := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(target, target.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(target, target.Bounds(), source, bounds, xdraw.Over, nil)

	var buffer bytes.Buffer
	if err := jpeg.Encode(&buffer, target, &jpeg.Options{Quality: i.cfg.Quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return buffer.Bytes(), nil
}

// FitWithin scales width and height uniformly by min(maxWidth/width,
// maxHeight/height) when either dimension exceeds its bound.
func FitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}
	scale := float64(maxWidth) / float64(width)
	if heightScale := float64(maxHeight) / float64(height); heightScale < scale {
		scale = heightScale
	}
	scaledWidth := int(math.Round(float64(width) * scale))
	scaledHeight := int(math.Round(float64(height) * scale))
	if scaledWidth < 1 {
		scaledWidth = 1
	}
	if scaledHeight < 1 {
		scaledHeight = 1
	}
	return scaledWidth, scaledHeight
}

// ReadImage reads at most maxBytes from the file and checks that it is an
// image. A file exactly at the ceiling is accepted.
func ReadImage(ctx context.Context, file File, maxBytes int64) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	declared := normalizeMediaType(file.MediaType)
	if declared != "" && declared != octetStream && !IsImage(declared) {
		return nil, "", fmt.Errorf("%w: %s", ErrInvalidFileType, declared)
	}
	if file.Size > maxBytes {
		return nil, "", fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, file.Size, maxBytes)
	}
	if file.Content == nil {
		return nil, "", fmt.Errorf("%w: empty file", ErrInvalidFileType)
	}

	payload, err := io.ReadAll(io.LimitReader(file.Content, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: read %q: %w", file.Name, err)
	}
	if int64(len(payload)) > maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, maxBytes)
	}

	mediaType := ResolveMediaType(declared, payload)
	if !IsImage(mediaType) {
		return nil, "", fmt.Errorf("%w: %s", ErrInvalidFileType, mediaType)
	}
	return payload, mediaType, nil
}

// ResolveMediaType returns the declared type, sniffing the content when the
// declaration is missing or generic.
func ResolveMediaType(declared string, head []byte) string {
	declared = normalizeMediaType(declared)
	if declared != "" && declared != octetStream {
		return declared
	}
	return normalizeMediaType(mimetype.Detect(head).String())
}

// IsImage reports whether the media type belongs to the image family.
func IsImage(mediaType string) bool {
	return strings.HasPrefix(normalizeMediaType(mediaType), "image/")
}

// DataURI embeds payload as a base64 data URI.
func DataURI(mediaType string, payload []byte) content.ImageRef {
	return content.ImageRef("data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(payload))
}

func normalizeMediaType(raw string) string {
	mediaType := strings.TrimSpace(raw)
	if separator := strings.IndexByte(mediaType, ';'); separator >= 0 {
		mediaType = mediaType[:separator]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
