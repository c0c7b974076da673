package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			canvas.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, canvas); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buffer.Bytes()
}

func decodeDataURI(t *testing.T, ref string) (string, []byte) {
	t.Helper()
	header, encoded, found := strings.Cut(ref, ",")
	if !found || !strings.HasPrefix(header, "data:") {
		t.Fatalf("not a data uri: %.40s", ref)
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	return strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64"), payload
}

func TestIngestDownscalesLargeImages(t *testing.T) {
	payload := encodePNG(t, 1600, 900)
	ingestor := NewIngestor(DefaultConfig())

	ref, err := ingestor.Ingest(context.Background(), File{
		Name:      "wide.png",
		MediaType: "image/png",
		Size:      int64(len(payload)),
		Content:   bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	mediaType, encoded := decodeDataURI(t, ref.String())
	if mediaType != "image/jpeg" {
		t.Fatalf("expected jpeg output, got %s", mediaType)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("output is not a jpeg: %v", err)
	}
	if bounds := decoded.Bounds(); bounds.Dx() != 800 || bounds.Dy() != 450 {
		t.Fatalf("expected 800x450, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestIngestKeepsSmallImageDimensions(t *testing.T) {
	payload := encodePNG(t, 320, 200)
	ref, err := NewIngestor(DefaultConfig()).Ingest(context.Background(), File{
		Name:    "small.png",
		Size:    int64(len(payload)),
		Content: bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	_, encoded := decodeDataURI(t, ref.String())
	decoded, err := jpeg.Decode(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bounds := decoded.Bounds(); bounds.Dx() != 320 || bounds.Dy() != 200 {
		t.Fatalf("small images must not be scaled, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestIngestWithoutDownscaleEmbedsOriginalBytes(t *testing.T) {
	payload := encodePNG(t, 10, 10)
	ingestor := NewIngestor(Config{Downscale: false})

	ref, err := ingestor.Ingest(context.Background(), File{
		Name:      "tiny.png",
		MediaType: "image/png",
		Size:      int64(len(payload)),
		Content:   bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	mediaType, encoded := decodeDataURI(t, ref.String())
	if mediaType != "image/png" || !bytes.Equal(encoded, payload) {
		t.Fatalf("expected original png bytes, got %s (%d bytes)", mediaType, len(encoded))
	}
	if !ref.IsEmbedded() {
		t.Fatalf("data uri must be embedded")
	}
}

func TestIngestRejections(t *testing.T) {
	pngBytes := encodePNG(t, 4, 4)
	testCases := []struct {
		name    string
		file    File
		wantErr error
	}{
		{
			name:    "declared non-image",
			file:    File{Name: "notes.txt", MediaType: "text/plain", Size: 5, Content: strings.NewReader("hello")},
			wantErr: ErrInvalidFileType,
		},
		{
			name:    "sniffed non-image",
			file:    File{Name: "blob", MediaType: "application/octet-stream", Size: 14, Content: strings.NewReader("%PDF-1.4 hello")},
			wantErr: ErrInvalidFileType,
		},
		{
			name:    "declared ten megabytes against five",
			file:    File{Name: "huge.png", MediaType: "image/png", Size: 10 * 1024 * 1024, Content: bytes.NewReader(pngBytes)},
			wantErr: ErrFileTooLarge,
		},
		{
			name:    "undeclared size over the ceiling",
			file:    File{Name: "huge.png", MediaType: "image/png", Size: -1, Content: bytes.NewReader(make([]byte, DefaultMaxBytes+1))},
			wantErr: ErrFileTooLarge,
		},
		{
			name:    "corrupt image",
			file:    File{Name: "broken.png", MediaType: "image/png", Size: 3, Content: strings.NewReader("bad")},
			wantErr: ErrDecodeFailure,
		},
	}

	ingestor := NewIngestor(DefaultConfig())
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := ingestor.Ingest(context.Background(), testCase.file)
			if !errors.Is(err, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}

// pngHeaderOnly returns a PNG signature and IHDR chunk declaring the given
// dimensions with no pixel data behind them.
func pngHeaderOnly(width, height uint32) []byte {
	var buffer bytes.Buffer
	buffer.WriteString("\x89PNG\r\n\x1a\n")
	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, width)
	chunk = binary.BigEndian.AppendUint32(chunk, height)
	chunk = append(chunk, 8, 6, 0, 0, 0)
	_ = binary.Write(&buffer, binary.BigEndian, uint32(len(chunk)-4))
	buffer.Write(chunk)
	_ = binary.Write(&buffer, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buffer.Bytes()
}

func TestIngestRejectsOversizedDimensions(t *testing.T) {
	header := pngHeaderOnly(100_000, 100_000)
	ingestor := NewIngestor(DefaultConfig())
	_, err := ingestor.Ingest(context.Background(), File{Name: "bomb.png", MediaType: "image/png", Size: int64(len(header)), Content: bytes.NewReader(header)})
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected decode failure for declared dimensions, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "100000x100000") {
		t.Fatalf("expected the declared dimensions in the error, got %v", err)
	}

	payload := encodePNG(t, 20, 20)
	bounded := NewIngestor(Config{MaxPixels: 100, Downscale: true})
	if _, err := bounded.Ingest(context.Background(), File{Name: "small.png", MediaType: "image/png", Size: int64(len(payload)), Content: bytes.NewReader(payload)}); !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected configured pixel ceiling to apply, got %v", err)
	}
	if _, err := NewIngestor(DefaultConfig()).Ingest(context.Background(), File{Name: "small.png", MediaType: "image/png", Size: int64(len(payload)), Content: bytes.NewReader(payload)}); err != nil {
		t.Fatalf("images within the ceiling must be accepted: %v", err)
	}
}

func TestReadImageAcceptsFileAtCeiling(t *testing.T) {
	payload := append(encodePNG(t, 2, 2), make([]byte, 64)...)
	_, mediaType, err := ReadImage(context.Background(), File{
		Name:    "exact.png",
		Size:    int64(len(payload)),
		Content: bytes.NewReader(payload),
	}, int64(len(payload)))
	if err != nil {
		t.Fatalf("file at the ceiling must be accepted: %v", err)
	}
	if mediaType != "image/png" {
		t.Fatalf("expected sniffed png, got %s", mediaType)
	}
}

func TestFitWithin(t *testing.T) {
	testCases := []struct {
		width, height int
		wantW, wantH  int
	}{
		{width: 400, height: 300, wantW: 400, wantH: 300},
		{width: 1600, height: 1200, wantW: 800, wantH: 600},
		{width: 1000, height: 2000, wantW: 300, wantH: 600},
		{width: 801, height: 10, wantW: 800, wantH: 10},
	}
	for _, testCase := range testCases {
		gotW, gotH := FitWithin(testCase.width, testCase.height, DefaultMaxWidth, DefaultMaxHeight)
		if gotW != testCase.wantW || gotH != testCase.wantH {
			t.Fatalf("FitWithin(%d,%d)=%dx%d want %dx%d", testCase.width, testCase.height, gotW, gotH, testCase.wantW, testCase.wantH)
		}
	}
}
