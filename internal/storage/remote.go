package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/imaging"
)

const (
	SaveContentPath = "/api/save-content"
	LoadContentPath = "/api/load-content"
	UploadPath      = "/api/upload"
)

// SaveEnvelope is the response body of the save endpoint.
type SaveEnvelope struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// LoadEnvelope is the response body of the load endpoint.
type LoadEnvelope struct {
	Success bool                  `json:"success"`
	Data    *content.SiteDocument `json:"data"`
	Message string                `json:"message,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// UploadEnvelope is the response body of the upload endpoint.
type UploadEnvelope struct {
	Success      bool   `json:"success"`
	URL          string `json:"url,omitempty"`
	Filename     string `json:"filename,omitempty"`
	OriginalName string `json:"originalName,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Error        string `json:"error,omitempty"`
}

// RemoteConfig wires a RemoteAdapter.
type RemoteConfig struct {
	BaseURL string
	// HTTPClient defaults to a client without a timeout.
	HTTPClient *http.Client
}

// RemoteAdapter talks to a folio server over its JSON envelopes.
type RemoteAdapter struct {
	baseURL string
	client  *http.Client
}

// NewRemoteAdapter constructs a RemoteAdapter.
func NewRemoteAdapter(cfg RemoteConfig) (*RemoteAdapter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("storage: remote base url is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteAdapter{baseURL: baseURL, client: client}, nil
}

// Save posts the document and returns the server timestamp.
func (a *RemoteAdapter) Save(ctx context.Context, doc content.SiteDocument) (content.SaveReceipt, error) {
	payload, err := content.EncodeDocument(doc)
	if err != nil {
		return content.SaveReceipt{}, newError(KindUnknown, "encode document", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+SaveContentPath, bytes.NewReader(payload))
	if err != nil {
		return content.SaveReceipt{}, newError(KindUnknown, "build request", err)
	}
	request.Header.Set("Content-Type", "application/json")

	var envelope SaveEnvelope
	if err := a.do(request, &envelope); err != nil {
		return content.SaveReceipt{}, err
	}
	if !envelope.Success {
		return content.SaveReceipt{}, newError(KindUnknown, envelopeMessage(envelope.Error, "save failed"), nil)
	}
	receipt := content.SaveReceipt{}
	if envelope.Timestamp != nil {
		receipt.Timestamp = envelope.Timestamp.UTC()
	}
	return receipt, nil
}

// Load fetches the document. A successful envelope without data yields nil.
func (a *RemoteAdapter) Load(ctx context.Context) (*content.SiteDocument, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+LoadContentPath, nil)
	if err != nil {
		return nil, newError(KindUnknown, "build request", err)
	}
	var envelope LoadEnvelope
	if err := a.do(request, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, newError(KindUnknown, envelopeMessage(envelope.Error, "load failed"), nil)
	}
	return envelope.Data, nil
}

// Upload sends one image to the upload boundary and returns its server path.
func (a *RemoteAdapter) Upload(ctx context.Context, file imaging.File) (content.ImageRef, error) {
	if file.Content == nil {
		return "", fmt.Errorf("%w: empty file", imaging.ErrInvalidFileType)
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", file.Name)
	if err != nil {
		return "", newError(KindUnknown, "build upload", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return "", newError(KindUnknown, "read upload", err)
	}
	if err := writer.Close(); err != nil {
		return "", newError(KindUnknown, "build upload", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+UploadPath, &body)
	if err != nil {
		return "", newError(KindUnknown, "build request", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	var envelope UploadEnvelope
	if err := a.do(request, &envelope); err != nil {
		return "", err
	}
	if !envelope.Success || envelope.URL == "" {
		return "", newError(KindUnknown, envelopeMessage(envelope.Error, "upload failed"), nil)
	}
	return content.ImageRef(envelope.URL), nil
}

// Ingest satisfies the image sink used by the editor.
func (a *RemoteAdapter) Ingest(ctx context.Context, file imaging.File) (content.ImageRef, error) {
	return a.Upload(ctx, file)
}

// do executes the request and decodes the envelope regardless of status code,
// since failures are reported in the body.
func (a *RemoteAdapter) do(request *http.Request, envelope any) error {
	response, err := a.client.Do(request)
	if err != nil {
		return newError(KindNetwork, request.Method+" "+request.URL.Path, err)
	}
	defer response.Body.Close()

	if err := json.NewDecoder(response.Body).Decode(envelope); err != nil {
		return newError(KindUnknown, fmt.Sprintf("decode response (status %d)", response.StatusCode), err)
	}
	return nil
}

func envelopeMessage(message, fallback string) string {
	if strings.TrimSpace(message) == "" {
		return fallback
	}
	return message
}
