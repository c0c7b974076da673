package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/kvstore"
	"go.uber.org/zap"
)

const (
	// DefaultLocalKey is the key the document is stored under.
	DefaultLocalKey = "portfolioContent"
	// DefaultQuotaBytes approximates the capacity of browser local storage.
	DefaultQuotaBytes = 5 * 1024 * 1024

	warningRatioPercent = 80

	quotaGuidance = "reduce the number or size of images (embedded images count against the limit), " +
		"or clear the stored data and save again"
)

// ErrClearNotConfirmed is returned when Clear is called without confirmation.
var ErrClearNotConfirmed = errors.New("storage: clearing stored data requires explicit confirmation")

// Usage reports how much of the quota is in use.
type Usage struct {
	UsedBytes     int64 `json:"usedBytes"`
	DocumentBytes int64 `json:"documentBytes"`
	QuotaBytes    int64 `json:"quotaBytes"`
	WarningBytes  int64 `json:"warningBytes"`
	NearLimit     bool  `json:"nearLimit"`
}

// LocalConfig wires a LocalAdapter.
type LocalConfig struct {
	Store      kvstore.Store
	Key        string
	QuotaBytes int64
	Clock      func() time.Time
	Logger     *zap.Logger
}

// LocalAdapter keeps the document in a bounded key-value store.
type LocalAdapter struct {
	store      kvstore.Store
	key        string
	quotaBytes int64
	clock      func() time.Time
	logger     *zap.Logger
}

// NewLocalAdapter constructs a LocalAdapter.
func NewLocalAdapter(cfg LocalConfig) (*LocalAdapter, error) {
	if cfg.Store == nil {
		return nil, errors.New("storage: key-value store is required")
	}
	key := cfg.Key
	if key == "" {
		key = DefaultLocalKey
	}
	quota := cfg.QuotaBytes
	if quota <= 0 {
		quota = DefaultQuotaBytes
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalAdapter{store: cfg.Store, key: key, quotaBytes: quota, clock: clock, logger: logger}, nil
}

// Save serializes the document under the configured key. Exceeding the quota
// leaves the previously stored document in place.
func (a *LocalAdapter) Save(ctx context.Context, doc content.SiteDocument) (content.SaveReceipt, error) {
	savedAt := a.clock().UTC()
	if doc.Timestamp.IsZero() {
		doc.Timestamp = savedAt
	}
	payload, err := content.EncodeDocument(doc)
	if err != nil {
		return content.SaveReceipt{}, newError(KindUnknown, "encode document", err)
	}

	used, err := a.store.Size(ctx)
	if err != nil {
		return content.SaveReceipt{}, newError(KindUnknown, "measure storage", err)
	}
	previous, _, err := a.store.Get(ctx, a.key)
	if err != nil {
		return content.SaveReceipt{}, newError(KindUnknown, "read stored document", err)
	}
	if previous != "" {
		used -= int64(len(a.key) + len(previous))
	}
	projected := used + int64(len(a.key)+len(payload))
	if projected > a.quotaBytes {
		a.logger.Warn("local storage quota exceeded",
			zap.Int64("projected_bytes", projected),
			zap.Int64("quota_bytes", a.quotaBytes))
		message := fmt.Sprintf("document needs %s of %s available; %s",
			formatBytes(projected), formatBytes(a.quotaBytes), quotaGuidance)
		return content.SaveReceipt{}, newError(KindQuotaExceeded, message, nil)
	}

	if err := a.store.Set(ctx, a.key, string(payload)); err != nil {
		return content.SaveReceipt{}, newError(KindUnknown, "write document", err)
	}
	if projected >= a.warningBytes() {
		a.logger.Warn("local storage nearly full",
			zap.Int64("used_bytes", projected),
			zap.Int64("quota_bytes", a.quotaBytes))
	}
	return content.SaveReceipt{Timestamp: savedAt}, nil
}

// Load reads the document. An absent key yields nil.
func (a *LocalAdapter) Load(ctx context.Context) (*content.SiteDocument, error) {
	raw, found, err := a.store.Get(ctx, a.key)
	if err != nil {
		return nil, newError(KindUnknown, "read stored document", err)
	}
	if !found {
		return nil, nil
	}
	doc, err := content.DecodeDocument([]byte(raw))
	if err != nil {
		return nil, newError(KindUnknown, "decode stored document", err)
	}
	return &doc, nil
}

// Usage reports the current footprint against the quota.
func (a *LocalAdapter) Usage(ctx context.Context) (Usage, error) {
	used, err := a.store.Size(ctx)
	if err != nil {
		return Usage{}, newError(KindUnknown, "measure storage", err)
	}
	raw, _, err := a.store.Get(ctx, a.key)
	if err != nil {
		return Usage{}, newError(KindUnknown, "read stored document", err)
	}
	warning := a.warningBytes()
	return Usage{
		UsedBytes:     used,
		DocumentBytes: int64(len(raw)),
		QuotaBytes:    a.quotaBytes,
		WarningBytes:  warning,
		NearLimit:     used >= warning,
	}, nil
}

// Clear irreversibly removes the stored document.
func (a *LocalAdapter) Clear(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrClearNotConfirmed
	}
	if err := a.store.Delete(ctx, a.key); err != nil {
		return newError(KindUnknown, "delete stored document", err)
	}
	a.logger.Info("local storage cleared", zap.String("key", a.key))
	return nil
}

func (a *LocalAdapter) warningBytes() int64 {
	return a.quotaBytes * warningRatioPercent / 100
}

func formatBytes(size int64) string {
	const unit = 1024
	switch {
	case size >= unit*unit:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(unit*unit))
	case size >= unit:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(unit))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
