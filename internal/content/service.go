package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a stable "<operation>.<reason>" code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "content.service.new"
	opSaveDocument = "content.save_document"
	opLoadDocument = "content.load_document"
	opListBackups  = "content.list_backups"

	reasonMissingDatabase = "missing_database"
	reasonEncodeFailed    = "encode_failed"
	reasonDecodeFailed    = "decode_failed"
	reasonQueryFailed     = "query_failed"
	reasonSaveFailed      = "save_failed"
	reasonBackupFailed    = "backup_insert_failed"
	reasonIDFailed        = "id_generation_failed"

	defaultBackupListLimit = 50
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// SaveReceipt reports when a document was persisted.
type SaveReceipt struct {
	Timestamp time.Time
}

// BackupInfo describes a stored backup without its payload.
type BackupInfo struct {
	BackupID  string
	SizeBytes int64
	CreatedAt time.Time
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service persists the site document and its backups in SQL storage.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Save stamps the document, replaces the current copy and appends a backup.
// Either both rows are written or neither is.
func (s *Service) Save(ctx context.Context, doc SiteDocument) (SaveReceipt, error) {
	if s.db == nil {
		s.logError(opSaveDocument, reasonMissingDatabase, errMissingDatabase)
		return SaveReceipt{}, newServiceError(opSaveDocument, reasonMissingDatabase, errMissingDatabase)
	}

	savedAt := s.clock().UTC()
	doc.LastUpdated = &savedAt
	doc.Version = savedAt.UnixMilli()
	if doc.Timestamp.IsZero() {
		doc.Timestamp = savedAt
	}

	payload, err := EncodeDocument(doc)
	if err != nil {
		s.logError(opSaveDocument, reasonEncodeFailed, err)
		return SaveReceipt{}, newServiceError(opSaveDocument, reasonEncodeFailed, err)
	}

	backupID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opSaveDocument, reasonIDFailed, err)
		return SaveReceipt{}, newServiceError(opSaveDocument, reasonIDFailed, err)
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := DocumentRecord{
			Key:             siteDocumentKey,
			PayloadJSON:     string(payload),
			Version:         doc.Version,
			UpdatedAtMillis: savedAt.UnixMilli(),
		}
		if err := tx.Save(&record).Error; err != nil {
			s.logError(opSaveDocument, reasonSaveFailed, err)
			return newServiceError(opSaveDocument, reasonSaveFailed, err)
		}
		backup := BackupRecord{
			BackupID:        backupID,
			PayloadJSON:     string(payload),
			SizeBytes:       int64(len(payload)),
			CreatedAtMillis: savedAt.UnixMilli(),
		}
		if err := tx.Create(&backup).Error; err != nil {
			s.logError(opSaveDocument, reasonBackupFailed, err, zap.String("backup_id", backupID))
			return newServiceError(opSaveDocument, reasonBackupFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return SaveReceipt{}, txErr
	}

	s.loggerOrDefault().Info("content saved",
		zap.Int64("version", doc.Version),
		zap.String("backup_id", backupID),
		zap.Int("size_bytes", len(payload)))
	return SaveReceipt{Timestamp: savedAt}, nil
}

// Load returns the current document, or nil when nothing has been saved yet.
func (s *Service) Load(ctx context.Context) (*SiteDocument, error) {
	if s.db == nil {
		s.logError(opLoadDocument, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opLoadDocument, reasonMissingDatabase, errMissingDatabase)
	}

	var record DocumentRecord
	err := s.db.WithContext(ctx).Where("doc_key = ?", siteDocumentKey).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logError(opLoadDocument, reasonQueryFailed, err)
		return nil, newServiceError(opLoadDocument, reasonQueryFailed, err)
	}

	doc, err := DecodeDocument([]byte(record.PayloadJSON))
	if err != nil {
		s.logError(opLoadDocument, reasonDecodeFailed, err)
		return nil, newServiceError(opLoadDocument, reasonDecodeFailed, err)
	}
	return &doc, nil
}

// ListBackups returns backup metadata, newest first.
func (s *Service) ListBackups(ctx context.Context, limit int) ([]BackupInfo, error) {
	if s.db == nil {
		s.logError(opListBackups, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opListBackups, reasonMissingDatabase, errMissingDatabase)
	}
	if limit <= 0 {
		limit = defaultBackupListLimit
	}

	var records []BackupRecord
	if err := s.db.WithContext(ctx).
		Select("backup_id", "size_bytes", "created_at_ms").
		Order("created_at_ms DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		s.logError(opListBackups, reasonQueryFailed, err)
		return nil, newServiceError(opListBackups, reasonQueryFailed, err)
	}

	backups := make([]BackupInfo, 0, len(records))
	for _, record := range records {
		backups = append(backups, BackupInfo{
			BackupID:  record.BackupID,
			SizeBytes: record.SizeBytes,
			CreatedAt: time.UnixMilli(record.CreatedAtMillis).UTC(),
		})
	}
	return backups, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("content service error", attrs...)
}
