package kvstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one row of the SQL-backed store.
type Entry struct {
	Key             string `gorm:"column:entry_key;primaryKey;size:190;not null"`
	Value           string `gorm:"column:value;type:text;not null"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "local_storage_entries"
}

// SQL stores entries in a GORM-managed table. The schema is migrated by the
// database package.
type SQL struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewSQL(db *gorm.DB, clock func() time.Time) *SQL {
	if clock == nil {
		clock = time.Now
	}
	return &SQL{db: db, clock: clock}
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Where("entry_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	entry := Entry{Key: key, Value: value, UpdatedAtMillis: s.clock().UTC().UnixMilli()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at_ms"}),
	}).Create(&entry).Error
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&Entry{}).Error
}

func (s *SQL) Size(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Select("COALESCE(SUM(LENGTH(CAST(entry_key AS BLOB)) + LENGTH(CAST(value AS BLOB))), 0)").
		Scan(&total).Error
	return total, err
}
