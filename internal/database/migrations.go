package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/content"
	"github.com/MarcoPoloResearchLab/folio/internal/kvstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationUpgradeLegacyContentPayloads = "2026-10-01_upgrade_legacy_content_payloads"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationUpgradeLegacyContentPayloads, apply: upgradeLegacyContentPayloads},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// upgradeLegacyContentPayloads rewrites the current document and local
// storage entries written with the pre-rename field names (editableContent,
// bizcards, ...) into the current shape. Backups stay as written.
func upgradeLegacyContentPayloads(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var documents []content.DocumentRecord
		if err := tx.Find(&documents).Error; err != nil {
			return err
		}
		for _, record := range documents {
			upgraded, changed, err := upgradePayload(record.PayloadJSON)
			if err != nil {
				return err
			}
			if changed {
				if err := tx.Model(&content.DocumentRecord{}).Where("doc_key = ?", record.Key).Update("payload_json", upgraded).Error; err != nil {
					return err
				}
			}
		}

		var entries []kvstore.Entry
		if err := tx.Find(&entries).Error; err != nil {
			return err
		}
		for _, entry := range entries {
			upgraded, changed, err := upgradePayload(entry.Value)
			if err != nil {
				return err
			}
			if changed {
				if err := tx.Model(&kvstore.Entry{}).Where("entry_key = ?", entry.Key).Update("value", upgraded).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func upgradePayload(payload string) (string, bool, error) {
	if !content.IsLegacyPayload([]byte(payload)) {
		return payload, false, nil
	}
	doc, err := content.DecodeDocument([]byte(payload))
	if err != nil {
		return "", false, err
	}
	encoded, err := content.EncodeDocument(doc)
	if err != nil {
		return "", false, err
	}
	return string(encoded), true, nil
}
