package content

// siteDocumentKey is the primary key of the single current document.
const siteDocumentKey = "site"

// DocumentRecord stores the most recent site document.
type DocumentRecord struct {
	Key             string `gorm:"column:doc_key;primaryKey;size:64;not null"`
	PayloadJSON     string `gorm:"column:payload_json;type:text;not null"`
	Version         int64  `gorm:"column:version;not null;default:0"`
	UpdatedAtMillis int64  `gorm:"column:updated_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (DocumentRecord) TableName() string {
	return "content_documents"
}

// BackupRecord is an immutable copy written on every save.
type BackupRecord struct {
	BackupID        string `gorm:"column:backup_id;primaryKey;size:64;not null"`
	PayloadJSON     string `gorm:"column:payload_json;type:text;not null"`
	SizeBytes       int64  `gorm:"column:size_bytes;not null;default:0"`
	CreatedAtMillis int64  `gorm:"column:created_at_ms;not null;index:idx_content_backups_created"`
}

// TableName provides the explicit table binding for GORM.
func (BackupRecord) TableName() string {
	return "content_backups"
}
