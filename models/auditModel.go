package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditAction string

const (
	ActionUpload   AuditAction = "upload"
	ActionDownload AuditAction = "download"
	ActionShare    AuditAction = "share"
	ActionDelete   AuditAction = "delete"
	ActionAccess   AuditAction = "access"
)

// JSONMap stores the free-form detail payload of an audit entry as a
// jsonb column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
	return json.Unmarshal(raw, m)
}

// AuditLog rows are append-only; nothing in the codebase updates or
// deletes them.
type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    *uuid.UUID
	Action    AuditAction `gorm:"type:varchar(20);index"`
	FileID    *uuid.UUID
	Details   JSONMap `gorm:"type:jsonb"`
	IPAddress string
	CreatedAt time.Time `gorm:"index"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
