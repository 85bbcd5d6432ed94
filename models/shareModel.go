package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SharePermission string

const (
	PermissionView     SharePermission = "view"
	PermissionDownload SharePermission = "download"
)

// FileShare grants one user standing access to one file. At most one
// row exists per (file, grantee); re-sharing updates the permission.
type FileShare struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FileID     uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_share_file_grantee;not null"`
	GranteeID  uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_share_file_grantee;not null"`
	Permission SharePermission `gorm:"type:varchar(10);default:'view'"`
	CreatedAt  time.Time

	File    File `gorm:"foreignKey:FileID"`
	Grantee User `gorm:"foreignKey:GranteeID"`
}

func (s *FileShare) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
