package models

import (
	"time"

	"github.com/google/uuid"
)

// File is the metadata record for one encrypted blob. Size is the
// plaintext length, not the ciphertext length, and EncryptionKey is the
// only material needed to recover the plaintext stored under BlobKey.
type File struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID       uuid.UUID `gorm:"type:uuid;index;not null"`
	Name          string    `gorm:"not null"`
	BlobKey       string    `gorm:"uniqueIndex;not null" json:"-"`
	EncryptionKey []byte    `gorm:"not null" json:"-"`
	ContentType   string
	Size          int64
	CreatedAt     time.Time

	Owner User `gorm:"foreignKey:OwnerID"`
}
