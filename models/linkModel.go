package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShareableLink is a bearer-style grant: whoever presents the slug may
// view or download the file while the link is valid. AccessCount only
// ever grows, and only on successful accesses.
type ShareableLink struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FileID      uuid.UUID `gorm:"type:uuid;index;not null"`
	CreatedByID uuid.UUID `gorm:"type:uuid;not null"`
	Slug        string    `gorm:"uniqueIndex;not null"`
	ExpiresAt   time.Time
	AccessCount int  `gorm:"default:0"`
	MaxAccess   *int // nil means unbounded
	CreatedAt   time.Time

	File      File `gorm:"foreignKey:FileID"`
	CreatedBy User `gorm:"foreignKey:CreatedByID"`
}

func (l *ShareableLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// IsValid reports whether the link can still be used at the given
// instant. It is advisory only: the consuming path re-checks this
// predicate atomically when it increments AccessCount.
func (l *ShareableLink) IsValid(now time.Time) bool {
	if !now.Before(l.ExpiresAt) {
		return false
	}
	return l.MaxAccess == nil || l.AccessCount < *l.MaxAccess
}
