package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rohan/securevault-backend/models"
	"github.com/rohan/securevault-backend/vault"
)

// GormStore backs vault.RecordStore and vault.AuditSink with a gorm
// connection.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return vault.ErrNotFound
	}
	return fmt.Errorf("%w: %v", vault.ErrStorageUnavailable, err)
}

func (s *GormStore) GetUser(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, wrap(err)
	}
	return &user, nil
}

func (s *GormStore) CreateFile(file *models.File) error {
	return wrap(s.db.Create(file).Error)
}

func (s *GormStore) GetFile(id uuid.UUID) (*models.File, error) {
	var file models.File
	if err := s.db.Preload("Owner").First(&file, "id = ?", id).Error; err != nil {
		return nil, wrap(err)
	}
	return &file, nil
}

func (s *GormStore) UpdateFileName(id uuid.UUID, name string) error {
	res := s.db.Model(&models.File{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return vault.ErrNotFound
	}
	return nil
}

// DeleteFile cascades: shares and links referencing the file go in the
// same transaction, so no grant can outlive the record.
func (s *GormStore) DeleteFile(id uuid.UUID) error {
	return wrap(s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", id).Delete(&models.FileShare{}).Error; err != nil {
			return err
		}
		if err := tx.Where("file_id = ?", id).Delete(&models.ShareableLink{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.File{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}

func (s *GormStore) ListFilesForUser(user *models.User) ([]models.File, error) {
	var files []models.File
	q := s.db.Preload("Owner").Order("created_at DESC")
	if !user.IsAdmin() {
		shared := s.db.Model(&models.FileShare{}).Select("file_id").Where("grantee_id = ?", user.ID)
		q = q.Where("owner_id = ? OR id IN (?)", user.ID, shared)
	}
	if err := q.Find(&files).Error; err != nil {
		return nil, wrap(err)
	}
	return files, nil
}

func (s *GormStore) UpsertShare(share *models.FileShare) error {
	return wrap(s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_id"}, {Name: "grantee_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permission"}),
	}).Create(share).Error)
}

func (s *GormStore) GetShare(fileID, granteeID uuid.UUID) (*models.FileShare, error) {
	var share models.FileShare
	err := s.db.First(&share, "file_id = ? AND grantee_id = ?", fileID, granteeID).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &share, nil
}

func (s *GormStore) GetShareByID(id uuid.UUID) (*models.FileShare, error) {
	var share models.FileShare
	if err := s.db.First(&share, "id = ?", id).Error; err != nil {
		return nil, wrap(err)
	}
	return &share, nil
}

func (s *GormStore) DeleteShare(id uuid.UUID) error {
	res := s.db.Where("id = ?", id).Delete(&models.FileShare{})
	if res.Error != nil {
		return wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return vault.ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateLink(link *models.ShareableLink) error {
	return wrap(s.db.Create(link).Error)
}

func (s *GormStore) GetLinkBySlug(slug string) (*models.ShareableLink, error) {
	var link models.ShareableLink
	if err := s.db.First(&link, "slug = ?", slug).Error; err != nil {
		return nil, wrap(err)
	}
	return &link, nil
}

// ConsumeLinkAccess folds the validity predicate into the UPDATE's
// WHERE clause, so checking and incrementing are one statement and N
// racing callers can never all pass a check with one slot left.
func (s *GormStore) ConsumeLinkAccess(id uuid.UUID, now time.Time) (bool, error) {
	res := s.db.Model(&models.ShareableLink{}).
		Where("id = ? AND expires_at > ? AND (max_access IS NULL OR access_count < max_access)", id, now).
		UpdateColumn("access_count", gorm.Expr("access_count + ?", 1))
	if res.Error != nil {
		return false, wrap(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) DeleteExpiredLinks(now time.Time) (int64, error) {
	res := s.db.Where("expires_at < ?", now).Delete(&models.ShareableLink{})
	if res.Error != nil {
		return 0, wrap(res.Error)
	}
	return res.RowsAffected, nil
}

// Append implements vault.AuditSink.
func (s *GormStore) Append(event *models.AuditLog) error {
	return wrap(s.db.Create(event).Error)
}
