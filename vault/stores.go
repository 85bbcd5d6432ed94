package vault

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rohan/securevault-backend/models"
)

// RecordStore is the engine's view of metadata persistence. Missing
// rows surface as ErrNotFound; any other failure as
// ErrStorageUnavailable.
type RecordStore interface {
	GetUser(id uuid.UUID) (*models.User, error)

	CreateFile(file *models.File) error
	GetFile(id uuid.UUID) (*models.File, error)
	UpdateFileName(id uuid.UUID, name string) error
	// DeleteFile removes the file row together with every share and
	// shareable link that references it, in one transaction.
	DeleteFile(id uuid.UUID) error
	// ListFilesForUser returns files the user owns plus files shared
	// with them; admins see everything.
	ListFilesForUser(user *models.User) ([]models.File, error)

	UpsertShare(share *models.FileShare) error
	GetShare(fileID, granteeID uuid.UUID) (*models.FileShare, error)
	GetShareByID(id uuid.UUID) (*models.FileShare, error)
	DeleteShare(id uuid.UUID) error

	CreateLink(link *models.ShareableLink) error
	GetLinkBySlug(slug string) (*models.ShareableLink, error)
	// ConsumeLinkAccess re-checks the validity predicate and increments
	// the access counter as one atomic operation. ok reports whether
	// this caller won a slot; a false return with nil error means the
	// link was expired or exhausted at the moment of the check.
	ConsumeLinkAccess(id uuid.UUID, now time.Time) (ok bool, err error)
	DeleteExpiredLinks(now time.Time) (int64, error)
}

// BlobStore holds ciphertext under opaque keys. Get on a missing key
// returns ErrNotFound; transport failures return ErrStorageUnavailable.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Clock is injectable so expiry behavior is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// AuditSink durably appends audit entries. The engine treats appends as
// best-effort; see Recorder.
type AuditSink interface {
	Append(event *models.AuditLog) error
}
