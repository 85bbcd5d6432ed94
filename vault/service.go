package vault

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	"github.com/rohan/securevault-backend/models"
)

const (
	// MaxUploadSize caps a single upload's plaintext size.
	MaxUploadSize = 50 << 20

	// DefaultLinkTTL applies when a link is created without an
	// explicit lifetime.
	DefaultLinkTTL = 7 * 24 * time.Hour
)

// Service wires the cipher, reassembler, resolver and recorder to the
// injected stores and exposes the engine's operations to adapters.
type Service struct {
	records RecordStore
	blobs   BlobStore
	clock   Clock
	audit   *Recorder
	chunks  *ChunkStore
}

func NewService(records RecordStore, blobs BlobStore, clock Clock, sink AuditSink, chunkRoot string) *Service {
	if clock == nil {
		clock = SystemClock
	}
	return &Service{
		records: records,
		blobs:   blobs,
		clock:   clock,
		audit:   NewRecorder(sink),
		chunks:  NewChunkStore(chunkRoot),
	}
}

// Chunks exposes the session store so maintenance jobs can reap
// abandoned sessions.
func (s *Service) Chunks() *ChunkStore { return s.chunks }

// Upload sniffs, encrypts and persists plaintext as a new file owned by
// user. The stored Size is the plaintext length. A failed record create
// rolls back the blob so no unreferenced ciphertext is left behind.
func (s *Service) Upload(ctx context.Context, user *models.User, filename string, data []byte, clientIP string) (*models.File, error) {
	if user.IsGuest() {
		return nil, denied(ReasonGuestReadOnly)
	}
	if filename == "" {
		return nil, fmt.Errorf("%w: empty filename", ErrValidation)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrValidation)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, MaxUploadSize)
	}

	contentType, err := SniffContentType(data)
	if err != nil {
		return nil, err
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	ciphertext, err := Encrypt(data, key)
	if err != nil {
		return nil, err
	}

	blobKey := uuid.New().String() + "_" + filepath.Base(filename)
	if err := s.blobs.Put(ctx, blobKey, ciphertext); err != nil {
		return nil, err
	}

	file := &models.File{
		ID:            uuid.New(),
		OwnerID:       user.ID,
		Name:          filename,
		BlobKey:       blobKey,
		EncryptionKey: key,
		ContentType:   contentType,
		Size:          int64(len(data)),
		CreatedAt:     s.clock.Now(),
	}
	if err := s.records.CreateFile(file); err != nil {
		if delErr := s.blobs.Delete(ctx, blobKey); delErr != nil {
			log.Printf("upload: orphaned blob %s after failed record create: %v", blobKey, delErr)
		}
		return nil, err
	}

	s.audit.Record(&models.AuditLog{
		UserID:    &user.ID,
		Action:    models.ActionUpload,
		FileID:    &file.ID,
		Details:   models.JSONMap{"name": filename, "size": file.Size, "content_type": contentType},
		IPAddress: clientIP,
		CreatedAt: s.clock.Now(),
	})
	return file, nil
}

// UploadChunk stores one piece of a chunked upload.
func (s *Service) UploadChunk(user *models.User, uploadID string, index, total int, data []byte) error {
	if user.IsGuest() {
		return denied(ReasonGuestReadOnly)
	}
	if len(data) > MaxUploadSize {
		return fmt.Errorf("%w: chunk exceeds %d bytes", ErrValidation, MaxUploadSize)
	}
	return s.chunks.SubmitChunk(user.ID, uploadID, index, total, data)
}

// UploadComplete reports whether every chunk of the session arrived.
func (s *Service) UploadComplete(user *models.User, uploadID string) bool {
	return s.chunks.IsComplete(user.ID, uploadID)
}

// FinalizeUpload reassembles the session's chunks and runs the regular
// upload path over the result.
func (s *Service) FinalizeUpload(ctx context.Context, user *models.User, uploadID, filename, clientIP string) (*models.File, error) {
	data, err := s.chunks.Finalize(user.ID, uploadID)
	if err != nil {
		return nil, err
	}
	return s.Upload(ctx, user, filename, data, clientIP)
}

// AbortUpload cancels an in-progress chunked upload and frees its
// temporary storage.
func (s *Service) AbortUpload(user *models.User, uploadID string) error {
	return s.chunks.Abort(user.ID, uploadID)
}

// Download returns the decrypted plaintext of a file the user may
// download. A missing record or blob is ErrNotFound, a blob transport
// failure ErrStorageUnavailable, and an authentication failure during
// decrypt ErrCrypto.
func (s *Service) Download(ctx context.Context, user *models.User, fileID uuid.UUID, clientIP string) (*models.File, []byte, error) {
	file, plaintext, err := s.fetchDecrypted(ctx, user, fileID, OpDownload)
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(&models.AuditLog{
		UserID:    &user.ID,
		Action:    models.ActionDownload,
		FileID:    &file.ID,
		Details:   models.JSONMap{"name": file.Name},
		IPAddress: clientIP,
		CreatedAt: s.clock.Now(),
	})
	return file, plaintext, nil
}

// Preview returns decrypted bytes for inline display. Only images and
// PDFs are previewable; view permission suffices.
func (s *Service) Preview(ctx context.Context, user *models.User, fileID uuid.UUID, clientIP string) (*models.File, []byte, error) {
	file, err := s.records.GetFile(fileID)
	if err != nil {
		return nil, nil, err
	}
	share, err := s.shareFor(file.ID, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := Resolve(user, file, share, OpView).Err(); err != nil {
		return nil, nil, err
	}
	if !strings.HasPrefix(file.ContentType, "image/") && file.ContentType != "application/pdf" {
		return nil, nil, fmt.Errorf("%w: preview not supported for %s", ErrValidation, file.ContentType)
	}

	ciphertext, err := s.blobs.Get(ctx, file.BlobKey)
	if err != nil {
		return nil, nil, err
	}
	plaintext, err := Decrypt(ciphertext, file.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(&models.AuditLog{
		UserID:    &user.ID,
		Action:    models.ActionAccess,
		FileID:    &file.ID,
		Details:   models.JSONMap{"name": file.Name, "operation": string(OpView)},
		IPAddress: clientIP,
		CreatedAt: s.clock.Now(),
	})
	return file, plaintext, nil
}

func (s *Service) fetchDecrypted(ctx context.Context, user *models.User, fileID uuid.UUID, op Operation) (*models.File, []byte, error) {
	file, err := s.records.GetFile(fileID)
	if err != nil {
		return nil, nil, err
	}

	share, err := s.shareFor(file.ID, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := Resolve(user, file, share, op).Err(); err != nil {
		return nil, nil, err
	}

	ciphertext, err := s.blobs.Get(ctx, file.BlobKey)
	if err != nil {
		return nil, nil, err
	}
	plaintext, err := Decrypt(ciphertext, file.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	return file, plaintext, nil
}

func (s *Service) shareFor(fileID, userID uuid.UUID) (*models.FileShare, error) {
	share, err := s.records.GetShare(fileID, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return share, err
}

// Share grants granteeID standing access to the file. Only the owner
// (or an admin) may share; re-sharing the same grantee updates the
// permission instead of adding a row.
func (s *Service) Share(user *models.User, fileID, granteeID uuid.UUID, permission models.SharePermission, clientIP string) (*models.FileShare, error) {
	if permission != models.PermissionView && permission != models.PermissionDownload {
		return nil, fmt.Errorf("%w: unknown permission %q", ErrValidation, permission)
	}

	file, err := s.records.GetFile(fileID)
	if err != nil {
		return nil, err
	}
	if err := Resolve(user, file, nil, OpMutate).Err(); err != nil {
		return nil, err
	}

	grantee, err := s.records.GetUser(granteeID)
	if err != nil {
		return nil, err
	}
	if grantee.ID == file.OwnerID {
		return nil, fmt.Errorf("%w: cannot share a file with its owner", ErrValidation)
	}

	share := &models.FileShare{
		ID:         uuid.New(),
		FileID:     file.ID,
		GranteeID:  grantee.ID,
		Permission: permission,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.records.UpsertShare(share); err != nil {
		return nil, err
	}

	s.audit.Record(&models.AuditLog{
		UserID:    &user.ID,
		Action:    models.ActionShare,
		FileID:    &file.ID,
		Details:   models.JSONMap{"grantee": grantee.ID.String(), "permission": string(permission)},
		IPAddress: clientIP,
		CreatedAt: s.clock.Now(),
	})
	return share, nil
}

// Unshare revokes a standing grant. Allowed for the file's owner and
// for admins.
func (s *Service) Unshare(user *models.User, shareID uuid.UUID) error {
	share, err := s.records.GetShareByID(shareID)
	if err != nil {
		return err
	}
	file, err := s.records.GetFile(share.FileID)
	if err != nil {
		return err
	}
	if err := Resolve(user, file, nil, OpMutate).Err(); err != nil {
		return err
	}
	return s.records.DeleteShare(shareID)
}

// CreateLink mints a bearer link for the file. ttl <= 0 selects the
// default lifetime; maxAccess nil means unbounded.
func (s *Service) CreateLink(user *models.User, fileID uuid.UUID, ttl time.Duration, maxAccess *int, clientIP string) (*models.ShareableLink, error) {
	if maxAccess != nil && *maxAccess <= 0 {
		return nil, fmt.Errorf("%w: max access must be positive", ErrValidation)
	}
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}

	file, err := s.records.GetFile(fileID)
	if err != nil {
		return nil, err
	}
	if err := Resolve(user, file, nil, OpMutate).Err(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	link := &models.ShareableLink{
		ID:          uuid.New(),
		FileID:      file.ID,
		CreatedByID: user.ID,
		Slug:        shortuuid.New(),
		ExpiresAt:   now.Add(ttl),
		MaxAccess:   maxAccess,
		CreatedAt:   now,
	}
	if err := s.records.CreateLink(link); err != nil {
		return nil, err
	}

	s.audit.Record(&models.AuditLog{
		UserID:    &user.ID,
		Action:    models.ActionShare,
		FileID:    &file.ID,
		Details:   models.JSONMap{"link": link.Slug, "expires_at": link.ExpiresAt.Format(time.RFC3339)},
		IPAddress: clientIP,
		CreatedAt: now,
	})
	return link, nil
}

// AccessViaLink serves a download or view to whoever presents a valid
// link slug. The validity check and counter increment happen as one
// atomic store operation, so with one slot of headroom left exactly one
// of N racing callers gets the bytes. actor is the authenticated user
// if the caller happens to hold a session; it plays no part in the
// decision and only enriches the audit entry.
func (s *Service) AccessViaLink(ctx context.Context, actor *models.User, slug string, op Operation, clientIP string) (*models.File, []byte, error) {
	link, err := s.records.GetLinkBySlug(slug)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	if err := ResolveLink(link, op, now).Err(); err != nil {
		return nil, nil, err
	}

	ok, err := s.records.ConsumeLinkAccess(link.ID, now)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, denied(ReasonLinkExpired)
	}

	file, err := s.records.GetFile(link.FileID)
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err := s.blobs.Get(ctx, file.BlobKey)
	if err != nil {
		return nil, nil, err
	}
	plaintext, err := Decrypt(ciphertext, file.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}

	event := &models.AuditLog{
		Action:    models.ActionAccess,
		FileID:    &file.ID,
		Details:   models.JSONMap{"link": slug, "operation": string(op)},
		IPAddress: clientIP,
		CreatedAt: now,
	}
	if actor != nil {
		event.UserID = &actor.ID
	}
	s.audit.Record(event)
	return file, plaintext, nil
}

// Delete removes the file record with its shares and links, then the
// ciphertext blob. The record goes first so concurrent readers either
// finish against the pre-delete blob or observe ErrNotFound; a blob
// that outlives a failed delete is logged for the cleanup job.
func (s *Service) Delete(ctx context.Context, user *models.User, fileID uuid.UUID, clientIP string) error {
	file, err := s.records.GetFile(fileID)
	if err != nil {
		return err
	}
	share, err := s.shareFor(file.ID, user.ID)
	if err != nil {
		return err
	}
	if err := Resolve(user, file, share, OpDelete).Err(); err != nil {
		return err
	}

	if err := s.records.DeleteFile(file.ID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, file.BlobKey); err != nil {
		log.Printf("delete: blob %s not removed for file %s: %v", file.BlobKey, file.ID, err)
	}

	s.audit.Record(&models.AuditLog{
		UserID:    &user.ID,
		Action:    models.ActionDelete,
		FileID:    &file.ID,
		Details:   models.JSONMap{"name": file.Name},
		IPAddress: clientIP,
		CreatedAt: s.clock.Now(),
	})
	return nil
}

// Rename updates the display name. Requires mutate permission, so only
// owners and admins qualify.
func (s *Service) Rename(user *models.User, fileID uuid.UUID, newName string) error {
	if newName == "" {
		return fmt.Errorf("%w: empty name", ErrValidation)
	}
	file, err := s.records.GetFile(fileID)
	if err != nil {
		return err
	}
	share, err := s.shareFor(file.ID, user.ID)
	if err != nil {
		return err
	}
	if err := Resolve(user, file, share, OpMutate).Err(); err != nil {
		return err
	}
	return s.records.UpdateFileName(file.ID, newName)
}

// ListFiles returns the files visible to the user: their own plus
// anything shared with them, or everything for admins.
func (s *Service) ListFiles(user *models.User) ([]models.File, error) {
	return s.records.ListFilesForUser(user)
}
