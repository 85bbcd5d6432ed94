package vault

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohan/securevault-backend/models"
)

// In-memory fakes for the store seam so the engine is exercised
// end-to-end without a database or object store.

type memRecords struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*models.User
	files      map[uuid.UUID]*models.File
	shares     map[uuid.UUID]*models.FileShare
	links      map[uuid.UUID]*models.ShareableLink
	failCreate bool
}

func newMemRecords() *memRecords {
	return &memRecords{
		users:  make(map[uuid.UUID]*models.User),
		files:  make(map[uuid.UUID]*models.File),
		shares: make(map[uuid.UUID]*models.FileShare),
		links:  make(map[uuid.UUID]*models.ShareableLink),
	}
}

func (m *memRecords) addUser(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *memRecords) GetUser(id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *memRecords) CreateFile(f *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return ErrStorageUnavailable
	}
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *memRecords) GetFile(id uuid.UUID) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memRecords) UpdateFileName(id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return ErrNotFound
	}
	f.Name = name
	return nil
}

func (m *memRecords) DeleteFile(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return ErrNotFound
	}
	delete(m.files, id)
	for sid, s := range m.shares {
		if s.FileID == id {
			delete(m.shares, sid)
		}
	}
	for lid, l := range m.links {
		if l.FileID == id {
			delete(m.links, lid)
		}
	}
	return nil
}

func (m *memRecords) ListFilesForUser(user *models.User) ([]models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.File
	for _, f := range m.files {
		if user.IsAdmin() || f.OwnerID == user.ID {
			out = append(out, *f)
			continue
		}
		for _, s := range m.shares {
			if s.FileID == f.ID && s.GranteeID == user.ID {
				out = append(out, *f)
				break
			}
		}
	}
	return out, nil
}

func (m *memRecords) UpsertShare(share *models.FileShare) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shares {
		if s.FileID == share.FileID && s.GranteeID == share.GranteeID {
			s.Permission = share.Permission
			*share = *s
			return nil
		}
	}
	cp := *share
	m.shares[share.ID] = &cp
	return nil
}

func (m *memRecords) GetShare(fileID, granteeID uuid.UUID) (*models.FileShare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shares {
		if s.FileID == fileID && s.GranteeID == granteeID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRecords) GetShareByID(id uuid.UUID) (*models.FileShare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shares[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRecords) DeleteShare(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shares[id]; !ok {
		return ErrNotFound
	}
	delete(m.shares, id)
	return nil
}

func (m *memRecords) CreateLink(link *models.ShareableLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *link
	m.links[link.ID] = &cp
	return nil
}

func (m *memRecords) GetLinkBySlug(slug string) (*models.ShareableLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.Slug == slug {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRecords) ConsumeLinkAccess(id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return false, nil
	}
	if !l.IsValid(now) {
		return false, nil
	}
	l.AccessCount++
	return true, nil
}

func (m *memRecords) DeleteExpiredLinks(now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, l := range m.links {
		if !now.Before(l.ExpiresAt) {
			delete(m.links, id)
			n++
		}
	}
	return n, nil
}

func (m *memRecords) linkByID(id uuid.UUID) *models.ShareableLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.links[id]; ok {
		cp := *l
		return &cp
	}
	return nil
}

type memBlobs struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	failGet bool
}

func newMemBlobs() *memBlobs {
	return &memBlobs{blobs: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.blobs[key] = cp
	return nil
}

func (m *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, ErrStorageUnavailable
	}
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *memBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

func (m *memBlobs) corrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, data := range m.blobs {
		data[len(data)/2] ^= 0xFF
		m.blobs[key] = data
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memSink struct {
	mu     sync.Mutex
	events []*models.AuditLog
}

func (m *memSink) Append(e *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memSink) actions() []models.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditAction
	for _, e := range m.events {
		out = append(out, e.Action)
	}
	return out
}

type testEnv struct {
	svc     *Service
	records *memRecords
	blobs   *memBlobs
	clock   *fakeClock
	sink    *memSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	records := newMemRecords()
	blobs := newMemBlobs()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	sink := &memSink{}
	return &testEnv{
		svc:     NewService(records, blobs, clock, sink, t.TempDir()),
		records: records,
		blobs:   blobs,
		clock:   clock,
		sink:    sink,
	}
}

func (e *testEnv) user(role models.Role) *models.User {
	u := &models.User{ID: uuid.New(), Role: role}
	e.records.addUser(u)
	return u
}

var pdfBytes = []byte("%PDF-1.4 minimal but plausible document contents for tests")

func TestService_UploadDownloadRoundtrip(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(models.RoleUser)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, owner, "report.pdf", pdfBytes, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, int64(len(pdfBytes)), file.Size)
	assert.Len(t, file.EncryptionKey, KeySize)

	// The stored blob is ciphertext, not the plaintext.
	stored, err := env.blobs.Get(ctx, file.BlobKey)
	require.NoError(t, err)
	assert.NotEqual(t, pdfBytes, stored)

	_, plaintext, err := env.svc.Download(ctx, owner, file.ID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, plaintext)

	assert.Equal(t, []models.AuditAction{models.ActionUpload, models.ActionDownload}, env.sink.actions())
}

func TestService_UploadValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.user(models.RoleUser)
	guest := env.user(models.RoleGuest)
	ctx := context.Background()

	_, err := env.svc.Upload(ctx, user, "", pdfBytes, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.Upload(ctx, user, "empty.pdf", nil, "")
	assert.ErrorIs(t, err, ErrValidation)

	elf := append([]byte{0x7F, 'E', 'L', 'F', 2, 1, 1, 0}, make([]byte, 56)...)
	_, err = env.svc.Upload(ctx, user, "definitely-a.pdf", elf, "")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = env.svc.Upload(ctx, guest, "notes.txt", []byte("guests cannot write"), "")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestService_UploadRollsBackBlobOnRecordFailure(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(models.RoleUser)
	env.records.failCreate = true

	_, err := env.svc.Upload(context.Background(), owner, "report.pdf", pdfBytes, "")
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Equal(t, 0, env.blobs.count(), "orphaned ciphertext after failed create")
}

func TestService_ChunkedUpload(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(models.RoleUser)
	ctx := context.Background()

	content := append([]byte("%PDF-1.4 "), []byte("chunked body across three pieces")...)
	third := len(content) / 3
	parts := [][]byte{content[:third], content[third : 2*third], content[2*third:]}

	for _, i := range []int{1, 2, 0} {
		require.NoError(t, env.svc.UploadChunk(owner, "session-1", i, 3, parts[i]))
	}
	require.True(t, env.svc.UploadComplete(owner, "session-1"))

	file, err := env.svc.FinalizeUpload(ctx, owner, "session-1", "assembled.pdf", "10.0.0.1")
	require.NoError(t, err)

	_, plaintext, err := env.svc.Download(ctx, owner, file.ID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, content, plaintext)
}

func TestService_ShareLifecycle(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(models.RoleUser)
	grantee := env.user(models.RoleUser)
	stranger := env.user(models.RoleUser)
	admin := env.user(models.RoleAdmin)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, owner, "doc.pdf", pdfBytes, "")
	require.NoError(t, err)

	// Only the owner (or an admin) may share.
	_, err = env.svc.Share(stranger, file.ID, grantee.ID, models.PermissionView, "")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = env.svc.Share(owner, file.ID, owner.ID, models.PermissionView, "")
	assert.ErrorIs(t, err, ErrValidation)

	// A view share lets the grantee preview but not download.
	_, err = env.svc.Share(owner, file.ID, grantee.ID, models.PermissionView, "")
	require.NoError(t, err)
	_, _, err = env.svc.Download(ctx, grantee, file.ID, "")
	assert.ErrorIs(t, err, ErrAccessDenied)

	// Re-sharing upgrades in place instead of duplicating.
	share, err := env.svc.Share(owner, file.ID, grantee.ID, models.PermissionDownload, "")
	require.NoError(t, err)
	_, plaintext, err := env.svc.Download(ctx, grantee, file.ID, "")
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, plaintext)

	// Grantee still cannot delete or rename.
	err = env.svc.Delete(ctx, grantee, file.ID, "")
	assert.ErrorIs(t, err, ErrAccessDenied)
	err = env.svc.Rename(grantee, file.ID, "mine-now.pdf")
	assert.ErrorIs(t, err, ErrAccessDenied)

	// Admin may revoke the share.
	require.NoError(t, env.svc.Unshare(admin, share.ID))
	_, _, err = env.svc.Download(ctx, grantee, file.ID, "")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestService_LinkAccess(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(models.RoleUser)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, owner, "shared.pdf", pdfBytes, "")
	require.NoError(t, err)

	link, err := env.svc.CreateLink(owner, file.ID, time.Hour, nil, "")
	require.NoError(t, err)

	_, plaintext, err := env.svc.AccessViaLink(ctx, nil, link.Slug, OpDownload, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, plaintext)
	assert.Equal(t, 1, env.records.linkByID(link.ID).AccessCount)

	// After expiry the same slug is denied and the count stays put.
	env.clock.Advance(2 * time.Hour)
	_, _, err = env.svc.AccessViaLink(ctx, nil, link.Slug, OpDownload, "203.0.113.9")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, 1, env.records.linkByID(link.ID).AccessCount)
}

func TestService_LinkExhaustionRace(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(models.RoleUser)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, owner, "contended.pdf", pdfBytes, "")
	require.NoError(t, err)

	one := 1
	link, err := env.svc.CreateLink(owner, file.ID, time.Hour, &one, "")
	require.NoError(t, err)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = env.svc.AccessViaLink(ctx, nil, link.Slug, OpDownload, "")
		}(i)
	}
	wg.Wait()

	var granted, deniedCount int
	for _, err := range results {
		switch {
		case err == nil:
			granted++
		case errors.Is(err, ErrAccessDenied):
			deniedCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, granted, "exactly one caller wins the last slot")
	assert.Equal(t, callers-1, deniedCount)
	assert.Equal(t, 1, env.records.linkByID(link.ID).AccessCount)
}

func TestService_DeleteCascade(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(models.RoleUser)
	grantee := env.user(models.RoleUser)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, owner, "doomed.pdf", pdfBytes, "")
	require.NoError(t, err)
	_, err = env.svc.Share(owner, file.ID, grantee.ID, models.PermissionDownload, "")
	require.NoError(t, err)
	link, err := env.svc.CreateLink(owner, file.ID, time.Hour, nil, "")
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, owner, file.ID, ""))

	// Blob is gone, the share no longer resolves, and the link can
	// never produce a stale grant.
	assert.Equal(t, 0, env.blobs.count())
	_, _, err = env.svc.Download(ctx, grantee, file.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = env.svc.AccessViaLink(ctx, nil, link.Slug, OpDownload, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ErrorsAreDistinguishable(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(models.RoleUser)
	ctx := context.Background()

	file, err := env.svc.Upload(ctx, owner, "fragile.pdf", pdfBytes, "")
	require.NoError(t, err)

	// Storage outage is ErrStorageUnavailable, never ErrCrypto.
	env.blobs.failGet = true
	_, _, err = env.svc.Download(ctx, owner, file.ID, "")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrCrypto)
	env.blobs.failGet = false

	// Tampered ciphertext is ErrCrypto, never a storage error.
	env.blobs.corrupt()
	_, _, err = env.svc.Download(ctx, owner, file.ID, "")
	assert.ErrorIs(t, err, ErrCrypto)
	assert.NotErrorIs(t, err, ErrStorageUnavailable)
}

func TestService_Preview(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(models.RoleUser)
	viewer := env.user(models.RoleUser)
	ctx := context.Background()

	pdf, err := env.svc.Upload(ctx, owner, "slides.pdf", pdfBytes, "")
	require.NoError(t, err)
	txt, err := env.svc.Upload(ctx, owner, "notes.txt", []byte("nothing to see here"), "")
	require.NoError(t, err)

	_, err = env.svc.Share(owner, pdf.ID, viewer.ID, models.PermissionView, "")
	require.NoError(t, err)

	_, plaintext, err := env.svc.Preview(ctx, viewer, pdf.ID, "")
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, plaintext)

	// Text files are not previewable.
	_, _, err = env.svc.Preview(ctx, owner, txt.ID, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestService_ListFiles(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(models.RoleUser)
	other := env.user(models.RoleUser)
	admin := env.user(models.RoleAdmin)
	ctx := context.Background()

	_, err := env.svc.Upload(ctx, owner, "mine.pdf", pdfBytes, "")
	require.NoError(t, err)
	theirs, err := env.svc.Upload(ctx, other, "theirs.pdf", pdfBytes, "")
	require.NoError(t, err)
	_, err = env.svc.Share(other, theirs.ID, owner.ID, models.PermissionView, "")
	require.NoError(t, err)

	files, err := env.svc.ListFiles(owner)
	require.NoError(t, err)
	assert.Len(t, files, 2, "owned plus shared-with")

	files, err = env.svc.ListFiles(admin)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
