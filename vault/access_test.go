package vault

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/rohan/securevault-backend/models"
)

func testUser(role models.Role) *models.User {
	return &models.User{ID: uuid.New(), Role: role}
}

func shareFor(file *models.File, grantee *models.User, perm models.SharePermission) *models.FileShare {
	return &models.FileShare{
		ID:         uuid.New(),
		FileID:     file.ID,
		GranteeID:  grantee.ID,
		Permission: perm,
	}
}

func TestResolve_AccessMatrix(t *testing.T) {
	owner := testUser(models.RoleUser)
	admin := testUser(models.RoleAdmin)
	stranger := testUser(models.RoleUser)
	guest := testUser(models.RoleGuest)
	file := &models.File{ID: uuid.New(), OwnerID: owner.ID, Name: "report.pdf"}

	allOps := []Operation{OpView, OpDownload, OpMutate, OpDelete}

	// Admin and owner may do anything.
	for _, op := range allOps {
		assert.True(t, Resolve(admin, file, nil, op).Allowed, "admin %s", op)
		assert.True(t, Resolve(owner, file, nil, op).Allowed, "owner %s", op)
	}

	// An unrelated user gets nothing.
	for _, op := range allOps {
		d := Resolve(stranger, file, nil, op)
		assert.False(t, d.Allowed, "stranger %s", op)
		assert.Equal(t, ReasonNoRelation, d.Reason)
	}

	// A view share grants view only.
	viewShare := shareFor(file, stranger, models.PermissionView)
	assert.True(t, Resolve(stranger, file, viewShare, OpView).Allowed)
	d := Resolve(stranger, file, viewShare, OpDownload)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonViewOnly, d.Reason)
	assert.False(t, Resolve(stranger, file, viewShare, OpMutate).Allowed)
	assert.False(t, Resolve(stranger, file, viewShare, OpDelete).Allowed)

	// Upgrading the share to download grants both reads, still no writes.
	dlShare := shareFor(file, stranger, models.PermissionDownload)
	assert.True(t, Resolve(stranger, file, dlShare, OpView).Allowed)
	assert.True(t, Resolve(stranger, file, dlShare, OpDownload).Allowed)
	assert.False(t, Resolve(stranger, file, dlShare, OpMutate).Allowed)
	assert.False(t, Resolve(stranger, file, dlShare, OpDelete).Allowed)

	// A guest with a download share may read but never mutate or delete.
	guestShare := shareFor(file, guest, models.PermissionDownload)
	assert.True(t, Resolve(guest, file, guestShare, OpView).Allowed)
	assert.True(t, Resolve(guest, file, guestShare, OpDownload).Allowed)
	d = Resolve(guest, file, guestShare, OpDelete)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonGuestReadOnly, d.Reason)
	assert.False(t, Resolve(guest, file, guestShare, OpMutate).Allowed)
}

func TestResolve_ShareNeverGrantsMutation(t *testing.T) {
	owner := testUser(models.RoleUser)
	grantee := testUser(models.RoleUser)
	file := &models.File{ID: uuid.New(), OwnerID: owner.ID}
	share := shareFor(file, grantee, models.PermissionDownload)

	d := Resolve(grantee, file, share, OpMutate)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNoMutation, d.Reason)
}

func TestDecision_Err(t *testing.T) {
	assert.NoError(t, Decision{Allowed: true}.Err())
	assert.ErrorIs(t, Decision{Reason: ReasonNoRelation}.Err(), ErrAccessDenied)
}

func TestResolveLink(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	two := 2

	valid := &models.ShareableLink{ExpiresAt: now.Add(time.Hour), MaxAccess: &two, AccessCount: 1}
	assert.True(t, ResolveLink(valid, OpDownload, now).Allowed)
	assert.True(t, ResolveLink(valid, OpView, now).Allowed)

	expired := &models.ShareableLink{ExpiresAt: now.Add(-time.Minute)}
	d := ResolveLink(expired, OpDownload, now)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonLinkExpired, d.Reason)

	exhausted := &models.ShareableLink{ExpiresAt: now.Add(time.Hour), MaxAccess: &two, AccessCount: 2}
	d = ResolveLink(exhausted, OpDownload, now)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonLinkExpired, d.Reason)

	unbounded := &models.ShareableLink{ExpiresAt: now.Add(time.Hour), AccessCount: 9999}
	assert.True(t, ResolveLink(unbounded, OpDownload, now).Allowed)

	// Links only ever grant reads.
	assert.False(t, ResolveLink(valid, OpDelete, now).Allowed)
	assert.False(t, ResolveLink(valid, OpMutate, now).Allowed)
}
