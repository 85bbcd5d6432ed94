package vault

import (
	"time"

	"github.com/rohan/securevault-backend/models"
)

type Operation string

const (
	OpView     Operation = "view"
	OpDownload Operation = "download"
	OpMutate   Operation = "mutate"
	OpDelete   Operation = "delete"
)

func (op Operation) isRead() bool {
	return op == OpView || op == OpDownload
}

// Decision is the resolver's verdict; Reason is machine-readable and
// only set on denial.
type Decision struct {
	Allowed bool
	Reason  string
}

func grant() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Err converts a Decision into the error callers propagate: nil on
// grant, ErrAccessDenied carrying the reason otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return denied(d.Reason)
}

// Resolve computes the effective permission user has over file. share
// is the FileShare row for (file, user) if one exists, nil otherwise;
// looking it up is the caller's job so Resolve stays a pure function.
//
// Resolution order, first match wins: admins and owners may do
// anything; nobody else may mutate or delete (shares only ever grant
// read access, and guests are read-only everywhere); a view share
// grants view, a download share grants view and download.
func Resolve(user *models.User, file *models.File, share *models.FileShare, op Operation) Decision {
	if user.IsAdmin() {
		return grant()
	}
	if file.OwnerID == user.ID {
		return grant()
	}

	if !op.isRead() {
		if user.IsGuest() {
			return deny(ReasonGuestReadOnly)
		}
		if share != nil {
			return deny(ReasonNoMutation)
		}
		return deny(ReasonNoRelation)
	}

	if share == nil {
		return deny(ReasonNoRelation)
	}
	if op == OpDownload && share.Permission != models.PermissionDownload {
		return deny(ReasonViewOnly)
	}
	return grant()
}

// ResolveLink decides whether a presented link admits the requested
// read operation at the given instant. It does not consume a slot;
// the service pairs a grant with RecordStore.ConsumeLinkAccess so the
// check and the increment are one atomic unit.
func ResolveLink(link *models.ShareableLink, op Operation, now time.Time) Decision {
	if !op.isRead() {
		return deny(ReasonNoRelation)
	}
	if !link.IsValid(now) {
		return deny(ReasonLinkExpired)
	}
	return grant()
}
