package vault

import (
	"errors"
	"fmt"
)

// Error taxonomy for the engine. ErrCrypto is deliberately distinct
// from ErrStorageUnavailable so callers can tell "wrong key or
// tampered ciphertext" apart from "storage is down".
var (
	ErrValidation         = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrCrypto             = errors.New("crypto failure")
	ErrUnsupportedType    = errors.New("unsupported content type")
	ErrInvalidChunk       = errors.New("invalid chunk")
	ErrIncompleteUpload   = errors.New("incomplete upload")
	ErrAlreadyFinalized   = errors.New("upload already finalized")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInternal           = errors.New("internal error")

	ErrAccessDenied = errors.New("access denied")
)

// Machine-readable denial reasons surfaced through ErrAccessDenied.
const (
	ReasonNoRelation    = "no relation to file"
	ReasonViewOnly      = "share permits view only"
	ReasonNoMutation    = "share does not permit modification"
	ReasonGuestReadOnly = "guests are read-only"
	ReasonLinkExpired   = "expired_or_exhausted"
)

func denied(reason string) error {
	return fmt.Errorf("%w: %s", ErrAccessDenied, reason)
}
