package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rohan/securevault-backend/vault"
)

// Engine is the shared vault service, set once at startup.
var Engine *vault.Service

// respondError translates engine errors into HTTP responses. Anything
// outside the taxonomy is reported as a generic 500 with the detail
// kept in the local log only.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, vault.ErrValidation),
		errors.Is(err, vault.ErrInvalidChunk),
		errors.Is(err, vault.ErrIncompleteUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, vault.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, vault.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	case errors.Is(err, vault.ErrAlreadyFinalized):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, vault.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	case errors.Is(err, vault.ErrStorageUnavailable):
		log.Printf("storage unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage temporarily unavailable"})
	case errors.Is(err, vault.ErrCrypto):
		log.Printf("crypto failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to process file"})
	default:
		log.Printf("unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred"})
	}
}
