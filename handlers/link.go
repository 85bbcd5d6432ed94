package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rohan/securevault-backend/auth/middleware"
	"github.com/rohan/securevault-backend/initializers"
	"github.com/rohan/securevault-backend/models"
	"github.com/rohan/securevault-backend/vault"
)

func CreateLink(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var body struct {
		FileID    string `json:"file_id"`
		TTLHours  int    `json:"ttl_hours"`
		MaxAccess *int   `json:"max_access"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	fileID, err := uuid.Parse(body.FileID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file id"})
		return
	}

	ttl := time.Duration(body.TTLHours) * time.Hour
	link, err := Engine.CreateLink(user, fileID, ttl, body.MaxAccess, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"link": link})
}

// ListLinks returns the caller's links: ones they created or ones on
// files they own.
func ListLinks(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var links []models.ShareableLink
	err := initializers.DB.
		Preload("File").
		Joins("JOIN files ON files.id = shareable_links.file_id").
		Where("files.owner_id = ? OR shareable_links.created_by_id = ?", user.ID, user.ID).
		Find(&links).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch links"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

// AccessLink is the public entry point: whoever presents a valid slug
// gets the file, no session required.
func AccessLink(c *gin.Context) {
	op := vault.OpDownload
	if c.Query("op") == string(vault.OpView) {
		op = vault.OpView
	}

	actor, _ := middleware.CurrentUser(c)
	file, plaintext, err := Engine.AccessViaLink(c.Request.Context(), actor, c.Param("slug"), op, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	if op == vault.OpDownload {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	}
	c.Data(http.StatusOK, file.ContentType, plaintext)
}
