package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rohan/securevault-backend/auth/middleware"
	"github.com/rohan/securevault-backend/initializers"
	"github.com/rohan/securevault-backend/models"
)

func CreateShare(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var body struct {
		FileID     string `json:"file_id"`
		GranteeID  string `json:"grantee_id"`
		Permission string `json:"permission"`
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
	granteeID, err := uuid.Parse(body.GranteeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid grantee id"})
		return
	}

	share, err := Engine.Share(user, fileID, granteeID, models.SharePermission(body.Permission), c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"share": share})
}

func DeleteShare(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	shareID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid share id"})
		return
	}

	if err := Engine.Unshare(user, shareID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListShares returns shares where the user sits on either side: files
// they shared out and files shared with them.
func ListShares(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var shares []models.FileShare
	err := initializers.DB.
		Preload("File").
		Preload("Grantee").
		Joins("JOIN files ON files.id = file_shares.file_id").
		Where("files.owner_id = ? OR file_shares.grantee_id = ?", user.ID, user.ID).
		Find(&shares).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch shares"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares})
}
