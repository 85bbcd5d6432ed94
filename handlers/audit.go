package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rohan/securevault-backend/auth/middleware"
	"github.com/rohan/securevault-backend/initializers"
	"github.com/rohan/securevault-backend/models"
)

// ListAuditLogs exposes the audit trail to admins, newest first.
func ListAuditLogs(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	if !user.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 100
	}

	var logs []models.AuditLog
	if err := initializers.DB.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
