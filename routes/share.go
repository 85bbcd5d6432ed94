package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/rohan/securevault-backend/auth/middleware"
	"github.com/rohan/securevault-backend/handlers"
)

func RegisterShareRoutes(r *gin.Engine) {
	shareGroup := r.Group("/api/shares")
	shareGroup.Use(middleware.AuthRequired())
	shareGroup.POST("/", handlers.CreateShare)
	shareGroup.GET("/", handlers.ListShares)
	shareGroup.DELETE("/:id", handlers.DeleteShare)

	linkGroup := r.Group("/api/links")
	// Slug access is public: the slug itself is the credential. A
	// session is picked up when present so the audit trail can name
	// the caller.
	linkGroup.GET("/:slug/access", middleware.AuthOptional(), handlers.AccessLink)

	linkGroup.Use(middleware.AuthRequired())
	linkGroup.POST("/", handlers.CreateLink)
	linkGroup.GET("/", handlers.ListLinks)

	auditGroup := r.Group("/api/audit")
	auditGroup.Use(middleware.AuthRequired())
	auditGroup.GET("/", handlers.ListAuditLogs)
}
