package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/rohan/securevault-backend/auth/middleware"
	"github.com/rohan/securevault-backend/handlers"
)

func RegisterFileRoutes(r *gin.Engine) {
	fileGroup := r.Group("/api/files")
	fileGroup.Use(middleware.AuthRequired())

	fileGroup.POST("/upload", handlers.UploadFile)
	fileGroup.POST("/chunks", handlers.UploadChunk)
	fileGroup.POST("/chunks/finalize", handlers.FinalizeUpload)
	fileGroup.DELETE("/chunks/:uploadId", handlers.AbortUpload)
	fileGroup.GET("/", handlers.ListFiles)
	fileGroup.GET("/:id/download", handlers.DownloadFile)
	fileGroup.GET("/:id/preview", handlers.PreviewFile)
	fileGroup.PUT("/:id/rename", handlers.RenameFile)
	fileGroup.DELETE("/:id", handlers.DeleteFile)
}
