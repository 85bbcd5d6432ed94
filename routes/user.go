package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/rohan/securevault-backend/auth/middleware"
	"github.com/rohan/securevault-backend/handlers"
)

func RegisterUserRoutes(r *gin.Engine) {
	userGroup := r.Group("/api/users")
	userGroup.POST("/register", handlers.Register)
	userGroup.POST("/login", handlers.Login)

	userGroup.Use(middleware.AuthRequired())
	userGroup.POST("/mfa/enable", handlers.EnableMFA)
	userGroup.GET("/mfa/qr", handlers.MFAQR)
}
