package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rohan/securevault-backend/auth"
	"github.com/rohan/securevault-backend/initializers"
	"github.com/rohan/securevault-backend/models"
)

const userContextKey = "currentUser"

func userFromBearer(c *gin.Context) *models.User {
	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil
	}

	userID, err := auth.ValidateToken(parts[1])
	if err != nil {
		return nil
	}
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return nil
	}

	var user models.User
	if err := initializers.DB.First(&user, "id = ?", parsed).Error; err != nil {
		return nil
	}
	return &user
}

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := userFromBearer(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// AuthOptional attaches the user when a valid token is present and
// continues unauthenticated otherwise. Used on link-access routes where
// the bearer slug, not the session, grants access.
func AuthOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := userFromBearer(c); user != nil {
			c.Set(userContextKey, user)
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user attached by AuthRequired
// or AuthOptional.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
