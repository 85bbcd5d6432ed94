package handlers

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"

	"github.com/rohan/securevault-backend/auth"
	"github.com/rohan/securevault-backend/auth/middleware"
	"github.com/rohan/securevault-backend/initializers"
	"github.com/rohan/securevault-backend/models"
)

func Register(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Email:        body.Email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		MFASecret:    newMFASecret(),
	}
	if err := initializers.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Registration successful", "user": user})
}

func Login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	var user models.User
	if err := initializers.DB.First(&user, "email = ?", body.Email).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	accessToken, refreshToken, err := auth.GenerateTokens(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          user,
		"token":         accessToken,
		"refresh_token": refreshToken,
	})
}

func EnableMFA(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	if err := initializers.DB.Model(user).Update("mfa_enabled", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enable MFA"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mfa_secret":       user.MFASecret,
		"provisioning_uri": provisioningURI(user),
	})
}

// MFAQR renders the user's TOTP provisioning URI as a PNG so an
// authenticator app can enroll by scanning.
func MFAQR(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	png, err := qrcode.Encode(provisioningURI(user), qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func provisioningURI(user *models.User) string {
	return fmt.Sprintf("otpauth://totp/SecureVault:%s?secret=%s&issuer=SecureVault",
		url.QueryEscape(user.Email), user.MFASecret)
}

func newMFASecret() string {
	buf := make([]byte, 20)
	rand.Read(buf)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
}
