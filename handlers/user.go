package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fundkit/savings-api/middleware"
	"github.com/fundkit/savings-api/models"
	"github.com/fundkit/savings-api/utils"
)

type UserHandler struct {
	DB *sql.DB
}

// GetProfile returns the authenticated user's account.
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user models.User
	err := h.DB.QueryRow(`
		SELECT id, email, name, totp_enabled, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.Email, &user.Name, &user.TOTPEnabled, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// SetupTOTP generates a new 2FA secret and returns the provisioning URL.
// The secret only becomes active once verified.
func (h *UserHandler) SetupTOTP(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var email string
	if err := h.DB.QueryRow("SELECT email FROM users WHERE id = $1", userID).Scan(&email); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	secret, url, err := utils.GenerateTOTPSecret(email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate 2FA secret"})
		return
	}

	encrypted, err := utils.Encrypt([]byte(secret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store 2FA secret"})
		return
	}

	_, err = h.DB.Exec(`
		UPDATE users SET totp_secret = $1, updated_at = $2 WHERE id = $3
	`, encrypted, time.Now(), userID)

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store 2FA secret"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"secret": secret, "url": url})
}

// VerifyTOTP activates 2FA after the user proves possession of the secret.
func (h *UserHandler) VerifyTOTP(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req models.VerifyTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var encrypted sql.NullString
	if err := h.DB.QueryRow("SELECT totp_secret FROM users WHERE id = $1", userID).Scan(&encrypted); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !encrypted.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "2FA setup not started"})
		return
	}

	secret, err := utils.Decrypt(encrypted.String)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read 2FA secret"})
		return
	}

	valid, err := utils.VerifyTOTP(string(secret), req.Code)
	if err != nil || !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 2FA code"})
		return
	}

	_, err = h.DB.Exec(`
		UPDATE users SET totp_enabled = TRUE, updated_at = $1 WHERE id = $2
	`, time.Now(), userID)

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enable 2FA"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "2FA enabled"})
}

// DisableTOTP turns 2FA off after a final code check.
func (h *UserHandler) DisableTOTP(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req models.VerifyTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var encrypted sql.NullString
	if err := h.DB.QueryRow("SELECT totp_secret FROM users WHERE id = $1", userID).Scan(&encrypted); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if encrypted.Valid {
		secret, err := utils.Decrypt(encrypted.String)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read 2FA secret"})
			return
		}
		valid, err := utils.VerifyTOTP(string(secret), req.Code)
		if err != nil || !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 2FA code"})
			return
		}
	}

	_, err := h.DB.Exec(`
		UPDATE users SET totp_enabled = FALSE, totp_secret = NULL, updated_at = $1 WHERE id = $2
	`, time.Now(), userID)

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disable 2FA"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "2FA disabled"})
}
