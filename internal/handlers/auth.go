package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"navkeeper/internal/auth"
	"navkeeper/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid register body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Errorf("hash password failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	if _, err := h.users.CreateUser(c.Request.Context(), req.Username, hash); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username already exists"})
			return
		}
		h.log.Errorf("create user failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "registered"})
}

// Token implements the OAuth2 password flow the frontend uses: form-encoded
// credentials in, bearer token out.
func (h *Handler) Token(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), username)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		h.log.Errorf("get user failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	if err != nil || !auth.VerifyPassword(user.PasswordHash, password) {
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect username or password"})
		return
	}

	token, err := h.auth.Sign(user.ID, user.Username)
	if err != nil {
		h.log.Errorf("sign token failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}
