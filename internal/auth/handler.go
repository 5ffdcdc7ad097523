package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ponloe/blog-core/internal/database"
	"github.com/Ponloe/blog-core/internal/users"
)

const accessTokenCookie = "access_token"

type loginDTO struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type Handler struct {
	hasher *Hasher
	tokens *TokenManager
}

func NewHandler(hasher *Hasher, tokens *TokenManager) *Handler {
	return &Handler{hasher: hasher, tokens: tokens}
}

func (h *Handler) Login(c *gin.Context) {
	var dto loginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := users.NewRepository(database.Tx(c)).FindByEmail(dto.Email)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		log.Printf("login: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if u == nil || !h.hasher.Verify(dto.Password, u.PasswordHash) {
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect email or password"})
		return
	}

	tok, err := h.tokens.IssueDefault(u.ID)
	if err != nil {
		log.Printf("login: sign token for user %d: %v", u.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": tok,
		"token_type":   "bearer",
	})
}

// Logout only clears the cookie; issued tokens stay valid until they expire.
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(accessTokenCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) Me(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, users.ToResponse(u))
}
