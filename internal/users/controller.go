package users

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ponloe/blog-core/internal/database"
)

// PasswordHasher produces the stored hash for a new account.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

type SignupDTO struct {
	FullName string `json:"full_name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required"`
	Gender   string `json:"gender" binding:"max=10"`
	Phone    string `json:"phone" binding:"max=15"`
}

type UserResponse struct {
	ID        uint      `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Gender    string    `json:"gender"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

func ToResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Gender:    u.Gender,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	}
}

type Handler struct {
	hasher PasswordHasher
}

func NewHandler(hasher PasswordHasher) *Handler {
	return &Handler{hasher: hasher}
}

func (h *Handler) Signup(c *gin.Context) {
	var body SignupDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashed, err := h.hasher.Hash(body.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at most 72 bytes"})
		return
	}
	if err != nil {
		log.Printf("signup: hash password: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	user := User{
		FullName:     body.FullName,
		Email:        body.Email,
		Gender:       body.Gender,
		Phone:        body.Phone,
		PasswordHash: hashed,
	}

	if err := NewRepository(database.Tx(c)).Create(&user); err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
		case errors.Is(err, ErrNameTaken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Full name already registered"})
		case errors.Is(err, ErrConflict):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User already registered"})
		default:
			log.Printf("signup: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		}
		return
	}

	if err := database.Commit(c); err != nil {
		log.Printf("signup: commit: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	log.Printf("signup: created user id=%d", user.ID)
	c.JSON(http.StatusCreated, gin.H{"msg": "User created successfully", "user_id": user.ID})
}
