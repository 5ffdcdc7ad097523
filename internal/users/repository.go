package users

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Ponloe/blog-core/internal/database"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrConflict   = errors.New("user already exists")
	ErrEmailTaken = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrNameTaken  = fmt.Errorf("%w: full name already registered", ErrConflict)
)

// Repository is the credential store. The password hash goes in through
// Create and is only read back by the login flow.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// NormalizeEmail lower-cases and trims an address the same way on write and
// lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts u. The email pre-check gives the common case a precise error;
// the unique indexes settle concurrent signups.
func (r *Repository) Create(u *User) error {
	u.Email = NormalizeEmail(u.Email)
	u.FullName = strings.TrimSpace(u.FullName)

	var count int64
	if err := r.db.Model(&User{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}

	err := r.db.Create(u).Error
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err, "email"):
		return ErrEmailTaken
	case database.IsUniqueViolation(err, "full_name"):
		return ErrNameTaken
	case database.IsUniqueViolation(err, ""):
		return ErrConflict
	default:
		return fmt.Errorf("create user: %w", err)
	}
}

func (r *Repository) FindByEmail(email string) (*User, error) {
	var u User
	if err := r.db.Where("email = ?", NormalizeEmail(email)).First(&u).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &u, nil
}

func (r *Repository) FindByID(id uint) (*User, error) {
	var u User
	if err := r.db.First(&u, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return &u, nil
}
