package posts

import (
	"time"

	"github.com/Ponloe/blog-core/internal/users"
)

type Post struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	ImageURL  string     `gorm:"size:255" json:"image_url"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Owner     users.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PostWithAuthor is a post joined with its owner's full name.
type PostWithAuthor struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url"`
	UserID    uint      `json:"user_id"`
}
