package posts

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ponloe/blog-core/internal/auth"
	"github.com/Ponloe/blog-core/internal/database"
)

// UnknownAuthor is reported for posts whose owner row is gone.
const UnknownAuthor = "Unknown"

var ErrNotFound = errors.New("post not found")

type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithClock returns a copy of r that stamps CreatedAt/UpdatedAt with now.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	return &Repository{db: r.db, now: now}
}

func (r *Repository) session() *gorm.DB {
	if r.now == nil {
		return r.db
	}
	return r.db.Session(&gorm.Session{NowFunc: r.now})
}

func (r *Repository) Create(ownerID uint, title, content, imageURL string) (*Post, error) {
	p := &Post{
		Title:    title,
		Content:  content,
		ImageURL: imageURL,
		UserID:   ownerID,
	}
	if err := r.session().Omit(clause.Associations).Create(p).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

func (r *Repository) Get(id uint) (*Post, error) {
	var p Post
	if err := r.db.First(&p, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return &p, nil
}

// List returns every post in insertion order.
func (r *Repository) List() ([]Post, error) {
	var list []Post
	if err := r.db.Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return list, nil
}

func (r *Repository) ListByOwner(ownerID uint) ([]Post, error) {
	var list []Post
	if err := r.db.Where("user_id = ?", ownerID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list posts of user %d: %w", ownerID, err)
	}
	return list, nil
}

func (r *Repository) withAuthors() *gorm.DB {
	return r.db.Table("posts").
		Select("posts.id, posts.title, COALESCE(users.full_name, ?) AS author, posts.created_at, posts.updated_at, posts.content, posts.image_url, posts.user_id", UnknownAuthor).
		Joins("LEFT JOIN users ON users.id = posts.user_id").
		Order("posts.id ASC")
}

func (r *Repository) ListWithAuthors() ([]PostWithAuthor, error) {
	list := []PostWithAuthor{}
	if err := r.withAuthors().Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list posts with authors: %w", err)
	}
	return list, nil
}

func (r *Repository) ListWithAuthorsByOwner(ownerID uint) ([]PostWithAuthor, error) {
	list := []PostWithAuthor{}
	if err := r.withAuthors().Where("posts.user_id = ?", ownerID).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list posts with authors of user %d: %w", ownerID, err)
	}
	return list, nil
}

func (r *Repository) GetWithAuthor(id uint) (*PostWithAuthor, error) {
	var list []PostWithAuthor
	if err := r.withAuthors().Where("posts.id = ?", id).Limit(1).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("get post %d with author: %w", id, err)
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

// Update replaces title and content, and the image when imageURL is non-empty.
// UpdatedAt is refreshed even when nothing else changed.
func (r *Repository) Update(id, requesterID uint, title, content, imageURL string) (*Post, error) {
	p, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckOwner(requesterID, p.UserID); err != nil {
		return nil, err
	}

	p.Title = title
	p.Content = content
	if imageURL != "" {
		p.ImageURL = imageURL
	}
	if err := r.session().Omit(clause.Associations).Save(p).Error; err != nil {
		return nil, fmt.Errorf("update post %d: %w", id, err)
	}
	return p, nil
}

func (r *Repository) Delete(id, requesterID uint) error {
	p, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := auth.CheckOwner(requesterID, p.UserID); err != nil {
		return err
	}
	if err := r.db.Delete(&Post{}, p.ID).Error; err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}
	return nil
}
