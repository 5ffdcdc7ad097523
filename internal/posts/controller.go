package posts

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ponloe/blog-core/internal/auth"
	"github.com/Ponloe/blog-core/internal/database"
)

type postForm struct {
	Title   string `form:"title" binding:"required,max=255"`
	Content string `form:"content" binding:"required"`
}

type Handler struct {
	uploads *Uploads
	now     func() time.Time
}

// NewHandler builds the post handlers. A nil now leaves timestamps to gorm,
// which uses time.Now.
func NewHandler(uploads *Uploads, now func() time.Time) *Handler {
	return &Handler{uploads: uploads, now: now}
}

func (h *Handler) repo(c *gin.Context) *Repository {
	r := NewRepository(database.Tx(c))
	if h.now != nil {
		r = r.WithClock(h.now)
	}
	return r
}

func (h *Handler) Create(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var form postForm
	if err := c.ShouldBind(&form); err != nil {
		badForm(c, err)
		return
	}

	imageURL, ok := h.saveImage(c)
	if !ok {
		return
	}

	log.Printf("creating blog for user %d: %s", u.ID, form.Title)
	p, err := h.repo(c).Create(u.ID, form.Title, form.Content, imageURL)
	if err != nil {
		h.discardImage(imageURL)
		log.Printf("create blog: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create blog"})
		return
	}
	if err := database.Commit(c); err != nil {
		h.discardImage(imageURL)
		log.Printf("create blog: commit: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create blog"})
		return
	}

	log.Printf("blog created with id %d", p.ID)
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c *gin.Context) {
	list, err := h.repo(c).ListWithAuthors()
	if err != nil {
		log.Printf("list blogs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list blogs"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p, err := h.repo(c).GetWithAuthor(id)
	if err != nil {
		h.fail(c, "get blog", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Mine(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	list, err := h.repo(c).ListWithAuthorsByOwner(u.ID)
	if err != nil {
		log.Printf("list blogs of user %d: %v", u.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list blogs"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Update(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var form postForm
	if err := c.ShouldBind(&form); err != nil {
		badForm(c, err)
		return
	}

	repo := h.repo(c)
	// Ownership is settled before anything touches the upload dir.
	existing, err := repo.Get(id)
	if err != nil {
		h.fail(c, "update blog", err)
		return
	}
	if err := auth.CheckOwner(u.ID, existing.UserID); err != nil {
		h.fail(c, "update blog", err)
		return
	}

	imageURL, ok := h.saveImage(c)
	if !ok {
		return
	}

	if _, err := repo.Update(id, u.ID, form.Title, form.Content, imageURL); err != nil {
		h.discardImage(imageURL)
		h.fail(c, "update blog", err)
		return
	}
	if err := database.Commit(c); err != nil {
		h.discardImage(imageURL)
		h.fail(c, "update blog: commit", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Blog updated successfully"})
}

func (h *Handler) Delete(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.repo(c).Delete(id, u.ID); err != nil {
		h.fail(c, "delete blog", err)
		return
	}
	if err := database.Commit(c); err != nil {
		h.fail(c, "delete blog: commit", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Blog deleted successfully"})
}

// saveImage stores the optional "image" file. It writes the error response
// itself and reports false when the request must stop.
func (h *Handler) saveImage(c *gin.Context) (string, bool) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", true
	}
	if err != nil {
		badForm(c, err)
		return "", false
	}

	url, err := h.uploads.Save(fh)
	if err != nil {
		if errors.Is(err, ErrInvalidFilename) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return "", false
		}
		log.Printf("save image: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
		return "", false
	}
	return url, true
}

// discardImage removes a file saved for a request whose row never landed.
func (h *Handler) discardImage(url string) {
	if url == "" {
		return
	}
	if err := h.uploads.Remove(url); err != nil {
		log.Printf("discard image %s: %v", url, err)
	}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Blog not found"})
	case errors.Is(err, auth.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to modify this blog"})
	default:
		log.Printf("%s: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badForm(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
