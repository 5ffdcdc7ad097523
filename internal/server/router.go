package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Ponloe/blog-core/internal/auth"
	"github.com/Ponloe/blog-core/internal/database"
	"github.com/Ponloe/blog-core/internal/posts"
	"github.com/Ponloe/blog-core/internal/users"
)

const requestIDHeader = "X-Request-ID"

type Deps struct {
	DB          *gorm.DB
	Hasher      *auth.Hasher
	Tokens      *auth.TokenManager
	Uploads     *posts.Uploads
	CORSOrigins []string
	MaxUploadMB int64
	// Now overrides the clock used for post timestamps.
	Now func() time.Time
}

// NewRouter wires every route onto a gin engine.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(requestID(), gin.Logger(), gin.Recovery())
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if d.MaxUploadMB > 0 {
		r.MaxMultipartMemory = d.MaxUploadMB << 20
		r.Use(bodyLimit(d.MaxUploadMB << 20))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.Static(posts.URLPrefix, d.Uploads.Dir())

	authHandler := auth.NewHandler(d.Hasher, d.Tokens)
	userHandler := users.NewHandler(d.Hasher)
	postHandler := posts.NewHandler(d.Uploads, d.Now)

	r.POST("/logout", authHandler.Logout)

	tx := r.Group("/", database.UnitOfWork(d.DB))
	tx.POST("/signup", userHandler.Signup)
	tx.POST("/login", authHandler.Login)
	tx.GET("/blogs", postHandler.List)
	tx.GET("/blogs/:id", postHandler.Get)

	protected := tx.Group("/", auth.RequireAuth(d.Tokens))
	protected.GET("/me", authHandler.Me)
	protected.GET("/myblogs", postHandler.Mine)
	protected.POST("/blogs", postHandler.Create)
	protected.PUT("/blogs/:id", postHandler.Update)
	protected.DELETE("/blogs/:id", postHandler.Delete)

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// bodyLimit caps request bodies at n bytes. Declared lengths over the cap are
// refused up front; the reader catches the rest.
func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
