package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Ponloe/blog-core/internal/auth"
	"github.com/Ponloe/blog-core/internal/config"
	"github.com/Ponloe/blog-core/internal/database"
	"github.com/Ponloe/blog-core/internal/posts"
	"github.com/Ponloe/blog-core/internal/server"
	"github.com/Ponloe/blog-core/internal/users"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded, continuing with environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// run migrations to create tables
	if err := database.Migrate(db, &users.User{}, &posts.Post{}); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: cfg.JWTSecret,
		TTL:    cfg.TokenTTL,
		Issuer: cfg.JWTIssuer,
	})
	if err != nil {
		log.Fatalf("token manager: %v", err)
	}

	uploads, err := posts.NewUploads(cfg.UploadDir)
	if err != nil {
		log.Fatalf("uploads: %v", err)
	}

	r := server.NewRouter(server.Deps{
		DB:          db,
		Hasher:      auth.NewHasher(cfg.BcryptCost),
		Tokens:      tokens,
		Uploads:     uploads,
		CORSOrigins: cfg.CORSOrigins,
		MaxUploadMB: cfg.MaxUploadMB,
	})

	log.Printf("listening on %s", cfg.Addr())
	if err := r.Run(cfg.Addr()); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
