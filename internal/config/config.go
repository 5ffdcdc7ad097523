package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultPort        = "8080"
	DefaultTokenTTL    = 1440 * time.Minute
	DefaultUploadDir   = "uploads"
	DefaultSQLitePath  = "blog.db"
	DefaultCORSOrigin  = "http://localhost:5173"
	DefaultMaxUploadMB = 10
	DriverPostgres     = "postgres"
	DriverSQLite       = "sqlite"
)

type DatabaseConfig struct {
	Driver     string
	URL        string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

type Config struct {
	Port        string
	GinMode     string
	Database    DatabaseConfig
	JWTSecret   []byte
	JWTIssuer   string
	TokenTTL    time.Duration
	BcryptCost  int
	UploadDir   string
	CORSOrigins []string
	MaxUploadMB int64
}

// Load reads the configuration from the environment. JWT_SECRET is the only
// required variable.
func Load() (*Config, error) {
	cfg := &Config{
		Port:      getenv("PORT", DefaultPort),
		GinMode:   os.Getenv("GIN_MODE"),
		JWTSecret: []byte(os.Getenv("JWT_SECRET")),
		JWTIssuer: os.Getenv("JWT_ISSUER"),
		UploadDir: getenv("UPLOAD_DIR", DefaultUploadDir),
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getenv("DB_DRIVER", DriverPostgres)),
			URL:        os.Getenv("DATABASE_URL"),
			Host:       os.Getenv("DB_HOST"),
			Port:       os.Getenv("DB_PORT"),
			User:       os.Getenv("DB_USER"),
			Password:   os.Getenv("DB_PASSWORD"),
			Name:       os.Getenv("DB_NAME"),
			SSLMode:    getenv("DB_SSLMODE", "disable"),
			SQLitePath: getenv("SQLITE_PATH", DefaultSQLitePath),
		},
	}

	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("JWT_SECRET must be set")
	}

	cfg.TokenTTL = DefaultTokenTTL
	if v := os.Getenv("JWT_EXPIRES_MINUTES"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m <= 0 {
			return nil, fmt.Errorf("invalid JWT_EXPIRES_MINUTES %q", v)
		}
		cfg.TokenTTL = time.Duration(m) * time.Minute
	}

	cfg.BcryptCost = bcrypt.DefaultCost
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		c, err := strconv.Atoi(v)
		if err != nil || c < bcrypt.MinCost || c > bcrypt.MaxCost {
			return nil, fmt.Errorf("invalid BCRYPT_COST %q: want %d-%d", v, bcrypt.MinCost, bcrypt.MaxCost)
		}
		cfg.BcryptCost = c
	}

	cfg.MaxUploadMB = DefaultMaxUploadMB
	if v := os.Getenv("MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_MB %q", v)
		}
		cfg.MaxUploadMB = n
	}

	cfg.CORSOrigins = splitList(getenv("CORS_ORIGINS", DefaultCORSOrigin))

	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	return cfg, nil
}

// DSN builds the postgres connection string, preferring DATABASE_URL.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s dbname=%s port=%s sslmode=%s password=%s",
		d.Host, d.User, d.Name, d.Port, d.SSLMode, d.Password)
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
