package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ponloe/blog-core/internal/config"
)

// Connect opens the database described by cfg, sizes the pool and pings it.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		log.Printf("connecting to sqlite database path=%s", cfg.SQLitePath)
		dialector = sqlite.Open(SQLiteDSN(cfg.SQLitePath))
	default:
		log.Printf("connecting to database host=%s db=%s user=%s port=%s sslmode=%s",
			cfg.Host, cfg.Name, cfg.User, cfg.Port, cfg.SSLMode)
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := Open(dialector, logger.Info)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db.DB(): %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// sqlite allows a single writer; one connection keeps per-request
		// transactions from tripping over "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	log.Println("database connection established")
	return db, nil
}

// Open wraps gorm.Open with the service's logger settings.
func Open(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	gormLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	return db, nil
}

// SQLiteDSN turns a file path into a DSN with foreign keys enforced.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=3000"
}

func Migrate(db *gorm.DB, models ...interface{}) error {
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	log.Println("running AutoMigrate")
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Println("migrations complete")
	return nil
}
