package database

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kindnest/kindnest-api/pkg/models"
)

// Options selects the backing database. A non-empty URL opens Postgres,
// otherwise Path names a SQLite file.
type Options struct {
	URL      string
	Path     string
	LogLevel logger.LogLevel
}

// InitDB opens the database and migrates the schema.
func InitDB(opts Options) (*gorm.DB, error) {
	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
	}

	var (
		db  *gorm.DB
		err error
	)
	if opts.URL != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  opts.URL,
			PreferSimpleProtocol: true,
		}), cfg)
	} else {
		path := opts.Path
		if path == "" {
			path = "kindnest.db"
		}
		db, err = gorm.Open(sqlite.Open(path), cfg)
		if err == nil {
			// SQLite allows one writer; serialize through a single connection.
			if sqlDB, derr := db.DB(); derr == nil {
				sqlDB.SetMaxOpenConns(1)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Info("database ready", "driver", db.Dialector.Name())
	return db, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Need{},
		&models.Donation{},
		&models.Schedule{},
		&models.Volunteer{},
		&models.InventoryItem{},
	)
}
