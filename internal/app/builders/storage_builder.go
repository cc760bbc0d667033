package builders

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aatumaykin/cmsjobs/internal/audit"
	"github.com/aatumaykin/cmsjobs/internal/config"
	"github.com/aatumaykin/cmsjobs/internal/content"
	"github.com/aatumaykin/cmsjobs/internal/db"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
	"github.com/aatumaykin/cmsjobs/internal/publicaccess"
	"github.com/aatumaykin/cmsjobs/internal/serverregistration"
)

// Storage groups the database and the stores built on it.
type Storage struct {
	DB            *sql.DB
	Conn          *db.RetryDB
	Content       *content.Service
	PublicAccess  *publicaccess.Service
	Audit         *audit.Store
	Registrations *serverregistration.Store
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.Conn.Close()
}

type StorageBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewStorageBuilder(cfg *config.Config, log *logger.Logger) *StorageBuilder {
	return &StorageBuilder{
		config: cfg,
		logger: log,
	}
}

// Build opens and migrates the database. Change notifications raised by
// the content and public access services go to events.
func (b *StorageBuilder) Build(ctx context.Context, events notifications.Publisher) (*Storage, error) {
	path := b.config.Database.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := db.Open(path, b.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(ctx, conn, b.logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	retry := b.config.Database.Retry
	rdb := db.NewRetryDB(conn, db.RetryPolicy{
		MaxAttempts:    retry.MaxAttempts,
		InitialBackoff: retry.InitialBackoff(),
		MaxBackoff:     retry.MaxBackoff(),
	}, b.logger)

	return &Storage{
		DB:            conn,
		Conn:          rdb,
		Content:       content.NewService(content.NewStore(rdb), events, b.logger),
		PublicAccess:  publicaccess.NewService(publicaccess.NewStore(rdb), events, b.logger),
		Audit:         audit.NewStore(rdb),
		Registrations: serverregistration.NewStore(rdb),
	}, nil
}
