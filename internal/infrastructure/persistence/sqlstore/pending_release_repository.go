// Package sqlstore keeps the pending-release ledger in a relational database through GORM.
package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/pkg/errors"
)

// Open connects to the database selected by cfg and migrates the ledger table.
func Open(cfg config.PendingConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dsn := os.ExpandEnv(cfg.DSN)
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		} else if !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
				return nil, errors.ErrInvalidConfiguration("pending.dsn", err.Error()).WithCause(err)
			}
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.ErrMissingConfiguration("pending.dsn")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, errors.ErrInvalidConfiguration("pending.driver", "unsupported driver "+cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, errors.ErrTransportFailure(cfg.Driver, err)
	}
	if err := db.AutoMigrate(&models.PendingRelease{}); err != nil {
		return nil, errors.ErrTransportFailure(cfg.Driver, err)
	}
	return db, nil
}

// PendingReleaseRepository is a GORM-backed implementation of the pending-release ledger.
type PendingReleaseRepository struct {
	db *gorm.DB
}

// NewPendingReleaseRepository creates a new PendingReleaseRepository.
func NewPendingReleaseRepository(db *gorm.DB) *PendingReleaseRepository {
	return &PendingReleaseRepository{db: db}
}

// Record stores pending, replacing an entry with the same token id.
func (r *PendingReleaseRepository) Record(ctx context.Context, pending *models.PendingRelease) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(pending).Error
	if err != nil {
		return errors.ErrTransportFailure("pending_releases", err)
	}
	return nil
}

// Remove deletes the entry for tokenID. Removing an unknown id is not an error.
func (r *PendingReleaseRepository) Remove(ctx context.Context, tokenID string) error {
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).Delete(&models.PendingRelease{}).Error
	if err != nil {
		return errors.ErrTransportFailure("pending_releases", err)
	}
	return nil
}

// List returns every pending entry, oldest first.
func (r *PendingReleaseRepository) List(ctx context.Context) ([]*models.PendingRelease, error) {
	var pending []*models.PendingRelease
	if err := r.db.WithContext(ctx).Order("consumed_at asc").Find(&pending).Error; err != nil {
		return nil, errors.ErrTransportFailure("pending_releases", err)
	}
	return pending, nil
}
