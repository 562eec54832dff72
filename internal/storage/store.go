// Package storage persists detection runs and their flares with gorm on SQLite or PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/flarewatch/internal/flare"
	"github.com/chrissnell/flarewatch/pkg/config"
)

var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit caps ListRuns when no positive limit is given
const DefaultListLimit = 50

// Store holds the connection to the run database
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// Open connects to the database named by cfg
func Open(cfg config.StorageData, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	dbLogger := logger.New(
		zap.NewStdLog(log.Desugar()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	log.Infof("connecting to %s run database...", cfg.Driver)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	return &Store{db: db, logger: log}, nil
}

// Migrate creates or updates the runs and flares tables
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Run{}, &Flare{}); err != nil {
		return fmt.Errorf("failed to migrate run database: %w", err)
	}
	return nil
}

// SaveRun stores run and its flares in a single transaction. An empty run ID is
// replaced with a new UUID, and FlareCount and CreatedAt are filled in.
func (s *Store) SaveRun(ctx context.Context, run *Run, flares []flare.FlareRecord) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.FlareCount = len(flares)

	rows := make([]Flare, len(flares))
	for i, r := range flares {
		rows[i] = newFlare(run.ID, i, r)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(run).Error; err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to insert flares: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debugf("stored run %s with %d flares", run.ID, len(rows))
	return nil
}

// GetRun returns the run with the given ID
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var runs []Run
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetFlares returns the flares of a run in detection order
func (s *Store) GetFlares(ctx context.Context, runID string) ([]flare.FlareRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	var rows []Flare
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("sequence").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query flares for run %s: %w", runID, err)
	}

	records := make([]flare.FlareRecord, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return records, nil
}

// DeleteRun removes a run and its flares
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&Flare{}).Error; err != nil {
			return fmt.Errorf("failed to delete flares for run %s: %w", id, err)
		}
		result := tx.Where("id = ?", id).Delete(&Run{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete run %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil
	})
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
