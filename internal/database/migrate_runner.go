package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"chirp/internal/middleware"

	"gorm.io/gorm"
)

// MigrationStore records which migrations have been applied and with which script.
type MigrationStore interface {
	// Applied maps version to the checksum recorded when it was applied.
	Applied(ctx context.Context) (map[int]string, error)
	Apply(ctx context.Context, m Migration) error
	Rollback(ctx context.Context, m Migration) error
}

type migrationStore struct {
	db *gorm.DB
}

// MigrationLog is one applied migration.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255"`
	Checksum  string    `gorm:"size:64"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for MigrationLog.
func (MigrationLog) TableName() string {
	return "migration_logs"
}

// NewMigrationStore creates a new MigrationStore instance.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

func (s *migrationStore) Applied(ctx context.Context) (map[int]string, error) {
	var logs []MigrationLog
	if err := s.db.WithContext(ctx).Order("version ASC").Find(&logs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableError(err) {
			return map[int]string{}, nil
		}
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	out := make(map[int]string, len(logs))
	for _, l := range logs {
		out[l.Version] = l.Checksum
	}
	return out, nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

// Apply runs the up script and records the version in one transaction.
func (s *migrationStore) Apply(ctx context.Context, m Migration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.String(), err)
		}
		entry := MigrationLog{Version: m.Version, Name: m.Name, Checksum: m.Checksum()}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.String(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("Migration applied", slog.Int("version", m.Version), slog.String("name", m.Name))
	return nil
}

// Rollback runs the down script and forgets the version in one transaction.
func (s *migrationStore) Rollback(ctx context.Context, m Migration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("failed to run rollback SQL for migration %s: %w", m.String(), err)
		}
		if err := tx.Where("version = ?", m.Version).Delete(&MigrationLog{}).Error; err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", m.Version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	middleware.Logger.Info("Migration rolled back", slog.Int("version", m.Version), slog.String("name", m.Name))
	return nil
}

// RunMigrations ensures the migration log table exists and applies all pending migrations.
// It refuses to run when the log holds versions this build does not know or scripts that
// changed after they were applied.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return runMigrations(ctx, db, NewMigrationStore(db), migrations)
}

func runMigrations(ctx context.Context, db *gorm.DB, store MigrationStore, registered []Migration) error {
	if err := db.WithContext(ctx).AutoMigrate(&MigrationLog{}); err != nil {
		return fmt.Errorf("failed to ensure migration logs table: %w", err)
	}

	applied, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	if err := validateApplied(applied, registered); err != nil {
		return err
	}

	for _, m := range registered {
		if _, ok := applied[m.Version]; ok {
			middleware.Logger.Debug("Migration already applied", slog.Int("version", m.Version), slog.String("name", m.Name))
			continue
		}

		middleware.Logger.Info("Applying migration", slog.Int("version", m.Version), slog.String("name", m.Name))
		if err := store.Apply(ctx, m); err != nil {
			return err
		}
	}

	return nil
}

// validateApplied rejects unknown versions and modified scripts. Rows recorded
// without a checksum are trusted.
func validateApplied(applied map[int]string, registered []Migration) error {
	if len(applied) == 0 {
		return nil
	}
	known := make(map[int]Migration, len(registered))
	for _, m := range registered {
		known[m.Version] = m
	}

	var unknown, modified []string
	for version, checksum := range applied {
		m, ok := known[version]
		switch {
		case !ok:
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		case checksum != "" && checksum != m.Checksum():
			modified = append(modified, m.String())
		}
	}

	sort.Strings(unknown)
	sort.Strings(modified)
	switch {
	case len(unknown) > 0:
		return fmt.Errorf("migration_logs contains unknown versions not present in code: %s",
			strings.Join(unknown, ", "))
	case len(modified) > 0:
		return fmt.Errorf("migrations changed after they were applied: %s",
			strings.Join(modified, ", "))
	}
	return nil
}

// RollbackMigration reverts a specific migration by version number.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	store := NewMigrationStore(db)
	applied, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	if _, ok := applied[version]; !ok {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	middleware.Logger.Info("Rolling back migration", slog.Int("version", version), slog.String("name", m.Name))
	return store.Rollback(ctx, *m)
}
