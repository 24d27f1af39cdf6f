package models

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// MigrateTable applies the pending SQL migrations for db's dialect.
func MigrateTable(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	dialect, dir, err := migrationDialect(db)
	if err != nil {
		return err
	}
	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	opts := []goose.ProviderOption{}
	if logger != nil {
		opts = append(opts, goose.WithLogger(logger))
	}
	provider, err := goose.NewProvider(dialect, sqlDB, sub, opts...)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		for _, r := range results {
			logger.WithFields(logrus.Fields{
				"version":  r.Source.Version,
				"duration": r.Duration.String(),
			}).Info("migration applied")
		}
	}
	return nil
}

func migrationDialect(db *gorm.DB) (goose.Dialect, string, error) {
	switch name := db.Dialector.Name(); name {
	case "sqlite":
		return goose.DialectSQLite3, "migrations/sqlite", nil
	case "mysql":
		return goose.DialectMySQL, "migrations/mysql", nil
	default:
		return "", "", fmt.Errorf("no migrations for dialect %q", name)
	}
}
