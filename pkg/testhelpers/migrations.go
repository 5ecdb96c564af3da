package testhelpers

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// RunFixtureMigrations applies the embedded fixture migrations to a PostgreSQL database.
// It is idempotent; only pending migrations are executed.
func RunFixtureMigrations(db *sql.DB, logger *zap.Logger) error {
	source, err := iofs.New(fixturesFS, "fixtures")
	if err != nil {
		return fmt.Errorf("failed to open fixture source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Failed to close migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Failed to close migration database", zap.Error(dbErr))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No fixture migrations to apply (database up-to-date)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run fixture migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("Applied fixture migrations", zap.Uint("version", version))
	return nil
}
