package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"         // sqlserver driver
	_ "github.com/microsoft/go-mssqldb/azuread" // azuresql driver for service principals
	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/logging"
)

// openDB opens and pings a SQL Server connection for the configured auth method.
func openDB(ctx context.Context, cfg *Config, logger *zap.Logger) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	connStr := cfg.connString()
	logger.Debug("Connecting to SQL Server",
		zap.String("auth_method", string(cfg.AuthMethod)),
		zap.String("conn", logging.SanitizeConnectionString(connStr)))

	db, err := sql.Open(cfg.driverName(), connStr)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", cfg.AuthMethod, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	return db, nil
}
