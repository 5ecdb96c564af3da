package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/apperrors"
)

// DatasourceAdapterInfo describes a registered adapter.
type DatasourceAdapterInfo struct {
	Type        string `json:"type"`         // "postgres", "mssql", "mysql", "sqlite"
	DisplayName string `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string `json:"description"`
}

// SchemaDiscovererFactory creates a schema discoverer from a generic config map.
type SchemaDiscovererFactory func(ctx context.Context, config map[string]any, logger *zap.Logger) (SchemaDiscoverer, error)

// QueryExecutorFactory creates a query executor from a generic config map.
type QueryExecutorFactory func(ctx context.Context, config map[string]any, logger *zap.Logger) (QueryExecutor, error)

// DatasourceAdapterRegistration contains info + factories for creating adapters.
type DatasourceAdapterRegistration struct {
	Info                    DatasourceAdapterInfo
	SchemaDiscovererFactory SchemaDiscovererFactory
	QueryExecutorFactory    QueryExecutorFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DatasourceAdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}

func lookup(dsType string) (DatasourceAdapterRegistration, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg, ok := registry[dsType]
	if !ok {
		return DatasourceAdapterRegistration{}, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedDatasource, dsType)
	}
	return reg, nil
}

// NewSchemaDiscoverer creates a schema discoverer for the given datasource type.
func NewSchemaDiscoverer(ctx context.Context, dsType string, config map[string]any, logger *zap.Logger) (SchemaDiscoverer, error) {
	reg, err := lookup(dsType)
	if err != nil {
		return nil, err
	}
	if reg.SchemaDiscovererFactory == nil {
		return nil, fmt.Errorf("%w: %q has no schema discovery", apperrors.ErrUnsupportedDatasource, dsType)
	}
	return reg.SchemaDiscovererFactory(ctx, config, loggerOrNop(logger))
}

// NewQueryExecutor creates a query executor for the given datasource type.
func NewQueryExecutor(ctx context.Context, dsType string, config map[string]any, logger *zap.Logger) (QueryExecutor, error) {
	reg, err := lookup(dsType)
	if err != nil {
		return nil, err
	}
	if reg.QueryExecutorFactory == nil {
		return nil, fmt.Errorf("%w: %q has no query execution", apperrors.ErrUnsupportedDatasource, dsType)
	}
	return reg.QueryExecutorFactory(ctx, config, loggerOrNop(logger))
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
