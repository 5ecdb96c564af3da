//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/sqlgate/pkg/testhelpers"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()

	testDB := testhelpers.GetTestDB(t)
	cfg, err := FromMap(testDB.DatasourceConfig())
	require.NoError(t, err)
	return cfg
}

func TestSchemaDiscoverer_Integration(t *testing.T) {
	cfg := newTestConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	discoverer, err := NewSchemaDiscoverer(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { discoverer.Close() })

	tables, err := discoverer.DiscoverTables(ctx)
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, tbl := range tables {
		names[tbl.TableName] = true
	}
	for _, want := range []string{"artists", "albums", "tracks", "invoice_items"} {
		assert.True(t, names[want], "expected table %s", want)
	}

	columns, err := discoverer.DiscoverColumns(ctx, "public", "albums")
	require.NoError(t, err)
	require.Len(t, columns, 3)
	assert.Equal(t, "album_id", columns[0].ColumnName)
	assert.True(t, columns[0].IsPrimaryKey)
	assert.False(t, columns[1].IsPrimaryKey)

	fks, err := discoverer.DiscoverForeignKeys(ctx)
	require.NoError(t, err)

	found := false
	for _, fk := range fks {
		if fk.SourceTable == "albums" && fk.SourceColumn == "artist_id" {
			found = true
			assert.Equal(t, "artists", fk.TargetTable)
			assert.Equal(t, "artist_id", fk.TargetColumn)
		}
	}
	assert.True(t, found, "expected albums.artist_id -> artists.artist_id")
}

func TestQueryExecutor_Integration(t *testing.T) {
	cfg := newTestConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	executor, err := NewQueryExecutor(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { executor.Close() })

	result, err := executor.Query(ctx, "SELECT album_id, title FROM albums ORDER BY album_id", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"album_id", "title"}, result.ColumnNames())
	assert.Equal(t, 2, result.RowCount)
	assert.True(t, result.Truncated)
	assert.Equal(t, "For Those About To Rock We Salute You", result.Rows[0]["title"])

	result, err = executor.Query(ctx, "SELECT SUM(total) AS revenue FROM invoices", 10)
	require.NoError(t, err)
	assert.False(t, result.Truncated)
	assert.InDelta(t, 6.93, result.Rows[0]["revenue"], 0.001)
}

func TestQueryExecutor_UndefinedTable(t *testing.T) {
	cfg := newTestConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	executor, err := NewQueryExecutor(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { executor.Close() })

	_, err = executor.Query(ctx, "SELECT * FROM nope", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
