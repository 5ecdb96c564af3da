package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/sqlgate/pkg/models"
)

func table(name string, pk string, cols ...string) models.Table {
	t := models.Table{
		Name:        name,
		Columns:     map[string]struct{}{pk: {}},
		PrimaryKeys: map[string]struct{}{pk: {}},
	}
	for _, c := range cols {
		t.Columns[c] = struct{}{}
	}
	return t
}

func fk(owner, col, ref, refCol string) models.ForeignKey {
	return models.ForeignKey{OwningTable: owner, OwningColumn: col, ReferencedTable: ref, ReferencedColumn: refCol}
}

// musicCatalog is artists <- albums <- tracks, plus an unrelated customers <- invoices pair.
func musicCatalog(t *testing.T) *Catalog {
	t.Helper()

	c, err := New(
		[]models.Table{
			table("artists", "artist_id", "name"),
			table("albums", "album_id", "title", "artist_id"),
			table("tracks", "track_id", "name", "album_id", "unit_price"),
			table("customers", "customer_id", "first_name", "country"),
			table("invoices", "invoice_id", "customer_id", "total"),
		},
		[]models.ForeignKey{
			fk("albums", "artist_id", "artists", "artist_id"),
			fk("tracks", "album_id", "albums", "album_id"),
			fk("invoices", "customer_id", "customers", "customer_id"),
		},
	)
	require.NoError(t, err)
	return c
}
