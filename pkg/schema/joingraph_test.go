package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/sqlgate/pkg/models"
)

func TestJoinGraph_Connected(t *testing.T) {
	g := musicCatalog(t).Graph()

	tests := []struct {
		name   string
		tables []string
		want   bool
	}{
		{"empty", nil, true},
		{"singleton", []string{"tracks"}, true},
		{"direct edge", []string{"albums", "artists"}, true},
		{"chain", []string{"tracks", "albums", "artists"}, true},
		{"duplicates", []string{"albums", "ALBUMS", "artists"}, true},
		{"two clusters", []string{"albums", "artists", "customers", "invoices"}, false},
		{"path only through excluded table", []string{"tracks", "artists"}, false},
		{"no edge", []string{"artists", "customers"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Connected(tt.tables))
		})
	}
}

func TestJoinGraph_ParallelEdgesCollapse(t *testing.T) {
	c, err := New(
		[]models.Table{
			table("airports", "airport_id"),
			table("flights", "flight_id", "origin_id", "destination_id"),
		},
		[]models.ForeignKey{
			fk("flights", "origin_id", "airports", "airport_id"),
			fk("flights", "destination_id", "airports", "airport_id"),
		},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"airports"}, c.Graph().Neighbors("flights"))
	assert.Equal(t, []string{"flights"}, c.Graph().Neighbors("airports"))
	assert.True(t, c.Graph().Connected([]string{"flights", "airports"}))
}
