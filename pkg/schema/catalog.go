package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/adapters/datasource"
	"github.com/ekaya-inc/sqlgate/pkg/apperrors"
	"github.com/ekaya-inc/sqlgate/pkg/models"
)

// Catalog is an immutable snapshot of the datasource schema: tables, their
// columns and primary keys, and foreign keys grouped by owning table.
// A Catalog is safe for concurrent readers; nothing mutates it after New returns.
type Catalog struct {
	tables      map[string]*models.Table
	foreignKeys map[string][]models.ForeignKey
	fkIndex     map[models.ForeignKey]struct{}
	graph       *JoinGraph
	fingerprint string
}

// New builds a Catalog from tables and foreign keys. Names are lower-cased.
// Returns apperrors.ErrInvalidSchema if two tables collide after lower-casing,
// or a foreign key references a table or column that is not in tables.
func New(tables []models.Table, fks []models.ForeignKey) (*Catalog, error) {
	c := &Catalog{
		tables:      make(map[string]*models.Table, len(tables)),
		foreignKeys: make(map[string][]models.ForeignKey),
		fkIndex:     make(map[models.ForeignKey]struct{}, len(fks)),
	}

	for _, t := range tables {
		name := canonical(t.Name)
		if _, dup := c.tables[name]; dup {
			return nil, fmt.Errorf("%w: duplicate table %q", apperrors.ErrInvalidSchema, name)
		}

		table := &models.Table{
			Name:        name,
			Columns:     make(map[string]struct{}, len(t.Columns)),
			PrimaryKeys: make(map[string]struct{}, len(t.PrimaryKeys)),
		}
		for col := range t.Columns {
			table.Columns[canonical(col)] = struct{}{}
		}
		for col := range t.PrimaryKeys {
			table.PrimaryKeys[canonical(col)] = struct{}{}
		}
		c.tables[name] = table
	}

	for _, fk := range fks {
		fk = models.ForeignKey{
			OwningTable:      canonical(fk.OwningTable),
			OwningColumn:     canonical(fk.OwningColumn),
			ReferencedTable:  canonical(fk.ReferencedTable),
			ReferencedColumn: canonical(fk.ReferencedColumn),
		}

		owner, ok := c.tables[fk.OwningTable]
		if !ok {
			return nil, fmt.Errorf("%w: foreign key %s owned by unknown table", apperrors.ErrInvalidSchema, fk)
		}
		if !owner.HasColumn(fk.OwningColumn) {
			return nil, fmt.Errorf("%w: foreign key %s uses unknown column", apperrors.ErrInvalidSchema, fk)
		}
		ref, ok := c.tables[fk.ReferencedTable]
		if !ok {
			return nil, fmt.Errorf("%w: foreign key %s references unknown table", apperrors.ErrInvalidSchema, fk)
		}
		if !ref.HasColumn(fk.ReferencedColumn) {
			return nil, fmt.Errorf("%w: foreign key %s references unknown column", apperrors.ErrInvalidSchema, fk)
		}

		if _, seen := c.fkIndex[fk]; seen {
			continue
		}
		c.fkIndex[fk] = struct{}{}
		c.foreignKeys[fk.OwningTable] = append(c.foreignKeys[fk.OwningTable], fk)
	}

	for owner := range c.foreignKeys {
		sortForeignKeys(c.foreignKeys[owner])
	}

	c.graph = newJoinGraph(c)
	c.fingerprint = computeFingerprint(c)
	return c, nil
}

// Load introspects the datasource and builds a Catalog.
// Introspection failures are returned unchanged in meaning; callers treat
// them as fatal at startup.
func Load(ctx context.Context, d datasource.SchemaDiscoverer, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tableMeta, err := d.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	tables := make([]models.Table, 0, len(tableMeta))
	for _, tm := range tableMeta {
		columns, err := d.DiscoverColumns(ctx, tm.SchemaName, tm.TableName)
		if err != nil {
			return nil, fmt.Errorf("discover columns for %s: %w", tm.TableName, err)
		}

		t := models.Table{
			Name:        tm.TableName,
			Columns:     make(map[string]struct{}, len(columns)),
			PrimaryKeys: make(map[string]struct{}),
		}
		for _, col := range columns {
			t.Columns[col.ColumnName] = struct{}{}
			if col.IsPrimaryKey {
				t.PrimaryKeys[col.ColumnName] = struct{}{}
			}
		}
		tables = append(tables, t)
	}

	fkMeta, err := d.DiscoverForeignKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover foreign keys: %w", err)
	}

	fks := make([]models.ForeignKey, 0, len(fkMeta))
	for _, fk := range fkMeta {
		fks = append(fks, models.ForeignKey{
			OwningTable:      fk.SourceTable,
			OwningColumn:     fk.SourceColumn,
			ReferencedTable:  fk.TargetTable,
			ReferencedColumn: fk.TargetColumn,
		})
	}

	catalog, err := New(tables, fks)
	if err != nil {
		return nil, err
	}

	logger.Info("Schema catalog loaded",
		zap.Int("tables", len(catalog.tables)),
		zap.Int("foreign_keys", len(catalog.fkIndex)),
		zap.String("fingerprint", catalog.fingerprint))

	return catalog, nil
}

// Table returns the table with the given name (case-insensitive).
// The returned table must be treated as read-only.
func (c *Catalog) Table(name string) (*models.Table, bool) {
	t, ok := c.tables[canonical(name)]
	return t, ok
}

// HasTable reports whether the catalog contains the table.
func (c *Catalog) HasTable(name string) bool {
	_, ok := c.tables[canonical(name)]
	return ok
}

// TableNames returns all table names in sorted order.
func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForeignKeys returns the foreign keys owned by table, sorted.
func (c *Catalog) ForeignKeys(table string) []models.ForeignKey {
	owned := c.foreignKeys[canonical(table)]
	out := make([]models.ForeignKey, len(owned))
	copy(out, owned)
	return out
}

// AllForeignKeys returns every foreign key in the catalog, sorted.
func (c *Catalog) AllForeignKeys() []models.ForeignKey {
	out := make([]models.ForeignKey, 0, len(c.fkIndex))
	for fk := range c.fkIndex {
		out = append(out, fk)
	}
	sortForeignKeys(out)
	return out
}

// MatchesForeignKey reports whether the join predicate corresponds to a
// declared foreign key written in either direction.
func (c *Catalog) MatchesForeignKey(p models.JoinPredicate) bool {
	fk := p.AsForeignKey()
	if _, ok := c.fkIndex[fk]; ok {
		return true
	}
	_, ok := c.fkIndex[fk.Reverse()]
	return ok
}

// Graph returns the join graph derived from the catalog's foreign keys.
func (c *Catalog) Graph() *JoinGraph {
	return c.graph
}

// Fingerprint returns the catalog's content hash.
func (c *Catalog) Fingerprint() string {
	return c.fingerprint
}

func canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sortForeignKeys(fks []models.ForeignKey) {
	sort.Slice(fks, func(i, j int) bool {
		return fks[i].String() < fks[j].String()
	})
}
