package sql

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/sqlgate/pkg/models"
)

var allDialects = []Dialect{DialectPostgres, DialectMySQL, DialectSQLite, DialectMSSQL}

// eachDialect runs fn once per dialect as a subtest.
func eachDialect(t *testing.T, fn func(t *testing.T, d Dialect)) {
	t.Helper()
	for _, d := range allDialects {
		t.Run(string(d), func(t *testing.T) { fn(t, d) })
	}
}

func TestExtractTables(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "single table",
			sql:      "SELECT name FROM artists",
			expected: []string{"artists"},
		},
		{
			name:     "names are lower-cased",
			sql:      "SELECT * FROM Artists AS A JOIN Albums AS B ON A.Artist_Id = B.Artist_Id",
			expected: []string{"albums", "artists"},
		},
		{
			name:     "double quoted identifiers",
			sql:      `SELECT "name" FROM "artists"`,
			expected: []string{"artists"},
		},
		{
			name:     "subquery tables included",
			sql:      "SELECT name FROM artists WHERE artist_id IN (SELECT artist_id FROM albums)",
			expected: []string{"albums", "artists"},
		},
		{
			name:     "cte name excluded",
			sql:      "WITH album_counts AS (SELECT artist_id, COUNT(*) AS n FROM albums GROUP BY artist_id) SELECT * FROM album_counts",
			expected: []string{"albums"},
		},
		{
			name:     "union",
			sql:      "SELECT name FROM artists UNION SELECT name FROM genres",
			expected: []string{"artists", "genres"},
		},
		{
			name:     "no tables",
			sql:      "SELECT 1",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eachDialect(t, func(t *testing.T, d Dialect) {
				tables, err := ExtractTables(d, tt.sql)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, tables)
			})
		})
	}
}

func TestExtractTables_ParseError(t *testing.T) {
	eachDialect(t, func(t *testing.T, d Dialect) {
		for _, sql := range []string{
			"SELEC name FROM artists",
			"SELECT * FROM",
			"SELECT name FROM artists WHERE (",
			"",
		} {
			_, err := ExtractTables(d, sql)
			assert.ErrorIs(t, err, ErrParse, sql)
		}
	})
}

func TestExtractJoins(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []models.JoinPredicate
	}{
		{
			name: "aliased",
			sql:  "SELECT a.name, al.title FROM artists a JOIN albums al ON al.artist_id = a.artist_id",
			expected: []models.JoinPredicate{
				{LeftTable: "albums", LeftColumn: "artist_id", RightTable: "artists", RightColumn: "artist_id"},
			},
		},
		{
			name: "unaliased",
			sql:  "SELECT * FROM artists JOIN albums ON artists.artist_id = albums.artist_id",
			expected: []models.JoinPredicate{
				{LeftTable: "artists", LeftColumn: "artist_id", RightTable: "albums", RightColumn: "artist_id"},
			},
		},
		{
			name: "parenthesized condition",
			sql:  "SELECT * FROM artists ar LEFT JOIN albums al ON (ar.artist_id = al.artist_id)",
			expected: []models.JoinPredicate{
				{LeftTable: "artists", LeftColumn: "artist_id", RightTable: "albums", RightColumn: "artist_id"},
			},
		},
		{
			name: "chain in source order",
			sql: `SELECT t.name FROM tracks t
				JOIN albums al ON t.album_id = al.album_id
				JOIN artists ar ON al.artist_id = ar.artist_id`,
			expected: []models.JoinPredicate{
				{LeftTable: "tracks", LeftColumn: "album_id", RightTable: "albums", RightColumn: "album_id"},
				{LeftTable: "albums", LeftColumn: "artist_id", RightTable: "artists", RightColumn: "artist_id"},
			},
		},
		{
			name: "self join",
			sql:  "SELECT c1.first_name FROM customers c1 JOIN customers c2 ON c1.customer_id = c2.customer_id",
			expected: []models.JoinPredicate{
				{LeftTable: "customers", LeftColumn: "customer_id", RightTable: "customers", RightColumn: "customer_id"},
			},
		},
		{
			name:     "no joins",
			sql:      "SELECT name FROM artists",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eachDialect(t, func(t *testing.T, d Dialect) {
				joins, err := ExtractJoins(d, tt.sql)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, joins)
			})
		})
	}
}

func TestParse_UnanalyzableJoins(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		problem string
	}{
		{
			name:    "literal on one side",
			sql:     "SELECT * FROM artists a JOIN albums al ON a.artist_id = 1",
			problem: "join condition is not a single column equality",
		},
		{
			name:    "anded conditions",
			sql:     "SELECT * FROM artists a JOIN albums al ON a.artist_id = al.artist_id AND al.album_id > 2",
			problem: "join condition is not a single column equality",
		},
		{
			name:    "function call",
			sql:     "SELECT * FROM artists a JOIN albums al ON LOWER(a.name) = al.title",
			problem: "join condition is not a single column equality",
		},
		{
			name:    "inequality",
			sql:     "SELECT * FROM artists a JOIN albums al ON a.artist_id < al.artist_id",
			problem: "join condition is not a single column equality",
		},
		{
			name:    "using clause",
			sql:     "SELECT * FROM artists JOIN albums USING (artist_id)",
			problem: "join with USING clause",
		},
		{
			name:    "natural join",
			sql:     "SELECT * FROM artists NATURAL JOIN albums",
			problem: "natural join",
		},
		{
			name:    "cross join",
			sql:     "SELECT * FROM artists CROSS JOIN genres",
			problem: "join without ON condition",
		},
		{
			name:    "comma join",
			sql:     "SELECT * FROM artists, albums WHERE artists.artist_id = albums.artist_id",
			problem: "join without ON condition",
		},
		{
			name:    "unqualified column",
			sql:     "SELECT * FROM artists a JOIN albums al ON artist_id = al.artist_id",
			problem: "unqualified column artist_id in join condition",
		},
		{
			name:    "unknown alias",
			sql:     "SELECT * FROM artists a JOIN albums al ON x.artist_id = al.artist_id",
			problem: "unknown table alias x in join condition",
		},
		{
			name:    "alias bound twice in one FROM clause",
			sql:     "SELECT * FROM artists a JOIN albums a ON a.artist_id = a.artist_id",
			problem: "ambiguous table alias a in join condition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eachDialect(t, func(t *testing.T, d Dialect) {
				q, err := Parse(d, tt.sql)
				require.NoError(t, err)
				assert.Empty(t, q.Joins)
				assert.Equal(t, []string{tt.problem}, q.UnanalyzableJoins)
			})
		})
	}
}

func TestParse_DerivedJoinsAreNotPredicates(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{
			name: "cte joined to table",
			sql: `WITH album_counts AS (SELECT artist_id, COUNT(*) AS n FROM albums GROUP BY artist_id)
				SELECT ar.name, c.n FROM artists ar JOIN album_counts c ON c.artist_id = ar.artist_id`,
		},
		{
			name: "derived table joined to table",
			sql: `SELECT ar.name, c.n FROM artists ar
				JOIN (SELECT artist_id, COUNT(*) AS n FROM albums GROUP BY artist_id) c ON c.artist_id = ar.artist_id`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eachDialect(t, func(t *testing.T, d Dialect) {
				q, err := Parse(d, tt.sql)
				require.NoError(t, err)
				assert.Empty(t, q.Joins)
				assert.Empty(t, q.UnanalyzableJoins)
				assert.Equal(t, 1, q.DerivedJoins)
				assert.True(t, q.ReadOnly)
			})
		})
	}
}

func TestParse_JoinedTables(t *testing.T) {
	eachDialect(t, func(t *testing.T, d Dialect) {
		q, err := Parse(d, `SELECT * FROM tracks t
			JOIN albums al ON t.album_id = al.album_id
			JOIN artists ar ON al.artist_id = ar.artist_id
			WHERE t.genre_id IN (SELECT genre_id FROM genres)`)
		require.NoError(t, err)

		assert.Equal(t, []string{"albums", "artists", "tracks"}, q.JoinedTables())
		assert.Equal(t, []string{"albums", "artists", "genres", "tracks"}, q.Tables)
	})
}

func TestParse_ColumnRefs(t *testing.T) {
	eachDialect(t, func(t *testing.T, d Dialect) {
		q, err := Parse(d, "SELECT ar.name, ar.bogus, al.title, x.y, name FROM artists ar JOIN albums al ON al.artist_id = ar.artist_id")
		require.NoError(t, err)

		assert.ElementsMatch(t, []models.ColumnRef{
			{Qualifier: "ar", Table: "artists", Column: "name"},
			{Qualifier: "ar", Table: "artists", Column: "bogus"},
			{Qualifier: "al", Table: "albums", Column: "title"},
			{Qualifier: "x", Table: "", Column: "y"},
			{Qualifier: "al", Table: "albums", Column: "artist_id"},
			{Qualifier: "ar", Table: "artists", Column: "artist_id"},
		}, q.ColumnRefs)
	})
}

func TestParse_StringLiterals(t *testing.T) {
	eachDialect(t, func(t *testing.T, d Dialect) {
		q, err := Parse(d, "SELECT first_name || ' ' || last_name FROM customers WHERE country = 'Brazil' AND customer_id > 2")
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{" ", "Brazil"}, q.StringLiterals)
	})
}

func TestParse_StatementKind(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		count    int
		readOnly bool
	}{
		{name: "select", sql: "SELECT name FROM artists", count: 1, readOnly: true},
		{name: "with select", sql: "WITH x AS (SELECT 1 AS n) SELECT n FROM x", count: 1, readOnly: true},
		{name: "union", sql: "SELECT name FROM artists UNION ALL SELECT name FROM genres", count: 1, readOnly: true},
		{name: "delete", sql: "DELETE FROM artists", count: 1, readOnly: false},
		{name: "update", sql: "UPDATE artists SET name = 'x'", count: 1, readOnly: false},
		{name: "insert", sql: "INSERT INTO genres (genre_id, name) VALUES (9, 'Blues')", count: 1, readOnly: false},
		{name: "drop", sql: "DROP TABLE artists", count: 1, readOnly: false},
		{name: "select for update", sql: "SELECT name FROM artists FOR UPDATE", count: 1, readOnly: false},
		{name: "two selects", sql: "SELECT 1; SELECT 2", count: 2, readOnly: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eachDialect(t, func(t *testing.T, d Dialect) {
				q, err := Parse(d, tt.sql)
				require.NoError(t, err)
				assert.Equal(t, tt.count, q.StatementCount)
				assert.Equal(t, tt.readOnly, q.ReadOnly)
			})
		})
	}
}

func TestParse_Concurrent(t *testing.T) {
	const workers = 8

	var wg sync.WaitGroup
	errs := make(chan error, workers*20)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(d Dialect) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				joins, err := ExtractJoins(d, "SELECT * FROM artists a JOIN albums al ON al.artist_id = a.artist_id")
				if err != nil {
					errs <- err
					continue
				}
				if len(joins) != 1 {
					errs <- assert.AnError
				}
			}
		}(allDialects[w%len(allDialects)])
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestParse_DialectSyntax(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		sql     string
		tables  []string
	}{
		{"postgres cast", DialectPostgres, "SELECT name::text FROM artists", []string{"artists"}},
		{"postgres nulls last", DialectPostgres, "SELECT name FROM artists ORDER BY name NULLS LAST", []string{"artists"}},
		{"postgres interval", DialectPostgres, "SELECT COUNT(*) FROM invoices WHERE invoice_date > CURRENT_DATE - INTERVAL '30 days'", []string{"invoices"}},
		{"postgres ilike", DialectPostgres, "SELECT name FROM artists WHERE name ILIKE 'a%'", []string{"artists"}},
		{"postgres distinct on", DialectPostgres, "SELECT DISTINCT ON (artist_id) title FROM albums ORDER BY artist_id, title", []string{"albums"}},
		{"mysql backticks", DialectMySQL, "SELECT `name` FROM `artists` LIMIT 5", []string{"artists"}},
		{"mysql date format", DialectMySQL, "SELECT DATE_FORMAT(invoice_date, '%Y') AS y FROM invoices", []string{"invoices"}},
		{"mysql limit offset", DialectMySQL, "SELECT name FROM artists LIMIT 10, 5", []string{"artists"}},
		{"sqlite cast to text", DialectSQLite, "SELECT CAST(total AS TEXT) FROM invoices", []string{"invoices"}},
		{"sqlite cast to integer", DialectSQLite, "SELECT CAST(total AS INTEGER) FROM invoices", []string{"invoices"}},
		{"sqlite strftime", DialectSQLite, "SELECT strftime('%Y', invoice_date) AS y, SUM(total) FROM invoices GROUP BY y", []string{"invoices"}},
		{"sqlite backticks", DialectSQLite, "SELECT `name` FROM `artists`", []string{"artists"}},
		{"sqlite brackets", DialectSQLite, "SELECT [name] FROM [artists]", []string{"artists"}},
		{"mssql top", DialectMSSQL, "SELECT TOP 5 name FROM artists", []string{"artists"}},
		{"mssql top parenthesized", DialectMSSQL, "SELECT TOP (10) PERCENT name FROM artists ORDER BY name", []string{"artists"}},
		{"mssql distinct top with ties", DialectMSSQL, "SELECT DISTINCT TOP 3 WITH TIES name FROM artists ORDER BY name", []string{"artists"}},
		{"mssql brackets", DialectMSSQL, "SELECT a.[name] FROM [dbo].[artists] a", []string{"artists"}},
		{"mssql offset fetch", DialectMSSQL, "SELECT name FROM artists ORDER BY name OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY", []string{"artists"}},
		{"mssql top in subquery", DialectMSSQL, "SELECT name FROM artists WHERE artist_id IN (SELECT TOP 1 artist_id FROM albums)", []string{"albums", "artists"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.dialect, tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.tables, q.Tables)
			assert.True(t, q.ReadOnly)
		})
	}
}

func TestParse_ForeignDialectSyntaxRejected(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		sql     string
	}{
		{"top in postgres", DialectPostgres, "SELECT TOP 5 name FROM artists"},
		{"backticks in postgres", DialectPostgres, "SELECT `name` FROM artists"},
		{"top in mysql", DialectMySQL, "SELECT TOP 5 name FROM artists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.dialect, tt.sql)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestParse_UnknownDialect(t *testing.T) {
	_, err := Parse(Dialect("oracle"), "SELECT 1 FROM dual")
	assert.ErrorContains(t, err, `unsupported SQL dialect "oracle"`)
}

func TestParse_DataModifyingCTEIsNotReadOnly(t *testing.T) {
	q, err := Parse(DialectPostgres, "WITH gone AS (DELETE FROM artists RETURNING artist_id) SELECT * FROM gone")
	require.NoError(t, err)
	assert.Equal(t, 1, q.StatementCount)
	assert.False(t, q.ReadOnly)
}

func TestParse_AliasScopes(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		joins   []models.JoinPredicate
		columns []models.ColumnRef
	}{
		{
			name: "subquery reuses outer alias for another table",
			sql:  "SELECT * FROM artists a JOIN albums b ON a.artist_id = b.artist_id WHERE b.album_id IN (SELECT a.album_id FROM tracks a)",
			joins: []models.JoinPredicate{
				{LeftTable: "artists", LeftColumn: "artist_id", RightTable: "albums", RightColumn: "artist_id"},
			},
			columns: []models.ColumnRef{
				{Qualifier: "a", Table: "artists", Column: "artist_id"},
				{Qualifier: "b", Table: "albums", Column: "artist_id"},
				{Qualifier: "b", Table: "albums", Column: "album_id"},
				{Qualifier: "a", Table: "tracks", Column: "album_id"},
			},
		},
		{
			name: "join inside subquery shadows outer alias",
			sql:  "SELECT a.name FROM artists a WHERE EXISTS (SELECT 1 FROM albums a JOIN tracks t ON t.album_id = a.album_id)",
			joins: []models.JoinPredicate{
				{LeftTable: "tracks", LeftColumn: "album_id", RightTable: "albums", RightColumn: "album_id"},
			},
			columns: []models.ColumnRef{
				{Qualifier: "a", Table: "artists", Column: "name"},
				{Qualifier: "t", Table: "tracks", Column: "album_id"},
				{Qualifier: "a", Table: "albums", Column: "album_id"},
			},
		},
		{
			name: "correlated subquery sees outer alias",
			sql: `SELECT ar.name FROM artists ar WHERE EXISTS (
				SELECT 1 FROM albums al JOIN tracks t ON t.album_id = al.album_id WHERE al.artist_id = ar.artist_id)`,
			joins: []models.JoinPredicate{
				{LeftTable: "tracks", LeftColumn: "album_id", RightTable: "albums", RightColumn: "album_id"},
			},
			columns: []models.ColumnRef{
				{Qualifier: "ar", Table: "artists", Column: "name"},
				{Qualifier: "t", Table: "tracks", Column: "album_id"},
				{Qualifier: "al", Table: "albums", Column: "album_id"},
				{Qualifier: "al", Table: "albums", Column: "artist_id"},
				{Qualifier: "ar", Table: "artists", Column: "artist_id"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eachDialect(t, func(t *testing.T, d Dialect) {
				q, err := Parse(d, tt.sql)
				require.NoError(t, err)
				assert.Equal(t, tt.joins, q.Joins)
				assert.Empty(t, q.UnanalyzableJoins)
				assert.ElementsMatch(t, tt.columns, q.ColumnRefs)
			})
		})
	}
}
