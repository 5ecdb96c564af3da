package testhelpers

import (
	"context"
	"database/sql"
	"embed"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

//go:embed fixtures/*.sql
var fixturesFS embed.FS

const chinookUpFile = "fixtures/000001_chinook.up.sql"

// ChinookStatements returns the fixture DDL and seed data as individual statements.
func ChinookStatements(t *testing.T) []string {
	t.Helper()

	raw, err := fixturesFS.ReadFile(chinookUpFile)
	if err != nil {
		t.Fatalf("read chinook fixture: %v", err)
	}

	var stmts []string
	for _, stmt := range strings.Split(string(raw), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// NewChinookSQLite creates a SQLite database file seeded with the chinook fixture
// in a per-test temp directory and returns its path.
func NewChinookSQLite(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chinook.db")
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	for _, stmt := range ChinookStatements(t) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("apply chinook fixture: %v\n%s", err, stmt)
		}
	}

	return path
}

// OpenSQLite opens a SQLite file and closes it when the test ends.
func OpenSQLite(t *testing.T, path string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
