package sql

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect selects the grammar a statement is parsed with.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectMSSQL    Dialect = "mssql"
)

// DialectFor maps a datasource type to its dialect.
func DialectFor(datasourceType string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(datasourceType))); d {
	case DialectPostgres, DialectMySQL, DialectSQLite, DialectMSSQL:
		return d, nil
	case "postgresql":
		return DialectPostgres, nil
	case "sqlserver":
		return DialectMSSQL, nil
	default:
		return "", fmt.Errorf("no SQL dialect for datasource type %q", datasourceType)
	}
}

// DisplayName is the dialect's name as written in generator prompts.
func (d Dialect) DisplayName() string {
	switch d {
	case DialectPostgres:
		return "PostgreSQL"
	case DialectMySQL:
		return "MySQL"
	case DialectSQLite:
		return "SQLite"
	case DialectMSSQL:
		return "SQL Server (T-SQL)"
	default:
		return "ANSI SQL"
	}
}

// usesPostgresGrammar reports whether statements are analyzed with the
// PostgreSQL parser. SQLite and T-SQL are first rewritten by toPostgresSyntax.
func (d Dialect) usesPostgresGrammar() bool {
	return d == DialectPostgres || d == DialectSQLite || d == DialectMSSQL
}

var (
	// SELECT [ALL|DISTINCT] TOP n | TOP (n) [PERCENT] [WITH TIES]
	topClause = regexp.MustCompile(`(?i)\bselect(\s+(?:all|distinct))?\s+top\s*(\(\s*\d+\s*\)|\d+)(\s+percent)?(\s+with\s+ties)?`)

	bracketIdent  = regexp.MustCompile(`\[([^\[\]]+)\]`)
	backtickIdent = regexp.MustCompile("`([^`]+)`")
)

// toPostgresSyntax rewrites the dialect-specific spellings PostgreSQL cannot
// parse: bracket and backtick quoted identifiers, and the T-SQL TOP clause.
// String literals are left untouched. The result is only used for analysis.
func toPostgresSyntax(d Dialect, sqlQuery string) string {
	var rewrite func(string) string
	switch d {
	case DialectSQLite:
		rewrite = func(code string) string {
			code = backtickIdent.ReplaceAllString(code, `"$1"`)
			return bracketIdent.ReplaceAllString(code, `"$1"`)
		}
	case DialectMSSQL:
		rewrite = func(code string) string {
			code = bracketIdent.ReplaceAllString(code, `"$1"`)
			return topClause.ReplaceAllString(code, "select$1")
		}
	default:
		return sqlQuery
	}

	var b strings.Builder
	b.Grow(len(sqlQuery))
	for _, seg := range splitLiterals(sqlQuery) {
		if seg.literal {
			b.WriteString(seg.text)
		} else {
			b.WriteString(rewrite(seg.text))
		}
	}
	return b.String()
}

type segment struct {
	text    string
	literal bool
}

// splitLiterals cuts sqlQuery into alternating code and single-quoted string
// literal segments. A doubled quote inside a literal is an escaped quote.
// An unterminated literal runs to the end of the input.
func splitLiterals(sqlQuery string) []segment {
	var segs []segment
	start := 0
	for i := 0; i < len(sqlQuery); i++ {
		if sqlQuery[i] != '\'' {
			continue
		}
		if i > start {
			segs = append(segs, segment{text: sqlQuery[start:i]})
		}
		j := i + 1
		for j < len(sqlQuery) {
			if sqlQuery[j] == '\'' {
				if j+1 < len(sqlQuery) && sqlQuery[j+1] == '\'' {
					j += 2
					continue
				}
				break
			}
			j++
		}
		end := min(j+1, len(sqlQuery))
		segs = append(segs, segment{text: sqlQuery[i:end], literal: true})
		start = end
		i = end - 1
	}
	if start < len(sqlQuery) {
		segs = append(segs, segment{text: sqlQuery[start:]})
	}
	return segs
}
