package sql

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ekaya-inc/sqlgate/pkg/models"
)

// ErrParse indicates the SQL could not be parsed.
var ErrParse = errors.New("failed to parse SQL")

// ParsedQuery is everything the validator needs from one SQL string.
// Table and column names are lower-cased.
type ParsedQuery struct {
	// Tables referenced anywhere in the statement, excluding CTE names. Sorted.
	Tables []string
	// CTENames declared by WITH clauses. Sorted.
	CTENames []string
	// Joins are the column-equality join conditions between catalog tables,
	// in source order.
	Joins []models.JoinPredicate
	// UnanalyzableJoins describes join clauses whose condition is not a single
	// equality between two qualified columns.
	UnanalyzableJoins []string
	// DerivedJoins counts join conditions that touch a subquery or CTE.
	// Those relations have no declared foreign keys and are not checked.
	DerivedJoins int
	// ColumnRefs are the qualified column references.
	ColumnRefs []models.ColumnRef
	// StringLiterals are the values of all string constants.
	StringLiterals []string
	// StatementCount is the number of statements the parser produced.
	StatementCount int
	// ReadOnly is true when the input is exactly one query statement
	// (SELECT, WITH ... SELECT or a set operation) without locking or INTO.
	ReadOnly bool
}

// JoinedTables returns the distinct tables on either side of any join predicate.
func (q *ParsedQuery) JoinedTables() []string {
	seen := make(map[string]struct{}, len(q.Joins)*2)
	for _, j := range q.Joins {
		seen[j.LeftTable] = struct{}{}
		seen[j.RightTable] = struct{}{}
	}
	return sortedKeys(seen)
}

// Parse runs the SQL through the parser for d and collects tables, joins,
// column references and literals. It returns an error wrapping ErrParse when
// the input is not valid SQL in that dialect.
//
// MySQL is parsed with the TiDB grammar. PostgreSQL, SQLite and T-SQL are
// parsed with the PostgreSQL grammar, after the rewrite in toPostgresSyntax.
func Parse(d Dialect, sqlQuery string) (*ParsedQuery, error) {
	switch {
	case d == DialectMySQL:
		return parseMySQL(sqlQuery)
	case d.usesPostgresGrammar():
		return parsePostgres(toPostgresSyntax(d, sqlQuery))
	default:
		return nil, fmt.Errorf("unsupported SQL dialect %q", d)
	}
}

// ExtractTables returns the lower-cased names of all tables the query reads.
func ExtractTables(d Dialect, sqlQuery string) ([]string, error) {
	q, err := Parse(d, sqlQuery)
	if err != nil {
		return nil, err
	}
	return q.Tables, nil
}

// ExtractJoins returns the alias-resolved equality join predicates of the query.
func ExtractJoins(d Dialect, sqlQuery string) ([]models.JoinPredicate, error) {
	q, err := Parse(d, sqlQuery)
	if err != nil {
		return nil, err
	}
	return q.Joins, nil
}

// relation is what a table alias points at.
type relation struct {
	table     string
	derived   bool
	ambiguous bool
}

// scope holds the aliases bound by one SELECT. Lookups fall through to the
// enclosing SELECT, so a correlated subquery sees the outer aliases while its
// own FROM clause shadows them.
type scope struct {
	parent  *scope
	aliases map[string]relation
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, aliases: make(map[string]relation)}
}

// bind records an alias. An alias bound to two different relations in the
// same SELECT cannot be resolved.
func (s *scope) bind(alias string, r relation) {
	if prev, ok := s.aliases[alias]; ok && prev != r {
		s.aliases[alias] = relation{ambiguous: true}
		return
	}
	s.aliases[alias] = r
}

func (s *scope) lookup(qualifier string) (relation, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if r, ok := cur.aliases[qualifier]; ok {
			return r, true
		}
	}
	return relation{}, false
}

// columnRef is a possibly qualified column name as written.
type columnRef struct {
	qualifier string
	name      string
}

type scopedColumn struct {
	scope *scope
	ref   columnRef
}

// joinClause is a parser-independent view of one join.
type joinClause struct {
	scope       *scope
	natural     bool
	using       bool
	noCondition bool
	// left and right are set when the condition is a single equality between
	// two column references.
	left, right *columnRef
}

// collector accumulates what the parser walkers find. Alias resolution
// happens in build, after the walk, so that references may appear before
// the FROM clause that binds them.
type collector struct {
	current  *scope
	tables   map[string]struct{}
	ctes     map[string]struct{}
	joins    []joinClause
	columns  []scopedColumn
	literals []string
}

func newCollector() *collector {
	return &collector{
		current: newScope(nil),
		tables:  make(map[string]struct{}),
		ctes:    make(map[string]struct{}),
	}
}

func (c *collector) pushScope() { c.current = newScope(c.current) }

func (c *collector) popScope() {
	if c.current.parent != nil {
		c.current = c.current.parent
	}
}

func (c *collector) addTable(name string) { c.tables[name] = struct{}{} }

func (c *collector) addCTE(name string) { c.ctes[name] = struct{}{} }

// bindTable binds a FROM-clause table in the current scope. An unaliased
// table is reachable by its own name.
func (c *collector) bindTable(table, alias string) {
	if alias == "" {
		alias = table
	}
	c.current.bind(alias, relation{table: table})
}

func (c *collector) bindDerived(alias string) {
	if alias != "" {
		c.current.bind(alias, relation{derived: true})
	}
}

func (c *collector) addColumn(ref columnRef) {
	if ref.qualifier != "" {
		c.columns = append(c.columns, scopedColumn{scope: c.current, ref: ref})
	}
}

func (c *collector) addLiteral(s string) { c.literals = append(c.literals, s) }

func (c *collector) addJoin(j joinClause) {
	j.scope = c.current
	c.joins = append(c.joins, j)
}

func (c *collector) resolve(s *scope, qualifier string) (relation, bool) {
	r, ok := s.lookup(qualifier)
	if !ok {
		return relation{}, false
	}
	if !r.derived && !r.ambiguous {
		if _, isCTE := c.ctes[r.table]; isCTE {
			return relation{derived: true}, true
		}
	}
	return r, true
}

func (c *collector) build() *ParsedQuery {
	q := &ParsedQuery{StringLiterals: c.literals}

	tables := make(map[string]struct{}, len(c.tables))
	for t := range c.tables {
		if _, isCTE := c.ctes[t]; !isCTE {
			tables[t] = struct{}{}
		}
	}
	q.Tables = sortedKeys(tables)
	q.CTENames = sortedKeys(c.ctes)

	for _, j := range c.joins {
		c.analyzeJoin(q, j)
	}

	for _, col := range c.columns {
		ref := models.ColumnRef{Qualifier: col.ref.qualifier, Column: col.ref.name}
		if r, ok := c.resolve(col.scope, col.ref.qualifier); ok && !r.derived && !r.ambiguous {
			ref.Table = r.table
		}
		q.ColumnRefs = append(q.ColumnRefs, ref)
	}

	return q
}

func (c *collector) analyzeJoin(q *ParsedQuery, j joinClause) {
	switch {
	case j.natural:
		q.UnanalyzableJoins = append(q.UnanalyzableJoins, "natural join")
		return
	case j.using:
		q.UnanalyzableJoins = append(q.UnanalyzableJoins, "join with USING clause")
		return
	case j.noCondition:
		q.UnanalyzableJoins = append(q.UnanalyzableJoins, "join without ON condition")
		return
	case j.left == nil || j.right == nil:
		q.UnanalyzableJoins = append(q.UnanalyzableJoins, "join condition is not a single column equality")
		return
	}

	lr, problem := c.resolveJoinSide(j.scope, *j.left)
	if problem == "" {
		var rr relation
		rr, problem = c.resolveJoinSide(j.scope, *j.right)
		if problem == "" {
			if lr.derived || rr.derived {
				q.DerivedJoins++
				return
			}
			q.Joins = append(q.Joins, models.JoinPredicate{
				LeftTable:   lr.table,
				LeftColumn:  j.left.name,
				RightTable:  rr.table,
				RightColumn: j.right.name,
			})
			return
		}
	}
	q.UnanalyzableJoins = append(q.UnanalyzableJoins, problem)
}

func (c *collector) resolveJoinSide(s *scope, col columnRef) (relation, string) {
	if col.qualifier == "" {
		return relation{}, fmt.Sprintf("unqualified column %s in join condition", col.name)
	}
	r, ok := c.resolve(s, col.qualifier)
	switch {
	case !ok:
		return relation{}, fmt.Sprintf("unknown table alias %s in join condition", col.qualifier)
	case r.ambiguous:
		return relation{}, fmt.Sprintf("ambiguous table alias %s in join condition", col.qualifier)
	}
	return r, ""
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
