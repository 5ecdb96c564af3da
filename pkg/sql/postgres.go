package sql

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/reflect/protoreflect"
)

func parsePostgres(sqlQuery string) (*ParsedQuery, error) {
	tree, err := pg_query.Parse(sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	stmts := tree.GetStmts()
	if len(stmts) == 0 {
		return nil, fmt.Errorf("%w: no statement found", ErrParse)
	}

	w := &postgresWalker{c: newCollector()}
	for _, raw := range stmts {
		w.walk(raw.ProtoReflect())
	}

	q := w.c.build()
	q.StatementCount = len(stmts)
	q.ReadOnly = len(stmts) == 1 && !w.writes && isPostgresQuery(stmts[0].GetStmt())
	return q, nil
}

func isPostgresQuery(n *pg_query.Node) bool {
	sel := n.GetSelectStmt()
	return sel != nil && sel.GetIntoClause() == nil && len(sel.GetLockingClause()) == 0
}

// postgresWalker feeds a pg_query parse tree into a collector. The tree is
// visited generically through protobuf reflection so that every expression
// position is reached without naming each node type.
type postgresWalker struct {
	c *collector
	// writes is set when a data-modifying statement appears anywhere,
	// including inside a WITH clause.
	writes bool
}

// walk visits m and its message-typed fields in declaration order.
func (w *postgresWalker) walk(m protoreflect.Message) {
	w.enter(m.Interface())

	fields := m.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Kind() != protoreflect.MessageKind || fd.IsMap() || !m.Has(fd) {
			continue
		}
		v := m.Get(fd)
		if fd.IsList() {
			list := v.List()
			for j := 0; j < list.Len(); j++ {
				w.walk(list.Get(j).Message())
			}
			continue
		}
		w.walk(v.Message())
	}

	w.leave(m.Interface())
}

func (w *postgresWalker) enter(node protoreflect.ProtoMessage) {
	switch n := node.(type) {
	case *pg_query.SelectStmt:
		w.c.pushScope()
		for _, cte := range n.GetWithClause().GetCtes() {
			w.c.addCTE(strings.ToLower(cte.GetCommonTableExpr().GetCtename()))
		}
	case *pg_query.RangeVar:
		table := strings.ToLower(n.GetRelname())
		w.c.addTable(table)
		w.c.bindTable(table, strings.ToLower(n.GetAlias().GetAliasname()))
	case *pg_query.RangeSubselect:
		w.c.bindDerived(strings.ToLower(n.GetAlias().GetAliasname()))
	case *pg_query.RangeFunction:
		w.c.bindDerived(strings.ToLower(n.GetAlias().GetAliasname()))
	case *pg_query.ColumnRef:
		if ref, ok := postgresColumn(n); ok {
			w.c.addColumn(ref)
		}
	case *pg_query.A_Const:
		if s := n.GetSval(); s != nil {
			w.c.addLiteral(s.GetSval())
		}
	case *pg_query.InsertStmt, *pg_query.UpdateStmt, *pg_query.DeleteStmt, *pg_query.MergeStmt:
		w.writes = true
	}
}

func (w *postgresWalker) leave(node protoreflect.ProtoMessage) {
	switch n := node.(type) {
	case *pg_query.JoinExpr:
		// Nested joins leave before the join that wraps them, giving source order.
		w.c.addJoin(postgresJoin(n))
	case *pg_query.SelectStmt:
		// FROM a, b is a join without a condition.
		for i := 1; i < len(n.GetFromClause()); i++ {
			w.c.addJoin(joinClause{noCondition: true})
		}
		w.c.popScope()
	}
}

func postgresJoin(j *pg_query.JoinExpr) joinClause {
	switch {
	case j.GetIsNatural():
		return joinClause{natural: true}
	case len(j.GetUsingClause()) > 0:
		return joinClause{using: true}
	case j.GetQuals() == nil:
		return joinClause{noCondition: true}
	}
	left, right, ok := postgresColumnEquality(j.GetQuals())
	if !ok {
		return joinClause{}
	}
	return joinClause{left: left, right: right}
}

// postgresColumnEquality matches "a.x = b.y". The parser has already dropped
// surrounding parentheses.
func postgresColumnEquality(n *pg_query.Node) (*columnRef, *columnRef, bool) {
	e := n.GetAExpr()
	if e == nil || e.GetKind() != pg_query.A_Expr_Kind_AEXPR_OP {
		return nil, nil, false
	}
	if op := e.GetName(); len(op) != 1 || op[0].GetString_().GetSval() != "=" {
		return nil, nil, false
	}

	l := e.GetLexpr().GetColumnRef()
	r := e.GetRexpr().GetColumnRef()
	if l == nil || r == nil {
		return nil, nil, false
	}
	left, lok := postgresColumn(l)
	right, rok := postgresColumn(r)
	if !lok || !rok {
		return nil, nil, false
	}
	return &left, &right, true
}

// postgresColumn reads the last two name parts of a column reference,
// so schema.table.column qualifies by table. A trailing * is not a column.
func postgresColumn(ref *pg_query.ColumnRef) (columnRef, bool) {
	fields := ref.GetFields()
	if len(fields) == 0 {
		return columnRef{}, false
	}
	name := fields[len(fields)-1].GetString_()
	if name == nil {
		return columnRef{}, false
	}
	col := columnRef{name: strings.ToLower(name.GetSval())}
	if len(fields) >= 2 {
		col.qualifier = strings.ToLower(fields[len(fields)-2].GetString_().GetSval())
	}
	return col, true
}
