package sql

import (
	"fmt"
	"sync"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/mysql"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // value expression driver required by the parser
)

// Double-quoted identifiers and || concatenation are common in generated SQL
// regardless of the target database.
const parserSQLMode = mysql.ModeANSIQuotes | mysql.ModePipesAsConcat

// parser.Parser is not safe for concurrent use.
var parserPool = sync.Pool{
	New: func() any {
		p := parser.New()
		p.SetSQLMode(parserSQLMode)
		return p
	},
}

func parseMySQL(sqlQuery string) (*ParsedQuery, error) {
	p := parserPool.Get().(*parser.Parser)
	defer parserPool.Put(p)

	stmts, _, err := p.Parse(sqlQuery, "", "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("%w: no statement found", ErrParse)
	}

	w := &mysqlWalker{c: newCollector()}
	for _, stmt := range stmts {
		stmt.Accept(w)
	}

	q := w.c.build()
	q.StatementCount = len(stmts)
	q.ReadOnly = len(stmts) == 1 && isMySQLQuery(stmts[0])
	return q, nil
}

func isMySQLQuery(stmt ast.StmtNode) bool {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		if s.SelectIntoOpt != nil {
			return false
		}
		if s.LockInfo != nil && s.LockInfo.LockType != ast.SelectLockNone {
			return false
		}
		return true
	case *ast.SetOprStmt:
		return true
	default:
		return false
	}
}

// mysqlWalker feeds a TiDB AST into a collector.
type mysqlWalker struct {
	c *collector
}

func (w *mysqlWalker) Enter(n ast.Node) (ast.Node, bool) {
	switch node := n.(type) {
	case *ast.SelectStmt:
		w.c.pushScope()
		w.addCTEs(node.With)
	case *ast.SetOprStmt:
		w.addCTEs(node.With)
	case *ast.TableSource:
		if tn, ok := node.Source.(*ast.TableName); ok {
			w.c.bindTable(tn.Name.L, node.AsName.L)
		} else {
			w.c.bindDerived(node.AsName.L)
		}
	case *ast.TableName:
		w.c.addTable(node.Name.L)
	case *ast.ColumnName:
		w.c.addColumn(columnRef{qualifier: node.Table.L, name: node.Name.L})
	case ast.ValueExpr:
		if s, ok := node.GetValue().(string); ok {
			w.c.addLiteral(s)
		}
	}
	return n, false
}

func (w *mysqlWalker) Leave(n ast.Node) (ast.Node, bool) {
	switch node := n.(type) {
	case *ast.SelectStmt:
		w.c.popScope()
	case *ast.Join:
		// Nested joins leave before the join that wraps them, giving source order.
		if node.Right != nil {
			w.c.addJoin(mysqlJoin(node))
		}
	}
	return n, true
}

func (w *mysqlWalker) addCTEs(with *ast.WithClause) {
	if with == nil {
		return
	}
	for _, cte := range with.CTEs {
		w.c.addCTE(cte.Name.L)
	}
}

func mysqlJoin(j *ast.Join) joinClause {
	switch {
	case j.NaturalJoin:
		return joinClause{natural: true}
	case len(j.Using) > 0:
		return joinClause{using: true}
	case j.On == nil:
		return joinClause{noCondition: true}
	}
	left, right, ok := mysqlColumnEquality(j.On.Expr)
	if !ok {
		return joinClause{}
	}
	return joinClause{left: left, right: right}
}

// mysqlColumnEquality matches "a.x = b.y", ignoring surrounding parentheses.
func mysqlColumnEquality(expr ast.ExprNode) (*columnRef, *columnRef, bool) {
	for {
		p, ok := expr.(*ast.ParenthesesExpr)
		if !ok {
			break
		}
		expr = p.Expr
	}

	bin, ok := expr.(*ast.BinaryOperationExpr)
	if !ok || bin.Op != opcode.EQ {
		return nil, nil, false
	}
	l, lok := bin.L.(*ast.ColumnNameExpr)
	r, rok := bin.R.(*ast.ColumnNameExpr)
	if !lok || !rok {
		return nil, nil, false
	}
	return &columnRef{qualifier: l.Name.Table.L, name: l.Name.Name.L},
		&columnRef{qualifier: r.Name.Table.L, name: r.Name.Name.L},
		true
}
