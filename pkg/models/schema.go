package models

import "fmt"

// Table is a user table as seen by the schema catalog.
// Names are canonical lower-case identifiers. Immutable after schema load.
type Table struct {
	Name        string              `json:"name"`
	Columns     map[string]struct{} `json:"-"`
	PrimaryKeys map[string]struct{} `json:"-"`
}

// HasColumn reports whether the table declares the given (lower-case) column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Columns[name]
	return ok
}

// IsPrimaryKey reports whether the column is part of the table's primary key.
func (t *Table) IsPrimaryKey(name string) bool {
	_, ok := t.PrimaryKeys[name]
	return ok
}

// ForeignKey is a declared relationship from OwningTable.OwningColumn to
// ReferencedTable.ReferencedColumn. Join validation treats it as bidirectional.
type ForeignKey struct {
	OwningTable      string `json:"owning_table"`
	OwningColumn     string `json:"owning_column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// String renders the foreign key as "t.c -> rt.rc".
func (fk ForeignKey) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", fk.OwningTable, fk.OwningColumn, fk.ReferencedTable, fk.ReferencedColumn)
}

// Reverse returns the same relationship written from the referenced side.
func (fk ForeignKey) Reverse() ForeignKey {
	return ForeignKey{
		OwningTable:      fk.ReferencedTable,
		OwningColumn:     fk.ReferencedColumn,
		ReferencedTable:  fk.OwningTable,
		ReferencedColumn: fk.OwningColumn,
	}
}

// JoinPredicate is an equality join condition with both sides resolved from
// query aliases back to canonical table names.
type JoinPredicate struct {
	LeftTable   string `json:"left_table"`
	LeftColumn  string `json:"left_column"`
	RightTable  string `json:"right_table"`
	RightColumn string `json:"right_column"`
}

// String renders the predicate as "lt.lc = rt.rc".
func (p JoinPredicate) String() string {
	return fmt.Sprintf("%s.%s = %s.%s", p.LeftTable, p.LeftColumn, p.RightTable, p.RightColumn)
}

// AsForeignKey returns the predicate in foreign-key orientation (left side owning).
func (p JoinPredicate) AsForeignKey() ForeignKey {
	return ForeignKey{
		OwningTable:      p.LeftTable,
		OwningColumn:     p.LeftColumn,
		ReferencedTable:  p.RightTable,
		ReferencedColumn: p.RightColumn,
	}
}

// ColumnRef is a qualified column reference found in a query, with the
// qualifier resolved to a table name when the alias map knows it.
type ColumnRef struct {
	Qualifier string `json:"qualifier"`
	Table     string `json:"table"`
	Column    string `json:"column"`
}
