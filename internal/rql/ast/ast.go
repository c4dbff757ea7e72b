// Package ast defines the syntax tree RQL statements parse into (spec
// §6.3). Scalar/row expressions reuse internal/exec/expr.Expr directly
// rather than a parallel expression-node type, since the executor and the
// flow-node compiler both need the same tree shape the parser builds.
package ast

import "github.com/reifydb/reifydb-sub032/internal/exec/expr"

// Statement is any top-level RQL statement.
type Statement interface{ statementNode() }

// ColumnDef is one column declaration inside a CREATE TABLE/VIEW body.
type ColumnDef struct {
	Name     string
	Type     string
	Policies []string
}

// CreateNamespace is "CREATE NAMESPACE [IF NOT EXISTS] <name>".
type CreateNamespace struct {
	IfNotExists bool
	Name        string
}

// CreateTable is "CREATE TABLE <ns>.<name> { col: type [policy]*, ... }".
type CreateTable struct {
	IfNotExists bool
	Namespace   string
	Name        string
	Columns     []ColumnDef
}

// CreateView is "CREATE [DEFERRED|TRANSACTIONAL] VIEW <ns>.<name> { ... } AS <pipeline>".
type CreateView struct {
	Deferred  bool // false => Transactional
	Namespace string
	Name      string
	Columns   []ColumnDef
	Pipeline  *Pipeline
}

// CreateFlow is "CREATE FLOW <ns>.<name> AS <pipeline>".
type CreateFlow struct {
	Namespace string
	Name      string
	Pipeline  *Pipeline
}

// CreateDictionary is "CREATE DICTIONARY <ns>.<name> <value_type> WITH ID <id_type>".
type CreateDictionary struct {
	Namespace string
	Name      string
	ValueType string
	IDType    string
}

// InsertRow is one "{ col: val, ... }" literal in an INSERT's FROM list.
type InsertRow struct {
	Columns []string
	Values  []*expr.Expr
}

// Insert is "INSERT <ns>.<table> FROM [ {...}, ... ]".
type Insert struct {
	Namespace string
	Table     string
	Rows      []InsertRow
}

// Assignment is one "col = expr" in an UPDATE's SET clause.
type Assignment struct {
	Column string
	Value  *expr.Expr
}

// Update is "UPDATE <ns>.<table> SET col = expr [WHERE expr]".
type Update struct {
	Namespace   string
	Table       string
	Assignments []Assignment
	Where       *expr.Expr // nil => unconditional
}

// Delete is "DELETE <ns>.<table> [WHERE expr]".
type Delete struct {
	Namespace string
	Table     string
	Where     *expr.Expr
}

// AlterTable covers "ALTER TABLE ... ADD|RENAME|DROP COLUMN ...".
type AlterTable struct {
	Namespace  string
	Table      string
	Op         string // "add_column" | "drop_column" | "rename_column"
	Column     ColumnDef
	RenameFrom string
	RenameTo   string
}

// AlterSequence is "ALTER SEQUENCE ... ".
type AlterSequence struct {
	Namespace string
	Name      string
	RenameTo  string
}

// Drop is "DROP <kind> [IF EXISTS] <ns>.<name>".
type Drop struct {
	Kind      string // "namespace" | "table" | "view" | "flow" | "dictionary" | "sequence"
	IfExists  bool
	Namespace string
	Name      string
}

// Pipeline is an ordered sequence of stages forming one RQL pipe
// expression: "FROM ... | FILTER ... | MAP ... | ...".
type Pipeline struct {
	Stages []Stage
}

// Stage is one pipe-separated pipeline operator.
type Stage interface{ stageNode() }

// FromStage sources rows from a named table or view.
type FromStage struct {
	Namespace string
	Name      string
}

// FilterStage keeps rows where Predicate evaluates true.
type FilterStage struct {
	Predicate *expr.Expr
}

// MapStage replaces (Extend=false) or appends (Extend=true) named columns.
type MapStage struct {
	Names  []string
	Exprs  []*expr.Expr
	Extend bool
}

// TakeStage caps the row count.
type TakeStage struct {
	N int
}

// SortColumn names one ordering key.
type SortColumn struct {
	Name string
	Desc bool
}

// SortStage orders rows by Columns in priority order.
type SortStage struct {
	Columns []SortColumn
}

// JoinStage combines the pipeline's current rows with another source.
type JoinStage struct {
	Kind      string // "inner" | "left" | "right" | "full"
	Namespace string
	Name      string
	LeftKeys  []*expr.Expr
	RightKeys []*expr.Expr
}

// AggExpr is one "name: func(arg)" aggregate projection.
type AggExpr struct {
	Name string
	Func string
	Arg  *expr.Expr
}

// AggregateStage groups by By and computes Aggs per group.
type AggregateStage struct {
	ByNames []string
	By      []*expr.Expr
	Aggs    []AggExpr
}

// ApplyStage transforms one column in place via Expr.
type ApplyStage struct {
	Column string
	Expr   *expr.Expr
}

func (*CreateNamespace) statementNode()  {}
func (*CreateTable) statementNode()      {}
func (*CreateView) statementNode()       {}
func (*CreateFlow) statementNode()       {}
func (*CreateDictionary) statementNode() {}
func (*Insert) statementNode()           {}
func (*Update) statementNode()           {}
func (*Delete) statementNode()           {}
func (*AlterTable) statementNode()       {}
func (*AlterSequence) statementNode()    {}
func (*Drop) statementNode()             {}
func (*Pipeline) statementNode()         {} // a bare pipeline is a valid ad-hoc query statement

func (*FromStage) stageNode()      {}
func (*FilterStage) stageNode()    {}
func (*MapStage) stageNode()       {}
func (*TakeStage) stageNode()      {}
func (*SortStage) stageNode()      {}
func (*JoinStage) stageNode()      {}
func (*AggregateStage) stageNode() {}
func (*ApplyStage) stageNode()     {}
