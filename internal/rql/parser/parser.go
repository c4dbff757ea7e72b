// Package parser implements a recursive-descent, Pratt-style parser for
// RQL (spec §6.3). Statement parsing dispatches on leading keywords;
// scalar/row expressions parse directly into internal/exec/expr.Expr trees
// so the resulting AST needs no further lowering before reaching either
// the executor or the flow-node compiler.
package parser

import (
	"fmt"
	"strconv"

	"github.com/reifydb/reifydb-sub032/internal/core/value"
	"github.com/reifydb/reifydb-sub032/internal/exec/expr"
	"github.com/reifydb/reifydb-sub032/internal/rql/ast"
	"github.com/reifydb/reifydb-sub032/internal/rql/lexer"
	"github.com/reifydb/reifydb-sub032/internal/rql/token"
)

// Operator precedence levels, low to high.
const (
	_ int = iota
	LOWEST
	OR_PREC
	AND_PREC
	COMPARE
	SUM
	PRODUCT
	PREFIX
	CALL
)

var precedences = map[token.Type]int{
	token.OR:    OR_PREC,
	token.AND:   AND_PREC,
	token.EQEQ:  COMPARE,
	token.NEQ:   COMPARE,
	token.LT:    COMPARE,
	token.GT:    COMPARE,
	token.LTE:   COMPARE,
	token.GTE:   COMPARE,
	token.PLUS:  SUM,
	token.MINUS: SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.LPAREN:   CALL,
}

type (
	prefixParseFn func() (*expr.Expr, error)
	infixParseFn  func(*expr.Expr) (*expr.Expr, error)
)

// Parser turns a token stream from lexer.Lexer into RQL statements.
type Parser struct {
	l      *lexer.Lexer
	errors []string

	cur  token.Token
	peek token.Token

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New constructs a Parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.prefixParseFns = map[token.Type]prefixParseFn{
		token.IDENT:    p.parseIdentifierExpr,
		token.INT:      p.parseIntegerLiteral,
		token.FLOAT:    p.parseFloatLiteral,
		token.STRING:   p.parseStringLiteral,
		token.TRUE:     p.parseBoolLiteral,
		token.FALSE:    p.parseBoolLiteral,
		token.NULL:     p.parseNullLiteral,
		token.NOT:      p.parsePrefixExpr,
		token.MINUS:    p.parsePrefixExpr,
		token.BANG:     p.parsePrefixExpr,
		token.LPAREN:   p.parseGroupedExpr,
	}
	p.infixParseFns = map[token.Type]infixParseFn{
		token.PLUS:     p.parseInfixExpr,
		token.MINUS:    p.parseInfixExpr,
		token.ASTERISK: p.parseInfixExpr,
		token.SLASH:    p.parseInfixExpr,
		token.PERCENT:  p.parseInfixExpr,
		token.EQEQ:     p.parseInfixExpr,
		token.NEQ:      p.parseInfixExpr,
		token.LT:       p.parseInfixExpr,
		token.GT:       p.parseInfixExpr,
		token.LTE:      p.parseInfixExpr,
		token.GTE:      p.parseInfixExpr,
		token.AND:      p.parseInfixExpr,
		token.OR:       p.parseInfixExpr,
		token.LPAREN:   p.parseCallExpr,
	}
	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []string { return p.errors }

func (p *Parser) nextToken() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
	for p.peek.Type == token.COMMENT {
		p.peek = p.l.NextToken()
	}
	// ID is a keyword only right after WITH (CREATE DICTIONARY ... WITH ID);
	// anywhere else "id" is an ordinary identifier such as a column name.
	if p.peek.Type == token.ID && !p.curIs(token.WITH) {
		p.peek.Type = token.IDENT
	}
}

func (p *Parser) curIs(t token.Type) bool  { return p.cur.Type == t }
func (p *Parser) peekIs(t token.Type) bool { return p.peek.Type == t }

func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekIs(t) {
		p.nextToken()
		return true
	}
	p.errors = append(p.errors, fmt.Sprintf("line %d: expected next token to be %s, got %s (%q)",
		p.peek.Line, t, p.peek.Type, p.peek.Literal))
	return false
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peek.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.cur.Type]; ok {
		return pr
	}
	return LOWEST
}

// ParseProgram parses every statement in the input, separated by ';'.
func (p *Parser) ParseProgram() ([]ast.Statement, []string) {
	var stmts []ast.Statement
	for !p.curIs(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			p.errors = append(p.errors, err.Error())
			// Skip to the next statement boundary so one bad
			// statement doesn't cascade into spurious errors.
			for !p.curIs(token.SEMICOLON) && !p.curIs(token.EOF) {
				p.nextToken()
			}
		} else {
			if stmt != nil {
				stmts = append(stmts, stmt)
			}
			// Step off the statement's last token onto its terminator.
			p.nextToken()
		}
		if p.curIs(token.SEMICOLON) {
			p.nextToken()
		}
	}
	return stmts, p.errors
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur.Type {
	case token.CREATE:
		return p.parseCreate()
	case token.INSERT:
		return p.parseInsert()
	case token.UPDATE:
		return p.parseUpdate()
	case token.DELETE:
		return p.parseDelete()
	case token.ALTER:
		return p.parseAlter()
	case token.DROP:
		return p.parseDrop()
	case token.FROM, token.FILTER, token.MAP, token.EXTEND, token.TAKE,
		token.SORT, token.JOIN, token.AGGREGATE, token.APPLY:
		return p.parsePipeline()
	default:
		return nil, fmt.Errorf("line %d: unexpected token %s (%q) at start of statement",
			p.cur.Line, p.cur.Type, p.cur.Literal)
	}
}

// --- qualified names -------------------------------------------------------

func (p *Parser) parseQualifiedName() (string, string, error) {
	if !p.curIs(token.IDENT) {
		return "", "", fmt.Errorf("line %d: expected identifier, got %s", p.cur.Line, p.cur.Type)
	}
	first := p.cur.Literal
	if !p.peekIs(token.DOT) {
		return "", first, nil
	}
	p.nextToken() // consume first ident, cur = '.'
	if !p.expectPeek(token.IDENT) {
		return "", "", fmt.Errorf("line %d: expected identifier after '.'", p.cur.Line)
	}
	return first, p.cur.Literal, nil
}

// --- CREATE -----------------------------------------------------------------

func (p *Parser) parseCreate() (ast.Statement, error) {
	switch p.peek.Type {
	case token.NAMESPACE:
		p.nextToken()
		return p.parseCreateNamespace()
	case token.TABLE:
		p.nextToken()
		return p.parseCreateTable()
	case token.VIEW, token.DEFERRED, token.TRANSACTIONAL:
		return p.parseCreateView()
	case token.FLOW:
		p.nextToken()
		return p.parseCreateFlow()
	case token.DICTIONARY:
		p.nextToken()
		return p.parseCreateDictionary()
	default:
		return nil, fmt.Errorf("line %d: unsupported CREATE target %s", p.peek.Line, p.peek.Type)
	}
}

func (p *Parser) parseIfNotExists() bool {
	if p.peekIs(token.IF) {
		p.nextToken()
		if !p.expectPeek(token.NOT) {
			return false
		}
		if !p.expectPeek(token.EXISTS) {
			return false
		}
		return true
	}
	return false
}

func (p *Parser) parseCreateNamespace() (ast.Statement, error) {
	ine := p.parseIfNotExists()
	if !p.expectPeek(token.IDENT) {
		return nil, fmt.Errorf("line %d: expected namespace name", p.cur.Line)
	}
	return &ast.CreateNamespace{IfNotExists: ine, Name: p.cur.Literal}, nil
}

func (p *Parser) parseCreateTable() (ast.Statement, error) {
	ine := p.parseIfNotExists()
	p.nextToken()
	ns, name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseColumnDefs()
	if err != nil {
		return nil, err
	}
	return &ast.CreateTable{IfNotExists: ine, Namespace: ns, Name: name, Columns: cols}, nil
}

func (p *Parser) parseColumnDefs() ([]ast.ColumnDef, error) {
	if !p.expectPeek(token.LBRACE) {
		return nil, fmt.Errorf("line %d: expected '{' to begin column list", p.cur.Line)
	}
	var cols []ast.ColumnDef
	if p.peekIs(token.RBRACE) {
		p.nextToken()
		return cols, nil
	}
	for {
		if !p.expectPeek(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected column name", p.cur.Line)
		}
		name := p.cur.Literal
		if !p.expectPeek(token.COLON) {
			return nil, fmt.Errorf("line %d: expected ':' after column name", p.cur.Line)
		}
		if !p.expectPeek(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected type name", p.cur.Line)
		}
		typ := p.cur.Literal
		var policies []string
		for p.peekIs(token.IDENT) {
			p.nextToken()
			policies = append(policies, p.cur.Literal)
		}
		cols = append(cols, ast.ColumnDef{Name: name, Type: typ, Policies: policies})
		if p.peekIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	if !p.expectPeek(token.RBRACE) {
		return nil, fmt.Errorf("line %d: expected '}' to close column list", p.cur.Line)
	}
	return cols, nil
}

func (p *Parser) parseCreateView() (ast.Statement, error) {
	deferred := true
	if p.peekIs(token.DEFERRED) {
		p.nextToken()
	} else if p.peekIs(token.TRANSACTIONAL) {
		deferred = false
		p.nextToken()
	}
	if !p.expectPeek(token.VIEW) {
		return nil, fmt.Errorf("line %d: expected VIEW", p.cur.Line)
	}
	p.nextToken()
	ns, name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseColumnDefs()
	if err != nil {
		return nil, err
	}
	if !p.expectPeek(token.AS) {
		return nil, fmt.Errorf("line %d: expected AS before view pipeline", p.cur.Line)
	}
	p.nextToken()
	pipe, err := p.parsePipelineBody()
	if err != nil {
		return nil, err
	}
	return &ast.CreateView{Deferred: deferred, Namespace: ns, Name: name, Columns: cols, Pipeline: pipe}, nil
}

func (p *Parser) parseCreateFlow() (ast.Statement, error) {
	p.nextToken()
	ns, name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	if !p.expectPeek(token.AS) {
		return nil, fmt.Errorf("line %d: expected AS before flow pipeline", p.cur.Line)
	}
	p.nextToken()
	pipe, err := p.parsePipelineBody()
	if err != nil {
		return nil, err
	}
	return &ast.CreateFlow{Namespace: ns, Name: name, Pipeline: pipe}, nil
}

func (p *Parser) parseCreateDictionary() (ast.Statement, error) {
	p.nextToken()
	ns, name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	if !p.expectPeek(token.IDENT) {
		return nil, fmt.Errorf("line %d: expected dictionary value type", p.cur.Line)
	}
	valueType := p.cur.Literal
	if !p.expectPeek(token.WITH) {
		return nil, fmt.Errorf("line %d: expected WITH ID <type>", p.cur.Line)
	}
	if !p.expectPeek(token.ID) {
		return nil, fmt.Errorf("line %d: expected ID", p.cur.Line)
	}
	if !p.expectPeek(token.IDENT) {
		return nil, fmt.Errorf("line %d: expected dictionary id type", p.cur.Line)
	}
	return &ast.CreateDictionary{Namespace: ns, Name: name, ValueType: valueType, IDType: p.cur.Literal}, nil
}

// --- INSERT / UPDATE / DELETE ----------------------------------------------

func (p *Parser) parseInsert() (ast.Statement, error) {
	p.nextToken()
	ns, table, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	if !p.expectPeek(token.FROM) {
		return nil, fmt.Errorf("line %d: expected FROM after INSERT target", p.cur.Line)
	}
	if !p.expectPeek(token.LBRACKET) {
		return nil, fmt.Errorf("line %d: expected '[' to begin row list", p.cur.Line)
	}
	var rows []ast.InsertRow
	if p.peekIs(token.RBRACKET) {
		p.nextToken()
		return &ast.Insert{Namespace: ns, Table: table, Rows: rows}, nil
	}
	for {
		row, err := p.parseInsertRow()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.peekIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil, fmt.Errorf("line %d: expected ']' to close row list", p.cur.Line)
	}
	return &ast.Insert{Namespace: ns, Table: table, Rows: rows}, nil
}

func (p *Parser) parseInsertRow() (ast.InsertRow, error) {
	var row ast.InsertRow
	if !p.expectPeek(token.LBRACE) {
		return row, fmt.Errorf("line %d: expected '{' to begin row literal", p.cur.Line)
	}
	if p.peekIs(token.RBRACE) {
		p.nextToken()
		return row, nil
	}
	for {
		if !p.expectPeek(token.IDENT) {
			return row, fmt.Errorf("line %d: expected column name in row literal", p.cur.Line)
		}
		name := p.cur.Literal
		if !p.expectPeek(token.COLON) {
			return row, fmt.Errorf("line %d: expected ':' after column name", p.cur.Line)
		}
		p.nextToken()
		val, err := p.parseExpression(LOWEST)
		if err != nil {
			return row, err
		}
		row.Columns = append(row.Columns, name)
		row.Values = append(row.Values, val)
		if p.peekIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	if !p.expectPeek(token.RBRACE) {
		return row, fmt.Errorf("line %d: expected '}' to close row literal", p.cur.Line)
	}
	return row, nil
}

func (p *Parser) parseUpdate() (ast.Statement, error) {
	p.nextToken()
	ns, table, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	if !p.expectPeek(token.SET) {
		return nil, fmt.Errorf("line %d: expected SET", p.cur.Line)
	}
	var assigns []ast.Assignment
	for {
		if !p.expectPeek(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected column name in SET clause", p.cur.Line)
		}
		col := p.cur.Literal
		if !p.expectPeek(token.EQ) {
			return nil, fmt.Errorf("line %d: expected '=' in SET clause", p.cur.Line)
		}
		p.nextToken()
		val, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, ast.Assignment{Column: col, Value: val})
		if p.peekIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}
	var where *expr.Expr
	if p.peekIs(token.WHERE) {
		p.nextToken()
		p.nextToken()
		where, err = p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
	}
	return &ast.Update{Namespace: ns, Table: table, Assignments: assigns, Where: where}, nil
}

func (p *Parser) parseDelete() (ast.Statement, error) {
	p.nextToken()
	ns, table, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	var where *expr.Expr
	if p.peekIs(token.WHERE) {
		p.nextToken()
		p.nextToken()
		where, err = p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
	}
	return &ast.Delete{Namespace: ns, Table: table, Where: where}, nil
}

// --- ALTER / DROP ------------------------------------------------------------

func (p *Parser) parseAlter() (ast.Statement, error) {
	switch p.peek.Type {
	case token.TABLE:
		p.nextToken()
		return p.parseAlterTable()
	case token.SEQUENCE:
		p.nextToken()
		return p.parseAlterSequence()
	default:
		return nil, fmt.Errorf("line %d: unsupported ALTER target %s", p.peek.Line, p.peek.Type)
	}
}

func (p *Parser) parseAlterTable() (ast.Statement, error) {
	p.nextToken()
	ns, table, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	switch p.peek.Type {
	case token.ADD:
		p.nextToken()
		if !p.expectPeek(token.COLUMN) {
			return nil, fmt.Errorf("line %d: expected COLUMN", p.cur.Line)
		}
		if !p.expectPeek(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected column name", p.cur.Line)
		}
		name := p.cur.Literal
		if !p.expectPeek(token.COLON) {
			return nil, fmt.Errorf("line %d: expected ':'", p.cur.Line)
		}
		if !p.expectPeek(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected type name", p.cur.Line)
		}
		return &ast.AlterTable{Namespace: ns, Table: table, Op: "add_column",
			Column: ast.ColumnDef{Name: name, Type: p.cur.Literal}}, nil
	case token.DROP:
		p.nextToken()
		if !p.expectPeek(token.COLUMN) {
			return nil, fmt.Errorf("line %d: expected COLUMN", p.cur.Line)
		}
		if !p.expectPeek(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected column name", p.cur.Line)
		}
		return &ast.AlterTable{Namespace: ns, Table: table, Op: "drop_column",
			Column: ast.ColumnDef{Name: p.cur.Literal}}, nil
	case token.RENAME:
		p.nextToken()
		if !p.expectPeek(token.COLUMN) {
			return nil, fmt.Errorf("line %d: expected COLUMN", p.cur.Line)
		}
		if !p.expectPeek(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected column name", p.cur.Line)
		}
		from := p.cur.Literal
		if !p.expectPeek(token.TO) {
			return nil, fmt.Errorf("line %d: expected TO", p.cur.Line)
		}
		if !p.expectPeek(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected new column name", p.cur.Line)
		}
		return &ast.AlterTable{Namespace: ns, Table: table, Op: "rename_column",
			RenameFrom: from, RenameTo: p.cur.Literal}, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported ALTER TABLE operation %s", p.peek.Line, p.peek.Type)
	}
}

func (p *Parser) parseAlterSequence() (ast.Statement, error) {
	p.nextToken()
	ns, name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	if !p.expectPeek(token.RENAME) {
		return nil, fmt.Errorf("line %d: expected RENAME", p.cur.Line)
	}
	if !p.expectPeek(token.TO) {
		return nil, fmt.Errorf("line %d: expected TO", p.cur.Line)
	}
	if !p.expectPeek(token.IDENT) {
		return nil, fmt.Errorf("line %d: expected new sequence name", p.cur.Line)
	}
	return &ast.AlterSequence{Namespace: ns, Name: name, RenameTo: p.cur.Literal}, nil
}

func (p *Parser) parseDrop() (ast.Statement, error) {
	kinds := map[token.Type]string{
		token.NAMESPACE:  "namespace",
		token.TABLE:      "table",
		token.VIEW:       "view",
		token.FLOW:       "flow",
		token.DICTIONARY: "dictionary",
		token.SEQUENCE:   "sequence",
	}
	kind, ok := kinds[p.peek.Type]
	if !ok {
		return nil, fmt.Errorf("line %d: unsupported DROP target %s", p.peek.Line, p.peek.Type)
	}
	p.nextToken()
	ifExists := false
	if p.peekIs(token.IF) {
		p.nextToken()
		if !p.expectPeek(token.EXISTS) {
			return nil, fmt.Errorf("line %d: expected EXISTS", p.cur.Line)
		}
		ifExists = true
	}
	p.nextToken()
	ns, name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	return &ast.Drop{Kind: kind, IfExists: ifExists, Namespace: ns, Name: name}, nil
}

// --- pipelines ---------------------------------------------------------------

// parsePipeline parses a bare ad-hoc-query pipeline statement.
func (p *Parser) parsePipeline() (ast.Statement, error) { return p.parsePipelineBody() }

func (p *Parser) parsePipelineBody() (*ast.Pipeline, error) {
	var pipe ast.Pipeline
	for {
		stage, err := p.parseStage()
		if err != nil {
			return nil, err
		}
		pipe.Stages = append(pipe.Stages, stage)
		if p.peekIs(token.PIPE) {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	return &pipe, nil
}

func (p *Parser) parseStage() (ast.Stage, error) {
	switch p.cur.Type {
	case token.FROM:
		p.nextToken()
		ns, name, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		return &ast.FromStage{Namespace: ns, Name: name}, nil
	case token.FILTER:
		p.nextToken()
		e, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		return &ast.FilterStage{Predicate: e}, nil
	case token.MAP:
		return p.parseMapOrExtend(false)
	case token.EXTEND:
		return p.parseMapOrExtend(true)
	case token.TAKE:
		if !p.expectPeek(token.INT) {
			return nil, fmt.Errorf("line %d: expected row count after TAKE", p.cur.Line)
		}
		n, _ := strconv.Atoi(p.cur.Literal)
		return &ast.TakeStage{N: n}, nil
	case token.SORT:
		return p.parseSort()
	case token.JOIN, token.INNER, token.LEFT, token.RIGHT, token.FULL:
		return p.parseJoin()
	case token.AGGREGATE:
		return p.parseAggregate()
	case token.APPLY:
		p.nextToken()
		if !p.curIs(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected column name after APPLY", p.cur.Line)
		}
		col := p.cur.Literal
		if !p.expectPeek(token.EQ) {
			return nil, fmt.Errorf("line %d: expected '=' after APPLY column", p.cur.Line)
		}
		p.nextToken()
		e, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		return &ast.ApplyStage{Column: col, Expr: e}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown pipeline stage %s", p.cur.Line, p.cur.Type)
	}
}

// parseMapOrExtend parses a "MAP name: expr, ..." or "EXTEND [...]" stage,
// tolerating an optional surrounding '[' ']'.
func (p *Parser) parseMapOrExtend(extend bool) (ast.Stage, error) {
	p.nextToken()
	bracketed := p.curIs(token.LBRACKET)
	if bracketed {
		p.nextToken()
	}
	var names []string
	var exprs []*expr.Expr
	for {
		if !p.curIs(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected projection name", p.cur.Line)
		}
		name := p.cur.Literal
		if !p.expectPeek(token.COLON) {
			return nil, fmt.Errorf("line %d: expected ':' after projection name", p.cur.Line)
		}
		p.nextToken()
		e, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		exprs = append(exprs, e)
		if p.peekIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	if bracketed {
		if !p.expectPeek(token.RBRACKET) {
			return nil, fmt.Errorf("line %d: expected ']'", p.cur.Line)
		}
	}
	return &ast.MapStage{Names: names, Exprs: exprs, Extend: extend}, nil
}

func (p *Parser) parseSort() (ast.Stage, error) {
	p.nextToken()
	var cols []ast.SortColumn
	for {
		if !p.curIs(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected column name in SORT", p.cur.Line)
		}
		col := ast.SortColumn{Name: p.cur.Literal}
		if p.peekIs(token.ASC) {
			p.nextToken()
		} else if p.peekIs(token.DESC) {
			p.nextToken()
			col.Desc = true
		}
		cols = append(cols, col)
		if p.peekIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	return &ast.SortStage{Columns: cols}, nil
}

func (p *Parser) parseJoin() (ast.Stage, error) {
	kind := "inner"
	switch p.cur.Type {
	case token.INNER:
		p.nextToken()
	case token.LEFT:
		kind = "left"
		p.nextToken()
	case token.RIGHT:
		kind = "right"
		p.nextToken()
	case token.FULL:
		kind = "full"
		p.nextToken()
		if p.curIs(token.OUTER) {
			p.nextToken()
		}
	}
	if !p.curIs(token.JOIN) {
		return nil, fmt.Errorf("line %d: expected JOIN", p.cur.Line)
	}
	p.nextToken()
	ns, name, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	if !p.expectPeek(token.ON) {
		return nil, fmt.Errorf("line %d: expected ON after join source", p.cur.Line)
	}
	p.nextToken()
	var leftKeys, rightKeys []*expr.Expr
	for {
		l, err := p.parseExpression(COMPARE + 1)
		if err != nil {
			return nil, err
		}
		if !p.peekIs(token.EQEQ) && !p.peekIs(token.EQ) {
			return nil, fmt.Errorf("line %d: expected '==' in join condition", p.peek.Line)
		}
		p.nextToken()
		p.nextToken()
		r, err := p.parseExpression(COMPARE + 1)
		if err != nil {
			return nil, err
		}
		leftKeys = append(leftKeys, l)
		rightKeys = append(rightKeys, r)
		if p.peekIs(token.AND) {
			p.nextToken()
			p.nextToken()
			continue
		}
		break
	}
	return &ast.JoinStage{Kind: kind, Namespace: ns, Name: name, LeftKeys: leftKeys, RightKeys: rightKeys}, nil
}

func (p *Parser) parseAggregate() (ast.Stage, error) {
	if !p.expectPeek(token.BY) {
		return nil, fmt.Errorf("line %d: expected BY after AGGREGATE", p.cur.Line)
	}
	if !p.expectPeek(token.EQ) {
		return nil, fmt.Errorf("line %d: expected '=' after BY", p.cur.Line)
	}
	if !p.expectPeek(token.LBRACKET) {
		return nil, fmt.Errorf("line %d: expected '[' to begin grouping key list", p.cur.Line)
	}
	var byNames []string
	var by []*expr.Expr
	if !p.peekIs(token.RBRACKET) {
		for {
			p.nextToken()
			if p.curIs(token.IDENT) {
				byNames = append(byNames, p.cur.Literal)
			}
			e, err := p.parseExpression(LOWEST)
			if err != nil {
				return nil, err
			}
			by = append(by, e)
			if p.peekIs(token.COMMA) {
				p.nextToken()
				continue
			}
			break
		}
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil, fmt.Errorf("line %d: expected ']'", p.cur.Line)
	}
	if !p.expectPeek(token.LBRACE) {
		return nil, fmt.Errorf("line %d: expected '{' to begin aggregate list", p.cur.Line)
	}
	var aggs []ast.AggExpr
	if !p.peekIs(token.RBRACE) {
		for {
			if !p.expectPeek(token.IDENT) {
				return nil, fmt.Errorf("line %d: expected aggregate name", p.cur.Line)
			}
			name := p.cur.Literal
			if !p.expectPeek(token.COLON) {
				return nil, fmt.Errorf("line %d: expected ':' after aggregate name", p.cur.Line)
			}
			if !p.expectPeek(token.IDENT) {
				return nil, fmt.Errorf("line %d: expected aggregate function name", p.cur.Line)
			}
			fn := p.cur.Literal
			if !p.expectPeek(token.LPAREN) {
				return nil, fmt.Errorf("line %d: expected '(' after aggregate function", p.cur.Line)
			}
			var arg *expr.Expr
			if !p.peekIs(token.RPAREN) {
				p.nextToken()
				var err error
				arg, err = p.parseExpression(LOWEST)
				if err != nil {
					return nil, err
				}
			}
			if !p.expectPeek(token.RPAREN) {
				return nil, fmt.Errorf("line %d: expected ')'", p.cur.Line)
			}
			aggs = append(aggs, ast.AggExpr{Name: name, Func: fn, Arg: arg})
			if p.peekIs(token.COMMA) {
				p.nextToken()
				continue
			}
			break
		}
	}
	if !p.expectPeek(token.RBRACE) {
		return nil, fmt.Errorf("line %d: expected '}'", p.cur.Line)
	}
	return &ast.AggregateStage{ByNames: byNames, By: by, Aggs: aggs}, nil
}

// --- expressions (Pratt parser over internal/exec/expr.Expr) ---------------

func (p *Parser) parseExpression(precedence int) (*expr.Expr, error) {
	prefix, ok := p.prefixParseFns[p.cur.Type]
	if !ok {
		return nil, fmt.Errorf("line %d: no prefix parse function for %s (%q)", p.cur.Line, p.cur.Type, p.cur.Literal)
	}
	left, err := prefix()
	if err != nil {
		return nil, err
	}
	for !p.peekIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix, ok := p.infixParseFns[p.peek.Type]
		if !ok {
			return left, nil
		}
		p.nextToken()
		left, err = infix(left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) parseIdentifierExpr() (*expr.Expr, error) {
	name := p.cur.Literal
	// A qualified reference "source.column" resolves to the column name;
	// columns are looked up by their bare name.
	for p.peekIs(token.DOT) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil, fmt.Errorf("line %d: expected column name after '.'", p.cur.Line)
		}
		name = p.cur.Literal
	}
	return &expr.Expr{Kind: expr.NodeColumnRef, ColumnName: name}, nil
}

func (p *Parser) parseIntegerLiteral() (*expr.Expr, error) {
	n, err := strconv.ParseInt(p.cur.Literal, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("line %d: invalid integer literal %q: %w", p.cur.Line, p.cur.Literal, err)
	}
	return &expr.Expr{Kind: expr.NodeLiteral, Literal: value.Value{Kind: value.KindInt8, Int: n, Defined: true}}, nil
}

func (p *Parser) parseFloatLiteral() (*expr.Expr, error) {
	f, err := strconv.ParseFloat(p.cur.Literal, 64)
	if err != nil {
		return nil, fmt.Errorf("line %d: invalid float literal %q: %w", p.cur.Line, p.cur.Literal, err)
	}
	return &expr.Expr{Kind: expr.NodeLiteral, Literal: value.Value{Kind: value.KindFloat8, Float: f, Defined: true}}, nil
}

func (p *Parser) parseStringLiteral() (*expr.Expr, error) {
	return &expr.Expr{Kind: expr.NodeLiteral, Literal: value.Value{Kind: value.KindUtf8, Str: p.cur.Literal, Defined: true}}, nil
}

func (p *Parser) parseBoolLiteral() (*expr.Expr, error) {
	return &expr.Expr{Kind: expr.NodeLiteral,
		Literal: value.Value{Kind: value.KindBoolean, Bool: p.curIs(token.TRUE), Defined: true}}, nil
}

func (p *Parser) parseNullLiteral() (*expr.Expr, error) {
	return &expr.Expr{Kind: expr.NodeLiteral, Literal: value.Undefined(value.KindAny)}, nil
}

func (p *Parser) parsePrefixExpr() (*expr.Expr, error) {
	op := p.cur.Type
	p.nextToken()
	right, err := p.parseExpression(PREFIX)
	if err != nil {
		return nil, err
	}
	if op == token.NOT || op == token.BANG {
		return &expr.Expr{Kind: expr.NodeLogical, Op: uint8(expr.Not), Children: []*expr.Expr{right}}, nil
	}
	// MINUS: 0 - right
	zero := &expr.Expr{Kind: expr.NodeLiteral, Literal: value.Value{Kind: value.KindInt8, Defined: true}}
	return &expr.Expr{Kind: expr.NodeArithmetic, Op: uint8(expr.Sub), Children: []*expr.Expr{zero, right}}, nil
}

func (p *Parser) parseGroupedExpr() (*expr.Expr, error) {
	p.nextToken()
	e, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if !p.expectPeek(token.RPAREN) {
		return nil, fmt.Errorf("line %d: expected ')'", p.cur.Line)
	}
	return e, nil
}

var arithOps = map[token.Type]expr.ArithOp{
	token.PLUS: expr.Add, token.MINUS: expr.Sub, token.ASTERISK: expr.Mul,
	token.SLASH: expr.Div, token.PERCENT: expr.Mod,
}

var cmpOps = map[token.Type]expr.CmpOp{
	token.EQEQ: expr.Eq, token.NEQ: expr.Ne, token.LT: expr.Lt,
	token.LTE: expr.Le, token.GT: expr.Gt, token.GTE: expr.Ge,
}

func (p *Parser) parseInfixExpr(left *expr.Expr) (*expr.Expr, error) {
	op := p.cur.Type
	precedence := p.curPrecedence()
	p.nextToken()
	right, err := p.parseExpression(precedence)
	if err != nil {
		return nil, err
	}
	switch {
	case op == token.AND:
		return &expr.Expr{Kind: expr.NodeLogical, Op: uint8(expr.And), Children: []*expr.Expr{left, right}}, nil
	case op == token.OR:
		return &expr.Expr{Kind: expr.NodeLogical, Op: uint8(expr.Or), Children: []*expr.Expr{left, right}}, nil
	default:
		if cop, ok := cmpOps[op]; ok {
			return &expr.Expr{Kind: expr.NodeComparison, Op: uint8(cop), Children: []*expr.Expr{left, right}}, nil
		}
		if aop, ok := arithOps[op]; ok {
			return &expr.Expr{Kind: expr.NodeArithmetic, Op: uint8(aop), Children: []*expr.Expr{left, right}}, nil
		}
		return nil, fmt.Errorf("line %d: unsupported infix operator %s", p.cur.Line, op)
	}
}

func (p *Parser) parseCallExpr(fn *expr.Expr) (*expr.Expr, error) {
	if fn.Kind != expr.NodeColumnRef {
		return nil, fmt.Errorf("line %d: call target must be a function name", p.cur.Line)
	}
	name := fn.ColumnName
	args, err := p.parseExpressionList(token.RPAREN)
	if err != nil {
		return nil, err
	}
	return &expr.Expr{Kind: expr.NodeFunctionCall, FuncName: name, Args: args}, nil
}

func (p *Parser) parseExpressionList(end token.Type) ([]*expr.Expr, error) {
	var list []*expr.Expr
	if p.peekIs(end) {
		p.nextToken()
		return list, nil
	}
	p.nextToken()
	e, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	list = append(list, e)
	for p.peekIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		e, err := p.parseExpression(LOWEST)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	if !p.expectPeek(end) {
		return nil, fmt.Errorf("line %d: expected %s to close argument list", p.cur.Line, end)
	}
	return list, nil
}
