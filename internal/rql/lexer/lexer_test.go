package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reifydb/reifydb-sub032/internal/rql/token"
)

func TestNextTokenSymbols(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []token.Type
	}{
		{
			name:  "operators",
			input: "+ - * / % = == != < > <= >= !",
			want: []token.Type{
				token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT,
				token.EQ, token.EQEQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE, token.BANG,
				token.EOF,
			},
		},
		{
			name:  "punctuation",
			input: ", ; : . | ( ) { } [ ] ?",
			want: []token.Type{
				token.COMMA, token.SEMICOLON, token.COLON, token.DOT, token.PIPE,
				token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.LBRACKET, token.RBRACKET,
				token.PLACEHOLDER, token.EOF,
			},
		},
		{
			name:  "empty input is immediate EOF",
			input: "",
			want:  []token.Type{token.EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.input)
			var got []token.Type
			for {
				tok := l.NextToken()
				got = append(got, tok.Type)
				if tok.Type == token.EOF {
					break
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextTokenKeywordsAreCaseInsensitive(t *testing.T) {
	tests := []struct {
		input string
		want  token.Type
	}{
		{"FROM", token.FROM},
		{"from", token.FROM},
		{"From", token.FROM},
		{"FILTER", token.FILTER},
		{"aggregate", token.AGGREGATE},
		{"not_a_keyword", token.IDENT},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			tok := l.NextToken()
			assert.Equal(t, tt.want, tok.Type)
			assert.Equal(t, tt.input, tok.Literal)
		})
	}
}

func TestNextTokenNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   token.Type
		lit   string
	}{
		{"123", token.INT, "123"},
		{"1.5", token.FLOAT, "1.5"},
		{".5", token.FLOAT, ".5"},
		{"1e10", token.FLOAT, "1e10"},
		{"1.5e-3", token.FLOAT, "1.5e-3"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			tok := l.NextToken()
			assert.Equal(t, tt.typ, tok.Type)
			assert.Equal(t, tt.lit, tok.Literal)
		})
	}
}

func TestNextTokenString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "'hello'", "hello"},
		{"empty", "''", ""},
		{"escaped quote", "'it''s'", "it's"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.input)
			tok := l.NextToken()
			assert.Equal(t, token.STRING, tok.Type)
			assert.Equal(t, tt.want, tok.Literal)
		})
	}
}

func TestNextTokenComments(t *testing.T) {
	l := New("FROM -- trailing comment\n| /* block\ncomment */ TAKE")
	var kinds []token.Type
	for {
		tok := l.NextToken()
		kinds = append(kinds, tok.Type)
		if tok.Type == token.EOF {
			break
		}
	}
	assert.Equal(t, []token.Type{
		token.FROM, token.COMMENT, token.PIPE, token.COMMENT, token.TAKE, token.EOF,
	}, kinds)
}

func TestNextTokenIllegal(t *testing.T) {
	l := New("@")
	tok := l.NextToken()
	assert.Equal(t, token.ILLEGAL, tok.Type)
	assert.Equal(t, "@", tok.Literal)
}

func TestNextTokenTracksLineAndColumn(t *testing.T) {
	l := New("a\nb")
	first := l.NextToken()
	assert.Equal(t, 1, first.Line)
	second := l.NextToken()
	assert.Equal(t, 2, second.Line)
}
