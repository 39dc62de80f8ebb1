package parser

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer maps the raw string tokens out for our AST definitions. Keywords are
// plain identifiers matched case-insensitively by the grammar, so ids such as
// "end-boss" still lex as one token.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[a-zA-Z_][\w-]*`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
	{Name: "Punct", Pattern: `[:,]`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

// Build creates our parser based on the struct tags in `ast.go`
func Build() *participle.Parser[Command] {
	return participle.MustBuild[Command](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.CaseInsensitive("Ident"),
		participle.UseLookahead(2),
	)
}
