// Package token defines the lexical tokens produced by the scanner and
// consumed by the compiler.
package token

// Kind identifies the category of a Token.
type Kind byte

const (
	// Single-character tokens.
	LeftParen Kind = iota
	RightParen
	LeftBrace
	RightBrace
	Comma
	Dot
	Semicolon
	Plus
	Minus
	Star
	Slash
	Percent

	// One-or-two character tokens.
	Bang
	BangEqual
	Equal
	EqualEqual
	Arrow
	Greater
	GreaterEqual
	Less
	LessEqual

	// Literals.
	Identifier
	String
	Number

	// Keywords.
	And
	Break
	Class
	Continue
	Else
	False
	Fn
	For
	If
	Let
	Load
	Loadr
	Loop
	Match
	Nil
	Or
	Print
	Return
	True
	While

	Error
	EndOfFile
)

// kindNames mirrors Kind for diagnostics and disassembly; index by Kind.
var kindNames = [...]string{
	LeftParen: "(", RightParen: ")", LeftBrace: "{", RightBrace: "}",
	Comma: ",", Dot: ".", Semicolon: ";",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	Bang: "!", BangEqual: "!=", Equal: "=", EqualEqual: "==", Arrow: "=>",
	Greater: ">", GreaterEqual: ">=", Less: "<", LessEqual: "<=",
	Identifier: "identifier", String: "string", Number: "number",
	And: "and", Break: "break", Class: "class", Continue: "continue",
	Else: "else", False: "false", Fn: "fn", For: "for", If: "if",
	Let: "let", Load: "load", Loadr: "loadr", Loop: "loop", Match: "match",
	Nil: "nil", Or: "or", Print: "print", Return: "return", True: "true",
	While: "while", Error: "error", EndOfFile: "eof",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Keywords maps a spelling to its keyword Kind. Anything absent is a plain
// identifier.
var Keywords = map[string]Kind{
	"and":      And,
	"break":    Break,
	"class":    Class,
	"continue": Continue,
	"else":     Else,
	"false":    False,
	"fn":       Fn,
	"for":      For,
	"if":       If,
	"let":      Let,
	"load":     Load,
	"loadr":    Loadr,
	"loop":     Loop,
	"match":    Match,
	"nil":      Nil,
	"or":       Or,
	"print":    Print,
	"return":   Return,
	"true":     True,
	"while":    While,
}

// Token is a lexical unit: a kind, a view into the source, and a position.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
	Column int
}

func (t Token) String() string {
	return t.Kind.String() + " " + t.Lexeme
}
