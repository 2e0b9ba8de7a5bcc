package lexer

import (
	"testing"

	"github.com/ss-lang/ss/internal/token"
)

func kinds(t *testing.T, toks []token.Token) []token.Kind {
	t.Helper()
	out := make([]token.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestScanEmptySourceIsJustEOF(t *testing.T) {
	toks, err := Scan("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(toks) != 1 || toks[0].Kind != token.EndOfFile {
		t.Fatalf("expected single EOF token, got %v", toks)
	}
}

func TestScanCommentOnlyIsEmpty(t *testing.T) {
	toks, err := Scan("# just a comment\n# another")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(toks) != 1 || toks[0].Kind != token.EndOfFile {
		t.Fatalf("expected single EOF token, got %v", toks)
	}
}

func TestScanArithmeticAndPrecedenceTokens(t *testing.T) {
	toks, err := Scan("print 1 + 2 * 3;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []token.Kind{token.Print, token.Number, token.Plus, token.Number, token.Star, token.Number, token.Semicolon, token.EndOfFile}
	got := kinds(t, toks)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanOneOrTwoCharacterTokens(t *testing.T) {
	toks, err := Scan("! != = == => < <= > >=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []token.Kind{
		token.Bang, token.BangEqual, token.Equal, token.EqualEqual, token.Arrow,
		token.Less, token.LessEqual, token.Greater, token.GreaterEqual, token.EndOfFile,
	}
	got := kinds(t, toks)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanStringLiteralKeepsDelimitersInLexeme(t *testing.T) {
	toks, err := Scan(`"hello"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Kind != token.String || toks[0].Lexeme != `"hello"` {
		t.Fatalf("got %v", toks[0])
	}
}

func TestScanUnterminatedStringIsCompileError(t *testing.T) {
	_, err := Scan(`"hello`)
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestScanIdentifierAllowsUnderscoreAndAt(t *testing.T) {
	toks, err := Scan("_foo @bar baz123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if toks[i].Kind != token.Identifier {
			t.Fatalf("token %d: got %v, want identifier", i, toks[i])
		}
	}
}

func TestScanKeywords(t *testing.T) {
	src := "and break class continue else false fn for if let load loadr loop match nil or print return true while"
	toks, err := Scan(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []token.Kind{
		token.And, token.Break, token.Class, token.Continue, token.Else, token.False,
		token.Fn, token.For, token.If, token.Let, token.Load, token.Loadr, token.Loop,
		token.Match, token.Nil, token.Or, token.Print, token.Return, token.True, token.While,
		token.EndOfFile,
	}
	got := kinds(t, toks)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanNumberFractional(t *testing.T) {
	toks, err := Scan("3.14")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Kind != token.Number || toks[0].Lexeme != "3.14" {
		t.Fatalf("got %v", toks[0])
	}
}

func TestScanLineAndColumnTracking(t *testing.T) {
	toks, err := Scan("let x = 1;\nlet y = 2;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Line != 1 {
		t.Fatalf("expected first token on line 1, got %d", toks[0].Line)
	}
	if toks[1].Column != 5 {
		t.Fatalf("expected 'x' at column 5, got %d", toks[1].Column)
	}
	if toks[5].Line != 2 || toks[5].Column != 1 {
		t.Fatalf("expected second 'let' at 2:1, got %d:%d", toks[5].Line, toks[5].Column)
	}
	var foundLine2 bool
	for _, tok := range toks {
		if tok.Line == 2 {
			foundLine2 = true
		}
	}
	if !foundLine2 {
		t.Fatalf("expected a token on line 2")
	}
}
