package vm

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ss-lang/ss/internal/lexer"
	"github.com/ss-lang/ss/internal/token"
)

// precedence is one of the Pratt climber's levels, ascending.
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool) error

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// rules is the Pratt table: token kind -> {prefix, infix, precedence}. A
// kind absent from the map has the zero rule (no prefix, no infix,
// precNone), which is exactly what an un-ruled token needs.
var rules map[token.Kind]parseRule

func init() {
	rules = map[token.Kind]parseRule{
		token.LeftParen:    {prefix: groupingExpr, infix: callExpr, precedence: precCall},
		token.Minus:        {prefix: unaryExpr, infix: binaryExpr, precedence: precTerm},
		token.Plus:         {infix: binaryExpr, precedence: precTerm},
		token.Slash:        {infix: binaryExpr, precedence: precFactor},
		token.Star:         {infix: binaryExpr, precedence: precFactor},
		token.Percent:      {infix: binaryExpr, precedence: precFactor},
		token.Bang:         {prefix: unaryExpr},
		token.BangEqual:    {infix: binaryExpr, precedence: precEquality},
		token.EqualEqual:   {infix: binaryExpr, precedence: precEquality},
		token.Greater:      {infix: binaryExpr, precedence: precComparison},
		token.GreaterEqual: {infix: binaryExpr, precedence: precComparison},
		token.Less:         {infix: binaryExpr, precedence: precComparison},
		token.LessEqual:    {infix: binaryExpr, precedence: precComparison},
		token.Identifier:   {prefix: makeVariable},
		token.String:       {prefix: makeString},
		token.Number:       {prefix: makeNumber},
		token.And:          {infix: andExpr, precedence: precAnd},
		token.Or:           {infix: orExpr, precedence: precOr},
		token.False:        {prefix: literalExpr},
		token.True:         {prefix: literalExpr},
		token.Nil:          {prefix: literalExpr},
	}
}

// local tracks one declared-but-maybe-not-yet-usable binding during
// compilation (spec §3.5). An empty name marks a slot the call convention
// reserves (the callee itself, the saved caller sp, the return address)
// rather than something a program can name.
type local struct {
	name        string
	depth       int
	initialized bool
}

// loopCtx is the compiler's loop-context stack entry (spec §3.5).
type loopCtx struct {
	depth          int // len(locals) at loop entry; break/continue pop down to this
	continueTarget int
	breakJumps     []int
}

// FileSystem is the external collaborator the compiler asks to resolve
// `load`/`loadr` source text from a path (spec §6's "peripheral... file
// I/O" collaborator).
type FileSystem interface {
	ReadFile(path string) (string, error)
}

type osFileSystem struct{}

func (osFileSystem) ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

// Compiler is a single-pass Pratt parser: it consumes a flat token stream
// and emits directly into a Chunk. There is no intermediate AST (spec
// §4.3).
type Compiler struct {
	chunk   *Chunk
	tokens  []token.Token
	current int

	file    string
	fs      FileSystem
	libPath []string

	locals     []local
	scopeDepth int
	loops      []loopCtx

	inFunc    bool
	funcArity int

	included map[string]bool
}

// NewCompiler returns a Compiler that will emit into chunk. included is the
// shared cycle guard for `load`/`loadr` across this whole compile (and any
// recursive loads it triggers); pass a fresh empty map for a new top-level
// compile.
func NewCompiler(chunk *Chunk, file string, fs FileSystem, included map[string]bool) *Compiler {
	if fs == nil {
		fs = osFileSystem{}
	}
	if included == nil {
		included = make(map[string]bool)
	}
	return &Compiler{chunk: chunk, file: file, fs: fs, included: included, libPath: defaultLibPath()}
}

// SetLibPath overrides the directories `load` searches for a non-absolute
// path (`loadr` does not use them), replacing the SS_LIB-derived
// default. The CLI uses this to thread ssconfig's resolved path in.
func (c *Compiler) SetLibPath(dirs []string) {
	c.libPath = dirs
}

// Compile scans source and compiles it into chunk, continuing to append
// after whatever chunk already contains (the mechanism that lets a REPL
// reuse one Chunk across lines, spec §4.5.4).
func Compile(chunk *Chunk, source, file string) error {
	return CompileWithFS(chunk, source, file, nil, nil)
}

// CompileWithFS is Compile with an injectable FileSystem and included-path
// set, for embedding or for tests that want to fake `load`/`loadr`.
func CompileWithFS(chunk *Chunk, source, file string, fs FileSystem, included map[string]bool) error {
	tokens, err := lexer.Scan(source)
	if err != nil {
		return err
	}
	c := NewCompiler(chunk, file, fs, included)
	return c.run(tokens)
}

// CompileTokens compiles an already-scanned token stream with this
// Compiler's configuration (lib path, included set). Exposed so a caller
// that needs SetLibPath (the CLI) can scan once and drive compilation
// explicitly instead of going through the package-level Compile helper.
func (c *Compiler) CompileTokens(tokens []token.Token) error {
	return c.run(tokens)
}

func defaultLibPath() []string {
	if raw := os.Getenv("SS_LIB"); raw != "" {
		return strings.Split(raw, ":")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return []string{filepath.Join(home, ".simple")}
	}
	return nil
}

func (c *Compiler) run(tokens []token.Token) error {
	c.tokens = tokens
	c.current = 0
	for !c.check(token.EndOfFile) {
		if err := c.declaration(); err != nil {
			return err
		}
	}
	return nil
}

// --- token stream helpers ---

func (c *Compiler) peek() token.Token { return c.tokens[c.current] }

func (c *Compiler) prev() token.Token {
	if c.current == 0 {
		return c.tokens[0]
	}
	return c.tokens[c.current-1]
}

func (c *Compiler) advance() token.Token {
	t := c.tokens[c.current]
	if c.current < len(c.tokens)-1 {
		c.current++
	}
	return t
}

func (c *Compiler) check(k token.Kind) bool { return c.peek().Kind == k }

func (c *Compiler) match(k token.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(k token.Kind, msg string) (token.Token, error) {
	if c.check(k) {
		return c.advance(), nil
	}
	return token.Token{}, c.errAtCurrent(msg)
}

func (c *Compiler) errAtCurrent(msg string) error {
	return c.errAt(c.peek(), msg)
}

func (c *Compiler) errAt(t token.Token, msg string) error {
	return newCompileError(t.Line, t.Column, "%s", msg)
}

func (c *Compiler) emitAt(op Opcode, payload uint, line int) int {
	return c.chunk.Emit(op, payload, line)
}

func (c *Compiler) patchJump(offset int) {
	target := uint(len(c.chunk.Code) - offset)
	c.chunk.Patch(offset, target)
}

func (c *Compiler) emitLoop(target int, line int) {
	offset := c.chunk.Emit(OP_LOOP, 0, line)
	c.chunk.Patch(offset, uint(offset-target))
}

// --- scope & locals ---

// beginScope enters a new lexical scope and returns a scope guard: calling
// it emits the OP_POP_N that discards every local declared since entry and
// truncates the locals list. Callers invoke it via defer so the cleanup
// runs on both the normal and the error exit from the wrapped parse (spec
// §5 "scoped acquisition", §9's RAII-style scope handle).
func (c *Compiler) beginScope() func(line int) {
	c.scopeDepth++
	base := len(c.locals)
	return func(line int) {
		c.scopeDepth--
		n := len(c.locals) - base
		c.locals = c.locals[:base]
		if n > 0 {
			c.emitAt(OP_POP_N, uint(n), line)
		}
	}
}

func (c *Compiler) declareLocal(name token.Token) error {
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth < c.scopeDepth {
			break
		}
		if l.name == name.Lexeme {
			return c.errAt(name, fmt.Sprintf("variable '%s' already declared in this scope", name.Lexeme))
		}
	}
	c.locals = append(c.locals, local{name: name.Lexeme, depth: c.scopeDepth, initialized: false})
	return nil
}

func (c *Compiler) defineLocal(name string) {
	c.locals[len(c.locals)-1].initialized = true
	c.chunk.NameLocal(len(c.locals)-1, name)
}

func (c *Compiler) resolveLocal(name string) (slot int, found, initialized bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i, true, c.locals[i].initialized
		}
	}
	return 0, false, false
}

// --- declarations & statements (spec §4.3.2) ---

func (c *Compiler) declaration() error {
	switch {
	case c.match(token.Let):
		return c.letDeclaration()
	case c.match(token.Fn):
		return c.fnDeclaration()
	case c.match(token.Load):
		return c.loadDeclaration(false)
	case c.match(token.Loadr):
		return c.loadDeclaration(true)
	default:
		return c.statement()
	}
}

func (c *Compiler) statement() error {
	switch {
	case c.match(token.Print):
		return c.printStatement()
	case c.match(token.LeftBrace):
		return c.blockStatement()
	case c.match(token.If):
		return c.ifStatement()
	case c.match(token.While):
		return c.whileStatement()
	case c.match(token.Loop):
		return c.loopStatement()
	case c.match(token.For):
		return c.forStatement()
	case c.match(token.Match):
		return c.matchStatement()
	case c.match(token.Return):
		return c.returnStatement()
	case c.match(token.Break):
		return c.breakStatement()
	case c.match(token.Continue):
		return c.continueStatement()
	default:
		return c.expressionStatement()
	}
}

func (c *Compiler) letDeclaration() error {
	nameTok, err := c.consume(token.Identifier, "expected variable name")
	if err != nil {
		return err
	}

	isGlobal := c.scopeDepth == 0
	var globalIdx uint
	if isGlobal {
		globalIdx = c.chunk.Intern(nameTok.Lexeme)
	} else if err := c.declareLocal(nameTok); err != nil {
		return err
	}

	if c.match(token.Equal) {
		if err := c.expression(); err != nil {
			return err
		}
	} else {
		c.emitAt(OP_NIL, 0, nameTok.Line)
	}
	if _, err := c.consume(token.Semicolon, "expected ';' after variable declaration"); err != nil {
		return err
	}

	if isGlobal {
		c.emitAt(OP_DEFINE_GLOBAL, globalIdx, nameTok.Line)
	} else {
		c.defineLocal(nameTok.Lexeme)
	}
	return nil
}

func (c *Compiler) printStatement() error {
	line := c.prev().Line
	if err := c.expression(); err != nil {
		return err
	}
	if _, err := c.consume(token.Semicolon, "expected ';' after value"); err != nil {
		return err
	}
	c.emitAt(OP_PRINT, 0, line)
	return nil
}

func (c *Compiler) expressionStatement() error {
	line := c.peek().Line
	if err := c.expression(); err != nil {
		return err
	}
	if _, err := c.consume(token.Semicolon, "expected ';' after expression"); err != nil {
		return err
	}
	c.emitAt(OP_POP, 0, line)
	return nil
}

func (c *Compiler) blockStatement() error {
	endScope := c.beginScope()
	defer func() { endScope(c.prev().Line) }()
	for !c.check(token.RightBrace) && !c.check(token.EndOfFile) {
		if err := c.declaration(); err != nil {
			return err
		}
	}
	_, err := c.consume(token.RightBrace, "expected '}' after block")
	return err
}

func (c *Compiler) ifStatement() error {
	line := c.prev().Line
	if err := c.expression(); err != nil {
		return err
	}
	thenJump := c.emitAt(OP_JUMP_IF_FALSE, 0, line)
	c.emitAt(OP_POP, 0, line)
	if err := c.statement(); err != nil {
		return err
	}
	elseJump := c.emitAt(OP_JUMP, 0, line)
	c.patchJump(thenJump)
	c.emitAt(OP_POP, 0, line)
	if c.match(token.Else) {
		if err := c.statement(); err != nil {
			return err
		}
	}
	c.patchJump(elseJump)
	return nil
}

func (c *Compiler) whileStatement() error {
	line := c.prev().Line
	loopStart := len(c.chunk.Code)
	if err := c.expression(); err != nil {
		return err
	}
	exitJump := c.emitAt(OP_JUMP_IF_FALSE, 0, line)
	c.emitAt(OP_POP, 0, line)

	c.loops = append(c.loops, loopCtx{depth: len(c.locals), continueTarget: loopStart})
	err := c.statement()
	loop := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	if err != nil {
		return err
	}

	c.emitLoop(loopStart, line)
	c.patchJump(exitJump)
	c.emitAt(OP_POP, 0, line)
	for _, bj := range loop.breakJumps {
		c.patchJump(bj)
	}
	return nil
}

func (c *Compiler) loopStatement() error {
	line := c.prev().Line
	loopStart := len(c.chunk.Code)

	c.loops = append(c.loops, loopCtx{depth: len(c.locals), continueTarget: loopStart})
	err := c.statement()
	loop := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	if err != nil {
		return err
	}

	c.emitLoop(loopStart, line)
	for _, bj := range loop.breakJumps {
		c.patchJump(bj)
	}
	return nil
}

func (c *Compiler) forStatement() error {
	line := c.prev().Line
	endScope := c.beginScope()
	defer func() { endScope(c.prev().Line) }()

	if _, err := c.consume(token.LeftParen, "expected '(' after 'for'"); err != nil {
		return err
	}

	switch {
	case c.match(token.Semicolon):
		// no initializer
	case c.match(token.Let):
		if err := c.letDeclaration(); err != nil {
			return err
		}
	default:
		if err := c.expressionStatement(); err != nil {
			return err
		}
	}

	loopStart := len(c.chunk.Code)
	exitJump := -1
	if !c.check(token.Semicolon) {
		if err := c.expression(); err != nil {
			return err
		}
		exitJump = c.emitAt(OP_JUMP_IF_FALSE, 0, line)
		c.emitAt(OP_POP, 0, line)
	}
	if _, err := c.consume(token.Semicolon, "expected ';' after loop condition"); err != nil {
		return err
	}

	if !c.check(token.RightParen) {
		bodyJump := c.emitAt(OP_JUMP, 0, line)
		incrStart := len(c.chunk.Code)
		if err := c.expression(); err != nil {
			return err
		}
		c.emitAt(OP_POP, 0, line)
		if _, err := c.consume(token.RightParen, "expected ')' after for clauses"); err != nil {
			return err
		}
		c.emitLoop(loopStart, line)
		loopStart = incrStart
		c.patchJump(bodyJump)
	} else if _, err := c.consume(token.RightParen, "expected ')' after for clauses"); err != nil {
		return err
	}

	if _, err := c.consume(token.LeftBrace, "expected '{' after for clauses"); err != nil {
		return err
	}
	c.loops = append(c.loops, loopCtx{depth: len(c.locals), continueTarget: loopStart})
	err := c.blockStatement()
	loop := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]
	if err != nil {
		return err
	}

	c.emitLoop(loopStart, line)
	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitAt(OP_POP, 0, line)
	}
	for _, bj := range loop.breakJumps {
		c.patchJump(bj)
	}
	return nil
}

func (c *Compiler) matchStatement() error {
	line := c.prev().Line
	if err := c.expression(); err != nil {
		return err
	}
	if _, err := c.consume(token.LeftBrace, "expected '{' after match value"); err != nil {
		return err
	}

	var endJumps []int
	for !c.check(token.RightBrace) && !c.check(token.EndOfFile) {
		armLine := c.peek().Line
		if err := c.matchPattern(); err != nil {
			return err
		}
		c.emitAt(OP_CHECK, 0, armLine)
		skipJump := c.emitAt(OP_JUMP_IF_FALSE, 0, armLine)
		c.emitAt(OP_POP, 0, armLine)
		if _, err := c.consume(token.Arrow, "expected '=>' after match pattern"); err != nil {
			return err
		}
		if err := c.statement(); err != nil {
			return err
		}
		endJumps = append(endJumps, c.emitAt(OP_JUMP, 0, armLine))
		c.patchJump(skipJump)
		c.emitAt(OP_POP, 0, armLine)
	}
	if _, err := c.consume(token.RightBrace, "expected '}' after match arms"); err != nil {
		return err
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.emitAt(OP_POP, 0, line)
	return nil
}

func (c *Compiler) matchPattern() error {
	switch {
	case c.check(token.Number):
		c.advance()
		return makeNumber(c, false)
	case c.check(token.String):
		c.advance()
		return makeString(c, false)
	case c.check(token.True), c.check(token.False), c.check(token.Nil):
		c.advance()
		return literalExpr(c, false)
	default:
		return c.errAtCurrent("expected a literal pattern")
	}
}

func (c *Compiler) breakStatement() error {
	line := c.prev().Line
	if len(c.loops) == 0 {
		return c.errAt(c.prev(), "'break' outside of a loop")
	}
	if _, err := c.consume(token.Semicolon, "expected ';' after 'break'"); err != nil {
		return err
	}
	loop := &c.loops[len(c.loops)-1]
	if n := len(c.locals) - loop.depth; n > 0 {
		c.emitAt(OP_POP_N, uint(n), line)
	}
	loop.breakJumps = append(loop.breakJumps, c.emitAt(OP_JUMP, 0, line))
	return nil
}

func (c *Compiler) continueStatement() error {
	line := c.prev().Line
	if len(c.loops) == 0 {
		return c.errAt(c.prev(), "'continue' outside of a loop")
	}
	if _, err := c.consume(token.Semicolon, "expected ';' after 'continue'"); err != nil {
		return err
	}
	loop := c.loops[len(c.loops)-1]
	if n := len(c.locals) - loop.depth; n > 0 {
		c.emitAt(OP_POP_N, uint(n), line)
	}
	c.emitLoop(loop.continueTarget, line)
	return nil
}

// fnDeclaration compiles `fn NAME ( params... ) { body }`. Functions are
// only ever top-level: the call convention (§4.5.2) has no upvalues, so a
// nested function could not see its enclosing locals anyway.
func (c *Compiler) fnDeclaration() error {
	fnLine := c.prev().Line
	if c.scopeDepth != 0 {
		return c.errAt(c.prev(), "functions may only be declared at the top level")
	}
	nameTok, err := c.consume(token.Identifier, "expected function name")
	if err != nil {
		return err
	}
	if _, err := c.consume(token.LeftParen, "expected '(' after function name"); err != nil {
		return err
	}
	var params []token.Token
	if !c.check(token.RightParen) {
		for {
			p, err := c.consume(token.Identifier, "expected parameter name")
			if err != nil {
				return err
			}
			params = append(params, p)
			if !c.match(token.Comma) {
				break
			}
		}
	}
	if _, err := c.consume(token.RightParen, "expected ')' after parameters"); err != nil {
		return err
	}
	if _, err := c.consume(token.LeftBrace, "expected '{' before function body"); err != nil {
		return err
	}

	// A forward jump over the body, so top-level execution flows around it;
	// entry_ip is the jump's own offset. CALL sets ip here and relies on the
	// dispatch loop's unconditional ip++ to land on the first body
	// instruction, skipping the jump (see DESIGN.md for how this is
	// grounded in the reference VM's call convention).
	jumpOverBody := c.emitAt(OP_JUMP, 0, fnLine)

	fn := &Function{Name: nameTok.Lexeme, Arity: len(params), EntryIP: jumpOverBody}
	constIdx := c.chunk.AddConstant(FunctionValue(fn))

	savedLocals, savedScopeDepth := c.locals, c.scopeDepth
	savedInFunc, savedArity := c.inFunc, c.funcArity
	savedLoops := c.loops

	c.locals = []local{{name: "", depth: 1, initialized: true}} // slot 0: the callee
	for _, p := range params {
		c.locals = append(c.locals, local{name: p.Lexeme, depth: 1, initialized: true})
	}
	c.locals = append(c.locals,
		local{name: "", depth: 1, initialized: true}, // saved caller sp
		local{name: "", depth: 1, initialized: true}, // return address
	)
	c.scopeDepth = 1
	c.inFunc, c.funcArity = true, len(params)
	c.loops = nil

	bodyErr := c.functionBody(fnLine)

	c.locals, c.scopeDepth = savedLocals, savedScopeDepth
	c.inFunc, c.funcArity = savedInFunc, savedArity
	c.loops = savedLoops
	if bodyErr != nil {
		return bodyErr
	}

	c.patchJump(jumpOverBody)

	globalIdx := c.chunk.Intern(nameTok.Lexeme)
	c.emitAt(OP_CONSTANT, constIdx, fnLine)
	c.emitAt(OP_DEFINE_GLOBAL, globalIdx, fnLine)
	return nil
}

func (c *Compiler) functionBody(fnLine int) error {
	for !c.check(token.RightBrace) && !c.check(token.EndOfFile) {
		if err := c.declaration(); err != nil {
			return err
		}
	}
	closeTok, err := c.consume(token.RightBrace, "expected '}' after function body")
	if err != nil {
		return err
	}
	// Implicit `return nil;` if the body falls off the end. Dead code when
	// the last statement already returned, since that already redirected
	// ip away from here.
	c.emitAt(OP_NIL, 0, closeTok.Line)
	c.emitReturn(closeTok.Line)
	return nil
}

func (c *Compiler) returnStatement() error {
	line := c.prev().Line
	if !c.inFunc {
		return c.errAt(c.prev(), "'return' outside of a function")
	}
	if err := c.expression(); err != nil {
		return err
	}
	if _, err := c.consume(token.Semicolon, "expected ';' after return value"); err != nil {
		return err
	}
	c.emitReturn(line)
	return nil
}

// emitReturn discards any locals the function body declared beyond its
// fixed call-frame baseline (callee + params + saved-sp + return-address)
// and emits RETURN with the function's arity, matching the pop sequence
// the reference VM's RETURN case performs.
func (c *Compiler) emitReturn(line int) {
	baseline := 1 + c.funcArity + 2
	if n := len(c.locals) - baseline; n > 0 {
		c.emitAt(OP_MOVE, uint(n), line)
		c.emitAt(OP_POP_N, uint(n), line)
	}
	c.emitAt(OP_RETURN, uint(c.funcArity), line)
}

func (c *Compiler) loadDeclaration(relative bool) error {
	kwTok := c.prev()
	if c.scopeDepth != 0 {
		return c.errAt(kwTok, "'load' and 'loadr' may only appear at the top level")
	}
	pathTok, err := c.consume(token.String, "expected a path string")
	if err != nil {
		return err
	}
	if _, err := c.consume(token.Semicolon, "expected ';' after path"); err != nil {
		return err
	}
	rawPath := pathTok.Lexeme[1 : len(pathTok.Lexeme)-1]

	resolved, src, err := c.loadSource(rawPath, relative)
	if err != nil {
		return c.errAt(pathTok, err.Error())
	}
	if c.included[resolved] {
		return nil // cycle guard: a repeat inclusion is a no-op
	}
	c.included[resolved] = true

	tokens, err := lexer.Scan(src)
	if err != nil {
		return err
	}
	sub := &Compiler{chunk: c.chunk, file: resolved, fs: c.fs, included: c.included, libPath: c.libPath}
	return sub.run(tokens)
}

func (c *Compiler) loadSource(path string, relative bool) (resolved, src string, err error) {
	if relative {
		resolved = filepath.Join(filepath.Dir(c.file), path)
		src, err = c.fs.ReadFile(resolved)
		return resolved, src, err
	}
	if filepath.IsAbs(path) {
		src, err = c.fs.ReadFile(path)
		return path, src, err
	}
	for _, dir := range c.libPath {
		candidate := filepath.Join(dir, path)
		if s, e := c.fs.ReadFile(candidate); e == nil {
			return candidate, s, nil
		}
	}
	return "", "", fmt.Errorf("could not find '%s' on SS_LIB path", path)
}

// --- expressions (spec §4.3.1) ---

func (c *Compiler) expression() error {
	return c.parsePrecedence(precAssignment)
}

func (c *Compiler) parsePrecedence(prec precedence) error {
	tok := c.advance()
	rule := rules[tok.Kind]
	if rule.prefix == nil {
		return c.errAt(tok, fmt.Sprintf("expected an expression, got '%s'", tok.Lexeme))
	}
	canAssign := prec <= precAssignment
	if err := rule.prefix(c, canAssign); err != nil {
		return err
	}
	for prec <= rules[c.peek().Kind].precedence {
		opTok := c.advance()
		infix := rules[opTok.Kind].infix
		if err := infix(c, canAssign); err != nil {
			return err
		}
	}
	if canAssign && c.match(token.Equal) {
		return c.errAt(c.prev(), "invalid assignment target")
	}
	return nil
}

func groupingExpr(c *Compiler, _ bool) error {
	if err := c.expression(); err != nil {
		return err
	}
	_, err := c.consume(token.RightParen, "expected ')' after expression")
	return err
}

func unaryExpr(c *Compiler, _ bool) error {
	opTok := c.prev()
	if err := c.parsePrecedence(precUnary); err != nil {
		return err
	}
	switch opTok.Kind {
	case token.Bang:
		c.emitAt(OP_NOT, 0, opTok.Line)
	case token.Minus:
		c.emitAt(OP_NEGATE, 0, opTok.Line)
	}
	return nil
}

func binaryExpr(c *Compiler, _ bool) error {
	opTok := c.prev()
	rule := rules[opTok.Kind]
	if err := c.parsePrecedence(rule.precedence + 1); err != nil {
		return err
	}
	switch opTok.Kind {
	case token.Plus:
		c.emitAt(OP_ADD, 0, opTok.Line)
	case token.Minus:
		c.emitAt(OP_SUB, 0, opTok.Line)
	case token.Star:
		c.emitAt(OP_MUL, 0, opTok.Line)
	case token.Slash:
		c.emitAt(OP_DIV, 0, opTok.Line)
	case token.Percent:
		c.emitAt(OP_MOD, 0, opTok.Line)
	case token.EqualEqual:
		c.emitAt(OP_EQUAL, 0, opTok.Line)
	case token.BangEqual:
		c.emitAt(OP_NOT_EQUAL, 0, opTok.Line)
	case token.Greater:
		c.emitAt(OP_GREATER, 0, opTok.Line)
	case token.GreaterEqual:
		c.emitAt(OP_GREATER_EQUAL, 0, opTok.Line)
	case token.Less:
		c.emitAt(OP_LESS, 0, opTok.Line)
	case token.LessEqual:
		c.emitAt(OP_LESS_EQUAL, 0, opTok.Line)
	}
	return nil
}

func literalExpr(c *Compiler, _ bool) error {
	tok := c.prev()
	switch tok.Kind {
	case token.Nil:
		c.emitAt(OP_NIL, 0, tok.Line)
	case token.True:
		c.emitAt(OP_TRUE, 0, tok.Line)
	case token.False:
		c.emitAt(OP_FALSE, 0, tok.Line)
	}
	return nil
}

func makeNumber(c *Compiler, _ bool) error {
	tok := c.prev()
	n, err := strconv.ParseFloat(tok.Lexeme, 64)
	if err != nil {
		return c.errAt(tok, "invalid number literal")
	}
	idx := c.chunk.AddConstant(Number(n))
	c.emitAt(OP_CONSTANT, idx, tok.Line)
	return nil
}

func makeString(c *Compiler, _ bool) error {
	tok := c.prev()
	s := tok.Lexeme[1 : len(tok.Lexeme)-1]
	idx := c.chunk.AddConstant(String(s))
	c.emitAt(OP_CONSTANT, idx, tok.Line)
	return nil
}

func makeVariable(c *Compiler, canAssign bool) error {
	return c.namedVariable(c.prev(), canAssign)
}

func (c *Compiler) namedVariable(name token.Token, canAssign bool) error {
	slot, isLocal, initialized := c.resolveLocal(name.Lexeme)
	if isLocal && !initialized {
		return c.errAt(name, "can't read variable in its own initializer")
	}

	var idx uint
	if isLocal {
		idx = uint(slot)
	} else {
		idx = c.chunk.Intern(name.Lexeme)
	}

	if canAssign && c.match(token.Equal) {
		if err := c.expression(); err != nil {
			return err
		}
		if isLocal {
			c.emitAt(OP_ASSIGN_LOCAL, idx, name.Line)
		} else {
			c.emitAt(OP_ASSIGN_GLOBAL, idx, name.Line)
		}
		return nil
	}

	if isLocal {
		c.emitAt(OP_LOOKUP_LOCAL, idx, name.Line)
	} else {
		c.emitAt(OP_LOOKUP_GLOBAL, idx, name.Line)
	}
	return nil
}

func andExpr(c *Compiler, _ bool) error {
	line := c.prev().Line
	jump := c.emitAt(OP_AND, 0, line)
	if err := c.parsePrecedence(precAnd); err != nil {
		return err
	}
	c.patchJump(jump)
	return nil
}

func orExpr(c *Compiler, _ bool) error {
	line := c.prev().Line
	jump := c.emitAt(OP_OR, 0, line)
	if err := c.parsePrecedence(precOr); err != nil {
		return err
	}
	c.patchJump(jump)
	return nil
}

// callExpr implements the call convention's caller side (spec §4.5.2):
// the callee is already on the stack (pushed by the preceding prefix
// rule); this compiles the arguments, then emits PUSH_SP to save the frame
// pointer, then a return-address constant patched once the call site's
// layout is known, then CALL.
func callExpr(c *Compiler, _ bool) error {
	line := c.prev().Line
	argc, err := c.argumentList()
	if err != nil {
		return err
	}
	c.emitAt(OP_PUSH_SP, uint(argc), line)
	retIdx := c.chunk.AddConstant(Nil)
	c.emitAt(OP_CONSTANT, retIdx, line)
	c.emitAt(OP_CALL, uint(argc), line)
	c.chunk.Constants[retIdx] = Address(len(c.chunk.Code))
	return nil
}

func (c *Compiler) argumentList() (int, error) {
	argc := 0
	if !c.check(token.RightParen) {
		for {
			if err := c.expression(); err != nil {
				return 0, err
			}
			argc++
			if !c.match(token.Comma) {
				break
			}
		}
	}
	_, err := c.consume(token.RightParen, "expected ')' after arguments")
	return argc, err
}
