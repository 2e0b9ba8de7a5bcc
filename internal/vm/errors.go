package vm

import "fmt"

// CompileError is raised by the compiler. It carries the source position of
// the failure and is never recovered: compilation of the current input
// terminates (spec §4.3.4, §7). Scanner failures reach callers as
// *lexer.Error, which formats the same way.
type CompileError struct {
	Line    int
	Column  int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%d:%d -> %s", e.Line, e.Column, e.Message)
}

func newCompileError(line, col int, format string, args ...any) *CompileError {
	return &CompileError{Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}

// RuntimeError is raised by the VM dispatch loop or by a native function.
// It aborts the current execute() call (spec §7).
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string {
	return e.Message
}

func newRuntimeError(format string, args ...any) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...)}
}

// Error messages for type errors in binary operations (spec §4.1).
func errUnableToOperate(op string, lhs, rhs Value) error {
	return newRuntimeError("unable to %s invalid types (%s %s %s)", op, lhs.TypeName(), op, rhs.TypeName())
}

func errUndefinedGlobal(name string) error {
	return newRuntimeError("undefined variable '%s'", name)
}

func errGlobalAlreadyDefined(name string) error {
	return newRuntimeError("global variable '%s' is already defined", name)
}

func errArity(name string, want, got int) error {
	return newRuntimeError("expected %d arguments to '%s' but got %d", want, name, got)
}

func errNotCallable(v Value) error {
	return newRuntimeError("value of type '%s' is not callable", v.TypeName())
}

func errInvalidReturnAddress() error {
	return newRuntimeError("invalid return address on the stack")
}

func errUnknownOpcode(op Opcode) error {
	return newRuntimeError("unknown opcode %d", op)
}

// ArgTypeError is the error a native should return when an argument's
// runtime type doesn't match what it expects (exported so internal/natives
// and any future host-provided native can report this uniformly).
func ArgTypeError(native, want string, got Value) error {
	return newRuntimeError("%s expected a %s argument but got %s", native, want, got.TypeName())
}
