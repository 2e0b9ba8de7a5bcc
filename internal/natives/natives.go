// Package natives is the native function table exposed to ss programs,
// grounded in the teacher's RegisterBuiltins pattern
// (internal/evaluator/builtins.go): every native is a small Go closure
// keyed by name, installed into a VM as a global at startup.
package natives

import (
	"time"

	"github.com/ss-lang/ss/internal/vm"
)

// spec struct describes one native before it is bound to a VM: its arity
// and implementation, independent of any particular VM instance.
type spec struct {
	arity int
	fn    vm.NativeFn
}

// table is the full set of natives ss ships with. clock is the one spec §6
// mandates; str and len are additive (SPEC_FULL.md's supplemented
// features), grounded the same way the teacher registers its own builtins.
var table = map[string]spec{
	"clock": {arity: 0, fn: clock},
	"str":   {arity: 1, fn: str},
	"len":   {arity: 1, fn: length},
}

// Register installs every native in the table as a global on m.
func Register(m *vm.VM) {
	for name, s := range table {
		m.DefineNative(name, s.arity, s.fn)
	}
}

// clock returns the number of seconds since the Unix epoch, as a Number
// (spec §6.4's one mandated native).
func clock(args []vm.Value) (vm.Value, error) {
	return vm.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

// str renders any Value the same way PRINT does.
func str(args []vm.Value) (vm.Value, error) {
	return vm.String(args[0].String()), nil
}

// length returns a string's byte length; any other argument kind is a
// runtime error built by vm.ArgTypeError ("len expected a string argument
// but got <type>").
func length(args []vm.Value) (vm.Value, error) {
	v := args[0]
	if !v.IsString() {
		return vm.Nil, vm.ArgTypeError("len", "string", v)
	}
	return vm.Number(float64(len(v.AsString()))), nil
}
