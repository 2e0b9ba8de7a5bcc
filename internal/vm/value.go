// Package vm implements the Chunk bytecode container, the single-pass Pratt
// compiler, and the stack-machine interpreter for ss.
package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant of Value is active.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindFunction
	KindNative
	KindAddress
)

// Function is the static, shared representation of a compiled ss function.
type Function struct {
	Name    string
	Arity   int
	EntryIP int
}

// NativeFn is the callable backing a Native value. It receives its
// arguments in source order and must return exactly one Value.
type NativeFn func(args []Value) (Value, error)

// Native is a host-provided function exposed to ss programs.
type Native struct {
	Name  string
	Arity int
	Fn    NativeFn
}

// Value is a tagged sum of every runtime value ss programs manipulate. It is
// deliberately a plain struct with an exhaustive Kind switch rather than a
// Go interface with one implementation per variant: the value model has a
// small, closed set of variants and no subclassing, so a discriminated union
// keeps arithmetic and comparison (§4.1) in one place instead of scattered
// across per-type methods.
type Value struct {
	kind   Kind
	number float64
	str    string
	fn     *Function
	native *Native
	addr   int
	bl     bool
}

var Nil = Value{kind: KindNil}

func Bool(b bool) Value { return Value{kind: KindBool, bl: b} }

func Number(n float64) Value { return Value{kind: KindNumber, number: n} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func FunctionValue(fn *Function) Value { return Value{kind: KindFunction, fn: fn} }

func NativeValue(n *Native) Value { return Value{kind: KindNative, native: n} }

func Address(i int) Value { return Value{kind: KindAddress, addr: i} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsString() bool { return v.kind == KindString }

func (v Value) AsBool() bool          { return v.bl }
func (v Value) AsNumber() float64     { return v.number }
func (v Value) AsString() string      { return v.str }
func (v Value) AsFunction() *Function { return v.fn }
func (v Value) AsNative() *Native     { return v.native }
func (v Value) AsAddress() int        { return v.addr }

// Truthy implements spec §3.1's predicate: Nil is false, Bool is itself,
// everything else is true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.bl
	default:
		return true
	}
}

// TypeName names the variant, for error messages.
func (v Value) TypeName() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	case KindNative:
		return "native"
	case KindAddress:
		return "address"
	default:
		return "unknown"
	}
}

// numberToString renders a Number the way string concatenation with a
// Number needs to (spec §4.1: "lexical decimal form"). Integral values print
// without a trailing ".0"; non-finite values print their IEEE names.
func numberToString(n float64) string {
	if math.IsNaN(n) {
		return "nan"
	}
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// String renders v for PRINT and for string concatenation with other types.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return boolToString(v.bl)
	case KindNumber:
		return numberToString(v.number)
	case KindString:
		return v.str
	case KindFunction:
		return fmt.Sprintf("<fn %s>", v.fn.Name)
	case KindNative:
		return fmt.Sprintf("<native %s>", v.native.Name)
	case KindAddress:
		return fmt.Sprintf("<address %d>", v.addr)
	default:
		return "<unknown>"
	}
}

// Equals implements spec §3.1's structural, variant-tagged equality.
func (v Value) Equals(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.bl == other.bl
	case KindNumber:
		return v.number == other.number
	case KindString:
		return v.str == other.str
	case KindFunction:
		return v.fn == other.fn
	case KindNative:
		return v.native == other.native
	case KindAddress:
		return v.addr == other.addr
	default:
		return false
	}
}

// compareResult orders same-variant ordered pairs (Number, String, Bool,
// Nil). -2 means "not comparable" (different variants, or an unordered
// variant pairing); spec §9 says such cases return false for every
// relational operator rather than erroring.
func compareResult(a, b Value) int {
	if a.kind != b.kind {
		return -2
	}
	switch a.kind {
	case KindNumber:
		switch {
		case a.number < b.number:
			return -1
		case a.number > b.number:
			return 1
		default:
			return 0
		}
	case KindString:
		return strings.Compare(a.str, b.str)
	case KindBool:
		if a.bl == b.bl {
			return 0
		}
		if !a.bl && b.bl {
			return -1
		}
		return 1
	case KindNil:
		return 0
	default:
		return -2
	}
}

func repeatString(s string, n float64) string {
	count := int(math.Floor(n))
	if count < 0 {
		count = 0
	}
	return strings.Repeat(s, count)
}
