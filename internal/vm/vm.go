package vm

import (
	"fmt"
	"io"
	"math"
)

// DebugFlags mirrors the reference VM's config toggles (spec §6.3): each
// one independently enables a piece of diagnostic output around Execute.
type DebugFlags struct {
	DisassembleChunk       bool
	DisassembleInstruction bool
	PrintStack             bool
	PrintConstants         bool
}

// VM interprets the instructions in a Chunk. It is deliberately small:
// almost all state (the operand stack, globals, constants) lives on the
// Chunk itself so a REPL can swap VMs across compiles without losing
// program state, while ip and fp are the VM's own because they describe
// where execution currently is, not what the program contains.
type VM struct {
	chunk *Chunk
	ip    int
	fp    int // absolute stack index of the active call frame's slot 0

	Out   io.Writer
	Debug DebugFlags
}

// New returns a VM bound to chunk, ready to Execute from instruction 0.
func New(chunk *Chunk, out io.Writer) *VM {
	return &VM{chunk: chunk, Out: out}
}

func (vm *VM) push(v Value)          { vm.chunk.push(v) }
func (vm *VM) pop() Value            { return vm.chunk.pop() }
func (vm *VM) peek(distance int) Value { return vm.chunk.peek(distance) }

func (vm *VM) popN(n int) {
	vm.chunk.Stack = vm.chunk.Stack[:len(vm.chunk.Stack)-n]
}

// DefineNative installs fn as a global Native value callable from ss source
// under name (spec §6.4's native ABI).
func (vm *VM) DefineNative(name string, arity int, fn NativeFn) {
	vm.chunk.Globals[name] = NativeValue(&Native{Name: name, Arity: arity, Fn: fn})
}

// Execute runs the dispatch loop starting at the VM's current ip and
// returns when it reaches the end of the compiled code (or an explicit
// OP_END), leaving ip there so a subsequent compile-and-Execute round (the
// REPL's unit of work, spec §6.2) resumes exactly where this one stopped.
func (vm *VM) Execute() error {
	if vm.Debug.DisassembleChunk {
		fmt.Fprint(vm.Out, Disassemble(vm.chunk, "chunk"))
	}
	if vm.Debug.PrintConstants {
		fmt.Fprint(vm.Out, DisassembleConstants(vm.chunk))
	}
	for vm.ip < len(vm.chunk.Code) {
		instr := vm.chunk.Code[vm.ip]

		if vm.Debug.PrintStack {
			fmt.Fprintf(vm.Out, "          %v\n", vm.chunk.Stack)
		}
		if vm.Debug.DisassembleInstruction {
			fmt.Fprintln(vm.Out, DisassembleInstruction(vm.chunk, vm.ip))
		}

		switch instr.Opcode {
		case OP_NO_OP:
			// nothing

		case OP_CONSTANT:
			vm.push(vm.chunk.Constants[instr.Payload])
		case OP_NIL:
			vm.push(Nil)
		case OP_TRUE:
			vm.push(Bool(true))
		case OP_FALSE:
			vm.push(Bool(false))

		case OP_POP:
			vm.pop()
		case OP_POP_N:
			vm.popN(int(instr.Payload))
		case OP_SWAP:
			n := len(vm.chunk.Stack)
			vm.chunk.Stack[n-1], vm.chunk.Stack[n-2] = vm.chunk.Stack[n-2], vm.chunk.Stack[n-1]
		case OP_MOVE:
			top := vm.peek(0)
			target := len(vm.chunk.Stack) - 1 - int(instr.Payload)
			vm.chunk.Stack[target] = top

		case OP_LOOKUP_LOCAL:
			vm.push(vm.chunk.Stack[vm.fp+int(instr.Payload)])
		case OP_ASSIGN_LOCAL:
			vm.chunk.Stack[vm.fp+int(instr.Payload)] = vm.peek(0)
		case OP_LOOKUP_GLOBAL:
			name := vm.chunk.Identifier(instr.Payload)
			v, ok := vm.chunk.Globals[name]
			if !ok {
				return errUndefinedGlobal(name)
			}
			vm.push(v)
		case OP_DEFINE_GLOBAL:
			name := vm.chunk.Identifier(instr.Payload)
			if _, exists := vm.chunk.Globals[name]; exists {
				return errGlobalAlreadyDefined(name)
			}
			vm.chunk.Globals[name] = vm.pop()
		case OP_ASSIGN_GLOBAL:
			name := vm.chunk.Identifier(instr.Payload)
			if _, exists := vm.chunk.Globals[name]; !exists {
				return errUndefinedGlobal(name)
			}
			vm.chunk.Globals[name] = vm.peek(0)

		case OP_EQUAL:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(a.Equals(b)))
		case OP_NOT_EQUAL:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(!a.Equals(b)))
		case OP_GREATER:
			if err := vm.compare(func(r int) bool { return r == 1 }); err != nil {
				return err
			}
		case OP_GREATER_EQUAL:
			if err := vm.compare(func(r int) bool { return r == 1 || r == 0 }); err != nil {
				return err
			}
		case OP_LESS:
			if err := vm.compare(func(r int) bool { return r == -1 }); err != nil {
				return err
			}
		case OP_LESS_EQUAL:
			if err := vm.compare(func(r int) bool { return r == -1 || r == 0 }); err != nil {
				return err
			}
		case OP_CHECK:
			v := vm.pop()
			vm.push(Bool(vm.peek(0).Equals(v)))

		case OP_ADD:
			if err := vm.add(); err != nil {
				return err
			}
		case OP_SUB:
			if err := vm.arith("subtract", func(a, b float64) float64 { return a - b }); err != nil {
				return err
			}
		case OP_MUL:
			if err := vm.mul(); err != nil {
				return err
			}
		case OP_DIV:
			if err := vm.arith("divide", func(a, b float64) float64 { return a / b }); err != nil {
				return err
			}
		case OP_MOD:
			if err := vm.arith("modulo", math.Mod); err != nil {
				return err
			}

		case OP_NOT:
			vm.push(Bool(!vm.pop().Truthy()))
		case OP_NEGATE:
			v := vm.pop()
			if !v.IsNumber() {
				return newRuntimeError("unable to negate a %s", v.TypeName())
			}
			vm.push(Number(-v.AsNumber()))

		case OP_AND:
			if !vm.peek(0).Truthy() {
				vm.ip += int(instr.Payload)
				continue
			}
			vm.pop()
		case OP_OR:
			if vm.peek(0).Truthy() {
				vm.ip += int(instr.Payload)
				continue
			}
			vm.pop()

		case OP_PRINT:
			fmt.Fprintln(vm.Out, vm.pop().String())

		case OP_JUMP:
			vm.ip += int(instr.Payload)
			continue
		case OP_JUMP_IF_FALSE:
			if !vm.peek(0).Truthy() {
				vm.ip += int(instr.Payload)
				continue
			}
		case OP_LOOP:
			vm.ip -= int(instr.Payload)
			continue

		case OP_PUSH_SP:
			argc := int(instr.Payload)
			calleeIdx := len(vm.chunk.Stack) - 1 - argc
			vm.push(Address(vm.fp))
			vm.fp = calleeIdx

		case OP_CALL:
			if err := vm.call(int(instr.Payload)); err != nil {
				return err
			}

		case OP_RETURN:
			arity := int(instr.Payload)
			retval := vm.pop()
			retAddr := vm.pop()
			savedFP := vm.pop()
			if retAddr.Kind() != KindAddress {
				return errInvalidReturnAddress()
			}
			vm.popN(arity + 1) // callee + args
			vm.fp = savedFP.AsAddress()
			vm.push(retval)
			vm.ip = retAddr.AsAddress()
			continue

		case OP_END:
			return nil

		default:
			return errUnknownOpcode(instr.Opcode)
		}

		vm.ip++
	}
	return nil
}

// call implements the CALL side of the call convention (spec §4.5.2). The
// stack above the callee, top to bottom, is: return address, saved frame
// pointer, args in reverse push order, callee.
func (vm *VM) call(argc int) error {
	callee := vm.peek(argc + 2)

	switch callee.Kind() {
	case KindFunction:
		fn := callee.AsFunction()
		if argc != fn.Arity {
			return errArity(fn.Name, fn.Arity, argc)
		}
		vm.ip = fn.EntryIP
		return nil

	case KindNative:
		native := callee.AsNative()
		if argc != native.Arity {
			return errArity(native.Name, native.Arity, argc)
		}
		vm.pop() // return address: unused, natives never redirect ip
		savedFP := vm.pop()
		args := make([]Value, argc)
		for i := argc - 1; i >= 0; i-- {
			args[i] = vm.pop()
		}
		vm.pop() // callee

		result, err := native.Fn(args)
		if err != nil {
			return err
		}
		vm.fp = savedFP.AsAddress()
		vm.push(result)
		return nil

	default:
		return errNotCallable(callee)
	}
}

func (vm *VM) compare(accept func(result int) bool) error {
	b, a := vm.pop(), vm.pop()
	r := compareResult(a, b)
	if r == -2 {
		vm.push(Bool(false))
		return nil
	}
	vm.push(Bool(accept(r)))
	return nil
}

// add implements spec §4.1's overloaded ADD: number+number sums, and
// string+string, string+number and string+bool (number or bool on either
// side) concatenate using each operand's rendered text. Any other pairing is
// a runtime error.
func (vm *VM) add() error {
	b, a := vm.pop(), vm.pop()
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.push(Number(a.AsNumber() + b.AsNumber()))
	case a.IsString() && b.IsString():
		vm.push(String(a.AsString() + b.AsString()))
	case a.IsString() && b.IsNumber():
		vm.push(String(a.AsString() + b.String()))
	case a.IsNumber() && b.IsString():
		vm.push(String(a.String() + b.AsString()))
	case a.IsString() && b.IsBool():
		vm.push(String(a.AsString() + b.String()))
	case a.IsBool() && b.IsString():
		vm.push(String(a.String() + b.AsString()))
	default:
		return errUnableToOperate("add", a, b)
	}
	return nil
}

// mul implements spec §4.1's overloaded MUL: number*number multiplies, and
// number*string or string*number (either order) repeats the string floor(n)
// times via repeatString.
func (vm *VM) mul() error {
	b, a := vm.pop(), vm.pop()
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.push(Number(a.AsNumber() * b.AsNumber()))
	case a.IsString() && b.IsNumber():
		vm.push(String(repeatString(a.AsString(), b.AsNumber())))
	case a.IsNumber() && b.IsString():
		vm.push(String(repeatString(b.AsString(), a.AsNumber())))
	default:
		return errUnableToOperate("multiply", a, b)
	}
	return nil
}

func (vm *VM) arith(op string, fn func(a, b float64) float64) error {
	b, a := vm.pop(), vm.pop()
	if !a.IsNumber() || !b.IsNumber() {
		return errUnableToOperate(op, a, b)
	}
	vm.push(Number(fn(a.AsNumber(), b.AsNumber())))
	return nil
}
