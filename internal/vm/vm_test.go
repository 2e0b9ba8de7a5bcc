package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ss-lang/ss/internal/vm"
)

func run(t *testing.T, source string) string {
	t.Helper()
	chunk := vm.NewChunk()
	if err := vm.Compile(chunk, source, "<test>"); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := vm.New(chunk, &out)
	if err := m.Execute(); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return out.String()
}

func lines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestEndToEndScenarios(t *testing.T) {
	testCases := []struct {
		name   string
		source string
		want   []string
	}{
		{
			name:   "print_literal",
			source: `print "hello";`,
			want:   []string{"hello"},
		},
		{
			name:   "arithmetic_precedence",
			source: `print 2 + 3 * 4;`,
			want:   []string{"14"},
		},
		{
			name: "globals_across_statements",
			source: `let x = 10;
let y = x + 5;
print y;
y = y + 1;
print y;`,
			want: []string{"15", "16"},
		},
		{
			name: "if_else",
			source: `let x = 5;
if (x > 3) {
	print "big";
} else {
	print "small";
}`,
			want: []string{"big"},
		},
		{
			name: "while_and_break",
			source: `let i = 0;
while (true) {
	i = i + 1;
	if (i == 3) { break; }
}
print i;`,
			want: []string{"3"},
		},
		{
			name: "function_call",
			source: `fn add(a, b) {
	return a + b;
}
print add(2, 3);`,
			want: []string{"5"},
		},
		{
			name: "recursive_function_call",
			source: `fn fact(n) {
	if (n <= 1) { return 1; }
	return n * fact(n - 1);
}
print fact(5);`,
			want: []string{"120"},
		},
		{
			name: "short_circuit_and",
			source: `fn boom() {
	print "boom";
	return true;
}
print false and boom();`,
			want: []string{"false"},
		},
		{
			name: "short_circuit_or",
			source: `fn boom() {
	print "boom";
	return true;
}
print true or boom();`,
			want: []string{"true"},
		},
		{
			name:   "string_number_concat",
			source: `print "ab" + 3;`,
			want:   []string{"ab3"},
		},
		{
			name:   "number_string_concat",
			source: `print 3 + "ab";`,
			want:   []string{"3ab"},
		},
		{
			name:   "string_number_repeat",
			source: `print "ab" * 3;`,
			want:   []string{"ababab"},
		},
		{
			name:   "number_string_repeat",
			source: `print 3 * "ab";`,
			want:   []string{"ababab"},
		},
		{
			name:   "string_bool_concat",
			source: `print "x=" + true;`,
			want:   []string{"x=true"},
		},
		{
			name:   "bool_string_concat",
			source: `print false + " is x";`,
			want:   []string{"false is x"},
		},
		{
			name: "match_statement",
			source: `let x = 2;
match x {
	1 => print "one";
	2 => print "two";
}`,
			want: []string{"two"},
		},
		{
			name: "for_statement",
			source: `let sum = 0;
for (let i = 0; i < 5; i = i + 1) {
	sum = sum + i;
}
print sum;`,
			want: []string{"10"},
		},
		{
			name:   "mixed_variant_comparison_is_false",
			source: `print 1 < "a";`,
			want:   []string{"false"},
		},
		{
			name:   "nan_not_equal_to_itself",
			source: `let n = 0.0 / 0.0; print n == n;`,
			want:   []string{"false"},
		},
		{
			name:   "empty_program_runs_clean",
			source: ``,
			want:   nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := lines(run(t, tc.source))
			if len(got) != len(tc.want) {
				t.Fatalf("got %d lines %v, want %d lines %v", len(got), got, len(tc.want), tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("line %d: got %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestStackReturnsToBaselineAfterEachStatement(t *testing.T) {
	chunk := vm.NewChunk()
	source := `let a = 1;
{
	let b = 2;
	let c = a + b;
	print c;
}
print a;`
	if err := vm.Compile(chunk, source, "<test>"); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := vm.New(chunk, &out)
	if err := m.Execute(); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if got := len(chunk.Stack); got != 0 {
		t.Errorf("stack depth after top-level execution = %d, want 0", got)
	}
	if got, want := out.String(), "3\n1\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	chunk := vm.NewChunk()
	if err := vm.Compile(chunk, `print missing;`, "<test>"); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := vm.New(chunk, &out)
	err := m.Execute()
	if err == nil {
		t.Fatal("expected a runtime error, got nil")
	}
	if !strings.Contains(err.Error(), "undefined variable") {
		t.Errorf("error = %q, want it to mention an undefined variable", err.Error())
	}
}

func TestCallingANonFunctionIsRuntimeError(t *testing.T) {
	chunk := vm.NewChunk()
	if err := vm.Compile(chunk, `let x = 5; x();`, "<test>"); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := vm.New(chunk, &out)
	err := m.Execute()
	if err == nil {
		t.Fatal("expected a runtime error, got nil")
	}
	if !strings.Contains(err.Error(), "not callable") {
		t.Errorf("error = %q, want it to mention callability", err.Error())
	}
}

func TestArityMismatchIsRuntimeError(t *testing.T) {
	chunk := vm.NewChunk()
	source := `fn add(a, b) { return a + b; }
add(1);`
	if err := vm.Compile(chunk, source, "<test>"); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := vm.New(chunk, &out)
	err := m.Execute()
	if err == nil {
		t.Fatal("expected a runtime error, got nil")
	}
	if !strings.Contains(err.Error(), "expected 2 arguments") {
		t.Errorf("error = %q, want an arity mismatch message", err.Error())
	}
}

func TestNativeFunctionRoundTrip(t *testing.T) {
	chunk := vm.NewChunk()
	source := `print double(21);`
	if err := vm.Compile(chunk, source, "<test>"); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := vm.New(chunk, &out)
	m.DefineNative("double", 1, func(args []vm.Value) (vm.Value, error) {
		return vm.Number(args[0].AsNumber() * 2), nil
	})
	if err := m.Execute(); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if got, want := out.String(), "42\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestNativeArgsArriveInSourceOrder(t *testing.T) {
	chunk := vm.NewChunk()
	source := `print concat("a", "b", "c");`
	if err := vm.Compile(chunk, source, "<test>"); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := vm.New(chunk, &out)
	m.DefineNative("concat", 3, func(args []vm.Value) (vm.Value, error) {
		return vm.String(args[0].AsString() + args[1].AsString() + args[2].AsString()), nil
	})
	if err := m.Execute(); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if got, want := out.String(), "abc\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestNativeCallFromInsideFunctionPreservesFramePointer(t *testing.T) {
	chunk := vm.NewChunk()
	source := `fn f(x) {
	let y = x + 1;
	let z = touch(y);
	return y + z;
}
print f(10);`
	if err := vm.Compile(chunk, source, "<test>"); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := vm.New(chunk, &out)
	m.DefineNative("touch", 1, func(args []vm.Value) (vm.Value, error) {
		return vm.Number(args[0].AsNumber()), nil
	})
	if err := m.Execute(); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if got, want := out.String(), "22\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
