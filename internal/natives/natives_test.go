package natives_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ss-lang/ss/internal/natives"
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
	natives.Register(m)
	if err := m.Execute(); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return out.String()
}

func TestLen(t *testing.T) {
	if got, want := run(t, `print len("hello");`), "5\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStr(t *testing.T) {
	if got, want := run(t, `print str(42);`), "42\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLenRejectsNonString(t *testing.T) {
	chunk := vm.NewChunk()
	if err := vm.Compile(chunk, `len(5);`, "<test>"); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := vm.New(chunk, &out)
	natives.Register(m)
	err := m.Execute()
	if err == nil {
		t.Fatal("expected a runtime error, got nil")
	}
	if !strings.Contains(err.Error(), "expected a string argument") {
		t.Errorf("error = %q, want a type mismatch message", err.Error())
	}
}

func TestClockReturnsANumber(t *testing.T) {
	chunk := vm.NewChunk()
	if err := vm.Compile(chunk, `let t = clock();`, "<test>"); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	var out bytes.Buffer
	m := vm.New(chunk, &out)
	natives.Register(m)
	if err := m.Execute(); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if v := chunk.Globals["t"]; !v.IsNumber() {
		t.Errorf("clock() = %v, want a number", v)
	}
}
