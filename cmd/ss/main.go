// Command ss is the CLI entry point for the ss language: it runs a script
// file, or starts an interactive REPL when run with no file (spec §6).
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ss-lang/ss/internal/lexer"
	"github.com/ss-lang/ss/internal/natives"
	"github.com/ss-lang/ss/internal/ssconfig"
	"github.com/ss-lang/ss/internal/vm"
)

func main() {
	// Catch panics on malformed-but-compiled bytecode (out-of-range stack
	// or constant access) the way the teacher's main() does, rather than
	// letting them crash the process with a raw Go trace.
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "internal error: %v\n", r)
			os.Exit(1)
		}
	}()

	cfg, err := ssconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ss: %v\n", err)
		os.Exit(1)
	}

	var disasm bool
	var file string
	for _, arg := range os.Args[1:] {
		if arg == "-d" || arg == "--disassemble" {
			disasm = true
			continue
		}
		if file == "" {
			file = arg
		}
	}

	if file == "" {
		runREPL(cfg)
		return
	}
	runFile(cfg, file, disasm)
}

func runFile(cfg *ssconfig.Config, path string, disasm bool) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ss: %v\n", err)
		os.Exit(1)
	}

	chunk := vm.NewChunk()
	c := vm.NewCompiler(chunk, path, nil, nil)
	c.SetLibPath(cfg.LibPath)

	tokens, err := lexer.Scan(string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile error: %s\n", err)
		os.Exit(65)
	}
	if err := c.CompileTokens(tokens); err != nil {
		fmt.Fprintf(os.Stderr, "compile error: %s\n", err)
		os.Exit(65)
	}

	if disasm {
		fmt.Print(vm.Disassemble(chunk, path))
		return
	}

	m := vm.New(chunk, os.Stdout)
	natives.Register(m)
	if err := m.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %s\n", err)
		os.Exit(70)
	}
}

// runREPL implements spec §6.2: each line is compiled into the same Chunk
// and run immediately, so globals and function declarations persist across
// lines. The prompt and the `got <n>` preamble are both suppressed when
// stdout isn't a terminal, mirroring the teacher's own
// isatty-gated terminal behaviors (internal/evaluator/builtins_term.go).
func runREPL(cfg *ssconfig.Config) {
	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	chunk := vm.NewChunk()
	m := vm.New(chunk, os.Stdout)
	natives.Register(m)

	scanner := bufio.NewScanner(os.Stdin)
	lineNo := 1
	for {
		if interactive {
			fmt.Printf("ss(main):%d> ", lineNo)
		}
		if !scanner.Scan() {
			if interactive {
				fmt.Println()
			}
			return
		}
		line := scanner.Text()
		lineNo++
		if strings.TrimSpace(line) == "" {
			continue
		}

		before := len(chunk.Code)
		c := vm.NewCompiler(chunk, "<repl>", nil, nil)
		c.SetLibPath(cfg.LibPath)
		tokens, err := lexer.Scan(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "compile error: %s\n", err)
			continue
		}
		if err := c.CompileTokens(tokens); err != nil {
			fmt.Fprintf(os.Stderr, "compile error: %s\n", err)
			continue
		}

		if err := m.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "runtime error: %s\n", err)
			continue
		}
		if interactive && cfg.ShouldEchoResult() {
			fmt.Printf("got %d\n", len(chunk.Code)-before)
		}
	}
}
