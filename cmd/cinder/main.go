// Command cinder runs cinder source files and provides an interactive
// REPL, the same two entry points the teacher's cmd/smog offered, cut
// down to what spec.md's CLI calls for: a script runner and a REPL, no
// bytecode-file persistence commands.
package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/kristofer/cinder/pkg/compiler"
	"github.com/kristofer/cinder/pkg/disasm"
	"github.com/kristofer/cinder/pkg/natives"
	"github.com/kristofer/cinder/pkg/table"
	"github.com/kristofer/cinder/pkg/value"
	"github.com/kristofer/cinder/pkg/vm"
	"github.com/kristofer/cinder/pkg/vmerr"
)

const (
	exitOK      = 0
	exitCompile = 65
	exitRuntime = 70
	exitHost    = 74
)

func main() {
	var showBytecode, trace bool
	args := os.Args[1:]
	for len(args) > 0 {
		flag := true
		switch args[0] {
		case "--bytecode", "-b":
			showBytecode = true
		case "--trace", "-t":
			trace = true
		default:
			flag = false
		}
		if !flag {
			break
		}
		args = args[1:]
	}

	switch len(args) {
	case 0:
		runREPL(trace)
	case 1:
		os.Exit(runFile(args[0], showBytecode, trace))
	default:
		fmt.Fprintln(os.Stderr, "usage: cinder [--bytecode] [--trace] [script]")
		os.Exit(exitHost)
	}
}

func runFile(path string, showBytecode, trace bool) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, (&vmerr.HostError{Message: "cannot read " + path, Cause: err}).Error())
		return exitHost
	}

	arena := value.NewArena()
	interner := table.NewInterner()

	c := compiler.New(string(source), arena, interner)
	fn, err := c.Compile()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return exitCompile
	}

	if showBytecode {
		disasm.Disassemble(os.Stdout, fn.Chunk, "script")
	}

	start := time.Now()
	m := vm.New(arena, interner, os.Stdout)
	m.DefineGlobal("clock", value.Obj(natives.Clock(start)))
	if trace {
		d := vm.NewDebugger(os.Stdout)
		d.Enable()
		m.SetTrace(d)
	}

	if err := m.Interpret(fn); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return exitRuntime
	}
	return exitOK
}

// runREPL reads one line at a time, compiling and running each as its
// own top-level script against one VM whose globals persist between
// lines. The prompt is suppressed when stdin isn't a terminal, the
// same TTY check the teacher's builtins used to decide whether to
// color output.
func runREPL(trace bool) {
	arena := value.NewArena()
	interner := table.NewInterner()
	start := time.Now()
	m := vm.New(arena, interner, os.Stdout)
	m.DefineGlobal("clock", value.Obj(natives.Clock(start)))
	if trace {
		d := vm.NewDebugger(os.Stdout)
		d.Enable()
		m.SetTrace(d)
	}

	interactive := isatty.IsTerminal(os.Stdin.Fd())
	scanner := bufio.NewScanner(os.Stdin)

	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		c := compiler.New(line, arena, interner)
		fn, err := c.Compile()
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			continue
		}
		if err := m.Interpret(fn); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, (&vmerr.HostError{Message: "reading stdin", Cause: err}).Error())
		os.Exit(exitHost)
	}
}
