// Package vmerr defines the error types shared by pkg/compiler and
// pkg/vm so that cmd/cinder can map them to the distinct exit codes
// spec.md §7 calls for (65 compile error, 70 runtime error, 74 host
// error) with a single type switch, the same way the teacher's
// cmd/smog/main.go dispatched on the error returned from Run.
package vmerr

import (
	"fmt"
	"strings"
)

// CompileError is a single diagnostic produced by the scanner or
// compiler: a message, the offending line/column, and — where
// available — the offending token's text.
type CompileError struct {
	Message string
	Line    int
	Column  int
	Token   string
}

func (e *CompileError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("[at %d:%d] Error at '%s': %s", e.Line, e.Column, e.Token, e.Message)
	}
	return fmt.Sprintf("[at %d:%d] Error: %s", e.Line, e.Column, e.Message)
}

// CompileErrors aggregates every CompileError a compile pass produced;
// panic-mode recovery lets the compiler keep going after the first
// error so it can report more before giving up.
type CompileErrors struct {
	Errors []*CompileError
}

func (e *CompileErrors) Error() string {
	var b strings.Builder
	for i, ce := range e.Errors {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ce.Error())
	}
	return b.String()
}

// Frame is one entry in a runtime stack trace: the name of the
// function executing (or "script" for the top-level frame) and the
// source line active when the trace was captured.
type Frame struct {
	Name string
	Line int
}

// RuntimeError is a VM execution failure: a message plus the call
// stack at the moment it was raised, innermost frame first.
type RuntimeError struct {
	Message string
	Frames  []Frame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString("Runtime error: ")
	b.WriteString(e.Message)
	for _, f := range e.Frames {
		b.WriteByte('\n')
		b.WriteString(fmt.Sprintf("[line %d] in %s", f.Line, f.Name))
	}
	return b.String()
}

// HostError reports a failure outside the language itself: file I/O or
// allocation failure. cmd/cinder maps this to exit code 74.
type HostError struct {
	Message string
	Cause   error
}

func (e *HostError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *HostError) Unwrap() error { return e.Cause }
