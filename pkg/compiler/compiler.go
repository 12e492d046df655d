// Package compiler implements cinder's single-pass compiler: a Pratt
// expression parser that drives bytecode emission directly, with no
// intermediate AST. It is the CORE half of cinder's pipeline described
// in spec.md §1 — the other half is pkg/vm.
//
// Source text reaches the compiler only through pkg/scanner, pulled
// one token at a time; the compiler emits bytecode into the current
// function's value.Chunk as it recognizes each construct, the same
// emit-as-you-parse discipline the teacher's compiler.go used, just
// merged with the parsing step that teacher split into a separate
// pkg/parser/pkg/ast pass.
package compiler

import (
	"github.com/kristofer/cinder/pkg/chunk"
	"github.com/kristofer/cinder/pkg/scanner"
	"github.com/kristofer/cinder/pkg/table"
	"github.com/kristofer/cinder/pkg/value"
	"github.com/kristofer/cinder/pkg/vmerr"
)

// maxLocals, maxUpvalues and maxParams mirror spec.md §3's bounds on
// per-function compile-time state: a Scope's Locals array is sized
// 256, its Upvalues array 256, and a parameter list may not exceed
// 255 (so there's always a free locals slot left for slot 0).
const (
	maxLocals   = 256
	maxUpvalues = 256
	maxParams   = 255
)

// anonymousFunctionName is the literal runtime name every compiled
// function (declared or anonymous) gets, per original_source/
// compiler.h's function(). The declared identifier of a `fun name(…)`
// is used only to bind the enclosing variable; it never becomes the
// ObjFunction's own Name.
const anonymousFunctionName = "anonymous function"

// functionType distinguishes the synthetic top-level script function
// from an ordinary declared or anonymous function; only the
// distinction matters (both compile the same way) because the script
// function never explicitly returns and slot 0 means different things
// to a human reader even though the compiler treats it uniformly.
type functionType int

const (
	typeScript functionType = iota
	typeFunction
)

// local is compile-time bookkeeping for one declared local variable:
// its name, the lexical depth it was declared at (-1 while its own
// initializer is still compiling, so the variable can't read itself),
// whether it's a const, and whether an enclosed function has captured
// it as an upvalue.
type local struct {
	name       string
	depth      int
	constant   bool
	isCaptured bool
}

// upvalueDesc records how a function reached one of its captured
// variables: either directly as a local slot of its immediately
// enclosing function (IsLocal true, Index a local slot) or by
// re-exporting an upvalue the enclosing function already resolved
// (IsLocal false, Index an upvalue index in the enclosing function).
type upvalueDesc struct {
	index   int
	isLocal bool
}

// funcScope is the compile-time state for one function body being
// compiled: its locals, its lexical depth, its resolved upvalues, and
// a link to the scope compiling the enclosing function (nil for the
// top-level script). This is spec.md §3's "Compile-time Scope",
// modeled as a plain Go slice-backed
// struct with an explicit enclosing pointer rather than an intrusive
// structure.
type funcScope struct {
	enclosing  *funcScope
	function   *value.ObjFunction
	fnType     functionType
	locals     []local
	scopeDepth int
	upvalues   []upvalueDesc
}

// Compiler compiles cinder source into a top-level value.ObjFunction.
// Create one with New for each compilation; it is not reusable.
type Compiler struct {
	sc       *scanner.Scanner
	cur      scanner.Token
	prev     scanner.Token
	scope    *funcScope
	arena    *value.Arena
	interner *table.Interner

	hadError  bool
	panicMode bool
	errs      []*vmerr.CompileError
}

// New returns a Compiler that will compile source, registering every
// heap object it allocates (ObjFunctions, interned ObjStrings) in
// arena and deduplicating strings through interner. The VM that later
// runs the compiled function must share the same arena and interner so
// that string identity and object lifetime stay consistent between
// compile time and run time.
func New(source string, arena *value.Arena, interner *table.Interner) *Compiler {
	c := &Compiler{
		sc:       scanner.New(source),
		arena:    arena,
		interner: interner,
	}
	c.scope = c.newFuncScope(nil, typeScript)
	return c
}

func (c *Compiler) newFuncScope(enclosing *funcScope, fnType functionType) *funcScope {
	fn := &value.ObjFunction{Chunk: value.NewChunk(), IsScript: fnType == typeScript}
	if fnType != typeScript {
		fn.Name = c.internString(anonymousFunctionName)
	}
	c.arena.Register(fn)
	fs := &funcScope{
		enclosing: enclosing,
		function:  fn,
		fnType:    fnType,
	}
	// Slot 0 is reserved: it holds the callee itself. Its name is
	// empty, so no identifier in the source ever resolves to it.
	fs.locals = append(fs.locals, local{name: "", depth: 0})
	return fs
}

// Compile runs the compiler to completion and returns the top-level
// script function, or the accumulated compile errors if any diagnostic
// was raised. Compilation continues past the first error (panic-mode
// recovery resynchronizes at the next declaration boundary) so that
// multiple errors can be reported in one pass, but the function
// returns nil whenever hadError is set.
func (c *Compiler) Compile() (*value.ObjFunction, error) {
	c.advance()
	for !c.check(scanner.TokenEOF) {
		c.declaration()
	}
	fn := c.endFunction(false)
	if c.hadError {
		return nil, &vmerr.CompileErrors{Errors: c.errs}
	}
	return fn, nil
}

// endFunction emits the function's trailing RETURN and pops the
// current funcScope, returning the ObjFunction it built. produced
// reports whether the function body's last statement already left its
// value on top of the stack (a bare trailing expression or bare
// block/if, with no semicolon) — per spec.md §4.4's implicit-return
// rule, that value becomes the call's result, so only a plain RETURN
// is emitted to pop and return it. Otherwise the function falls off
// the end of its body without a value, and emitReturn pushes nil
// first so RETURN always has something to pop.
func (c *Compiler) endFunction(produced bool) *value.ObjFunction {
	if produced {
		c.emitOp(chunk.OpReturn)
	} else {
		c.emitReturn()
	}
	fn := c.scope.function
	fn.UpvalueCount = len(c.scope.upvalues)
	if enclosing := c.scope.enclosing; enclosing != nil {
		c.scope = enclosing
	}
	return fn
}

func (c *Compiler) internString(s string) *value.ObjString {
	return c.interner.Intern(s, func(os *value.ObjString) {
		c.arena.Register(os)
	})
}

// --- token stream -----------------------------------------------------

func (c *Compiler) advance() {
	c.prev = c.cur
	for {
		c.cur = c.sc.Next()
		if c.cur.Kind != scanner.TokenError {
			break
		}
		c.errorAtCurrent(c.cur.Text)
	}
}

func (c *Compiler) check(kind scanner.TokenKind) bool { return c.cur.Kind == kind }

func (c *Compiler) match(kind scanner.TokenKind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind scanner.TokenKind, msg string) {
	if c.cur.Kind == kind {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// --- error reporting ----------------------------------------------------

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.cur, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.prev, msg) }

func (c *Compiler) errorAt(tok scanner.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	text := tok.Text
	if tok.Kind == scanner.TokenEOF {
		text = ""
	}
	c.errs = append(c.errs, &vmerr.CompileError{
		Message: msg,
		Line:    tok.Line,
		Column:  tok.Column,
		Token:   text,
	})
}

// synchronize implements panic-mode recovery: it advances tokens until
// it finds a statement boundary (the consumed token was a semicolon)
// or the lookahead starts a new declaration/statement keyword.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.cur.Kind != scanner.TokenEOF {
		if c.prev.Kind == scanner.TokenSemicolon {
			return
		}
		switch c.cur.Kind {
		case scanner.TokenClass, scanner.TokenFun, scanner.TokenVar, scanner.TokenConst,
			scanner.TokenFor, scanner.TokenIf, scanner.TokenWhile, scanner.TokenPrint,
			scanner.TokenReturn:
			return
		}
		c.advance()
	}
}

// --- bytecode emission ---------------------------------------------------

func (c *Compiler) currentChunk() *value.Chunk { return c.scope.function.Chunk }

func (c *Compiler) emitByte(b byte) {
	c.currentChunk().Write(b, c.prev.Line)
}

func (c *Compiler) emitOp(op chunk.Opcode) { c.emitByte(byte(op)) }

func (c *Compiler) emitOps(op1, op2 chunk.Opcode) {
	c.emitOp(op1)
	c.emitOp(op2)
}

func (c *Compiler) emitReturn() {
	c.emitOp(chunk.OpNil)
	c.emitOp(chunk.OpReturn)
}

// emitConstant adds v to the current chunk's constant pool and emits
// the matching 8-bit or 16-bit load instruction.
func (c *Compiler) emitConstant(v value.Value) {
	idx := c.currentChunk().AddConstant(v)
	c.emitConstantIndex(chunk.OpConstant, chunk.OpLongConstant, idx)
}

func (c *Compiler) emitConstantIndex(shortOp, longOp chunk.Opcode, idx int) {
	if idx < 256 {
		c.emitOp(shortOp)
		c.emitByte(byte(idx))
		return
	}
	if idx > 0xFFFF {
		c.error("too many constants in one chunk")
		return
	}
	c.emitOp(longOp)
	c.emitByte(byte(idx >> 8))
	c.emitByte(byte(idx))
}

// emitJump emits a jump opcode with a two-byte placeholder operand and
// returns the offset of that placeholder, to be patched later by
// patchJump.
func (c *Compiler) emitJump(op chunk.Opcode) int {
	c.emitOp(op)
	c.emitByte(0xFF)
	c.emitByte(0xFF)
	return c.currentChunk().Len() - 2
}

// patchJump backfills the two-byte operand at offset with the distance
// from just after that operand to the current end of the chunk.
func (c *Compiler) patchJump(offset int) {
	jump := c.currentChunk().Len() - offset - 2
	if jump > 0xFFFF {
		c.error("too much code to jump over")
		return
	}
	code := c.currentChunk().Code
	code[offset] = byte(jump >> 8)
	code[offset+1] = byte(jump)
}

// emitLoop emits a LOOP instruction that jumps backward to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := c.currentChunk().Len() - loopStart + 2
	if offset > 0xFFFF {
		c.error("loop body too large")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

func (c *Compiler) identifierConstant(name string) int {
	return c.currentChunk().AddConstant(value.Obj(c.internString(name)))
}
