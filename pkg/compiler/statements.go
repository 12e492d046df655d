package compiler

import (
	"github.com/kristofer/cinder/pkg/chunk"
	"github.com/kristofer/cinder/pkg/scanner"
)

// declaration compiles one top-level declaration or statement,
// discarding any value it produced, and resynchronizes after a
// compile error so the rest of the program can still be checked.
func (c *Compiler) declaration() {
	if c.declarationInner() {
		c.emitOp(chunk.OpPop)
	}
	if c.panicMode {
		c.synchronize()
	}
}

// declarationValue is declaration's counterpart for use inside a
// block body: it reports whether what it just compiled left a value
// on the stack, so the enclosing block can decide whether that value
// is the block's result or needs popping.
func (c *Compiler) declarationValue() bool {
	produced := c.declarationInner()
	if c.panicMode {
		c.synchronize()
	}
	return produced
}

func (c *Compiler) declarationInner() bool {
	switch {
	case c.match(scanner.TokenVar):
		c.varDeclaration(false)
		return false
	case c.match(scanner.TokenConst):
		c.varDeclaration(true)
		return false
	case c.match(scanner.TokenFun):
		c.funDeclaration()
		return false
	default:
		return c.statementValue()
	}
}

// statementValue compiles one statement and reports whether it left a
// value on the stack. Only a bare trailing expression (no semicolon)
// and bare block/if expressions do; print/while/for/return never do.
func (c *Compiler) statementValue() bool {
	switch {
	case c.match(scanner.TokenPrint):
		c.printStatement()
		return false
	case c.match(scanner.TokenWhile):
		c.whileStatement()
		return false
	case c.match(scanner.TokenFor):
		c.forStatement()
		return false
	case c.match(scanner.TokenReturn):
		c.returnStatement()
		return false
	case c.check(scanner.TokenLeftBrace):
		c.advance()
		c.blockExprAfterBrace()
		if c.match(scanner.TokenSemicolon) {
			c.emitOp(chunk.OpPop)
			return false
		}
		return true
	case c.check(scanner.TokenIf):
		c.advance()
		c.ifExpr(false)
		if c.match(scanner.TokenSemicolon) {
			c.emitOp(chunk.OpPop)
			return false
		}
		return true
	default:
		c.expression()
		if c.match(scanner.TokenSemicolon) {
			c.emitOp(chunk.OpPop)
			return false
		}
		return true
	}
}

// blockExprAfterBrace compiles a block's body given that the opening
// '{' has already been consumed by the caller, same as blockExpr's
// prefix-rule path (where parsePrecedence's advance already consumed
// it before calling the handler).
func (c *Compiler) blockExprAfterBrace() {
	c.blockExpr(false)
}

// block compiles `{ ... }` as a plain statement: any trailing value
// the body leaves is discarded rather than threaded out.
func (c *Compiler) block() {
	c.consume(scanner.TokenLeftBrace, "expected '{'")
	c.beginScope()
	produced := c.blockBody()
	c.endScope(produced)
	if produced {
		c.emitOp(chunk.OpPop)
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(scanner.TokenSemicolon, "expected ';' after value")
	c.emitOp(chunk.OpPrint)
}

func (c *Compiler) whileStatement() {
	loopStart := c.currentChunk().Len()
	c.consume(scanner.TokenLeftParen, "expected '(' after 'while'")
	c.expression()
	c.consume(scanner.TokenRightParen, "expected ')' after condition")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.block()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
}

// forStatement compiles the C-style three-clause for loop. The
// initializer and increment clauses live in their own scope so a
// `var` declared in the initializer doesn't leak past the loop.
func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(scanner.TokenLeftParen, "expected '(' after 'for'")

	switch {
	case c.match(scanner.TokenSemicolon):
		// no initializer
	case c.match(scanner.TokenVar):
		c.varDeclaration(false)
	case c.match(scanner.TokenConst):
		c.varDeclaration(true)
	default:
		c.expression()
		c.consume(scanner.TokenSemicolon, "expected ';' after loop initializer")
		c.emitOp(chunk.OpPop)
	}

	loopStart := c.currentChunk().Len()
	exitJump := -1
	if !c.check(scanner.TokenSemicolon) {
		c.expression()
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}
	c.consume(scanner.TokenSemicolon, "expected ';' after loop condition")

	if !c.check(scanner.TokenRightParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := c.currentChunk().Len()
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(scanner.TokenRightParen, "expected ')' after for clauses")
		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	} else {
		c.consume(scanner.TokenRightParen, "expected ')' after for clauses")
	}

	c.block()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}
	c.endScope(false)
}

func (c *Compiler) returnStatement() {
	if c.scope.fnType == typeScript {
		c.error("cannot return from top-level code")
	}
	if c.match(scanner.TokenSemicolon) {
		c.emitReturn()
		return
	}
	c.expression()
	c.consume(scanner.TokenSemicolon, "expected ';' after return value")
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) varDeclaration(isConst bool) {
	global := c.parseVariable("expected variable name", isConst)
	if c.match(scanner.TokenEqual) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(scanner.TokenSemicolon, "expected ';' after variable declaration")
	c.defineVariable(global, isConst)
}

// funDeclaration compiles `fun name(params) { body }` as sugar for
// declaring name and binding it to the compiled closure; the name is
// marked initialized before the body compiles so the function can
// call itself recursively.
func (c *Compiler) funDeclaration() {
	c.consume(scanner.TokenIdentifier, "expected function name")
	name := c.prev.Text
	c.declareVariable(name, false)
	if c.scope.scopeDepth > 0 {
		c.markInitialized()
	}

	c.functionBody(typeFunction)

	global := -1
	if c.scope.scopeDepth == 0 {
		global = c.identifierConstant(name)
	}
	c.defineVariable(global, false)
}

// parseVariable consumes a variable name, declares it, and for a
// local returns a sentinel (-1, since locals need no name constant);
// for a global it returns the index of the name's constant-pool entry.
func (c *Compiler) parseVariable(msg string, isConst bool) int {
	c.consume(scanner.TokenIdentifier, msg)
	name := c.prev.Text
	c.declareVariable(name, isConst)
	if c.scope.scopeDepth > 0 {
		return -1
	}
	return c.identifierConstant(name)
}

// declareVariable registers name as a new local in the current scope,
// rejecting a duplicate name already declared at the same depth.
// Globals aren't declared up front; GET_GLOBAL/SET_GLOBAL resolve them
// by name at runtime instead.
func (c *Compiler) declareVariable(name string, isConst bool) {
	if c.scope.scopeDepth == 0 {
		return
	}
	for i := len(c.scope.locals) - 1; i >= 0; i-- {
		l := c.scope.locals[i]
		if l.depth != -1 && l.depth < c.scope.scopeDepth {
			break
		}
		if l.name == name {
			c.error("a variable with this name already declared in this scope")
		}
	}
	c.addLocal(name, isConst)
}

func (c *Compiler) addLocal(name string, isConst bool) {
	if len(c.scope.locals) >= maxLocals {
		c.error("too many local variables in function")
		return
	}
	c.scope.locals = append(c.scope.locals, local{name: name, depth: -1, constant: isConst})
}

// markInitialized flips the most recently declared local from
// "declared" (depth -1, not yet readable) to "defined" (depth set),
// once its initializer has finished compiling.
func (c *Compiler) markInitialized() {
	if c.scope.scopeDepth == 0 {
		return
	}
	c.scope.locals[len(c.scope.locals)-1].depth = c.scope.scopeDepth
}

// defineVariable finishes a var/const/fun declaration: for a local it
// just marks the local initialized (its value is already on the
// stack, occupying its slot); for a global it emits DEFINE_GLOBAL.
// const is only enforced for locals (see DESIGN.md) — a global
// declared const may still be reassigned with SET_GLOBAL.
func (c *Compiler) defineVariable(global int, isConst bool) {
	if c.scope.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitConstantIndex(chunk.OpDefineGlobal, chunk.OpDefineLongGlobal, global)
}
