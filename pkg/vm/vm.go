// Package vm implements cinder's bytecode interpreter: a stack machine
// that executes the value.Chunk a pkg/compiler compilation produced.
//
// Design Rationale:
//
// The dispatch loop is a single big switch over chunk.Opcode, the same
// shape as the teacher's message-dispatch loop in its tree-walking
// evaluator, just keyed on an instruction byte instead of an AST node
// kind. Call frames are a flat slice rather than a Go call stack, so a
// cinder call does not consume a Go stack frame and recursion depth is
// bounded by maxFrames rather than the host goroutine's stack.
package vm

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/kristofer/cinder/pkg/chunk"
	"github.com/kristofer/cinder/pkg/table"
	"github.com/kristofer/cinder/pkg/value"
	"github.com/kristofer/cinder/pkg/vmerr"
)

const (
	maxFrames = 256
	maxStack  = maxFrames * 256
)

// frame is one call's activation record: the closure it is executing,
// its instruction pointer into that closure's chunk, and the index
// into the VM's operand stack where its window of locals begins.
type frame struct {
	closure   *value.ObjClosure
	ip        int
	slotsBase int
}

// VM executes compiled cinder programs. Create one with New, reusing
// it across multiple Interpret calls keeps globals defined across a
// REPL session.
type VM struct {
	stack  []value.Value
	frames []frame

	globals  *table.Table
	interner *table.Interner
	arena    *value.Arena

	openUpvalues *value.ObjUpvalue
	out          io.Writer
	debugger     *Debugger
}

// New returns a VM sharing arena and interner with whatever Compiler
// produced the functions it will run, and writing PRINT output to out.
func New(arena *value.Arena, interner *table.Interner, out io.Writer) *VM {
	return &VM{
		// The stack is preallocated to its full capacity and never
		// reallocated afterward: captureUpvalue keeps raw *Value
		// pointers into this backing array for as long as an upvalue
		// stays open, and an append-triggered reallocation would leave
		// those pointers dangling into the old array.
		stack:    make([]value.Value, 0, maxStack),
		frames:   make([]frame, 0, maxFrames),
		globals:  table.New(),
		interner: interner,
		arena:    arena,
		out:      out,
	}
}

// DefineGlobal installs a host-provided value (typically a native
// function) under name, interning the name through the VM's shared
// interner so later GET_GLOBAL lookups from compiled code resolve it.
func (vm *VM) DefineGlobal(name string, v value.Value) {
	key := vm.interner.Intern(name, func(s *value.ObjString) { vm.arena.Register(s) })
	vm.globals.Set(key, v)
}

// Interpret runs fn (normally a freshly compiled top-level script) to
// completion. Each call starts with a clean stack and frame list, but
// the globals table persists across calls on the same VM.
func (vm *VM) Interpret(fn *value.ObjFunction) error {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.openUpvalues = nil

	closure := &value.ObjClosure{Function: fn}
	vm.arena.Register(closure)
	vm.push(value.Obj(closure))
	if err := vm.call(closure, 0); err != nil {
		return err
	}
	return vm.run()
}

func (vm *VM) push(v value.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) currentFrame() *frame {
	return &vm.frames[len(vm.frames)-1]
}

// run executes instructions from the top frame until the call started
// by Interpret returns, draining the frame stack back to empty.
func (vm *VM) run() error {
	for {
		f := vm.currentFrame()
		chunkCode := f.closure.Function.Chunk
		if vm.debugger.Enabled() {
			vm.debugger.trace(vm, f, f.ip)
		}
		op := chunk.Opcode(chunkCode.Code[f.ip])
		f.ip++

		switch op {
		case chunk.OpConstant:
			idx := vm.readByte(f)
			vm.push(chunkCode.Constants[idx])

		case chunk.OpLongConstant:
			idx := vm.readUint16(f)
			vm.push(chunkCode.Constants[idx])

		case chunk.OpNil:
			vm.push(value.Nil)
		case chunk.OpTrue:
			vm.push(value.Bool(true))
		case chunk.OpFalse:
			vm.push(value.Bool(false))
		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := int(vm.readByte(f))
			vm.push(vm.stack[f.slotsBase+slot])
		case chunk.OpSetLocal:
			slot := int(vm.readByte(f))
			vm.stack[f.slotsBase+slot] = vm.peek(0)

		case chunk.OpGetUpvalue:
			slot := int(vm.readByte(f))
			vm.push(f.closure.Upvalues[slot].Get())
		case chunk.OpSetUpvalue:
			slot := int(vm.readByte(f))
			f.closure.Upvalues[slot].Set(vm.peek(0))

		case chunk.OpGetGlobal, chunk.OpGetLongGlobal:
			name := vm.readGlobalName(f, op)
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("undefined variable '%s'", name.Chars)
			}
			vm.push(v)

		case chunk.OpDefineGlobal, chunk.OpDefineLongGlobal:
			name := vm.readGlobalName(f, op)
			vm.globals.Set(name, vm.peek(0))
			vm.pop()

		case chunk.OpSetGlobal, chunk.OpSetLongGlobal:
			name := vm.readGlobalName(f, op)
			if _, ok := vm.globals.Get(name); !ok {
				return vm.runtimeError("undefined variable '%s'", name.Chars)
			}
			vm.globals.Set(name, vm.peek(0))

		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(len(vm.stack) - 1)
			vm.pop()

		case chunk.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case chunk.OpNotEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(!value.Equal(a, b)))

		case chunk.OpLess, chunk.OpLessEqual, chunk.OpMore, chunk.OpMoreEqual:
			if err := vm.compareOp(op); err != nil {
				return err
			}

		case chunk.OpAdd:
			if err := vm.addOp(); err != nil {
				return err
			}
		case chunk.OpSubtract, chunk.OpMultiply, chunk.OpDivide:
			if err := vm.arithOp(op); err != nil {
				return err
			}

		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("operand must be a number")
			}
			vm.push(value.Number(-vm.pop().AsNumber()))

		case chunk.OpNot:
			vm.push(value.Bool(vm.pop().Falsy()))

		case chunk.OpJump:
			offset := vm.readUint16(f)
			f.ip += int(offset)
		case chunk.OpJumpIfFalse:
			offset := vm.readUint16(f)
			if vm.peek(0).Falsy() {
				f.ip += int(offset)
			}
		case chunk.OpJumpIfTrue:
			offset := vm.readUint16(f)
			if !vm.peek(0).Falsy() {
				f.ip += int(offset)
			}
		case chunk.OpLoop:
			offset := vm.readUint16(f)
			f.ip -= int(offset)

		case chunk.OpCall:
			argCount := int(vm.readByte(f))
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return err
			}

		case chunk.OpClosure:
			idx := vm.readUint16(f)
			fn := chunkCode.Constants[idx].AsObject().(*value.ObjFunction)
			upvalueCount := int(vm.readByte(f))
			closure := &value.ObjClosure{Function: fn, Upvalues: make([]*value.ObjUpvalue, upvalueCount)}
			for i := 0; i < upvalueCount; i++ {
				isLocal := vm.readByte(f) != 0
				index := int(vm.readByte(f))
				if isLocal {
					closure.Upvalues[i] = vm.captureUpvalue(&vm.stack[f.slotsBase+index])
				} else {
					closure.Upvalues[i] = f.closure.Upvalues[index]
				}
			}
			vm.arena.Register(closure)
			vm.push(value.Obj(closure))

		case chunk.OpReturn:
			result := vm.pop()
			returningFrame := vm.frames[len(vm.frames)-1]
			vm.closeUpvalues(returningFrame.slotsBase)
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop() // the top-level script closure pushed by Interpret
				return nil
			}
			vm.stack = vm.stack[:returningFrame.slotsBase]
			vm.push(result)

		case chunk.OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		default:
			return vm.runtimeError("unknown opcode %d", byte(op))
		}
	}
}

func (vm *VM) readByte(f *frame) byte {
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readUint16(f *frame) uint16 {
	hi := vm.readByte(f)
	lo := vm.readByte(f)
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readGlobalName(f *frame, op chunk.Opcode) *value.ObjString {
	var idx int
	switch op {
	case chunk.OpGetGlobal, chunk.OpDefineGlobal, chunk.OpSetGlobal:
		idx = int(vm.readByte(f))
	default:
		idx = int(vm.readUint16(f))
	}
	return f.closure.Function.Chunk.Constants[idx].AsObject().(*value.ObjString)
}

func (vm *VM) addOp() error {
	b, a := vm.pop(), vm.pop()
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.push(value.Number(a.AsNumber() + b.AsNumber()))
	case a.IsString() && b.IsString():
		vm.push(value.Obj(vm.interner.Intern(a.AsString()+b.AsString(), func(s *value.ObjString) { vm.arena.Register(s) })))
	default:
		return vm.runtimeError("operands must be two numbers or two strings")
	}
	return nil
}

func (vm *VM) arithOp(op chunk.Opcode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
	switch op {
	case chunk.OpSubtract:
		vm.push(value.Number(a - b))
	case chunk.OpMultiply:
		vm.push(value.Number(a * b))
	case chunk.OpDivide:
		vm.push(value.Number(a / b))
	}
	return nil
}

func (vm *VM) compareOp(op chunk.Opcode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("operands must be numbers")
	}
	b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
	var result bool
	switch op {
	case chunk.OpLess:
		result = a < b
	case chunk.OpLessEqual:
		result = a <= b
	case chunk.OpMore:
		result = a > b
	case chunk.OpMoreEqual:
		result = a >= b
	}
	vm.push(value.Bool(result))
	return nil
}

// callValue dispatches a CALL instruction on whatever kind of callable
// sits at the bottom of the argument window: a closure, or a native.
func (vm *VM) callValue(callee value.Value, argCount int) error {
	if !callee.IsObject() {
		return vm.runtimeError("can only call functions")
	}
	switch obj := callee.AsObject().(type) {
	case *value.ObjClosure:
		return vm.call(obj, argCount)
	case *value.ObjNative:
		if obj.Arity >= 0 && argCount != obj.Arity {
			return vm.runtimeError("expected %d arguments but got %d", obj.Arity, argCount)
		}
		args := vm.stack[len(vm.stack)-argCount:]
		result, err := obj.Fn(args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.stack = vm.stack[:len(vm.stack)-argCount-1]
		vm.push(result)
		return nil
	default:
		return vm.runtimeError("can only call functions")
	}
}

func (vm *VM) call(closure *value.ObjClosure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("expected %d arguments but got %d", closure.Function.Arity, argCount)
	}
	if len(vm.frames) >= maxFrames {
		return vm.runtimeError("stack overflow")
	}
	if len(vm.stack) >= maxStack {
		return vm.runtimeError("stack overflow")
	}
	vm.frames = append(vm.frames, frame{
		closure:   closure,
		slotsBase: len(vm.stack) - argCount - 1,
	})
	return nil
}

// captureUpvalue returns the open upvalue already watching local, or
// creates one, keeping the VM's open-upvalue list sorted by
// descending stack address so closeUpvalues can stop early.
func (vm *VM) captureUpvalue(local *value.Value) *value.ObjUpvalue {
	var prev *value.ObjUpvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Location != nil && uintptrOf(cur.Location) > uintptrOf(local) {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.Location == local {
		return cur
	}
	created := &value.ObjUpvalue{Location: local}
	vm.arena.Register(created)
	created.Next = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue pointing at or above stack
// index fromIndex, moving its value out of the stack slot into the
// upvalue's own storage before that slot is discarded.
func (vm *VM) closeUpvalues(fromIndex int) {
	var floor *value.Value
	if fromIndex < len(vm.stack) {
		floor = &vm.stack[fromIndex]
	}
	for vm.openUpvalues != nil && vm.openUpvalues.Location != nil &&
		(floor == nil || uintptrOf(vm.openUpvalues.Location) >= uintptrOf(floor)) {
		uv := vm.openUpvalues
		uv.Close()
		vm.openUpvalues = uv.Next
	}
}

func (vm *VM) runtimeError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	frames := make([]vmerr.Frame, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := vm.frames[i]
		line := fr.closure.Function.Chunk.LineOf(fr.ip - 1)
		name := "script"
		if fr.closure.Function.Name != nil {
			name = fr.closure.Function.Name.Chars
		}
		frames = append(frames, vmerr.Frame{Name: name, Line: line})
	}
	return &vmerr.RuntimeError{Message: msg, Frames: frames}
}

// uintptrOf gives a comparable address for ordering stack-slot
// pointers that belong to the same backing array; the result is only
// ever compared, never dereferenced on its own.
func uintptrOf(p *value.Value) uintptr {
	return uintptr(unsafe.Pointer(p))
}
