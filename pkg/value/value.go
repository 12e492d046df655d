// Package value defines cinder's runtime value representation: the
// tagged Value union used on the VM's operand stack, and the heap
// Object kinds a Value can reference.
//
// Design Rationale:
//
// Values are small enough to pass by copy (a type tag, a bool, a
// float64 and an Object reference), so the operand stack can be a flat slice of Value rather
// than a slice of pointers. Anything too large or too dynamic to fit
// in that payload — strings, functions, closures, upvalues, natives —
// lives on the heap as an Object and is referenced by pointer.
//
// There is no garbage collector (see Arena, below): objects are kept
// alive for the lifetime of the VM that allocated them and released in
// bulk at teardown. This trades memory for the simplicity of never
// having to reason about a moving or concurrent collector while the
// VM is executing.
package value

import "fmt"

// Kind identifies which alternative of the Value union is active.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObject
)

// Value is cinder's tagged union of primitives and object references.
// The zero Value is Nil.
type Value struct {
	kind   Kind
	boolean bool
	number  float64
	obj     Object
}

// Nil is the singleton nil value.
var Nil = Value{kind: KindNil}

// Bool wraps a boolean as a Value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number wraps a float64 as a Value.
func Number(n float64) Value { return Value{kind: KindNumber, number: n} }

// Obj wraps a heap Object as a Value.
func Obj(o Object) Value { return Value{kind: KindObject, obj: o} }

func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsObject() bool { return v.kind == KindObject }

func (v Value) AsBool() bool     { return v.boolean }
func (v Value) AsNumber() float64 { return v.number }
func (v Value) AsObject() Object  { return v.obj }

// IsString reports whether v holds an *ObjString.
func (v Value) IsString() bool {
	_, ok := v.obj.(*ObjString)
	return v.kind == KindObject && ok
}

// AsString returns the underlying Go string of a string Value.
// Callers must check IsString first.
func (v Value) AsString() string { return v.obj.(*ObjString).Chars }

// Falsy implements cinder's truthiness rule: nil, false and the number
// 0.0 are false; everything else is true. Treating 0.0 as falsy is a
// deliberate, documented departure from most C-family languages — see
// DESIGN.md's "0.0 is falsy" entry.
func (v Value) Falsy() bool {
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return !v.boolean
	case KindNumber:
		return v.number == 0.0
	default:
		return false
	}
}

// Equal implements Value equality: same kind is required; Nil equals
// Nil; Bool and Number compare by value; Object compares by reference
// identity, except that the string interner guarantees two strings
// with identical bytes already share one identity, so reference
// comparison is sufficient for strings too.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindNumber:
		return a.number == b.number
	case KindObject:
		return a.obj == b.obj
	default:
		return false
	}
}

// String renders a Value the way PRINT does: numbers via %g, booleans
// as true/false, nil as nil, strings as-is, functions/closures/natives
// with a short descriptive form.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case KindNumber:
		return fmt.Sprintf("%g", v.number)
	case KindObject:
		return v.obj.String()
	default:
		return "<invalid value>"
	}
}

// Object is implemented by every heap-allocated runtime type.
type Object interface {
	// String renders the object for PRINT and debug output.
	String() string
	objectMarker()
}

// ObjString is an interned, immutable byte sequence. Two ObjStrings
// with identical content are always the same object (see pkg/table's
// Interner) so comparing pointers is enough to compare content.
type ObjString struct {
	Chars string
	Hash  uint32
}

func (*ObjString) objectMarker() {}
func (s *ObjString) String() string { return s.Chars }

// ObjFunction is a compiled function body: its arity, the chunk of
// bytecode the compiler emitted for it, the number of upvalues it
// captures, and a name. Per original_source/compiler.h's function(),
// every compiled function (named declaration or anonymous literal
// alike) is named the literal string "anonymous function" — the
// compiler's declared identifier is only ever used to bind the
// enclosing variable, never as the runtime function's own name. Name
// is nil only for the top-level script, which IsScript distinguishes
// instead.
type ObjFunction struct {
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
	Name         *ObjString
	IsScript     bool
}

func (*ObjFunction) objectMarker() {}
func (f *ObjFunction) String() string {
	if f.IsScript {
		return "function <script>"
	}
	return "function " + f.Name.Chars
}

// Chunk holds one function's compiled bytecode: the instruction byte
// vector, its deduplicated constant pool, and a run-length line map.
// It lives in this package rather than a separate pkg/chunk because
// ObjFunction embeds a *Chunk and a Chunk's constant pool holds Values
// (which may themselves be ObjFunctions) — splitting the two would
// create an import cycle. pkg/chunk holds the Opcode vocabulary that
// operates on this type instead.
type Chunk struct {
	Code      []byte
	Constants []Value
	lines     []lineRun
}

type lineRun struct {
	Line  int
	Count int
}

// NewChunk returns an empty Chunk ready for Write/AddConstant.
func NewChunk() *Chunk {
	return &Chunk{}
}

// Write appends one bytecode byte, recording which source line
// produced it in the run-length-encoded line map.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	n := len(c.lines)
	if n > 0 && c.lines[n-1].Line == line {
		c.lines[n-1].Count++
		return
	}
	c.lines = append(c.lines, lineRun{Line: line, Count: 1})
}

// AddConstant appends value to the constant pool, deduplicating
// against any existing equal value, and returns its index.
func (c *Chunk) AddConstant(v Value) int {
	for i, existing := range c.Constants {
		if Equal(existing, v) {
			return i
		}
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// LineOf returns the source line that produced the instruction byte at
// offset, by walking the run-length line map.
func (c *Chunk) LineOf(offset int) int {
	remaining := offset
	for _, run := range c.lines {
		if remaining < run.Count {
			return run.Line
		}
		remaining -= run.Count
	}
	if len(c.lines) > 0 {
		return c.lines[len(c.lines)-1].Line
	}
	return 0
}

// Len returns the number of bytecode bytes written so far.
func (c *Chunk) Len() int { return len(c.Code) }

// ObjUpvalue is either open (Location points into a live frame's slot
// on the VM's operand stack) or closed (it owns Closed, the value
// moved out of that slot when the slot's scope exited). Open upvalues
// form a singly linked list, descending by Location, anchored at the
// VM; Next is that list's link.
type ObjUpvalue struct {
	Location *Value
	Closed   Value
	Next     *ObjUpvalue
}

func (*ObjUpvalue) objectMarker() {}
func (*ObjUpvalue) String() string { return "upvalue" }

// IsOpen reports whether this upvalue still points at a live stack
// slot rather than owning a closed-over value.
func (u *ObjUpvalue) IsOpen() bool { return u.Location != nil }

// Get returns the upvalue's current value, open or closed.
func (u *ObjUpvalue) Get() Value {
	if u.Location != nil {
		return *u.Location
	}
	return u.Closed
}

// Set writes through to the live slot if open, or to the closed
// storage otherwise.
func (u *ObjUpvalue) Set(v Value) {
	if u.Location != nil {
		*u.Location = v
		return
	}
	u.Closed = v
}

// Close moves the value out of the live slot into the upvalue's own
// storage and severs the Location pointer, transitioning open->closed
// exactly once.
func (u *ObjUpvalue) Close() {
	u.Closed = *u.Location
	u.Location = nil
}

// ObjClosure pairs a Function with the upvalue references it resolved
// at closure-creation time, one per upvalue descriptor the compiler
// recorded for that function.
type ObjClosure struct {
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (*ObjClosure) objectMarker() {}
func (c *ObjClosure) String() string { return c.Function.String() }

// NativeFn is the signature host-provided functions implement. argCount
// is len(args); natives that want variadic behavior declare Arity -1
// and check len(args) themselves.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a host function so it can be called like any other
// callable Value. Arity -1 means variadic (the VM skips the arity
// check and lets the native validate argCount itself).
type ObjNative struct {
	Name  string
	Arity int
	Fn    NativeFn
}

func (*ObjNative) objectMarker() {}
func (n *ObjNative) String() string { return "native function " + n.Name }
