package table

import "github.com/kristofer/cinder/pkg/value"

// fnvOffsetBasis and fnvPrime are the 32-bit FNV-1a constants, taken
// from the original C implementation's hashString routine.
const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
)

// HashString computes the 32-bit FNV-1a hash of bytes.
func HashString(bytes string) uint32 {
	hash := fnvOffsetBasis
	for i := 0; i < len(bytes); i++ {
		hash ^= uint32(bytes[i])
		hash *= fnvPrime
	}
	return hash
}

// Interner deduplicates strings by content so that any two ObjStrings
// with identical bytes are the same heap object. Object allocation and
// registration with the VM's arena happens here, before the string
// could otherwise be looked up by a table that might already contain
// it.
type Interner struct {
	strings *Table
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{strings: New()}
}

// Intern returns the canonical *ObjString for bytes, allocating and
// registering a new one only if bytes has never been interned before.
// register is called exactly once, with the freshly allocated string,
// when a new object is created — callers use it to add the string to
// the VM's object arena.
func (in *Interner) Intern(bytes string, register func(*value.ObjString)) *value.ObjString {
	hash := HashString(bytes)
	if existing := in.strings.FindString(bytes, hash); existing != nil {
		return existing
	}
	s := &value.ObjString{Chars: bytes, Hash: hash}
	if register != nil {
		register(s)
	}
	in.strings.Set(s, value.Bool(true))
	return s
}
