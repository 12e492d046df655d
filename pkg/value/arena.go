package value

// Arena is the owning store for every heap Object cinder allocates:
// the redesign-notes' replacement for the original intrusive
// singly-linked allocation list. Objects are appended as they're
// created by the compiler (for ObjFunction and literal ObjStrings) and
// by the VM (for closures and upvalues created while running), and the
// whole arena is simply dropped at VM teardown — there is no per-object
// free and no collector, matching spec.md's Non-goals.
type Arena struct {
	objects []Object
}

// NewArena returns an empty Arena.
func NewArena() *Arena {
	return &Arena{}
}

// Register adds o to the arena, keeping it reachable for the life of
// the arena. Every Object that escapes into a Value must be registered
// exactly once, at the point it is allocated.
func (a *Arena) Register(o Object) {
	a.objects = append(a.objects, o)
}

// Len reports how many objects the arena has ever registered.
func (a *Arena) Len() int { return len(a.objects) }
