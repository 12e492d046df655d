package table_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/cinder/pkg/table"
	"github.com/kristofer/cinder/pkg/value"
)

func TestInternDeduplicatesByContent(t *testing.T) {
	in := table.NewInterner()
	var registered int

	register := func(*value.ObjString) { registered++ }

	a := in.Intern("hello", register)
	b := in.Intern("hello", register)
	c := in.Intern("world", register)

	require.Same(t, a, b, "interning identical content twice returns the same object")
	require.NotSame(t, a, c)
	require.Equal(t, 2, registered, "register is only called for genuinely new strings")
}

func TestInternNilRegisterIsSafe(t *testing.T) {
	in := table.NewInterner()
	require.NotPanics(t, func() {
		in.Intern("x", nil)
	})
}
