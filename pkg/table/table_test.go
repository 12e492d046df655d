package table_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/cinder/pkg/table"
	"github.com/kristofer/cinder/pkg/value"
)

func str(s string) *value.ObjString {
	return &value.ObjString{Chars: s, Hash: table.HashString(s)}
}

func TestTableSetGetDelete(t *testing.T) {
	tb := table.New()
	key := str("answer")

	isNew := tb.Set(key, value.Number(42))
	require.True(t, isNew)

	v, ok := tb.Get(key)
	require.True(t, ok)
	require.Equal(t, value.Number(42), v)

	isNew = tb.Set(key, value.Number(43))
	require.False(t, isNew, "overwriting an existing key is not a new insert")

	require.True(t, tb.Delete(key))
	_, ok = tb.Get(key)
	require.False(t, ok)
	require.False(t, tb.Delete(key), "deleting twice reports not-found the second time")
}

func TestTableGrowsAndKeepsAllEntries(t *testing.T) {
	tb := table.New()
	const n = 200
	keys := make([]*value.ObjString, n)
	for i := 0; i < n; i++ {
		keys[i] = str(fmt.Sprintf("key-%d", i))
		tb.Set(keys[i], value.Number(float64(i)))
	}
	require.Equal(t, n, tb.Count())
	for i, k := range keys {
		v, ok := tb.Get(k)
		require.True(t, ok)
		require.Equal(t, value.Number(float64(i)), v)
	}
}

func TestTableTombstoneDoesNotBreakProbing(t *testing.T) {
	tb := table.New()
	a, b, c := str("a"), str("b"), str("c")
	tb.Set(a, value.Bool(true))
	tb.Set(b, value.Bool(true))
	tb.Set(c, value.Bool(true))

	tb.Delete(b)

	_, ok := tb.Get(a)
	require.True(t, ok)
	_, ok = tb.Get(c)
	require.True(t, ok, "deleting b must not hide c even if they share a's probe sequence")
}

func TestFindString(t *testing.T) {
	tb := table.New()
	s := str("hello")
	tb.Set(s, value.Bool(true))

	found := tb.FindString("hello", table.HashString("hello"))
	require.Same(t, s, found)

	require.Nil(t, tb.FindString("missing", table.HashString("missing")))
}

func TestHashStringIsDeterministic(t *testing.T) {
	require.Equal(t, table.HashString("cinder"), table.HashString("cinder"))
	require.NotEqual(t, table.HashString("cinder"), table.HashString("ember"))
}
