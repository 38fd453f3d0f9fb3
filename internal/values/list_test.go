package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLPushRPushOrder(t *testing.T) {
	o := newTestOps()
	n, err := o.LPush(nil, "l", "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := o.LRange("l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, got, "LPUSH l a b c leaves [c, b, a]")
}

func TestRPushAppendsInOrder(t *testing.T) {
	o := newTestOps()
	_, _ = o.RPush(nil, "l", "a", "b", "c")

	got, _ := o.LRange("l", 0, -1)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestLPopRPopCount(t *testing.T) {
	o := newTestOps()
	_, _ = o.RPush(nil, "l", "a", "b", "c", "d")

	popped, err := o.LPop(nil, "l", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, popped)

	popped, err = o.RPop(nil, "l", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, popped)
}

func TestLIndexNegative(t *testing.T) {
	o := newTestOps()
	_, _ = o.RPush(nil, "l", "a", "b", "c")

	v, ok, err := o.LIndex("l", -1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestLSetOutOfRange(t *testing.T) {
	o := newTestOps()
	_, _ = o.RPush(nil, "l", "a", "b")

	err := o.LSet(nil, "l", 5, "x")
	require.Error(t, err)
}

func TestLTrim(t *testing.T) {
	o := newTestOps()
	_, _ = o.RPush(nil, "l", "a", "b", "c", "d", "e")

	err := o.LTrim(nil, "l", 1, 3)
	require.NoError(t, err)

	got, _ := o.LRange("l", 0, -1)
	assert.Equal(t, []string{"b", "c", "d"}, got)
}

func TestLRemDirection(t *testing.T) {
	o := newTestOps()
	_, _ = o.RPush(nil, "l", "a", "x", "a", "x", "a")

	removed, err := o.LRem(nil, "l", "a", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	got, _ := o.LRange("l", 0, -1)
	assert.Equal(t, []string{"x", "x", "a"}, got)
}

func TestLLenEmptyListRemoved(t *testing.T) {
	o := newTestOps()
	_, _ = o.RPush(nil, "l", "a")
	_, _ = o.LPop(nil, "l", 1)

	n, err := o.LLen("l")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, o.KS.Exists("l"), "an emptied list is removed, not left as an empty entry")
}
