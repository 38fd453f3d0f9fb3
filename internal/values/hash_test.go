package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHSetHGet(t *testing.T) {
	o := newTestOps()
	created, err := o.HSet(nil, "h", "f1", "v1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = o.HSet(nil, "h", "f1", "v2")
	require.NoError(t, err)
	assert.False(t, created, "updating an existing field is not a creation")

	v, ok, err := o.HGet("h", "f1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestHDel(t *testing.T) {
	o := newTestOps()
	_, _ = o.HSet(nil, "h", "f1", "v1")

	removed, err := o.HDel(nil, "h", "f1")
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, _ := o.HGet("h", "f1")
	assert.False(t, ok)
}

func TestHGetAllIsACopy(t *testing.T) {
	o := newTestOps()
	_, _ = o.HSet(nil, "h", "f1", "v1")

	all, err := o.HGetAll("h")
	require.NoError(t, err)
	all["f1"] = "mutated"

	v, _, _ := o.HGet("h", "f1")
	assert.Equal(t, "v1", v, "HGetAll must return an independent copy")
}

func TestHIncrBy(t *testing.T) {
	o := newTestOps()
	v, err := o.HIncrBy(nil, "h", "counter", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = o.HIncrBy(nil, "h", "counter", -2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestHIncrByNonIntegerField(t *testing.T) {
	o := newTestOps()
	_, _ = o.HSet(nil, "h", "f", "not-a-number")

	_, err := o.HIncrBy(nil, "h", "f", 1)
	assert.Error(t, err)
}

func TestHLen(t *testing.T) {
	o := newTestOps()
	_, _ = o.HSet(nil, "h", "f1", "v1")
	_, _ = o.HSet(nil, "h", "f2", "v2")

	n, err := o.HLen("h")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
