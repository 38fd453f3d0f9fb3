package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/synap/internal/keyspace"
)

func TestZAddBasic(t *testing.T) {
	o := newTestOps()
	n, err := o.ZAdd(nil, "z", ZAddOpts{}, []keyspace.ZMember{
		{Member: "a", Score: 1}, {Member: "b", Score: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	card, err := o.ZCard("z")
	require.NoError(t, err)
	assert.Equal(t, 2, card)
}

func TestZAddNX(t *testing.T) {
	o := newTestOps()
	_, _ = o.ZAdd(nil, "z", ZAddOpts{}, []keyspace.ZMember{{Member: "a", Score: 1}})

	n, err := o.ZAdd(nil, "z", ZAddOpts{NX: true}, []keyspace.ZMember{{Member: "a", Score: 99}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	members, _ := o.ZRange("z", 0, -1)
	require.Len(t, members, 1)
	assert.Equal(t, float64(1), members[0].Score, "NX must not update an existing member's score")
}

func TestZAddGTLT(t *testing.T) {
	o := newTestOps()
	_, _ = o.ZAdd(nil, "z", ZAddOpts{}, []keyspace.ZMember{{Member: "a", Score: 5}})

	_, _ = o.ZAdd(nil, "z", ZAddOpts{GT: true}, []keyspace.ZMember{{Member: "a", Score: 3}})
	members, _ := o.ZRange("z", 0, -1)
	assert.Equal(t, float64(5), members[0].Score, "GT rejects a smaller score")

	_, _ = o.ZAdd(nil, "z", ZAddOpts{GT: true}, []keyspace.ZMember{{Member: "a", Score: 10}})
	members, _ = o.ZRange("z", 0, -1)
	assert.Equal(t, float64(10), members[0].Score)
}

func TestZAddCHCountsUpdates(t *testing.T) {
	o := newTestOps()
	_, _ = o.ZAdd(nil, "z", ZAddOpts{}, []keyspace.ZMember{{Member: "a", Score: 1}})

	n, err := o.ZAdd(nil, "z", ZAddOpts{CH: true}, []keyspace.ZMember{{Member: "a", Score: 2}, {Member: "b", Score: 3}})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "CH counts both the update to a and the new member b")
}

func TestZRankAndRange(t *testing.T) {
	o := newTestOps()
	_, _ = o.ZAdd(nil, "z", ZAddOpts{}, []keyspace.ZMember{
		{Member: "a", Score: 1}, {Member: "b", Score: 2}, {Member: "c", Score: 3},
	})

	rank, ok, err := o.ZRank("z", "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, rank)

	byScore, err := o.ZRangeByScore("z", 2, 3)
	require.NoError(t, err)
	require.Len(t, byScore, 2)
	assert.Equal(t, "b", byScore[0].Member)
}

func TestZIncrBy(t *testing.T) {
	o := newTestOps()
	score, err := o.ZIncrBy(nil, "z", "a", 5)
	require.NoError(t, err)
	assert.Equal(t, float64(5), score)

	score, err = o.ZIncrBy(nil, "z", "a", -2)
	require.NoError(t, err)
	assert.Equal(t, float64(3), score)
}

func TestZRemEmptiesSet(t *testing.T) {
	o := newTestOps()
	_, _ = o.ZAdd(nil, "z", ZAddOpts{}, []keyspace.ZMember{{Member: "a", Score: 1}})

	removed, err := o.ZRem(nil, "z", "a")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, o.KS.Exists("z"))
}
