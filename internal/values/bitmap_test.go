package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetBitGetBit(t *testing.T) {
	o := newTestOps()
	prev, err := o.SetBit(nil, "b", 7, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, prev)

	v, err := o.GetBit("b", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = o.GetBit("b", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestBitCount(t *testing.T) {
	o := newTestOps()
	_, _ = o.SetBit(nil, "b", 0, 1)
	_, _ = o.SetBit(nil, "b", 1, 1)
	_, _ = o.SetBit(nil, "b", 9, 1)

	n, err := o.BitCount("b", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBitPos(t *testing.T) {
	o := newTestOps()
	_, _ = o.SetBit(nil, "b", 5, 1)

	pos, err := o.BitPos("b", 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)
}

func TestBitOpAnd(t *testing.T) {
	o := newTestOps()
	_, _ = o.SetBit(nil, "a", 0, 1)
	_, _ = o.SetBit(nil, "a", 1, 1)
	_, _ = o.SetBit(nil, "b", 0, 1)

	_, err := o.BitOp(nil, "AND", "dest", "a", "b")
	require.NoError(t, err)

	v0, _ := o.GetBit("dest", 0)
	v1, _ := o.GetBit("dest", 1)
	assert.Equal(t, 1, v0)
	assert.Equal(t, 0, v1)
}

func TestBitfieldSetAndGet(t *testing.T) {
	o := newTestOps()
	results, err := o.Bitfield(nil, "bf", []BitfieldOp{
		{Kind: "SET", Signed: false, Width: 8, Offset: 0, Value: 200},
		{Kind: "GET", Signed: false, Width: 8, Offset: 0},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NotNil(t, results[1])
	assert.Equal(t, int64(200), *results[1])
}

func TestBitfieldOverflowSat(t *testing.T) {
	o := newTestOps()
	results, err := o.Bitfield(nil, "bf", []BitfieldOp{
		{Kind: "SET", Signed: false, Width: 8, Offset: 0, Value: 300, Overflow: OverflowSat},
	})
	require.NoError(t, err)
	require.NotNil(t, results[0])
}

func TestBitfieldOverflowFailReturnsNil(t *testing.T) {
	o := newTestOps()
	results, err := o.Bitfield(nil, "bf", []BitfieldOp{
		{Kind: "SET", Signed: false, Width: 8, Offset: 0, Value: 300, Overflow: OverflowFail},
	})
	require.NoError(t, err)
	assert.Nil(t, results[0])
}

func TestBitfieldIncrByWrap(t *testing.T) {
	o := newTestOps()
	results, err := o.Bitfield(nil, "bf", []BitfieldOp{
		{Kind: "SET", Signed: false, Width: 8, Offset: 0, Value: 250},
		{Kind: "INCRBY", Signed: false, Width: 8, Offset: 0, Value: 10, Overflow: OverflowWrap},
	})
	require.NoError(t, err)
	require.NotNil(t, results[1])
	assert.Equal(t, int64(4), *results[1], "260 wraps to 4 in an 8-bit unsigned field")
}
