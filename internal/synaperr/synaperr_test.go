package synaperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndKindOf(t *testing.T) {
	err := New(NotFound, "missing key")
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, NotFound, kind)
	assert.Contains(t, err.Error(), "missing key")
}

func TestIsMatchesKind(t *testing.T) {
	err := New(WrongType, "bad type")
	assert.True(t, Is(err, WrongType))
	assert.False(t, Is(err, NotFound))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(DurabilityFailed, "fsync failed", cause)

	assert.True(t, errors.Is(err, cause))
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, DurabilityFailed, kind)
}

func TestKindOfNonSynapError(t *testing.T) {
	_, ok := KindOf(errors.New("plain error"))
	assert.False(t, ok)
}
