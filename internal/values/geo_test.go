package values

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoAddValidation(t *testing.T) {
	o := newTestOps()
	err := o.GeoAdd(nil, "g", "bad", 999, 0)
	require.Error(t, err)

	err = o.GeoAdd(nil, "g", "bad2", 0, 999)
	require.Error(t, err)
}

func TestGeoAddAndPos(t *testing.T) {
	o := newTestOps()
	require.NoError(t, o.GeoAdd(nil, "g", "paris", 48.8566, 2.3522))

	lat, lon, ok, err := o.GeoPos("g", "paris")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 48.8566, lat, 0.01)
	assert.InDelta(t, 2.3522, lon, 0.01)
}

func TestGeoDist(t *testing.T) {
	o := newTestOps()
	require.NoError(t, o.GeoAdd(nil, "g", "paris", 48.8566, 2.3522))
	require.NoError(t, o.GeoAdd(nil, "g", "london", 51.5074, -0.1278))

	dist, ok, err := o.GeoDist("g", "paris", "london", UnitKilometers)
	require.NoError(t, err)
	require.True(t, ok)
	// real-world paris-london distance is ~344km
	assert.True(t, math.Abs(dist-344) < 10, "expected ~344km, got %f", dist)
}

func TestGeoHashIsStable(t *testing.T) {
	o := newTestOps()
	require.NoError(t, o.GeoAdd(nil, "g", "paris", 48.8566, 2.3522))

	h1, ok, err := o.GeoHash("g", "paris")
	require.NoError(t, err)
	require.True(t, ok)
	h2, _, _ := o.GeoHash("g", "paris")
	assert.Equal(t, h1, h2)
	assert.NotEmpty(t, h1)
}

func TestGeoRadius(t *testing.T) {
	o := newTestOps()
	require.NoError(t, o.GeoAdd(nil, "g", "near", 48.8566, 2.3522))
	require.NoError(t, o.GeoAdd(nil, "g", "far", -33.8688, 151.2093)) // Sydney

	results, err := o.GeoRadius("g", 48.8566, 2.3522, 50000) // 50km
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].Member)
}

func TestGeoRadiusByMember(t *testing.T) {
	o := newTestOps()
	require.NoError(t, o.GeoAdd(nil, "g", "a", 48.8566, 2.3522))
	require.NoError(t, o.GeoAdd(nil, "g", "b", 48.86, 2.35))

	results, err := o.GeoRadiusByMember("g", "a", 10000)
	require.NoError(t, err)
	assert.Len(t, results, 2, "centering member must include itself at distance 0")
}
