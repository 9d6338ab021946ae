package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKM(t *testing.T) {
	sf := Coordinate{Lat: 37.7749, Lng: -122.4194}
	la := Coordinate{Lat: 34.0522, Lng: -118.2437}

	d := HaversineKM(sf, sf)
	assert.InDelta(t, 0, d, 1e-6)

	d = HaversineKM(sf, la)
	assert.InDelta(t, 559, d, 15) // SF-LA is ~559km great-circle
}

func TestParseRadius(t *testing.T) {
	cases := map[string]float64{
		"100km":   100,
		"100 km":  100,
		"50000m":  50,
		"10miles": 16.0934,
	}
	for expr, want := range cases {
		got, err := ParseRadius(expr)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 0.01, expr)
	}

	_, err := ParseRadius("bogus")
	require.Error(t, err)
}

func TestWithinRadius(t *testing.T) {
	center := Coordinate{Lat: 0, Lng: 0}
	near := Coordinate{Lat: 0.01, Lng: 0}
	far := Coordinate{Lat: 10, Lng: 10}

	assert.True(t, WithinRadius(center, near, 5))
	assert.False(t, WithinRadius(center, far, 5))
}
