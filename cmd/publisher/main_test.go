package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
)

func TestNextStep_StaysWithinStep(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	start := domain.GeoPoint{Lat: 44.8125, Lon: 20.4612}

	for i := 0; i < 100; i++ {
		lat, lon := nextStep(rng, start.Lat, start.Lon, 50, -1)
		d := start.DistanceTo(domain.GeoPoint{Lat: lat, Lon: lon})
		assert.LessOrEqual(t, d, 51.0)
	}
}

func TestNextStep_DriftsAlongBearing(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	lat, lon := 0.0, 0.0
	for i := 0; i < 200; i++ {
		lat, lon = nextStep(rng, lat, lon, 50, 90)
	}
	// due east: longitude grows far more than latitude wanders
	assert.Greater(t, lon, 0.03)
	assert.Less(t, lat, 0.03)
	assert.Greater(t, lat, -0.03)
}

func TestNextStep_ClampsAndWraps(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	lat, lon := nextStep(rng, 89.9999, 179.9999, 500, 0)
	assert.LessOrEqual(t, lat, 90.0)
	assert.NoError(t, domain.GeoPoint{Lat: lat, Lon: lon}.Validate())

	assert.Equal(t, -179.0, wrapLongitude(181))
	assert.Equal(t, 179.0, wrapLongitude(-181))
}
