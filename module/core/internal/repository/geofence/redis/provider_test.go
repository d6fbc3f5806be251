package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
)

func newTestProvider(t *testing.T) (*Provider, *redis.Client) {
	t.Helper()
	addr := os.Getenv("MINEFIELD_REDIS_ADDR")
	if addr == "" {
		t.Skip("MINEFIELD_REDIS_ADDR not set; skipping integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	prefix := fmt.Sprintf("test:%d:", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx := context.Background()
		rdb.Del(ctx, prefix+activeKey, prefix+fieldsKey, prefix+insideKey, prefix+radiusKey, prefix+polarKey)
	})
	return NewProvider(rdb, Options{KeyPrefix: prefix}), rdb
}

func TestProvider_EnterExit(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	mf := domain.Field{ID: "BIH-0001", Name: "Vogosca ridge", Center: domain.GeoPoint{Lat: 43.9012, Lon: 18.3451}, RadiusMeters: 100}
	require.NoError(t, p.AddGeofences(ctx, []domain.Field{mf}))

	tr, err := p.Detect(ctx, domain.GeoPoint{Lat: 43.9012, Lon: 18.3455})
	require.NoError(t, err)
	require.Len(t, tr, 1)
	assert.Equal(t, domain.TransitionEnter, tr[0].Kind)
	assert.Equal(t, mf, tr[0].Field)

	tr, err = p.Detect(ctx, domain.GeoPoint{Lat: 43.9012, Lon: 18.3455})
	require.NoError(t, err)
	assert.Empty(t, tr)

	tr, err = p.Detect(ctx, domain.GeoPoint{Lat: 43.95, Lon: 18.40})
	require.NoError(t, err)
	require.Len(t, tr, 1)
	assert.Equal(t, domain.TransitionExit, tr[0].Kind)
}

func TestProvider_RemoveClearsState(t *testing.T) {
	p, rdb := newTestProvider(t)
	ctx := context.Background()

	mf := domain.Field{ID: "BIH-0002", Center: domain.GeoPoint{Lat: 43.91, Lon: 18.35}, RadiusMeters: 80}
	require.NoError(t, p.AddGeofences(ctx, []domain.Field{mf}))
	_, err := p.Detect(ctx, mf.Center)
	require.NoError(t, err)

	require.NoError(t, p.RemoveGeofences(ctx, []string{"BIH-0002", "never-added"}))

	n, err := rdb.ZCard(ctx, p.key(activeKey)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	inside, err := rdb.SMembers(ctx, p.key(insideKey)).Result()
	require.NoError(t, err)
	assert.Empty(t, inside)
}

func TestProvider_WideFieldDetectedFarFromCenter(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	small := domain.Field{ID: "BIH-0003", Center: domain.GeoPoint{Lat: 43.80, Lon: 18.30}, RadiusMeters: 50}
	wide := domain.Field{ID: "BIH-0004", Center: domain.GeoPoint{Lat: 43.90, Lon: 18.30}, RadiusMeters: 8000}
	require.NoError(t, p.AddGeofences(ctx, []domain.Field{small, wide}))

	// about 5.5 km from the wide field's center
	tr, err := p.Detect(ctx, domain.GeoPoint{Lat: 43.85, Lon: 18.30})
	require.NoError(t, err)
	require.Len(t, tr, 1)
	assert.Equal(t, "BIH-0004", tr[0].Field.ID)
	assert.Equal(t, domain.TransitionEnter, tr[0].Kind)
}

func TestProvider_PolarField(t *testing.T) {
	p, rdb := newTestProvider(t)
	ctx := context.Background()

	polar := domain.Field{ID: "ANT-0001", Center: domain.GeoPoint{Lat: -89.5, Lon: 10}, RadiusMeters: 500}
	require.NoError(t, p.AddGeofences(ctx, []domain.Field{polar}))

	tr, err := p.Detect(ctx, polar.Center)
	require.NoError(t, err)
	require.Len(t, tr, 1)
	assert.Equal(t, domain.TransitionEnter, tr[0].Kind)

	require.NoError(t, p.RemoveGeofences(ctx, []string{polar.ID}))
	members, err := rdb.SMembers(ctx, p.key(polarKey)).Result()
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestGeoIndexable(t *testing.T) {
	tests := []struct {
		lat  float64
		want bool
	}{
		{0, true},
		{85.05, true},
		{-85.05112878, true},
		{85.06, false},
		{-90, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.lat), func(t *testing.T) {
			assert.Equal(t, tt.want, geoIndexable(domain.GeoPoint{Lat: tt.lat}))
		})
	}
}

func TestSearchRadius(t *testing.T) {
	assert.Zero(t, searchRadius(nil))
	assert.Equal(t, 8000.0, searchRadius([]redis.Z{{Score: 8000, Member: "BIH-0004"}}))
}

func TestUnionIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, unionIDs([]string{"c", "a"}, nil, []string{"b", "a"}))
	assert.Empty(t, unionIDs(nil, nil))
}
