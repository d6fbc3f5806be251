package redis

import (
	"context"
	"encoding/json"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/geofence"
)

var _ geofence.Provider = (*Provider)(nil)

const (
	activeKey = "geofences:active"
	fieldsKey = "geofences:fields"
	insideKey = "geofences:inside"
	radiusKey = "geofences:radius"
	polarKey  = "geofences:polar"

	// maxGeoLatitude is the largest latitude GEOADD accepts.
	maxGeoLatitude = 85.05112878
)

type Options struct {
	KeyPrefix string
}

// Provider stores geofence centers in a Redis GEO set, field definitions in a
// hash, trigger radii in a sorted set and the fields containing the observer
// in a set. Fields too close to a pole for the GEO set are kept in a plain
// set and checked by distance on every Detect.
type Provider struct {
	rdb    redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewProvider(rdb redis.Cmdable, opts Options) *Provider {
	return &Provider{
		rdb:    rdb,
		prefix: opts.KeyPrefix,
		now:    time.Now,
	}
}

func (p *Provider) key(name string) string { return p.prefix + name }

func geoIndexable(pt domain.GeoPoint) bool {
	return math.Abs(pt.Lat) <= maxGeoLatitude
}

// searchRadius is the GEOSEARCH radius for the largest registered trigger
// radius; any field containing the observer has its center within it.
func searchRadius(largest []redis.Z) float64 {
	if len(largest) == 0 {
		return 0
	}
	return largest[0].Score
}

// unionIDs merges id lists into one sorted list without duplicates.
func unionIDs(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (p *Provider) AddGeofences(ctx context.Context, fields []domain.Field) error {
	if len(fields) == 0 {
		return nil
	}

	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, f := range fields {
			data, err := json.Marshal(f)
			if err != nil {
				return eris.Wrapf(err, "marshal field %s", f.ID)
			}
			pipe.HSet(ctx, p.key(fieldsKey), f.ID, data)
			pipe.ZAdd(ctx, p.key(radiusKey), redis.Z{Score: f.RadiusMeters, Member: f.ID})
			if geoIndexable(f.Center) {
				pipe.GeoAdd(ctx, p.key(activeKey), &redis.GeoLocation{Name: f.ID, Longitude: f.Center.Lon, Latitude: f.Center.Lat})
				pipe.SRem(ctx, p.key(polarKey), f.ID)
			} else {
				pipe.SAdd(ctx, p.key(polarKey), f.ID)
				pipe.ZRem(ctx, p.key(activeKey), f.ID)
			}
		}
		return nil
	})
	return eris.Wrapf(err, "add %d geofences", len(fields))
}

func (p *Provider) RemoveGeofences(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, p.key(activeKey), members...)
		pipe.HDel(ctx, p.key(fieldsKey), ids...)
		pipe.ZRem(ctx, p.key(radiusKey), members...)
		pipe.SRem(ctx, p.key(polarKey), members...)
		pipe.SRem(ctx, p.key(insideKey), members...)
		return nil
	})
	return eris.Wrapf(err, "remove %d geofences", len(ids))
}

func (p *Provider) Detect(ctx context.Context, pos domain.GeoPoint) ([]domain.GeofenceTransition, error) {
	candidates, err := p.candidates(ctx, pos)
	if err != nil {
		return nil, err
	}

	wasInside, err := p.rdb.SMembers(ctx, p.key(insideKey)).Result()
	if err != nil {
		return nil, eris.Wrap(err, "read inside set")
	}

	fields, err := p.loadFields(ctx, unionIDs(candidates, wasInside))
	if err != nil {
		return nil, err
	}

	now := p.now()
	inside := map[string]struct{}{}
	for _, id := range candidates {
		if f, ok := fields[id]; ok && pos.DistanceTo(f.Center) <= f.RadiusMeters {
			inside[id] = struct{}{}
		}
	}

	var out []domain.GeofenceTransition
	var entered, exited []interface{}
	prev := map[string]struct{}{}
	for _, id := range wasInside {
		prev[id] = struct{}{}
		if _, still := inside[id]; !still {
			exited = append(exited, id)
			if f, ok := fields[id]; ok {
				out = append(out, domain.GeofenceTransition{Field: f, Kind: domain.TransitionExit, Position: pos, Timestamp: now})
			}
		}
	}
	for id := range inside {
		if _, was := prev[id]; !was {
			entered = append(entered, id)
			out = append(out, domain.GeofenceTransition{Field: fields[id], Kind: domain.TransitionEnter, Position: pos, Timestamp: now})
		}
	}

	if len(entered) > 0 || len(exited) > 0 {
		_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(entered) > 0 {
				pipe.SAdd(ctx, p.key(insideKey), entered...)
			}
			if len(exited) > 0 {
				pipe.SRem(ctx, p.key(insideKey), exited...)
			}
			return nil
		})
		if err != nil {
			return nil, eris.Wrap(err, "update inside set")
		}
	}

	slices.SortFunc(out, func(a, b domain.GeofenceTransition) int { return strings.Compare(a.Field.ID, b.Field.ID) })
	return out, nil
}

// candidates returns the fields that could contain pos: GEO set members
// within the largest trigger radius plus every polar field.
func (p *Provider) candidates(ctx context.Context, pos domain.GeoPoint) ([]string, error) {
	largest, err := p.rdb.ZRevRangeWithScores(ctx, p.key(radiusKey), 0, 0).Result()
	if err != nil {
		return nil, eris.Wrap(err, "read largest radius")
	}

	var near []string
	if r := searchRadius(largest); r > 0 && geoIndexable(pos) {
		near, err = p.rdb.GeoSearch(ctx, p.key(activeKey), &redis.GeoSearchQuery{
			Longitude:  pos.Lon,
			Latitude:   pos.Lat,
			Radius:     r,
			RadiusUnit: "m",
		}).Result()
		if err != nil {
			return nil, eris.Wrap(err, "geosearch active geofences")
		}
	} else if r > 0 {
		// GEOSEARCH rejects a polar origin; fall back to every indexed member
		near, err = p.rdb.ZRange(ctx, p.key(activeKey), 0, -1).Result()
		if err != nil {
			return nil, eris.Wrap(err, "read active geofences")
		}
	}

	polar, err := p.rdb.SMembers(ctx, p.key(polarKey)).Result()
	if err != nil {
		return nil, eris.Wrap(err, "read polar geofences")
	}
	return unionIDs(near, polar), nil
}

func (p *Provider) loadFields(ctx context.Context, ids []string) (map[string]domain.Field, error) {
	out := make(map[string]domain.Field, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	vals, err := p.rdb.HMGet(ctx, p.key(fieldsKey), ids...).Result()
	if err != nil {
		return nil, eris.Wrap(err, "load geofence fields")
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var f domain.Field
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			return nil, eris.Wrapf(err, "decode field %s", ids[i])
		}
		out[ids[i]] = f
	}
	return out, nil
}
