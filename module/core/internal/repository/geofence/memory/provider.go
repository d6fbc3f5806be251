package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/geofence"
)

var _ geofence.Provider = (*Provider)(nil)

// Provider keeps geofences in process memory. It is used when no Redis
// address is configured.
type Provider struct {
	mu     sync.Mutex
	fields map[string]domain.Field
	inside map[string]struct{}
	now    func() time.Time
}

func NewProvider() *Provider {
	return &Provider{
		fields: map[string]domain.Field{},
		inside: map[string]struct{}{},
		now:    time.Now,
	}
}

func (p *Provider) AddGeofences(ctx context.Context, fields []domain.Field) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range fields {
		p.fields[f.ID] = f
	}
	return nil
}

func (p *Provider) RemoveGeofences(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		delete(p.fields, id)
		delete(p.inside, id)
	}
	return nil
}

func (p *Provider) Detect(_ context.Context, pos domain.GeoPoint) ([]domain.GeofenceTransition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var out []domain.GeofenceTransition
	for id, f := range p.fields {
		in := pos.DistanceTo(f.Center) <= f.RadiusMeters
		_, was := p.inside[id]
		switch {
		case in && !was:
			p.inside[id] = struct{}{}
			out = append(out, domain.GeofenceTransition{Field: f, Kind: domain.TransitionEnter, Position: pos, Timestamp: now})
		case !in && was:
			delete(p.inside, id)
			out = append(out, domain.GeofenceTransition{Field: f, Kind: domain.TransitionExit, Position: pos, Timestamp: now})
		}
	}
	slices.SortFunc(out, func(a, b domain.GeofenceTransition) int { return strings.Compare(a.Field.ID, b.Field.ID) })
	return out, nil
}

// Registered returns the IDs of the registered geofences in ID order.
func (p *Provider) Registered() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.fields))
	for id := range p.fields {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
