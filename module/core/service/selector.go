package service

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/database"
)

const (
	DefaultMaxRadiusMeters  = 5000
	DefaultMaxActive        = 100
	DefaultReconcileTimeout = 30 * time.Second
)

type SelectorConfig struct {
	MaxRadiusMeters  float64
	MaxActive        int
	ReconcileTimeout time.Duration
}

func (c SelectorConfig) withDefaults() SelectorConfig {
	if c.MaxRadiusMeters <= 0 {
		c.MaxRadiusMeters = DefaultMaxRadiusMeters
	}
	if c.MaxActive <= 0 {
		c.MaxActive = DefaultMaxActive
	}
	if c.ReconcileTimeout <= 0 {
		c.ReconcileTimeout = DefaultReconcileTimeout
	}
	return c
}

type rankedField struct {
	field domain.Field
	dist  float64
}

// SelectNearest returns the candidates whose center lies within
// maxRadiusMeters of observer, ordered by distance then ID, truncated to the
// maxActive nearest. Candidates with an invalid center are skipped.
func SelectNearest(observer domain.GeoPoint, candidates []domain.Field, maxRadiusMeters float64, maxActive int) ([]domain.Field, error) {
	if err := observer.Validate(); err != nil {
		return nil, eris.Wrap(err, "observer position")
	}
	if math.IsNaN(maxRadiusMeters) || maxRadiusMeters <= 0 {
		return nil, domain.NewInvalidInputError("max_radius_meters", "must be positive")
	}
	if maxActive < 0 {
		return nil, domain.NewInvalidInputError("max_active", "must not be negative")
	}

	ranked := make([]rankedField, 0, len(candidates))
	for _, f := range candidates {
		if f.Center.Validate() != nil {
			continue
		}
		if d := observer.DistanceTo(f.Center); d <= maxRadiusMeters {
			ranked = append(ranked, rankedField{field: f, dist: d})
		}
	}

	slices.SortFunc(ranked, func(a, b rankedField) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return strings.Compare(a.field.ID, b.field.ID)
	})
	if len(ranked) > maxActive {
		ranked = ranked[:maxActive]
	}

	result := make([]domain.Field, len(ranked))
	for i, r := range ranked {
		result[i] = r.field
	}
	return result, nil
}

type pendingPlan struct {
	plan        domain.ReconciliationPlan
	baseFields  map[string]domain.Field
	baseSuspect map[string]domain.Field
}

// GeofenceSelector keeps the active set of geofenced fields around the
// observer and turns each position update into a minimal add/remove plan for
// the geofence provider.
//
// registered is the set the provider is believed to hold. It is updated
// optimistically when a plan is issued and rolled back if the plan fails.
// suspect holds fields a failed plan may have left registered or may have
// removed. They are removed by the next plan unless still wanted, in which
// case they are added again.
type GeofenceSelector struct {
	registry database.FieldRegistry
	cfg      SelectorConfig
	now      func() time.Time

	mu         sync.Mutex
	seq        uint64
	active     []domain.Field
	registered map[string]domain.Field
	suspect    map[string]domain.Field
	pending    *pendingPlan
}

func NewGeofenceSelector(registry database.FieldRegistry, cfg SelectorConfig) *GeofenceSelector {
	return &GeofenceSelector{
		registry:   registry,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		registered: map[string]domain.Field{},
		suspect:    map[string]domain.Field{},
	}
}

// Refresh recomputes the active set for pos and returns the plan that moves
// the provider to it. An overdue pending plan is failed first; a pending plan
// still within its deadline is superseded and its result will be ignored.
func (s *GeofenceSelector) Refresh(ctx context.Context, pos domain.GeoPoint) (domain.ReconciliationPlan, error) {
	if err := pos.Validate(); err != nil {
		return domain.ReconciliationPlan{}, eris.Wrap(err, "refresh")
	}

	fields, err := s.registry.GetAllFields(ctx)
	if err != nil {
		return domain.ReconciliationPlan{}, eris.Wrap(err, "refresh: load fields")
	}

	next, err := SelectNearest(pos, fields, s.cfg.MaxRadiusMeters, s.cfg.MaxActive)
	if err != nil {
		return domain.ReconciliationPlan{}, eris.Wrap(err, "refresh")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.pending != nil {
		if !now.Before(s.pending.plan.Deadline) {
			s.failPendingLocked()
		} else {
			s.pending = nil
		}
	}

	wanted := make(map[string]domain.Field, len(next))
	for _, f := range next {
		wanted[f.ID] = f
	}

	var toRemove []domain.Field
	for _, set := range []map[string]domain.Field{s.registered, s.suspect} {
		for id, f := range set {
			if _, ok := wanted[id]; !ok {
				toRemove = append(toRemove, f)
			}
		}
	}
	slices.SortFunc(toRemove, func(a, b domain.Field) int { return strings.Compare(a.ID, b.ID) })

	var toAdd []domain.Field
	for _, f := range next {
		// a changed definition under the same ID is re-added
		if old, ok := s.registered[f.ID]; !ok || old != f {
			toAdd = append(toAdd, f)
		}
	}

	s.seq++
	plan := domain.ReconciliationPlan{
		Seq:       s.seq,
		ToRemove:  toRemove,
		ToAdd:     toAdd,
		Target:    slices.Clone(next),
		Position:  pos,
		CreatedAt: now,
		Deadline:  now.Add(s.cfg.ReconcileTimeout),
	}

	base, baseSuspect := s.registered, s.suspect
	s.registered = wanted
	s.suspect = map[string]domain.Field{}
	s.active = next

	if !plan.Empty() {
		s.pending = &pendingPlan{plan: plan, baseFields: base, baseSuspect: baseSuspect}
	}
	return plan, nil
}

// OnReconciliationResult applies the provider's answer for a plan. Results
// for any plan other than the pending one are stale and ignored; the return
// value reports whether the result was applied.
func (s *GeofenceSelector) OnReconciliationResult(res domain.ReconciliationResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.plan.Seq != res.Seq {
		return false
	}
	if res.Success() {
		s.pending = nil
		return true
	}
	s.failPendingLocked()
	return true
}

// Expire fails the pending plan if its deadline has passed at now.
func (s *GeofenceSelector) Expire(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || now.Before(s.pending.plan.Deadline) {
		return false
	}
	s.failPendingLocked()
	return true
}

func (s *GeofenceSelector) failPendingLocked() {
	p := s.pending
	s.pending = nil

	registered := p.baseFields
	suspect := make(map[string]domain.Field, len(p.baseSuspect)+len(p.plan.ToRemove)+len(p.plan.ToAdd))
	for id, f := range p.baseSuspect {
		suspect[id] = f
	}
	// removals run before adds, so any of them may have been applied
	for _, f := range p.plan.ToRemove {
		delete(registered, f.ID)
		suspect[f.ID] = f
	}
	s.registered = registered
	for _, f := range p.plan.ToAdd {
		if _, ok := s.registered[f.ID]; !ok {
			suspect[f.ID] = f
		}
	}
	s.suspect = suspect
}

// ActiveSet returns a copy of the current active set, nearest first.
func (s *GeofenceSelector) ActiveSet() []domain.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.active)
}

// Pending returns the plan awaiting a provider result, if any.
func (s *GeofenceSelector) Pending() (domain.ReconciliationPlan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return domain.ReconciliationPlan{}, false
	}
	return s.pending.plan, true
}
