package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nandanugg/minefield-alarm/metrics"
	"github.com/nandanugg/minefield-alarm/module/core/domain"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/geofence"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/publisher"
)

const (
	DefaultFastestInterval = time.Second
	DefaultInboxSize       = 64

	detectTimeout  = 5 * time.Second
	publishTimeout = 5 * time.Second
)

type positionRecorder interface {
	SaveLocation(ctx context.Context, pos *domain.ObserverPosition) error
}

type TrackerConfig struct {
	// FastestInterval is the minimum spacing between accepted positions.
	// Zero disables the limit.
	FastestInterval time.Duration
	InboxSize       int
}

type positionMsg struct{ pos domain.ObserverPosition }

type resultMsg struct{ res domain.ReconciliationResult }

type timeoutMsg struct{ seq uint64 }

// Tracker is the single point that consumes observer positions. One worker
// goroutine owns the plan in flight; provider calls run asynchronously and
// report back through the inbox.
type Tracker struct {
	selector *GeofenceSelector
	provider geofence.Provider
	alarms   publisher.AlarmPublisher
	notifier publisher.PositionNotifier
	recorder positionRecorder
	limiter  *rate.Limiter
	now      func() time.Time

	inbox chan any
	done  chan struct{}

	// owned by the Run goroutine
	inflight *domain.ReconciliationPlan
	timer    *time.Timer
	deferred *domain.ObserverPosition
	last     *domain.ObserverPosition
}

// NewTracker wires the tracker. notifier and recorder may be nil.
func NewTracker(
	selector *GeofenceSelector,
	provider geofence.Provider,
	alarms publisher.AlarmPublisher,
	notifier publisher.PositionNotifier,
	recorder positionRecorder,
	cfg TrackerConfig,
) *Tracker {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultInboxSize
	}
	limit := rate.Inf
	if cfg.FastestInterval > 0 {
		limit = rate.Every(cfg.FastestInterval)
	}

	return &Tracker{
		selector: selector,
		provider: provider,
		alarms:   alarms,
		notifier: notifier,
		recorder: recorder,
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
		inbox:    make(chan any, cfg.InboxSize),
		done:     make(chan struct{}),
	}
}

// SubmitPosition queues pos without blocking. It reports false when the
// inbox is full and the position was dropped.
func (t *Tracker) SubmitPosition(pos domain.ObserverPosition) bool {
	select {
	case t.inbox <- positionMsg{pos: pos}:
		return true
	default:
		metrics.PositionsTotal.WithLabelValues("dropped").Inc()
		zap.L().Warn("tracker inbox full, position dropped", zap.String("device_id", pos.DeviceID))
		return false
	}
}

// Run processes the inbox until ctx is cancelled. It must be called once.
func (t *Tracker) Run(ctx context.Context) error {
	defer close(t.done)
	defer t.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-t.inbox:
			switch m := msg.(type) {
			case positionMsg:
				t.handlePosition(ctx, m.pos)
			case resultMsg:
				t.handleResult(ctx, m.res)
			case timeoutMsg:
				t.handleTimeout(ctx, m.seq)
			}
		}
	}
}

func (t *Tracker) post(msg any) {
	select {
	case t.inbox <- msg:
	case <-t.done:
	}
}

func (t *Tracker) handlePosition(ctx context.Context, pos domain.ObserverPosition) {
	log := zap.L().With(zap.String("device_id", pos.DeviceID))

	if err := validatePosition(pos); err != nil {
		metrics.PositionsTotal.WithLabelValues("invalid").Inc()
		log.Warn("position rejected", zap.Error(err))
		return
	}
	if !t.limiter.AllowN(t.now(), 1) {
		metrics.PositionsTotal.WithLabelValues("throttled").Inc()
		log.Debug("position throttled")
		return
	}
	metrics.PositionsTotal.WithLabelValues("accepted").Inc()

	if t.recorder != nil {
		if err := t.recorder.SaveLocation(ctx, &pos); err != nil {
			log.Error("save position", zap.Error(err))
		}
	}
	if t.notifier != nil {
		if err := t.notifier.NotifyPosition(ctx, &pos); err != nil {
			log.Debug("notify position", zap.Error(err))
		}
	}

	t.last = &pos
	t.detect(ctx, pos)

	if t.inflight != nil {
		if t.deferred != nil {
			metrics.PositionsTotal.WithLabelValues("coalesced").Inc()
		}
		t.deferred = &pos
		return
	}
	t.refresh(ctx, pos)
}

func validatePosition(pos domain.ObserverPosition) error {
	if pos.DeviceID == "" {
		return domain.NewInvalidInputError("device_id", "required")
	}
	if pos.Accuracy < 0 {
		return domain.NewInvalidInputError("accuracy", "must not be negative")
	}
	return pos.Point.Validate()
}

func (t *Tracker) detect(ctx context.Context, pos domain.ObserverPosition) {
	dctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	transitions, err := t.provider.Detect(dctx, pos.Point)
	if err != nil {
		zap.L().Error("detect geofence transitions", zap.String("device_id", pos.DeviceID), zap.Error(err))
		return
	}
	for _, tr := range transitions {
		if tr.Kind != domain.TransitionEnter {
			zap.L().Debug("geofence exited", zap.String("field_id", tr.Field.ID))
			continue
		}
		t.raiseAlarm(ctx, pos, tr)
	}
}

func (t *Tracker) raiseAlarm(ctx context.Context, pos domain.ObserverPosition, tr domain.GeofenceTransition) {
	ts := tr.Timestamp
	if ts.IsZero() {
		ts = pos.Timestamp
	}
	alarm := &domain.Alarm{
		EventID:        uuid.NewString(),
		DeviceID:       pos.DeviceID,
		FieldID:        tr.Field.ID,
		FieldName:      tr.Field.Name,
		Position:       tr.Position,
		DistanceMeters: tr.Position.DistanceTo(tr.Field.Center),
		Timestamp:      ts,
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	log := zap.L().With(zap.String("event_id", alarm.EventID), zap.String("field_id", alarm.FieldID))
	if err := t.alarms.PublishAlarm(pctx, alarm); err != nil {
		metrics.AlarmsTotal.WithLabelValues("failed").Inc()
		log.Error("publish alarm", zap.Error(err))
		return
	}
	metrics.AlarmsTotal.WithLabelValues("published").Inc()
	log.Info("minefield entered", zap.Float64("distance_meters", alarm.DistanceMeters))
}

func (t *Tracker) refresh(ctx context.Context, pos domain.ObserverPosition) {
	plan, err := t.selector.Refresh(ctx, pos.Point)
	if err != nil {
		zap.L().Error("refresh geofences", zap.String("device_id", pos.DeviceID), zap.Error(err))
		return
	}
	metrics.ActiveGeofences.Set(float64(len(plan.Target)))
	if plan.Empty() {
		return
	}
	metrics.PlansTotal.Inc()
	t.dispatch(ctx, plan)
}

func (t *Tracker) dispatch(ctx context.Context, plan domain.ReconciliationPlan) {
	t.inflight = &plan
	seq := plan.Seq
	t.timer = time.AfterFunc(time.Until(plan.Deadline), func() {
		t.post(timeoutMsg{seq: seq})
	})

	zap.L().Debug("reconciling geofences",
		zap.Uint64("seq", plan.Seq),
		zap.Int("remove", len(plan.ToRemove)),
		zap.Int("add", len(plan.ToAdd)),
	)
	go t.execute(ctx, plan)
}

func (t *Tracker) execute(ctx context.Context, plan domain.ReconciliationPlan) {
	ctx, cancel := context.WithDeadline(ctx, plan.Deadline)
	defer cancel()

	start := time.Now()
	err := t.reconcile(ctx, plan)
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())

	res := domain.ReconciliationResult{Seq: plan.Seq, Err: err}
	if err != nil {
		res.Details = err.Error()
	}
	t.post(resultMsg{res: res})
}

func (t *Tracker) reconcile(ctx context.Context, plan domain.ReconciliationPlan) error {
	if ids := plan.RemoveIDs(); len(ids) > 0 {
		metrics.GeofenceCalls.WithLabelValues("remove").Inc()
		if err := t.provider.RemoveGeofences(ctx, ids); err != nil {
			return eris.Wrapf(&domain.ReconciliationError{Op: "remove", Err: err}, "plan %d", plan.Seq)
		}
	}
	if len(plan.ToAdd) > 0 {
		metrics.GeofenceCalls.WithLabelValues("add").Inc()
		if err := t.provider.AddGeofences(ctx, plan.ToAdd); err != nil {
			return eris.Wrapf(&domain.ReconciliationError{Op: "add", Err: err}, "plan %d", plan.Seq)
		}
	}
	return nil
}

func (t *Tracker) handleResult(ctx context.Context, res domain.ReconciliationResult) {
	if t.inflight == nil || t.inflight.Seq != res.Seq {
		metrics.ReconciliationsTotal.WithLabelValues("stale").Inc()
		zap.L().Debug("stale reconciliation result", zap.Uint64("seq", res.Seq))
		return
	}

	t.selector.OnReconciliationResult(res)
	if res.Success() {
		metrics.ReconciliationsTotal.WithLabelValues("success").Inc()
		// newly registered geofences may already contain the observer
		if t.last != nil && len(t.inflight.ToAdd) > 0 {
			t.detect(ctx, *t.last)
		}
	} else {
		metrics.ReconciliationsTotal.WithLabelValues("failed").Inc()
		zap.L().Warn("geofence reconciliation failed, retrying on next update",
			zap.Uint64("seq", res.Seq), zap.Error(res.Err))
	}
	t.finish(ctx)
}

func (t *Tracker) handleTimeout(ctx context.Context, seq uint64) {
	if t.inflight == nil || t.inflight.Seq != seq {
		return
	}

	t.selector.OnReconciliationResult(domain.ReconciliationResult{
		Seq:     seq,
		Err:     domain.ErrReconcileTimeout,
		Details: "no provider result before deadline",
	})
	metrics.ReconciliationsTotal.WithLabelValues("timeout").Inc()
	zap.L().Warn("geofence reconciliation timed out", zap.Uint64("seq", seq))
	t.finish(ctx)
}

func (t *Tracker) finish(ctx context.Context) {
	t.stopTimer()
	t.inflight = nil

	if t.deferred != nil {
		pos := *t.deferred
		t.deferred = nil
		t.refresh(ctx, pos)
	}
}

func (t *Tracker) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
