package domain

import "time"

type TransitionKind string

const (
	TransitionEnter TransitionKind = "geofence_enter"
	TransitionExit  TransitionKind = "geofence_exit"
)

// GeofenceTransition is fired by the provider when the observer crosses a
// geofence boundary.
type GeofenceTransition struct {
	Field     Field          `json:"field"`
	Kind      TransitionKind `json:"kind"`
	Position  GeoPoint       `json:"position"`
	Timestamp time.Time      `json:"timestamp"`
}

// ReconciliationPlan lists the provider calls needed to move the provider's
// registered geofences to Target.
type ReconciliationPlan struct {
	Seq       uint64    `json:"seq"`
	ToRemove  []Field   `json:"to_remove"`
	ToAdd     []Field   `json:"to_add"`
	Target    []Field   `json:"target"`
	Position  GeoPoint  `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	Deadline  time.Time `json:"deadline"`
}

// Empty reports whether the plan needs no provider call.
func (p ReconciliationPlan) Empty() bool {
	return len(p.ToRemove) == 0 && len(p.ToAdd) == 0
}

// RemoveIDs returns the identifiers the provider must unregister.
func (p ReconciliationPlan) RemoveIDs() []string {
	return FieldIDs(p.ToRemove)
}

// ReconciliationResult reports the outcome of executing the plan with the
// same Seq. A nil Err means the provider applied the whole plan.
type ReconciliationResult struct {
	Seq     uint64
	Err     error
	Details string
}

func (r ReconciliationResult) Success() bool { return r.Err == nil }

// Alarm is published when the observer enters a minefield.
type Alarm struct {
	EventID        string    `json:"event_id"`
	DeviceID       string    `json:"device_id"`
	FieldID        string    `json:"field_id"`
	FieldName      string    `json:"field_name,omitempty"`
	Position       GeoPoint  `json:"position"`
	DistanceMeters float64   `json:"distance_meters"`
	Timestamp      time.Time `json:"timestamp"`
}
