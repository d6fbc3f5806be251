package geofence

import (
	"context"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
)

// Provider registers circular geofences and reports boundary crossings.
// AddGeofences replaces any geofence with the same field ID. Removing an
// unknown ID is not an error.
type Provider interface {
	AddGeofences(ctx context.Context, fields []domain.Field) error
	RemoveGeofences(ctx context.Context, ids []string) error
	Detect(ctx context.Context, pos domain.GeoPoint) ([]domain.GeofenceTransition, error)
}
