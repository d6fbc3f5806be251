package domain

import "time"

// NeverExpire is the only expiration policy minefields use.
const NeverExpire time.Duration = 0

// Field is a stored minefield. The registry owns it; the core only reads it.
type Field struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name,omitempty" yaml:"name"`
	Center       GeoPoint      `json:"center" yaml:"center"`
	RadiusMeters float64       `json:"radius_meters" yaml:"radius_meters"`
	Expiration   time.Duration `json:"expiration,omitempty" yaml:"expiration"`
}

// FieldIDs returns the identifiers of fields in order.
func FieldIDs(fields []Field) []string {
	ids := make([]string, len(fields))
	for i, f := range fields {
		ids[i] = f.ID
	}
	return ids
}
