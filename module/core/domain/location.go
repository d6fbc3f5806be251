package domain

import (
	"math"
	"time"
)

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"latitude" yaml:"latitude"`
	Lon float64 `json:"longitude" yaml:"longitude"`
}

// Validate rejects NaN, infinite and out-of-range coordinates.
func (p GeoPoint) Validate() error {
	switch {
	case math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0):
		return NewInvalidInputError("latitude", "must be a finite number")
	case math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0):
		return NewInvalidInputError("longitude", "must be a finite number")
	case p.Lat < -90 || p.Lat > 90:
		return NewInvalidInputError("latitude", "must be between -90 and 90")
	case p.Lon < -180 || p.Lon > 180:
		return NewInvalidInputError("longitude", "must be between -180 and 180")
	}
	return nil
}

// ObserverPosition is one fix reported by the tracked device.
type ObserverPosition struct {
	DeviceID  string    `json:"device_id"`
	Point     GeoPoint  `json:"point"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

type Device struct {
	DeviceID string `json:"device_id"`
}

type HistoryQuery struct {
	DeviceID string
	Start    time.Time
	End      time.Time
}
