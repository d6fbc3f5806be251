package database

import (
	"context"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
)

// FieldRegistry is the read-only source of stored minefields.
type FieldRegistry interface {
	GetAllFields(ctx context.Context) ([]domain.Field, error)
}

type LocationRepository interface {
	Insert(ctx context.Context, pos *domain.ObserverPosition) error
	GetLatest(ctx context.Context, deviceID string) (*domain.ObserverPosition, error)
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.ObserverPosition, error)
	GetAllDevices(ctx context.Context) ([]domain.Device, error)
}
