package service

import (
	"context"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/database"
)

// LocationService keeps the position history of observer devices.
type LocationService struct {
	repo database.LocationRepository
}

func NewLocationService(repo database.LocationRepository) *LocationService {
	return &LocationService{repo: repo}
}

func (s *LocationService) SaveLocation(ctx context.Context, pos *domain.ObserverPosition) error {
	return s.repo.Insert(ctx, pos)
}

func (s *LocationService) GetLatest(ctx context.Context, deviceID string) (*domain.ObserverPosition, error) {
	return s.repo.GetLatest(ctx, deviceID)
}

func (s *LocationService) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.ObserverPosition, error) {
	if query.End.Before(query.Start) {
		return nil, domain.NewInvalidInputError("end", "must not be before start")
	}
	return s.repo.GetHistory(ctx, query)
}

func (s *LocationService) GetAllDevices(ctx context.Context) ([]domain.Device, error) {
	return s.repo.GetAllDevices(ctx)
}
