package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
)

type mockLocationRepo struct {
	insertFn        func(ctx context.Context, pos *domain.ObserverPosition) error
	getLatestFn     func(ctx context.Context, deviceID string) (*domain.ObserverPosition, error)
	getHistoryFn    func(ctx context.Context, query *domain.HistoryQuery) ([]domain.ObserverPosition, error)
	getAllDevicesFn func(ctx context.Context) ([]domain.Device, error)
}

func (m *mockLocationRepo) Insert(ctx context.Context, pos *domain.ObserverPosition) error {
	return m.insertFn(ctx, pos)
}

func (m *mockLocationRepo) GetLatest(ctx context.Context, deviceID string) (*domain.ObserverPosition, error) {
	return m.getLatestFn(ctx, deviceID)
}

func (m *mockLocationRepo) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.ObserverPosition, error) {
	return m.getHistoryFn(ctx, query)
}

func (m *mockLocationRepo) GetAllDevices(ctx context.Context) ([]domain.Device, error) {
	return m.getAllDevicesFn(ctx)
}

func TestSaveLocation_Success(t *testing.T) {
	var inserted *domain.ObserverPosition
	repo := &mockLocationRepo{
		insertFn: func(_ context.Context, pos *domain.ObserverPosition) error {
			inserted = pos
			return nil
		},
	}

	svc := NewLocationService(repo)
	pos := &domain.ObserverPosition{
		DeviceID:  "pixel-7",
		Point:     domain.GeoPoint{Lat: 44.8125, Lon: 20.4612},
		Timestamp: time.Unix(1715003456, 0),
	}

	if err := svc.SaveLocation(context.Background(), pos); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserted == nil {
		t.Fatal("expected Insert to be called")
	}
	if inserted.DeviceID != "pixel-7" {
		t.Errorf("expected pixel-7, got %s", inserted.DeviceID)
	}
}

func TestSaveLocation_RepoError(t *testing.T) {
	repo := &mockLocationRepo{
		insertFn: func(_ context.Context, _ *domain.ObserverPosition) error {
			return errors.New("db error")
		},
	}

	svc := NewLocationService(repo)
	if err := svc.SaveLocation(context.Background(), &domain.ObserverPosition{DeviceID: "X"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetLatest_Success(t *testing.T) {
	ts := time.Unix(1715003456, 0)
	repo := &mockLocationRepo{
		getLatestFn: func(_ context.Context, deviceID string) (*domain.ObserverPosition, error) {
			return &domain.ObserverPosition{
				DeviceID:  deviceID,
				Point:     domain.GeoPoint{Lat: 44.8125, Lon: 20.4612},
				Timestamp: ts,
			}, nil
		},
	}

	svc := NewLocationService(repo)
	result, err := svc.GetLatest(context.Background(), "pixel-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DeviceID != "pixel-7" {
		t.Errorf("expected pixel-7, got %s", result.DeviceID)
	}
	if result.Point.Lat != 44.8125 {
		t.Errorf("expected 44.8125, got %f", result.Point.Lat)
	}
}

func TestGetHistory_Success(t *testing.T) {
	repo := &mockLocationRepo{
		getHistoryFn: func(_ context.Context, query *domain.HistoryQuery) ([]domain.ObserverPosition, error) {
			return []domain.ObserverPosition{
				{DeviceID: query.DeviceID, Timestamp: time.Unix(1715000000, 0)},
				{DeviceID: query.DeviceID, Timestamp: time.Unix(1715005000, 0)},
			}, nil
		},
	}

	svc := NewLocationService(repo)
	results, err := svc.GetHistory(context.Background(), &domain.HistoryQuery{
		DeviceID: "pixel-7",
		Start:    time.Unix(1715000000, 0),
		End:      time.Unix(1715009999, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestGetHistory_InvertedRange(t *testing.T) {
	repo := &mockLocationRepo{
		getHistoryFn: func(_ context.Context, _ *domain.HistoryQuery) ([]domain.ObserverPosition, error) {
			t.Fatal("repository should not be queried")
			return nil, nil
		},
	}

	svc := NewLocationService(repo)
	_, err := svc.GetHistory(context.Background(), &domain.HistoryQuery{
		DeviceID: "pixel-7",
		Start:    time.Unix(1715009999, 0),
		End:      time.Unix(1715000000, 0),
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
