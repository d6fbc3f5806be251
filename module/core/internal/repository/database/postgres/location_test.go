package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
)

var positionColumns = []string{"device_id", "latitude", "longitude", "accuracy", "timestamp"}

func TestInsert_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	ts := time.Unix(1715003456, 0)
	mock.ExpectExec(`INSERT INTO observer_positions`).
		WithArgs("pixel-7", 44.8125, 20.4612, 4.5, ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewLocationRepo(db)
	err = repo.Insert(context.Background(), &domain.ObserverPosition{
		DeviceID:  "pixel-7",
		Point:     domain.GeoPoint{Lat: 44.8125, Lon: 20.4612},
		Accuracy:  4.5,
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsert_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	ts := time.Unix(1715003456, 0)
	mock.ExpectExec(`INSERT INTO observer_positions`).
		WithArgs("pixel-7", 44.8125, 20.4612, 0.0, ts).
		WillReturnError(sqlmock.ErrCancelled)

	repo := NewLocationRepo(db)
	err = repo.Insert(context.Background(), &domain.ObserverPosition{
		DeviceID:  "pixel-7",
		Point:     domain.GeoPoint{Lat: 44.8125, Lon: 20.4612},
		Timestamp: ts,
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGetLatest_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	ts := time.Unix(1715003456, 0)
	rows := sqlmock.NewRows(positionColumns).
		AddRow("pixel-7", 44.8125, 20.4612, 3.0, ts)

	mock.ExpectQuery(`SELECT device_id, latitude, longitude, accuracy, timestamp FROM observer_positions WHERE device_id = (.+) ORDER BY timestamp DESC LIMIT 1`).
		WithArgs("pixel-7").
		WillReturnRows(rows)

	repo := NewLocationRepo(db)
	pos, err := repo.GetLatest(context.Background(), "pixel-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.DeviceID != "pixel-7" {
		t.Errorf("expected pixel-7, got %s", pos.DeviceID)
	}
	if pos.Point.Lat != 44.8125 {
		t.Errorf("expected 44.8125, got %f", pos.Point.Lat)
	}
	if !pos.Timestamp.Equal(ts) {
		t.Errorf("expected %v, got %v", ts, pos.Timestamp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetLatest_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT device_id, latitude, longitude, accuracy, timestamp FROM observer_positions WHERE device_id = (.+)`).
		WithArgs("UNKNOWN").
		WillReturnRows(sqlmock.NewRows(positionColumns))

	repo := NewLocationRepo(db)
	_, err = repo.GetLatest(context.Background(), "UNKNOWN")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetHistory_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	start := time.Unix(1715000000, 0)
	end := time.Unix(1715009999, 0)

	rows := sqlmock.NewRows(positionColumns).
		AddRow("pixel-7", 44.81, 20.46, 5.0, time.Unix(1715000000, 0)).
		AddRow("pixel-7", 44.82, 20.47, 5.0, time.Unix(1715005000, 0))

	mock.ExpectQuery(`SELECT device_id, latitude, longitude, accuracy, timestamp FROM observer_positions WHERE device_id = (.+) AND timestamp >= (.+) AND timestamp <= (.+) ORDER BY timestamp ASC`).
		WithArgs("pixel-7", start, end).
		WillReturnRows(rows)

	repo := NewLocationRepo(db)
	results, err := repo.GetHistory(context.Background(), &domain.HistoryQuery{
		DeviceID: "pixel-7",
		Start:    start,
		End:      end,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Point.Lat != 44.82 {
		t.Errorf("expected 44.82, got %f", results[1].Point.Lat)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetHistory_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	start := time.Unix(1715000000, 0)
	end := time.Unix(1715009999, 0)

	mock.ExpectQuery(`SELECT device_id, latitude, longitude, accuracy, timestamp FROM observer_positions`).
		WithArgs("pixel-7", start, end).
		WillReturnError(sqlmock.ErrCancelled)

	repo := NewLocationRepo(db)
	_, err = repo.GetHistory(context.Background(), &domain.HistoryQuery{DeviceID: "pixel-7", Start: start, End: end})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGetAllDevices_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"device_id"}).
		AddRow("pixel-7").
		AddRow("sm-a52")

	mock.ExpectQuery(`SELECT DISTINCT device_id FROM observer_positions`).
		WillReturnRows(rows)

	repo := NewLocationRepo(db)
	results, err := repo.GetAllDevices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(results))
	}
	if results[0].DeviceID != "pixel-7" {
		t.Errorf("expected pixel-7, got %s", results[0].DeviceID)
	}
}
