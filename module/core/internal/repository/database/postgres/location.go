package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/database"
)

var _ database.LocationRepository = (*LocationRepo)(nil)

type LocationRepo struct {
	db *sql.DB
}

func NewLocationRepo(db *sql.DB) *LocationRepo {
	return &LocationRepo{db: db}
}

func (r *LocationRepo) Insert(ctx context.Context, pos *domain.ObserverPosition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO observer_positions (device_id, latitude, longitude, accuracy, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		pos.DeviceID, pos.Point.Lat, pos.Point.Lon, pos.Accuracy, pos.Timestamp,
	)
	return eris.Wrap(err, "insert observer position")
}

func (r *LocationRepo) GetLatest(ctx context.Context, deviceID string) (*domain.ObserverPosition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT device_id, latitude, longitude, accuracy, timestamp FROM observer_positions WHERE device_id = $1 ORDER BY timestamp DESC LIMIT 1`,
		deviceID,
	)

	var pos domain.ObserverPosition
	err := row.Scan(&pos.DeviceID, &pos.Point.Lat, &pos.Point.Lon, &pos.Accuracy, &pos.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(domain.ErrNotFound, "latest position for %s", deviceID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "latest position for %s", deviceID)
	}
	return &pos, nil
}

func (r *LocationRepo) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.ObserverPosition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device_id, latitude, longitude, accuracy, timestamp FROM observer_positions WHERE device_id = $1 AND timestamp >= $2 AND timestamp <= $3 ORDER BY timestamp ASC`,
		query.DeviceID, query.Start, query.End,
	)
	if err != nil {
		return nil, eris.Wrap(err, "query position history")
	}
	defer func() { _ = rows.Close() }()

	var results []domain.ObserverPosition
	for rows.Next() {
		var pos domain.ObserverPosition
		if err := rows.Scan(&pos.DeviceID, &pos.Point.Lat, &pos.Point.Lon, &pos.Accuracy, &pos.Timestamp); err != nil {
			return nil, eris.Wrap(err, "scan position")
		}
		results = append(results, pos)
	}
	return results, rows.Err()
}

func (r *LocationRepo) GetAllDevices(ctx context.Context) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT device_id FROM observer_positions ORDER BY device_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "query devices")
	}
	defer func() { _ = rows.Close() }()

	var results []domain.Device
	for rows.Next() {
		var d domain.Device
		if err := rows.Scan(&d.DeviceID); err != nil {
			return nil, eris.Wrap(err, "scan device")
		}
		results = append(results, d)
	}
	return results, rows.Err()
}
