package postgres

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/nandanugg/minefield-alarm/module/core/domain"
	"github.com/nandanugg/minefield-alarm/module/core/internal/repository/database"
)

var _ database.FieldRegistry = (*FieldRepo)(nil)

// FieldRepo reads minefields from the minefields table. The service never
// writes to it.
type FieldRepo struct {
	db *sql.DB
}

func NewFieldRepo(db *sql.DB) *FieldRepo {
	return &FieldRepo{db: db}
}

func (r *FieldRepo) GetAllFields(ctx context.Context) ([]domain.Field, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, latitude, longitude, radius_meters FROM minefields ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "query minefields")
	}
	defer func() { _ = rows.Close() }()

	var results []domain.Field
	for rows.Next() {
		var f domain.Field
		var name sql.NullString
		if err := rows.Scan(&f.ID, &name, &f.Center.Lat, &f.Center.Lon, &f.RadiusMeters); err != nil {
			return nil, eris.Wrap(err, "scan minefield")
		}
		f.Name = name.String
		f.Expiration = domain.NeverExpire
		results = append(results, f)
	}
	return results, rows.Err()
}
