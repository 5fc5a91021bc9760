package rent

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/siterisk/internal/db"
)

// PostgresLookup reads rent.district_averages.
type PostgresLookup struct {
	pool db.Pool
}

// NewPostgresLookup creates a PostgresLookup.
func NewPostgresLookup(pool db.Pool) *PostgresLookup {
	return &PostgresLookup{pool: pool}
}

// AverageRent implements Lookup. District names are compared after
// NormalizeDistrict on both sides; the table stores normalized keys.
func (p *PostgresLookup) AverageRent(ctx context.Context, district string) (float64, bool, error) {
	if district == "" {
		return 0, false, nil
	}
	var avg float64
	err := p.pool.QueryRow(ctx,
		`SELECT average_rent FROM rent.district_averages WHERE district_key = $1`,
		NormalizeDistrict(district),
	).Scan(&avg)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrap(err, "rent: query district average")
	}
	return avg, true, nil
}
