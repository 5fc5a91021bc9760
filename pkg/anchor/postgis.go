package anchor

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/siterisk/internal/db"
)

// DefaultPOICategories are the geo.poi categories treated as anchors.
var DefaultPOICategories = []string{"subway_station", "rail_station", "transit_station"}

// PostGISFinder looks up anchors in the geo.poi table.
type PostGISFinder struct {
	pool       db.Pool
	categories []string
}

// NewPostGISFinder creates a PostGISFinder. Empty categories use
// DefaultPOICategories.
func NewPostGISFinder(pool db.Pool, categories []string) *PostGISFinder {
	if len(categories) == 0 {
		categories = DefaultPOICategories
	}
	return &PostGISFinder{pool: pool, categories: categories}
}

// Nearest implements Finder. Ties on distance resolve by id.
func (p *PostGISFinder) Nearest(ctx context.Context, lat, lng, radiusM float64) (*Facility, error) {
	var f Facility
	err := p.pool.QueryRow(ctx, `
		SELECT id::text, name, category, latitude, longitude,
		       ST_Distance(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance_m
		FROM geo.poi
		WHERE category = ANY($4)
		  AND ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance_m, id
		LIMIT 1`,
		lng, lat, radiusM, p.categories,
	).Scan(&f.ID, &f.Name, &f.Kind, &f.Lat, &f.Lng, &f.DistanceM)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "anchor: query poi")
	}
	return &f, nil
}
