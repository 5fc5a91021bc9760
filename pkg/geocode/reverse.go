// Package geocode resolves coordinates to administrative places.
package geocode

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/siterisk/internal/db"
)

// Place is the administrative context of a point. Fields are empty when
// unknown.
type Place struct {
	Address  string `json:"address"`
	Region   string `json:"region"`
	District string `json:"district"`
}

// Reverser converts a coordinate to a Place.
type Reverser interface {
	Reverse(ctx context.Context, lat, lng float64) (Place, error)
}

// PostGISReverser resolves places by point-in-polygon against
// geo.admin_districts.
type PostGISReverser struct {
	pool db.Pool
}

// NewPostGISReverser creates a PostGISReverser.
func NewPostGISReverser(pool db.Pool) *PostGISReverser {
	return &PostGISReverser{pool: pool}
}

// Reverse implements Reverser. A point outside every boundary yields an
// empty Place and no error. The smallest containing boundary wins.
func (r *PostGISReverser) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	var region, district, neighborhood sql.NullString

	err := r.pool.QueryRow(ctx, `
		SELECT region_name, district_name, neighborhood_name
		FROM geo.admin_districts
		WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		ORDER BY ST_Area(geom)
		LIMIT 1`,
		lng, lat,
	).Scan(&region, &district, &neighborhood)
	if errors.Is(err, pgx.ErrNoRows) {
		zap.L().Debug("reverse geocode: no boundary",
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
		)
		return Place{}, nil
	}
	if err != nil {
		return Place{}, eris.Wrap(err, "geocode: reverse geocode")
	}

	p := Place{}
	if region.Valid {
		p.Region = region.String
	}
	if district.Valid {
		p.District = district.String
	}
	parts := []string{p.Region, p.District}
	if neighborhood.Valid {
		parts = append(parts, neighborhood.String)
	}
	p.Address = joinNonEmpty(parts)
	return p, nil
}

func joinNonEmpty(parts []string) string {
	var out []string
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}
