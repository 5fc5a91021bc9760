package gridstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/siterisk/internal/db"
)

// PostgresReader reads grid records from the grid schema with pgx.
type PostgresReader struct {
	pool db.Pool
}

// NewPostgresReader creates a PostgresReader.
func NewPostgresReader(pool db.Pool) *PostgresReader {
	return &PostgresReader{pool: pool}
}

// StoreRecords implements Reader.
func (r *PostgresReader) StoreRecords(ctx context.Context, cells []string) ([]StoreRecord, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT cell_id, counts, closure_count, opening_count, prev_period_count
		FROM grid.store_cells
		WHERE cell_id = ANY($1)
		ORDER BY cell_id`, cells)
	if err != nil {
		return nil, eris.Wrap(err, "gridstore: query store cells")
	}
	defer rows.Close()

	var out []StoreRecord
	for rows.Next() {
		var (
			rec                          StoreRecord
			counts                       json.RawMessage
			closures, openings, previous sql.NullInt64
		)
		if err := rows.Scan(&rec.CellID, &counts, &closures, &openings, &previous); err != nil {
			return nil, eris.Wrap(err, "gridstore: scan store cell")
		}
		if err := decodeCounts(counts, &rec); err != nil {
			return nil, err
		}
		if closures.Valid {
			rec.ClosureCount = intPtr(closures.Int64)
		}
		if openings.Valid {
			rec.OpeningCount = intPtr(openings.Int64)
		}
		if previous.Valid {
			rec.PrevPeriodCount = intPtr(previous.Int64)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "gridstore: iterate store cells")
	}
	return out, nil
}

// TrafficRecords implements Reader.
func (r *PostgresReader) TrafficRecords(ctx context.Context, cells []string) ([]TrafficRecord, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT cell_id, traffic_index, morning_pct, day_pct, night_pct, weekend_ratio
		FROM grid.traffic_cells
		WHERE cell_id = ANY($1)
		ORDER BY cell_id`, cells)
	if err != nil {
		return nil, eris.Wrap(err, "gridstore: query traffic cells")
	}
	defer rows.Close()

	var out []TrafficRecord
	for rows.Next() {
		var (
			rec                 TrafficRecord
			index, weekend      sql.NullFloat64
			morning, day, night sql.NullFloat64
		)
		if err := rows.Scan(&rec.CellID, &index, &morning, &day, &night, &weekend); err != nil {
			return nil, eris.Wrap(err, "gridstore: scan traffic cell")
		}
		rec.Morning, rec.Day, rec.Night = patternOrPlaceholder(morning, day, night)
		if index.Valid {
			rec.Index = floatPtr(index.Float64)
		}
		if weekend.Valid {
			rec.WeekendRatio = floatPtr(weekend.Float64)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "gridstore: iterate traffic cells")
	}
	return out, nil
}

// patternOrPlaceholder treats a partially missing time-of-day triple as no
// pattern at all.
func patternOrPlaceholder(morning, day, night sql.NullFloat64) (float64, float64, float64) {
	if !morning.Valid || !day.Valid || !night.Valid {
		return PlaceholderMorning, PlaceholderDay, PlaceholderNight
	}
	return morning.Float64, day.Float64, night.Float64
}

func decodeCounts(raw []byte, rec *StoreRecord) error {
	rec.Counts = map[string]int{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &rec.Counts); err != nil {
		return eris.Wrapf(err, "gridstore: decode counts for %s", rec.CellID)
	}
	return nil
}
