package gridstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteReader reads an embedded grid snapshot with sqlx over modernc sqlite.
type SQLiteReader struct {
	db *sqlx.DB
}

// NewSQLite opens a SQLite grid snapshot and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteReader, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteReader{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS store_cells (
	cell_id           TEXT PRIMARY KEY,
	counts            TEXT NOT NULL DEFAULT '{}',
	closure_count     INTEGER,
	opening_count     INTEGER,
	prev_period_count INTEGER
);

CREATE TABLE IF NOT EXISTS traffic_cells (
	cell_id       TEXT PRIMARY KEY,
	traffic_index REAL,
	morning_pct   REAL NOT NULL DEFAULT 33,
	day_pct       REAL NOT NULL DEFAULT 34,
	night_pct     REAL NOT NULL DEFAULT 33,
	weekend_ratio REAL
);
`

// Migrate creates the snapshot tables if they do not exist.
func (s *SQLiteReader) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "sqlite: migrate")
}

// DB exposes the handle for fixture loading.
func (s *SQLiteReader) DB() *sqlx.DB { return s.db }

// Close releases the database handle.
func (s *SQLiteReader) Close() error {
	return s.db.Close()
}

type storeRow struct {
	CellID          string        `db:"cell_id"`
	Counts          string        `db:"counts"`
	ClosureCount    sql.NullInt64 `db:"closure_count"`
	OpeningCount    sql.NullInt64 `db:"opening_count"`
	PrevPeriodCount sql.NullInt64 `db:"prev_period_count"`
}

type trafficRow struct {
	CellID       string          `db:"cell_id"`
	Index        sql.NullFloat64 `db:"traffic_index"`
	Morning      float64         `db:"morning_pct"`
	Day          float64         `db:"day_pct"`
	Night        float64         `db:"night_pct"`
	WeekendRatio sql.NullFloat64 `db:"weekend_ratio"`
}

// StoreRecords implements Reader.
func (s *SQLiteReader) StoreRecords(ctx context.Context, cells []string) ([]StoreRecord, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT cell_id, counts, closure_count, opening_count, prev_period_count
		FROM store_cells WHERE cell_id IN (?) ORDER BY cell_id`, cells)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: expand store query")
	}
	var rows []storeRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, eris.Wrap(err, "sqlite: select store cells")
	}

	out := make([]StoreRecord, 0, len(rows))
	for _, row := range rows {
		rec := StoreRecord{CellID: row.CellID}
		if err := decodeCounts([]byte(row.Counts), &rec); err != nil {
			return nil, err
		}
		if row.ClosureCount.Valid {
			rec.ClosureCount = intPtr(row.ClosureCount.Int64)
		}
		if row.OpeningCount.Valid {
			rec.OpeningCount = intPtr(row.OpeningCount.Int64)
		}
		if row.PrevPeriodCount.Valid {
			rec.PrevPeriodCount = intPtr(row.PrevPeriodCount.Int64)
		}
		out = append(out, rec)
	}
	return out, nil
}

// TrafficRecords implements Reader.
func (s *SQLiteReader) TrafficRecords(ctx context.Context, cells []string) ([]TrafficRecord, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT cell_id, traffic_index, morning_pct, day_pct, night_pct, weekend_ratio
		FROM traffic_cells WHERE cell_id IN (?) ORDER BY cell_id`, cells)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: expand traffic query")
	}
	var rows []trafficRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, eris.Wrap(err, "sqlite: select traffic cells")
	}

	out := make([]TrafficRecord, 0, len(rows))
	for _, row := range rows {
		rec := TrafficRecord{
			CellID:  row.CellID,
			Morning: row.Morning,
			Day:     row.Day,
			Night:   row.Night,
		}
		if row.Index.Valid {
			rec.Index = floatPtr(row.Index.Float64)
		}
		if row.WeekendRatio.Valid {
			rec.WeekendRatio = floatPtr(row.WeekendRatio.Float64)
		}
		out = append(out, rec)
	}
	return out, nil
}
