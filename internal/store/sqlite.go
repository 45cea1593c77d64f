package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/climareal/clima-service/internal/models"
)

// Store is the persistence interface used by the service and HTTP layers.
type Store interface {
	Insert(ctx context.Context, obs models.Observation) (bool, error)
	FetchLatest(ctx context.Context, city, country string, limit int) ([]models.Observation, error)
	FetchRange(ctx context.Context, city, country string, startUTC, endUTC *int64) ([]models.Observation, error)
	Ping(ctx context.Context) error
	Close() error
}

// The UNIQUE constraint on (city_name, country_code, ts_utc) is the
// idempotency mechanism: re-running a collection for the same instant leaves
// exactly one row. created_at is assigned by the database and never updated.
const schema = `CREATE TABLE IF NOT EXISTS weather_observations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    city_name TEXT NOT NULL,
    country_code TEXT NOT NULL,
    lat REAL,
    lon REAL,
    ts_utc INTEGER NOT NULL,
    tz TEXT,
    temp_c REAL,
    feels_like_c REAL,
    humidity INTEGER,
    pressure REAL,
    wind_speed REAL,
    wind_dir INTEGER,
    clouds INTEGER,
    visibility_km REAL,
    weather_description TEXT,
    created_at TEXT DEFAULT (CURRENT_TIMESTAMP),
    UNIQUE(city_name, country_code, ts_utc)
);`

const readColumns = `city_name, country_code, lat, lon, ts_utc, tz,
    temp_c, feels_like_c, humidity, pressure, wind_speed, wind_dir,
    clouds, visibility_km, weather_description, created_at`

// SQLiteStore persists observations in a single-file SQLite database using
// the pure Go driver.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
// Safe to call on every process start; never alters an existing table.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// serializes concurrent inserts instead of surfacing busy errors, and
	// keeps the pragma below applied to every operation.
	db.SetMaxOpenConns(1)

	// WAL lets readers in other processes proceed while a writer holds the
	// file lock.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ensure schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Insert attempts to persist one observation. Returns true when a new row was
// created, false when the uniqueness constraint suppressed a duplicate.
// Duplicates are never an error; suppression is the defined idempotent no-op.
func (s *SQLiteStore) Insert(ctx context.Context, obs models.Observation) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO weather_observations (
        city_name, country_code, lat, lon, ts_utc, tz,
        temp_c, feels_like_c, humidity, pressure, wind_speed, wind_dir,
        clouds, visibility_km, weather_description
    ) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		obs.CityName, obs.CountryCode, obs.Lat, obs.Lon, obs.TsUTC, obs.Tz,
		obs.TempC, obs.FeelsLikeC, obs.Humidity, obs.Pressure, obs.WindSpeed, obs.WindDir,
		obs.Clouds, obs.VisibilityKm, obs.WeatherDescription,
	)
	if err != nil {
		return false, fmt.Errorf("store: insert observation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected: %w", err)
	}
	return n > 0, nil
}

// FetchLatest returns up to limit observations for city/country, newest first.
func (s *SQLiteStore) FetchLatest(ctx context.Context, city, country string, limit int) ([]models.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+readColumns+`
    FROM weather_observations
    WHERE city_name = ? AND country_code = ?
    ORDER BY ts_utc DESC
    LIMIT ?`, city, country, limit)
	if err != nil {
		return nil, fmt.Errorf("store: fetch latest: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// FetchRange returns observations for city/country with ts_utc inside the
// inclusive [startUTC, endUTC] window, oldest first. A nil bound leaves that
// side unbounded.
func (s *SQLiteStore) FetchRange(ctx context.Context, city, country string, startUTC, endUTC *int64) ([]models.Observation, error) {
	query := `SELECT ` + readColumns + `
    FROM weather_observations
    WHERE city_name = ? AND country_code = ?`
	args := []any{city, country}

	if startUTC != nil {
		query += " AND ts_utc >= ?"
		args = append(args, *startUTC)
	}
	if endUTC != nil {
		query += " AND ts_utc <= ?"
		args = append(args, *endUTC)
	}
	query += " ORDER BY ts_utc ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: fetch range: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// Ping reports whether the database is reachable. Used by the health handler.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanObservations(rows *sql.Rows) ([]models.Observation, error) {
	out := make([]models.Observation, 0)
	for rows.Next() {
		var (
			obs       models.Observation
			tz        sql.NullString
			desc      sql.NullString
			createdAt sql.NullString
		)
		if err := rows.Scan(
			&obs.CityName, &obs.CountryCode, &obs.Lat, &obs.Lon, &obs.TsUTC, &tz,
			&obs.TempC, &obs.FeelsLikeC, &obs.Humidity, &obs.Pressure, &obs.WindSpeed, &obs.WindDir,
			&obs.Clouds, &obs.VisibilityKm, &desc, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		if tz.Valid {
			obs.Tz = tz.String
		}
		if desc.Valid {
			d := desc.String
			obs.WeatherDescription = &d
		}
		if createdAt.Valid {
			obs.CreatedAt = createdAt.String
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate rows: %w", err)
	}
	return out, nil
}
