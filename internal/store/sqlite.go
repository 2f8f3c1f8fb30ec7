package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/jmaetrn/internal/models"
)

// Store archives catalog entries, observations and fetched pages in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; modernc serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CatalogEntry is a station with the labels the catalog attaches to it.
type CatalogEntry struct {
	AreaName string
	PrefName string
	models.Station
}

// UpsertStations writes the catalog in one transaction.
func (s *Store) UpsertStations(ctx context.Context, entries []CatalogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stations (region_id, station_id, category, area_name, pref_name, name, name_kana,
			latitude, longitude, elevation,
			obs_precipitation, obs_temperature, obs_humidity, obs_wind, obs_sunshine, obs_snowfall,
			observed_from, name_history, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(region_id, station_id) DO UPDATE SET
			category = excluded.category,
			area_name = excluded.area_name,
			pref_name = excluded.pref_name,
			name = excluded.name,
			name_kana = excluded.name_kana,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation = excluded.elevation,
			obs_precipitation = excluded.obs_precipitation,
			obs_temperature = excluded.obs_temperature,
			obs_humidity = excluded.obs_humidity,
			obs_wind = excluded.obs_wind,
			obs_sunshine = excluded.obs_sunshine,
			obs_snowfall = excluded.obs_snowfall,
			observed_from = excluded.observed_from,
			name_history = excluded.name_history,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		var observedFrom sql.NullString
		if e.HasStartDate() {
			observedFrom = sql.NullString{String: e.ObservedFrom.Format("2006-01-02"), Valid: true}
		}
		history, err := historyJSON(e.NameHistory)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			e.RegionID, e.StationID, string(e.Category), e.AreaName, e.PrefName, e.Name, e.NameKana,
			e.Latitude, e.Longitude, e.Elevation,
			e.Sensors.Precipitation, e.Sensors.Temperature, e.Sensors.Humidity,
			e.Sensors.Wind, e.Sensors.Sunshine, e.Sensors.Snowfall,
			observedFrom, history, now,
		); err != nil {
			return fmt.Errorf("upsert station %s: %w", e.Key(), err)
		}
	}
	return tx.Commit()
}

// CountStations returns the number of catalogued stations.
func (s *Store) CountStations(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stations`).Scan(&n)
	return n, err
}

// InsertObservations stores a station's series, ignoring rows already held.
// It returns the number of new rows.
func (s *Store) InsertObservations(ctx context.Context, regionID int, g models.Granularity, rows []models.Observation) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (region_id, station_id, granularity, observed_at, values_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(region_id, station_id, granularity, observed_at) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, obs := range rows {
		values, err := json.Marshal(obs.Strings())
		if err != nil {
			return 0, fmt.Errorf("encode values: %w", err)
		}
		res, err := stmt.ExecContext(ctx, regionID, obs.StationID, string(g), obs.Time.UTC(), string(values))
		if err != nil {
			return 0, fmt.Errorf("insert observation %s: %w", obs.Time.Format(g.TimeLayout()), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		stored += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// GetObservations returns stored rows for a station in [from, to), ordered by time.
func (s *Store) GetObservations(ctx context.Context, key models.StationKey, g models.Granularity, from, to time.Time) ([]models.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT observed_at, values_json FROM observations
		WHERE region_id = ? AND station_id = ? AND granularity = ?
		  AND observed_at >= ? AND observed_at < ?
		ORDER BY observed_at
	`, key.RegionID, key.StationID, string(g), from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var (
			at     time.Time
			values string
			texts  []string
		)
		if err := rows.Scan(&at, &values); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(values), &texts); err != nil {
			return nil, fmt.Errorf("decode values: %w", err)
		}
		obs := models.Observation{Time: at, StationID: key.StationID, Values: make([]models.Value, len(texts))}
		for i, t := range texts {
			obs.Values[i] = models.Value(t)
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

func historyJSON(history []models.NameChange) (sql.NullString, error) {
	if len(history) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(history)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode name history: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
