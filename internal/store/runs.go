package store

import (
	"context"
	"database/sql"
	"time"
)

// FetchRun is the audit record of one catalog or series collection.
type FetchRun struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    sql.NullTime
	Command       string // "catalog", "series"
	RegionID      sql.NullInt64
	StationID     sql.NullInt64
	Granularity   sql.NullString
	PagesFetched  sql.NullInt64
	RecordsParsed sql.NullInt64
	RecordsStored sql.NullInt64
	Success       bool
	ErrorMessage  sql.NullString
}

// StartFetchRun creates a new run record. Station runs pass their key;
// catalog runs pass nil.
func (s *Store) StartFetchRun(ctx context.Context, command string, regionID, stationID *int, granularity string) (*FetchRun, error) {
	run := &FetchRun{
		StartedAt: time.Now().UTC(),
		Command:   command,
	}
	if regionID != nil {
		run.RegionID = sql.NullInt64{Int64: int64(*regionID), Valid: true}
	}
	if stationID != nil {
		run.StationID = sql.NullInt64{Int64: int64(*stationID), Valid: true}
	}
	if granularity != "" {
		run.Granularity = sql.NullString{String: granularity, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO fetch_runs (started_at, command, region_id, station_id, granularity, success)
		VALUES (?, ?, ?, ?, ?, FALSE)
	`, run.StartedAt, run.Command, run.RegionID, run.StationID, run.Granularity)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteFetchRun records the run's results.
func (s *Store) CompleteFetchRun(ctx context.Context, run *FetchRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.ExecContext(ctx, `
		UPDATE fetch_runs SET
			finished_at = ?,
			pages_fetched = ?,
			records_parsed = ?,
			records_stored = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.PagesFetched, run.RecordsParsed, run.RecordsStored,
		run.Success, run.ErrorMessage, run.ID)
	return err
}

// Fail marks the run unsuccessful with err's message.
func (r *FetchRun) Fail(err error) {
	r.Success = false
	r.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
}

// GetRecentFailedRuns returns the latest unsuccessful runs, newest first.
func (s *Store) GetRecentFailedRuns(ctx context.Context, limit int) ([]FetchRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, command, region_id, station_id, granularity,
		       pages_fetched, records_parsed, records_stored, success, error_message
		FROM fetch_runs
		WHERE success = FALSE
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchRun
	for rows.Next() {
		var r FetchRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Command, &r.RegionID,
			&r.StationID, &r.Granularity, &r.PagesFetched, &r.RecordsParsed,
			&r.RecordsStored, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
