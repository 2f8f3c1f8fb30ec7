package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lox/jmaetrn/internal/jma"
)

// StoreRawPage stores a compressed HTML page. It returns the row id, or 0
// when an identical body is already archived.
func (s *Store) StoreRawPage(ctx context.Context, runID *int64, p jma.Page) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(p.Body); err != nil {
		return 0, fmt.Errorf("compress page: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(p.Body)

	var fetchRunID sql.NullInt64
	if runID != nil {
		fetchRunID = sql.NullInt64{Int64: *runID, Valid: true}
	}
	fetchedAt := p.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_pages (fetch_run_id, fetched_at, url, page, status_code, body_compressed, body_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(body_hash) DO NOTHING
	`, fetchRunID, fetchedAt, p.URL, jma.PageLabel(p.URL), p.StatusCode, buf.Bytes(), hex.EncodeToString(hash[:]))
	if err != nil {
		return 0, fmt.Errorf("insert raw page: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil || n == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// GetRawPage retrieves and decompresses a stored page body by id.
func (s *Store) GetRawPage(ctx context.Context, id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRowContext(ctx, `SELECT body_compressed FROM raw_pages WHERE id = ?`, id).
		Scan(&compressed)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// RawPageStats contains storage statistics for archived pages.
type RawPageStats struct {
	TotalCount      int
	TotalSizeBytes  int64
	OldestFetchedAt time.Time
	NewestFetchedAt time.Time
	CountByPage     map[string]int
}

// GetRawPageStats returns storage statistics for archived pages.
func (s *Store) GetRawPageStats(ctx context.Context) (*RawPageStats, error) {
	stats := &RawPageStats{CountByPage: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(body_compressed)), 0),
		       MIN(fetched_at), MAX(fetched_at)
		FROM raw_pages
	`)
	// Aggregates lose the column's DATETIME type, so the driver returns text.
	var oldest, newest sql.NullString
	if err := row.Scan(&stats.TotalCount, &stats.TotalSizeBytes, &oldest, &newest); err != nil {
		return nil, err
	}
	var err error
	if oldest.Valid {
		if stats.OldestFetchedAt, err = parseTime(oldest.String); err != nil {
			return nil, fmt.Errorf("parse oldest fetched_at: %w", err)
		}
	}
	if newest.Valid {
		if stats.NewestFetchedAt, err = parseTime(newest.String); err != nil {
			return nil, fmt.Errorf("parse newest fetched_at: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT page, COUNT(*) FROM raw_pages GROUP BY page`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var page string
		var count int
		if err := rows.Scan(&page, &count); err != nil {
			return nil, err
		}
		stats.CountByPage[page] = count
	}
	return stats, rows.Err()
}

// CleanupOldRawPages deletes pages older than retentionDays and returns
// the number removed.
func (s *Store) CleanupOldRawPages(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result, err := s.db.ExecContext(ctx, `DELETE FROM raw_pages WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PageArchive is a jma.PageRecorder that stores successful fetches,
// attributing them to the current fetch run.
type PageArchive struct {
	store *Store

	mu    sync.Mutex
	runID *int64
}

func NewPageArchive(s *Store) *PageArchive {
	return &PageArchive{store: s}
}

// SetRun attributes subsequent pages to run. Nil clears it.
func (a *PageArchive) SetRun(run *FetchRun) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if run == nil {
		a.runID = nil
		return
	}
	id := run.ID
	a.runID = &id
}

// RecordPage archives p when it carries a body. Archive failures are
// logged; they never fail the fetch.
func (a *PageArchive) RecordPage(ctx context.Context, p jma.Page) {
	if p.Err != nil || len(p.Body) == 0 {
		return
	}
	a.mu.Lock()
	runID := a.runID
	a.mu.Unlock()

	if _, err := a.store.StoreRawPage(ctx, runID, p); err != nil {
		slog.Warn("failed to archive page", "url", p.URL, "error", err)
	}
}
