package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/lox/jmaetrn/internal/export"
	"github.com/lox/jmaetrn/internal/jma"
	"github.com/lox/jmaetrn/internal/models"
	"github.com/lox/jmaetrn/internal/regions"
	"github.com/lox/jmaetrn/internal/store"
)

// Source is the part of the JMA client the runner drives.
type Source interface {
	DiscoverRegions(ctx context.Context) ([]jma.Region, error)
	Stations(ctx context.Context, regions []jma.Region) ([]models.Station, error)
	FetchSeries(ctx context.Context, regionID, stationID int, from, to time.Time, g models.Granularity) ([]models.Observation, error)
	Delay() time.Duration
}

// Runner orchestrates catalog refreshes and per-station series collection.
type Runner struct {
	source  Source
	table   regions.Table
	outDir  string
	store   *store.Store
	archive *store.PageArchive
	log     *slog.Logger
}

func NewRunner(source Source, table regions.Table, outDir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		source: source,
		table:  table,
		outDir: outDir,
		log:    logger,
	}
}

// SetStore enables the SQLite archive. archive may be nil when page bodies
// are not being recorded.
func (r *Runner) SetStore(st *store.Store, archive *store.PageArchive) {
	r.store = st
	r.archive = archive
}

// CatalogPath is where the catalog file lives.
func (r *Runner) CatalogPath() string {
	return filepath.Join(r.outDir, export.CatalogFile)
}

// RefreshCatalog discovers every station and writes the catalog file. An
// existing catalog is loaded instead unless refresh is set.
func (r *Runner) RefreshCatalog(ctx context.Context, refresh bool) ([]export.CatalogRow, error) {
	path := r.CatalogPath()
	if !refresh && export.Exists(path) {
		r.log.Info("catalog exists, skipping discovery", "path", path)
		return export.LoadCatalog(path)
	}

	run := r.startRun(ctx, "catalog", nil, "")
	rows, err := r.discoverCatalog(ctx)
	if err != nil {
		r.failRun(ctx, run, err)
		return nil, err
	}

	if err := export.WriteCatalog(path, rows); err != nil {
		r.failRun(ctx, run, err)
		return nil, fmt.Errorf("write catalog: %w", err)
	}
	r.log.Info("catalog written", "path", path, "stations", len(rows))

	if r.store != nil {
		entries := make([]store.CatalogEntry, len(rows))
		for i, row := range rows {
			entries[i] = store.CatalogEntry{AreaName: row.AreaName, PrefName: row.PrefName, Station: row.Station}
		}
		if err := r.store.UpsertStations(ctx, entries); err != nil {
			r.failRun(ctx, run, err)
			return nil, fmt.Errorf("archive catalog: %w", err)
		}
	}

	if run != nil {
		run.Success = true
		run.RecordsParsed = sql.NullInt64{Int64: int64(len(rows)), Valid: true}
		run.RecordsStored = sql.NullInt64{Int64: int64(len(rows)), Valid: true}
	}
	r.completeRun(ctx, run)
	return rows, nil
}

func (r *Runner) discoverCatalog(ctx context.Context) ([]export.CatalogRow, error) {
	regionList, err := r.source.DiscoverRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh catalog: %w", err)
	}
	r.log.Info("regions discovered", "count", len(regionList))

	stations, err := r.source.Stations(ctx, regionList)
	if err != nil {
		return nil, fmt.Errorf("refresh catalog: %w", err)
	}
	return export.AssembleCatalog(stations, regionList, r.table), nil
}

// SelectStations keeps major stations whose prefecture is covered by the
// area keys, once per (region, station), in catalog order.
func (r *Runner) SelectStations(catalog []export.CatalogRow, areas []string) ([]export.CatalogRow, error) {
	labels, err := r.table.Expand(areas)
	if err != nil {
		return nil, err
	}

	seen := make(map[models.StationKey]bool)
	var selected []export.CatalogRow
	for _, row := range catalog {
		if row.Category != models.CategoryMajor || !labels[row.PrefName] {
			continue
		}
		if seen[row.Key()] {
			continue
		}
		seen[row.Key()] = true
		selected = append(selected, row)
	}
	return selected, nil
}

// EstimateDuration is the lower bound on a collection's running time: every
// page of every station waits out the delay.
func EstimateDuration(stations, pagesPerStation int, delay time.Duration) time.Duration {
	return time.Duration(stations) * time.Duration(pagesPerStation) * delay
}

// SeriesRequest describes one series collection.
type SeriesRequest struct {
	From        time.Time
	To          time.Time
	Areas       []string
	Granularity models.Granularity
	Format      export.Format
	Force       bool
}

func (req SeriesRequest) validate() error {
	if err := jma.ValidateRange(req.From, req.To, req.Granularity); err != nil {
		return err
	}
	if !req.Format.Valid() {
		return fmt.Errorf("unknown output format %q", req.Format)
	}
	return nil
}

// Plan is what a series collection would do.
type Plan struct {
	Stations        []export.CatalogRow
	PagesPerStation int
	Estimate        time.Duration
}

// PlanSeries selects stations and estimates the run without fetching.
func (r *Runner) PlanSeries(catalog []export.CatalogRow, req SeriesRequest) (Plan, error) {
	if err := req.validate(); err != nil {
		return Plan{}, err
	}
	selected, err := r.SelectStations(catalog, req.Areas)
	if err != nil {
		return Plan{}, err
	}
	pages, err := jma.PageCount(req.From, req.To, req.Granularity)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Stations:        selected,
		PagesPerStation: pages,
		Estimate:        EstimateDuration(len(selected), pages, r.source.Delay()),
	}, nil
}

// StoredCoverage counts the archived rows each planned station already has
// inside the request window. It returns nil when no store is configured.
func (r *Runner) StoredCoverage(ctx context.Context, plan Plan, req SeriesRequest) (map[models.StationKey]int, error) {
	if r.store == nil {
		return nil, nil
	}
	from := jma.DateOnly(req.From)
	to := jma.DateOnly(req.To).AddDate(0, 0, 1)

	coverage := make(map[models.StationKey]int, len(plan.Stations))
	for _, st := range plan.Stations {
		rows, err := r.store.GetObservations(ctx, st.Key(), req.Granularity, from, to)
		if err != nil {
			return nil, fmt.Errorf("stored coverage for %s: %w", st.Key(), err)
		}
		coverage[st.Key()] = len(rows)
	}
	return coverage, nil
}

// SeriesSummary counts what CollectSeries did.
type SeriesSummary struct {
	Selected int
	Written  int
	Skipped  int
	Failed   int
	Rows     int
}

// CollectSeries fetches and writes one file per selected station. Stations
// with an existing file are skipped unless req.Force. A failing station is
// logged and counted; the run continues with the next one.
func (r *Runner) CollectSeries(ctx context.Context, catalog []export.CatalogRow, req SeriesRequest) (SeriesSummary, error) {
	plan, err := r.PlanSeries(catalog, req)
	if err != nil {
		return SeriesSummary{}, err
	}

	summary := SeriesSummary{Selected: len(plan.Stations)}
	r.log.Info("collecting series",
		"granularity", req.Granularity,
		"from", req.From.Format("2006-01-02"),
		"to", req.To.Format("2006-01-02"),
		"stations", len(plan.Stations),
		"pages_per_station", plan.PagesPerStation,
		"estimate", plan.Estimate.Round(time.Second))

	for i, st := range plan.Stations {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		path := export.SeriesPath(r.outDir, st.StationID, req.From, req.To, req.Format)
		if !req.Force && export.Exists(path) {
			r.log.Debug("series file exists, skipping", "station", st.Key(), "path", path)
			summary.Skipped++
			continue
		}

		n, err := r.collectStation(ctx, st, req, path, plan.PagesPerStation)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			r.log.Error("station failed", "station", st.Key(), "name", st.Name, "error", err)
			continue
		}
		summary.Written++
		summary.Rows += n
		r.log.Info("station collected",
			"progress", fmt.Sprintf("%d/%d", i+1, len(plan.Stations)),
			"station", st.Key(), "name", st.Name, "rows", n, "path", path)
	}

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%d of %d stations failed", summary.Failed, summary.Selected)
	}
	return summary, nil
}

func (r *Runner) collectStation(ctx context.Context, st export.CatalogRow, req SeriesRequest, path string, pages int) (int, error) {
	key := st.Key()
	run := r.startRun(ctx, "series", &key, string(req.Granularity))
	if run != nil {
		run.PagesFetched = sql.NullInt64{Int64: int64(pages), Valid: true}
	}

	rows, err := r.source.FetchSeries(ctx, st.RegionID, st.StationID, req.From, req.To, req.Granularity)
	if err != nil {
		r.failRun(ctx, run, err)
		return 0, err
	}

	if err := export.WriteSeries(path, rows, req.Granularity, req.Format); err != nil {
		r.failRun(ctx, run, err)
		return 0, fmt.Errorf("write series: %w", err)
	}

	stored := 0
	if r.store != nil {
		if stored, err = r.store.InsertObservations(ctx, st.RegionID, req.Granularity, rows); err != nil {
			r.failRun(ctx, run, err)
			return 0, fmt.Errorf("archive series: %w", err)
		}
	}

	if run != nil {
		run.Success = true
		run.RecordsParsed = sql.NullInt64{Int64: int64(len(rows)), Valid: true}
		run.RecordsStored = sql.NullInt64{Int64: int64(stored), Valid: true}
	}
	r.completeRun(ctx, run)
	return len(rows), nil
}

func (r *Runner) startRun(ctx context.Context, command string, key *models.StationKey, granularity string) *store.FetchRun {
	if r.store == nil {
		return nil
	}
	var regionID, stationID *int
	if key != nil {
		regionID, stationID = &key.RegionID, &key.StationID
	}
	run, err := r.store.StartFetchRun(ctx, command, regionID, stationID, granularity)
	if err != nil {
		r.log.Warn("failed to start fetch run", "command", command, "error", err)
		return nil
	}
	if r.archive != nil {
		r.archive.SetRun(run)
	}
	return run
}

func (r *Runner) failRun(ctx context.Context, run *store.FetchRun, err error) {
	if run == nil {
		return
	}
	run.Fail(err)
	r.completeRun(ctx, run)
}

func (r *Runner) completeRun(ctx context.Context, run *store.FetchRun) {
	if run == nil {
		return
	}
	if r.archive != nil {
		r.archive.SetRun(nil)
	}
	// Close the row out even when the run was cancelled.
	if err := r.store.CompleteFetchRun(context.WithoutCancel(ctx), run); err != nil {
		r.log.Warn("failed to complete fetch run", "id", run.ID, "error", err)
	}
}
