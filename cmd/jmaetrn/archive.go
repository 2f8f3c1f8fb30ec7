package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/lox/jmaetrn/internal/store"
)

type ArchiveCmd struct {
	RetentionDays int   `name:"retention-days" help:"Delete archived pages older than this many days before reporting (0 keeps everything)."`
	Failed        int   `default:"10" help:"Number of recent failed fetch runs to list."`
	DumpPage      int64 `name:"dump-page" help:"Write the archived page with this id to stdout and exit."`
}

func (c *ArchiveCmd) Run(app *App) error {
	if app.store == nil {
		return errors.New("archive: no database configured (set --db or JMA_DB)")
	}
	if c.DumpPage != 0 {
		body, err := app.store.GetRawPage(app.ctx, c.DumpPage)
		if err != nil {
			return fmt.Errorf("read page %d: %w", c.DumpPage, err)
		}
		_, err = os.Stdout.Write(body)
		return err
	}
	return c.report(app.ctx, os.Stdout, app.store)
}

func (c *ArchiveCmd) report(ctx context.Context, w io.Writer, st *store.Store) error {
	if c.RetentionDays > 0 {
		removed, err := st.CleanupOldRawPages(ctx, c.RetentionDays)
		if err != nil {
			return fmt.Errorf("cleanup raw pages: %w", err)
		}
		fmt.Fprintf(w, "removed pages:     %d (older than %d days)\n", removed, c.RetentionDays)
	}

	version, err := st.MigrationVersion()
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}
	stations, err := st.CountStations(ctx)
	if err != nil {
		return fmt.Errorf("count stations: %w", err)
	}
	stats, err := st.GetRawPageStats(ctx)
	if err != nil {
		return fmt.Errorf("raw page stats: %w", err)
	}

	fmt.Fprintf(w, "schema version:    %d\n", version)
	fmt.Fprintf(w, "stations:          %d\n", stations)
	fmt.Fprintf(w, "archived pages:    %d (%d bytes compressed)\n", stats.TotalCount, stats.TotalSizeBytes)
	if stats.TotalCount > 0 {
		fmt.Fprintf(w, "fetched between:   %s and %s\n",
			stats.OldestFetchedAt.Format(time.DateTime), stats.NewestFetchedAt.Format(time.DateTime))
	}
	pages := make([]string, 0, len(stats.CountByPage))
	for page := range stats.CountByPage {
		pages = append(pages, page)
	}
	sort.Strings(pages)
	for _, page := range pages {
		fmt.Fprintf(w, "  %-18s %d\n", page, stats.CountByPage[page])
	}

	if c.Failed <= 0 {
		return nil
	}
	failed, err := st.GetRecentFailedRuns(ctx, c.Failed)
	if err != nil {
		return fmt.Errorf("recent failed runs: %w", err)
	}
	fmt.Fprintf(w, "recent failures:   %d\n", len(failed))
	for _, run := range failed {
		target := run.Command
		if run.RegionID.Valid && run.StationID.Valid {
			target = fmt.Sprintf("%s %d/%d", run.Command, run.RegionID.Int64, run.StationID.Int64)
		}
		if run.Granularity.Valid {
			target += " " + run.Granularity.String
		}
		fmt.Fprintf(w, "  #%d %s %s: %s\n", run.ID, run.StartedAt.Format(time.DateTime), target, run.ErrorMessage.String)
	}
	return nil
}
