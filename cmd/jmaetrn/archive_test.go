package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lox/jmaetrn/internal/jma"
	"github.com/lox/jmaetrn/internal/store"
)

func setupArchive(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestArchiveReport(t *testing.T) {
	st := setupArchive(t)
	ctx := context.Background()

	page := jma.Page{
		URL:        "https://www.data.jma.go.jp/obd/stats/etrn/view/daily_s1.php?prec_no=44&block_no=47662",
		StatusCode: 200,
		Body:       []byte("<table class=\"data2_s\"></table>"),
		FetchedAt:  time.Now().UTC().Truncate(time.Second),
	}
	if _, err := st.StoreRawPage(ctx, nil, page); err != nil {
		t.Fatalf("StoreRawPage failed: %v", err)
	}

	region, station := 44, 47662
	run, err := st.StartFetchRun(ctx, "series", &region, &station, "daily")
	if err != nil {
		t.Fatalf("StartFetchRun failed: %v", err)
	}
	run.Fail(errors.New("fetch: unexpected status 503"))
	if err := st.CompleteFetchRun(ctx, run); err != nil {
		t.Fatalf("CompleteFetchRun failed: %v", err)
	}

	var buf bytes.Buffer
	cmd := &ArchiveCmd{RetentionDays: 30, Failed: 5}
	if err := cmd.report(ctx, &buf, st); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"removed pages:     0",
		"schema version:    2",
		"archived pages:    1",
		"daily_s1.php",
		"recent failures:   1",
		"series 44/47662 daily: fetch: unexpected status 503",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestArchiveCmd_RequiresDatabase(t *testing.T) {
	app := &App{ctx: context.Background()}
	if err := (&ArchiveCmd{}).Run(app); err == nil {
		t.Error("expected error without --db")
	}
}
