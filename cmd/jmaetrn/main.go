package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/jmaetrn/internal/export"
	"github.com/lox/jmaetrn/internal/httputil"
	"github.com/lox/jmaetrn/internal/ingest"
	"github.com/lox/jmaetrn/internal/jma"
	"github.com/lox/jmaetrn/internal/logging"
	"github.com/lox/jmaetrn/internal/metrics"
	"github.com/lox/jmaetrn/internal/models"
	"github.com/lox/jmaetrn/internal/regions"
	"github.com/lox/jmaetrn/internal/store"
)

type Globals struct {
	BaseURL     string        `name:"base-url" env:"JMA_BASE_URL" default:"${base_url}" help:"JMA site root."`
	Delay       time.Duration `env:"JMA_DELAY" default:"1s" help:"Minimum pause between page requests."`
	Timeout     time.Duration `env:"JMA_TIMEOUT" default:"30s" help:"Per-request timeout."`
	UserAgent   string        `name:"user-agent" env:"JMA_USER_AGENT" default:"${user_agent}" help:"User-Agent header sent with every request."`
	OutDir      string        `name:"outdir" env:"JMA_OUTDIR" default:"data" type:"path" help:"Directory for the catalog and series files."`
	DB          string        `name:"db" env:"JMA_DB" type:"path" help:"Optional SQLite archive of stations, observations and raw pages."`
	RegionsFile string        `name:"regions-file" env:"JMA_REGIONS_FILE" type:"path" help:"JSON file replacing the built-in region table."`
	MetricsFile string        `name:"metrics-file" env:"JMA_METRICS_FILE" type:"path" help:"Write Prometheus metrics in textfile format on exit."`
	LogLevel    string        `name:"log-level" env:"JMA_LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Log level."`
	LogFormat   string        `name:"log-format" env:"JMA_LOG_FORMAT" default:"text" enum:"text,json" help:"Log output format."`
}

type CLI struct {
	Globals

	Catalog CatalogCmd `cmd:"" help:"Discover every station and write the catalog."`
	Series  SeriesCmd  `cmd:"" help:"Collect daily or hourly series for the selected areas."`
	Plan    PlanCmd    `cmd:"" help:"Show which stations and pages a series run would fetch, and how long it would take."`
	Regions RegionsCmd `cmd:"" help:"List the area keys accepted by --area."`
	Archive ArchiveCmd `cmd:"" help:"Inspect and prune the SQLite archive (requires --db)."`
}

type RangeArgs struct {
	From        string   `arg:"" help:"First date (YYYY-MM-DD)."`
	To          string   `arg:"" help:"Last date (YYYY-MM-DD), inclusive."`
	Area        []string `env:"JMA_AREA" default:"Tokyo" help:"Area keys to collect (see 'regions')."`
	Granularity string   `env:"JMA_GRANULARITY" default:"daily" enum:"daily,hourly" help:"Page kind."`
	Format      string   `env:"JMA_FORMAT" default:"csv" enum:"csv,parquet" help:"Series file format."`
}

func (a RangeArgs) request() (ingest.SeriesRequest, error) {
	from, err := parseDate(a.From)
	if err != nil {
		return ingest.SeriesRequest{}, err
	}
	to, err := parseDate(a.To)
	if err != nil {
		return ingest.SeriesRequest{}, err
	}
	return ingest.SeriesRequest{
		From:        from,
		To:          to,
		Areas:       a.Area,
		Granularity: models.Granularity(a.Granularity),
		Format:      export.Format(a.Format),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

type CatalogCmd struct {
	Refresh bool `help:"Rediscover stations even if the catalog exists."`
}

func (c *CatalogCmd) Run(app *App) error {
	rows, err := app.runner.RefreshCatalog(app.ctx, c.Refresh)
	if err != nil {
		return err
	}
	app.log.Info("catalog ready", "path", app.runner.CatalogPath(), "stations", len(rows))
	return nil
}

type SeriesCmd struct {
	RangeArgs
	Force bool `help:"Refetch stations whose output file already exists."`
}

func (c *SeriesCmd) Run(app *App) error {
	req, err := c.request()
	if err != nil {
		return err
	}
	req.Force = c.Force

	// Validate before the catalog stage so bad input never touches the network.
	if _, err := app.runner.PlanSeries(nil, req); err != nil {
		return err
	}

	catalog, err := app.runner.RefreshCatalog(app.ctx, false)
	if err != nil {
		return err
	}
	summary, err := app.runner.CollectSeries(app.ctx, catalog, req)
	app.log.Info("series finished",
		"selected", summary.Selected,
		"written", summary.Written,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"rows", summary.Rows)
	return err
}

type PlanCmd struct {
	RangeArgs
}

func (c *PlanCmd) Run(app *App) error {
	req, err := c.request()
	if err != nil {
		return err
	}

	var catalog []export.CatalogRow
	if export.Exists(app.runner.CatalogPath()) {
		if catalog, err = export.LoadCatalog(app.runner.CatalogPath()); err != nil {
			return err
		}
	} else {
		app.log.Warn("no catalog yet, run 'jmaetrn catalog' first; station count is zero", "path", app.runner.CatalogPath())
	}

	plan, err := app.runner.PlanSeries(catalog, req)
	if err != nil {
		return err
	}
	pages, err := jma.PlanPages(req.From, req.To, req.Granularity)
	if err != nil {
		return err
	}

	fmt.Printf("stations:          %d\n", len(plan.Stations))
	fmt.Printf("pages per station: %d\n", plan.PagesPerStation)
	fmt.Printf("estimated time:    %s\n", plan.Estimate.Round(time.Second))
	fmt.Printf("first page:        %s\n", pages[0].Format("2006-01-02"))
	fmt.Printf("last page:         %s\n", pages[len(pages)-1].Format("2006-01-02"))
	coverage, err := app.runner.StoredCoverage(app.ctx, plan, req)
	if err != nil {
		return err
	}
	for _, st := range plan.Stations {
		if coverage == nil {
			fmt.Printf("  %s  %s (%s)\n", st.Key(), st.Name, st.AreaName)
			continue
		}
		fmt.Printf("  %s  %s (%s)  stored rows: %d\n", st.Key(), st.Name, st.AreaName, coverage[st.Key()])
	}
	return nil
}

type RegionsCmd struct{}

func (c *RegionsCmd) Run(app *App) error {
	return app.table.Render(os.Stdout)
}

// App holds what every command needs, built once from Globals.
type App struct {
	ctx    context.Context
	log    *slog.Logger
	table  regions.Table
	runner *ingest.Runner
	store  *store.Store
}

func newApp(ctx context.Context, g Globals, logger *slog.Logger) (*App, error) {
	table := regions.Default()
	if g.RegionsFile != "" {
		t, err := regions.Load(g.RegionsFile)
		if err != nil {
			return nil, err
		}
		table = t
	}

	app := &App{ctx: ctx, log: logger, table: table}

	cfg := jma.Config{
		BaseURL:   g.BaseURL,
		UserAgent: g.UserAgent,
		Timeout:   g.Timeout,
		Logger:    logger,
		Throttle:  httputil.NewThrottle(g.Delay),
	}

	var archive *store.PageArchive
	if g.DB != "" {
		if err := os.MkdirAll(filepath.Dir(g.DB), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		st, err := store.Open(g.DB)
		if err != nil {
			return nil, err
		}
		app.store = st
		archive = store.NewPageArchive(st)
		cfg.Recorder = archive
		logger.Info("archiving to database", "path", g.DB)
	}

	app.runner = ingest.NewRunner(jma.NewClient(cfg), table, g.OutDir, logger)
	if app.store != nil {
		app.runner.SetStore(app.store, archive)
	}
	return app, nil
}

func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("jmaetrn"),
		kong.Description("Collect station catalogs and historical observations from the JMA ETRN site."),
		kong.UsageOnError(),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.Vars{
			"base_url":   jma.DefaultBaseURL,
			"user_agent": httputil.DefaultUserAgent,
		},
	)

	level, err := logging.ParseLevel(cli.LogLevel)
	kctx.FatalIfErrorf(err)
	logger := logging.New(os.Stderr, level, cli.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := newApp(ctx, cli.Globals, logger)
	kctx.FatalIfErrorf(err)

	runErr := kctx.Run(app)

	if err := app.Close(); err != nil {
		logger.Warn("close database", "error", err)
	}
	if cli.MetricsFile != "" {
		if err := metrics.WriteTextfile(cli.MetricsFile); err != nil {
			logger.Warn("write metrics file", "path", cli.MetricsFile, "error", err)
		}
	}
	if runErr != nil {
		logger.Error("command failed", "error", runErr)
		os.Exit(1)
	}
}
