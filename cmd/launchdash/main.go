// launchdash - SpaceX launch records dashboard
//
// Usage:
//
//	launchdash serve --dataset spacex_launch_dash.csv
//	launchdash summary --site "KSC LC-39A"
//	launchdash scatter --low 2000 --high 8000 --format markdown
//	launchdash render --chart pie --out pie.svg
//	launchdash import --target clickhouse
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"launch-dashboard/api"
	"launch-dashboard/db/clickhouse"
	"launch-dashboard/db/ingestion"
	"launch-dashboard/db/postgres"
	"launch-dashboard/decision/aggregate"
	"launch-dashboard/decision/render"
	"launch-dashboard/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "launchdash",
		Usage:   "SpaceX launch records dashboard",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LAUNCHDASH_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-console",
				Usage:   "Human-readable log output",
				EnvVars: []string{"LAUNCHDASH_LOG_CONSOLE"},
			},
			&cli.StringFlag{
				Name:    "dataset",
				Aliases: []string{"d"},
				Value:   "spacex_launch_dash.csv",
				Usage:   "Dataset: CSV path, s3://bucket/key, clickhouse://[snapshot-id] or postgres://dsn",
				EnvVars: []string{"LAUNCHDASH_DATASET"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Dashboard YAML config",
				EnvVars: []string{"LAUNCHDASH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "launches",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "Postgres connection string for --target postgres",
				EnvVars: []string{"POSTGRES_DSN", "DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region for s3:// datasets",
				EnvVars: []string{"AWS_REGION"},
			},
		},

		Before: func(c *cli.Context) error {
			platform.InitLogger(c.String("log-level"), c.Bool("log-console"))
			return nil
		},

		Commands: []*cli.Command{
			serveCommand(),
			summaryCommand(),
			scatterCommand(),
			renderCommand(),
			sitesCommand(),
			importCommand(),
			snapshotsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		platform.LogFatal("launchdash failed", err)
	}
}

func siteFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "site",
		Aliases: []string{"s"},
		Value:   aggregate.AllSites,
		Usage:   "Launch site, or ALL",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "table",
		Usage:   "Output format (table, json, markdown)",
	}
}

func payloadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:  "low",
			Usage: "Lowest payload mass in kg (default: dataset minimum)",
		},
		&cli.Float64Flag{
			Name:  "high",
			Usage: "Highest payload mass in kg (default: dataset maximum)",
		},
	}
}

// payloadRange reads --low/--high, defaulting unset bounds to the dataset's.
func payloadRange(c *cli.Context, lo, hi float64) aggregate.Range {
	r := aggregate.Range{Low: lo, High: hi}
	if c.IsSet("low") {
		r.Low = c.Float64("low")
	}
	if c.IsSet("high") {
		r.High = c.Float64("high")
	}
	return r
}

// =============================================================================
// SERVE COMMAND (API SERVER)
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the dashboard web server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8050,
				Usage:   "HTTP port",
				EnvVars: []string{"LAUNCHDASH_PORT", "PORT"},
			},
			&cli.StringFlag{
				Name:    "cors-origins",
				Value:   "*",
				Usage:   "Comma-separated list of allowed CORS origins",
				EnvVars: []string{"LAUNCHDASH_CORS_ORIGINS"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	loaded, err := loadDataset(c)
	if err != nil {
		return err
	}
	defer loaded.Close()

	// Parse CORS origins
	corsOrigins := strings.Split(c.String("cors-origins"), ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}

	cfg := api.DefaultConfig()
	cfg.Port = c.Int("port")
	cfg.CORSOrigins = corsOrigins
	cfg.Version = version

	server := api.NewServer(loaded.Dataset, loaded.Info, loaded.Dashboard, cfg)
	for name, p := range loaded.Checks {
		server.AddReadinessCheck(name, p)
	}
	return server.StartWithGracefulShutdown(c.Context)
}

// =============================================================================
// QUERY COMMANDS
// =============================================================================

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Show the success pie for a site (or all sites)",
		Flags: []cli.Flag{siteFlag(), formatFlag()},
		Action: func(c *cli.Context) error {
			format, err := parseOutputFormat(c.String("format"))
			if err != nil {
				return err
			}
			loaded, err := loadDataset(c)
			if err != nil {
				return err
			}
			defer loaded.Close()

			desc := aggregate.SummarizeBySite(loaded.Dataset, c.String("site"))
			return writeSummary(os.Stdout, desc, format)
		},
	}
}

func scatterCommand() *cli.Command {
	return &cli.Command{
		Name:  "scatter",
		Usage: "List launches in a payload range with their outcome",
		Flags: append([]cli.Flag{siteFlag(), formatFlag()}, payloadFlags()...),
		Action: func(c *cli.Context) error {
			format, err := parseOutputFormat(c.String("format"))
			if err != nil {
				return err
			}
			loaded, err := loadDataset(c)
			if err != nil {
				return err
			}
			defer loaded.Close()

			lo, hi := loaded.Dataset.PayloadBounds()
			desc := aggregate.CorrelatePayloadOutcome(loaded.Dataset, c.String("site"), payloadRange(c, lo, hi))
			return writeScatter(os.Stdout, desc, format)
		},
	}
}

func sitesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sites",
		Usage: "List known launch sites",
		Flags: []cli.Flag{formatFlag()},
		Action: func(c *cli.Context) error {
			format, err := parseOutputFormat(c.String("format"))
			if err != nil {
				return err
			}
			loaded, err := loadDataset(c)
			if err != nil {
				return err
			}
			defer loaded.Close()

			return writeSites(os.Stdout, loaded.Dataset, format)
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Render a chart to an SVG or PNG file",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "chart",
				Usage:    "Chart to render (pie, scatter)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "Output file; the extension picks the format (.svg, .png)",
				Required: true,
			},
			siteFlag(),
		}, payloadFlags()...),
		Action: runRender,
	}
}

func runRender(c *cli.Context) error {
	out := c.String("out")
	format, err := render.ParseFormat(filepath.Ext(out))
	if err != nil {
		return err
	}

	loaded, err := loadDataset(c)
	if err != nil {
		return err
	}
	defer loaded.Close()

	var desc aggregate.ChartDescriptor
	switch aggregate.Kind(c.String("chart")) {
	case aggregate.KindPie:
		desc = aggregate.SummarizeBySite(loaded.Dataset, c.String("site"))
	case aggregate.KindScatter:
		lo, hi := loaded.Dataset.PayloadBounds()
		desc = aggregate.CorrelatePayloadOutcome(loaded.Dataset, c.String("site"), payloadRange(c, lo, hi))
	default:
		return fmt.Errorf("unknown chart %q (want pie or scatter)", c.String("chart"))
	}

	data, err := render.Bytes(desc, format, render.Options{
		Width:  loaded.Dashboard.Chart.Width,
		Height: loaded.Dashboard.Chart.Height,
	})
	if errors.Is(err, render.ErrNoData) {
		return fmt.Errorf("%s: nothing to draw for this selection", desc.Title)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	log.Info().Str("chart", string(desc.Kind)).Str("file", out).Int("bytes", len(data)).Msg("Chart rendered")
	return nil
}

// =============================================================================
// STORAGE COMMANDS
// =============================================================================

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import the dataset into ClickHouse (as a snapshot) or Postgres",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "target",
				Value: "clickhouse",
				Usage: "Import target (clickhouse, postgres)",
			},
		},
		Action: runImport,
	}
}

func runImport(c *cli.Context) error {
	ctx := c.Context

	loaded, err := loadDataset(c)
	if err != nil {
		return err
	}
	defer loaded.Close()

	switch c.String("target") {
	case "clickhouse":
		store, err := clickhouse.NewStore(clickhouseConfig(c))
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		adapter := ingestion.NewClickHouseAdapter(store)
		result, err := adapter.IngestDataset(ctx, loaded.Info.Source, loaded.Dataset)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		if err := adapter.VerifyIngestion(ctx, result); err != nil {
			return fmt.Errorf("import verification failed: %w", err)
		}
		return writeJSON(os.Stdout, result)

	case "postgres":
		dsn := c.String("postgres-dsn")
		if dsn == "" {
			return errors.New("--postgres-dsn is required for --target postgres")
		}
		store, err := postgres.NewStore(dsn)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := store.ReplaceRecords(ctx, loaded.Dataset.Records()); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		log.Info().
			Str("target", store.String()).
			Int("records", loaded.Dataset.Len()).
			Msg("Dataset imported")
		return nil

	default:
		return fmt.Errorf("unknown import target %q (want clickhouse or postgres)", c.String("target"))
	}
}

func snapshotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshots",
		Usage: "List dataset snapshots stored in ClickHouse",
		Flags: []cli.Flag{formatFlag()},
		Action: func(c *cli.Context) error {
			format, err := parseOutputFormat(c.String("format"))
			if err != nil {
				return err
			}
			store, err := clickhouse.NewStore(clickhouseConfig(c))
			if err != nil {
				return err
			}
			defer store.Close()

			snapshots, err := store.ListSnapshots(c.Context)
			if err != nil {
				return err
			}
			return writeSnapshots(os.Stdout, snapshots, format)
		},
	}
}

func clickhouseConfig(c *cli.Context) *clickhouse.Config {
	return &clickhouse.Config{
		Host:     c.String("clickhouse-host"),
		Port:     c.Int("clickhouse-port"),
		Database: c.String("clickhouse-database"),
		Username: c.String("clickhouse-user"),
		Password: c.String("clickhouse-password"),
		Debug:    c.String("log-level") == "debug",
	}
}
