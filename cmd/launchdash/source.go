package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"launch-dashboard/api"
	"launch-dashboard/db/clickhouse"
	"launch-dashboard/db/postgres"
	"launch-dashboard/decision/dataset"
	"launch-dashboard/pkg/platform"
)

// loadedDataset is a validated dataset plus whatever connections were
// opened to read it.
type loadedDataset struct {
	Dataset   *dataset.Dataset
	Info      api.DatasetInfo
	Dashboard *platform.DashboardConfig
	Checks    map[string]api.Pinger
	closers   []io.Closer
}

func (l *loadedDataset) Close() {
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close connection")
		}
	}
}

// loadDataset reads the dashboard config and the --dataset source. Any
// failure here aborts the command before anything is served.
func loadDataset(c *cli.Context) (*loadedDataset, error) {
	dash, err := platform.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	loaded := &loadedDataset{
		Dashboard: dash,
		Checks:    make(map[string]api.Pinger),
	}
	src, err := openSource(c.Context, c, c.String("dataset"), loaded)
	if err != nil {
		loaded.Close()
		return nil, err
	}

	ds, err := dataset.Load(c.Context, src, dash.Sites)
	if err != nil {
		loaded.Close()
		return nil, err
	}
	loaded.Dataset = ds
	loaded.Info.Source = src.String()
	if snap, ok := src.(*clickhouse.SnapshotSource); ok {
		loaded.Info.SnapshotID = snap.SnapshotID.String()
	}

	lo, hi := ds.PayloadBounds()
	log.Info().
		Str("source", src.String()).
		Int("records", ds.Len()).
		Strs("sites", ds.Sites()).
		Float64("min_payload", lo).
		Float64("max_payload", hi).
		Msg("Dataset loaded")
	return loaded, nil
}

// openSource picks a dataset.Source by URI scheme. Connections it opens are
// registered on loaded for closing and readiness checks.
func openSource(ctx context.Context, c *cli.Context, uri string, loaded *loadedDataset) (dataset.Source, error) {
	switch sourceScheme(uri) {
	case "s3":
		return dataset.NewS3Source(ctx, uri, c.String("aws-region"))

	case "clickhouse":
		id, err := parseSnapshotURI(uri)
		if err != nil {
			return nil, err
		}
		store, err := clickhouse.NewStore(clickhouseConfig(c))
		if err != nil {
			return nil, err
		}
		loaded.closers = append(loaded.closers, store)
		loaded.Checks["clickhouse"] = store
		return &clickhouse.SnapshotSource{Store: store, SnapshotID: id}, nil

	case "postgres":
		store, err := postgres.NewStore(uri)
		if err != nil {
			return nil, err
		}
		loaded.closers = append(loaded.closers, store)
		loaded.Checks["postgres"] = store
		return store, nil

	default:
		return dataset.FileSource{Path: uri}, nil
	}
}

func sourceScheme(uri string) string {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return "file"
	}
	switch scheme {
	case "s3", "clickhouse":
		return scheme
	case "postgres", "postgresql":
		return "postgres"
	}
	return "file"
}

// parseSnapshotURI reads clickhouse://<snapshot-id>. An empty id selects
// the active snapshot.
func parseSnapshotURI(uri string) (uuid.UUID, error) {
	rest := strings.Trim(strings.TrimPrefix(uri, "clickhouse://"), "/")
	if rest == "" || rest == "active" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid snapshot id in %q: %w", uri, err)
	}
	return id, nil
}
