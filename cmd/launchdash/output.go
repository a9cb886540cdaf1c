package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"launch-dashboard/db/clickhouse"
	"launch-dashboard/decision/aggregate"
	"launch-dashboard/decision/dataset"
)

// outputFormat selects how query results are printed.
type outputFormat string

const (
	formatTable    outputFormat = "table"
	formatJSON     outputFormat = "json"
	formatMarkdown outputFormat = "markdown"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(s); f {
	case formatTable, formatJSON, formatMarkdown:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want table, json or markdown)", s)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}

// writeTable renders t in the requested text format, with title as a
// heading in markdown and a caption line otherwise.
func writeTable(w io.Writer, t table.Writer, title string, format outputFormat) error {
	var err error
	if format == formatMarkdown {
		_, err = fmt.Fprintf(w, "## %s\n\n%s\n", title, t.RenderMarkdown())
	} else {
		_, err = fmt.Fprintf(w, "%s\n%s\n", title, t.Render())
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func percent(share decimal.Decimal) string {
	return share.Shift(2).StringFixed(2) + "%"
}

func writeSummary(w io.Writer, desc aggregate.ChartDescriptor, format outputFormat) error {
	if format == formatJSON {
		return writeJSON(w, desc)
	}

	t := newTable()
	t.AppendHeader(table.Row{"Slice", "Launches", "Share"})
	for _, s := range desc.Slices {
		t.AppendRow(table.Row{s.Label, s.Value, percent(s.Share)})
	}
	t.AppendFooter(table.Row{"Total", desc.Total(), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return writeTable(w, t, desc.Title, format)
}

func writeScatter(w io.Writer, desc aggregate.ChartDescriptor, format outputFormat) error {
	if format == formatJSON {
		return writeJSON(w, desc)
	}

	t := newTable()
	t.AppendHeader(table.Row{"Payload Mass (kg)", "Outcome", "Booster Version Category", "Launch Site"})
	for _, p := range desc.Points {
		t.AppendRow(table.Row{
			decimal.NewFromFloat(p.PayloadMassKg).StringFixed(1),
			dataset.Outcome(p.Outcome).String(),
			p.BoosterVersionCategory,
			p.LaunchSite,
		})
	}
	t.AppendFooter(table.Row{"", "", "Launches", len(desc.Points)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
	})
	return writeTable(w, t, desc.Title, format)
}

// siteRow is one line of the sites listing.
type siteRow struct {
	Site      string `json:"site"`
	Launches  int    `json:"launches"`
	Successes int    `json:"successes"`
}

func siteRows(ds *dataset.Dataset) []siteRow {
	rows := make([]siteRow, 0, len(ds.Sites()))
	index := make(map[string]int)
	for _, site := range ds.Sites() {
		index[site] = len(rows)
		rows = append(rows, siteRow{Site: site})
	}
	ds.Each(func(r dataset.LaunchRecord) {
		i := index[r.LaunchSite]
		rows[i].Launches++
		rows[i].Successes += int(r.Outcome)
	})
	return rows
}

func writeSites(w io.Writer, ds *dataset.Dataset, format outputFormat) error {
	rows := siteRows(ds)
	lo, hi := ds.PayloadBounds()

	if format == formatJSON {
		return writeJSON(w, map[string]any{
			"sites":          rows,
			"payload_bounds": [2]float64{lo, hi},
			"record_count":   ds.Len(),
		})
	}

	t := newTable()
	t.AppendHeader(table.Row{"Launch Site", "Launches", "Successes"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Site, r.Launches, r.Successes})
	}
	t.AppendFooter(table.Row{"Total", ds.Len(), ""})
	title := fmt.Sprintf("Launch sites (payload %s to %s kg)",
		decimal.NewFromFloat(lo).String(), decimal.NewFromFloat(hi).String())
	return writeTable(w, t, title, format)
}

func writeSnapshots(w io.Writer, snapshots []*clickhouse.DatasetSnapshot, format outputFormat) error {
	if format == formatJSON {
		return writeJSON(w, snapshots)
	}

	t := newTable()
	t.AppendHeader(table.Row{"ID", "Source", "Hash", "Records", "Active", "Created"})
	for _, s := range snapshots {
		active := ""
		if s.IsActive {
			active = "*"
		}
		t.AppendRow(table.Row{
			s.ID.String(),
			s.Source,
			shortHash(s.Hash),
			s.RecordCount,
			active,
			s.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return writeTable(w, t, "Dataset snapshots", format)
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
