// Package render draws chart descriptors as SVG or PNG images.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"launch-dashboard/decision/aggregate"
)

// Format is an image encoding.
type Format string

const (
	SVG Format = "svg"
	PNG Format = "png"
)

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == PNG {
		return "image/png"
	}
	return "image/svg+xml"
}

// ParseFormat maps a file extension or name to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "svg", ".svg":
		return SVG, nil
	case "png", ".png":
		return PNG, nil
	}
	return "", fmt.Errorf("unsupported image format %q (want svg or png)", s)
}

// ErrNoData is returned for descriptors with nothing to draw.
var ErrNoData = errors.New("chart has no data to draw")

// Options controls image size.
type Options struct {
	Width  int
	Height int
}

// DefaultOptions returns the dashboard's chart size.
func DefaultOptions() Options {
	return Options{Width: 720, Height: 450}
}

// palette follows the plotting library defaults the dashboard was designed with.
var palette = []string{
	"636efa", "ef553b", "00cc96", "ab63fa", "ffa15a",
	"19d3f3", "ff6692", "b6e880", "ff97ff", "fecb52",
}

func paletteColor(i int) drawing.Color {
	return drawing.ColorFromHex(palette[i%len(palette)])
}

// Render writes desc to w in the given format.
func Render(w io.Writer, desc aggregate.ChartDescriptor, format Format, opts Options) error {
	provider := chart.SVG
	if format == PNG {
		provider = chart.PNG
	}

	switch desc.Kind {
	case aggregate.KindPie:
		return renderPie(w, desc, provider, opts)
	case aggregate.KindScatter:
		return renderScatter(w, desc, provider, opts)
	}
	return fmt.Errorf("unknown chart kind %q", desc.Kind)
}

// Bytes renders desc into memory.
func Bytes(desc aggregate.ChartDescriptor, format Format, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, desc, format, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPie(w io.Writer, desc aggregate.ChartDescriptor, provider chart.RendererProvider, opts Options) error {
	var values []chart.Value
	for i, s := range desc.Slices {
		// zero-valued sectors draw nothing
		if s.Value <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%s%%)", s.Label, s.Share.Shift(2).StringFixed(1)),
			Value: float64(s.Value),
			Style: chart.Style{FillColor: paletteColor(i)},
		})
	}
	if len(values) == 0 {
		return ErrNoData
	}

	pie := chart.PieChart{
		Title:  desc.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Values: values,
	}
	return pie.Render(provider, w)
}

func renderScatter(w io.Writer, desc aggregate.ChartDescriptor, provider chart.RendererProvider, opts Options) error {
	if len(desc.Points) == 0 {
		return ErrNoData
	}

	minX, maxX := desc.Points[0].PayloadMassKg, desc.Points[0].PayloadMassKg
	var series []chart.Series
	for i, s := range desc.Series() {
		xs := make([]float64, len(s.Points))
		ys := make([]float64, len(s.Points))
		for j, p := range s.Points {
			xs[j] = p.PayloadMassKg
			ys[j] = float64(p.Outcome)
			minX = min(minX, p.PayloadMassKg)
			maxX = max(maxX, p.PayloadMassKg)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    seriesName(s.Name),
			XValues: xs,
			YValues: ys,
			Style:   dotStyle(paletteColor(i)),
		})
	}

	// a single payload value would collapse the axis
	if maxX-minX < 1 {
		minX, maxX = minX-500, maxX+500
	}

	var xName, yName string
	var yTicks []chart.Tick
	if desc.XAxis != nil {
		xName = desc.XAxis.Title
	}
	if desc.YAxis != nil {
		yName = desc.YAxis.Title
		for _, t := range desc.YAxis.Ticks {
			yTicks = append(yTicks, chart.Tick{Value: t.Value, Label: t.Label})
		}
	}

	ch := chart.Chart{
		Title:      desc.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  xName,
			Range: &chart.ContinuousRange{Min: minX, Max: maxX},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return strconv.FormatFloat(f, 'f', 0, 64)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name:  yName,
			Range: &chart.ContinuousRange{Min: -0.25, Max: 1.25},
			Ticks: yTicks,
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(provider, w)
}

// dotStyle draws markers only, with no connecting line.
func dotStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    5,
		DotColor:    col,
	}
}

func seriesName(category string) string {
	if category == "" {
		return "(none)"
	}
	return category
}
