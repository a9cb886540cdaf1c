package aggregate

import "github.com/shopspring/decimal"

// Kind is the type of chart a descriptor describes.
type Kind string

const (
	KindPie     Kind = "pie"
	KindScatter Kind = "scatter"
)

// Channels maps visual channels to dataset column names.
type Channels struct {
	Value string   `json:"value,omitempty"`
	Names string   `json:"names,omitempty"`
	X     string   `json:"x,omitempty"`
	Y     string   `json:"y,omitempty"`
	Color string   `json:"color,omitempty"`
	Hover []string `json:"hover,omitempty"`
}

// Slice is one pie sector.
type Slice struct {
	Name  string          `json:"name"`
	Label string          `json:"label"`
	Value int             `json:"value"`
	Share decimal.Decimal `json:"share"`
}

// Point is one scatter marker.
type Point struct {
	PayloadMassKg          float64 `json:"payload_mass_kg"`
	Outcome                int     `json:"outcome"`
	BoosterVersionCategory string  `json:"booster_version_category"`
	LaunchSite             string  `json:"launch_site"`
}

// Tick is a labelled axis position.
type Tick struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// Axis describes an axis title and optional fixed ticks.
type Axis struct {
	Title string `json:"title"`
	Ticks []Tick `json:"ticks,omitempty"`
}

// ChartDescriptor is a renderer-agnostic description of a chart.
type ChartDescriptor struct {
	Kind     Kind     `json:"kind"`
	Title    string   `json:"title"`
	Channels Channels `json:"channels"`
	Slices   []Slice  `json:"slices,omitempty"`
	Points   []Point  `json:"points,omitempty"`
	XAxis    *Axis    `json:"x_axis,omitempty"`
	YAxis    *Axis    `json:"y_axis,omitempty"`
}

// Empty reports whether the descriptor has no data to plot.
func (c ChartDescriptor) Empty() bool {
	return len(c.Slices) == 0 && len(c.Points) == 0
}

// Total sums the slice values.
func (c ChartDescriptor) Total() int {
	total := 0
	for _, s := range c.Slices {
		total += s.Value
	}
	return total
}

// Series is the group of points sharing one colour.
type Series struct {
	Name   string
	Points []Point
}

// Series groups scatter points by booster version category, in order of
// first appearance.
func (c ChartDescriptor) Series() []Series {
	var out []Series
	index := make(map[string]int)
	for _, p := range c.Points {
		i, ok := index[p.BoosterVersionCategory]
		if !ok {
			i = len(out)
			index[p.BoosterVersionCategory] = i
			out = append(out, Series{Name: p.BoosterVersionCategory})
		}
		out[i].Points = append(out[i].Points, p)
	}
	return out
}

// Dashboard holds both charts for one selection.
type Dashboard struct {
	Selection Selection       `json:"selection"`
	Pie       ChartDescriptor `json:"pie"`
	Scatter   ChartDescriptor `json:"scatter"`
}
