// Package aggregate turns dashboard selections into chart descriptors.
//
// Every function here is pure: it reads the immutable dataset, keeps no
// state between calls, and returns equal descriptors for equal inputs.
// Unknown sites and malformed payload ranges yield empty charts, never errors.
package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"launch-dashboard/decision/dataset"
)

// Chart titles and axis labels.
const (
	TitleAllSitesPie     = "Total Successful Launches by Site"
	titleSitePie         = "Total Success vs. Failure for site %s"
	titleScatter         = "Correlation between Payload and Success for %s"
	scatterAllSitesLabel = "All Sites"

	AxisPayload = "Payload Mass (kg)"
	AxisOutcome = "Launch Outcome (1 = Success, 0 = Failure)"
)

// shareDigits is the number of decimal places kept in Slice.Share.
const shareDigits = 4

// SummarizeBySite builds the pie chart for a site selection. For AllSites
// each slice is a site valued by its number of successful launches; for a
// concrete site each slice is an outcome valued by its launch count.
func SummarizeBySite(ds *dataset.Dataset, site string) ChartDescriptor {
	if site == AllSites {
		return successesBySite(ds)
	}
	return outcomesForSite(ds, site)
}

func successesBySite(ds *dataset.Dataset) ChartDescriptor {
	var order []string
	sums := make(map[string]int)
	ds.Each(func(r dataset.LaunchRecord) {
		if _, ok := sums[r.LaunchSite]; !ok {
			order = append(order, r.LaunchSite)
		}
		sums[r.LaunchSite] += int(r.Outcome)
	})

	out := make([]Slice, 0, len(order))
	for _, site := range order {
		out = append(out, Slice{Name: site, Label: site, Value: sums[site]})
	}

	return ChartDescriptor{
		Kind:  KindPie,
		Title: TitleAllSitesPie,
		Channels: Channels{
			Value: dataset.ColumnOutcome,
			Names: dataset.ColumnLaunchSite,
		},
		Slices: finishSlices(out),
	}
}

func outcomesForSite(ds *dataset.Dataset, site string) ChartDescriptor {
	counts := make(map[dataset.Outcome]int)
	ds.Each(func(r dataset.LaunchRecord) {
		if r.LaunchSite == site {
			counts[r.Outcome]++
		}
	})

	var out []Slice
	for _, o := range []dataset.Outcome{dataset.Success, dataset.Failure} {
		if n, ok := counts[o]; ok {
			out = append(out, Slice{
				Name:  strconv.Itoa(int(o)),
				Label: o.String(),
				Value: n,
			})
		}
	}

	return ChartDescriptor{
		Kind:  KindPie,
		Title: fmt.Sprintf(titleSitePie, site),
		Channels: Channels{
			Names: dataset.ColumnOutcome,
		},
		Slices: finishSlices(out),
	}
}

// finishSlices orders slices by value, largest first, breaking ties by
// name, and fills in each slice's share of the total.
func finishSlices(s []Slice) []Slice {
	if len(s) == 0 {
		return nil
	}
	slices.SortStableFunc(s, func(a, b Slice) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	total := 0
	for _, sl := range s {
		total += sl.Value
	}
	for i := range s {
		s[i].Share = decimal.Zero
		if total > 0 {
			s[i].Share = decimal.NewFromInt(int64(s[i].Value)).
				DivRound(decimal.NewFromInt(int64(total)), shareDigits)
		}
	}
	return s
}

// CorrelatePayloadOutcome builds the scatter chart of payload mass against
// outcome for records inside payload that also match site.
func CorrelatePayloadOutcome(ds *dataset.Dataset, site string, payload Range) ChartDescriptor {
	title := fmt.Sprintf(titleScatter, scatterAllSitesLabel)
	if site != AllSites {
		title = fmt.Sprintf(titleScatter, site)
	}

	var points []Point
	ds.Each(func(r dataset.LaunchRecord) {
		if !payload.Contains(r.PayloadMassKg) {
			return
		}
		if site != AllSites && r.LaunchSite != site {
			return
		}
		points = append(points, Point{
			PayloadMassKg:          r.PayloadMassKg,
			Outcome:                int(r.Outcome),
			BoosterVersionCategory: r.BoosterVersionCategory,
			LaunchSite:             r.LaunchSite,
		})
	})

	return ChartDescriptor{
		Kind:  KindScatter,
		Title: title,
		Channels: Channels{
			X:     dataset.ColumnPayloadMass,
			Y:     dataset.ColumnOutcome,
			Color: dataset.ColumnBoosterCategory,
			Hover: []string{dataset.ColumnLaunchSite, dataset.ColumnOutcome},
		},
		Points: points,
		XAxis:  &Axis{Title: AxisPayload},
		YAxis: &Axis{
			Title: AxisOutcome,
			Ticks: []Tick{
				{Value: float64(dataset.Failure), Label: dataset.Failure.String()},
				{Value: float64(dataset.Success), Label: dataset.Success.String()},
			},
		},
	}
}

// HandleSelectionChanged recomputes both charts for a selection.
func HandleSelectionChanged(ds *dataset.Dataset, sel Selection) Dashboard {
	return Dashboard{
		Selection: sel,
		Pie:       SummarizeBySite(ds, sel.Site),
		Scatter:   CorrelatePayloadOutcome(ds, sel.Site, sel.Payload),
	}
}
