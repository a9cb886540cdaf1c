package aggregate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launch-dashboard/decision/dataset"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func fixture(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New([]dataset.LaunchRecord{
		{LaunchSite: "CCAFS LC-40", PayloadMassKg: 500, Outcome: dataset.Success, BoosterVersionCategory: "v1.1"},
		{LaunchSite: "CCAFS LC-40", PayloadMassKg: 5000, Outcome: dataset.Success, BoosterVersionCategory: "FT"},
		{LaunchSite: "CCAFS LC-40", PayloadMassKg: 7000, Outcome: dataset.Failure, BoosterVersionCategory: "FT"},
		{LaunchSite: "KSC LC-39A", PayloadMassKg: 0, Outcome: dataset.Success, BoosterVersionCategory: "B4"},
		{LaunchSite: "KSC LC-39A", PayloadMassKg: 9600, Outcome: dataset.Failure, BoosterVersionCategory: "B5"},
	}, []string{"CCAFS LC-40", "KSC LC-39A", "VAFB SLC-4E"})
	require.NoError(t, err)
	return ds
}

func sliceValues(c ChartDescriptor) map[string]int {
	out := make(map[string]int, len(c.Slices))
	for _, s := range c.Slices {
		out[s.Name] = s.Value
	}
	return out
}

func TestSummarizeBySite_AllSites(t *testing.T) {
	got := SummarizeBySite(fixture(t), AllSites)

	want := ChartDescriptor{
		Kind:     KindPie,
		Title:    "Total Successful Launches by Site",
		Channels: Channels{Value: "class", Names: "Launch Site"},
		Slices: []Slice{
			{Name: "CCAFS LC-40", Label: "CCAFS LC-40", Value: 2, Share: decimal.RequireFromString("0.6667")},
			{Name: "KSC LC-39A", Label: "KSC LC-39A", Value: 1, Share: decimal.RequireFromString("0.3333")},
		},
	}
	if diff := cmp.Diff(want, got, decimalEqual); diff != "" {
		t.Errorf("SummarizeBySite(ALL) mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeBySite_SingleSite(t *testing.T) {
	got := SummarizeBySite(fixture(t), "CCAFS LC-40")

	assert.Equal(t, KindPie, got.Kind)
	assert.Equal(t, "Total Success vs. Failure for site CCAFS LC-40", got.Title)
	assert.Equal(t, map[string]int{"1": 2, "0": 1}, sliceValues(got))
	require.Len(t, got.Slices, 2)
	assert.Equal(t, "Success", got.Slices[0].Label)
	assert.Equal(t, "Failure", got.Slices[1].Label)
}

func TestSummarizeBySite_OnlyOutcomesPresent(t *testing.T) {
	ds, err := dataset.New([]dataset.LaunchRecord{
		{LaunchSite: "VAFB SLC-4E", PayloadMassKg: 500, Outcome: dataset.Failure},
		{LaunchSite: "VAFB SLC-4E", PayloadMassKg: 600, Outcome: dataset.Failure},
	}, nil)
	require.NoError(t, err)

	got := SummarizeBySite(ds, "VAFB SLC-4E")
	assert.Equal(t, map[string]int{"0": 2}, sliceValues(got))
	assert.True(t, got.Slices[0].Share.Equal(decimal.NewFromInt(1)))
}

func TestSummarizeBySite_ZeroSuccessSiteKept(t *testing.T) {
	ds, err := dataset.New([]dataset.LaunchRecord{
		{LaunchSite: "A", PayloadMassKg: 1, Outcome: dataset.Failure},
		{LaunchSite: "B", PayloadMassKg: 2, Outcome: dataset.Success},
	}, nil)
	require.NoError(t, err)

	got := SummarizeBySite(ds, AllSites)
	assert.Equal(t, map[string]int{"A": 0, "B": 1}, sliceValues(got))
	assert.Equal(t, "B", got.Slices[0].Name)
	assert.True(t, got.Slices[1].Share.IsZero())
}

func TestSummarizeBySite_AbsentSite(t *testing.T) {
	ds := fixture(t)
	for _, site := range []string{"VAFB SLC-4E", "Boca Chica", ""} {
		got := SummarizeBySite(ds, site)
		assert.Equal(t, KindPie, got.Kind, site)
		assert.Empty(t, got.Slices, site)
		assert.True(t, got.Empty(), site)
	}
}

func TestSummarizeBySite_PartitionsRecords(t *testing.T) {
	ds := fixture(t)

	successes := 0
	perSite := make(map[string]int)
	ds.Each(func(r dataset.LaunchRecord) {
		successes += int(r.Outcome)
		perSite[r.LaunchSite]++
	})

	assert.Equal(t, successes, SummarizeBySite(ds, AllSites).Total())
	for _, site := range ds.Sites() {
		assert.Equal(t, perSite[site], SummarizeBySite(ds, site).Total(), site)
	}
}

func TestCorrelatePayloadOutcome_AllSites(t *testing.T) {
	got := CorrelatePayloadOutcome(fixture(t), AllSites, Range{Low: 0, High: 5000})

	assert.Equal(t, KindScatter, got.Kind)
	assert.Equal(t, "Correlation between Payload and Success for All Sites", got.Title)
	assert.Equal(t, Channels{
		X:     "Payload Mass (kg)",
		Y:     "class",
		Color: "Booster Version Category",
		Hover: []string{"Launch Site", "class"},
	}, got.Channels)

	want := []Point{
		{PayloadMassKg: 500, Outcome: 1, BoosterVersionCategory: "v1.1", LaunchSite: "CCAFS LC-40"},
		{PayloadMassKg: 5000, Outcome: 1, BoosterVersionCategory: "FT", LaunchSite: "CCAFS LC-40"},
		{PayloadMassKg: 0, Outcome: 1, BoosterVersionCategory: "B4", LaunchSite: "KSC LC-39A"},
	}
	if diff := cmp.Diff(want, got.Points); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}

	require.NotNil(t, got.YAxis)
	assert.Equal(t, []Tick{{Value: 0, Label: "Failure"}, {Value: 1, Label: "Success"}}, got.YAxis.Ticks)
	assert.Equal(t, "Launch Outcome (1 = Success, 0 = Failure)", got.YAxis.Title)
	require.NotNil(t, got.XAxis)
	assert.Equal(t, "Payload Mass (kg)", got.XAxis.Title)
}

func TestCorrelatePayloadOutcome_SiteAndRangeConjunction(t *testing.T) {
	got := CorrelatePayloadOutcome(fixture(t), "KSC LC-39A", Range{Low: 100, High: 9600})

	assert.Equal(t, "Correlation between Payload and Success for KSC LC-39A", got.Title)
	require.Len(t, got.Points, 1)
	assert.Equal(t, 9600.0, got.Points[0].PayloadMassKg)
	assert.Equal(t, "KSC LC-39A", got.Points[0].LaunchSite)
}

func TestCorrelatePayloadOutcome_RangeProperty(t *testing.T) {
	ds := fixture(t)
	ranges := []Range{
		{0, 0}, {0, 500}, {499.9, 500.1}, {500, 7000}, {1, 9599}, {0, 10000}, {-100, 100}, {7000, 7000},
	}
	for _, r := range ranges {
		got := CorrelatePayloadOutcome(ds, AllSites, r)

		expected := 0
		ds.Each(func(rec dataset.LaunchRecord) {
			if rec.PayloadMassKg >= r.Low && rec.PayloadMassKg <= r.High {
				expected++
			}
		})
		assert.Len(t, got.Points, expected, r.String())
		for _, p := range got.Points {
			assert.True(t, r.Low <= p.PayloadMassKg && p.PayloadMassKg <= r.High, "%v outside %v", p.PayloadMassKg, r)
		}
	}
}

func TestCorrelatePayloadOutcome_EmptyResults(t *testing.T) {
	ds := fixture(t)
	tests := map[string]struct {
		site    string
		payload Range
	}{
		"inverted range":    {AllSites, Range{Low: 5000, High: 100}},
		"nan bound":         {AllSites, Range{Low: math.NaN(), High: 100}},
		"infinite bound":    {AllSites, Range{Low: 0, High: math.Inf(1)}},
		"site without data": {"VAFB SLC-4E", Range{Low: 0, High: 10000}},
		"unknown site":      {"Boca Chica", Range{Low: 0, High: 10000}},
		"range outside":     {AllSites, Range{Low: 20000, High: 30000}},
		"no overlap":        {"KSC LC-39A", Range{Low: 100, High: 5000}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := CorrelatePayloadOutcome(ds, tt.site, tt.payload)
			assert.Equal(t, KindScatter, got.Kind)
			assert.Empty(t, got.Points)
			assert.True(t, got.Empty())
		})
	}
}

func TestDescriptors_Idempotent(t *testing.T) {
	ds := fixture(t)
	sel := Selection{Site: "CCAFS LC-40", Payload: Range{Low: 0, High: 8000}}

	a := HandleSelectionChanged(ds, sel)
	b := HandleSelectionChanged(ds, sel)
	if diff := cmp.Diff(a, b, decimalEqual); diff != "" {
		t.Errorf("HandleSelectionChanged not idempotent (-first +second):\n%s", diff)
	}

	aj, err := json.Marshal(a)
	require.NoError(t, err)
	bj, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, string(aj), string(bj))

	all1, err := json.Marshal(SummarizeBySite(ds, AllSites))
	require.NoError(t, err)
	all2, err := json.Marshal(SummarizeBySite(ds, AllSites))
	require.NoError(t, err)
	assert.Equal(t, all1, all2)
}

func TestHandleSelectionChanged(t *testing.T) {
	ds := fixture(t)
	sel := Selection{Site: AllSites, Payload: Range{Low: 0, High: 5000}}

	got := HandleSelectionChanged(ds, sel)

	assert.Equal(t, sel, got.Selection)
	assert.Equal(t, SummarizeBySite(ds, AllSites).Title, got.Pie.Title)
	assert.Len(t, got.Scatter.Points, 3)
}

func TestSeries_GroupsByCategoryInOrder(t *testing.T) {
	got := CorrelatePayloadOutcome(fixture(t), AllSites, Range{Low: 0, High: 10000}).Series()

	var names []string
	for _, s := range got {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"v1.1", "FT", "B4", "B5"}, names)
	assert.Len(t, got[1].Points, 2)
}
