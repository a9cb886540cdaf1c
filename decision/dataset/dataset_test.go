package dataset

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "launch-dashboard/pkg/errors"
)

const sampleCSV = `Flight Number,Launch Site,class,Payload Mass (kg),Booster Version,Booster Version Category
1,CCAFS LC-40,0,0.0,F9 v1.0  B0003,v1.0
2,CCAFS LC-40,0,525.0,F9 v1.0  B0005,v1.0
3,VAFB SLC-4E,0,500.0,F9 v1.1  B1003,v1.1
4,KSC LC-39A,1,2490.0,F9 FT B1031.1,FT
5,CCAFS SLC-40,1,9600.0,F9 B5 B1046.1,B5
`

func TestReadCSV(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	want := []LaunchRecord{
		{LaunchSite: "CCAFS LC-40", PayloadMassKg: 0, Outcome: Failure, BoosterVersionCategory: "v1.0"},
		{LaunchSite: "CCAFS LC-40", PayloadMassKg: 525, Outcome: Failure, BoosterVersionCategory: "v1.0"},
		{LaunchSite: "VAFB SLC-4E", PayloadMassKg: 500, Outcome: Failure, BoosterVersionCategory: "v1.1"},
		{LaunchSite: "KSC LC-39A", PayloadMassKg: 2490, Outcome: Success, BoosterVersionCategory: "FT"},
		{LaunchSite: "CCAFS SLC-40", PayloadMassKg: 9600, Outcome: Success, BoosterVersionCategory: "B5"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("ReadCSV() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_ColumnOrderAndBOM(t *testing.T) {
	in := "\ufeffclass,Booster Version Category,Payload Mass (kg),Launch Site\n1.0,FT,3000,KSC LC-39A\n"
	records, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, LaunchRecord{
		LaunchSite:             "KSC LC-39A",
		PayloadMassKg:          3000,
		Outcome:                Success,
		BoosterVersionCategory: "FT",
	}, records[0])
}

func TestReadCSV_SchemaViolations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
		wantLine int
	}{
		{
			name:     "empty input",
			input:    "",
			wantCode: derrors.ErrCodeEmptyDataset,
		},
		{
			name:     "header only",
			input:    "Launch Site,Payload Mass (kg),class,Booster Version Category\n",
			wantCode: derrors.ErrCodeEmptyDataset,
		},
		{
			name:     "missing column",
			input:    "Launch Site,Payload Mass (kg),Booster Version Category\nA,1,FT\n",
			wantCode: derrors.ErrCodeMissingColumn,
			wantLine: 1,
		},
		{
			name:     "non-numeric payload",
			input:    "Launch Site,Payload Mass (kg),class,Booster Version Category\nA,1,1,FT\nB,heavy,0,FT\n",
			wantCode: derrors.ErrCodeInvalidPayload,
			wantLine: 3,
		},
		{
			name:     "negative payload",
			input:    "Launch Site,Payload Mass (kg),class,Booster Version Category\nA,-5,1,FT\n",
			wantCode: derrors.ErrCodeInvalidPayload,
			wantLine: 2,
		},
		{
			name:     "nan payload",
			input:    "Launch Site,Payload Mass (kg),class,Booster Version Category\nA,NaN,1,FT\n",
			wantCode: derrors.ErrCodeInvalidPayload,
			wantLine: 2,
		},
		{
			name:     "outcome outside 0/1",
			input:    "Launch Site,Payload Mass (kg),class,Booster Version Category\nA,10,2,FT\n",
			wantCode: derrors.ErrCodeInvalidOutcome,
			wantLine: 2,
		},
		{
			name:     "empty site",
			input:    "Launch Site,Payload Mass (kg),class,Booster Version Category\n ,10,1,FT\n",
			wantCode: derrors.ErrCodeEmptySite,
			wantLine: 2,
		},
		{
			name:     "short row",
			input:    "Launch Site,Payload Mass (kg),class,Booster Version Category\nA,10\n",
			wantCode: derrors.ErrCodeMalformedRow,
			wantLine: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)

			var dsErr *derrors.DatasetError
			require.True(t, errors.As(err, &dsErr), "want *DatasetError, got %T: %v", err, err)
			assert.Equal(t, tt.wantCode, dsErr.Code)
			assert.Equal(t, tt.wantLine, dsErr.Line)
			assert.Equal(t, derrors.SeverityFatal, dsErr.Severity)
		})
	}
}

func TestParseOutcome(t *testing.T) {
	for in, want := range map[string]Outcome{"0": Failure, "1": Success, " 1.0 ": Success, "0.0": Failure} {
		got, err := ParseOutcome(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "yes", "0.5", "-1", "2"} {
		_, err := ParseOutcome(in)
		assert.Error(t, err, in)
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, records))

	again, err := ReadCSV(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, records, again)
}

func TestNew(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	ds, err := New(records, nil)
	require.NoError(t, err)

	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, []string{"CCAFS LC-40", "VAFB SLC-4E", "KSC LC-39A", "CCAFS SLC-40"}, ds.Sites())
	lo, hi := ds.PayloadBounds()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 9600.0, hi)
	assert.Len(t, ds.Hash(), 64)
}

func TestNew_IsolatedFromCaller(t *testing.T) {
	records := []LaunchRecord{{LaunchSite: "A", PayloadMassKg: 1, Outcome: Success}}
	ds, err := New(records, nil)
	require.NoError(t, err)

	records[0].LaunchSite = "mutated"
	got := ds.Records()
	got[0].PayloadMassKg = 99

	assert.Equal(t, "A", ds.Records()[0].LaunchSite)
	assert.Equal(t, 1.0, ds.Records()[0].PayloadMassKg)
}

func TestNew_KnownSites(t *testing.T) {
	records := []LaunchRecord{{LaunchSite: "A", PayloadMassKg: 1, Outcome: Success}}

	ds, err := New(records, []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ds.Sites())

	_, err = New(records, []string{"B"})
	var dsErr *derrors.DatasetError
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, derrors.ErrCodeUnknownSite, dsErr.Code)
}

func TestNew_Invalid(t *testing.T) {
	tests := map[string]struct {
		records []LaunchRecord
		code    string
	}{
		"empty":        {nil, derrors.ErrCodeEmptyDataset},
		"bad outcome":  {[]LaunchRecord{{LaunchSite: "A", Outcome: 3}}, derrors.ErrCodeInvalidOutcome},
		"inf payload":  {[]LaunchRecord{{LaunchSite: "A", PayloadMassKg: math.Inf(1)}}, derrors.ErrCodeInvalidPayload},
		"neg payload":  {[]LaunchRecord{{LaunchSite: "A", PayloadMassKg: -1}}, derrors.ErrCodeInvalidPayload},
		"missing site": {[]LaunchRecord{{PayloadMassKg: 1}}, derrors.ErrCodeEmptySite},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(tt.records, nil)
			var dsErr *derrors.DatasetError
			require.ErrorAs(t, err, &dsErr)
			assert.Equal(t, tt.code, dsErr.Code)
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	a, err := New([]LaunchRecord{{LaunchSite: "A", PayloadMassKg: 1.5, Outcome: Success, BoosterVersionCategory: "FT"}}, nil)
	require.NoError(t, err)
	b, err := New([]LaunchRecord{{LaunchSite: "A", PayloadMassKg: 1.5, Outcome: Success, BoosterVersionCategory: "FT"}}, nil)
	require.NoError(t, err)
	c, err := New([]LaunchRecord{{LaunchSite: "A", PayloadMassKg: 1.5, Outcome: Failure, BoosterVersionCategory: "FT"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestLoad_WrapsSourceName(t *testing.T) {
	_, err := Load(context.Background(), FileSource{Path: "does-not-exist.csv"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist.csv")

	ds, err := Load(context.Background(), RecordsSource{Records: []LaunchRecord{{LaunchSite: "A", Outcome: Success}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://launch-data/spacex/launches.csv")
	require.NoError(t, err)
	assert.Equal(t, "launch-data", bucket)
	assert.Equal(t, "spacex/launches.csv", key)

	for _, bad := range []string{"launches.csv", "s3://bucket", "s3:///key", "s3://bucket/"} {
		_, _, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}
}
