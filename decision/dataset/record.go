// Package dataset provides the immutable launch record table the dashboard
// aggregates over, along with its CSV schema reader and load sources.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strconv"

	derrors "launch-dashboard/pkg/errors"
)

// Outcome is the binary result of a launch.
type Outcome int

const (
	Failure Outcome = 0
	Success Outcome = 1
)

// Valid reports whether o is exactly Failure or Success.
func (o Outcome) Valid() bool {
	return o == Failure || o == Success
}

func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// LaunchRecord is one row of the launch dataset.
type LaunchRecord struct {
	LaunchSite             string  `json:"launch_site"`
	PayloadMassKg          float64 `json:"payload_mass_kg"`
	Outcome                Outcome `json:"outcome"`
	BoosterVersionCategory string  `json:"booster_version_category"`
}

// Dataset is an ordered, read-only sequence of launch records.
// It is safe for concurrent use because nothing mutates it after New returns.
type Dataset struct {
	records    []LaunchRecord
	sites      []string
	minPayload float64
	maxPayload float64
	hash       string
}

// New validates records and builds a Dataset from a private copy of them.
// When knownSites is non-empty every record's site must be one of them and
// Sites reports knownSites (which may include sites without records);
// otherwise Sites is derived from the records in first-appearance order.
func New(records []LaunchRecord, knownSites []string) (*Dataset, error) {
	if len(records) == 0 {
		return nil, &derrors.DatasetError{
			Code:     derrors.ErrCodeEmptyDataset,
			Message:  "dataset contains no launch records",
			Severity: derrors.SeverityFatal,
		}
	}

	known := make(map[string]struct{}, len(knownSites))
	for _, s := range knownSites {
		known[s] = struct{}{}
	}

	d := &Dataset{
		records:    slices.Clone(records),
		minPayload: math.Inf(1),
		maxPayload: math.Inf(-1),
	}

	seen := make(map[string]struct{})
	for i, r := range d.records {
		if err := validateRecord(r, i+1); err != nil {
			return nil, err
		}
		if len(known) > 0 {
			if _, ok := known[r.LaunchSite]; !ok {
				err := derrors.NewUnknownSiteError(r.LaunchSite, 0)
				err.Message = fmt.Sprintf("record %d: %s", i+1, err.Message)
				return nil, err
			}
		}
		if _, ok := seen[r.LaunchSite]; !ok {
			seen[r.LaunchSite] = struct{}{}
			d.sites = append(d.sites, r.LaunchSite)
		}
		d.minPayload = math.Min(d.minPayload, r.PayloadMassKg)
		d.maxPayload = math.Max(d.maxPayload, r.PayloadMassKg)
	}

	if len(knownSites) > 0 {
		d.sites = slices.Clone(knownSites)
	}
	d.hash = hashRecords(d.records)
	return d, nil
}

func validateRecord(r LaunchRecord, index int) error {
	if r.LaunchSite == "" {
		err := derrors.NewEmptySiteError(0, ColumnLaunchSite)
		err.Message = fmt.Sprintf("launch site is empty in record %d", index)
		return err
	}
	if math.IsNaN(r.PayloadMassKg) || math.IsInf(r.PayloadMassKg, 0) || r.PayloadMassKg < 0 {
		err := derrors.NewInvalidPayloadError(strconv.FormatFloat(r.PayloadMassKg, 'g', -1, 64), 0, ColumnPayloadMass)
		err.Message = fmt.Sprintf("record %d: %s", index, err.Message)
		return err
	}
	if !r.Outcome.Valid() {
		err := derrors.NewInvalidOutcomeError(strconv.Itoa(int(r.Outcome)), 0, ColumnOutcome)
		err.Message = fmt.Sprintf("record %d: %s", index, err.Message)
		return err
	}
	return nil
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Records returns a copy of the records in dataset order.
func (d *Dataset) Records() []LaunchRecord {
	return slices.Clone(d.records)
}

// Each calls fn for every record in dataset order.
func (d *Dataset) Each(fn func(LaunchRecord)) {
	for _, r := range d.records {
		fn(r)
	}
}

// Sites returns the known launch sites.
func (d *Dataset) Sites() []string {
	return slices.Clone(d.sites)
}

// PayloadBounds returns the smallest and largest payload mass in the dataset.
func (d *Dataset) PayloadBounds() (float64, float64) {
	return d.minPayload, d.maxPayload
}

// Hash returns the hex SHA-256 of the record contents.
func (d *Dataset) Hash() string {
	return d.hash
}

func hashRecords(records []LaunchRecord) string {
	h := sha256.New()
	for _, r := range records {
		fmt.Fprintf(h, "%s\x1f%s\x1f%d\x1f%s\n",
			r.LaunchSite,
			strconv.FormatFloat(r.PayloadMassKg, 'g', -1, 64),
			int(r.Outcome),
			r.BoosterVersionCategory,
		)
	}
	return hex.EncodeToString(h.Sum(nil))
}
