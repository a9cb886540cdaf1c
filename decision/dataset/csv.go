package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	derrors "launch-dashboard/pkg/errors"
)

// Column names of the launch CSV.
const (
	ColumnLaunchSite      = "Launch Site"
	ColumnPayloadMass     = "Payload Mass (kg)"
	ColumnOutcome         = "class"
	ColumnBoosterCategory = "Booster Version Category"
)

// RequiredColumns lists the header names ReadCSV looks up. Other columns are ignored.
var RequiredColumns = []string{
	ColumnLaunchSite,
	ColumnPayloadMass,
	ColumnOutcome,
	ColumnBoosterCategory,
}

// ReadCSV parses launch records from CSV with a header row. Columns are
// matched by name, so order does not matter. The first schema violation
// stops parsing and is returned as a *errors.DatasetError.
func ReadCSV(r io.Reader) ([]LaunchRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &derrors.DatasetError{
			Code:     derrors.ErrCodeEmptyDataset,
			Message:  "CSV has no header row",
			Severity: derrors.SeverityFatal,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	cols := make(map[string]int, len(RequiredColumns))
	width := 0
	for _, name := range RequiredColumns {
		i, ok := index[name]
		if !ok {
			return nil, derrors.NewMissingColumnError(name)
		}
		cols[name] = i
		width = max(width, i+1)
	}

	var records []LaunchRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var line int
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			return nil, &derrors.DatasetError{
				Code:     derrors.ErrCodeMalformedRow,
				Message:  err.Error(),
				Severity: derrors.SeverityFatal,
				Line:     line,
			}
		}
		line, _ := cr.FieldPos(0)
		if len(row) < width {
			return nil, &derrors.DatasetError{
				Code:     derrors.ErrCodeMalformedRow,
				Message:  fmt.Sprintf("row has %d fields, need at least %d", len(row), width),
				Severity: derrors.SeverityFatal,
				Line:     line,
			}
		}

		rec, err := parseRow(row, cols, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, &derrors.DatasetError{
			Code:     derrors.ErrCodeEmptyDataset,
			Message:  "CSV contains a header but no launch records",
			Severity: derrors.SeverityFatal,
		}
	}
	return records, nil
}

func parseRow(row []string, cols map[string]int, line int) (LaunchRecord, error) {
	site := strings.TrimSpace(row[cols[ColumnLaunchSite]])
	if site == "" {
		return LaunchRecord{}, derrors.NewEmptySiteError(line, ColumnLaunchSite)
	}

	rawPayload := strings.TrimSpace(row[cols[ColumnPayloadMass]])
	payload, err := strconv.ParseFloat(rawPayload, 64)
	if err != nil || math.IsNaN(payload) || math.IsInf(payload, 0) || payload < 0 {
		return LaunchRecord{}, derrors.NewInvalidPayloadError(rawPayload, line, ColumnPayloadMass)
	}

	outcome, err := ParseOutcome(row[cols[ColumnOutcome]])
	if err != nil {
		return LaunchRecord{}, derrors.NewInvalidOutcomeError(strings.TrimSpace(row[cols[ColumnOutcome]]), line, ColumnOutcome)
	}

	return LaunchRecord{
		LaunchSite:             site,
		PayloadMassKg:          payload,
		Outcome:                outcome,
		BoosterVersionCategory: strings.TrimSpace(row[cols[ColumnBoosterCategory]]),
	}, nil
}

// ParseOutcome parses "0" or "1" (also "0.0" and "1.0") into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid outcome %q: %w", s, err)
	}
	switch v {
	case 0:
		return Failure, nil
	case 1:
		return Success, nil
	}
	return 0, fmt.Errorf("invalid outcome %q: must be 0 or 1", s)
}

// WriteCSV writes records with the four required columns.
func WriteCSV(w io.Writer, records []LaunchRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RequiredColumns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.LaunchSite,
			strconv.FormatFloat(r.PayloadMassKg, 'f', -1, 64),
			strconv.Itoa(int(r.Outcome)),
			r.BoosterVersionCategory,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
