// Package errors provides severity-aware error types.
package errors

import "fmt"

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// DatasetError is a structured error raised while loading launch records.
// Line is the 1-based line in the source (0 when not applicable).
type DatasetError struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line,omitempty"`
	Column   string   `json:"column,omitempty"`
}

func (e *DatasetError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("[%s] %s: %s (line %d, column %q)", e.Severity, e.Code, e.Message, e.Line, e.Column)
	case e.Line > 0:
		return fmt.Sprintf("[%s] %s: %s (line %d)", e.Severity, e.Code, e.Message, e.Line)
	case e.Column != "":
		return fmt.Sprintf("[%s] %s: %s (column %q)", e.Severity, e.Code, e.Message, e.Column)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

// Error codes
const (
	ErrCodeEmptyDataset   = "EMPTY_DATASET"
	ErrCodeMissingColumn  = "MISSING_COLUMN"
	ErrCodeMalformedRow   = "MALFORMED_ROW"
	ErrCodeEmptySite      = "EMPTY_SITE"
	ErrCodeUnknownSite    = "UNKNOWN_SITE"
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeInvalidOutcome = "INVALID_OUTCOME"
)

// NewMissingColumnError creates an error for a required column absent from the header.
func NewMissingColumnError(column string) *DatasetError {
	return &DatasetError{
		Code:     ErrCodeMissingColumn,
		Message:  "required column not found in header",
		Severity: SeverityFatal,
		Line:     1,
		Column:   column,
	}
}

// NewInvalidPayloadError creates an error for a payload cell that is not a finite, non-negative number.
func NewInvalidPayloadError(value string, line int, column string) *DatasetError {
	return &DatasetError{
		Code:     ErrCodeInvalidPayload,
		Message:  fmt.Sprintf("payload mass must be a finite non-negative number, got %q", value),
		Severity: SeverityFatal,
		Line:     line,
		Column:   column,
	}
}

// NewInvalidOutcomeError creates an error for an outcome cell outside {0, 1}.
func NewInvalidOutcomeError(value string, line int, column string) *DatasetError {
	return &DatasetError{
		Code:     ErrCodeInvalidOutcome,
		Message:  fmt.Sprintf("outcome must be 0 or 1, got %q", value),
		Severity: SeverityFatal,
		Line:     line,
		Column:   column,
	}
}

// NewEmptySiteError creates an error for a record without a launch site.
func NewEmptySiteError(line int, column string) *DatasetError {
	return &DatasetError{
		Code:     ErrCodeEmptySite,
		Message:  "launch site is empty",
		Severity: SeverityFatal,
		Line:     line,
		Column:   column,
	}
}

// NewUnknownSiteError creates an error for a record whose site is not in the configured site list.
func NewUnknownSiteError(site string, line int) *DatasetError {
	return &DatasetError{
		Code:     ErrCodeUnknownSite,
		Message:  fmt.Sprintf("launch site %q is not a known site", site),
		Severity: SeverityFatal,
		Line:     line,
	}
}
