package aggregate

import (
	"encoding/json"
	"fmt"
	"math"
)

// AllSites is the site selection that covers every launch site.
const AllSites = "ALL"

// Range is a closed payload interval [Low, High] in kilograms.
type Range struct {
	Low  float64
	High float64
}

// Valid reports whether both bounds are finite and Low <= High.
func (r Range) Valid() bool {
	if math.IsNaN(r.Low) || math.IsNaN(r.High) || math.IsInf(r.Low, 0) || math.IsInf(r.High, 0) {
		return false
	}
	return r.Low <= r.High
}

// Contains reports whether v lies in the interval, bounds included.
// An invalid range contains nothing.
func (r Range) Contains(v float64) bool {
	return r.Valid() && r.Low <= v && v <= r.High
}

// Clamp narrows r to [lo, hi]. Ranges with non-finite bounds are returned
// unchanged so they stay invalid. A range entirely outside [lo, hi] clamps
// to an inverted (empty) interval.
func (r Range) Clamp(lo, hi float64) Range {
	if !r.Valid() {
		return r
	}
	return Range{Low: math.Max(r.Low, lo), High: math.Min(r.High, hi)}
}

func (r Range) String() string {
	return fmt.Sprintf("[%g, %g]", r.Low, r.High)
}

// MarshalJSON encodes the range as a two-element array, the shape a range slider emits.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{r.Low, r.High})
}

func (r *Range) UnmarshalJSON(data []byte) error {
	var bounds []float64
	if err := json.Unmarshal(data, &bounds); err != nil {
		return fmt.Errorf("payload range must be [low, high]: %w", err)
	}
	if len(bounds) != 2 {
		return fmt.Errorf("payload range must have 2 elements, got %d", len(bounds))
	}
	r.Low, r.High = bounds[0], bounds[1]
	return nil
}

// Selection is the state of the dashboard controls for one interaction.
type Selection struct {
	Site    string `json:"site"`
	Payload Range  `json:"payload_range"`
}
