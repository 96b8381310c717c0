package epidata

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateLayout is the calendar-date format used by the upstream dataset and all exports.
const DateLayout = "2006-01-02"

// Metric is one of the numeric series a user can inspect.
type Metric string

const (
	MetricNewCases        Metric = "new_cases"
	MetricNewDeaths       Metric = "new_deaths"
	MetricNewVaccinations Metric = "new_vaccinations"
)

// Metrics lists the recognized metrics in display order.
var Metrics = []Metric{MetricNewCases, MetricNewDeaths, MetricNewVaccinations}

// ParseMetric converts a column name into a Metric.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.TrimSpace(s))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidParams, s)
	}
	return m, nil
}

// Valid reports whether m is one of the recognized metrics.
func (m Metric) Valid() bool {
	for _, known := range Metrics {
		if m == known {
			return true
		}
	}
	return false
}

// Label returns the human readable name, e.g. "New Cases".
func (m Metric) Label() string {
	// cases.Caser is stateful, so one per call.
	return cases.Title(language.English).String(strings.ReplaceAll(string(m), "_", " "))
}

// Observation is one country-day row of the upstream dataset.
// Metric values are nil when the source cell is empty.
type Observation struct {
	Location        string    `json:"location"`
	ISOCode         string    `json:"iso_code"`
	Date            time.Time `json:"date"` // UTC midnight
	NewCases        *float64  `json:"new_cases"`
	NewDeaths       *float64  `json:"new_deaths"`
	NewVaccinations *float64  `json:"new_vaccinations"`
}

// Value returns the observation's value for the given metric.
func (o Observation) Value(m Metric) *float64 {
	switch m {
	case MetricNewCases:
		return o.NewCases
	case MetricNewDeaths:
		return o.NewDeaths
	case MetricNewVaccinations:
		return o.NewVaccinations
	default:
		return nil
	}
}

// Dataset is an immutable snapshot of the loaded observations.
type Dataset struct {
	ID           string        `json:"id"`
	FetchedAt    time.Time     `json:"fetchedAt"`
	Observations []Observation `json:"-"`
}

// Locations returns the sorted set of country names in the dataset.
func (d *Dataset) Locations() []string {
	if d == nil {
		return []string{}
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, o := range d.Observations {
		if _, ok := seen[o.Location]; ok {
			continue
		}
		seen[o.Location] = struct{}{}
		out = append(out, o.Location)
	}
	sort.Strings(out)
	return out
}

// Bounds is the inclusive date range available for a selection.
// Both fields are zero when the selection is empty and then serialize as {}.
type Bounds struct {
	Min time.Time `json:"min,omitzero"`
	Max time.Time `json:"max,omitzero"`
}

// IsZero reports whether the bounds describe an empty selection.
func (b Bounds) IsZero() bool {
	return b.Min.IsZero() && b.Max.IsZero()
}

// Row is a single filtered observation for the active metric.
type Row struct {
	Location string    `json:"location"`
	ISOCode  string    `json:"iso_code"`
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
	// Raw is the unsmoothed source value; equal to Value unless the frame is smoothed.
	Raw *float64 `json:"raw"`
}

// Frame is the output of the filter pipeline.
type Frame struct {
	Metric   Metric `json:"metric"`
	Smoothed bool   `json:"smoothed"`
	Rows     []Row  `json:"rows"`
}

// Len returns the number of rows in the frame.
func (f Frame) Len() int {
	return len(f.Rows)
}

// Locations returns the frame's locations in order of first appearance.
func (f Frame) Locations() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range f.Rows {
		if _, ok := seen[r.Location]; ok {
			continue
		}
		seen[r.Location] = struct{}{}
		out = append(out, r.Location)
	}
	return out
}
