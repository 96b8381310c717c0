package epidata

import (
	"math"
	"sort"

	"github.com/sartorproj/goarima/timeseries"
)

// Stats holds descriptive statistics of one country's metric values.
// All fields except Count are nil when there are no values; Std is nil for a
// single value.
type Stats struct {
	Count int      `json:"count"`
	Mean  *float64 `json:"mean"`
	Std   *float64 `json:"std"`
	Min   *float64 `json:"min"`
	P25   *float64 `json:"25%"`
	P50   *float64 `json:"50%"`
	P75   *float64 `json:"75%"`
	Max   *float64 `json:"max"`
}

// Summary maps a location to its statistics.
type Summary map[string]Stats

// Summarize computes statistics independently for every selected country over
// the frame's values. Countries without rows get an empty Stats record.
func Summarize(frame Frame, countries []string) Summary {
	byLocation := make(map[string][]float64)
	for _, r := range frame.Rows {
		byLocation[r.Location] = append(byLocation[r.Location], r.Value)
	}

	summary := make(Summary, len(countries))
	for _, c := range countries {
		summary[c] = Describe(byLocation[c])
	}
	return summary
}

// Describe returns count, mean, sample std, min, quartiles and max of values.
// Quartiles interpolate linearly between closest ranks.
func Describe(values []float64) Stats {
	n := len(values)
	if n == 0 {
		return Stats{}
	}

	series := timeseries.New(values)
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	stats := Stats{
		Count: n,
		Mean:  ptr(series.Mean()),
		Min:   ptr(series.Min()),
		P25:   ptr(quantile(sorted, 0.25)),
		P50:   ptr(series.Median()),
		P75:   ptr(quantile(sorted, 0.75)),
		Max:   ptr(series.Max()),
	}
	if n > 1 {
		stats.Std = ptr(series.Std())
	}

	return stats
}

// quantile expects sorted input.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func ptr(v float64) *float64 {
	return &v
}
