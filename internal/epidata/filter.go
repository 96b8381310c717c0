package epidata

import (
	"fmt"
	"time"
)

// RollingWindow is the number of observations averaged by smoothing.
const RollingWindow = 7

// Params are the user-selected filter predicates.
type Params struct {
	Countries []string
	Metric    Metric
	// Start and End are inclusive; a zero value means "use the available bound".
	Start  time.Time
	End    time.Time
	Smooth bool
}

// Validate rejects unknown metrics and inverted date ranges.
func (p Params) Validate() error {
	if !p.Metric.Valid() {
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidParams, p.Metric)
	}
	if !p.Start.IsZero() && !p.End.IsZero() && p.Start.After(p.End) {
		return fmt.Errorf("%w: start date %s is after end date %s",
			ErrInvalidParams, p.Start.Format(DateLayout), p.End.Format(DateLayout))
	}
	return nil
}

// Filter reduces the dataset to the selected countries, date range and metric.
// It also returns the date bounds of the selected countries before the date
// range is applied, which drive the selectable range.
func Filter(ds *Dataset, p Params) (Frame, Bounds) {
	frame := Frame{Metric: p.Metric, Smoothed: p.Smooth, Rows: []Row{}}
	if ds == nil || len(p.Countries) == 0 {
		return frame, Bounds{}
	}

	selected := make(map[string]struct{}, len(p.Countries))
	for _, c := range p.Countries {
		selected[c] = struct{}{}
	}

	var kept []Observation
	for _, o := range ds.Observations {
		if _, ok := selected[o.Location]; ok {
			kept = append(kept, o)
		}
	}

	bounds := DateBounds(kept)

	start, end := p.Start, p.End
	if start.IsZero() {
		start = bounds.Min
	}
	if end.IsZero() {
		end = bounds.Max
	}

	var inRange []Observation
	for _, o := range kept {
		if o.Date.Before(start) || o.Date.After(end) {
			continue
		}
		inRange = append(inRange, o)
	}

	values := make([]*float64, len(inRange))
	for i, o := range inRange {
		values[i] = o.Value(p.Metric)
	}
	if p.Smooth {
		values = RollingMean(inRange, values, RollingWindow)
	}

	for i, o := range inRange {
		if values[i] == nil {
			continue
		}
		frame.Rows = append(frame.Rows, Row{
			Location: o.Location,
			ISOCode:  o.ISOCode,
			Date:     o.Date,
			Value:    *values[i],
			Raw:      o.Value(p.Metric),
		})
	}

	return frame, bounds
}

// DateBounds returns the min/max date across the observations.
func DateBounds(obs []Observation) Bounds {
	var b Bounds
	for i, o := range obs {
		if i == 0 || o.Date.Before(b.Min) {
			b.Min = o.Date
		}
		if i == 0 || o.Date.After(b.Max) {
			b.Max = o.Date
		}
	}
	return b
}

// RollingMean computes a trailing mean over the last window values of each
// location, in row order. The first window-1 rows of a location, and any window
// containing an absent value, yield nil.
func RollingMean(obs []Observation, values []*float64, window int) []*float64 {
	out := make([]*float64, len(values))
	history := make(map[string][]*float64)

	for i, o := range obs {
		h := append(history[o.Location], values[i])
		if len(h) > window {
			h = h[len(h)-window:]
		}
		history[o.Location] = h

		if len(h) < window {
			continue
		}
		sum := 0.0
		complete := true
		for _, v := range h {
			if v == nil {
				complete = false
				break
			}
			sum += *v
		}
		if complete {
			mean := sum / float64(window)
			out[i] = &mean
		}
	}

	return out
}
