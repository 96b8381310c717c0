package epidata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func day(n int) time.Time { return day0.AddDate(0, 0, n) }

// series builds consecutive daily observations for one location with the given new_cases values.
func series(location, iso string, cases ...*float64) []Observation {
	obs := make([]Observation, len(cases))
	for i, c := range cases {
		obs[i] = Observation{
			Location:  location,
			ISOCode:   iso,
			Date:      day(i),
			NewCases:  c,
			NewDeaths: f(1),
		}
	}
	return obs
}

func constant(n int, v float64) []*float64 {
	out := make([]*float64, n)
	for i := range out {
		out[i] = f(v)
	}
	return out
}

func ramp(n int) []*float64 {
	out := make([]*float64, n)
	for i := range out {
		out[i] = f(float64(i + 1))
	}
	return out
}

func testDataset() *Dataset {
	var obs []Observation
	obs = append(obs, series("India", "IND", ramp(20)...)...)
	obs = append(obs, series("France", "FRA", constant(10, 5)...)...)
	obs = append(obs, series("Peru", "PER", f(1), nil, f(3))...)
	return &Dataset{ID: "test", Observations: obs}
}

func TestFilter_SelectsCountries(t *testing.T) {
	frame, bounds := Filter(testDataset(), Params{
		Countries: []string{"France"},
		Metric:    MetricNewCases,
	})

	require.Equal(t, 10, frame.Len())
	for _, r := range frame.Rows {
		assert.Equal(t, "France", r.Location)
	}
	assert.Equal(t, day(0), bounds.Min)
	assert.Equal(t, day(9), bounds.Max)
}

func TestFilter_OutputIsSubsetOfPredicates(t *testing.T) {
	start, end := day(3), day(12)
	frame, _ := Filter(testDataset(), Params{
		Countries: []string{"India", "Peru"},
		Metric:    MetricNewCases,
		Start:     start,
		End:       end,
	})

	require.NotEmpty(t, frame.Rows)
	for _, r := range frame.Rows {
		assert.Contains(t, []string{"India", "Peru"}, r.Location)
		assert.False(t, r.Date.Before(start), "date %s before start", r.Date)
		assert.False(t, r.Date.After(end), "date %s after end", r.Date)
	}
}

func TestFilter_DateRangeInclusive(t *testing.T) {
	frame, _ := Filter(testDataset(), Params{
		Countries: []string{"India"},
		Metric:    MetricNewCases,
		Start:     day(2),
		End:       day(4),
	})

	require.Equal(t, 3, frame.Len())
	assert.Equal(t, day(2), frame.Rows[0].Date)
	assert.Equal(t, day(4), frame.Rows[2].Date)
}

func TestFilter_BoundsIgnoreDateRange(t *testing.T) {
	_, bounds := Filter(testDataset(), Params{
		Countries: []string{"India"},
		Metric:    MetricNewCases,
		Start:     day(5),
		End:       day(6),
	})

	assert.Equal(t, Bounds{Min: day(0), Max: day(19)}, bounds)
}

func TestFilter_DropsAbsentValues(t *testing.T) {
	frame, _ := Filter(testDataset(), Params{
		Countries: []string{"Peru"},
		Metric:    MetricNewCases,
	})

	require.Equal(t, 2, frame.Len())
	assert.Equal(t, 1.0, frame.Rows[0].Value)
	assert.Equal(t, 3.0, frame.Rows[1].Value)
}

func TestFilter_UnavailableMetricDropsEverything(t *testing.T) {
	frame, bounds := Filter(testDataset(), Params{
		Countries: []string{"France"},
		Metric:    MetricNewVaccinations,
	})

	assert.Empty(t, frame.Rows)
	assert.False(t, bounds.IsZero())
}

func TestFilter_EmptySelection(t *testing.T) {
	frame, bounds := Filter(testDataset(), Params{Metric: MetricNewCases})

	assert.NotNil(t, frame.Rows)
	assert.Empty(t, frame.Rows)
	assert.True(t, bounds.IsZero())
}

func TestFilter_NilDataset(t *testing.T) {
	frame, bounds := Filter(nil, Params{Countries: []string{"India"}, Metric: MetricNewCases})
	assert.Empty(t, frame.Rows)
	assert.True(t, bounds.IsZero())
}

func TestFilter_SmoothingTrailingMean(t *testing.T) {
	frame, _ := Filter(testDataset(), Params{
		Countries: []string{"India"},
		Metric:    MetricNewCases,
		Smooth:    true,
	})

	// 20 observations, the first 6 have no full window.
	require.Equal(t, 14, frame.Len())
	assert.True(t, frame.Smoothed)

	first := frame.Rows[0]
	assert.Equal(t, day(6), first.Date)
	assert.InDelta(t, 4.0, first.Value, 1e-9) // mean(1..7)
	require.NotNil(t, first.Raw)
	assert.Equal(t, 7.0, *first.Raw)

	last := frame.Rows[len(frame.Rows)-1]
	assert.InDelta(t, 17.0, last.Value, 1e-9) // mean(14..20)
}

func TestFilter_SmoothingPerLocation(t *testing.T) {
	obs := make([]Observation, 0)
	india := series("India", "IND", ramp(10)...)
	france := series("France", "FRA", constant(10, 2)...)
	// Interleave rows so grouping cannot rely on contiguity.
	for i := range india {
		obs = append(obs, india[i], france[i])
	}

	frame, _ := Filter(&Dataset{Observations: obs}, Params{
		Countries: []string{"India", "France"},
		Metric:    MetricNewCases,
		Smooth:    true,
	})

	counts := map[string]int{}
	for _, r := range frame.Rows {
		counts[r.Location]++
		if r.Location == "France" {
			assert.InDelta(t, 2.0, r.Value, 1e-9)
		}
	}
	assert.Equal(t, 4, counts["India"])
	assert.Equal(t, 4, counts["France"])
}

func TestFilter_SmoothingAtMostWindowMinusOneFewerRows(t *testing.T) {
	ds := testDataset()
	countries := []string{"India", "France", "Peru"}

	raw, _ := Filter(ds, Params{Countries: countries, Metric: MetricNewDeaths})
	smoothed, _ := Filter(ds, Params{Countries: countries, Metric: MetricNewDeaths, Smooth: true})

	rawCounts, smoothCounts := map[string]int{}, map[string]int{}
	for _, r := range raw.Rows {
		rawCounts[r.Location]++
	}
	for _, r := range smoothed.Rows {
		smoothCounts[r.Location]++
	}
	for _, c := range countries {
		assert.LessOrEqual(t, smoothCounts[c], rawCounts[c], c)
		assert.LessOrEqual(t, rawCounts[c]-smoothCounts[c], RollingWindow-1, c)
	}
}

func TestFilter_SmoothingWindowWithGapYieldsNothing(t *testing.T) {
	values := ramp(9)
	values[7] = nil
	frame, _ := Filter(&Dataset{Observations: series("Chile", "CHL", values...)}, Params{
		Countries: []string{"Chile"},
		Metric:    MetricNewCases,
		Smooth:    true,
	})

	// Only index 6 has a complete window; 7 and 8 include the gap.
	require.Equal(t, 1, frame.Len())
	assert.Equal(t, day(6), frame.Rows[0].Date)
}

func TestRollingMean_ConstantSeriesIsFixedPoint(t *testing.T) {
	obs := series("Chile", "CHL", constant(15, 3)...)
	values := make([]*float64, len(obs))
	for i, o := range obs {
		values[i] = o.NewCases
	}

	once := RollingMean(obs, values, RollingWindow)
	twice := RollingMean(obs, once, RollingWindow)

	for i, v := range twice {
		if v == nil {
			continue
		}
		assert.Equal(t, 3.0, *v, "index %d", i)
		assert.Equal(t, *once[i], *v)
	}
}

func TestFilter_DoesNotMutateDataset(t *testing.T) {
	ds := testDataset()
	before := *ds.Observations[10].NewCases

	Filter(ds, Params{Countries: []string{"India"}, Metric: MetricNewCases, Smooth: true})

	assert.Equal(t, before, *ds.Observations[10].NewCases)
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"valid", Params{Metric: MetricNewDeaths}, false},
		{"unknown metric", Params{Metric: "total_cases"}, true},
		{"inverted range", Params{Metric: MetricNewCases, Start: day(5), End: day(1)}, true},
		{"open start", Params{Metric: MetricNewCases, End: day(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParams)
				return
			}
			require.NoError(t, err)
		})
	}
}
