package epidata

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricLabel(t *testing.T) {
	assert.Equal(t, "New Cases", MetricNewCases.Label())
	assert.Equal(t, "New Deaths", MetricNewDeaths.Label())
	assert.Equal(t, "New Vaccinations", MetricNewVaccinations.Label())
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric(" new_deaths ")
	require.NoError(t, err)
	assert.Equal(t, MetricNewDeaths, m)

	_, err = ParseMetric("total_cases")
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestDatasetLocationsSortedUnique(t *testing.T) {
	assert.Equal(t, []string{"France", "India", "Peru"}, testDataset().Locations())

	var nilDS *Dataset
	assert.Empty(t, nilDS.Locations())
}

func TestFrameLocationsFirstAppearance(t *testing.T) {
	frame := Frame{Rows: []Row{{Location: "Peru"}, {Location: "India"}, {Location: "Peru"}}}
	assert.Equal(t, []string{"Peru", "India"}, frame.Locations())
}

func TestBoundsJSON(t *testing.T) {
	empty, err := json.Marshal(Bounds{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(empty))

	d := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	full, err := json.Marshal(Bounds{Min: d, Max: d.AddDate(0, 0, 2)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"min":"2021-03-01T00:00:00Z","max":"2021-03-03T00:00:00Z"}`, string(full))
}
