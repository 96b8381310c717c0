package forecast

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/covid-data-explorer/internal/epidata"
)

func history(n int) []epidata.Point {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]epidata.Point, n)
	for i := range points {
		// trend plus a weekly wiggle
		points[i] = epidata.Point{
			Date:  start.AddDate(0, 0, i),
			Value: 1000 + 5*float64(i) + 40*math.Sin(2*math.Pi*float64(i)/7),
		}
	}
	return points
}

func testForecaster(period int) *ARIMAForecaster {
	return NewARIMAForecaster(period, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestARIMAForecaster_PredictsHorizon(t *testing.T) {
	f := testForecaster(0)

	pred, err := f.Predict(context.Background(), history(90), epidata.ForecastHorizon)
	require.NoError(t, err)

	assert.Len(t, pred.Values, epidata.ForecastHorizon)
	assert.True(t, strings.HasPrefix(pred.Model, "ARIMA("), pred.Model)
	for _, v := range pred.Values {
		assert.False(t, math.IsNaN(v))
	}
}

func TestARIMAForecaster_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testForecaster(0).Predict(ctx, history(60), 5)
	require.ErrorIs(t, err, context.Canceled)
}

func TestARIMAForecaster_InvalidHorizon(t *testing.T) {
	_, err := testForecaster(0).Predict(context.Background(), history(60), 0)
	require.Error(t, err)
}

func TestARIMAForecaster_SeasonalConfig(t *testing.T) {
	cfg := testForecaster(7).config()
	assert.True(t, cfg.Seasonal)
	assert.Equal(t, 7, cfg.SeasonalM)

	cfg = testForecaster(0).config()
	assert.False(t, cfg.Seasonal)
}

func TestARIMAForecaster_Name(t *testing.T) {
	assert.Equal(t, "auto-arima", testForecaster(0).Name())
}

func flatHistory(n int, value float64) []epidata.Point {
	points := history(n)
	for i := range points {
		points[i].Value = value
	}
	return points
}

func TestARIMAForecaster_ConstantSeries(t *testing.T) {
	for _, period := range []int{0, 7} {
		var err error
		require.NotPanics(t, func() {
			_, err = testForecaster(period).Predict(context.Background(), flatHistory(60, 42), epidata.ForecastHorizon)
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, errNoModel)
	}
}

func TestARIMAForecaster_ZeroSeries(t *testing.T) {
	var err error
	require.NotPanics(t, func() {
		_, err = testForecaster(0).Predict(context.Background(), flatHistory(60, 0), epidata.ForecastHorizon)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoModel)
}
