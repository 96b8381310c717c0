package epidata

import (
	"context"
	"fmt"
	"math"
	"sort"
)

const (
	// ForecastHorizon is the number of daily periods predicted past the last observation.
	ForecastHorizon = 30

	// MinForecastObservations is the shortest history a forecast is attempted on.
	MinForecastObservations = 30

	// InsufficientDataWarning is shown instead of a forecast for short histories.
	InsufficientDataWarning = "Not enough data to forecast. Try selecting a longer date range or different country."
)

// ForecastState is the outcome of a forecast request.
type ForecastState string

const (
	ForecastIdle       ForecastState = "idle"
	ForecastForecasted ForecastState = "forecasted"
	ForecastWarned     ForecastState = "warned"
)

// ForecastResult is either a 30-period prediction or a warning.
type ForecastResult struct {
	Country      string        `json:"country"`
	Metric       Metric        `json:"metric"`
	State        ForecastState `json:"state"`
	Warning      string        `json:"warning,omitempty"`
	Model        string        `json:"model,omitempty"`
	Observations int           `json:"observations"`
	Points       []Point       `json:"points,omitempty"`
}

// SeriesFor reshapes one country's rows into date-sorted (timestamp, value) pairs.
func SeriesFor(frame Frame, country string) []Point {
	points := make([]Point, 0)
	for _, r := range frame.Rows {
		if r.Location != country || math.IsNaN(r.Value) {
			continue
		}
		points = append(points, Point{Date: r.Date, Value: r.Value})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points
}

// Forecast fits the forecaster on the country's series and predicts
// ForecastHorizon daily periods past the last observation. Histories shorter
// than MinForecastObservations produce a warning result instead. Collaborator
// failures are returned as errors.
func Forecast(ctx context.Context, frame Frame, country string, f Forecaster) (ForecastResult, error) {
	history := SeriesFor(frame, country)
	result := ForecastResult{
		Country:      country,
		Metric:       frame.Metric,
		State:        ForecastIdle,
		Observations: len(history),
	}

	if len(history) < MinForecastObservations {
		result.State = ForecastWarned
		result.Warning = InsufficientDataWarning
		return result, nil
	}

	pred, err := f.Predict(ctx, history, ForecastHorizon)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %v", ErrForecast, f.Name(), err)
	}
	if len(pred.Values) != ForecastHorizon {
		return result, fmt.Errorf("%w: %s returned %d values, want %d",
			ErrForecast, f.Name(), len(pred.Values), ForecastHorizon)
	}

	last := history[len(history)-1].Date
	result.Points = make([]Point, ForecastHorizon)
	for h, v := range pred.Values {
		result.Points[h] = Point{Date: last.AddDate(0, 0, h+1), Value: v}
	}
	result.Model = pred.Model
	result.State = ForecastForecasted
	return result, nil
}
