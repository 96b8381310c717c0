package epidata

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLoad is returned when the dataset cannot be fetched or parsed.
	ErrLoad = errors.New("dataset load failed")

	// ErrSchema is returned when the upstream table lacks a required column.
	ErrSchema = errors.New("dataset schema mismatch")

	// ErrInvalidParams is returned for unusable filter parameters.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrForecast is returned when the forecasting collaborator produces no usable prediction.
	ErrForecast = errors.New("forecast failed")
)

// Source abstracts the upstream dataset (e.g. the OWID CSV export).
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Observation, error)
}

// Point is a single (timestamp, value) pair of a univariate series.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Prediction is the forecasting collaborator's output: point predictions
// for the requested number of future periods.
type Prediction struct {
	Model  string
	Values []float64
}

// Forecaster is the opaque point-forecast collaborator. History is sorted by
// date and contains no absent values.
type Forecaster interface {
	Name() string
	Predict(ctx context.Context, history []Point, horizon int) (Prediction, error)
}
