// Package forecast adapts the goarima Auto-ARIMA library to the epidata.Forecaster contract.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sartorproj/goarima/autoarima"
	"github.com/sartorproj/goarima/timeseries"

	"github.com/i474232898/covid-data-explorer/internal/epidata"
)

var errNoModel = errors.New("no candidate model could be fitted")

// ARIMAForecaster selects and fits an ARIMA (or seasonal ARIMA) model per request.
type ARIMAForecaster struct {
	seasonalPeriod int
	logger         *slog.Logger
}

// NewARIMAForecaster creates a forecaster. A seasonalPeriod > 1 enables the
// seasonal search with that period (7 for weekly reporting cycles).
func NewARIMAForecaster(seasonalPeriod int, logger *slog.Logger) *ARIMAForecaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &ARIMAForecaster{seasonalPeriod: seasonalPeriod, logger: logger}
}

func (f *ARIMAForecaster) Name() string {
	return "auto-arima"
}

// Predict fits a model on history and returns horizon point predictions.
// Constant histories have no model to select and are rejected.
func (f *ARIMAForecaster) Predict(ctx context.Context, history []epidata.Point, horizon int) (pred epidata.Prediction, err error) {
	if err := ctx.Err(); err != nil {
		return epidata.Prediction{}, err
	}
	if horizon < 1 {
		return epidata.Prediction{}, fmt.Errorf("horizon must be at least 1, got %d", horizon)
	}

	timestamps := make([]time.Time, len(history))
	values := make([]float64, len(history))
	for i, p := range history {
		timestamps[i] = p.Date
		values[i] = p.Value
	}
	series, err := timeseries.NewWithTimestamps(timestamps, values)
	if err != nil {
		return epidata.Prediction{}, err
	}

	if series.Variance() == 0 {
		return epidata.Prediction{}, fmt.Errorf("%w: series is constant", errNoModel)
	}

	// goarima can dereference a nil candidate model on degenerate input.
	defer func() {
		if r := recover(); r != nil {
			pred = epidata.Prediction{}
			err = fmt.Errorf("%w: %v", errNoModel, r)
		}
	}()

	start := time.Now()
	result, err := autoarima.AutoARIMA(series, f.config())
	if err != nil {
		return epidata.Prediction{}, fmt.Errorf("model selection: %w", err)
	}
	if result == nil || (result.Model == nil && result.SeasonalModel == nil) {
		return epidata.Prediction{}, errNoModel
	}

	predictions, err := result.Predict(horizon)
	if err != nil {
		return epidata.Prediction{}, fmt.Errorf("predict: %w", err)
	}
	for i, v := range predictions {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return epidata.Prediction{}, fmt.Errorf("non-finite prediction at step %d", i+1)
		}
	}

	model := describe(result)
	f.logger.Debug("forecast model fitted",
		"model", model,
		"observations", len(history),
		"models_evaluated", result.ModelsEvaluated,
		"duration", time.Since(start),
	)

	return epidata.Prediction{Model: model, Values: predictions}, nil
}

func (f *ARIMAForecaster) config() *autoarima.Config {
	cfg := autoarima.DefaultConfig()
	cfg.MaxP = 3
	cfg.MaxQ = 3
	if f.seasonalPeriod > 1 {
		cfg.Seasonal = true
		cfg.SeasonalM = f.seasonalPeriod
		cfg.MaxSP = 1
		cfg.MaxSQ = 1
	}
	return cfg
}

func describe(r *autoarima.Result) string {
	if r.IsSeasonal {
		return fmt.Sprintf("ARIMA(%d,%d,%d)(%d,%d,%d)[%d]", r.P, r.D, r.Q, r.SP, r.SD, r.SQ, r.M)
	}
	return fmt.Sprintf("ARIMA(%d,%d,%d)", r.P, r.D, r.Q)
}
