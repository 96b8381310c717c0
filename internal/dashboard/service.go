// Package dashboard runs the explore pipeline (filter, summary, chart, export
// and forecast) for one set of user controls.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/i474232898/covid-data-explorer/internal/chart"
	"github.com/i474232898/covid-data-explorer/internal/common"
	"github.com/i474232898/covid-data-explorer/internal/epidata"
	"github.com/i474232898/covid-data-explorer/internal/observability"
)

// Loader yields the current dataset snapshot.
type Loader interface {
	Load(ctx context.Context) (*epidata.Dataset, error)
}

// Controls are the user-selected inputs of one dashboard run.
type Controls struct {
	Countries []string       `json:"countries"`
	Metric    epidata.Metric `json:"metric"`
	Start     time.Time      `json:"start,omitzero"`
	End       time.Time      `json:"end,omitzero"`
	Smooth    bool           `json:"smooth"`
	Forecast  bool           `json:"forecast"`
}

// DefaultControls returns the initial selection: the given countries, new
// cases, the full date range, no smoothing and no forecast.
func DefaultControls(countries []string) Controls {
	return Controls{
		Countries: append([]string{}, countries...),
		Metric:    epidata.MetricNewCases,
	}
}

func (c Controls) params() epidata.Params {
	return epidata.Params{
		Countries: c.Countries,
		Metric:    c.Metric,
		Start:     c.Start,
		End:       c.End,
		Smooth:    c.Smooth,
	}
}

// ForecastView is a forecast outcome plus its chart, when one was produced.
type ForecastView struct {
	epidata.ForecastResult
	Chart *chart.Config `json:"chart,omitempty"`
}

// View is everything the dashboard shows for one set of controls.
type View struct {
	DatasetID  string          `json:"datasetId"`
	FetchedAt  time.Time       `json:"fetchedAt"`
	Controls   Controls        `json:"controls"`
	Available  []string        `json:"availableCountries"`
	Bounds     epidata.Bounds  `json:"bounds"`
	Frame      epidata.Frame   `json:"frame"`
	Summary    epidata.Summary `json:"summary"`
	Chart      chart.Config    `json:"chart"`
	Export     []byte          `json:"-"`
	ExportName string          `json:"exportName"`
	Forecast   *ForecastView   `json:"forecast,omitempty"`
}

// Service wires the dataset loader and forecaster into the explore pipeline.
type Service struct {
	loader     Loader
	forecaster epidata.Forecaster
	defaults   Controls
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewService creates a Service. A nil metrics or logger falls back to
// unregistered metrics and the default logger.
func NewService(loader Loader, forecaster epidata.Forecaster, defaults Controls, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if metrics == nil {
		metrics = observability.NewMetricsWithRegistry(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.Metric == "" {
		defaults.Metric = epidata.MetricNewCases
	}
	return &Service{
		loader:     loader,
		forecaster: forecaster,
		defaults:   defaults,
		metrics:    metrics,
		logger:     logger,
	}
}

// Defaults returns a copy of the initial controls.
func (s *Service) Defaults() Controls {
	d := s.defaults
	d.Countries = append([]string{}, s.defaults.Countries...)
	return d
}

// Countries returns the sorted list of selectable locations.
func (s *Service) Countries(ctx context.Context) ([]string, error) {
	ds, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Locations(), nil
}

// Bounds returns the available date range of the given countries.
func (s *Service) Bounds(ctx context.Context, countries []string) (epidata.Bounds, error) {
	ds, err := s.loader.Load(ctx)
	if err != nil {
		return epidata.Bounds{}, err
	}
	_, bounds := epidata.Filter(ds, epidata.Params{
		Countries: common.Dedupe(countries),
		Metric:    s.defaults.Metric,
	})
	return bounds, nil
}

// Run executes the pipeline for ctrl. An empty country selection yields an
// empty view, not an error. The forecast runs only when requested for exactly
// one country.
func (s *Service) Run(ctx context.Context, ctrl Controls) (View, error) {
	ctrl = s.normalize(ctrl)
	params := ctrl.params()
	if err := params.Validate(); err != nil {
		return View{}, err
	}

	ds, err := s.loader.Load(ctx)
	if err != nil {
		return View{}, err
	}

	start := time.Now()
	defer func() {
		s.metrics.PipelineRuns.Inc()
		s.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	frame, bounds := epidata.Filter(ds, params)

	export, err := epidata.ExportCSV(frame)
	if err != nil {
		return View{}, fmt.Errorf("export: %w", err)
	}

	view := View{
		DatasetID:  ds.ID,
		FetchedAt:  ds.FetchedAt,
		Controls:   ctrl,
		Available:  ds.Locations(),
		Bounds:     bounds,
		Frame:      frame,
		Summary:    epidata.Summarize(frame, ctrl.Countries),
		Chart:      chart.TimeSeries(frame),
		Export:     export,
		ExportName: epidata.ExportFileName(ctrl.Metric),
	}

	if ctrl.Forecast && len(ctrl.Countries) == 1 {
		fv, err := s.forecast(ctx, frame, ctrl.Countries[0])
		if err != nil {
			return View{}, err
		}
		view.Forecast = &fv
	}

	s.logger.Debug("dashboard run",
		"dataset_id", ds.ID,
		"countries", len(ctrl.Countries),
		"countries_with_data", len(frame.Locations()),
		"metric", ctrl.Metric,
		"rows", frame.Len(),
		"smooth", ctrl.Smooth,
		"forecast", view.Forecast != nil,
	)

	return view, nil
}

// Forecast runs the filter for ctrl and forecasts the given country only.
func (s *Service) Forecast(ctx context.Context, country string, ctrl Controls) (ForecastView, error) {
	ctrl.Countries = []string{country}
	ctrl = s.normalize(ctrl)
	params := ctrl.params()
	if err := params.Validate(); err != nil {
		return ForecastView{}, err
	}

	ds, err := s.loader.Load(ctx)
	if err != nil {
		return ForecastView{}, err
	}

	frame, _ := epidata.Filter(ds, params)
	return s.forecast(ctx, frame, country)
}

func (s *Service) forecast(ctx context.Context, frame epidata.Frame, country string) (ForecastView, error) {
	if s.forecaster == nil {
		s.metrics.Forecasts.WithLabelValues("error").Inc()
		return ForecastView{}, fmt.Errorf("%w: no forecaster configured", epidata.ErrForecast)
	}

	res, err := epidata.Forecast(ctx, frame, country, s.forecaster)
	if err != nil {
		s.metrics.Forecasts.WithLabelValues("error").Inc()
		s.logger.Error("forecast failed", "country", country, "metric", frame.Metric, "error", err)
		return ForecastView{}, err
	}
	s.metrics.Forecasts.WithLabelValues(string(res.State)).Inc()

	return ForecastView{ForecastResult: res, Chart: chart.Forecast(res)}, nil
}

func (s *Service) normalize(ctrl Controls) Controls {
	ctrl.Countries = common.Dedupe(ctrl.Countries)
	if ctrl.Metric == "" {
		ctrl.Metric = s.defaults.Metric
	}
	return ctrl
}
