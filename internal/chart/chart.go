// Package chart turns filtered frames and forecasts into render-ready line chart configs.
package chart

import (
	"fmt"

	"github.com/i474232898/covid-data-explorer/internal/epidata"
)

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// Point is a single (date, value) sample.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Series is one line of the chart.
type Series struct {
	Name  string  `json:"name"`
	Color string  `json:"color"`
	Data  []Point `json:"data"`
}

// Config is a render-ready line chart.
type Config struct {
	ChartType   string   `json:"chartType"`
	Title       string   `json:"title"`
	XAxis       string   `json:"xAxis"`
	YAxis       string   `json:"yAxis"`
	LegendTitle string   `json:"legendTitle,omitempty"`
	ShowLegend  bool     `json:"showLegend"`
	Series      []Series `json:"series"`
}

// TimeSeries builds one line per location, in order of first appearance.
func TimeSeries(frame epidata.Frame) Config {
	label := frame.Metric.Label()
	cfg := Config{
		ChartType:   "line",
		Title:       fmt.Sprintf("%s Over Time", label),
		XAxis:       "Date",
		YAxis:       label,
		LegendTitle: "Country",
		ShowLegend:  true,
		Series:      []Series{},
	}

	index := make(map[string]int)
	for _, r := range frame.Rows {
		i, ok := index[r.Location]
		if !ok {
			i = len(cfg.Series)
			index[r.Location] = i
			cfg.Series = append(cfg.Series, Series{
				Name:  r.Location,
				Color: defaultColors[i%len(defaultColors)],
				Data:  []Point{},
			})
		}
		cfg.Series[i].Data = append(cfg.Series[i].Data, Point{
			Date:  r.Date.Format(epidata.DateLayout),
			Value: r.Value,
		})
	}

	return cfg
}

// Forecast builds the single-line chart of a forecast's predicted values.
// It returns nil unless the forecast was produced.
func Forecast(res epidata.ForecastResult) *Config {
	if res.State != epidata.ForecastForecasted {
		return nil
	}

	points := make([]Point, 0, len(res.Points))
	for _, p := range res.Points {
		points = append(points, Point{Date: p.Date.Format(epidata.DateLayout), Value: p.Value})
	}

	return &Config{
		ChartType: "line",
		Title:     fmt.Sprintf("Forecast for %s (%s)", res.Country, res.Metric.Label()),
		XAxis:     "Date",
		YAxis:     "Predicted Value",
		Series: []Series{{
			Name:  res.Country,
			Color: defaultColors[0],
			Data:  points,
		}},
	}
}
