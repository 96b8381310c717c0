package chart

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes cfg as a standalone ECharts HTML page.
func RenderHTML(w io.Writer, cfg Config) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: cfg.Title}),
		charts.WithTitleOpts(opts.Title{Title: cfg.Title}),
		charts.WithXAxisOpts(opts.XAxis{Name: cfg.XAxis, Type: "time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: cfg.YAxis}),
	)

	for _, s := range cfg.Series {
		data := make([]opts.LineData, 0, len(s.Data))
		for _, p := range s.Data {
			// time axes take [x, y] pairs
			data = append(data, opts.LineData{Value: []interface{}{p.Date, p.Value}})
		}
		line.AddSeries(s.Name, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: s.Color}))
	}

	return line.Render(w)
}
