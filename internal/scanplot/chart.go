package scanplot

import (
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/cybot/internal/scan"
)

// AssetsHost serves the echarts javascript for rendered pages.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// RenderChart writes an HTML line chart of a sweep to w. filtered may be
// empty.
func RenderChart(w io.Writer, subtitle string, raw, filtered scan.Sequence) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "cybot sweep", Width: "100%", Height: "600px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Last sweep", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Bearing (°)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Range (cm)", NameLocation: "middle", NameGap: 40}),
	)

	bearings := make([]string, len(raw))
	for i, s := range raw {
		bearings[i] = strconv.Itoa(s.Bearing)
	}
	line.SetXAxis(bearings)
	for _, s := range sweepSeries(raw, filtered) {
		data := make([]opts.LineData, len(s.seq))
		for i, sample := range s.seq {
			data[i] = opts.LineData{Value: s.value(sample)}
		}
		line.AddSeries(s.name, data)
	}
	return line.Render(w)
}
