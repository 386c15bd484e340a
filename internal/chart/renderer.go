// Package chart renders the report charts attached to posts.
package chart

import (
	"bytes"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"gridpulse/internal/domain/model"
	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

const moduleName = "chart"

// Renderer produces PNG charts for the report posts.
type Renderer interface {
	// RenderLoad draws the 24-hour load chart.
	RenderLoad(samples []model.LoadSample) ([]byte, error)
	// RenderNuclear draws load against estimated nuclear generation.
	RenderNuclear(joined []model.JoinedRow) ([]byte, error)
}

var (
	loadColor    = drawing.Color{R: 0x40, G: 0xE0, B: 0xD0, A: 255} // turquoise
	demandColor  = drawing.Color{R: 0xFF, G: 0x7F, B: 0x50, A: 255} // coral
	nuclearColor = drawing.Color{R: 0x00, G: 0x00, B: 0x80, A: 255} // navy
)

// PNGRenderer renders charts in the display time zone.
type PNGRenderer struct {
	tz *time.Location
}

// NewPNGRenderer creates a chart renderer reporting in the given time zone.
func NewPNGRenderer(tz *time.Location) *PNGRenderer {
	return &PNGRenderer{tz: tz}
}

func (r *PNGRenderer) RenderLoad(samples []model.LoadSample) ([]byte, error) {
	if len(samples) < 2 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "not enough load data to chart")
	}

	xs := make([]time.Time, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.IntervalStartUTC.In(r.tz)
		ys[i] = s.LoadMW
	}

	graph := chart.Chart{
		Title:      "ComEd Load - Last 24 Hours",
		Width:      1200,
		Height:     800,
		Background: chart.Style{FillColor: drawing.ColorWhite, Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		Canvas:     chart.Style{FillColor: drawing.ColorWhite},
		XAxis: chart.XAxis{
			ValueFormatter: r.clockFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Load (MW)",
			ValueFormatter: func(v interface{}) string { return chart.FloatValueFormatterWithFormat(v, "%.0f") },
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Load",
				XValues: xs,
				YValues: ys,
				Style:   chart.Style{StrokeColor: loadColor, StrokeWidth: 2.5},
			},
			r.extremaSeries(xs, ys),
		},
	}

	return render(&graph)
}

func (r *PNGRenderer) RenderNuclear(joined []model.JoinedRow) ([]byte, error) {
	if len(joined) < 2 {
		return nil, errs.Newf(errs.KindAvailability, moduleName, "not enough joined data to chart")
	}

	xs := make([]time.Time, len(joined))
	load := make([]float64, len(joined))
	nuclear := make([]float64, len(joined))
	for i, row := range joined {
		xs[i] = row.Timestamp.In(r.tz)
		load[i] = row.LoadMW
		nuclear[i] = row.EstimatedMW
	}

	graph := chart.Chart{
		Title:      "Nuclear Generation vs Electricity Demand",
		Width:      1200,
		Height:     800,
		Background: chart.Style{FillColor: drawing.ColorWhite, Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		Canvas:     chart.Style{FillColor: drawing.ColorWhite},
		XAxis: chart.XAxis{
			ValueFormatter: r.clockFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "MW",
			ValueFormatter: func(v interface{}) string { return chart.FloatValueFormatterWithFormat(v, "%.0f") },
			Range:          &chart.ContinuousRange{Min: 0, Max: maxOf(load, nuclear) + 2000},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Load",
				XValues: xs,
				YValues: load,
				Style:   chart.Style{StrokeColor: demandColor, StrokeWidth: 2},
			},
			chart.TimeSeries{
				Name:    "Nuclear Generation",
				XValues: xs,
				YValues: nuclear,
				Style:   chart.Style{StrokeColor: nuclearColor, StrokeWidth: 2},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return render(&graph)
}

// extremaSeries marks the peak and trough of the load series.
func (r *PNGRenderer) extremaSeries(xs []time.Time, ys []float64) chart.Series {
	maxIdx, minIdx := 0, 0
	for i, v := range ys {
		if v > ys[maxIdx] {
			maxIdx = i
		}
		if v < ys[minIdx] {
			minIdx = i
		}
	}
	return chart.AnnotationSeries{
		Annotations: []chart.Value2{
			{XValue: chart.TimeToFloat64(xs[maxIdx]), YValue: ys[maxIdx], Label: "Peak"},
			{XValue: chart.TimeToFloat64(xs[minIdx]), YValue: ys[minIdx], Label: "Low"},
		},
	}
}

func (r *PNGRenderer) clockFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	return chart.TimeFromFloat64(f).In(r.tz).Format("3:04PM")
}

func render(graph *chart.Chart) ([]byte, error) {
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, errs.InternalError(moduleName, "failed to render chart", err)
	}
	logger.Debugf("Rendered chart (%d bytes).", buf.Len())
	return buf.Bytes(), nil
}

func maxOf(series ...[]float64) float64 {
	m := 0.0
	for _, s := range series {
		for _, v := range s {
			if v > m {
				m = v
			}
		}
	}
	return m
}
