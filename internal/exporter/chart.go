package exporter

import (
	"errors"
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"salescli/pkg/contracts/domain"
)

// Chart types the reporter can render
const (
	ChartTrend        = "trend"
	ChartCategory     = "category"
	ChartDistribution = "distribution"
	ChartGrowth       = "growth"
)

// Image formats for charts
const (
	ImagePNG = "png"
	ImageSVG = "svg"
)

const (
	chartWidth  = 1200
	chartHeight = 600
)

// ErrNoChartData is returned when a chart has nothing to plot
var ErrNoChartData = errors.New("no data to plot")

// chartPalette is shared by all renderers
var chartPalette = []string{
	"4F46E5", "10B981", "F59E0B", "EF4444", "8B5CF6",
	"06B6D4", "EC4899", "84CC16", "F97316", "6366F1",
}

func paletteColor(i int) drawing.Color {
	return drawing.ColorFromHex(chartPalette[i%len(chartPalette)])
}

// ChartRenderer draws one chart type from a metric set
type ChartRenderer func(w io.Writer, m *domain.MetricSet, opts ChartOptions) error

// ChartOptions carries per-chart settings
type ChartOptions struct {
	Format        string
	TopCategories int
}

func rendererFor(format string) (chart.RendererProvider, error) {
	switch format {
	case ImagePNG, "":
		return chart.PNG, nil
	case ImageSVG:
		return chart.SVG, nil
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
}

// chartRenderers maps chart types to their renderer
var chartRenderers = map[string]ChartRenderer{
	ChartTrend:        renderTrendChart,
	ChartCategory:     renderCategoryChart,
	ChartDistribution: renderDistributionChart,
	ChartGrowth:       renderGrowthChart,
}

// valueRange pads [lo, hi] so that it always includes zero and never has
// a zero delta.
func valueRange(values []float64) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.05
	if lo < 0 {
		lo -= pad
	}
	return &chart.ContinuousRange{Min: lo, Max: hi + pad}
}

func renderTrendChart(w io.Writer, m *domain.MetricSet, opts ChartOptions) error {
	if len(m.Trend) == 0 {
		return ErrNoChartData
	}
	provider, err := rendererFor(opts.Format)
	if err != nil {
		return err
	}

	xs := make([]float64, len(m.Trend))
	ys := make([]float64, len(m.Trend))
	ticks := make([]chart.Tick, len(m.Trend))
	for i, p := range m.Trend {
		xs[i] = float64(i)
		ys[i] = p.Total
		ticks[i] = chart.Tick{Value: float64(i), Label: p.Period.Label()}
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("Sales Trend by %s", m.Granularity),
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "Period",
			Ticks: thinTicks(ticks, 24),
			Range: &chart.ContinuousRange{Min: -0.5, Max: float64(len(xs)-1) + 0.5},
			Style: chart.Style{
				TextRotationDegrees: 45,
			},
		},
		YAxis: chart.YAxis{
			Name:           "Total Sales",
			Range:          valueRange(ys),
			ValueFormatter: chart.FloatValueFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Total Sales",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: paletteColor(0),
					StrokeWidth: 2.5,
					DotColor:    paletteColor(0),
					DotWidth:    4,
				},
			},
		},
	}
	return graph.Render(provider, w)
}

// thinTicks keeps at most max labelled ticks so long trends stay legible
func thinTicks(ticks []chart.Tick, max int) []chart.Tick {
	if len(ticks) <= max {
		return ticks
	}
	step := int(math.Ceil(float64(len(ticks)) / float64(max)))
	out := make([]chart.Tick, 0, max+1)
	for i := 0; i < len(ticks); i += step {
		out = append(out, ticks[i])
	}
	return out
}

func barChart(title string, bars []chart.Value, values []float64) chart.BarChart {
	width := chartWidth
	barWidth := (width-160)/len(bars) - 8
	if barWidth < 6 {
		barWidth = 6
	}
	if barWidth > 80 {
		barWidth = 80
	}
	return chart.BarChart{
		Title:  title,
		Width:  width,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 60},
		},
		BarWidth:   barWidth,
		BarSpacing: 8,
		XAxis: chart.Style{
			TextRotationDegrees: 45,
		},
		YAxis: chart.YAxis{
			Range:          valueRange(values),
			ValueFormatter: chart.FloatValueFormatter,
		},
		Bars: bars,
	}
}

func renderCategoryChart(w io.Writer, m *domain.MetricSet, opts ChartOptions) error {
	if len(m.Categories) == 0 {
		return fmt.Errorf("%w: no category column", ErrNoChartData)
	}
	provider, err := rendererFor(opts.Format)
	if err != nil {
		return err
	}

	top := m.Categories
	if opts.TopCategories > 0 && len(top) > opts.TopCategories {
		top = top[:opts.TopCategories]
	}
	bars := make([]chart.Value, len(top))
	values := make([]float64, len(top))
	for i, c := range top {
		values[i] = c.Total
		bars[i] = chart.Value{
			Label: c.Category,
			Value: c.Total,
			Style: chart.Style{FillColor: paletteColor(i), StrokeColor: paletteColor(i)},
		}
	}

	graph := barChart(fmt.Sprintf("Top %d Categories by Sales", len(top)), bars, values)
	return graph.Render(provider, w)
}

func renderDistributionChart(w io.Writer, m *domain.MetricSet, opts ChartOptions) error {
	if len(m.Distribution) == 0 {
		return ErrNoChartData
	}
	provider, err := rendererFor(opts.Format)
	if err != nil {
		return err
	}

	bars := make([]chart.Value, len(m.Distribution))
	values := make([]float64, len(m.Distribution))
	for i, b := range m.Distribution {
		values[i] = float64(b.Count)
		label := ""
		if i%5 == 0 || len(m.Distribution) <= 10 {
			label = formatFloat(b.Lower)
		}
		bars[i] = chart.Value{
			Label: label,
			Value: float64(b.Count),
			Style: chart.Style{FillColor: paletteColor(5), StrokeColor: paletteColor(5)},
		}
	}

	graph := barChart("Order Value Distribution", bars, values)
	graph.BarSpacing = 2
	graph.BarWidth = (chartWidth-160)/len(bars) - 2
	if graph.BarWidth < 3 {
		graph.BarWidth = 3
	}
	return graph.Render(provider, w)
}

func renderGrowthChart(w io.Writer, m *domain.MetricSet, opts ChartOptions) error {
	var (
		bars   []chart.Value
		values []float64
	)
	for _, g := range m.Growth {
		if g.Rate == nil {
			continue
		}
		pct := *g.Rate * 100
		color := paletteColor(1)
		if pct < 0 {
			color = paletteColor(3)
		}
		values = append(values, pct)
		bars = append(bars, chart.Value{
			Label: g.Period.Label(),
			Value: pct,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
	}
	if len(bars) == 0 {
		return fmt.Errorf("%w: growth is undefined for every period", ErrNoChartData)
	}
	provider, err := rendererFor(opts.Format)
	if err != nil {
		return err
	}

	graph := barChart(fmt.Sprintf("Sales Growth by %s (%%)", m.Granularity), bars, values)
	graph.UseBaseValue = true
	graph.BaseValue = 0
	return graph.Render(provider, w)
}
