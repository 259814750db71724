package metricviz

import (
	"fmt"
	"strings"
)

// MetricFrame holds named numeric columns sharing the same row count, e.g. the
// local metrics of a session or the columns of a session dataframe. Time axes
// ("frames", "opt_steps", "total_t") are stored as regular columns.
type MetricFrame map[string][]float64

// TrialMetrics holds the per-session series of a trial, stacked per metric
// name, plus the shared time axes. Metrics computed across sessions (e.g.
// consistencies) carry a single-element stack.
type TrialMetrics struct {
	Local map[string][][]float64
	Time  map[string][]float64
}

// SessionSpec identifies a session for plotting purposes.
type SessionSpec struct {
	Name string
	Meta SessionMeta
}

type SessionMeta struct {
	// Prepath is the file path prefix under which graphs are written.
	Prepath string
	Trial   int
	Session int
}

// TrialSpec identifies a trial for plotting purposes.
type TrialSpec struct {
	Name string
	Meta TrialMeta
}

type TrialMeta struct {
	Prepath    string
	Trial      int
	MaxSession int
}

// Label is the resolved title/axis-label record for a chart.
type Label struct {
	Title       string
	YTitle      string
	XTitle      string
	YCols       []string
	XCols       []string
	LegendNames []string
}

// LabelOptions are optional overrides for NewLabel. Empty fields are resolved
// from the column names.
type LabelOptions struct {
	Title       string
	YTitle      string
	XTitle      string
	LegendNames []string
}

// NewLabel resolves a Label from the plotted column names. Legend names
// default to the y columns, axis titles default to the comma-join of their
// column lists, and the title defaults to "<yTitle> vs <xTitle>".
func NewLabel(yCols, xCols []string, opts LabelOptions) Label {
	legendNames := opts.LegendNames
	if len(legendNames) == 0 {
		legendNames = yCols
	}

	yTitle := opts.YTitle
	if yTitle == "" {
		yTitle = strings.Join(yCols, ",")
	}

	xTitle := opts.XTitle
	if xTitle == "" {
		xTitle = strings.Join(xCols, ",")
	}

	title := opts.Title
	if title == "" {
		title = fmt.Sprintf("%s vs %s", yTitle, xTitle)
	}

	return Label{
		Title:       title,
		YTitle:      yTitle,
		XTitle:      xTitle,
		YCols:       yCols,
		XCols:       xCols,
		LegendNames: legendNames,
	}
}

const (
	defaultChartWidth  = 500
	defaultChartHeight = 600
	defaultChartMargin = 60
)

// Layout is the chart layout configuration: titles, dimensions and margins.
// The y axis is always anchored at zero.
type Layout struct {
	Title  string
	YTitle string
	XTitle string

	// XLog switches the x axis to a logarithmic scale.
	XLog bool

	Width  int
	Height int
	Margin int
}

type LayoutOption func(*Layout)

func WithSize(width, height int) LayoutOption {
	return func(l *Layout) {
		l.Width = width
		l.Height = height
	}
}

func WithLogX() LayoutOption {
	return func(l *Layout) { l.XLog = true }
}

// NewLayout builds a Layout with the default 500x600 dimensions and uniform
// 60px margins.
func NewLayout(title, yTitle, xTitle string, opts ...LayoutOption) Layout {
	l := Layout{
		Title:  title,
		YTitle: yTitle,
		XTitle: xTitle,
		Width:  defaultChartWidth,
		Height: defaultChartHeight,
		Margin: defaultChartMargin,
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}
