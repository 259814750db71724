package metricviz

// PlotOptions configure the live view charts.
type PlotOptions struct {
	Title   string
	Columns []string
	XLabel  string
	YLabel  string
	YMin    *float64 `json:",omitempty"`
	YMax    *float64 `json:",omitempty"`
}

// RunMetadata describes the run whose metrics are being streamed. Sent to
// live-view clients on connect.
type RunMetadata struct {
	Name         string
	Trial        int
	Session      int
	WindowSize   int
	XIsTimestamp bool
	PlotOptions  PlotOptions
}
