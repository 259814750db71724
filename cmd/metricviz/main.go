package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/rlworks/metricviz"
)

type options struct {
	Verbose bool `short:"v" long:"verbose" description:"Enable debug logging"`
}

// sessionCommand retro-plots the graphs of a single session from its metrics
// and dataframe CSV files.
type sessionCommand struct {
	MetricsFile string `long:"metrics" required:"true" description:"Session local-metrics CSV file"`
	DFFile      string `long:"df" description:"Session dataframe CSV file (loss, explore_var, entropy)"`
	Name        string `long:"name" required:"true" description:"Experiment spec name"`
	Trial       int    `long:"trial" description:"Trial index"`
	Session     int    `long:"session" description:"Session index"`
	Prepath     string `long:"prepath" required:"true" description:"Output file path prefix"`
	Mode        string `long:"mode" default:"train" description:"Dataframe mode (train or eval)"`
}

func (c *sessionCommand) Execute(args []string) error {
	local, _, err := metricviz.LoadMetricsCSV(c.MetricsFile)
	if err != nil {
		return err
	}

	df := metricviz.MetricFrame{}
	if c.DFFile != "" {
		df, _, err = metricviz.LoadMetricsCSV(c.DFFile)
		if err != nil {
			return err
		}
	}

	spec := metricviz.SessionSpec{
		Name: c.Name,
		Meta: metricviz.SessionMeta{
			Prepath: c.Prepath,
			Trial:   c.Trial,
			Session: c.Session,
		},
	}
	metricviz.PlotSession(spec, local, df, c.Mode)
	return nil
}

// trialCommand retro-plots the graphs of a trial from the per-session metrics
// CSV files.
type trialCommand struct {
	MetricsFiles []string `long:"metrics" required:"true" description:"Session local-metrics CSV files, one per session"`
	Name         string   `long:"name" required:"true" description:"Experiment spec name"`
	Trial        int      `long:"trial" description:"Trial index"`
	Prepath      string   `long:"prepath" required:"true" description:"Output file path prefix"`
}

func (c *trialCommand) Execute(args []string) error {
	metrics := metricviz.TrialMetrics{
		Local: map[string][][]float64{},
		Time:  map[string][]float64{},
	}
	for _, path := range c.MetricsFiles {
		frame, columns, err := metricviz.LoadMetricsCSV(path)
		if err != nil {
			return err
		}
		for _, col := range columns {
			switch col {
			case "frames", "opt_steps", "total_t":
				if _, ok := metrics.Time[col]; !ok {
					metrics.Time[col] = frame[col]
				}
			default:
				metrics.Local[col] = append(metrics.Local[col], frame[col])
			}
		}
	}

	spec := metricviz.TrialSpec{
		Name: c.Name,
		Meta: metricviz.TrialMeta{
			Prepath:    c.Prepath,
			Trial:      c.Trial,
			MaxSession: len(c.MetricsFiles),
		},
	}
	metricviz.PlotTrial(spec, metrics)
	return nil
}

// serveCommand reads metric rows from stdin and serves the live view.
type serveCommand struct {
	Addr    string `long:"addr" default:"localhost:8080" description:"Listen address"`
	Title   string `long:"title" description:"Chart title"`
	Columns string `short:"c" long:"columns" required:"true" description:"Comma-separated metric column names (excluding the x column)"`
	XIndex  int    `long:"x-index" default:"-1" description:"Index of the x column; negative means use the current timestamp"`
	XLabel  string `long:"x-label" description:"X axis label"`
	Buffer  int    `long:"buffer" default:"10000" description:"Replay buffer capacity in rows"`
	TeeFile string `long:"tee" description:"Also append rows to this CSV file for later retro-plotting"`
	Name    string `long:"name" default:"live run" description:"Run name shown in the live view"`
	Trial   int    `long:"trial" description:"Trial index"`
	Session int    `long:"session" description:"Session index"`
}

func (c *serveCommand) Execute(args []string) error {
	columns := strings.Split(c.Columns, ",")

	reader := &metricviz.TextToMetricRowReader{
		Input:   metricviz.NewRelaxedStringReader(os.Stdin),
		XIndex:  c.XIndex,
		Columns: columns,
	}

	var teeOutput *os.File
	if c.TeeFile != "" {
		var err error
		teeOutput, err = os.OpenFile(c.TeeFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open tee file: %w", err)
		}
		defer teeOutput.Close()
	}

	broadcaster := metricviz.NewBroadcaster(reader, c.Buffer, teeWriter(teeOutput))
	broadcaster.Start(context.Background())

	metadata := metricviz.RunMetadata{
		Name:         c.Name,
		Trial:        c.Trial,
		Session:      c.Session,
		WindowSize:   c.Buffer,
		XIsTimestamp: c.XIndex < 0,
		PlotOptions: metricviz.PlotOptions{
			Title:   c.Title,
			Columns: columns,
			XLabel:  c.XLabel,
		},
	}
	server := metricviz.NewHttpServer(broadcaster, c.Addr, metadata)
	server.Run()
	return nil
}

// teeWriter avoids handing a typed-nil io.Writer to the broadcaster.
func teeWriter(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}

func main() {
	godotenv.Load()

	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("session", "Plot session graphs", "Retro-plot the graphs of one session from its metrics CSV files.", &sessionCommand{})
	parser.AddCommand("trial", "Plot trial graphs", "Retro-plot the graphs of a trial from its per-session metrics CSV files.", &trialCommand{})
	parser.AddCommand("serve", "Serve a live view", "Read metric rows from stdin and serve live charts over HTTP.", &serveCommand{})
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if opts.Verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return command.Execute(args)
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
