package metricviz

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// The fixed metric/time-axis pairs plotted for every session and trial. These
// series are computed by the experiment framework and handed in as-is.
var metricTimePairs = [][2]string{
	{"mean_returns", "frames"},
	{"strengths", "frames"},
	{"sample_efficiencies", "frames"},
	{"training_efficiencies", "opt_steps"},
	{"stabilities", "frames"},
}

// Extra training-progress pairs plotted from the session dataframe when not
// in eval mode.
var trainingTimePairs = [][2]string{
	{"loss", "total_t"},
	{"explore_var", "total_t"},
	{"entropy", "total_t"},
}

// PlotSession plots the session graphs: one single-series chart per
// metric/time pair, saved as
// <prepath>_session_graph_<dfMode>_<name>_vs_<time>.png. When dfMode is not
// "eval", training plots (loss, explore_var, entropy) are additionally drawn
// from the session dataframe.
func PlotSession(spec SessionSpec, localMetrics MetricFrame, sessionDF MetricFrame, dfMode string) {
	title := fmt.Sprintf("session graph: %s t%d s%d", spec.Name, spec.Meta.Trial, spec.Meta.Session)
	logger := logrus.WithFields(logrus.Fields{
		"tag":     "plot",
		"session": spec.Meta.Session,
		"trial":   spec.Meta.Trial,
	})

	for _, pair := range metricTimePairs {
		name, time := pair[0], pair[1]
		ch := BuildSeriesChart(localMetrics[name], localMetrics[time], NewLayout(title, name, time))
		SaveImage(ch, sessionGraphPath(spec.Meta.Prepath, dfMode, name, time))
	}

	if dfMode != "eval" {
		for _, pair := range trainingTimePairs {
			name, time := pair[0], pair[1]
			ch := BuildSeriesChart(sessionDF[name], sessionDF[time], NewLayout(title, name, time))
			SaveImage(ch, sessionGraphPath(spec.Meta.Prepath, dfMode, name, time))
		}
	}
	logger.Debug("plotted session graphs")
}

// PlotTrial plots the trial graphs: mean-with-error-band charts over the
// per-session series for each metric/time pair, plus a plain consistencies
// chart, saved as <prepath>_trial_graph_<name>_vs_<time>.png. Consistencies
// are computed across sessions and therefore carry no error band.
func PlotTrial(spec TrialSpec, metrics TrialMetrics) {
	title := fmt.Sprintf("trial graph: %s t%d %d sessions", spec.Name, spec.Meta.Trial, spec.Meta.MaxSession)

	pairs := append(append([][2]string{}, metricTimePairs...), [2]string{"consistencies", "frames"})
	for _, pair := range pairs {
		name, time := pair[0], pair[1]
		stack := metrics.Local[name]
		xs := metrics.Time[time]

		if name == "consistencies" {
			var sr []float64
			if len(stack) > 0 {
				sr = stack[0]
			}
			c := BuildSeriesChart(sr, xs, NewLayout(title, name, time))
			SaveImage(c, trialGraphPath(spec.Meta.Prepath, name, time))
			continue
		}
		c := BuildMeanChart(stack, xs, NewLayout(title, name, time))
		SaveImage(c, trialGraphPath(spec.Meta.Prepath, name, time))
	}
}

func sessionGraphPath(prepath, dfMode, name, time string) string {
	return fmt.Sprintf("%s_session_graph_%s_%s_vs_%s.png", prepath, dfMode, name, time)
}

func trialGraphPath(prepath, name, time string) string {
	return fmt.Sprintf("%s_trial_graph_%s_vs_%s.png", prepath, name, time)
}
