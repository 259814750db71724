package metricviz

import (
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
)

// errorBandOpacity is the alpha applied to the main series color when filling
// the mean±std envelope.
const errorBandOpacity = 0.2

// BuildSeriesChart builds a single-trace line chart of ys against xs. The
// trace uses the first palette color with a width-1 stroke and no legend.
func BuildSeriesChart(ys, xs []float64, lay Layout) chart.Chart {
	xs, ys = padSinglePoint(xs, ys)
	color := Palette(1)[0]

	main := chart.ContinuousSeries{
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeWidth: 1,
			StrokeColor: color,
		},
	}

	maxY, haveY := seriesMax(ys)
	return assembleChart(lay, []chart.Series{main}, maxY, haveY)
}

// BuildMeanChart builds a chart of the element-wise mean of srList against
// xs, with a shaded mean±std envelope. The envelope is a single closed trace:
// the upper bound followed by the lower bound in reverse, filled with the main
// color at lowered opacity.
func BuildMeanChart(srList [][]float64, xs []float64, lay Layout) chart.Chart {
	mean, std := MeanStd(srList)
	n := Min(len(mean), len(xs))
	mean, std, xs = mean[:n], std[:n], xs[:n]

	upper := make([]float64, n)
	lower := make([]float64, n)
	for i := range mean {
		upper[i] = mean[i] + std[i]
		lower[i] = mean[i] - std[i]
	}

	color := Palette(1)[0]
	meanXs, meanYs := padSinglePoint(xs, mean)
	main := chart.ContinuousSeries{
		XValues: meanXs,
		YValues: meanYs,
		Style: chart.Style{
			StrokeWidth: 1,
			StrokeColor: color,
		},
	}

	envXs := append(append([]float64{}, xs...), reversed(xs)...)
	envYs := append(upper, reversed(lower)...)
	envelope := chart.ContinuousSeries{
		XValues: envXs,
		YValues: envYs,
		Style: chart.Style{
			StrokeWidth: 1,
			StrokeColor: chart.ColorTransparent,
			FillColor:   LowerOpacity(color, errorBandOpacity),
		},
	}

	maxY, haveY := seriesMax(upper)
	return assembleChart(lay, []chart.Series{main, envelope}, maxY, haveY)
}

// MeanStd computes the element-wise mean and population standard deviation
// across the given series. Ragged series are truncated to the shortest length.
func MeanStd(srList [][]float64) (mean, std []float64) {
	if len(srList) == 0 {
		return nil, nil
	}

	n := len(srList[0])
	for _, sr := range srList[1:] {
		n = Min(n, len(sr))
	}

	mean = make([]float64, n)
	std = make([]float64, n)
	count := float64(len(srList))
	for i := 0; i < n; i++ {
		var sum float64
		for _, sr := range srList {
			sum += sr[i]
		}
		m := sum / count
		var sqSum float64
		for _, sr := range srList {
			d := sr[i] - m
			sqSum += d * d
		}
		mean[i] = m
		std[i] = math.Sqrt(sqSum / count)
	}
	return mean, std
}

// assembleChart applies the layout to the given series. The y axis is anchored
// at zero with a rounded max.
func assembleChart(lay Layout, series []chart.Series, maxY float64, haveY bool) chart.Chart {
	m := lay.Margin
	ch := chart.Chart{
		Title:      lay.Title,
		Width:      lay.Width,
		Height:     lay.Height,
		Background: chart.Style{Padding: chart.Box{Top: m, Left: m, Right: m, Bottom: m}},
		XAxis:      chart.XAxis{Name: lay.XTitle},
		YAxis:      chart.YAxis{Name: lay.YTitle},
		Series:     series,
	}
	if lay.XLog {
		ch.XAxis.Range = &chart.LogarithmicRange{}
	}
	if haveY {
		if maxY <= 0 {
			maxY = 1
		}
		_, nMax := NiceAxisBounds(0, maxY)
		ch.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: nMax}
		ch.YAxis.Ticks = NiceTicks(0, nMax, 6)
	}
	return ch
}

// padSinglePoint duplicates a lone data point so the chart engine always has
// a drawable x range.
func padSinglePoint(xs, ys []float64) ([]float64, []float64) {
	if len(xs) != 1 || len(ys) != 1 {
		return xs, ys
	}
	return []float64{xs[0], xs[0] + 1}, []float64{ys[0], ys[0]}
}

func seriesMax(ys []float64) (float64, bool) {
	max := -math.MaxFloat64
	have := false
	for _, v := range ys {
		if math.IsNaN(v) {
			continue
		}
		if v > max {
			max = v
		}
		have = true
	}
	return max, have
}

func reversed(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
