package metricviz

import (
	"math"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
)

// Axis helpers shared by the series and mean charts so all graphs of a run
// stay visually consistent.

// NiceAxisBounds expands [min, max] outward to a 1/2/2.5/5 step grid so the
// axis ends on round values.
func NiceAxisBounds(min, max float64) (float64, float64) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return 0, 1
	}
	if max <= min {
		max = min + 1
	}
	step := niceStep(max-min, 6)
	lo := math.Floor(min/step) * step
	hi := math.Ceil(max/step) * step
	return roundTick(lo, step), roundTick(hi, step)
}

// NiceTicks generates up to n ticks spanning [min, max] on the same step grid
// as NiceAxisBounds, with compact labels.
func NiceTicks(min, max float64, n int) []chart.Tick {
	if n < 2 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	step := niceStep(max-min, n)
	start := math.Floor(min/step) * step
	end := math.Ceil(max/step) * step

	var ticks []chart.Tick
	for v := start; v <= end+step*0.5; v += step {
		rv := roundTick(v, step)
		ticks = append(ticks, chart.Tick{Value: rv, Label: FormatNumericTick(rv)})
	}
	if len(ticks) < 2 {
		ticks = []chart.Tick{
			{Value: min, Label: FormatNumericTick(min)},
			{Value: max, Label: FormatNumericTick(max)},
		}
	}
	return ticks
}

// niceStep normalizes span/(n-1) to the 1, 2, 2.5, 5, 10 pattern.
func niceStep(span float64, n int) float64 {
	raw := span / float64(n-1)
	mag := pow10Floor(raw)
	norm := raw / mag
	switch {
	case norm <= 1:
		return 1 * mag
	case norm <= 2:
		return 2 * mag
	case norm <= 2.5:
		return 2.5 * mag
	case norm <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

// pow10Floor returns 10^floor(log10(x)) safeguarding tiny values.
func pow10Floor(x float64) float64 {
	if x <= 0 {
		return 1
	}
	return math.Pow(10, math.Floor(math.Log10(x)))
}

// roundTick rounds to 6 decimal places so tick values stay free of float
// noise. Values on sub-micro step grids are left as-is, or ranges like
// (0, 1e-9) would collapse to zero.
func roundTick(v, step float64) float64 {
	if step < 1e-5 {
		return v
	}
	return math.Round(v*1e6) / 1e6
}

// FormatNumericTick provides a compact tick label, with precision scaled to
// the magnitude of the value.
func FormatNumericTick(v float64) string {
	av := math.Abs(v)
	switch {
	case av >= 100:
		return strconv.FormatInt(int64(math.Round(v)), 10)
	case av >= 10:
		return strconv.FormatFloat(v, 'f', 1, 64)
	case av >= 1:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case av >= 0.01:
		return strconv.FormatFloat(v, 'f', 3, 64)
	case av == 0:
		return "0"
	default:
		return strconv.FormatFloat(v, 'f', 4, 64)
	}
}
