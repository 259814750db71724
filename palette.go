package metricviz

import (
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// set2 is the 8-color qualitative palette (ColorBrewer Set2) used for all
// graphs. One color per plotted sub-graph.
var set2 = []drawing.Color{
	{R: 102, G: 194, B: 165, A: 255},
	{R: 252, G: 141, B: 98, A: 255},
	{R: 141, G: 160, B: 203, A: 255},
	{R: 231, G: 138, B: 195, A: 255},
	{R: 166, G: 216, B: 84, A: 255},
	{R: 255, G: 217, B: 47, A: 255},
	{R: 229, G: 196, B: 148, A: 255},
	{R: 179, G: 179, B: 179, A: 255},
}

// Palette returns the colors to plot n sub-graphs with. For n <= 8 it returns
// the first max(3, n) colors of the qualitative set; for larger n it linearly
// interpolates n colors across the full set.
func Palette(n int) []drawing.Color {
	if n <= len(set2) {
		size := n
		if size < 3 {
			size = 3
		}
		out := make([]drawing.Color, size)
		copy(out, set2[:size])
		return out
	}

	out := make([]drawing.Color, n)
	for i := range out {
		t := float64(i) * float64(len(set2)-1) / float64(n-1)
		lo := int(t)
		hi := Min(lo+1, len(set2)-1)
		out[i] = lerpColor(set2[lo], set2[hi], t-float64(lo))
	}
	return out
}

func lerpColor(a, b drawing.Color, t float64) drawing.Color {
	return drawing.Color{
		R: lerpChannel(a.R, b.R, t),
		G: lerpChannel(a.G, b.G, t),
		B: lerpChannel(a.B, b.B, t),
		A: lerpChannel(a.A, b.A, t),
	}
}

func lerpChannel(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

// LowerOpacity returns c with its alpha scaled to the given opacity in [0, 1].
// Used for the error-band fill so the envelope does not hide the mean line.
func LowerOpacity(c drawing.Color, opacity float64) drawing.Color {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	c.A = uint8(opacity*255 + 0.5)
	return c
}
