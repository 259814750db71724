package metricviz

import (
	"math"
	"reflect"
	"testing"

	chart "github.com/wcharczuk/go-chart/v2"
)

func TestBuildSeriesChart(t *testing.T) {
	t.Run("single trace", func(t *testing.T) {
		lay := NewLayout("t", "loss", "total_t")
		ch := BuildSeriesChart([]float64{1, 2, 3}, []float64{10, 20, 30}, lay)

		if len(ch.Series) != 1 {
			t.Fatalf("got %d series, want 1", len(ch.Series))
		}
		main, ok := ch.Series[0].(chart.ContinuousSeries)
		if !ok {
			t.Fatalf("series type = %T, want ContinuousSeries", ch.Series[0])
		}
		if !reflect.DeepEqual(main.YValues, []float64{1, 2, 3}) {
			t.Fatalf("YValues = %v", main.YValues)
		}
		if main.Style.StrokeWidth != 1 {
			t.Fatalf("StrokeWidth = %v, want 1", main.Style.StrokeWidth)
		}
		if main.Style.StrokeColor != Palette(1)[0] {
			t.Fatalf("StrokeColor = %v, want first palette color", main.Style.StrokeColor)
		}
		if ch.Title != "t" || ch.YAxis.Name != "loss" || ch.XAxis.Name != "total_t" {
			t.Fatalf("labels not applied: %q %q %q", ch.Title, ch.YAxis.Name, ch.XAxis.Name)
		}
		if ch.Width != 500 || ch.Height != 600 {
			t.Fatalf("size = %dx%d, want 500x600", ch.Width, ch.Height)
		}
	})

	t.Run("y axis anchored at zero", func(t *testing.T) {
		ch := BuildSeriesChart([]float64{5, 97}, []float64{0, 1}, NewLayout("t", "y", "x"))
		r, ok := ch.YAxis.Range.(*chart.ContinuousRange)
		if !ok {
			t.Fatalf("YAxis.Range type = %T, want ContinuousRange", ch.YAxis.Range)
		}
		if r.Min != 0 {
			t.Fatalf("y range min = %v, want 0", r.Min)
		}
		if r.Max < 97 {
			t.Fatalf("y range max = %v, want >= data max", r.Max)
		}
	})

	t.Run("single point is padded", func(t *testing.T) {
		ch := BuildSeriesChart([]float64{7}, []float64{3}, NewLayout("t", "y", "x"))
		main := ch.Series[0].(chart.ContinuousSeries)
		if !reflect.DeepEqual(main.XValues, []float64{3, 4}) {
			t.Fatalf("XValues = %v, want padded pair", main.XValues)
		}
		if !reflect.DeepEqual(main.YValues, []float64{7, 7}) {
			t.Fatalf("YValues = %v, want duplicated value", main.YValues)
		}
	})

	t.Run("log x layout", func(t *testing.T) {
		ch := BuildSeriesChart([]float64{1, 2}, []float64{1, 10}, NewLayout("t", "y", "x", WithLogX()))
		if _, ok := ch.XAxis.Range.(*chart.LogarithmicRange); !ok {
			t.Fatalf("XAxis.Range type = %T, want LogarithmicRange", ch.XAxis.Range)
		}
	})
}

func TestBuildMeanChart(t *testing.T) {
	srList := [][]float64{
		{1, 2, 3},
		{3, 4, 5},
	}
	xs := []float64{10, 20, 30}
	ch := BuildMeanChart(srList, xs, NewLayout("t", "mean_returns", "frames"))

	if len(ch.Series) != 2 {
		t.Fatalf("got %d series, want mean + envelope", len(ch.Series))
	}
	main := ch.Series[0].(chart.ContinuousSeries)
	envelope := ch.Series[1].(chart.ContinuousSeries)

	wantMean := []float64{2, 3, 4}
	if !reflect.DeepEqual(main.YValues, wantMean) {
		t.Fatalf("mean YValues = %v, want %v", main.YValues, wantMean)
	}

	t.Run("envelope is mirror-symmetric around the mean", func(t *testing.T) {
		n := len(xs)
		if len(envelope.YValues) != 2*n {
			t.Fatalf("envelope has %d values, want %d", len(envelope.YValues), 2*n)
		}
		for i := 0; i < n; i++ {
			upper := envelope.YValues[i]
			lower := envelope.YValues[2*n-1-i]
			if math.Abs((upper+lower)/2-wantMean[i]) > 1e-9 {
				t.Fatalf("envelope not centered at index %d: upper=%v lower=%v mean=%v", i, upper, lower, wantMean[i])
			}
			if upper < lower {
				t.Fatalf("upper %v below lower %v at index %d", upper, lower, i)
			}
		}
	})

	t.Run("envelope path runs forward then backward", func(t *testing.T) {
		wantXs := []float64{10, 20, 30, 30, 20, 10}
		if !reflect.DeepEqual(envelope.XValues, wantXs) {
			t.Fatalf("envelope XValues = %v, want %v", envelope.XValues, wantXs)
		}
	})

	t.Run("envelope fill uses lowered opacity of the main color", func(t *testing.T) {
		want := LowerOpacity(Palette(1)[0], 0.2)
		if envelope.Style.FillColor != want {
			t.Fatalf("envelope FillColor = %v, want %v", envelope.Style.FillColor, want)
		}
		if envelope.Style.StrokeColor != chart.ColorTransparent {
			t.Fatalf("envelope StrokeColor = %v, want transparent", envelope.Style.StrokeColor)
		}
	})
}

func TestMeanStd(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		mean, std := MeanStd([][]float64{
			{1, 2},
			{3, 6},
		})
		if !reflect.DeepEqual(mean, []float64{2, 4}) {
			t.Fatalf("mean = %v, want [2 4]", mean)
		}
		if !reflect.DeepEqual(std, []float64{1, 2}) {
			t.Fatalf("std = %v, want [1 2]", std)
		}
	})

	t.Run("single series has zero std", func(t *testing.T) {
		mean, std := MeanStd([][]float64{{5, 6, 7}})
		if !reflect.DeepEqual(mean, []float64{5, 6, 7}) {
			t.Fatalf("mean = %v", mean)
		}
		if !reflect.DeepEqual(std, []float64{0, 0, 0}) {
			t.Fatalf("std = %v, want zeros", std)
		}
	})

	t.Run("ragged series truncate to shortest", func(t *testing.T) {
		mean, _ := MeanStd([][]float64{
			{1, 2, 3},
			{3, 4},
		})
		if !reflect.DeepEqual(mean, []float64{2, 3}) {
			t.Fatalf("mean = %v, want [2 3]", mean)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		mean, std := MeanStd(nil)
		if mean != nil || std != nil {
			t.Fatalf("MeanStd(nil) = %v, %v, want nils", mean, std)
		}
	})
}
