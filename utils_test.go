package metricviz

import (
	"math"
	"reflect"
	"testing"
)

func TestFilter(t *testing.T) {
	t.Run("empty slice", func(t *testing.T) {
		var input []int = nil
		got := Filter(input, func(int) bool { return true })
		if !reflect.DeepEqual(got, []int{}) {
			t.Fatalf("Filter(%v) = %v, want []", input, got)
		}
	})

	t.Run("partial match", func(t *testing.T) {
		input := []int{1, 2, 3}
		got := Filter(input, func(x int) bool { return x%2 == 1 })
		if !reflect.DeepEqual(got, []int{1, 3}) {
			t.Fatalf("Filter(%v) = %v, want [1 3]", input, got)
		}
	})
}

func TestMin(t *testing.T) {
	if got := Min(5, 3); got != 3 {
		t.Fatalf("Min(5,3) = %v, want 3", got)
	}
	if got := Min(4, 4); got != 4 {
		t.Fatalf("Min(4,4) = %v, want 4", got)
	}

	a := math.NaN()
	if got := Min(a, 1.0); !math.IsNaN(got) {
		t.Fatalf("Min(NaN,1.0) = %v, want NaN", got)
	}
}

func TestThreadUnsafeRing(t *testing.T) {
	t.Run("capacity 1 overwrite", func(t *testing.T) {
		r := NewRing[int](1)
		r.Push(1)
		r.Push(2)
		if got := r.ReadAllOrdered(); !reflect.DeepEqual(got, []int{2}) {
			t.Fatalf("got %v, want [2]", got)
		}
	})

	t.Run("partially filled", func(t *testing.T) {
		r := NewRing[int](4)
		r.Push(1)
		r.Push(2)
		if got := r.ReadAllOrdered(); !reflect.DeepEqual(got, []int{1, 2}) {
			t.Fatalf("got %v, want [1 2]", got)
		}
	})

	t.Run("wraps around in order", func(t *testing.T) {
		r := NewRing[int](3)
		for i := 1; i <= 5; i++ {
			r.Push(i)
		}
		if got := r.ReadAllOrdered(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
			t.Fatalf("got %v, want [3 4 5]", got)
		}
	})

	t.Run("empty ring", func(t *testing.T) {
		r := NewRing[int](3)
		if got := r.ReadAllOrdered(); len(got) != 0 {
			t.Fatalf("got %v, want empty", got)
		}
	})
}
