package stats

import (
	"math"
	"testing"
)

func TestMeanUpdate(t *testing.T) {
	var m Mean
	if m.Value() != 0 || m.Count() != 0 {
		t.Fatalf("zero Mean = %v/%d, want 0/0", m.Value(), m.Count())
	}

	for _, v := range []float64{8, 6, 7} {
		m.Update(v)
	}
	if math.Abs(m.Value()-7) > 1e-9 {
		t.Fatalf("mean = %v, want 7", m.Value())
	}
	if m.Count() != 3 {
		t.Fatalf("count = %d, want 3", m.Count())
	}
}

func TestMeanIgnoresNaN(t *testing.T) {
	var m Mean
	m.Update(5)
	if got := m.Update(math.NaN()); got != 5 {
		t.Fatalf("Update(NaN) = %v, want 5", got)
	}
	if got := m.Update(math.Inf(1)); got != 5 {
		t.Fatalf("Update(+Inf) = %v, want 5", got)
	}
	if m.Count() != 1 {
		t.Fatalf("count = %d, want 1", m.Count())
	}
}

func FuzzMeanUpdate(f *testing.F) {
	f.Add(1.0, 10.0, 5.5)
	f.Add(0.0, 0.0, 0.0)

	f.Fuzz(func(t *testing.T, a, b, c float64) {
		var m Mean
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range []float64{a, b, c} {
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > 1e12 {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
			m.Update(v)
		}
		got := m.Value()
		if math.IsNaN(got) {
			t.Fatalf("mean is NaN")
		}
		if m.Count() > 0 && (got < lo-1e-6*math.Abs(lo)-1e-9 || got > hi+1e-6*math.Abs(hi)+1e-9) {
			t.Fatalf("mean %v outside [%v, %v]", got, lo, hi)
		}
	})
}
