package stats

import "math"

// Mean is a running average that keeps only the current value and sample count.
type Mean struct {
	value float64
	n     int
}

// Update folds v into the mean and returns the new value. NaN and infinite inputs
// are ignored; a NaN result collapses to 0.
func (m *Mean) Update(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return m.value
	}
	next := (m.value*float64(m.n) + v) / float64(m.n+1)
	if math.IsNaN(next) || math.IsInf(next, 0) {
		next = 0
	}
	m.value = next
	m.n++
	return m.value
}

// Value returns the current mean, 0 when nothing has been folded.
func (m Mean) Value() float64 {
	return m.value
}

// Count returns the number of folded samples.
func (m Mean) Count() int {
	return m.n
}
