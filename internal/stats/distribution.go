package stats

import (
	"sort"
	"strconv"

	"github.com/Clark-Hu/watchstats/internal/domain"
)

// Distribution buckets contributions by label, keeping labels in first-seen order.
type Distribution struct {
	buckets []*bucket
	index   map[string]int
}

type bucket struct {
	label string
	count int
	hours float64
	mean  Mean
}

// NewDistribution returns an empty distribution.
func NewDistribution() *Distribution {
	return &Distribution{index: make(map[string]int)}
}

// Accumulate adds one contribution to the bucket named label, creating it if needed.
// The score is folded into the bucket mean only when scored is true.
func (d *Distribution) Accumulate(label string, hours, score float64, scored bool) {
	i, ok := d.index[label]
	if !ok {
		i = len(d.buckets)
		d.index[label] = i
		d.buckets = append(d.buckets, &bucket{label: label})
	}
	b := d.buckets[i]
	b.count++
	b.hours += hours
	if scored {
		b.mean.Update(score)
	}
}

// Result flattens the buckets, ordered by less when it is non-nil.
func (d *Distribution) Result(less func(a, b domain.Distribution) bool) []domain.Distribution {
	out := make([]domain.Distribution, 0, len(d.buckets))
	for _, b := range d.buckets {
		out = append(out, domain.Distribution{
			Format:       b.label,
			Count:        b.count,
			HoursWatched: b.hours,
			MeanScore:    b.mean.Value(),
		})
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

var statusOrder = map[string]int{
	string(domain.StatusWatching):  0,
	string(domain.StatusCompleted): 1,
	string(domain.StatusPaused):    2,
	string(domain.StatusDropped):   3,
	string(domain.StatusPlanning):  4,
}

func byStatus(a, b domain.Distribution) bool {
	return statusOrder[a.Format] < statusOrder[b.Format]
}

// byNumericLabel orders year and score buckets ascending.
func byNumericLabel(a, b domain.Distribution) bool {
	x, errX := strconv.Atoi(a.Format)
	y, errY := strconv.Atoi(b.Format)
	if errX != nil || errY != nil {
		return a.Format < b.Format
	}
	return x < y
}

func byCountDesc(a, b domain.Distribution) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.Format < b.Format
}
