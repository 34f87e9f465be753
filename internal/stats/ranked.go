package stats

import (
	"sort"

	"github.com/Clark-Hu/watchstats/internal/domain"
)

// Entity is one categorical value attached to a title: a genre, keyword, person or studio.
type Entity struct {
	ID          string
	Name        string
	ProfilePath string
}

// RankedEntry is the running tally for one entity.
type RankedEntry struct {
	StatTypeID  string
	Title       string
	ProfilePath string
	Count       int
	TimeWatched float64
	Mean        Mean
	List        []domain.SampleTitle
}

// Ranked accumulates entities across titles and ranks them on demand.
type Ranked struct {
	entries     map[string]*RankedEntry
	sampleLimit int
}

// NewRanked returns an empty accumulator that keeps at most sampleLimit sample
// titles per entity. A non-positive limit keeps every title.
func NewRanked(sampleLimit int) *Ranked {
	return &Ranked{entries: make(map[string]*RankedEntry), sampleLimit: sampleLimit}
}

// Accumulate credits each entity with one title. An entity listed several times on
// the same title (a director who also wrote it) is credited once.
func (r *Ranked) Accumulate(entities []Entity, hours float64, sample domain.SampleTitle, score float64, scored bool) {
	seen := make(map[string]struct{}, len(entities))
	for _, ent := range entities {
		if ent.ID == "" {
			continue
		}
		if _, dup := seen[ent.ID]; dup {
			continue
		}
		seen[ent.ID] = struct{}{}

		e, ok := r.entries[ent.ID]
		if !ok {
			e = &RankedEntry{StatTypeID: ent.ID, Title: ent.Name}
			r.entries[ent.ID] = e
		}
		if e.ProfilePath == "" {
			e.ProfilePath = ent.ProfilePath
		}
		e.Count++
		e.TimeWatched += hours
		if scored {
			e.Mean.Update(score)
		}
		if r.sampleLimit <= 0 || len(e.List) < r.sampleLimit {
			e.List = append(e.List, sample)
		}
	}
}

// Len returns the number of distinct entities seen.
func (r *Ranked) Len() int {
	return len(r.entries)
}

// Top returns at most n entries ordered by count, time watched, mean score, title
// and finally id, so the ranking does not depend on the order titles were folded in.
func (r *Ranked) Top(n int) []*RankedEntry {
	out := make([]*RankedEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.TimeWatched != b.TimeWatched {
			return a.TimeWatched > b.TimeWatched
		}
		if a.Mean.Value() != b.Mean.Value() {
			return a.Mean.Value() > b.Mean.Value()
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.StatTypeID < b.StatTypeID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
