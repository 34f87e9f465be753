package stats

import (
	"sort"

	"github.com/Clark-Hu/watchstats/internal/domain"
)

// Result is the output of one fold over a user's entries.
type Result struct {
	Overviews []domain.OverviewStat
	Others    []domain.OtherStat
	Folded    int
	Skipped   []*EntryError
}

// ComputeOptions tunes a fold.
type ComputeOptions struct {
	RankLimit   int
	SampleLimit int
	Scorer      Scorer
}

// Compute folds entries into movie and show rollups. Entries are visited in
// (media type, media id, entry id) order, so the output does not depend on the
// order they were loaded in. Entries that cannot be folded are reported in
// Result.Skipped and otherwise ignored.
func Compute(userID string, entries []domain.ListEntry, opts ComputeOptions) Result {
	scorer := opts.Scorer
	if scorer == nil {
		scorer, _ = NewScorer("", 0, 0)
	}

	ordered := make([]domain.ListEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.MediaType != b.MediaType {
			return a.MediaType < b.MediaType
		}
		if a.MediaID != b.MediaID {
			return a.MediaID < b.MediaID
		}
		return a.ID < b.ID
	})

	var res Result
	set := newBundles(opts.SampleLimit)
	for _, entry := range ordered {
		c, err := deriveContribution(entry, scorer)
		if err != nil {
			res.Skipped = append(res.Skipped, &EntryError{EntryID: entry.ID, MediaID: entry.MediaID, Err: err})
			continue
		}
		set.pick(c.mediaType).apply(c)
		res.Folded++
	}

	for _, b := range []*bundle{set.movie, set.tv} {
		res.Overviews = append(res.Overviews, b.overview(userID))
		res.Others = append(res.Others, b.others(userID, opts.RankLimit)...)
	}
	return res
}
