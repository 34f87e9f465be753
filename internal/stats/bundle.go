package stats

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/watchstats/internal/domain"
)

// contribution is everything one entry adds to a bundle, derived up front so a
// malformed entry is rejected before any accumulator is touched.
type contribution struct {
	mediaType    domain.MediaType
	status       domain.Status
	progress     int
	hoursWatched float64
	hoursPlanned float64
	score        float64
	scored       bool
	countries    []string
	releaseYear  string
	watchYear    string
	sample       domain.SampleTitle
	entities     map[domain.StatKind][]Entity
}

func deriveContribution(entry domain.ListEntry, scorer Scorer) (contribution, error) {
	if _, err := domain.ParseMediaType(string(entry.MediaType)); err != nil {
		return contribution{}, err
	}
	if !entry.Status.Valid() {
		return contribution{}, fmt.Errorf("unknown status %q", entry.Status)
	}
	if entry.Progress < 0 {
		return contribution{}, fmt.Errorf("negative progress %d", entry.Progress)
	}
	if entry.MetadataErr != nil {
		return contribution{}, entry.MetadataErr
	}

	md := entry.Metadata
	score, scored := scorer(entry)
	if scored && (math.IsNaN(score) || score < 0 || score > 10) {
		return contribution{}, fmt.Errorf("score %v out of range", score)
	}

	c := contribution{
		mediaType: entry.MediaType,
		status:    entry.Status,
		progress:  entry.Progress,
		score:     score,
		scored:    scored,
		sample: domain.SampleTitle{
			ID:         entry.MediaID,
			Title:      entry.Title,
			PosterPath: entry.Poster,
			MediaType:  entry.MediaType,
		},
	}
	c.hoursWatched, c.hoursPlanned = Hours(entry.MediaType, md, entry.Progress)

	if entry.Status != domain.StatusCompleted {
		return c, nil
	}

	var err error
	if c.releaseYear, err = yearOf(md.ReleaseDateString()); err != nil {
		return contribution{}, fmt.Errorf("release date: %w", err)
	}
	if c.watchYear, err = yearOf(entry.EndDate); err != nil {
		return contribution{}, fmt.Errorf("end date: %w", err)
	}
	c.countries = md.Countries()
	c.entities = entitiesOf(md)
	return c, nil
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01", "2006"}

var errBadDate = errors.New("unrecognized date")

// yearOf returns the calendar year of an ISO date, "" for an empty date.
func yearOf(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return strconv.Itoa(t.Year()), nil
		}
	}
	return "", fmt.Errorf("%w %q", errBadDate, raw)
}

func entitiesOf(md *domain.MediaMetadata) map[domain.StatKind][]Entity {
	out := make(map[domain.StatKind][]Entity, len(domain.StatKinds))
	if md == nil {
		return out
	}
	for _, g := range md.Genres {
		out[domain.StatKindGenre] = appendEntity(out[domain.StatKindGenre], g.ID, g.Name, "")
	}
	for _, t := range md.Tags {
		out[domain.StatKindTag] = appendEntity(out[domain.StatKindTag], t.ID, t.Name, "")
	}
	for _, p := range md.Cast {
		out[domain.StatKindCast] = appendEntity(out[domain.StatKindCast], p.ID, p.Name, p.ProfilePath)
	}
	for _, p := range md.Crew {
		out[domain.StatKindCrew] = appendEntity(out[domain.StatKindCrew], p.ID, p.Name, p.ProfilePath)
	}
	for _, c := range md.ProductionCompanies {
		out[domain.StatKindStudio] = appendEntity(out[domain.StatKindStudio], c.ID, c.Name, c.LogoPath)
	}
	return out
}

func appendEntity(list []Entity, id int64, name, profile string) []Entity {
	key := name
	if id != 0 {
		key = strconv.FormatInt(id, 10)
	}
	if key == "" {
		return list
	}
	return append(list, Entity{ID: key, Name: name, ProfilePath: profile})
}

// bundle holds every accumulator for one media type.
type bundle struct {
	mediaType       domain.MediaType
	count           int
	episodesWatched int
	daysWatched     float64
	daysPlanned     float64
	mean            Mean

	score       *Distribution
	status      *Distribution
	country     *Distribution
	releaseYear *Distribution
	watchYear   *Distribution
	ranked      map[domain.StatKind]*Ranked
}

func newBundle(mediaType domain.MediaType, sampleLimit int) *bundle {
	b := &bundle{
		mediaType:   mediaType,
		score:       NewDistribution(),
		status:      NewDistribution(),
		country:     NewDistribution(),
		releaseYear: NewDistribution(),
		watchYear:   NewDistribution(),
		ranked:      make(map[domain.StatKind]*Ranked, len(domain.StatKinds)),
	}
	for _, kind := range domain.StatKinds {
		b.ranked[kind] = NewRanked(sampleLimit)
	}
	return b
}

func (b *bundle) apply(c contribution) {
	completed := c.status == domain.StatusCompleted

	if completed {
		b.count++
		if c.mediaType == domain.MediaTypeTV {
			b.episodesWatched += c.progress
		}
		if c.scored {
			b.mean.Update(c.score)
		}
	}

	switch c.status {
	case domain.StatusWatching, domain.StatusCompleted:
		b.daysWatched += c.hoursWatched / 24
	case domain.StatusPlanning:
		b.daysPlanned += c.hoursPlanned / 24
	}

	statusHours := c.hoursWatched
	if c.status == domain.StatusPlanning {
		statusHours = c.hoursPlanned
	}
	b.status.Accumulate(string(c.status), statusHours, c.score, c.scored)

	if !completed {
		return
	}

	if c.scored {
		b.score.Accumulate(scoreLabel(c.score), c.hoursWatched, c.score, true)
	}
	for _, country := range c.countries {
		b.country.Accumulate(country, c.hoursWatched, c.score, c.scored)
	}
	if c.releaseYear != "" {
		b.releaseYear.Accumulate(c.releaseYear, c.hoursWatched, c.score, c.scored)
	}
	if c.watchYear != "" {
		b.watchYear.Accumulate(c.watchYear, c.hoursWatched, c.score, c.scored)
	}
	for kind, entities := range c.entities {
		b.ranked[kind].Accumulate(entities, c.hoursWatched, c.sample, c.score, c.scored)
	}
}

func scoreLabel(score float64) string {
	return strconv.Itoa(int(math.Round(score)))
}

func (b *bundle) overview(userID string) domain.OverviewStat {
	return domain.OverviewStat{
		UserID:          userID,
		MediaType:       b.mediaType,
		Count:           b.count,
		EpisodesWatched: b.episodesWatched,
		DaysWatched:     b.daysWatched,
		DaysPlanned:     b.daysPlanned,
		MeanScore:       b.mean.Value(),
		ScoreDist:       b.score.Result(byNumericLabel),
		StatusDist:      b.status.Result(byStatus),
		CountryDist:     b.country.Result(byCountDesc),
		ReleaseYear:     b.releaseYear.Result(byNumericLabel),
		WatchYear:       b.watchYear.Result(byNumericLabel),
	}
}

func (b *bundle) others(userID string, limit int) []domain.OtherStat {
	var out []domain.OtherStat
	for _, kind := range domain.StatKinds {
		for i, e := range b.ranked[kind].Top(limit) {
			out = append(out, domain.OtherStat{
				UserID:      userID,
				MediaType:   b.mediaType,
				Kind:        kind,
				EntityID:    e.StatTypeID,
				Rank:        i + 1,
				Title:       e.Title,
				ProfilePath: e.ProfilePath,
				Count:       e.Count,
				MeanScore:   e.Mean.Value(),
				TimeWatched: e.TimeWatched,
				List:        e.List,
			})
		}
	}
	return out
}

// bundles pairs the movie and show accumulators.
type bundles struct {
	movie *bundle
	tv    *bundle
}

func newBundles(sampleLimit int) bundles {
	return bundles{
		movie: newBundle(domain.MediaTypeMovie, sampleLimit),
		tv:    newBundle(domain.MediaTypeTV, sampleLimit),
	}
}

func (b bundles) pick(mediaType domain.MediaType) *bundle {
	if mediaType == domain.MediaTypeTV {
		return b.tv
	}
	return b.movie
}
