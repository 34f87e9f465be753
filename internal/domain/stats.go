package domain

import (
	"fmt"
	"time"
)

// StatKind names a ranked entity category.
type StatKind string

const (
	StatKindGenre  StatKind = "genre"
	StatKindTag    StatKind = "tag"
	StatKindCast   StatKind = "cast"
	StatKindCrew   StatKind = "crew"
	StatKindStudio StatKind = "studio"
)

// StatKinds lists every ranked category in persistence order.
var StatKinds = []StatKind{StatKindGenre, StatKindTag, StatKindCast, StatKindCrew, StatKindStudio}

// ParseStatKind validates a raw stat kind string.
func ParseStatKind(raw string) (StatKind, error) {
	for _, k := range StatKinds {
		if string(k) == raw {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown stat kind %q", raw)
}

// Distribution is one labelled bucket of a breakdown.
type Distribution struct {
	Format       string  `json:"format"`
	Count        int     `json:"count"`
	HoursWatched float64 `json:"hoursWatched"`
	MeanScore    float64 `json:"meanScore"`
}

// OverviewStat is the per-user, per-media-type rollup.
type OverviewStat struct {
	UserID          string
	MediaType       MediaType
	Count           int
	EpisodesWatched int
	DaysWatched     float64
	DaysPlanned     float64
	MeanScore       float64
	ScoreDist       []Distribution
	StatusDist      []Distribution
	CountryDist     []Distribution
	ReleaseYear     []Distribution
	WatchYear       []Distribution
	UpdatedAt       time.Time
}

// SampleTitle is one title contributing to a ranked entity.
type SampleTitle struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	PosterPath string    `json:"posterPath,omitempty"`
	MediaType  MediaType `json:"mediaType"`
}

// OtherStat is one ranked entity row for a user, media type and stat kind.
type OtherStat struct {
	UserID      string
	MediaType   MediaType
	Kind        StatKind
	EntityID    string
	Rank        int
	Title       string
	ProfilePath string
	Count       int
	MeanScore   float64
	TimeWatched float64
	List        []SampleTitle
	UpdatedAt   time.Time
}
