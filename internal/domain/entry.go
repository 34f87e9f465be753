package domain

import (
	"fmt"
	"time"
)

// MediaType distinguishes feature films from episodic shows.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// ParseMediaType validates a raw media type string.
func ParseMediaType(raw string) (MediaType, error) {
	switch MediaType(raw) {
	case MediaTypeMovie, MediaTypeTV:
		return MediaType(raw), nil
	default:
		return "", fmt.Errorf("unknown media type %q", raw)
	}
}

// Status is the user's relationship with a title.
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusWatching  Status = "watching"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
	StatusDropped   Status = "dropped"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusWatching, StatusCompleted, StatusPaused, StatusDropped:
		return true
	}
	return false
}

// ListEntry is one user's record of one media title, with the metadata snapshot
// captured when the entry was last written.
type ListEntry struct {
	ID          string
	OwnerID     string
	MediaID     string
	MediaType   MediaType
	Status      Status
	Progress    int
	Score       *float64
	StartDate   string
	EndDate     string
	Title       string
	Poster      string
	Metadata    *MediaMetadata
	// MetadataErr is set when the stored snapshot could not be decoded.
	MetadataErr error
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MediaMetadata mirrors the subset of the TMDB details payload the stats engine reads.
type MediaMetadata struct {
	Runtime             int       `json:"runtime,omitempty"`
	EpisodeRunTime      []int     `json:"episode_run_time,omitempty"`
	NumberOfEpisodes    int       `json:"number_of_episodes,omitempty"`
	VoteAverage         float64   `json:"vote_average"`
	VoteCount           int       `json:"vote_count"`
	ReleaseDate         string    `json:"release_date,omitempty"`
	FirstAirDate        string    `json:"first_air_date,omitempty"`
	OriginCountry       []string  `json:"origin_country,omitempty"`
	ProductionCountries []Country `json:"production_countries,omitempty"`
	ProductionCompanies []Company `json:"production_companies,omitempty"`
	Genres              []Tag     `json:"genres,omitempty"`
	Tags                []Tag     `json:"tags,omitempty"`
	Cast                []Person  `json:"cast,omitempty"`
	Crew                []Person  `json:"crew,omitempty"`
}

// Tag is a named category such as a genre or keyword.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Person is a cast or crew credit.
type Person struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ProfilePath string `json:"profile_path,omitempty"`
	Character   string `json:"character,omitempty"`
	Job         string `json:"job,omitempty"`
}

// Company is a production company.
type Company struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LogoPath string `json:"logo_path,omitempty"`
}

// Country is a production country.
type Country struct {
	ISO31661 string `json:"iso_3166_1"`
	Name     string `json:"name"`
}

// ReleaseDateString returns the release date for movies or first air date for shows.
func (m *MediaMetadata) ReleaseDateString() string {
	if m == nil {
		return ""
	}
	if m.ReleaseDate != "" {
		return m.ReleaseDate
	}
	return m.FirstAirDate
}

// Countries returns origin countries, falling back to production country codes.
func (m *MediaMetadata) Countries() []string {
	if m == nil {
		return nil
	}
	if len(m.OriginCountry) > 0 {
		return m.OriginCountry
	}
	codes := make([]string, 0, len(m.ProductionCountries))
	for _, c := range m.ProductionCountries {
		if c.ISO31661 != "" {
			codes = append(codes, c.ISO31661)
		}
	}
	return codes
}
