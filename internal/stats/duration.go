package stats

import "github.com/Clark-Hu/watchstats/internal/domain"

// Fallback durations used when metadata carries no usable runtime.
const (
	DefaultMovieMinutes   = 60
	DefaultEpisodeMinutes = 40
)

// DurationHours returns the length of one unit of progress: a whole movie, or one
// episode of a show.
func DurationHours(mediaType domain.MediaType, md *domain.MediaMetadata) float64 {
	minutes := DefaultMovieMinutes
	if mediaType == domain.MediaTypeTV {
		minutes = DefaultEpisodeMinutes
		// only the first listed run time is representative
		if md != nil && len(md.EpisodeRunTime) > 0 && md.EpisodeRunTime[0] > 0 {
			minutes = md.EpisodeRunTime[0]
		}
	} else if md != nil && md.Runtime > 0 {
		minutes = md.Runtime
	}
	return float64(minutes) / 60
}

// UnitsPlanned is the total number of units a title consists of.
func UnitsPlanned(mediaType domain.MediaType, md *domain.MediaMetadata) int {
	if mediaType == domain.MediaTypeTV && md != nil && md.NumberOfEpisodes > 0 {
		return md.NumberOfEpisodes
	}
	return 1
}

// Hours returns watched and planned hours for an entry's progress.
func Hours(mediaType domain.MediaType, md *domain.MediaMetadata, progress int) (watched, planned float64) {
	per := DurationHours(mediaType, md)
	return float64(progress) * per, float64(UnitsPlanned(mediaType, md)) * per
}
