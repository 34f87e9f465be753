package stats

import (
	"fmt"

	"github.com/Clark-Hu/watchstats/internal/config"
	"github.com/Clark-Hu/watchstats/internal/domain"
)

// Scorer picks the score an entry contributes to means. The boolean is false when
// the entry has no usable score.
type Scorer func(entry domain.ListEntry) (float64, bool)

// NewScorer builds the scorer for one of the config score modes.
func NewScorer(mode string, priorMean, priorVotes float64) (Scorer, error) {
	switch mode {
	case config.ScoreModeEntry, "":
		return func(entry domain.ListEntry) (float64, bool) {
			if entry.Score != nil {
				return *entry.Score, true
			}
			return voteAverage(entry.Metadata)
		}, nil
	case config.ScoreModeVote:
		return func(entry domain.ListEntry) (float64, bool) {
			return voteAverage(entry.Metadata)
		}, nil
	case config.ScoreModeWeighted:
		return func(entry domain.ListEntry) (float64, bool) {
			if _, ok := voteAverage(entry.Metadata); !ok {
				return 0, false
			}
			md := entry.Metadata
			return WeightedScore(md.VoteAverage, float64(md.VoteCount), priorMean, priorVotes), true
		}, nil
	default:
		return nil, fmt.Errorf("unknown score mode %q", mode)
	}
}

// WeightedScore blends an average of votes with a prior:
// v/(v+m)*avg + m/(v+m)*prior.
func WeightedScore(avg, votes, prior, priorVotes float64) float64 {
	if votes < 0 {
		votes = 0
	}
	if votes+priorVotes == 0 {
		return avg
	}
	return votes/(votes+priorVotes)*avg + priorVotes/(votes+priorVotes)*prior
}

func voteAverage(md *domain.MediaMetadata) (float64, bool) {
	if md == nil || (md.VoteAverage == 0 && md.VoteCount == 0) {
		return 0, false
	}
	return md.VoteAverage, true
}
