package repository

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/watchstats/internal/domain"
	"github.com/Clark-Hu/watchstats/internal/store"
)

// StatsRepository persists and reads computed rollups.
type StatsRepository struct {
	pool *pgxpool.Pool
}

const overviewColumns = `
    user_id::text,
    media_type,
    count,
    episodes_watched,
    days_watched,
    days_planned,
    mean_score,
    score_dist,
    status_dist,
    country_dist,
    release_year,
    watch_year,
    updated_at
`

const otherColumns = `
    user_id::text,
    media_type,
    stat_kind,
    entity_id,
    rank,
    title,
    profile_path,
    count,
    mean_score,
    time_watched,
    list,
    updated_at
`

var otherCopyColumns = []string{
	"user_id", "media_type", "stat_kind", "entity_id", "rank", "title",
	"profile_path", "count", "mean_score", "time_watched", "list", "updated_at",
}

// RankedListFilters selects a page of ranked rows.
type RankedListFilters struct {
	UserID    string
	MediaType domain.MediaType
	Kind      domain.StatKind
	Limit     int
	Cursor    *RankCursor
}

// RankCursor resumes a ranked listing after the given rank.
type RankCursor struct {
	Rank int `json:"rank"`
}

// RankedListResult returns the paginated payload.
type RankedListResult struct {
	Items      []domain.OtherStat
	NextCursor *string
}

// Replace swaps every rollup of the user for the provided rows in one transaction.
// Readers observe either the previous set or the new one.
func (r *StatsRepository) Replace(ctx context.Context, userID string, overviews []domain.OverviewStat, others []domain.OtherStat) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	now := time.Now().UTC()

	return store.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		// serializes writers of the same user until commit
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
			return fmt.Errorf("lock user stats: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM other_stats WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete other stats: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM overview_stats WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete overview stats: %w", err)
		}

		for _, o := range overviews {
			if err := insertOverview(ctx, tx, userID, o, now); err != nil {
				return err
			}
		}

		if len(others) == 0 {
			return nil
		}
		rows := make([][]any, 0, len(others))
		for _, o := range others {
			list, err := marshalList(o.List)
			if err != nil {
				return err
			}
			rows = append(rows, []any{
				uid, string(o.MediaType), string(o.Kind), o.EntityID, o.Rank, o.Title,
				o.ProfilePath, o.Count, o.MeanScore, o.TimeWatched, list, now,
			})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"other_stats"}, otherCopyColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy other stats: %w", err)
		}
		return nil
	})
}

func insertOverview(ctx context.Context, tx pgx.Tx, userID string, o domain.OverviewStat, now time.Time) error {
	dists := [][]domain.Distribution{o.ScoreDist, o.StatusDist, o.CountryDist, o.ReleaseYear, o.WatchYear}
	payloads := make([][]byte, len(dists))
	for i, d := range dists {
		payload, err := marshalDistribution(d)
		if err != nil {
			return err
		}
		payloads[i] = payload
	}

	const query = `
        INSERT INTO overview_stats (user_id, media_type, count, episodes_watched, days_watched, days_planned,
            mean_score, score_dist, status_dist, country_dist, release_year, watch_year, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
    `
	_, err := tx.Exec(ctx, query, userID, string(o.MediaType), o.Count, o.EpisodesWatched, o.DaysWatched,
		o.DaysPlanned, o.MeanScore, payloads[0], payloads[1], payloads[2], payloads[3], payloads[4], now)
	if err != nil {
		return fmt.Errorf("insert overview stats (%s): %w", o.MediaType, err)
	}
	return nil
}

// GetOverview fetches the overview rollup for a user and media type.
func (r *StatsRepository) GetOverview(ctx context.Context, userID string, mediaType domain.MediaType) (domain.OverviewStat, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return domain.OverviewStat{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM overview_stats WHERE user_id = $1 AND media_type = $2`, overviewColumns)
	row := r.pool.QueryRow(ctx, query, userID, string(mediaType))

	var (
		stat      domain.OverviewStat
		mt        string
		rawScore  []byte
		rawStatus []byte
		rawCtry   []byte
		rawRel    []byte
		rawWatch  []byte
	)
	err := row.Scan(
		&stat.UserID,
		&mt,
		&stat.Count,
		&stat.EpisodesWatched,
		&stat.DaysWatched,
		&stat.DaysPlanned,
		&stat.MeanScore,
		&rawScore,
		&rawStatus,
		&rawCtry,
		&rawRel,
		&rawWatch,
		&stat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OverviewStat{}, ErrNotFound
		}
		return domain.OverviewStat{}, err
	}
	stat.MediaType = domain.MediaType(mt)

	targets := []*[]domain.Distribution{&stat.ScoreDist, &stat.StatusDist, &stat.CountryDist, &stat.ReleaseYear, &stat.WatchYear}
	for i, raw := range [][]byte{rawScore, rawStatus, rawCtry, rawRel, rawWatch} {
		if err := json.Unmarshal(raw, targets[i]); err != nil {
			return domain.OverviewStat{}, fmt.Errorf("decode distribution: %w", err)
		}
	}
	return stat, nil
}

// ListRanked returns ranked rows ordered by rank.
func (r *StatsRepository) ListRanked(ctx context.Context, filters RankedListFilters) (RankedListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}
	if _, err := uuid.Parse(filters.UserID); err != nil {
		return RankedListResult{Items: []domain.OtherStat{}}, nil
	}

	after := 0
	if filters.Cursor != nil {
		after = filters.Cursor.Rank
	}

	query := fmt.Sprintf(`
        SELECT %s FROM other_stats
        WHERE user_id = $1 AND media_type = $2 AND stat_kind = $3 AND rank > $4
        ORDER BY rank
        LIMIT %d
    `, otherColumns, filters.Limit)

	rows, err := r.pool.Query(ctx, query, filters.UserID, string(filters.MediaType), string(filters.Kind), after)
	if err != nil {
		return RankedListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.OtherStat, 0)
	for rows.Next() {
		item, err := scanOtherStat(rows)
		if err != nil {
			return RankedListResult{}, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return RankedListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		token, err := encodeRankCursor(RankCursor{Rank: items[len(items)-1].Rank})
		if err != nil {
			return RankedListResult{}, err
		}
		nextCursor = &token
	}
	return RankedListResult{Items: items, NextCursor: nextCursor}, nil
}

// CountRanked returns how many ranked rows exist for the user, media type and kind.
func (r *StatsRepository) CountRanked(ctx context.Context, userID string, mediaType domain.MediaType, kind domain.StatKind) (int, error) {
	const query = `SELECT COUNT(*) FROM other_stats WHERE user_id = $1 AND media_type = $2 AND stat_kind = $3`
	var n int
	if err := r.pool.QueryRow(ctx, query, userID, string(mediaType), string(kind)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ranked: %w", err)
	}
	return n, nil
}

func scanOtherStat(row pgx.Row) (domain.OtherStat, error) {
	var (
		stat    domain.OtherStat
		mt      string
		kind    string
		rawList []byte
	)
	err := row.Scan(
		&stat.UserID,
		&mt,
		&kind,
		&stat.EntityID,
		&stat.Rank,
		&stat.Title,
		&stat.ProfilePath,
		&stat.Count,
		&stat.MeanScore,
		&stat.TimeWatched,
		&rawList,
		&stat.UpdatedAt,
	)
	if err != nil {
		return domain.OtherStat{}, err
	}
	stat.MediaType = domain.MediaType(mt)
	stat.Kind = domain.StatKind(kind)
	if err := json.Unmarshal(rawList, &stat.List); err != nil {
		return domain.OtherStat{}, fmt.Errorf("decode sample list: %w", err)
	}
	return stat, nil
}

func marshalDistribution(d []domain.Distribution) ([]byte, error) {
	if d == nil {
		d = []domain.Distribution{}
	}
	return json.Marshal(d)
}

func marshalList(list []domain.SampleTitle) ([]byte, error) {
	if list == nil {
		list = []domain.SampleTitle{}
	}
	return json.Marshal(list)
}

func encodeRankCursor(c RankCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeRankCursor parses a cursor token into a RankCursor.
func DecodeRankCursor(token string) (*RankCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor RankCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if cursor.Rank < 0 {
		return nil, fmt.Errorf("invalid cursor rank")
	}
	return &cursor, nil
}
