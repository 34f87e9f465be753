package repository

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/watchstats/internal/domain"
)

// EntriesRepository provides persistence helpers for list entries.
type EntriesRepository struct {
	pool *pgxpool.Pool
}

const entryColumns = `
    id::text,
    owner_id::text,
    media_id,
    media_type,
    status,
    progress,
    score,
    start_date,
    end_date,
    title,
    poster,
    metadata,
    created_at,
    updated_at
`

// EntryCreateParams bundles the fields required to create an entry.
type EntryCreateParams struct {
	OwnerID   string
	MediaID   string
	MediaType domain.MediaType
	Status    domain.Status
	Progress  int
	Score     *float64
	StartDate string
	EndDate   string
	Title     string
	Poster    string
	Metadata  *domain.MediaMetadata
}

// Create inserts a new entry and returns the stored row.
func (r *EntriesRepository) Create(ctx context.Context, params EntryCreateParams) (domain.ListEntry, error) {
	metadataJSON, err := marshalMetadata(params.Metadata)
	if err != nil {
		return domain.ListEntry{}, err
	}

	query := fmt.Sprintf(`
        INSERT INTO list_entries (id, owner_id, media_id, media_type, status, progress, score, start_date, end_date, title, poster, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING %s
    `, entryColumns)

	row := r.pool.QueryRow(ctx, query,
		uuid.NewString(),
		params.OwnerID,
		params.MediaID,
		string(params.MediaType),
		string(params.Status),
		params.Progress,
		params.Score,
		params.StartDate,
		params.EndDate,
		params.Title,
		params.Poster,
		metadataJSON,
	)
	return scanEntry(row)
}

// ListByOwner returns every entry owned by the user, newest first.
func (r *EntriesRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.ListEntry, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM list_entries WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, entryColumns)
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.ListEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpdateMetadata replaces the metadata snapshot of an entry.
func (r *EntriesRepository) UpdateMetadata(ctx context.Context, id string, metadata *domain.MediaMetadata) error {
	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE list_entries SET metadata = $2, updated_at = now() WHERE id = $1`, id, metadataJSON)
	if err != nil {
		return fmt.Errorf("update entry metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEntry(row pgx.Row) (domain.ListEntry, error) {
	var (
		entry        domain.ListEntry
		mediaType    string
		status       string
		metadataJSON []byte
	)

	err := row.Scan(
		&entry.ID,
		&entry.OwnerID,
		&entry.MediaID,
		&mediaType,
		&status,
		&entry.Progress,
		&entry.Score,
		&entry.StartDate,
		&entry.EndDate,
		&entry.Title,
		&entry.Poster,
		&metadataJSON,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ListEntry{}, ErrNotFound
		}
		return domain.ListEntry{}, err
	}

	entry.MediaType = domain.MediaType(mediaType)
	entry.Status = domain.Status(status)

	if len(metadataJSON) > 0 && string(metadataJSON) != "null" {
		var metadata domain.MediaMetadata
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			entry.MetadataErr = fmt.Errorf("decode metadata: %w", err)
		} else {
			entry.Metadata = &metadata
		}
	}

	return entry, nil
}

func marshalMetadata(metadata *domain.MediaMetadata) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	return json.Marshal(metadata)
}
