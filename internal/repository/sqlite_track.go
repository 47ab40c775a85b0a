package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/w-ash/narada/internal/models"
)

type trackRepo struct {
	db *sql.DB
}

func (r *trackRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Track, error) {
	out := make(map[int64]models.Track, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT id, title, artists, album, duration_ms, release_date, isrc, created_at, updated_at
		FROM tracks WHERE deleted = 0 AND id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find tracks by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

func (r *trackRepo) FindByExternal(ctx context.Context, service models.Service, externalID string) (*models.Track, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT t.id, t.title, t.artists, t.album, t.duration_ms, t.release_date, t.isrc, t.created_at, t.updated_at
		FROM tracks t
		JOIN track_mappings m ON m.track_id = t.id AND m.deleted = 0
		JOIN connector_tracks c ON c.id = m.connector_track_id
		WHERE t.deleted = 0 AND c.service = ? AND c.external_id = ?`, service, externalID)

	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *trackRepo) Save(ctx context.Context, track models.Track) (models.Track, error) {
	artists, err := marshalArtists(track.Artists)
	if err != nil {
		return models.Track{}, err
	}
	now := time.Now().UTC()

	if track.ID == 0 {
		track.CreatedAt = now
		track.UpdatedAt = now
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO tracks (title, artists, album, duration_ms, release_date, isrc, created_at, updated_at, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			track.Title, artists, track.Album, track.DurationMs, nullableTimeStr(track.ReleaseDate), track.ISRC,
			now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
		if err != nil {
			return models.Track{}, fmt.Errorf("insert track: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return models.Track{}, fmt.Errorf("track insert id: %w", err)
		}
		track.ID = id
		return track, nil
	}

	track.UpdatedAt = now
	_, err = r.db.ExecContext(ctx, `
		UPDATE tracks SET title = ?, artists = ?, album = ?, duration_ms = ?, release_date = ?, isrc = ?, updated_at = ?
		WHERE id = ? AND deleted = 0`,
		track.Title, artists, track.Album, track.DurationMs, nullableTimeStr(track.ReleaseDate), track.ISRC,
		now.Format(time.RFC3339Nano), track.ID)
	if err != nil {
		return models.Track{}, fmt.Errorf("update track: %w", err)
	}
	return track, nil
}

func (r *trackRepo) ListForMatching(ctx context.Context) ([]models.Track, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, artists, album, duration_ms, release_date, isrc, created_at, updated_at
		FROM tracks WHERE deleted = 0`)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []models.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (models.Track, error) {
	var t models.Track
	var artists, releaseDate sql.NullString
	var createdAt, updatedAt string
	var durationMs sql.NullInt64

	if err := row.Scan(&t.ID, &t.Title, &artists, &t.Album, &durationMs, &releaseDate, &t.ISRC, &createdAt, &updatedAt); err != nil {
		return models.Track{}, err
	}

	var err error
	t.Artists, err = unmarshalArtists(artists.String)
	if err != nil {
		return models.Track{}, err
	}
	if durationMs.Valid {
		v := durationMs.Int64
		t.DurationMs = &v
	}
	t.ReleaseDate, err = parseNullableTime(releaseDate)
	if err != nil {
		return models.Track{}, err
	}
	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return models.Track{}, err
	}
	t.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return models.Track{}, err
	}
	return t, nil
}
