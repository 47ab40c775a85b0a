package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/w-ash/narada/internal/models"
)

type connectorTrackRepo struct {
	db *sql.DB
}

func (r *connectorTrackRepo) BulkUpsert(ctx context.Context, records []models.ConnectorTrack) ([]models.ConnectorTrack, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin connector track upsert: %w", err)
	}
	defer tx.Rollback()

	out := make([]models.ConnectorTrack, 0, len(records))
	now := time.Now().UTC().Format(time.RFC3339Nano)

	for _, rec := range records {
		artists, err := marshalArtists(rec.Artists)
		if err != nil {
			return nil, err
		}
		raw, err := marshalAttrBag(rec.RawMetadata)
		if err != nil {
			return nil, err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO connector_tracks (service, external_id, title, artists, album, duration_ms, release_date, isrc, raw_metadata, last_updated, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT(service, external_id) DO UPDATE SET
				title = excluded.title,
				artists = excluded.artists,
				album = excluded.album,
				duration_ms = excluded.duration_ms,
				release_date = excluded.release_date,
				isrc = excluded.isrc,
				raw_metadata = excluded.raw_metadata,
				last_updated = excluded.last_updated,
				deleted = 0`,
			rec.Service, rec.ExternalID, rec.Title, artists, rec.Album, rec.DurationMs,
			nullableTimeStr(rec.ReleaseDate), rec.ISRC, raw, now)
		if err != nil {
			return nil, fmt.Errorf("upsert connector track %s/%s: %w", rec.Service, rec.ExternalID, err)
		}

		id, err := res.LastInsertId()
		if err != nil || id == 0 {
			row := tx.QueryRowContext(ctx, `SELECT id FROM connector_tracks WHERE service = ? AND external_id = ?`, rec.Service, rec.ExternalID)
			if err := row.Scan(&id); err != nil {
				return nil, fmt.Errorf("lookup connector track id: %w", err)
			}
		}
		rec.ID = id
		out = append(out, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit connector track upsert: %w", err)
	}
	return out, nil
}

func (r *connectorTrackRepo) GetByID(ctx context.Context, id int64) (*models.ConnectorTrack, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, service, external_id, title, artists, album, duration_ms, release_date, isrc, raw_metadata, last_updated
		FROM connector_tracks WHERE id = ? AND deleted = 0`, id)
	return scanConnectorTrack(row)
}

func (r *connectorTrackRepo) GetByExternal(ctx context.Context, service models.Service, externalID string) (*models.ConnectorTrack, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, service, external_id, title, artists, album, duration_ms, release_date, isrc, raw_metadata, last_updated
		FROM connector_tracks WHERE service = ? AND external_id = ? AND deleted = 0`, service, externalID)
	return scanConnectorTrack(row)
}

func scanConnectorTrack(row rowScanner) (*models.ConnectorTrack, error) {
	var c models.ConnectorTrack
	var artists, rawMetadata, releaseDate sql.NullString
	var lastUpdated string
	var durationMs sql.NullInt64

	err := row.Scan(&c.ID, &c.Service, &c.ExternalID, &c.Title, &artists, &c.Album, &durationMs,
		&releaseDate, &c.ISRC, &rawMetadata, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Artists, err = unmarshalArtists(artists.String)
	if err != nil {
		return nil, err
	}
	c.RawMetadata, err = unmarshalAttrBag(rawMetadata.String)
	if err != nil {
		return nil, err
	}
	if durationMs.Valid {
		v := durationMs.Int64
		c.DurationMs = &v
	}
	c.ReleaseDate, err = parseNullableTime(releaseDate)
	if err != nil {
		return nil, err
	}
	c.LastUpdated, err = parseTime(lastUpdated)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
