package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/w-ash/narada/internal/models"
)

type playlistRepo struct {
	db *sql.DB
}

func (r *playlistRepo) Save(ctx context.Context, playlist models.Playlist) (models.Playlist, error) {
	if models.IsReservedName(playlist.Name) {
		return models.Playlist{}, fmt.Errorf("%w: %q is a reserved playlist name", models.ErrInvalidInput, playlist.Name)
	}

	trackIDs, err := marshalIDs(playlist.TrackIDs)
	if err != nil {
		return models.Playlist{}, err
	}
	now := time.Now().UTC()

	if playlist.ID == 0 {
		playlist.CreatedAt = now
		playlist.UpdatedAt = now
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO playlists (name, description, track_ids, created_at, updated_at, deleted)
			VALUES (?, ?, ?, ?, ?, 0)`,
			playlist.Name, playlist.Description, trackIDs,
			now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
		if err != nil {
			return models.Playlist{}, fmt.Errorf("insert playlist: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return models.Playlist{}, fmt.Errorf("playlist insert id: %w", err)
		}
		playlist.ID = id
		return playlist, nil
	}

	playlist.UpdatedAt = now
	_, err = r.db.ExecContext(ctx, `
		UPDATE playlists SET name = ?, description = ?, track_ids = ?, updated_at = ?
		WHERE id = ? AND deleted = 0`,
		playlist.Name, playlist.Description, trackIDs, now.Format(time.RFC3339Nano), playlist.ID)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("update playlist: %w", err)
	}
	return playlist, nil
}

func (r *playlistRepo) Get(ctx context.Context, id int64) (*models.Playlist, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, track_ids, created_at, updated_at
		FROM playlists WHERE id = ? AND deleted = 0`, id)

	var p models.Playlist
	var trackIDs, createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &trackIDs, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}

	p.TrackIDs, err = unmarshalIDs(trackIDs)
	if err != nil {
		return nil, err
	}
	p.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	p.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	connRows, err := r.db.QueryContext(ctx, `SELECT service, external_id FROM playlist_connector_ids WHERE playlist_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get playlist connector ids: %w", err)
	}
	defer connRows.Close()

	p.ConnectorPlaylistIDs = make(map[models.Service]string)
	for connRows.Next() {
		var svc models.Service
		var externalID string
		if err := connRows.Scan(&svc, &externalID); err != nil {
			return nil, err
		}
		p.ConnectorPlaylistIDs[svc] = externalID
	}
	return &p, connRows.Err()
}

func (r *playlistRepo) SetConnectorID(ctx context.Context, id int64, service models.Service, externalID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO playlist_connector_ids (playlist_id, service, external_id)
		VALUES (?, ?, ?)
		ON CONFLICT(playlist_id, service) DO UPDATE SET external_id = excluded.external_id`,
		id, service, externalID)
	if err != nil {
		return fmt.Errorf("set playlist connector id: %w", err)
	}
	return nil
}
