package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/w-ash/narada/internal/models"
)

type checkpointRepo struct {
	db *sql.DB
}

func (r *checkpointRepo) Get(ctx context.Context, userID string, service models.Service, entity models.EntityType) (models.SyncCheckpoint, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, service, entity_type, last_timestamp, cursor
		FROM sync_checkpoints WHERE user_id = ? AND service = ? AND entity_type = ?`, userID, service, entity)

	var c models.SyncCheckpoint
	var lastTimestamp sql.NullString
	err := row.Scan(&c.UserID, &c.Service, &c.EntityType, &lastTimestamp, &c.Cursor)
	if err == sql.ErrNoRows {
		return models.SyncCheckpoint{UserID: userID, Service: service, EntityType: entity}, nil
	}
	if err != nil {
		return models.SyncCheckpoint{}, fmt.Errorf("get checkpoint: %w", err)
	}
	c.LastTimestamp, err = parseNullableTime(lastTimestamp)
	if err != nil {
		return models.SyncCheckpoint{}, err
	}
	return c, nil
}

func (r *checkpointRepo) Save(ctx context.Context, checkpoint models.SyncCheckpoint) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_checkpoints (user_id, service, entity_type, last_timestamp, cursor)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, service, entity_type) DO UPDATE SET
			last_timestamp = excluded.last_timestamp, cursor = excluded.cursor`,
		checkpoint.UserID, checkpoint.Service, checkpoint.EntityType,
		nullableTimeStr(checkpoint.LastTimestamp), checkpoint.Cursor)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
