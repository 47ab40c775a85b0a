package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/w-ash/narada/internal/models"
)

type playRepo struct {
	db *sql.DB
}

// dedupKey derives the unique identity of a play: always
// (service, played_at, track identity fingerprint), with ms_played folded
// in alongside the fingerprint when present rather than replacing it —
// two distinct tracks scrobbled on the same service at the same coarse
// timestamp with the same ms_played (e.g. both 0 during skip-spam) must
// not collide just because their play duration happens to match.
func dedupKey(p models.Play) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s", p.Service, p.PlayedAt.UTC().Format(time.RFC3339Nano),
		p.Context.String(models.CtxTitle), p.Context.String(models.CtxArtist), p.Context.String(models.CtxAlbum))
	if p.MsPlayed != nil {
		fmt.Fprintf(h, "|%d", *p.MsPlayed)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (r *playRepo) BulkInsert(ctx context.Context, plays []models.Play) (int, error) {
	if len(plays) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin play insert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	inserted := 0
	for _, p := range plays {
		ctxJSON, err := marshalAttrBag(p.Context)
		if err != nil {
			return 0, err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO plays (track_id, service, played_at, ms_played, context, import_timestamp, import_source, import_batch_id, dedup_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(dedup_key) DO NOTHING`,
			p.TrackID, p.Service, p.PlayedAt.UTC().Format(time.RFC3339Nano), p.MsPlayed, ctxJSON,
			now, p.ImportSource, p.ImportBatchID, dedupKey(p))
		if err != nil {
			return 0, fmt.Errorf("insert play: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit play insert: %w", err)
	}
	return inserted, nil
}

func (r *playRepo) GetByBatch(ctx context.Context, batchID string) ([]models.Play, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, track_id, service, played_at, ms_played, context, import_timestamp, import_source, import_batch_id
		FROM plays WHERE import_batch_id = ?`, batchID)
	if err != nil {
		return nil, fmt.Errorf("get plays by batch: %w", err)
	}
	defer rows.Close()
	return scanPlays(rows)
}

func (r *playRepo) ListUnresolved(ctx context.Context, service models.Service, limit int) ([]models.Play, error) {
	query := `
		SELECT id, track_id, service, played_at, ms_played, context, import_timestamp, import_source, import_batch_id
		FROM plays WHERE track_id IS NULL AND service = ? ORDER BY played_at ASC`
	args := []any{service}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unresolved plays: %w", err)
	}
	defer rows.Close()
	return scanPlays(rows)
}

func (r *playRepo) ListNear(ctx context.Context, excludeService models.Service, at time.Time, window time.Duration) ([]models.Play, error) {
	from := at.Add(-window).UTC().Format(time.RFC3339Nano)
	to := at.Add(window).UTC().Format(time.RFC3339Nano)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, track_id, service, played_at, ms_played, context, import_timestamp, import_source, import_batch_id
		FROM plays WHERE service != ? AND played_at BETWEEN ? AND ? ORDER BY played_at ASC`,
		excludeService, from, to)
	if err != nil {
		return nil, fmt.Errorf("list plays near: %w", err)
	}
	defer rows.Close()
	return scanPlays(rows)
}

func (r *playRepo) SetTrackID(ctx context.Context, playID, trackID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE plays SET track_id = ? WHERE id = ?`, trackID, playID)
	if err != nil {
		return fmt.Errorf("set play track id: %w", err)
	}
	return nil
}

func scanPlays(rows *sql.Rows) ([]models.Play, error) {
	var out []models.Play
	for rows.Next() {
		var p models.Play
		var trackID sql.NullInt64
		var msPlayed sql.NullInt64
		var playedAt, importTimestamp, contextJSON string
		if err := rows.Scan(&p.ID, &trackID, &p.Service, &playedAt, &msPlayed, &contextJSON,
			&importTimestamp, &p.ImportSource, &p.ImportBatchID); err != nil {
			return nil, err
		}

		if trackID.Valid {
			v := trackID.Int64
			p.TrackID = &v
		}
		if msPlayed.Valid {
			v := msPlayed.Int64
			p.MsPlayed = &v
		}

		var err error
		p.PlayedAt, err = parseTime(playedAt)
		if err != nil {
			return nil, err
		}
		p.ImportTimestamp, err = parseTime(importTimestamp)
		if err != nil {
			return nil, err
		}
		p.Context, err = unmarshalAttrBag(contextJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
