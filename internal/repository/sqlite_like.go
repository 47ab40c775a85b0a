package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/w-ash/narada/internal/models"
)

type likeRepo struct {
	db *sql.DB
}

func (r *likeRepo) Get(ctx context.Context, trackID int64, services []models.Service) ([]models.TrackLike, error) {
	if len(services) == 0 {
		rows, err := r.db.QueryContext(ctx, `
			SELECT track_id, service, is_liked, liked_at, last_synced FROM track_likes WHERE track_id = ?`, trackID)
		if err != nil {
			return nil, fmt.Errorf("get likes: %w", err)
		}
		defer rows.Close()
		return scanLikes(rows)
	}

	placeholders := make([]string, len(services))
	args := make([]any, 0, len(services)+1)
	args = append(args, trackID)
	for i, s := range services {
		placeholders[i] = "?"
		args = append(args, s)
	}
	query := fmt.Sprintf(`
		SELECT track_id, service, is_liked, liked_at, last_synced FROM track_likes
		WHERE track_id = ? AND service IN (%s)`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get likes: %w", err)
	}
	defer rows.Close()
	return scanLikes(rows)
}

func scanLikes(rows *sql.Rows) ([]models.TrackLike, error) {
	var out []models.TrackLike
	for rows.Next() {
		var l models.TrackLike
		var likedAt sql.NullString
		var lastSynced string
		if err := rows.Scan(&l.TrackID, &l.Service, &l.IsLiked, &likedAt, &lastSynced); err != nil {
			return nil, err
		}
		var err error
		l.LikedAt, err = parseNullableTime(likedAt)
		if err != nil {
			return nil, err
		}
		l.LastSynced, err = parseTime(lastSynced)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *likeRepo) Put(ctx context.Context, like models.TrackLike) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO track_likes (track_id, service, is_liked, liked_at, last_synced)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(track_id, service) DO UPDATE SET
			is_liked = excluded.is_liked, liked_at = excluded.liked_at, last_synced = excluded.last_synced`,
		like.TrackID, like.Service, like.IsLiked, nullableTimeStr(like.LikedAt), now)
	if err != nil {
		return fmt.Errorf("put like: %w", err)
	}
	return nil
}

func (r *likeRepo) GetUnsynced(ctx context.Context, source, target models.Service, isLiked bool, since *time.Time) ([]models.TrackLike, error) {
	query := `
		SELECT s.track_id, s.service, s.is_liked, s.liked_at, s.last_synced
		FROM track_likes s
		LEFT JOIN track_likes t ON t.track_id = s.track_id AND t.service = ?
		WHERE s.service = ? AND s.is_liked = ? AND (t.track_id IS NULL OR t.is_liked != s.is_liked)`
	args := []any{target, source, isLiked}

	if since != nil {
		query += " AND s.last_synced >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get unsynced likes: %w", err)
	}
	defer rows.Close()
	return scanLikes(rows)
}

func (r *likeRepo) GetAllLiked(ctx context.Context, service models.Service, isLiked bool) ([]models.TrackLike, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT track_id, service, is_liked, liked_at, last_synced FROM track_likes
		WHERE service = ? AND is_liked = ?`, service, isLiked)
	if err != nil {
		return nil, fmt.Errorf("get all liked: %w", err)
	}
	defer rows.Close()
	return scanLikes(rows)
}
