package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/w-ash/narada/internal/models"
)

type metricRepo struct {
	db *sql.DB
}

func (r *metricRepo) Get(ctx context.Context, trackIDs []int64, metric string, service models.Service, maxAge time.Duration) (map[int64]float64, error) {
	out := make(map[int64]float64, len(trackIDs))
	if len(trackIDs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(trackIDs))
	args := make([]any, 0, len(trackIDs)+3)
	for i, id := range trackIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT track_id, value, observed_at FROM track_metrics
		WHERE metric_name = ? AND service = ? AND track_id IN (%s)`, strings.Join(placeholders, ","))
	fullArgs := append([]any{metric, service}, args...)

	rows, err := r.db.QueryContext(ctx, query, fullArgs...)
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	for rows.Next() {
		var trackID int64
		var value float64
		var observedAt string
		if err := rows.Scan(&trackID, &value, &observedAt); err != nil {
			return nil, err
		}
		t, err := parseTime(observedAt)
		if err != nil {
			return nil, err
		}
		if maxAge > 0 && now.Sub(t) >= maxAge {
			continue
		}
		out[trackID] = value
	}
	return out, rows.Err()
}

func (r *metricRepo) BulkPut(ctx context.Context, tuples []models.TrackMetric) error {
	if len(tuples) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin metric put: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, m := range tuples {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO track_metrics (track_id, service, metric_name, value, observed_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(track_id, service, metric_name) DO UPDATE SET
				value = excluded.value, observed_at = excluded.observed_at`,
			m.TrackID, m.Service, m.MetricName, m.Value, now); err != nil {
			return fmt.Errorf("put metric: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit metric put: %w", err)
	}
	return nil
}
