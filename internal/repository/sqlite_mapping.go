package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/w-ash/narada/internal/models"
)

type mappingRepo struct {
	db *sql.DB
}

// BulkUpsert writes mappings keyed on (TrackID, ConnectorTrackID). The
// partial unique index on (track_id, service) WHERE deleted = 0 means a new
// active mapping for a service that already has one must first soft-delete
// the old row, or the insert violates the invariant (spec.md §4.4, §3).
func (r *mappingRepo) BulkUpsert(ctx context.Context, records []models.TrackMapping) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mapping upsert: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		evidence, err := marshalEvidence(rec.Evidence)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE track_mappings SET deleted = 1
			WHERE track_id = ? AND service = ? AND connector_track_id != ? AND deleted = 0`,
			rec.TrackID, rec.Service, rec.ConnectorTrackID); err != nil {
			return fmt.Errorf("retire stale mapping: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO track_mappings (track_id, connector_track_id, service, match_method, confidence, evidence, deleted)
			VALUES (?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT(track_id, connector_track_id) DO UPDATE SET
				match_method = excluded.match_method,
				confidence = excluded.confidence,
				evidence = excluded.evidence,
				deleted = 0`,
			rec.TrackID, rec.ConnectorTrackID, rec.Service, rec.MatchMethod, rec.Confidence, evidence); err != nil {
			return fmt.Errorf("upsert mapping: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mapping upsert: %w", err)
	}
	return nil
}

func (r *mappingRepo) GetMappingsByTrack(ctx context.Context, ids []int64, service models.Service) (map[int64]map[models.Service]string, error) {
	out := make(map[int64]map[models.Service]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT m.track_id, m.service, c.external_id
		FROM track_mappings m
		JOIN connector_tracks c ON c.id = m.connector_track_id
		WHERE m.deleted = 0 AND m.track_id IN (%s)`, strings.Join(placeholders, ","))

	if service != "" {
		query += " AND m.service = ?"
		args = append(args, service)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get mappings by track: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var trackID int64
		var svc models.Service
		var externalID string
		if err := rows.Scan(&trackID, &svc, &externalID); err != nil {
			return nil, err
		}
		if out[trackID] == nil {
			out[trackID] = make(map[models.Service]string)
		}
		out[trackID][svc] = externalID
	}
	return out, rows.Err()
}

func (r *mappingRepo) GetMappingInfo(ctx context.Context, trackID int64, service models.Service, externalID string) (*models.TrackMapping, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT m.track_id, m.connector_track_id, m.service, m.match_method, m.confidence, m.evidence
		FROM track_mappings m
		JOIN connector_tracks c ON c.id = m.connector_track_id
		WHERE m.deleted = 0 AND m.track_id = ? AND m.service = ? AND c.external_id = ?`,
		trackID, service, externalID)

	var m models.TrackMapping
	var evidence string
	err := row.Scan(&m.TrackID, &m.ConnectorTrackID, &m.Service, &m.MatchMethod, &m.Confidence, &evidence)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Evidence, err = unmarshalEvidence(evidence)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
