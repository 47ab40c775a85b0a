// Package repository implements the persistence layer (spec.md §4.4, C4):
// a single unit-of-work exposing sub-repositories per entity family, backed
// by an embedded SQLite database so the engine runs without a server.
package repository

import (
	"context"
	"time"

	"github.com/w-ash/narada/internal/models"
)

// TrackRepository is the Track sub-repository contract (spec.md §4.4).
type TrackRepository interface {
	// FindByIDs returns the tracks present among ids, keyed by id. Missing
	// ids are simply absent from the result (not an error).
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Track, error)
	// FindByExternal looks a track up via an existing mapping to a
	// connector track on the given service.
	FindByExternal(ctx context.Context, service models.Service, externalID string) (*models.Track, error)
	// Save inserts a track with no ID, or updates one that already has an
	// ID. Returns the track with ID populated.
	Save(ctx context.Context, track models.Track) (models.Track, error)
	// ListForMatching returns every non-deleted track, for use by matching
	// providers that need to scan the full local library.
	ListForMatching(ctx context.Context) ([]models.Track, error)
}

// ConnectorTrackRepository is the ConnectorTrack sub-repository contract.
type ConnectorTrackRepository interface {
	// BulkUpsert creates-or-updates connector track rows keyed on
	// (Service, ExternalID), returning each with its ID populated.
	BulkUpsert(ctx context.Context, records []models.ConnectorTrack) ([]models.ConnectorTrack, error)
	GetByID(ctx context.Context, id int64) (*models.ConnectorTrack, error)
	GetByExternal(ctx context.Context, service models.Service, externalID string) (*models.ConnectorTrack, error)
}

// MappingRepository is the TrackMapping sub-repository contract.
type MappingRepository interface {
	// BulkUpsert writes mappings keyed on (TrackID, ConnectorTrackID). A
	// write for a (TrackID, Service) pair that already has a non-deleted
	// mapping to another connector track soft-deletes that row first, so
	// at most one mapping per (TrackID, Service) stays active (spec.md §4.4).
	BulkUpsert(ctx context.Context, records []models.TrackMapping) error
	// GetMappingsByTrack returns, for each requested track id, the map of
	// service -> external id for its active mappings. If service is
	// non-empty, results are restricted to that service.
	GetMappingsByTrack(ctx context.Context, ids []int64, service models.Service) (map[int64]map[models.Service]string, error)
	// GetMappingInfo returns the stored confidence/method/evidence for a
	// specific (track, service, external id) mapping.
	GetMappingInfo(ctx context.Context, trackID int64, service models.Service, externalID string) (*models.TrackMapping, error)
}

// MetricRepository is the TrackMetric sub-repository contract.
type MetricRepository interface {
	// Get returns, for each track id with a fresh-enough value, the metric
	// value on the given service. maxAge of 0 means "no freshness filter".
	Get(ctx context.Context, trackIDs []int64, metric string, service models.Service, maxAge time.Duration) (map[int64]float64, error)
	// BulkPut upserts (track, service, metric, value) tuples, setting
	// ObservedAt to now.
	BulkPut(ctx context.Context, tuples []models.TrackMetric) error
}

// LikeRepository is the TrackLike sub-repository contract.
type LikeRepository interface {
	Get(ctx context.Context, trackID int64, services []models.Service) ([]models.TrackLike, error)
	Put(ctx context.Context, like models.TrackLike) error
	// GetUnsynced returns likes of value isLiked recorded on source that
	// have not yet been reconciled onto target, optionally only those
	// observed since the given time.
	GetUnsynced(ctx context.Context, source, target models.Service, isLiked bool, since *time.Time) ([]models.TrackLike, error)
	GetAllLiked(ctx context.Context, service models.Service, isLiked bool) ([]models.TrackLike, error)
}

// PlayRepository is the Play sub-repository contract.
type PlayRepository interface {
	// BulkInsert inserts plays, skipping any whose dedup key already
	// exists. Returns the count actually inserted.
	BulkInsert(ctx context.Context, plays []models.Play) (int, error)
	GetByBatch(ctx context.Context, batchID string) ([]models.Play, error)
	// ListUnresolved returns persisted plays with a null track id, for
	// SPEC_FULL.md S4 (re-resolution of previously-unresolved plays).
	ListUnresolved(ctx context.Context, service models.Service, limit int) ([]models.Play, error)
	// SetTrackID attaches a resolved track id to a previously-unresolved
	// play.
	SetTrackID(ctx context.Context, playID, trackID int64) error
	// ListNear returns plays from services other than excludeService whose
	// played_at falls within window of at, for cross-service play-time
	// correlation (SPEC_FULL.md S2).
	ListNear(ctx context.Context, excludeService models.Service, at time.Time, window time.Duration) ([]models.Play, error)
}

// CheckpointRepository is the SyncCheckpoint sub-repository contract.
type CheckpointRepository interface {
	Get(ctx context.Context, userID string, service models.Service, entity models.EntityType) (models.SyncCheckpoint, error)
	Save(ctx context.Context, checkpoint models.SyncCheckpoint) error
}

// PlaylistRepository is the Playlist sub-repository contract.
type PlaylistRepository interface {
	Save(ctx context.Context, playlist models.Playlist) (models.Playlist, error)
	Get(ctx context.Context, id int64) (*models.Playlist, error)
	SetConnectorID(ctx context.Context, id int64, service models.Service, externalID string) error
}

// Repositories bundles every sub-repository behind one handle, the unit of
// work a use-case is constructed with.
type Repositories struct {
	Tracks          TrackRepository
	ConnectorTracks ConnectorTrackRepository
	Mappings        MappingRepository
	Metrics         MetricRepository
	Likes           LikeRepository
	Plays           PlayRepository
	Checkpoints     CheckpointRepository
	Playlists       PlaylistRepository
}
