// Package likesync implements like sync (C11): importing a source
// service's liked/loved tracks into the internal store, and exporting
// internal likes to a target service.
package likesync

import (
	"context"
	"fmt"
	"time"

	"github.com/w-ash/narada/internal/batch"
	"github.com/w-ash/narada/internal/connector"
	"github.com/w-ash/narada/internal/identity"
	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/models"
	"github.com/w-ash/narada/internal/repository"
)

// Importer imports a source service's liked tracks into the internal
// store, per spec.md §4.11's import algorithm.
type Importer struct {
	repos   *repository.Repositories
	lister  connector.LikedTracksLister
	source  models.Service
	userID  string
	log     logging.Logger
}

// NewImporter builds an Importer for (userID, source).
func NewImporter(repos *repository.Repositories, lister connector.LikedTracksLister, source models.Service, userID string, log logging.Logger) *Importer {
	return &Importer{repos: repos, lister: lister, source: source, userID: userID, log: log}
}

// Run pages through the source's liked tracks, writing TrackLike rows for
// both the source and "internal", advancing the checkpoint periodically
// and at the end, and applying the early-termination rule from spec.md
// §4.9 (shared with plays).
func (im *Importer) Run(ctx context.Context) (models.OperationResult, error) {
	result := models.OperationResult{Success: true}

	checkpoint, err := im.repos.Checkpoints.Get(ctx, im.userID, im.source, models.EntityLikes)
	if err != nil {
		return result, fmt.Errorf("load checkpoint: %w", err)
	}

	cursor := checkpoint.Cursor
	batchesSinceFlush := 0
	const flushEveryNBatches = 10

	for {
		select {
		case <-ctx.Done():
			result.Cancelled = true
			return result, nil
		default:
		}

		records, nextCursor, err := im.lister.GetLikedTracks(ctx, 50, cursor)
		if err != nil {
			result.Success = false
			result.AddError("fetch liked tracks failed: %v", err)
			return result, nil
		}
		if len(records) == 0 {
			break
		}

		alreadyPresent := 0
		newThisPage := 0
		for _, rec := range records {
			result.Processed++

			track, err := im.repos.Tracks.FindByExternal(ctx, im.source, rec.ExternalID)
			if err != nil {
				newTrack := models.Track{
					Title:   rec.Raw.String("title"),
					Artists: []models.Artist{{Name: rec.Raw.String("artist")}},
				}
				if !newTrack.Valid() {
					result.AddError("skip liked %s: missing title or artist", rec.ExternalID)
					continue
				}
				saved, saveErr := im.repos.Tracks.Save(ctx, newTrack)
				if saveErr != nil {
					result.AddError("create track for liked %s: %v", rec.ExternalID, saveErr)
					continue
				}
				connectorTracks, ctErr := im.repos.ConnectorTracks.BulkUpsert(ctx, []models.ConnectorTrack{{
					Service:     im.source,
					ExternalID:  rec.ExternalID,
					Title:       rec.Raw.String("title"),
					Artists:     []models.Artist{{Name: rec.Raw.String("artist")}},
					RawMetadata: rec.Raw,
					LastUpdated: time.Now().UTC(),
				}})
				if ctErr != nil || len(connectorTracks) == 0 {
					result.AddError("create connector track for liked %s: %v", rec.ExternalID, ctErr)
					continue
				}
				if err := im.repos.Mappings.BulkUpsert(ctx, []models.TrackMapping{{
					TrackID: saved.ID, ConnectorTrackID: connectorTracks[0].ID,
					Service: im.source, MatchMethod: models.MatchMethodDirect, Confidence: 100,
				}}); err != nil {
					result.AddError("map new liked track %s: %v", rec.ExternalID, err)
					continue
				}
				track = &saved
				newThisPage++
			} else {
				alreadyPresent++
			}

			now := time.Now().UTC()
			if err := im.repos.Likes.Put(ctx, models.TrackLike{
				TrackID: track.ID, Service: im.source, IsLiked: true, LikedAt: rec.LikedAt, LastSynced: now,
			}); err != nil {
				result.AddError("put like for track %d: %v", track.ID, err)
				continue
			}
			if err := im.repos.Likes.Put(ctx, models.TrackLike{
				TrackID: track.ID, Service: models.ServiceInternal, IsLiked: true, LikedAt: rec.LikedAt, LastSynced: now,
			}); err != nil {
				result.AddError("put internal like for track %d: %v", track.ID, err)
				continue
			}
			result.Imported++
		}

		cursor = nextCursor
		batchesSinceFlush++
		if batchesSinceFlush >= flushEveryNBatches || nextCursor == "" {
			checkpoint = checkpoint.Advance(time.Now().UTC(), cursor)
			if err := im.repos.Checkpoints.Save(ctx, checkpoint); err != nil {
				result.Success = false
				result.AddError("checkpoint save failed: %v", err)
				return result, nil
			}
			batchesSinceFlush = 0
		}

		if nextCursor == "" {
			break
		}

		alreadyRatio := float64(alreadyPresent) / float64(len(records))
		if alreadyRatio >= 0.8 && newThisPage == 0 {
			break
		}
	}

	if batchesSinceFlush > 0 {
		checkpoint = checkpoint.Advance(time.Now().UTC(), cursor)
		if err := im.repos.Checkpoints.Save(ctx, checkpoint); err != nil {
			result.Success = false
			result.AddError("checkpoint save failed: %v", err)
		}
	}

	return result, nil
}

// Exporter exports internal likes to a target service via love_track
// calls, per spec.md §4.11's export algorithm.
type Exporter struct {
	repos     *repository.Repositories
	lover     connector.TrackLover
	resolver  *identity.Resolver
	target    models.Service
	userID    string
	log       logging.Logger
	batchOpts batch.Options
}

// NewExporter builds an Exporter for (userID, target).
func NewExporter(repos *repository.Repositories, lover connector.TrackLover, resolver *identity.Resolver, target models.Service, userID string, log logging.Logger) *Exporter {
	return &Exporter{
		repos: repos, lover: lover, resolver: resolver, target: target, userID: userID, log: log,
		batchOpts: batch.Options{Concurrency: 10, MaxRetries: 2},
	}
}

// Run fetches unsynced likes, resolves each to the target service, and
// calls love_track for ones not already loved there, advancing the
// checkpoint at the end.
func (ex *Exporter) Run(ctx context.Context) (models.OperationResult, error) {
	result := models.OperationResult{Success: true}

	checkpoint, err := ex.repos.Checkpoints.Get(ctx, ex.userID, ex.target, models.EntityLikes)
	if err != nil {
		return result, fmt.Errorf("load checkpoint: %w", err)
	}

	unsynced, err := ex.repos.Likes.GetUnsynced(ctx, models.ServiceInternal, ex.target, true, checkpoint.LastTimestamp)
	if err != nil {
		return result, fmt.Errorf("get unsynced likes: %w", err)
	}
	if len(unsynced) == 0 {
		return result, nil
	}

	trackIDs := make([]int64, len(unsynced))
	for i, l := range unsynced {
		trackIDs[i] = l.TrackID
	}
	tracks, err := ex.repos.Tracks.FindByIDs(ctx, trackIDs)
	if err != nil {
		return result, fmt.Errorf("load tracks for export: %w", err)
	}

	trackList := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		trackList = append(trackList, t)
	}
	resolved, err := ex.resolver.Resolve(ctx, trackList, 0)
	if err != nil {
		return result, fmt.Errorf("resolve tracks for export: %w", err)
	}

	type exportItem struct {
		trackID int64
		artist  string
		title   string
	}
	var toExport []exportItem
	for _, like := range unsynced {
		result.Processed++

		if _, ok := resolved[like.TrackID]; !ok {
			result.Skipped++
			continue
		}

		existingLikes, err := ex.repos.Likes.Get(ctx, like.TrackID, []models.Service{ex.target})
		alreadyLoved := false
		if err == nil {
			for _, l := range existingLikes {
				if l.IsLiked {
					alreadyLoved = true
					break
				}
			}
		}
		if alreadyLoved {
			result.Skipped++
			continue
		}

		t := tracks[like.TrackID]
		toExport = append(toExport, exportItem{trackID: like.TrackID, artist: t.FirstArtist(), title: t.Title})
	}

	loveResults := batch.Run(ctx, toExport, ex.batchOpts, func(ctx context.Context, item exportItem) (bool, error) {
		return ex.lover.LoveTrack(ctx, item.artist, item.title)
	})

	for _, r := range loveResults {
		if r.Err != nil || !r.Output {
			result.AddError("love_track failed for track %d: %v", r.Item.trackID, r.Err)
			continue
		}
		if err := ex.repos.Likes.Put(ctx, models.TrackLike{
			TrackID: r.Item.trackID, Service: ex.target, IsLiked: true, LastSynced: time.Now().UTC(),
		}); err != nil {
			result.AddError("put target like for track %d: %v", r.Item.trackID, err)
			continue
		}
		result.Exported++
	}

	checkpoint = checkpoint.Advance(time.Now().UTC(), "")
	if err := ex.repos.Checkpoints.Save(ctx, checkpoint); err != nil {
		result.Success = false
		result.AddError("checkpoint save failed: %v", err)
	}
	return result, nil
}
