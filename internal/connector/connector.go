// Package connector implements the service-adapter capability protocol
// (C5, spec.md §4.5): one adapter per external music service, each
// implementing the subset of capabilities it supports. Adapters normalize
// payloads to UTC and expose raw fields as opaque models.AttrBag values;
// structured extraction belongs to the metric registry (C3) and metadata
// manager (C7), not here.
package connector

import (
	"context"
	"time"

	"github.com/w-ash/narada/internal/models"
)

// LikedRecord is one page entry from GetLikedTracks: the raw connector
// track payload plus when it was liked, if the service reports that.
type LikedRecord struct {
	ExternalID string
	Raw        models.AttrBag
	LikedAt    *time.Time
}

// PlayRecord is one page entry from GetRecentPlays.
type PlayRecord struct {
	ExternalID string
	PlayedAt   time.Time
	MsPlayed   *int64
	Raw        models.AttrBag
}

// PlaylistRecord is a connector's view of a playlist and its ordered items.
type PlaylistRecord struct {
	ExternalID string
	Name       string
	Items      []models.ConnectorPlaylistItem
}

// BatchTrackLookup is the capability behind batch_get_tracks: bulk lookup
// of raw track payloads by external id.
type BatchTrackLookup interface {
	BatchGetTracks(ctx context.Context, externalIDs []string) (map[string]models.AttrBag, error)
}

// ISRCSearcher is search_by_isrc.
type ISRCSearcher interface {
	SearchByISRC(ctx context.Context, isrc string) (models.AttrBag, bool, error)
}

// TrackSearcher is search_track: best-effort fuzzy search by artist+title.
type TrackSearcher interface {
	SearchTrack(ctx context.Context, artist, title string) (models.AttrBag, bool, error)
}

// TrackInfoFetcher is batch_get_track_info: enriched per-user info
// (playcount etc.) keyed by internal track id.
type TrackInfoFetcher interface {
	BatchGetTrackInfo(ctx context.Context, tracks map[int64]models.ConnectorTrack) (map[int64]models.AttrBag, error)
}

// LikedTracksLister is get_liked_tracks, cursor-paginated.
type LikedTracksLister interface {
	GetLikedTracks(ctx context.Context, limit int, cursor string) ([]LikedRecord, string, error)
}

// RecentPlaysLister is get_recent_plays, time-ordered.
type RecentPlaysLister interface {
	GetRecentPlays(ctx context.Context, limit int, fromTime *time.Time, page string) ([]PlayRecord, bool, string, error)
}

// TrackLover is love_track: set-like, idempotent.
type TrackLover interface {
	LoveTrack(ctx context.Context, artist, title string) (bool, error)
}

// PlaylistManager covers get/create/update_playlist.
type PlaylistManager interface {
	GetPlaylist(ctx context.Context, externalID string) (*PlaylistRecord, error)
	CreatePlaylist(ctx context.Context, name, description string, trackExternalIDs []string) (string, error)
	UpdatePlaylist(ctx context.Context, externalID string, trackExternalIDs []string, replace bool) error
}

// Adapter is the interface every service adapter satisfies: it only
// reports which service the adapter talks to. Each concrete adapter
// implements its own subset of the capability interfaces above; callers
// that need a specific capability type-assert against those.
type Adapter interface {
	Service() models.Service
}
