package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/models"
	"github.com/w-ash/narada/internal/playresolve"
)

// spotifyExportRecord mirrors one object in a Spotify personal-data
// export file (spec.md §6).
type spotifyExportRecord struct {
	Timestamp            string `json:"ts"`
	SpotifyTrackURI       string `json:"spotify_track_uri"`
	TrackName             string `json:"master_metadata_track_name"`
	ArtistName            string `json:"master_metadata_album_artist_name"`
	AlbumName             string `json:"master_metadata_album_album_name"`
	MsPlayed              int64  `json:"ms_played"`
	Platform              string `json:"platform"`
	ConnCountry           string `json:"conn_country"`
	ReasonStart           string `json:"reason_start"`
	ReasonEnd             string `json:"reason_end"`
	Shuffle               bool   `json:"shuffle"`
	Skipped               bool   `json:"skipped"`
	Offline               bool   `json:"offline"`
	IncognitoMode         bool   `json:"incognito_mode"`
}

// SpotifyFileFetcher reads an entire export file on its first Fetch call
// and returns an empty slice thereafter, satisfying the Fetcher interface
// for the "file" strategy (spec.md §4.9).
type SpotifyFileFetcher struct {
	Path     string
	consumed bool
	log      logging.Logger
}

// NewSpotifyFileFetcher builds a fetcher reading path.
func NewSpotifyFileFetcher(path string, log logging.Logger) *SpotifyFileFetcher {
	return &SpotifyFileFetcher{Path: path, log: log}
}

func (f *SpotifyFileFetcher) Fetch(ctx context.Context) ([]RawPlay, error) {
	if f.consumed {
		return nil, nil
	}
	f.consumed = true

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read export file: %w", err)
	}

	var records []spotifyExportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse export file: %w", err)
	}

	out := make([]RawPlay, 0, len(records))
	for _, rec := range records {
		if rec.SpotifyTrackURI == "" || rec.TrackName == "" {
			if f.log != nil {
				f.log.Warn("skipping malformed export record", "ts", rec.Timestamp)
			}
			continue
		}
		playedAt, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			if f.log != nil {
				f.log.Warn("skipping record with unparsable timestamp", "ts", rec.Timestamp)
			}
			continue
		}

		ms := rec.MsPlayed
		ctxBag := models.AttrBag{
			models.CtxTitle:       models.StrAttr(rec.TrackName),
			models.CtxArtist:      models.StrAttr(rec.ArtistName),
			models.CtxAlbum:       models.StrAttr(rec.AlbumName),
			models.CtxPlatform:    models.StrAttr(rec.Platform),
			models.CtxCountry:     models.StrAttr(rec.ConnCountry),
			models.CtxReasonStart: models.StrAttr(rec.ReasonStart),
			models.CtxReasonEnd:   models.StrAttr(rec.ReasonEnd),
			models.CtxShuffle:     models.BoolAttr(rec.Shuffle),
			models.CtxSkipped:     models.BoolAttr(rec.Skipped),
			models.CtxOffline:     models.BoolAttr(rec.Offline),
			models.CtxIncognito:   models.BoolAttr(rec.IncognitoMode),
			models.CtxSpotifyURI:  models.StrAttr(rec.SpotifyTrackURI),
		}

		out = append(out, RawPlay{
			PlayedAt: playedAt.UTC(),
			MsPlayed: &ms,
			Context:  ctxBag,
		})
	}
	return out, nil
}

// SpotifyFileResolver serves playresolve.Resolver outcomes for raw plays
// by their preserved URI: NewSpotifyFileResolver resolves every record up
// front with one ResolveBatch call, and Resolve only reads that cache.
type SpotifyFileResolver struct {
	resolved map[string]*int64
}

// NewSpotifyFileResolver pre-resolves every record in records via r, then
// returns a Resolver that just looks up the cached outcome per URI.
func NewSpotifyFileResolver(ctx context.Context, r *playresolve.Resolver, records []playresolve.OriginalMetadata) (*SpotifyFileResolver, error) {
	resolutions, err := r.ResolveBatch(ctx, records)
	if err != nil {
		return nil, err
	}
	resolved := make(map[string]*int64, len(resolutions))
	for _, res := range resolutions {
		resolved[res.URI] = res.TrackID
	}
	return &SpotifyFileResolver{resolved: resolved}, nil
}

func (r *SpotifyFileResolver) Resolve(ctx context.Context, raw RawPlay) (*int64, error) {
	uri := raw.Context.String(models.CtxSpotifyURI)
	return r.resolved[uri], nil
}
