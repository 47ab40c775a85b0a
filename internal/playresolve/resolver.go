// Package playresolve implements the Spotify play resolver (C10): a
// three-stage pipeline mapping an external play's track URI to an
// internal track id, reusable in shape for any service with a
// relinking-aware direct lookup plus search fallback.
package playresolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/w-ash/narada/internal/batch"
	"github.com/w-ash/narada/internal/connector"
	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/matching"
	"github.com/w-ash/narada/internal/models"
	"github.com/w-ash/narada/internal/repository"
)

const searchFallbackMinConfidence = 70

// Resolution is the uniform record every stage returns (spec.md §4.10).
type Resolution struct {
	URI        string
	TrackID    *int64
	Method     models.MatchMethod
	Confidence *int
	Evidence   *models.ConfidenceEvidence
	Metadata   models.AttrBag
}

// OriginalMetadata is the preserved title/artist/album/behavioral-flags
// bag a caller supplies per URI, used for stage-2 search and carried
// through to stage-3 when nothing resolves.
type OriginalMetadata struct {
	URI    string
	Title  string
	Artist string
	Album  string
	Extra  models.AttrBag
}

// Resolver runs the three-stage pipeline against a Spotify-shaped
// adapter.
type Resolver struct {
	repos     *repository.Repositories
	lookup    connector.BatchTrackLookup
	search    connector.TrackSearcher
	service   models.Service
	log       logging.Logger
	batchOpts batch.Options
}

// New builds a Resolver for service (ordinarily models.ServiceSpotify).
func New(repos *repository.Repositories, lookup connector.BatchTrackLookup, search connector.TrackSearcher, service models.Service, log logging.Logger) *Resolver {
	return &Resolver{
		repos: repos, lookup: lookup, search: search, service: service, log: log,
		batchOpts: batch.Options{Concurrency: 10, MaxRetries: 2},
	}
}

// parseSpotifyURI extracts the 22-char base62 id from a
// "spotify:track:<id>" URI; malformed URIs return ok=false.
func parseSpotifyURI(uri string) (string, bool) {
	const prefix = "spotify:track:"
	if !strings.HasPrefix(uri, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(uri, prefix)
	if len(id) != 22 {
		return "", false
	}
	return id, true
}

// ResolveBatch runs all three stages over records, returning one
// Resolution per record in input order; every record gets a Resolution,
// never silently dropped (spec.md §8 completeness property).
func (r *Resolver) ResolveBatch(ctx context.Context, records []OriginalMetadata) ([]Resolution, error) {
	out := make([]Resolution, len(records))
	// external id -> every index into out/records sharing that id, so a
	// repeated URI within one batch still gets a Resolution written for
	// each occurrence rather than just the last one seen.
	pending := make(map[string][]int)
	malformedIdx := make(map[int]bool)

	extIDs := make([]string, 0, len(records))
	for i, rec := range records {
		id, ok := parseSpotifyURI(rec.URI)
		if !ok {
			malformedIdx[i] = true
			out[i] = Resolution{URI: rec.URI, Method: "", Metadata: rec.Extra}
			continue
		}
		if _, seen := pending[id]; !seen {
			extIDs = append(extIDs, id)
		}
		pending[id] = append(pending[id], i)
	}

	// Stage 1: direct id + relinking.
	raw, err := r.lookup.BatchGetTracks(ctx, extIDs)
	if err != nil {
		return nil, fmt.Errorf("stage 1 batch lookup: %w", err)
	}

	type stage2Item struct {
		idx int
		rec OriginalMetadata
	}
	var stage2 []stage2Item
	for extID, idxs := range pending {
		bag, ok := raw[extID]
		if !ok {
			for _, idx := range idxs {
				stage2 = append(stage2, stage2Item{idx: idx, rec: records[idx]})
			}
			continue
		}

		method := models.MatchMethodDirect
		resolvedID := extID
		if linked := bag.String("linked_from"); linked != "" {
			method = models.MatchMethodRelinkedID
			resolvedID = linked
		}

		trackID, err := r.findOrCreateTrack(ctx, bag, resolvedID)
		if err != nil {
			return nil, fmt.Errorf("stage 1 persist for %s: %w", extID, err)
		}

		for _, idx := range idxs {
			confidence := 100
			out[idx] = Resolution{
				URI:        records[idx].URI,
				TrackID:    &trackID,
				Method:     method,
				Confidence: &confidence,
				Metadata:   bag,
			}
		}
	}

	// Stage 2: search fallback, fanned out through the batch executor
	// (C1) so a slow or rate-limited search provider doesn't serialize
	// the whole batch and transient failures get retried.
	type searchOutcome struct {
		bag   models.AttrBag
		found bool
	}
	searchResults := batch.Run(ctx, stage2, r.batchOpts, func(ctx context.Context, item stage2Item) (searchOutcome, error) {
		bag, found, err := r.search.SearchTrack(ctx, item.rec.Artist, item.rec.Title)
		return searchOutcome{bag: bag, found: found}, err
	})

	var stage3 []stage2Item
	for _, sr := range searchResults {
		item := sr.Item
		rec := item.rec
		if sr.Err != nil || !sr.Output.found {
			stage3 = append(stage3, item)
			continue
		}
		bag := sr.Output.bag

		internal := models.Track{Title: rec.Title, Artists: []models.Artist{{Name: rec.Artist}}}
		var durationPtr *int64
		if ms := bag.Int("duration_ms"); ms != 0 {
			durationPtr = &ms
		}
		confidence, evidence := matching.Score(internal, matching.ExternalTrack{
			Title: bag.String("title"), Artist: bag.String("artist"), DurationMs: durationPtr,
		}, models.MatchMethodArtistTitle)

		if confidence < searchFallbackMinConfidence {
			stage3 = append(stage3, item)
			continue
		}

		extID := bag.String("id")
		trackID, err := r.findOrCreateTrack(ctx, bag, extID)
		if err != nil {
			return nil, fmt.Errorf("stage 2 persist for %s: %w", rec.URI, err)
		}

		out[item.idx] = Resolution{
			URI:        rec.URI,
			TrackID:    &trackID,
			Method:     models.MatchMethodArtistTitle,
			Confidence: &confidence,
			Evidence:   &evidence,
			Metadata:   bag,
		}
	}

	// Stage 3: metadata preservation for whatever remains unresolved.
	for _, item := range stage3 {
		out[item.idx] = Resolution{URI: item.rec.URI, Method: "", Metadata: item.rec.Extra}
	}

	return out, nil
}

const crossServiceTimeWindow = 300 * time.Second
const crossServiceMinConfidence = 70

// FindCrossServiceDuplicates is SPEC_FULL.md S2: given a play freshly
// recorded for r.service, looks up plays already on file from other
// services within the cross-service time window and scores each as a
// possible duplicate of the same listening event via
// matching.CrossServiceTimeMatch, returning only matches at or above
// crossServiceMinConfidence, most confident first.
func (r *Resolver) FindCrossServiceDuplicates(ctx context.Context, play models.Play) ([]matching.DuplicatePlayMatch, error) {
	candidates, err := r.repos.Plays.ListNear(ctx, r.service, play.PlayedAt, crossServiceTimeWindow)
	if err != nil {
		return nil, fmt.Errorf("list nearby plays: %w", err)
	}

	matches := matching.FindPotentialDuplicatePlays(play, candidates, int(crossServiceTimeWindow.Seconds()), crossServiceMinConfidence)
	if len(matches) > 0 {
		r.log.Debug("cross-service duplicate play detected", "service", play.Service, "played_at", play.PlayedAt, "matches", len(matches))
	}
	return matches, nil
}

// findOrCreateTrack looks up an existing mapping for externalID; if none
// exists, it creates the internal track and connector track and persists
// a new mapping, via C4 bulk operations.
func (r *Resolver) findOrCreateTrack(ctx context.Context, bag models.AttrBag, externalID string) (int64, error) {
	existing, err := r.repos.Tracks.FindByExternal(ctx, r.service, externalID)
	if err == nil {
		return existing.ID, nil
	}

	var durationPtr *int64
	if ms := bag.Int("duration_ms"); ms != 0 {
		durationPtr = &ms
	}

	track := models.Track{
		Title:      bag.String("title"),
		Artists:    []models.Artist{{Name: bag.String("artist")}},
		Album:      bag.String("album"),
		DurationMs: durationPtr,
		ISRC:       bag.String("isrc"),
	}
	if !track.Valid() {
		return 0, fmt.Errorf("%w: external record for %s is missing a title or artist", models.ErrInvalidInput, externalID)
	}
	savedTrack, err := r.repos.Tracks.Save(ctx, track)
	if err != nil {
		return 0, fmt.Errorf("save internal track: %w", err)
	}

	connectorTracks, err := r.repos.ConnectorTracks.BulkUpsert(ctx, []models.ConnectorTrack{{
		Service:     r.service,
		ExternalID:  externalID,
		Title:       track.Title,
		Artists:     track.Artists,
		Album:       track.Album,
		DurationMs:  track.DurationMs,
		ISRC:        track.ISRC,
		RawMetadata: bag,
		LastUpdated: time.Now().UTC(),
	}})
	if err != nil || len(connectorTracks) == 0 {
		return 0, fmt.Errorf("save connector track: %w", err)
	}

	if err := r.repos.Mappings.BulkUpsert(ctx, []models.TrackMapping{{
		TrackID:          savedTrack.ID,
		ConnectorTrackID: connectorTracks[0].ID,
		Service:          r.service,
		MatchMethod:      models.MatchMethodDirect,
		Confidence:        100,
	}}); err != nil {
		return 0, fmt.Errorf("save mapping: %w", err)
	}

	return savedTrack.ID, nil
}

// ReresolveUnresolvedPlays is SPEC_FULL.md S4: re-runs the three-stage
// pipeline against plays persisted with a null track id, attaching a
// track id to any that now resolve (e.g. because the catalog has since
// been enriched).
func (r *Resolver) ReresolveUnresolvedPlays(ctx context.Context, limit int) (int, error) {
	unresolved, err := r.repos.Plays.ListUnresolved(ctx, r.service, limit)
	if err != nil {
		return 0, fmt.Errorf("list unresolved plays: %w", err)
	}
	if len(unresolved) == 0 {
		return 0, nil
	}

	records := make([]OriginalMetadata, len(unresolved))
	for i, p := range unresolved {
		uri := p.Context.String(models.CtxSpotifyURI)
		records[i] = OriginalMetadata{
			URI:    uri,
			Title:  p.Context.String(models.CtxTitle),
			Artist: p.Context.String(models.CtxArtist),
			Album:  p.Context.String(models.CtxAlbum),
			Extra:  p.Context,
		}
	}

	resolutions, err := r.ResolveBatch(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("re-resolve batch: %w", err)
	}

	resolvedCount := 0
	for i, res := range resolutions {
		if res.TrackID == nil {
			continue
		}
		if err := r.repos.Plays.SetTrackID(ctx, unresolved[i].ID, *res.TrackID); err != nil {
			return resolvedCount, fmt.Errorf("set track id for play %d: %w", unresolved[i].ID, err)
		}
		resolvedCount++
	}
	return resolvedCount, nil
}
