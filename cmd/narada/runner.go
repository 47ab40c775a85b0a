package main

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/w-ash/narada/internal/config"
	"github.com/w-ash/narada/internal/connector"
	"github.com/w-ash/narada/internal/identity"
	"github.com/w-ash/narada/internal/importer"
	"github.com/w-ash/narada/internal/likesync"
	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/matchprovider"
	"github.com/w-ash/narada/internal/metric"
	"github.com/w-ash/narada/internal/models"
	"github.com/w-ash/narada/internal/playresolve"
	"github.com/w-ash/narada/internal/refresh"
	"github.com/w-ash/narada/internal/repository"
)

// Runner holds everything a command action needs, built once in main and
// threaded through every cli.Command's Action closure.
type Runner struct {
	cfg     *config.Config
	repos   *repository.Repositories
	log     logging.Logger
	metrics *metric.Registry
}

// NewRunner wires a Runner from already-opened dependencies.
func NewRunner(cfg *config.Config, repos *repository.Repositories, log logging.Logger) *Runner {
	return &Runner{cfg: cfg, repos: repos, log: log, metrics: metric.NewDefaultRegistry()}
}

func (r *Runner) spotifyAdapter() (*connector.SpotifyAdapter, error) {
	if r.cfg.SpotifyAccessToken == "" {
		return nil, fmt.Errorf("SPOTIFY_ACCESS_TOKEN not configured")
	}
	token := &oauth2.Token{AccessToken: r.cfg.SpotifyAccessToken, RefreshToken: r.cfg.SpotifyRefreshToken}
	return connector.NewSpotifyAdapter(token, r.log), nil
}

func (r *Runner) lastfmAdapter() (*connector.LastFMAdapter, error) {
	if r.cfg.LastFMAPIKey == "" || r.cfg.LastFMAPISecret == "" || r.cfg.LastFMUsername == "" {
		return nil, fmt.Errorf("LASTFM_API_KEY, LASTFM_API_SECRET, and LASTFM_USERNAME must be set")
	}
	return connector.NewLastFMAdapter(r.cfg.LastFMAPIKey, r.cfg.LastFMAPISecret, r.cfg.LastFMUsername, r.log), nil
}

// lastfmIdentityResolver builds the identity resolver (C6) for resolving
// internal tracks against Last.fm, used by the likes-export path.
func (r *Runner) lastfmIdentityResolver(lf *connector.LastFMAdapter) *identity.Resolver {
	batchSize := r.cfg.APIBatchSizeFor("lastfm")
	provider := matchprovider.New(models.ServiceLastFM, lf, lf, batchSize)
	return identity.New(r.repos, provider, models.ServiceLastFM, r.log)
}

// spotifyPlayResolver builds the C10 play resolver used by the Spotify
// file-import strategy.
func (r *Runner) spotifyPlayResolver(sp *connector.SpotifyAdapter) *playresolve.Resolver {
	return playresolve.New(r.repos, sp, sp, models.ServiceSpotify, r.log)
}

func userOrDefault(user string) string {
	if user == "" {
		return "default"
	}
	return user
}

// PlaysSpotifyFile runs the "plays spotify-file <path>" command (spec.md
// §6): reads a Spotify personal-data export file and imports every play,
// resolving tracks through the three-stage Spotify resolver.
func (r *Runner) PlaysSpotifyFile(ctx context.Context, path string) (models.OperationResult, error) {
	sp, err := r.spotifyAdapter()
	if err != nil {
		return models.OperationResult{}, err
	}

	fetcher := importer.NewSpotifyFileFetcher(path, r.log)
	raws, err := fetcher.Fetch(ctx)
	if err != nil {
		return models.OperationResult{}, fmt.Errorf("read export file: %w", err)
	}
	// Fetch is one-shot and already consumed the file; rewind by building
	// a second fetcher that replays the same parsed records.
	replay := &replayFetcher{records: raws}

	resolveRecords := make([]playresolve.OriginalMetadata, len(raws))
	for i, raw := range raws {
		resolveRecords[i] = playresolve.OriginalMetadata{
			URI:    raw.Context.String(models.CtxSpotifyURI),
			Title:  raw.Context.String(models.CtxTitle),
			Artist: raw.Context.String(models.CtxArtist),
			Album:  raw.Context.String(models.CtxAlbum),
			Extra:  raw.Context,
		}
	}

	resolver := r.spotifyPlayResolver(sp)
	fileResolver, err := importer.NewSpotifyFileResolver(ctx, resolver, resolveRecords)
	if err != nil {
		return models.OperationResult{}, fmt.Errorf("resolve spotify export: %w", err)
	}

	im := importer.New(r.repos, r.log)
	strategy := importer.Strategy{
		Name:       "file",
		Fetch:      replay,
		Resolve:    fileResolver,
		Checkpoint: importer.NoopCheckpointer{},
		Service:    models.ServiceSpotify,
	}
	return im.Run(ctx, strategy), nil
}

// replayFetcher serves a single page of already-parsed RawPlay records
// once, then reports exhaustion; used to let PlaysSpotifyFile reuse the
// SpotifyFileFetcher's parsing without re-reading the file.
type replayFetcher struct {
	records []importer.RawPlay
	served  bool
}

func (f *replayFetcher) Fetch(ctx context.Context) ([]importer.RawPlay, error) {
	if f.served {
		return nil, nil
	}
	f.served = true
	return f.records, nil
}

// PlaysLastfmRecent runs "plays lastfm-recent [--limit N] [--resolve-tracks]".
func (r *Runner) PlaysLastfmRecent(ctx context.Context, user string, limit int, resolveTracks bool) (models.OperationResult, error) {
	lf, err := r.lastfmAdapter()
	if err != nil {
		return models.OperationResult{}, err
	}
	return r.runLastfmImport(ctx, lf, userOrDefault(user), "recent", &importer.LastFMPageFetcher{Lister: lf, Limit: limit}, importer.NoopCheckpointer{}, resolveTracks)
}

// PlaysLastfmIncremental runs "plays lastfm-incremental [--user U]
// [--resolve-tracks/--no-resolve-tracks]": walks forward from the stored
// checkpoint and advances it on completion.
func (r *Runner) PlaysLastfmIncremental(ctx context.Context, user string, resolveTracks bool) (models.OperationResult, error) {
	lf, err := r.lastfmAdapter()
	if err != nil {
		return models.OperationResult{}, err
	}
	u := userOrDefault(user)

	checkpoint, err := r.repos.Checkpoints.Get(ctx, u, models.ServiceLastFM, models.EntityPlays)
	if err != nil {
		return models.OperationResult{}, fmt.Errorf("load checkpoint: %w", err)
	}

	fetcher := &importer.LastFMPageFetcher{Lister: lf, FromTime: checkpoint.LastTimestamp}
	checkpointer := importer.NewCheckpointAdvancer(r.repos, u, models.ServiceLastFM)
	return r.runLastfmImport(ctx, lf, u, "incremental", fetcher, checkpointer, resolveTracks)
}

// PlaysLastfmFull runs "plays lastfm-full [--user U] [--confirm]": resets
// the checkpoint then re-runs the recent strategy with a large limit.
func (r *Runner) PlaysLastfmFull(ctx context.Context, user string, confirm bool) (models.OperationResult, error) {
	if !confirm {
		return models.OperationResult{}, fmt.Errorf("full history re-import requires --confirm")
	}
	u := userOrDefault(user)
	if err := importer.ResetCheckpoint(ctx, r.repos, u, models.ServiceLastFM); err != nil {
		return models.OperationResult{}, fmt.Errorf("reset checkpoint: %w", err)
	}

	lf, err := r.lastfmAdapter()
	if err != nil {
		return models.OperationResult{}, err
	}
	const fullHistoryLimit = 1_000_000
	fetcher := &importer.LastFMPageFetcher{Lister: lf, Limit: fullHistoryLimit}
	checkpointer := importer.NewCheckpointAdvancer(r.repos, u, models.ServiceLastFM)
	return r.runLastfmImport(ctx, lf, u, "full", fetcher, checkpointer, false)
}

func (r *Runner) runLastfmImport(ctx context.Context, lf *connector.LastFMAdapter, user, name string, fetcher importer.Fetcher, checkpointer importer.Checkpointer, resolveTracks bool) (models.OperationResult, error) {
	var resolver importer.Resolver
	if resolveTracks {
		lfResolver := r.lastfmIdentityResolver(lf)
		resolver = &identityBackedResolver{resolver: lfResolver, repos: r.repos}
	} else {
		resolver = importer.NewLastFMResolver(nil, r.repos)
	}

	im := importer.New(r.repos, r.log)
	strategy := importer.Strategy{
		Name:       name,
		Fetch:      fetcher,
		Resolve:    resolver,
		Checkpoint: checkpointer,
		Service:    models.ServiceLastFM,
	}
	return im.Run(ctx, strategy), nil
}

// identityBackedResolver adapts identity.Resolver's batch contract to the
// per-record importer.Resolver interface for the --resolve-tracks path,
// where an unmapped (artist, title) pair should attempt a fresh match
// rather than only consulting existing mappings.
type identityBackedResolver struct {
	resolver *identity.Resolver
	repos    *repository.Repositories
}

// MetadataRefreshLastfm runs "metadata refresh-lastfm [--metric NAME]...":
// the C7 manager, refreshing whichever of the library's Last.fm-mapped
// tracks have no value, or a stale one, for the requested metrics.
// metricNames defaults to every Last.fm-owned metric in the registry when
// empty.
func (r *Runner) MetadataRefreshLastfm(ctx context.Context, metricNames []string) (models.OperationResult, error) {
	result := models.OperationResult{Success: true}

	lf, err := r.lastfmAdapter()
	if err != nil {
		return result, err
	}
	if len(metricNames) == 0 {
		metricNames = []string{metric.MetricUserPlaycount, metric.MetricGlobalPlaycount, metric.MetricListeners}
	}

	tracks, err := r.repos.Tracks.ListForMatching(ctx)
	if err != nil {
		return result, fmt.Errorf("list tracks: %w", err)
	}
	allIDs := make([]int64, len(tracks))
	for i, t := range tracks {
		allIDs[i] = t.ID
	}
	result.Processed = len(allIDs)
	if len(allIDs) == 0 {
		return result, nil
	}

	stale := make(map[int64]bool)
	for _, name := range metricNames {
		fresh, err := r.repos.Metrics.Get(ctx, allIDs, name, models.ServiceLastFM, r.metrics.TTL(name))
		if err != nil {
			return result, fmt.Errorf("check staleness for %s: %w", name, err)
		}
		for _, id := range allIDs {
			if _, ok := fresh[id]; !ok {
				stale[id] = true
			}
		}
	}
	staleIDs := make([]int64, 0, len(stale))
	for id := range stale {
		staleIDs = append(staleIDs, id)
	}
	if len(staleIDs) == 0 {
		return result, nil
	}

	mgr := refresh.New(r.repos, lf, r.metrics, models.ServiceLastFM, r.log)
	updated, failed, err := mgr.Refresh(ctx, staleIDs, metricNames)
	if err != nil {
		return result, fmt.Errorf("refresh metadata: %w", err)
	}

	for id := range failed {
		result.AddError("refresh failed for track %d", id)
	}
	result.Exported = len(updated)
	result.Skipped = len(staleIDs) - len(updated) - len(failed)
	return result, nil
}

func (r *identityBackedResolver) Resolve(ctx context.Context, raw importer.RawPlay) (*int64, error) {
	title := raw.Context.String(models.CtxTitle)
	artist := raw.Context.String(models.CtxArtist)
	if title == "" || artist == "" {
		return nil, nil
	}

	track, err := r.repos.Tracks.FindByExternal(ctx, models.ServiceLastFM, artist+"::"+title)
	if err == nil {
		return &track.ID, nil
	}

	saved, err := r.repos.Tracks.Save(ctx, models.Track{Title: title, Artists: []models.Artist{{Name: artist}}})
	if err != nil {
		return nil, fmt.Errorf("create track for unmatched play: %w", err)
	}

	// Resolve persists any newly discovered Last.fm mapping as a side
	// effect; the play itself resolves to the internal track id either way.
	_, _ = r.resolver.Resolve(ctx, []models.Track{saved}, 0)
	return &saved.ID, nil
}

// LikesImportSpotify runs "likes import-spotify": pages Spotify's liked
// tracks into the internal store.
func (r *Runner) LikesImportSpotify(ctx context.Context, user string) (models.OperationResult, error) {
	sp, err := r.spotifyAdapter()
	if err != nil {
		return models.OperationResult{}, err
	}
	im := likesync.NewImporter(r.repos, sp, models.ServiceSpotify, userOrDefault(user), r.log)
	return im.Run(ctx)
}

// LikesExportLastfm runs "likes export-lastfm": resolves unsynced internal
// likes against Last.fm and calls love_track for each.
func (r *Runner) LikesExportLastfm(ctx context.Context, user string) (models.OperationResult, error) {
	lf, err := r.lastfmAdapter()
	if err != nil {
		return models.OperationResult{}, err
	}
	resolver := r.lastfmIdentityResolver(lf)
	ex := likesync.NewExporter(r.repos, lf, resolver, models.ServiceLastFM, userOrDefault(user), r.log)
	return ex.Run(ctx)
}
