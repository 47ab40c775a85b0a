package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/w-ash/narada/internal/config"
	"github.com/w-ash/narada/internal/identity"
	"github.com/w-ash/narada/internal/importer"
	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/matchprovider"
	"github.com/w-ash/narada/internal/models"
	"github.com/w-ash/narada/internal/repository"
)

type noMatchSearcher struct{}

func (noMatchSearcher) SearchTrack(ctx context.Context, artist, title string) (models.AttrBag, bool, error) {
	return nil, false, nil
}

func newTestIdentityResolver(r *Runner) *identity.Resolver {
	provider := matchprovider.New(models.ServiceLastFM, nil, noMatchSearcher{}, 5)
	return identity.New(r.repos, provider, models.ServiceLastFM, r.log)
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	db, err := repository.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repos := repository.NewRepositories(db)
	return NewRunner(&config.Config{}, repos, logging.NewDefault())
}

func TestUserOrDefault(t *testing.T) {
	require.Equal(t, "default", userOrDefault(""))
	require.Equal(t, "alice", userOrDefault("alice"))
}

func TestRunner_SpotifyAdapterRequiresAccessToken(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.spotifyAdapter()
	require.Error(t, err)
}

func TestRunner_LastfmAdapterRequiresCredentials(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.lastfmAdapter()
	require.Error(t, err)

	r.cfg.LastFMAPIKey = "key"
	r.cfg.LastFMAPISecret = "secret"
	r.cfg.LastFMUsername = "alice"
	_, err = r.lastfmAdapter()
	require.NoError(t, err)
}

func TestRunner_PlaysLastfmFull_RequiresConfirm(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.PlaysLastfmFull(context.Background(), "alice", false)
	require.Error(t, err)
}

func TestRunner_MetadataRefreshLastfm_RequiresCredentials(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.MetadataRefreshLastfm(context.Background(), nil)
	require.Error(t, err)
}

func TestRunner_MetadataRefreshLastfm_NoopWithNoTracks(t *testing.T) {
	r := newTestRunner(t)
	r.cfg.LastFMAPIKey = "key"
	r.cfg.LastFMAPISecret = "secret"
	r.cfg.LastFMUsername = "alice"

	result, err := r.MetadataRefreshLastfm(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, result.Processed)
}

func TestReplayFetcher_ServesRecordsOnceThenExhausted(t *testing.T) {
	f := &replayFetcher{records: []importer.RawPlay{{}}}

	first, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Empty(t, second)
}

func TestIdentityBackedResolver_CreatesTrackForUnmappedPlay(t *testing.T) {
	r := newTestRunner(t)
	resolver := &identityBackedResolver{resolver: newTestIdentityResolver(r), repos: r.repos}

	raw := importer.RawPlay{Context: models.AttrBag{
		models.CtxArtist: models.StrAttr("Radiohead"), models.CtxTitle: models.StrAttr("Nude"),
	}}
	id, err := resolver.Resolve(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, id)

	tracks, err := r.repos.Tracks.FindByIDs(context.Background(), []int64{*id})
	require.NoError(t, err)
	require.Contains(t, tracks, *id)
}

func TestIdentityBackedResolver_MissingArtistOrTitleResolvesNil(t *testing.T) {
	r := newTestRunner(t)
	resolver := &identityBackedResolver{resolver: newTestIdentityResolver(r), repos: r.repos}

	id, err := resolver.Resolve(context.Background(), importer.RawPlay{Context: models.AttrBag{
		models.CtxTitle: models.StrAttr("Nude"),
	}})
	require.NoError(t, err)
	require.Nil(t, id)
}
