package playresolve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/models"
	"github.com/w-ash/narada/internal/repository"
)

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	db, err := repository.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewRepositories(db)
}

type fakeLookup struct {
	byID map[string]models.AttrBag
}

func (f *fakeLookup) BatchGetTracks(ctx context.Context, externalIDs []string) (map[string]models.AttrBag, error) {
	out := make(map[string]models.AttrBag)
	for _, id := range externalIDs {
		if bag, ok := f.byID[id]; ok {
			out[id] = bag
		}
	}
	return out, nil
}

type fakeSearch struct {
	found models.AttrBag
	ok    bool
}

func (f *fakeSearch) SearchTrack(ctx context.Context, artist, title string) (models.AttrBag, bool, error) {
	return f.found, f.ok, nil
}

func validURI(suffix string) string {
	base := "012345678901234567890"
	return "spotify:track:" + base + suffix
}

func TestResolveBatch_DirectLookupResolves(t *testing.T) {
	repos := newTestRepos(t)
	extID := "0000000000000000000022"
	lookup := &fakeLookup{byID: map[string]models.AttrBag{
		extID: {"title": models.StrAttr("Pyramid Song"), "artist": models.StrAttr("Radiohead")},
	}}
	search := &fakeSearch{}
	r := New(repos, lookup, search, models.ServiceSpotify, logging.NewDefault())

	uri := "spotify:track:" + extID
	resolutions, err := r.ResolveBatch(context.Background(), []OriginalMetadata{{URI: uri, Title: "Pyramid Song", Artist: "Radiohead"}})
	require.NoError(t, err)
	require.Len(t, resolutions, 1)
	require.NotNil(t, resolutions[0].TrackID)
	require.Equal(t, models.MatchMethodDirect, resolutions[0].Method)
	require.Equal(t, 100, *resolutions[0].Confidence)
}

func TestResolveBatch_DuplicateURIResolvesEveryOccurrence(t *testing.T) {
	repos := newTestRepos(t)
	extID := "0000000000000000000055"
	lookup := &fakeLookup{byID: map[string]models.AttrBag{
		extID: {"title": models.StrAttr("Idioteque"), "artist": models.StrAttr("Radiohead")},
	}}
	r := New(repos, lookup, &fakeSearch{}, models.ServiceSpotify, logging.NewDefault())

	uri := "spotify:track:" + extID
	resolutions, err := r.ResolveBatch(context.Background(), []OriginalMetadata{
		{URI: uri, Title: "Idioteque", Artist: "Radiohead"},
		{URI: uri, Title: "Idioteque", Artist: "Radiohead"},
	})
	require.NoError(t, err)
	require.Len(t, resolutions, 2)
	require.NotNil(t, resolutions[0].TrackID, "first occurrence of a repeated URI must resolve")
	require.NotNil(t, resolutions[1].TrackID, "second occurrence of a repeated URI must resolve too, not be left zero-valued")
	require.Equal(t, *resolutions[0].TrackID, *resolutions[1].TrackID)
}

func TestResolveBatch_DirectLookupRejectsRecordMissingTitle(t *testing.T) {
	repos := newTestRepos(t)
	extID := "0000000000000000000077"
	lookup := &fakeLookup{byID: map[string]models.AttrBag{
		extID: {"artist": models.StrAttr("Radiohead")},
	}}
	r := New(repos, lookup, &fakeSearch{}, models.ServiceSpotify, logging.NewDefault())

	uri := "spotify:track:" + extID
	_, err := r.ResolveBatch(context.Background(), []OriginalMetadata{{URI: uri, Title: "X", Artist: "Radiohead"}})
	require.Error(t, err, "a catalog record with no title must never be persisted as a track")
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestResolveBatch_MalformedURIPreservesMetadataWithoutLookup(t *testing.T) {
	repos := newTestRepos(t)
	lookup := &fakeLookup{byID: map[string]models.AttrBag{}}
	search := &fakeSearch{}
	r := New(repos, lookup, search, models.ServiceSpotify, logging.NewDefault())

	resolutions, err := r.ResolveBatch(context.Background(), []OriginalMetadata{{URI: "not-a-spotify-uri", Title: "X", Artist: "Y"}})
	require.NoError(t, err)
	require.Len(t, resolutions, 1)
	require.Nil(t, resolutions[0].TrackID)
}

func TestResolveBatch_SearchFallbackAcceptsAboveThreshold(t *testing.T) {
	repos := newTestRepos(t)
	extID := "0000000000000000000033"
	lookup := &fakeLookup{byID: map[string]models.AttrBag{}} // stage 1 misses
	search := &fakeSearch{
		ok: true,
		found: models.AttrBag{
			"id":     models.StrAttr(extID),
			"title":  models.StrAttr("Nude"),
			"artist": models.StrAttr("Radiohead"),
		},
	}
	r := New(repos, lookup, search, models.ServiceSpotify, logging.NewDefault())

	uri := validURI("9")
	resolutions, err := r.ResolveBatch(context.Background(), []OriginalMetadata{{URI: uri, Title: "Nude", Artist: "Radiohead"}})
	require.NoError(t, err)
	require.Len(t, resolutions, 1)
	require.NotNil(t, resolutions[0].TrackID)
	require.Equal(t, models.MatchMethodArtistTitle, resolutions[0].Method)
}

func TestResolveBatch_SearchFallbackBelowThresholdPreservesMetadata(t *testing.T) {
	repos := newTestRepos(t)
	lookup := &fakeLookup{byID: map[string]models.AttrBag{}}
	search := &fakeSearch{
		ok: true,
		found: models.AttrBag{
			"id":     models.StrAttr("totally-different"),
			"title":  models.StrAttr("Completely Unrelated Song Name"),
			"artist": models.StrAttr("Someone Else Entirely"),
		},
	}
	r := New(repos, lookup, search, models.ServiceSpotify, logging.NewDefault())

	uri := validURI("1")
	resolutions, err := r.ResolveBatch(context.Background(), []OriginalMetadata{{URI: uri, Title: "Nude", Artist: "Radiohead"}})
	require.NoError(t, err)
	require.Len(t, resolutions, 1)
	require.Nil(t, resolutions[0].TrackID, "a low-confidence search hit must not be accepted")
}

func TestReresolveUnresolvedPlays_ResolvesOnceCatalogCatchesUp(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	extID := "0000000000000000000044"

	_, err := repos.Plays.BulkInsert(ctx, []models.Play{{
		Service: models.ServiceSpotify, PlayedAt: time.Now().UTC(), ImportSource: "t", ImportBatchID: "b",
		Context: models.AttrBag{
			models.CtxSpotifyURI: models.StrAttr("spotify:track:" + extID),
			models.CtxTitle:      models.StrAttr("Everything In Its Right Place"),
			models.CtxArtist:     models.StrAttr("Radiohead"),
		},
	}})
	require.NoError(t, err)

	lookup := &fakeLookup{byID: map[string]models.AttrBag{
		extID: {"title": models.StrAttr("Everything In Its Right Place"), "artist": models.StrAttr("Radiohead")},
	}}
	r := New(repos, lookup, &fakeSearch{}, models.ServiceSpotify, logging.NewDefault())

	resolvedCount, err := r.ReresolveUnresolvedPlays(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, resolvedCount)

	unresolved, err := repos.Plays.ListUnresolved(ctx, models.ServiceSpotify, 0)
	require.NoError(t, err)
	require.Empty(t, unresolved)
}

func TestReresolveUnresolvedPlays_ResolvesBothOccurrencesOfSharedURI(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	extID := "0000000000000000000066"
	uri := "spotify:track:" + extID

	_, err := repos.Plays.BulkInsert(ctx, []models.Play{
		{
			Service: models.ServiceSpotify, PlayedAt: time.Now().UTC(), ImportSource: "t", ImportBatchID: "b",
			Context: models.AttrBag{
				models.CtxSpotifyURI: models.StrAttr(uri),
				models.CtxTitle:      models.StrAttr("Idioteque"),
				models.CtxArtist:     models.StrAttr("Radiohead"),
			},
		},
		{
			Service: models.ServiceSpotify, PlayedAt: time.Now().UTC().Add(time.Minute), ImportSource: "t", ImportBatchID: "b",
			Context: models.AttrBag{
				models.CtxSpotifyURI: models.StrAttr(uri),
				models.CtxTitle:      models.StrAttr("Idioteque"),
				models.CtxArtist:     models.StrAttr("Radiohead"),
			},
		},
	})
	require.NoError(t, err)

	lookup := &fakeLookup{byID: map[string]models.AttrBag{
		extID: {"title": models.StrAttr("Idioteque"), "artist": models.StrAttr("Radiohead")},
	}}
	r := New(repos, lookup, &fakeSearch{}, models.ServiceSpotify, logging.NewDefault())

	resolvedCount, err := r.ReresolveUnresolvedPlays(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, resolvedCount, "both plays sharing one URI must resolve, not just the last one indexed")

	unresolved, err := repos.Plays.ListUnresolved(ctx, models.ServiceSpotify, 0)
	require.NoError(t, err)
	require.Empty(t, unresolved)
}

func TestFindCrossServiceDuplicates_MatchesPlayWithinWindowFromOtherService(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	spotifyPlayedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	lastfmPlayedAt := spotifyPlayedAt.Add(2 * time.Minute)

	_, err := repos.Plays.BulkInsert(ctx, []models.Play{{
		Service: models.ServiceSpotify, PlayedAt: spotifyPlayedAt, ImportSource: "t", ImportBatchID: "b1",
		MsPlayed: int64Ptr(210000),
		Context: models.AttrBag{
			models.CtxTitle:  models.StrAttr("Bohemian Rhapsody"),
			models.CtxArtist: models.StrAttr("Queen"),
		},
	}})
	require.NoError(t, err)

	r := New(repos, &fakeLookup{}, &fakeSearch{}, models.ServiceLastFM, logging.NewDefault())

	lastfmPlay := models.Play{
		Service: models.ServiceLastFM, PlayedAt: lastfmPlayedAt,
		Context: models.AttrBag{
			models.CtxTitle:  models.StrAttr("Bohemian Rhapsody"),
			models.CtxArtist: models.StrAttr("Queen"),
		},
	}

	matches, err := r.FindCrossServiceDuplicates(ctx, lastfmPlay)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, models.ServiceSpotify, matches[0].Play.Service)
	require.Equal(t, models.MatchMethodCrossServiceTimeMatch, matches[0].Method)
	require.Equal(t, 82, matches[0].Confidence)
	require.EqualValues(t, 120000, matches[0].Evidence.DurationDiffMs)
}

func TestFindCrossServiceDuplicates_NoCandidatesWithinWindowReturnsEmpty(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()
	r := New(repos, &fakeLookup{}, &fakeSearch{}, models.ServiceLastFM, logging.NewDefault())

	matches, err := r.FindCrossServiceDuplicates(ctx, models.Play{
		Service: models.ServiceLastFM, PlayedAt: time.Now().UTC(),
		Context: models.AttrBag{models.CtxTitle: models.StrAttr("Nude"), models.CtxArtist: models.StrAttr("Radiohead")},
	})
	require.NoError(t, err)
	require.Empty(t, matches)
}

func int64Ptr(v int64) *int64 { return &v }
