package likesync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/w-ash/narada/internal/connector"
	"github.com/w-ash/narada/internal/identity"
	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/matchprovider"
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

type fakeLikedLister struct {
	pages [][]connector.LikedRecord
	next  int
}

func (f *fakeLikedLister) GetLikedTracks(ctx context.Context, limit int, cursor string) ([]connector.LikedRecord, string, error) {
	if f.next >= len(f.pages) {
		return nil, "", nil
	}
	page := f.pages[f.next]
	f.next++
	next := ""
	if f.next < len(f.pages) {
		next = "more"
	}
	return page, next, nil
}

type fakeLover struct {
	loved []string
}

func (f *fakeLover) LoveTrack(ctx context.Context, artist, title string) (bool, error) {
	f.loved = append(f.loved, artist+" - "+title)
	return true, nil
}

func (f *fakeLover) SearchByISRC(ctx context.Context, isrc string) (models.AttrBag, bool, error) {
	return nil, false, nil
}

func (f *fakeLover) SearchTrack(ctx context.Context, artist, title string) (models.AttrBag, bool, error) {
	return nil, false, nil
}

func TestImporter_Run_ImportsLikedTracksAndWritesBothSides(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	lister := &fakeLikedLister{pages: [][]connector.LikedRecord{
		{{
			ExternalID: "ext-1",
			Raw:        models.AttrBag{"title": models.StrAttr("Fake Plastic Trees"), "artist": models.StrAttr("Radiohead")},
		}},
	}}

	im := NewImporter(repos, lister, models.ServiceSpotify, "alice", logging.NewDefault())
	result, err := im.Run(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.Imported)

	track, err := repos.Tracks.FindByExternal(ctx, models.ServiceSpotify, "ext-1")
	require.NoError(t, err)

	sourceLikes, err := repos.Likes.Get(ctx, track.ID, []models.Service{models.ServiceSpotify})
	require.NoError(t, err)
	require.Len(t, sourceLikes, 1)
	require.True(t, sourceLikes[0].IsLiked)

	internalLikes, err := repos.Likes.Get(ctx, track.ID, []models.Service{models.ServiceInternal})
	require.NoError(t, err)
	require.Len(t, internalLikes, 1)
}

func TestImporter_Run_SkipsRecordMissingArtistWithoutPersisting(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	lister := &fakeLikedLister{pages: [][]connector.LikedRecord{
		{{ExternalID: "ext-no-artist", Raw: models.AttrBag{"title": models.StrAttr("Untitled")}}},
	}}

	im := NewImporter(repos, lister, models.ServiceSpotify, "alice", logging.NewDefault())
	result, err := im.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, result.Imported)
	require.NotEmpty(t, result.Errors)

	_, err = repos.Tracks.FindByExternal(ctx, models.ServiceSpotify, "ext-no-artist")
	require.Error(t, err, "an invalid record must never reach Tracks.Save")
}

type alreadyLovedLover struct {
	calls int
}

func (f *alreadyLovedLover) LoveTrack(ctx context.Context, artist, title string) (bool, error) {
	f.calls++
	return true, nil
}

func (f *alreadyLovedLover) SearchByISRC(ctx context.Context, isrc string) (models.AttrBag, bool, error) {
	return nil, false, nil
}

func (f *alreadyLovedLover) SearchTrack(ctx context.Context, artist, title string) (models.AttrBag, bool, error) {
	return models.AttrBag{"id": models.StrAttr("ext-1"), "title": models.StrAttr(title), "artist": models.StrAttr(artist)}, true, nil
}

func TestExporter_Run_AlreadyLovedSkipsWithoutCallingLoveTrackOrDoubleCounting(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	track, err := repos.Tracks.Save(ctx, models.Track{Title: "Nude", Artists: []models.Artist{{Name: "Radiohead"}}})
	require.NoError(t, err)
	require.NoError(t, repos.Likes.Put(ctx, models.TrackLike{
		TrackID: track.ID, Service: models.ServiceInternal, IsLiked: true, LastSynced: time.Now().UTC(),
	}))
	require.NoError(t, repos.Likes.Put(ctx, models.TrackLike{
		TrackID: track.ID, Service: models.ServiceLastFM, IsLiked: true, LastSynced: time.Now().UTC(),
	}))

	lover := &alreadyLovedLover{}
	provider := matchprovider.New(models.ServiceLastFM, lover, lover, 10)
	resolver := identity.New(repos, provider, models.ServiceLastFM, logging.NewDefault())

	ex := NewExporter(repos, lover, resolver, models.ServiceLastFM, "alice", logging.NewDefault())
	result, err := ex.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, result.Exported, "a track already loved on the target must not be re-exported")
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, 0, lover.calls, "love_track must never be called for an already-loved track")
}

func TestExporter_Run_SkipsLikeThatCannotBeResolvedOnTarget(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	track, err := repos.Tracks.Save(ctx, models.Track{Title: "Fake Plastic Trees", Artists: []models.Artist{{Name: "Radiohead"}}})
	require.NoError(t, err)
	require.NoError(t, repos.Likes.Put(ctx, models.TrackLike{
		TrackID: track.ID, Service: models.ServiceInternal, IsLiked: true, LastSynced: time.Now().UTC(),
	}))

	lover := &fakeLover{}
	provider := matchprovider.New(models.ServiceLastFM, lover, lover, 10)
	resolver := identity.New(repos, provider, models.ServiceLastFM, logging.NewDefault())

	ex := NewExporter(repos, lover, resolver, models.ServiceLastFM, "alice", logging.NewDefault())
	result, err := ex.Run(ctx)
	require.NoError(t, err)
	require.True(t, result.Success)

	// With no search match available, the track cannot be resolved against
	// Last.fm, so it is skipped rather than loved.
	require.Equal(t, 0, result.Exported)
	require.Equal(t, 1, result.Skipped)
	require.Empty(t, lover.loved)
}
