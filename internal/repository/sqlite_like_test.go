package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/w-ash/narada/internal/models"
)

func TestLikeRepo_PutIsUpsertByTrackAndService(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	track, err := repos.Tracks.Save(ctx, models.Track{Title: "Nude"})
	require.NoError(t, err)

	require.NoError(t, repos.Likes.Put(ctx, models.TrackLike{TrackID: track.ID, Service: models.ServiceSpotify, IsLiked: true}))
	require.NoError(t, repos.Likes.Put(ctx, models.TrackLike{TrackID: track.ID, Service: models.ServiceSpotify, IsLiked: false}))

	likes, err := repos.Likes.Get(ctx, track.ID, []models.Service{models.ServiceSpotify})
	require.NoError(t, err)
	require.Len(t, likes, 1)
	require.False(t, likes[0].IsLiked)
}

func TestLikeRepo_GetUnsyncedExcludesAlreadySyncedTargets(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	synced, err := repos.Tracks.Save(ctx, models.Track{Title: "Already Synced"})
	require.NoError(t, err)
	unsynced, err := repos.Tracks.Save(ctx, models.Track{Title: "Not Yet Synced"})
	require.NoError(t, err)

	for _, tr := range []models.Track{synced, unsynced} {
		require.NoError(t, repos.Likes.Put(ctx, models.TrackLike{
			TrackID: tr.ID, Service: models.ServiceInternal, IsLiked: true, LastSynced: time.Now().UTC(),
		}))
	}
	require.NoError(t, repos.Likes.Put(ctx, models.TrackLike{
		TrackID: synced.ID, Service: models.ServiceLastFM, IsLiked: true, LastSynced: time.Now().UTC(),
	}))

	unsyncedLikes, err := repos.Likes.GetUnsynced(ctx, models.ServiceInternal, models.ServiceLastFM, true, nil)
	require.NoError(t, err)

	var ids []int64
	for _, l := range unsyncedLikes {
		ids = append(ids, l.TrackID)
	}
	require.Contains(t, ids, unsynced.ID)
	require.NotContains(t, ids, synced.ID)
}

func TestLikeRepo_GetAllLikedFiltersByServiceAndValue(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	liked, err := repos.Tracks.Save(ctx, models.Track{Title: "Liked"})
	require.NoError(t, err)
	unliked, err := repos.Tracks.Save(ctx, models.Track{Title: "Unliked"})
	require.NoError(t, err)

	require.NoError(t, repos.Likes.Put(ctx, models.TrackLike{TrackID: liked.ID, Service: models.ServiceSpotify, IsLiked: true}))
	require.NoError(t, repos.Likes.Put(ctx, models.TrackLike{TrackID: unliked.ID, Service: models.ServiceSpotify, IsLiked: false}))

	likedRows, err := repos.Likes.GetAllLiked(ctx, models.ServiceSpotify, true)
	require.NoError(t, err)
	require.Len(t, likedRows, 1)
	require.Equal(t, liked.ID, likedRows[0].TrackID)
}
