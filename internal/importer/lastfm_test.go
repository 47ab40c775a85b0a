package importer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/w-ash/narada/internal/connector"
	"github.com/w-ash/narada/internal/models"
)

type fakeRecentPlaysLister struct {
	pages   [][]connector.PlayRecord
	hasMore []bool
	next    []string
	call    int
}

func (f *fakeRecentPlaysLister) GetRecentPlays(ctx context.Context, limit int, fromTime *time.Time, page string) ([]connector.PlayRecord, bool, string, error) {
	i := f.call
	f.call++
	if i >= len(f.pages) {
		return nil, false, "", nil
	}
	return f.pages[i], f.hasMore[i], f.next[i], nil
}

func TestLastFMPageFetcher_StopsWhenLimitReached(t *testing.T) {
	lister := &fakeRecentPlaysLister{
		pages:   [][]connector.PlayRecord{{{PlayedAt: time.Now()}, {PlayedAt: time.Now()}, {PlayedAt: time.Now()}}},
		hasMore: []bool{true},
		next:    []string{"p2"},
	}
	f := &LastFMPageFetcher{Lister: lister, Limit: 2}

	plays, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, plays, 2)

	second, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Empty(t, second, "limit reached, no further fetch calls should yield plays")
}

func TestLastFMPageFetcher_IncrementalRunsToExhaustion(t *testing.T) {
	lister := &fakeRecentPlaysLister{
		pages:   [][]connector.PlayRecord{{{PlayedAt: time.Now()}}, {{PlayedAt: time.Now()}}},
		hasMore: []bool{true, false},
		next:    []string{"p2", ""},
	}
	f := &LastFMPageFetcher{Lister: lister}

	first, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)

	third, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Empty(t, third, "exhausted fetcher must return no further pages")
}

func TestLastFMResolver_ResolvesViaExistingExternalKey(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	track, err := repos.Tracks.Save(ctx, models.Track{Title: "Nude"})
	require.NoError(t, err)

	key := lastfmLookupKey("Radiohead", "Nude")
	connectorTracks, err := repos.ConnectorTracks.BulkUpsert(ctx, []models.ConnectorTrack{{
		Service: models.ServiceLastFM, ExternalID: key, Title: "Nude",
	}})
	require.NoError(t, err)
	require.NoError(t, repos.Mappings.BulkUpsert(ctx, []models.TrackMapping{{
		TrackID: track.ID, ConnectorTrackID: connectorTracks[0].ID, Service: models.ServiceLastFM,
		MatchMethod: models.MatchMethodDirect, Confidence: 100,
	}}))

	r := NewLastFMResolver(nil, repos)
	raw := RawPlay{Context: models.AttrBag{
		models.CtxArtist: models.StrAttr("Radiohead"), models.CtxTitle: models.StrAttr("Nude"),
	}}
	resolved, err := r.Resolve(ctx, raw)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, track.ID, *resolved)
}

func TestLastFMResolver_MissingArtistOrTitleResolvesNilWithoutError(t *testing.T) {
	repos := newTestRepos(t)
	r := NewLastFMResolver(nil, repos)

	resolved, err := r.Resolve(context.Background(), RawPlay{Context: models.AttrBag{
		models.CtxTitle: models.StrAttr("Nude"),
	}})
	require.NoError(t, err)
	require.Nil(t, resolved)
}

func TestCheckpointAdvancer_AdvancesStoredCheckpoint(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	c := NewCheckpointAdvancer(repos, "alice", models.ServiceLastFM)
	when := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.Advance(ctx, when))

	checkpoint, err := repos.Checkpoints.Get(ctx, "alice", models.ServiceLastFM, models.EntityPlays)
	require.NoError(t, err)
	require.Equal(t, when.Unix(), checkpoint.LastTimestamp.Unix())
}

func TestResetCheckpoint_ClearsStoredTimestamp(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	c := NewCheckpointAdvancer(repos, "alice", models.ServiceLastFM)
	require.NoError(t, c.Advance(ctx, time.Now().UTC()))

	require.NoError(t, ResetCheckpoint(ctx, repos, "alice", models.ServiceLastFM))

	checkpoint, err := repos.Checkpoints.Get(ctx, "alice", models.ServiceLastFM, models.EntityPlays)
	require.NoError(t, err)
	require.Nil(t, checkpoint.LastTimestamp)
}
