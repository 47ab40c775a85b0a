package importer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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

type pagedFetcher struct {
	pages [][]RawPlay
	next  int
}

func (f *pagedFetcher) Fetch(ctx context.Context) ([]RawPlay, error) {
	if f.next >= len(f.pages) {
		return nil, nil
	}
	page := f.pages[f.next]
	f.next++
	return page, nil
}

type alwaysResolveResolver struct{ trackID int64 }

func (r alwaysResolveResolver) Resolve(ctx context.Context, raw RawPlay) (*int64, error) {
	id := r.trackID
	return &id, nil
}

type recordingCheckpointer struct {
	advancedAt *time.Time
}

func (c *recordingCheckpointer) Advance(ctx context.Context, maxPlayedAt time.Time) error {
	t := maxPlayedAt
	c.advancedAt = &t
	return nil
}

func TestImporter_Run_ImportsAllPagesAndAdvancesCheckpoint(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	track, err := repos.Tracks.Save(ctx, models.Track{Title: "Pyramid Song"})
	require.NoError(t, err)

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	fetcher := &pagedFetcher{pages: [][]RawPlay{
		{{PlayedAt: t1}},
		{{PlayedAt: t2}},
	}}
	checkpointer := &recordingCheckpointer{}

	im := New(repos, nil)
	result := im.Run(ctx, Strategy{
		Name: "test", Fetch: fetcher, Resolve: alwaysResolveResolver{trackID: track.ID},
		Checkpoint: checkpointer, Service: models.ServiceSpotify,
	})

	require.True(t, result.Success)
	require.Equal(t, 2, result.Processed)
	require.Equal(t, 2, result.Imported)
	require.NotNil(t, checkpointer.advancedAt)
	require.True(t, checkpointer.advancedAt.Equal(t2))
}

func TestImporter_Run_StopsEarlyWhenMostlyAlreadyPresent(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	track, err := repos.Tracks.Save(ctx, models.Track{Title: "How to Disappear Completely"})
	require.NoError(t, err)

	playedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ms := int64(100)
	duplicatePage := make([]RawPlay, 10)
	for i := range duplicatePage {
		duplicatePage[i] = RawPlay{PlayedAt: playedAt, MsPlayed: &ms}
	}
	// a second page that would only run if the early-termination rule failed
	secondPage := []RawPlay{{PlayedAt: playedAt.Add(time.Hour)}}

	fetcher := &pagedFetcher{pages: [][]RawPlay{duplicatePage, secondPage}}

	// Pre-seed every play in duplicatePage so the whole first page inserts
	// zero new rows and the 80%-already-present rule should stop the loop.
	im := New(repos, nil)
	preseed := im.Run(ctx, Strategy{
		Name: "seed", Fetch: &pagedFetcher{pages: [][]RawPlay{duplicatePage}},
		Resolve: alwaysResolveResolver{trackID: track.ID}, Checkpoint: NoopCheckpointer{}, Service: models.ServiceSpotify,
	})
	require.True(t, preseed.Success)

	result := im.Run(ctx, Strategy{
		Name: "test", Fetch: fetcher, Resolve: alwaysResolveResolver{trackID: track.ID},
		Checkpoint: NoopCheckpointer{}, Service: models.ServiceSpotify,
	})

	require.True(t, result.Success)
	require.Equal(t, 0, result.Imported)
	require.Equal(t, len(duplicatePage), result.Processed, "should stop after the first page without consuming the second")
}
