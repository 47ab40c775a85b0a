package batch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/w-ash/narada/internal/models"
)

func TestRun_PreservesInputOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	results := Run(context.Background(), items, Options{Concurrency: 4}, func(ctx context.Context, item int) (int, error) {
		return item * 10, nil
	})

	require.Len(t, results, len(items))
	for i, item := range items {
		require.Equal(t, item, results[i].Item)
		require.Equal(t, item*10, results[i].Output)
		require.NoError(t, results[i].Err)
	}
}

func TestRun_RetriesTransientErrorsUpToMaxRetries(t *testing.T) {
	var attempts int32
	results := Run(context.Background(), []int{1}, Options{
		Concurrency: 1, MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond,
	}, func(ctx context.Context, item int) (int, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return 0, models.ErrTransientRemote
		}
		return 42, nil
	})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, 42, results[0].Output)
	require.Equal(t, 3, results[0].Attempts)
}

func TestRun_DoesNotRetryPermanentErrors(t *testing.T) {
	var attempts int32
	results := Run(context.Background(), []int{1}, Options{Concurrency: 1, MaxRetries: 5}, func(ctx context.Context, item int) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 0, models.ErrPermanentRemote
	})

	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, models.ErrPermanentRemote)
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRun_GivesUpAfterMaxRetriesExhausted(t *testing.T) {
	results := Run(context.Background(), []int{1}, Options{
		Concurrency: 1, MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond,
	}, func(ctx context.Context, item int) (int, error) {
		return 0, models.ErrTransientRemote
	})

	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Err, models.ErrTransientRemote)
	require.Equal(t, 3, results[0].Attempts)
}

func TestRun_CancelledContextMarksUnstartedItemsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Run(ctx, []int{1, 2, 3}, Options{Concurrency: 2}, func(ctx context.Context, item int) (int, error) {
		return item, nil
	})

	require.Len(t, results, 3)
	for _, r := range results {
		require.ErrorIs(t, r.Err, models.ErrCancelled)
	}
}

func TestRun_EmptyInputReturnsEmptyResults(t *testing.T) {
	results := Run(context.Background(), []int{}, Options{}, func(ctx context.Context, item int) (int, error) {
		t.Fatal("work should never be called for an empty item set")
		return 0, nil
	})
	require.Empty(t, results)
}
