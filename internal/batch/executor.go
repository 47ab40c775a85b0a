// Package batch implements the bounded-concurrency batch executor (C1): a
// generic worker pool over a slice of items, with retry-with-backoff,
// optional rate limiting, and progress callbacks. Every use-case that talks
// to a remote service routes its item-level work through this package
// rather than hand-rolling goroutines, grounded on desertthunder-ytx's
// internal/tasks bulk export worker pool.
package batch

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/w-ash/narada/internal/models"
)

// Event is the kind of progress notification delivered on Options.OnEvent.
type Event string

const (
	EventStarted   Event = "batch_started"
	EventProgress  Event = "batch_progress"
	EventCompleted Event = "batch_completed"
)

// Progress is the payload delivered alongside an Event.
type Progress struct {
	Event     Event
	Total     int
	Completed int
	Succeeded int
	Failed    int
}

// Options configures a Run call. Zero values fall back to sane defaults.
type Options struct {
	Concurrency int
	// RatePerSecond limits outbound item starts, 0 disables limiting.
	RatePerSecond float64
	MaxRetries    int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	// ItemTimeout bounds a single item's execution, 0 means no timeout.
	ItemTimeout time.Duration
	OnEvent     func(Progress)
}

func (o *Options) setDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
}

// Work is the unit of work a caller supplies per item. A returned error that
// wraps models.ErrTransientRemote is retried up to Options.MaxRetries; any
// other error is terminal for that item.
type Work[I any, O any] func(ctx context.Context, item I) (O, error)

// Result pairs one input item with its outcome, preserving input order.
type Result[I any, O any] struct {
	Item     I
	Output   O
	Err      error
	Attempts int
}

// Run executes work over items with bounded concurrency, optional rate
// limiting, and retry-with-full-jitter backoff on transient errors. Results
// are returned in the same order as items regardless of completion order.
// If ctx is cancelled mid-run, items not yet started are skipped and
// reported with models.ErrCancelled; items in flight are allowed to return.
func Run[I any, O any](ctx context.Context, items []I, opts Options, work Work[I, O]) []Result[I, O] {
	opts.setDefaults()
	results := make([]Result[I, O], len(items))
	if len(items) == 0 {
		return results
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	emit := func(p Progress) {
		if opts.OnEvent != nil {
			opts.OnEvent(p)
		}
	}

	total := len(items)
	emit(Progress{Event: EventStarted, Total: total})

	type job struct {
		index int
		item  I
	}
	jobs := make(chan job, total)
	for i, it := range items {
		jobs <- job{index: i, item: it}
	}
	close(jobs)

	var completed, succeeded, failed int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					results[j.index] = Result[I, O]{Item: j.item, Err: models.ErrCancelled}
					mu.Lock()
					completed++
					failed++
					emit(Progress{Event: EventProgress, Total: total, Completed: completed, Succeeded: succeeded, Failed: failed})
					mu.Unlock()
					continue
				default:
				}

				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						results[j.index] = Result[I, O]{Item: j.item, Err: models.ErrCancelled}
						mu.Lock()
						completed++
						failed++
						emit(Progress{Event: EventProgress, Total: total, Completed: completed, Succeeded: succeeded, Failed: failed})
						mu.Unlock()
						continue
					}
				}

				out, err, attempts := runWithRetry(ctx, j.item, opts, work)
				results[j.index] = Result[I, O]{Item: j.item, Output: out, Err: err, Attempts: attempts}

				mu.Lock()
				completed++
				if err == nil {
					succeeded++
				} else {
					failed++
				}
				emit(Progress{Event: EventProgress, Total: total, Completed: completed, Succeeded: succeeded, Failed: failed})
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	emit(Progress{Event: EventCompleted, Total: total, Completed: completed, Succeeded: succeeded, Failed: failed})
	return results
}

func runWithRetry[I any, O any](ctx context.Context, item I, opts Options, work Work[I, O]) (O, error, int) {
	var out O
	var err error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if opts.ItemTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, opts.ItemTimeout)
		}
		out, err = work(callCtx, item)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return out, nil, attempt + 1
		}
		if !errors.Is(err, models.ErrTransientRemote) {
			return out, err, attempt + 1
		}
		if attempt == opts.MaxRetries {
			return out, err, attempt + 1
		}

		backoff := fullJitterBackoff(opts.BaseBackoff, opts.MaxBackoff, attempt)
		select {
		case <-ctx.Done():
			return out, models.ErrCancelled, attempt + 1
		case <-time.After(backoff):
		}
	}
	return out, err, opts.MaxRetries + 1
}

// fullJitterBackoff implements the "full jitter" strategy: a uniformly
// random duration between 0 and min(maxBackoff, base*2^attempt).
func fullJitterBackoff(base, max time.Duration, attempt int) time.Duration {
	capped := float64(base) * math.Pow(2, float64(attempt))
	if capped > float64(max) {
		capped = float64(max)
	}
	if capped <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(capped)))
}
