// Package importer implements the play-import template (C9): a
// template-method workflow shared by every play-import strategy
// (Spotify file, Last.fm recent/incremental), with the fetch/process/
// checkpoint steps supplied per strategy.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/models"
	"github.com/w-ash/narada/internal/repository"
)

// RawPlay is one fetched record before resolution, carrying whatever the
// strategy's fetch step produced.
type RawPlay struct {
	PlayedAt time.Time
	MsPlayed *int64
	Context  models.AttrBag
}

// Fetcher is the abstract "fetch" step: returns a page of raw records.
// Implementations page internally and return io.EOF-equivalent behavior
// by returning an empty slice when exhausted.
type Fetcher interface {
	Fetch(ctx context.Context) ([]RawPlay, error)
}

// Resolver is the abstract per-record resolution step: turns a raw play
// into an (optional) internal track id, consulted once per record.
type Resolver interface {
	Resolve(ctx context.Context, raw RawPlay) (trackID *int64, err error)
}

// Checkpointer is the abstract checkpoint step, a no-op for recent/file
// strategies and an advance-to-max-played-at for incremental.
type Checkpointer interface {
	Advance(ctx context.Context, maxPlayedAt time.Time) error
}

// NoopCheckpointer implements Checkpointer as a no-op, for recent/file
// strategies (spec.md §4.9 step 5).
type NoopCheckpointer struct{}

func (NoopCheckpointer) Advance(ctx context.Context, maxPlayedAt time.Time) error { return nil }

// Strategy bundles the three abstract steps plus the import_source label
// recorded on every Play this run produces.
type Strategy struct {
	Name         string
	Fetch        Fetcher
	Resolve      Resolver
	Checkpoint   Checkpointer
	Service      models.Service
}

// Importer runs the shared template skeleton over a Strategy.
type Importer struct {
	repos *repository.Repositories
	log   logging.Logger
}

// New builds an Importer backed by repos.
func New(repos *repository.Repositories, log logging.Logger) *Importer {
	return &Importer{repos: repos, log: log}
}

// Run executes the full template: setup, fetch, process, persist,
// checkpoint, result (spec.md §4.9). Any step's error produces an
// error-shaped OperationResult rather than propagating.
func (im *Importer) Run(ctx context.Context, s Strategy) models.OperationResult {
	result := models.OperationResult{Success: true, BatchID: uuid.NewString()}
	importTimestamp := time.Now().UTC()
	importSource := fmt.Sprintf("%s_strategy_%s", s.Service, s.Name)

	var maxPlayedAt time.Time
	var sawAny bool

	for {
		select {
		case <-ctx.Done():
			result.Cancelled = true
			result.AddError("import cancelled: %v", ctx.Err())
			return result
		default:
		}

		raws, err := s.Fetch.Fetch(ctx)
		if err != nil {
			result.Success = false
			result.AddError("fetch failed: %v", err)
			return result
		}
		if len(raws) == 0 {
			break
		}

		plays := make([]models.Play, 0, len(raws))
		for _, raw := range raws {
			result.Processed++

			trackID, err := s.Resolve.Resolve(ctx, raw)
			if err != nil {
				result.Skipped++
				result.AddError("resolve failed for play at %s: %v", raw.PlayedAt, err)
				continue
			}

			plays = append(plays, models.Play{
				TrackID:         trackID,
				Service:         s.Service,
				PlayedAt:        raw.PlayedAt,
				MsPlayed:        raw.MsPlayed,
				Context:         raw.Context,
				ImportTimestamp: importTimestamp,
				ImportSource:    importSource,
				ImportBatchID:   result.BatchID,
			})

			if raw.PlayedAt.After(maxPlayedAt) {
				maxPlayedAt = raw.PlayedAt
			}
			sawAny = true
		}

		inserted, err := im.repos.Plays.BulkInsert(ctx, plays)
		if err != nil {
			result.Success = false
			result.AddError("persist plays failed: %v", err)
			return result
		}
		result.Imported += inserted
		result.Skipped += len(plays) - inserted

		alreadyPresentRatio := 0.0
		if len(plays) > 0 {
			alreadyPresentRatio = float64(len(plays)-inserted) / float64(len(plays))
		}
		if inserted == 0 && alreadyPresentRatio >= 0.8 {
			break
		}
	}

	if sawAny {
		if err := s.Checkpoint.Advance(ctx, maxPlayedAt); err != nil {
			result.Success = false
			result.AddError("checkpoint advance failed: %v", err)
			return result
		}
	}

	return result
}
