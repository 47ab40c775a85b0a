package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/w-ash/narada/internal/connector"
	"github.com/w-ash/narada/internal/identity"
	"github.com/w-ash/narada/internal/models"
	"github.com/w-ash/narada/internal/repository"
)

// LastFMPageFetcher fetches successive pages from a RecentPlaysLister,
// stopping once the service reports no further pages. It backs both the
// "recent" strategy (bounded by Limit) and the "incremental" strategy
// (bounded by FromTime and allowed to run to exhaustion).
type LastFMPageFetcher struct {
	Lister    connector.RecentPlaysLister
	Limit     int
	FromTime  *time.Time
	page      string
	fetched   int
	exhausted bool
}

func (f *LastFMPageFetcher) Fetch(ctx context.Context) ([]RawPlay, error) {
	if f.exhausted {
		return nil, nil
	}
	if f.Limit > 0 && f.fetched >= f.Limit {
		return nil, nil
	}

	pageSize := f.Limit
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 200
	}

	records, hasMore, next, err := f.Lister.GetRecentPlays(ctx, pageSize, f.FromTime, f.page)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	out := make([]RawPlay, 0, len(records))
	for _, rec := range records {
		ms := rec.Raw
		ctxBag := models.AttrBag{
			models.CtxTitle:  models.StrAttr(ms.String("title")),
			models.CtxArtist: models.StrAttr(ms.String("artist")),
			models.CtxAlbum:  models.StrAttr(ms.String("album")),
		}
		out = append(out, RawPlay{PlayedAt: rec.PlayedAt, MsPlayed: rec.MsPlayed, Context: ctxBag})
		f.fetched++
		if f.Limit > 0 && f.fetched >= f.Limit {
			break
		}
	}

	f.page = next
	if !hasMore {
		f.exhausted = true
	}
	return out, nil
}

// LastFMResolver resolves plays against the already-established track
// catalog by looking up the Last.fm mapping keyed "artist::title"; it does
// not run identity resolution, so plays whose track has no such mapping
// are left unresolved with metadata preserved, subject to later
// re-resolution (SPEC_FULL.md S4).
type LastFMResolver struct {
	resolver *identity.Resolver
	repos    *repository.Repositories
}

// NewLastFMResolver builds a LastFMResolver. Lookups go through repos;
// resolver is stored but Resolve does not call it.
func NewLastFMResolver(resolver *identity.Resolver, repos *repository.Repositories) *LastFMResolver {
	return &LastFMResolver{resolver: resolver, repos: repos}
}

func (r *LastFMResolver) Resolve(ctx context.Context, raw RawPlay) (*int64, error) {
	title := raw.Context.String(models.CtxTitle)
	artist := raw.Context.String(models.CtxArtist)
	if title == "" || artist == "" {
		return nil, nil
	}

	track, err := r.repos.Tracks.FindByExternal(ctx, models.ServiceLastFM, lastfmLookupKey(artist, title))
	if err != nil {
		return nil, nil
	}
	return &track.ID, nil
}

func lastfmLookupKey(artist, title string) string {
	return artist + "::" + title
}

// CheckpointAdvancer implements Checkpointer against the repository,
// advancing a (user, service, plays) checkpoint.
type CheckpointAdvancer struct {
	repos   *repository.Repositories
	userID  string
	service models.Service
}

// NewCheckpointAdvancer builds a Checkpointer for (userID, service).
func NewCheckpointAdvancer(repos *repository.Repositories, userID string, service models.Service) *CheckpointAdvancer {
	return &CheckpointAdvancer{repos: repos, userID: userID, service: service}
}

func (c *CheckpointAdvancer) Advance(ctx context.Context, maxPlayedAt time.Time) error {
	current, err := c.repos.Checkpoints.Get(ctx, c.userID, c.service, models.EntityPlays)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	next := current.Advance(maxPlayedAt, "")
	return c.repos.Checkpoints.Save(ctx, next)
}

// ResetCheckpoint clears the (user, service, plays) checkpoint so the
// next import walks full history (spec.md §6 "lastfm-full").
func ResetCheckpoint(ctx context.Context, repos *repository.Repositories, userID string, service models.Service) error {
	current, err := repos.Checkpoints.Get(ctx, userID, service, models.EntityPlays)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	return repos.Checkpoints.Save(ctx, current.Reset())
}
