// Package matchprovider implements the matching providers (C8): the
// shared two-pass strategy (ISRC, then artist+title) run per service
// through the batch executor, scored by the confidence scorer, and
// filtered by a caller-supplied minimum confidence threshold. The first
// pass searches by ISRC only; there is no MBID lookup.
package matchprovider

import (
	"context"

	"github.com/w-ash/narada/internal/batch"
	"github.com/w-ash/narada/internal/connector"
	"github.com/w-ash/narada/internal/matching"
	"github.com/w-ash/narada/internal/models"
)

// Candidate is one successfully scored match produced by a provider.
type Candidate struct {
	TrackID    int64
	ExternalID string
	Method     models.MatchMethod
	Confidence int
	Evidence   models.ConfidenceEvidence
	Raw        models.AttrBag
}

// Provider runs the two-pass matching strategy for a single service.
type Provider struct {
	service     models.Service
	isrcSearch  connector.ISRCSearcher
	trackSearch connector.TrackSearcher
	batchOpts   batch.Options
}

// New builds a Provider for adapter. isrcSearch/trackSearch are obtained
// via type assertion by the caller, since not every adapter implements
// both (e.g. Last.fm has no ISRC search).
func New(service models.Service, isrcSearch connector.ISRCSearcher, trackSearch connector.TrackSearcher, batchSize int) *Provider {
	if batchSize <= 0 {
		batchSize = 30
	}
	return &Provider{
		service:     service,
		isrcSearch:  isrcSearch,
		trackSearch: trackSearch,
		batchOpts: batch.Options{
			Concurrency: batchSize,
			MaxRetries:  2,
		},
	}
}

// Match runs both passes over tracks and returns a candidate per track id
// that cleared minConfidence. Tracks the provider could not resolve, or
// whose candidate scored below the threshold, are simply absent from the
// result (spec.md §4.6: "a per-item API failure omits that id").
func (p *Provider) Match(ctx context.Context, tracks []models.Track, minConfidence int) map[int64]Candidate {
	out := make(map[int64]Candidate, len(tracks))

	var withISRC, withoutISRC []models.Track
	for _, t := range tracks {
		if t.ISRC != "" && p.isrcSearch != nil {
			withISRC = append(withISRC, t)
		} else {
			withoutISRC = append(withoutISRC, t)
		}
	}

	if len(withISRC) > 0 {
		results := batch.Run(ctx, withISRC, p.batchOpts, func(ctx context.Context, t models.Track) (*Candidate, error) {
			return p.matchByISRC(ctx, t)
		})
		for _, r := range results {
			if r.Err != nil || r.Output == nil {
				withoutISRC = append(withoutISRC, r.Item)
				continue
			}
			if r.Output.Confidence >= minConfidence {
				out[r.Item.ID] = *r.Output
			} else {
				withoutISRC = append(withoutISRC, r.Item)
			}
		}
	}

	if len(withoutISRC) > 0 && p.trackSearch != nil {
		results := batch.Run(ctx, withoutISRC, p.batchOpts, func(ctx context.Context, t models.Track) (*Candidate, error) {
			return p.matchByArtistTitle(ctx, t)
		})
		for _, r := range results {
			if r.Err != nil || r.Output == nil {
				continue
			}
			if r.Output.Confidence >= minConfidence {
				out[r.Item.ID] = *r.Output
			}
		}
	}

	return out
}

func (p *Provider) matchByISRC(ctx context.Context, t models.Track) (*Candidate, error) {
	raw, found, err := p.isrcSearch.SearchByISRC(ctx, t.ISRC)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return p.score(t, raw, models.MatchMethodISRC), nil
}

func (p *Provider) matchByArtistTitle(ctx context.Context, t models.Track) (*Candidate, error) {
	raw, found, err := p.trackSearch.SearchTrack(ctx, t.FirstArtist(), t.Title)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return p.score(t, raw, models.MatchMethodArtistTitle), nil
}

func (p *Provider) score(t models.Track, raw models.AttrBag, method models.MatchMethod) *Candidate {
	var durationPtr *int64
	if ms := raw.Int("duration_ms"); ms != 0 {
		durationPtr = &ms
	}
	external := matching.ExternalTrack{
		Title:      raw.String("title"),
		Artist:     raw.String("artist"),
		DurationMs: durationPtr,
	}
	confidence, evidence := matching.Score(t, external, method)

	externalID := raw.String("id")
	if externalID == "" {
		externalID = raw.String("mbid")
	}

	return &Candidate{
		TrackID:    t.ID,
		ExternalID: externalID,
		Method:     method,
		Confidence: confidence,
		Evidence:   evidence,
		Raw:        raw,
	}
}
