// Package identity implements the identity resolver (C6): maps a list of
// internal tracks to per-service external ids, preferring already-stored
// mappings over re-matching, persisting newly resolved ones.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/matchprovider"
	"github.com/w-ash/narada/internal/models"
	"github.com/w-ash/narada/internal/repository"
)

// MatchResult is the per-track outcome the resolver returns, carrying
// enough to let a caller go straight to a repository write or a connector
// call without re-deriving anything.
type MatchResult struct {
	Track      models.Track
	ExternalID string
	Confidence int
	Method     models.MatchMethod
	Evidence   models.ConfidenceEvidence
}

// Resolver is constructed once per (service, provider) pairing and reused
// across use-cases.
type Resolver struct {
	repos    *repository.Repositories
	provider *matchprovider.Provider
	service  models.Service
	log      logging.Logger
}

// New builds a Resolver for service, backed by provider for net-new
// matches and repos for existing-mapping lookups and persistence.
func New(repos *repository.Repositories, provider *matchprovider.Provider, service models.Service, log logging.Logger) *Resolver {
	return &Resolver{repos: repos, provider: provider, service: service, log: log}
}

// Resolve implements spec.md §4.6's algorithm: drop tracks without an id,
// load existing mappings without re-scoring them, match the residual set
// through the matching provider, persist new resolutions, and return the
// union keyed by track id.
func (r *Resolver) Resolve(ctx context.Context, tracks []models.Track, minConfidence int) (map[int64]MatchResult, error) {
	out := make(map[int64]MatchResult)

	valid := make([]models.Track, 0, len(tracks))
	ids := make([]int64, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == 0 {
			continue
		}
		valid = append(valid, t)
		ids = append(ids, t.ID)
	}
	if len(valid) == 0 {
		return out, nil
	}

	existing, err := r.repos.Mappings.GetMappingsByTrack(ctx, ids, r.service)
	if err != nil {
		return nil, fmt.Errorf("load existing mappings: %w", err)
	}

	byID := make(map[int64]models.Track, len(valid))
	for _, t := range valid {
		byID[t.ID] = t
	}

	var residual []models.Track
	for _, t := range valid {
		if svcMap, ok := existing[t.ID]; ok {
			if externalID, ok := svcMap[r.service]; ok {
				info, err := r.repos.Mappings.GetMappingInfo(ctx, t.ID, r.service, externalID)
				if err != nil {
					return nil, fmt.Errorf("load mapping info for track %d: %w", t.ID, err)
				}
				out[t.ID] = MatchResult{
					Track:      t,
					ExternalID: externalID,
					Confidence: info.Confidence,
					Method:     info.MatchMethod,
					Evidence:   info.Evidence,
				}
				continue
			}
		}
		residual = append(residual, t)
	}

	if len(residual) == 0 {
		return out, nil
	}

	candidates := r.provider.Match(ctx, residual, minConfidence)
	if len(candidates) == 0 {
		return out, nil
	}

	connectorRecords := make([]models.ConnectorTrack, 0, len(candidates))
	for trackID, c := range candidates {
		t := byID[trackID]
		connectorRecords = append(connectorRecords, models.ConnectorTrack{
			Service:     r.service,
			ExternalID:  c.ExternalID,
			Title:       c.Raw.String("title"),
			Artists:     []models.Artist{{Name: c.Raw.String("artist")}},
			RawMetadata: c.Raw,
			LastUpdated: time.Now().UTC(),
		})
		_ = t
	}

	saved, err := r.repos.ConnectorTracks.BulkUpsert(ctx, connectorRecords)
	if err != nil {
		return nil, fmt.Errorf("persist connector tracks: %w", err)
	}

	savedByExternal := make(map[string]models.ConnectorTrack, len(saved))
	for _, ct := range saved {
		savedByExternal[ct.ExternalID] = ct
	}

	mappings := make([]models.TrackMapping, 0, len(candidates))
	for trackID, c := range candidates {
		ct, ok := savedByExternal[c.ExternalID]
		if !ok {
			continue
		}
		mappings = append(mappings, models.TrackMapping{
			TrackID:          trackID,
			ConnectorTrackID: ct.ID,
			Service:          r.service,
			MatchMethod:      c.Method,
			Confidence:       c.Confidence,
			Evidence:         c.Evidence,
		})
		out[trackID] = MatchResult{
			Track:      byID[trackID],
			ExternalID: c.ExternalID,
			Confidence: c.Confidence,
			Method:     c.Method,
			Evidence:   c.Evidence,
		}
	}

	if err := r.repos.Mappings.BulkUpsert(ctx, mappings); err != nil {
		return nil, fmt.Errorf("persist mappings: %w", err)
	}

	return out, nil
}
