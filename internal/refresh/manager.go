// Package refresh implements the metadata manager (C7): refreshing
// per-service metrics for already-mapped tracks, gated by the metric
// registry's TTLs, without ever re-running matching.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/metric"
	"github.com/w-ash/narada/internal/models"
	"github.com/w-ash/narada/internal/repository"
)

// AsAttributeMap is the typed dispatch interface replacing the source's
// hasattr-based conversion (spec.md §9): a connector's raw info type
// implements this to become a flat models.AttrBag. models.AttrBag already
// satisfies this trivially, so a connector returning one needs no adapter
// at all; it exists for connectors whose raw type is richer than a bag.
type AsAttributeMap interface {
	AsAttributeMap() models.AttrBag
}

// TrackInfoFetcher is the connector capability the manager needs:
// batch_get_track_info keyed by internal track id.
type TrackInfoFetcher interface {
	BatchGetTrackInfo(ctx context.Context, tracks map[int64]models.ConnectorTrack) (map[int64]models.AttrBag, error)
}

// Manager refreshes metrics for one service.
type Manager struct {
	repos    *repository.Repositories
	fetcher  TrackInfoFetcher
	registry *metric.Registry
	service  models.Service
	log      logging.Logger
}

// New builds a Manager for service.
func New(repos *repository.Repositories, fetcher TrackInfoFetcher, registry *metric.Registry, service models.Service, log logging.Logger) *Manager {
	return &Manager{repos: repos, fetcher: fetcher, registry: registry, service: service, log: log}
}

// Refresh implements spec.md §4.7's algorithm for the given candidate ids
// (already determined by the caller to need a refresh). Ids with no
// mapping to this service are dropped before the remote call, since
// refresh never triggers matching. Returns the fresh per-track attribute
// maps and the set of ids that failed.
func (m *Manager) Refresh(ctx context.Context, trackIDs []int64, metricNames []string) (map[int64]models.AttrBag, map[int64]bool, error) {
	fresh := make(map[int64]models.AttrBag)
	failed := make(map[int64]bool)
	if len(trackIDs) == 0 {
		return fresh, failed, nil
	}

	mappings, err := m.repos.Mappings.GetMappingsByTrack(ctx, trackIDs, m.service)
	if err != nil {
		return nil, nil, fmt.Errorf("load mappings for refresh: %w", err)
	}

	tracksWithMapping := make(map[int64]models.ConnectorTrack)
	for _, id := range trackIDs {
		svcMap, ok := mappings[id]
		if !ok {
			continue
		}
		externalID, ok := svcMap[m.service]
		if !ok {
			continue
		}
		ct, err := m.repos.ConnectorTracks.GetByExternal(ctx, m.service, externalID)
		if err != nil {
			failed[id] = true
			continue
		}
		tracksWithMapping[id] = *ct
	}

	if len(tracksWithMapping) == 0 {
		return fresh, failed, nil
	}

	info, err := m.fetcher.BatchGetTrackInfo(ctx, tracksWithMapping)
	if err != nil {
		return nil, nil, fmt.Errorf("batch get track info: %w", err)
	}

	var metricTuples []models.TrackMetric
	for id := range tracksWithMapping {
		bag, ok := info[id]
		if !ok {
			failed[id] = true
			continue
		}
		converted := toAttributeMap(bag)
		fresh[id] = converted

		for _, name := range metricNames {
			def := m.registry.Lookup(name)
			if def.OwningService != "" && def.OwningService != m.service {
				continue
			}
			if v, ok := converted[def.ExternalFieldKey]; ok {
				var value float64
				switch v.Kind {
				case models.AttrKindInt:
					value = float64(v.Int)
				case models.AttrKindFloat:
					value = v.Flt
				default:
					continue
				}
				metricTuples = append(metricTuples, models.TrackMetric{
					TrackID:    id,
					Service:    m.service,
					MetricName: name,
					Value:      value,
					ObservedAt: time.Now().UTC(),
				})
			}
		}
	}

	if len(metricTuples) > 0 {
		if err := m.repos.Metrics.BulkPut(ctx, metricTuples); err != nil {
			return nil, nil, fmt.Errorf("persist refreshed metrics: %w", err)
		}
	}

	return fresh, failed, nil
}

// toAttributeMap is the sole conversion point from an external info
// payload to a flat attribute map (spec.md §4.7 step 3). Every adapter in
// this module already returns models.AttrBag directly, so this is a
// pass-through; a connector whose raw info type is richer (implements
// AsAttributeMap) would be dispatched here instead of at the call site.
func toAttributeMap(raw models.AttrBag) models.AttrBag {
	return raw
}

// GetCachedMetadata returns whatever the repository already has, with no
// freshness filter.
func (m *Manager) GetCachedMetadata(ctx context.Context, trackIDs []int64, metricName string) (map[int64]float64, error) {
	return m.repos.Metrics.Get(ctx, trackIDs, metricName, m.service, 0)
}

// GetAllMetadata merges a fresh map (keyed by track id) over cached
// values, returning the union.
func (m *Manager) GetAllMetadata(ctx context.Context, trackIDs []int64, metricName string, fresh map[int64]float64) (map[int64]float64, error) {
	cached, err := m.GetCachedMetadata(ctx, trackIDs, metricName)
	if err != nil {
		return nil, err
	}
	for id, v := range fresh {
		cached[id] = v
	}
	return cached, nil
}
