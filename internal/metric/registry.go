// Package metric implements the metric registry (C3): a process-wide map
// from metric name to its freshness TTL, owning service, and the field key
// used to extract it from a connector's raw response, grounded on the
// Python metrics_registry.py module this system was distilled from.
package metric

import (
	"time"

	"github.com/w-ash/narada/internal/models"
)

// Default freshness TTLs (spec.md §6).
const (
	DefaultTTL          = 24 * time.Hour
	UserPlaycountTTL    = time.Hour
	GlobalPlaycountTTL  = 24 * time.Hour
	ListenersTTL        = 24 * time.Hour
	PopularityTTL       = 24 * time.Hour
)

// Well-known metric names.
const (
	MetricUserPlaycount   = "user_playcount"
	MetricGlobalPlaycount = "global_playcount"
	MetricListeners       = "listeners"
	MetricPopularity      = "popularity"
)

// Definition describes one registered metric: how fresh a cached value must
// be to skip a refetch, which service owns it, and the attribute key a
// connector's raw metadata stores it under.
type Definition struct {
	Name            string
	TTL             time.Duration
	OwningService   models.Service
	ExternalFieldKey string
}

// Registry is a read-mostly lookup table of metric definitions, built once
// at process start and shared by every component that reads or writes
// track metrics.
type Registry struct {
	defs map[string]Definition
}

// NewDefaultRegistry returns the registry pre-populated with the metrics
// spec.md §6 names, each tagged with its owning service (three Last.fm
// metrics and Spotify popularity).
func NewDefaultRegistry() *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	r.Register(Definition{Name: MetricUserPlaycount, TTL: UserPlaycountTTL, OwningService: models.ServiceLastFM, ExternalFieldKey: "userplaycount"})
	r.Register(Definition{Name: MetricGlobalPlaycount, TTL: GlobalPlaycountTTL, OwningService: models.ServiceLastFM, ExternalFieldKey: "playcount"})
	r.Register(Definition{Name: MetricListeners, TTL: ListenersTTL, OwningService: models.ServiceLastFM, ExternalFieldKey: "listeners"})
	r.Register(Definition{Name: MetricPopularity, TTL: PopularityTTL, OwningService: models.ServiceSpotify, ExternalFieldKey: "popularity"})
	return r
}

// Register adds or replaces a metric definition. Intended for tests and for
// extending the registry with connector-specific metrics at startup.
func (r *Registry) Register(def Definition) {
	if def.TTL <= 0 {
		def.TTL = DefaultTTL
	}
	r.defs[def.Name] = def
}

// Lookup returns the definition for name, or a default-TTL definition with
// no owning service if name was never registered.
func (r *Registry) Lookup(name string) Definition {
	if def, ok := r.defs[name]; ok {
		return def
	}
	return Definition{Name: name, TTL: DefaultTTL}
}

// TTL is a convenience accessor equivalent to Lookup(name).TTL.
func (r *Registry) TTL(name string) time.Duration {
	return r.Lookup(name).TTL
}

// Names returns every registered metric name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}
