package metric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/w-ash/narada/internal/models"
)

func TestNewDefaultRegistry_RegistersWellKnownMetrics(t *testing.T) {
	r := NewDefaultRegistry()

	def := r.Lookup(MetricUserPlaycount)
	assert.Equal(t, models.ServiceLastFM, def.OwningService)
	assert.Equal(t, UserPlaycountTTL, def.TTL)
	assert.Equal(t, "userplaycount", def.ExternalFieldKey)

	def = r.Lookup(MetricPopularity)
	assert.Equal(t, models.ServiceSpotify, def.OwningService)
}

func TestLookup_UnregisteredNameReturnsDefaultTTLWithNoOwner(t *testing.T) {
	r := NewDefaultRegistry()
	def := r.Lookup("never_registered")

	assert.Equal(t, DefaultTTL, def.TTL)
	assert.Equal(t, models.Service(""), def.OwningService)
}

func TestRegister_ZeroTTLFallsBackToDefault(t *testing.T) {
	r := &Registry{defs: map[string]Definition{}}
	r.Register(Definition{Name: "custom"})

	assert.Equal(t, DefaultTTL, r.Lookup("custom").TTL)
}

func TestRegister_OverridesExistingDefinition(t *testing.T) {
	r := NewDefaultRegistry()
	r.Register(Definition{Name: MetricListeners, TTL: time.Minute, OwningService: models.ServiceSpotify})

	def := r.Lookup(MetricListeners)
	assert.Equal(t, time.Minute, def.TTL)
	assert.Equal(t, models.ServiceSpotify, def.OwningService)
}
