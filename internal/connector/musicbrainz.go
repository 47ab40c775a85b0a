package connector

import (
	"context"

	"github.com/w-ash/narada/internal/models"
)

// MusicBrainzAdapter is the MBID-matching-pass stub supplemented from
// original_source/ (SPEC_FULL.md S1): the original system has a
// MusicBrainz matching provider behind the same two-pass contract as
// Spotify/Last.fm, gated on an MBID being present. No example repo in the
// pack talks to MusicBrainz, so this ships as a capability-complete stub
// that always reports itself unavailable. Nothing constructs it:
// internal/matchprovider has no MBID pass and does not call it.
type MusicBrainzAdapter struct{}

// NewMusicBrainzAdapter returns the stub adapter.
func NewMusicBrainzAdapter() *MusicBrainzAdapter { return &MusicBrainzAdapter{} }

func (a *MusicBrainzAdapter) Service() models.Service { return models.ServiceMusicBrainz }

// SearchByMBID always reports the provider unavailable; a future revision
// would call MusicBrainz's /ws/2/recording endpoint here.
func (a *MusicBrainzAdapter) SearchByMBID(ctx context.Context, mbid string) (models.AttrBag, bool, error) {
	return nil, false, models.ErrProviderUnavailable
}
