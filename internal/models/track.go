package models

import "time"

// Artist is a value object; it is copied by value everywhere it appears.
type Artist struct {
	Name string `json:"name"`
}

// Track is the canonical, internal representation of a recording. ID is
// assigned on first persist and never changes afterward.
type Track struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Artists     []Artist   `json:"artists"`
	Album       string     `json:"album,omitempty"`
	DurationMs  *int64     `json:"durationMs,omitempty"`
	ReleaseDate *time.Time `json:"releaseDate,omitempty"`
	ISRC        string     `json:"isrc,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Deleted     bool       `json:"-"`
}

// FirstArtist returns the first artist's name, or "" if the track has none.
func (t *Track) FirstArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// Valid reports whether the track satisfies the core invariants: a
// non-empty title and at least one artist.
func (t *Track) Valid() bool {
	return t.Title != "" && len(t.Artists) > 0
}

// Service identifies an external music service the engine integrates with.
type Service string

const (
	ServiceSpotify     Service = "spotify"
	ServiceLastFM      Service = "lastfm"
	ServiceMusicBrainz Service = "musicbrainz"
	ServiceInternal    Service = "internal"
)

// ConnectorTrack is a per-service track record. Keyed by (Service, ExternalID).
type ConnectorTrack struct {
	ID          int64      `json:"id"`
	Service     Service    `json:"service"`
	ExternalID  string     `json:"externalId"`
	Title       string     `json:"title"`
	Artists     []Artist   `json:"artists"`
	Album       string     `json:"album,omitempty"`
	DurationMs  *int64     `json:"durationMs,omitempty"`
	ReleaseDate *time.Time `json:"releaseDate,omitempty"`
	ISRC        string     `json:"isrc,omitempty"`
	RawMetadata AttrBag    `json:"rawMetadata,omitempty"`
	LastUpdated time.Time  `json:"lastUpdated"`
	Deleted     bool       `json:"-"`
}

// MatchMethod records how a TrackMapping was established.
type MatchMethod string

const (
	MatchMethodISRC                 MatchMethod = "isrc"
	MatchMethodMBID                 MatchMethod = "mbid"
	MatchMethodArtistTitle          MatchMethod = "artist_title"
	MatchMethodDirect               MatchMethod = "direct"
	MatchMethodExistingMapping      MatchMethod = "existing_mapping"
	MatchMethodCrossServiceTimeMatch MatchMethod = "cross_service_time_match"
	MatchMethodRelinkedID           MatchMethod = "relinked_id"
)

// ConfidenceEvidence records every intermediate quantity the confidence
// scorer computed, retained alongside the mapping for auditing.
type ConfidenceEvidence struct {
	BaseScore        int     `json:"baseScore"`
	TitleScore       float64 `json:"titleScore"`
	ArtistScore      float64 `json:"artistScore"`
	DurationScore    float64 `json:"durationScore"`
	TitleSimilarity  float64 `json:"titleSimilarity"`
	ArtistSimilarity float64 `json:"artistSimilarity"`
	DurationDiffMs   int64   `json:"durationDiffMs"`
	FinalScore       int     `json:"finalScore"`
}

// TrackMapping is a persisted edge between a Track and a ConnectorTrack.
// At most one non-deleted mapping exists for a given (TrackID, Service).
type TrackMapping struct {
	TrackID          int64              `json:"trackId"`
	ConnectorTrackID int64              `json:"connectorTrackId"`
	Service          Service            `json:"service"`
	MatchMethod      MatchMethod        `json:"matchMethod"`
	Confidence       int                `json:"confidence"`
	Evidence         ConfidenceEvidence `json:"evidence"`
	Deleted          bool               `json:"-"`
}
