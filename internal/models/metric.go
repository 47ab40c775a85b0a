package models

import "time"

// TrackMetric is a single per-service, per-metric observation. Keyed by
// (TrackID, Service, MetricName); writes upsert and refresh ObservedAt.
type TrackMetric struct {
	TrackID    int64     `json:"trackId"`
	Service    Service   `json:"service"`
	MetricName string    `json:"metricName"`
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observedAt"`
}

// Fresh reports whether the metric is still within its TTL as of now.
func (m TrackMetric) Fresh(ttl time.Duration, now time.Time) bool {
	return now.Sub(m.ObservedAt) < ttl
}

// TrackLike is the binary "favorited" marker for a track on a service.
type TrackLike struct {
	TrackID    int64      `json:"trackId"`
	Service    Service    `json:"service"`
	IsLiked    bool       `json:"isLiked"`
	LikedAt    *time.Time `json:"likedAt,omitempty"`
	LastSynced time.Time  `json:"lastSynced"`
}
