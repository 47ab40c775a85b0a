package models

import "time"

// Playlist is an ordered collection of tracks, optionally published to one
// or more external services.
type Playlist struct {
	ID                 int64             `json:"id"`
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	TrackIDs           []int64           `json:"trackIds"`
	ConnectorPlaylistIDs map[Service]string `json:"connectorPlaylistIds,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
	Deleted            bool              `json:"-"`
}

// reservedPlaylistNames are forbidden as connector playlist names because
// they collide with how the engine refers to itself in logs and output.
var reservedPlaylistNames = map[string]bool{
	"internal database": true,
	"this system":       true,
}

// IsReservedName reports whether name is reserved and may not be used as a
// connector playlist identifier.
func IsReservedName(name string) bool {
	return reservedPlaylistNames[name]
}

// ConnectorPlaylistItem is one entry of a connector's ordered playlist.
type ConnectorPlaylistItem struct {
	ConnectorPlaylistID string    `json:"connectorPlaylistId"`
	ConnectorTrackID    int64     `json:"connectorTrackId"`
	Position            int       `json:"position"`
	AddedAt              time.Time `json:"addedAt"`
	AddedBy              string    `json:"addedBy,omitempty"`
}
