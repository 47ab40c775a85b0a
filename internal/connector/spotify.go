package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/models"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// SpotifyAdapter implements the C5 capability protocol against the Spotify
// Web API, grounded on kirbs-btw-spotify-playlist-dataset's resty +
// client-credentials pattern, extended with a caller-supplied oauth2.Token
// for the user-scoped endpoints (liked tracks, recent plays, love semantics
// have no Spotify equivalent so LoveTrack is not implemented here).
type SpotifyAdapter struct {
	client *resty.Client
	log    logging.Logger
}

// NewSpotifyAdapter builds an adapter authenticated with token. The
// adapter copies token.AccessToken into its HTTP client once, here at
// construction; it does not refresh or re-read the token afterwards.
func NewSpotifyAdapter(token *oauth2.Token, log logging.Logger) *SpotifyAdapter {
	client := resty.New().
		SetBaseURL(spotifyBaseURL).
		SetAuthToken(token.AccessToken).
		SetRetryCount(0) // retries are C1's job, not the HTTP client's

	return &SpotifyAdapter{client: client, log: log}
}

func (a *SpotifyAdapter) Service() models.Service { return models.ServiceSpotify }

func (a *SpotifyAdapter) wrapError(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransientRemote, err)
	}
	if resp.StatusCode() == 429 || resp.StatusCode() >= 500 {
		return fmt.Errorf("%w: spotify status %d", models.ErrTransientRemote, resp.StatusCode())
	}
	if resp.IsError() {
		return fmt.Errorf("%w: spotify status %d", models.ErrPermanentRemote, resp.StatusCode())
	}
	return nil
}

// BatchGetTracks fetches up to 50 tracks per call via GET /tracks?ids=.
func (a *SpotifyAdapter) BatchGetTracks(ctx context.Context, externalIDs []string) (map[string]models.AttrBag, error) {
	out := make(map[string]models.AttrBag, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}

	var body struct {
		Tracks []rawSpotifyTrack `json:"tracks"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("ids", strings.Join(externalIDs, ",")).
		SetResult(&body).
		Get("/tracks")
	if err := a.wrapError(resp, err); err != nil {
		return nil, err
	}

	for _, t := range body.Tracks {
		if t.ID == "" {
			continue
		}
		out[t.ID] = t.toAttrBag()
	}
	return out, nil
}

// SearchByISRC uses the search endpoint with an isrc: filter.
func (a *SpotifyAdapter) SearchByISRC(ctx context.Context, isrc string) (models.AttrBag, bool, error) {
	return a.search(ctx, fmt.Sprintf("isrc:%s", isrc))
}

// SearchTrack uses the search endpoint with artist:/track: filters.
func (a *SpotifyAdapter) SearchTrack(ctx context.Context, artist, title string) (models.AttrBag, bool, error) {
	query := fmt.Sprintf("track:%s artist:%s", title, artist)
	return a.search(ctx, query)
}

func (a *SpotifyAdapter) search(ctx context.Context, query string) (models.AttrBag, bool, error) {
	var body struct {
		Tracks struct {
			Items []rawSpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"q": query, "type": "track", "limit": "1"}).
		SetResult(&body).
		Get("/search")
	if err := a.wrapError(resp, err); err != nil {
		return nil, false, err
	}
	if len(body.Tracks.Items) == 0 {
		return nil, false, nil
	}
	return body.Tracks.Items[0].toAttrBag(), true, nil
}

// BatchGetTrackInfo re-fetches the raw track payload for each already
// mapped track; Spotify's track object already carries popularity, so no
// separate per-user endpoint is needed here (unlike Last.fm's playcount).
func (a *SpotifyAdapter) BatchGetTrackInfo(ctx context.Context, tracks map[int64]models.ConnectorTrack) (map[int64]models.AttrBag, error) {
	ids := make([]string, 0, len(tracks))
	idToTrack := make(map[string]int64, len(tracks))
	for internalID, ct := range tracks {
		ids = append(ids, ct.ExternalID)
		idToTrack[ct.ExternalID] = internalID
	}

	raw, err := a.BatchGetTracks(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]models.AttrBag, len(raw))
	for extID, bag := range raw {
		out[idToTrack[extID]] = bag
	}
	return out, nil
}

// GetLikedTracks pages through GET /me/tracks.
func (a *SpotifyAdapter) GetLikedTracks(ctx context.Context, limit int, cursor string) ([]LikedRecord, string, error) {
	if limit <= 0 {
		limit = 50
	}
	offset := "0"
	if cursor != "" {
		offset = cursor
	}

	var body struct {
		Items []struct {
			AddedAt string        `json:"added_at"`
			Track   rawSpotifyTrack `json:"track"`
		} `json:"items"`
		Next string `json:"next"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"limit": fmt.Sprintf("%d", limit), "offset": offset}).
		SetResult(&body).
		Get("/me/tracks")
	if err := a.wrapError(resp, err); err != nil {
		return nil, "", err
	}

	records := make([]LikedRecord, 0, len(body.Items))
	for _, item := range body.Items {
		likedAt, _ := time.Parse(time.RFC3339, item.AddedAt)
		records = append(records, LikedRecord{
			ExternalID: item.Track.ID,
			Raw:        item.Track.toAttrBag(),
			LikedAt:    &likedAt,
		})
	}

	nextCursor := ""
	if body.Next != "" {
		nextCursor = fmt.Sprintf("%d", offsetPlus(offset, limit))
	}
	return records, nextCursor, nil
}

func offsetPlus(offset string, limit int) int {
	var n int
	fmt.Sscanf(offset, "%d", &n)
	return n + limit
}

// GetRecentPlays pages through GET /me/player/recently-played.
func (a *SpotifyAdapter) GetRecentPlays(ctx context.Context, limit int, fromTime *time.Time, page string) ([]PlayRecord, bool, string, error) {
	if limit <= 0 {
		limit = 50
	}

	params := map[string]string{"limit": fmt.Sprintf("%d", limit)}
	if page != "" {
		params["after"] = page
	} else if fromTime != nil {
		params["after"] = fmt.Sprintf("%d", fromTime.UnixMilli())
	}

	var body struct {
		Items []struct {
			PlayedAt string        `json:"played_at"`
			Track    rawSpotifyTrack `json:"track"`
		} `json:"items"`
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&body).
		Get("/me/player/recently-played")
	if err := a.wrapError(resp, err); err != nil {
		return nil, false, "", err
	}

	records := make([]PlayRecord, 0, len(body.Items))
	for _, item := range body.Items {
		playedAt, _ := time.Parse(time.RFC3339, item.PlayedAt)
		records = append(records, PlayRecord{
			ExternalID: item.Track.ID,
			PlayedAt:   playedAt.UTC(),
			Raw:        item.Track.toAttrBag(),
		})
	}
	hasMore := body.Cursors.After != ""
	return records, hasMore, body.Cursors.After, nil
}

// GetPlaylist fetches a playlist's items via GET /playlists/{id}/tracks.
func (a *SpotifyAdapter) GetPlaylist(ctx context.Context, externalID string) (*PlaylistRecord, error) {
	var playlistBody struct {
		Name string `json:"name"`
	}
	resp, err := a.client.R().SetContext(ctx).SetResult(&playlistBody).Get("/playlists/" + externalID)
	if err := a.wrapError(resp, err); err != nil {
		return nil, err
	}

	var itemsBody struct {
		Items []struct {
			AddedAt string        `json:"added_at"`
			AddedBy struct {
				ID string `json:"id"`
			} `json:"added_by"`
			Track rawSpotifyTrack `json:"track"`
		} `json:"items"`
	}
	resp, err = a.client.R().SetContext(ctx).SetResult(&itemsBody).Get("/playlists/" + externalID + "/tracks")
	if err := a.wrapError(resp, err); err != nil {
		return nil, err
	}

	items := make([]models.ConnectorPlaylistItem, 0, len(itemsBody.Items))
	for i, it := range itemsBody.Items {
		addedAt, _ := time.Parse(time.RFC3339, it.AddedAt)
		items = append(items, models.ConnectorPlaylistItem{
			ConnectorPlaylistID: externalID,
			Position:            i,
			AddedAt:              addedAt.UTC(),
			AddedBy:              it.AddedBy.ID,
		})
	}

	return &PlaylistRecord{ExternalID: externalID, Name: playlistBody.Name, Items: items}, nil
}

func (a *SpotifyAdapter) CreatePlaylist(ctx context.Context, name, description string, trackExternalIDs []string) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"name": name, "description": description, "public": false}).
		SetResult(&created).
		Post("/me/playlists")
	if err := a.wrapError(resp, err); err != nil {
		return "", err
	}

	if len(trackExternalIDs) > 0 {
		if err := a.UpdatePlaylist(ctx, created.ID, trackExternalIDs, true); err != nil {
			return created.ID, err
		}
	}
	return created.ID, nil
}

func (a *SpotifyAdapter) UpdatePlaylist(ctx context.Context, externalID string, trackExternalIDs []string, replace bool) error {
	uris := make([]string, len(trackExternalIDs))
	for i, id := range trackExternalIDs {
		uris[i] = "spotify:track:" + id
	}

	method := a.client.R().SetContext(ctx).SetBody(map[string]any{"uris": uris})
	var resp *resty.Response
	var err error
	if replace {
		resp, err = method.Put("/playlists/" + externalID + "/tracks")
	} else {
		resp, err = method.Post("/playlists/" + externalID + "/tracks")
	}
	return a.wrapError(resp, err)
}

type rawSpotifyTrack struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DurationMs    int64  `json:"duration_ms"`
	Popularity    int64  `json:"popularity"`
	ExternalIDs   struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
	Album struct {
		Name        string `json:"name"`
		ReleaseDate string `json:"release_date"`
	} `json:"album"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	LinkedFrom *struct {
		ID string `json:"id"`
	} `json:"linked_from"`
}

func (t rawSpotifyTrack) toAttrBag() models.AttrBag {
	bag := models.AttrBag{
		"id":           models.StrAttr(t.ID),
		"title":        models.StrAttr(t.Name),
		"duration_ms":  models.IntAttr(t.DurationMs),
		"popularity":   models.IntAttr(t.Popularity),
		"isrc":         models.StrAttr(t.ExternalIDs.ISRC),
		"album":        models.StrAttr(t.Album.Name),
		"release_date": models.StrAttr(t.Album.ReleaseDate),
	}
	if len(t.Artists) > 0 {
		bag["artist"] = models.StrAttr(t.Artists[0].Name)
	}
	if t.LinkedFrom != nil {
		bag["linked_from"] = models.StrAttr(t.LinkedFrom.ID)
	}
	return bag
}
