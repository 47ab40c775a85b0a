package connector

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/w-ash/narada/internal/batch"
	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/models"
)

const lastfmBaseURL = "https://ws.audioscrobbler.com/2.0/"

// LastFMAdapter implements the C5 capability protocol against the Last.fm
// API, grounded on the same resty client pattern used for Spotify. Last.fm
// has no ISRC/MBID search endpoint in its public API, so SearchByISRC
// always reports no match without making a request, and SearchTrack uses
// track.search (artist+title only); IdentityResolver falls through to the
// artist_title pass for this service.
type LastFMAdapter struct {
	client   *resty.Client
	apiKey   string
	secret   string
	username string
	log      logging.Logger
}

// NewLastFMAdapter builds an adapter. apiKey/secret authenticate
// write-capable calls (love_track); username scopes the read-only calls
// to a specific listener's history.
func NewLastFMAdapter(apiKey, secret, username string, log logging.Logger) *LastFMAdapter {
	client := resty.New().SetBaseURL(lastfmBaseURL).SetRetryCount(0)
	return &LastFMAdapter{client: client, apiKey: apiKey, secret: secret, username: username, log: log}
}

func (a *LastFMAdapter) Service() models.Service { return models.ServiceLastFM }

func (a *LastFMAdapter) wrapError(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransientRemote, err)
	}
	if resp.StatusCode() == 429 || resp.StatusCode() >= 500 {
		return fmt.Errorf("%w: lastfm status %d", models.ErrTransientRemote, resp.StatusCode())
	}
	if resp.IsError() {
		return fmt.Errorf("%w: lastfm status %d", models.ErrPermanentRemote, resp.StatusCode())
	}
	return nil
}

// SearchByISRC is unsupported by Last.fm's public API; always reports no
// match rather than erroring, so C8's pass-1 simply falls through.
func (a *LastFMAdapter) SearchByISRC(ctx context.Context, isrc string) (models.AttrBag, bool, error) {
	return nil, false, nil
}

// SearchTrack uses track.search.
func (a *LastFMAdapter) SearchTrack(ctx context.Context, artist, title string) (models.AttrBag, bool, error) {
	var body struct {
		Results struct {
			TrackMatches struct {
				Track []rawLastFMTrack `json:"track"`
			} `json:"trackmatches"`
		} `json:"results"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"method": "track.search", "track": title, "artist": artist,
			"api_key": a.apiKey, "format": "json", "limit": "1",
		}).
		SetResult(&body).
		Get("")
	if err := a.wrapError(resp, err); err != nil {
		return nil, false, err
	}
	if len(body.Results.TrackMatches.Track) == 0 {
		return nil, false, nil
	}
	return body.Results.TrackMatches.Track[0].toAttrBag(), true, nil
}

type lastfmTrackInfoItem struct {
	internalID int64
	track      models.ConnectorTrack
}

// BatchGetTrackInfo calls track.getInfo per track (Last.fm has no bulk
// endpoint), routed through C1 for bounded concurrency and
// retry-on-transient-failure rather than a bare sequential loop, returning
// playcount/listeners for the registered user. A per-item failure simply
// omits that id from the result (spec.md §4.7).
func (a *LastFMAdapter) BatchGetTrackInfo(ctx context.Context, tracks map[int64]models.ConnectorTrack) (map[int64]models.AttrBag, error) {
	items := make([]lastfmTrackInfoItem, 0, len(tracks))
	for internalID, ct := range tracks {
		items = append(items, lastfmTrackInfoItem{internalID: internalID, track: ct})
	}

	results := batch.Run(ctx, items, batch.Options{Concurrency: 5, RatePerSecond: 5, MaxRetries: 2},
		func(ctx context.Context, item lastfmTrackInfoItem) (models.AttrBag, error) {
			var body struct {
				Track rawLastFMTrackInfo `json:"track"`
			}
			resp, err := a.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"method": "track.getInfo", "artist": firstArtistName(item.track), "track": item.track.Title,
					"username": a.username, "api_key": a.apiKey, "format": "json",
				}).
				SetResult(&body).
				Get("")
			if err := a.wrapError(resp, err); err != nil {
				return nil, err
			}
			return body.Track.toAttrBag(), nil
		})

	out := make(map[int64]models.AttrBag, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		out[r.Item.internalID] = r.Output
	}
	return out, nil
}

// GetLikedTracks pages through user.getLovedTracks.
func (a *LastFMAdapter) GetLikedTracks(ctx context.Context, limit int, cursor string) ([]LikedRecord, string, error) {
	if limit <= 0 {
		limit = 50
	}
	page := "1"
	if cursor != "" {
		page = cursor
	}

	var body struct {
		LovedTracks struct {
			Track []rawLastFMLovedTrack `json:"track"`
			Attr  struct {
				TotalPages string `json:"totalPages"`
				Page       string `json:"page"`
			} `json:"@attr"`
		} `json:"lovedtracks"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"method": "user.getLovedTracks", "user": a.username, "api_key": a.apiKey,
			"format": "json", "limit": strconv.Itoa(limit), "page": page,
		}).
		SetResult(&body).
		Get("")
	if err := a.wrapError(resp, err); err != nil {
		return nil, "", err
	}

	records := make([]LikedRecord, 0, len(body.LovedTracks.Track))
	for _, t := range body.LovedTracks.Track {
		var likedAt *time.Time
		if t.Date.UTS != "" {
			if sec, err := strconv.ParseInt(t.Date.UTS, 10, 64); err == nil {
				parsed := time.Unix(sec, 0).UTC()
				likedAt = &parsed
			}
		}
		records = append(records, LikedRecord{
			ExternalID: lastfmTrackKey(t.Artist.Name, t.Name),
			Raw:        t.toAttrBag(),
			LikedAt:    likedAt,
		})
	}

	nextCursor := ""
	curPage, _ := strconv.Atoi(body.LovedTracks.Attr.Page)
	totalPages, _ := strconv.Atoi(body.LovedTracks.Attr.TotalPages)
	if curPage < totalPages {
		nextCursor = strconv.Itoa(curPage + 1)
	}
	return records, nextCursor, nil
}

// GetRecentPlays pages through user.getRecentTracks.
func (a *LastFMAdapter) GetRecentPlays(ctx context.Context, limit int, fromTime *time.Time, page string) ([]PlayRecord, bool, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if page == "" {
		page = "1"
	}

	params := map[string]string{
		"method": "user.getRecentTracks", "user": a.username, "api_key": a.apiKey,
		"format": "json", "limit": strconv.Itoa(limit), "page": page,
	}
	if fromTime != nil {
		params["from"] = strconv.FormatInt(fromTime.Unix(), 10)
	}

	var body struct {
		RecentTracks struct {
			Track []rawLastFMRecentTrack `json:"track"`
			Attr  struct {
				TotalPages string `json:"totalPages"`
				Page       string `json:"page"`
			} `json:"@attr"`
		} `json:"recenttracks"`
	}
	resp, err := a.client.R().SetContext(ctx).SetQueryParams(params).SetResult(&body).Get("")
	if err := a.wrapError(resp, err); err != nil {
		return nil, false, "", err
	}

	records := make([]PlayRecord, 0, len(body.RecentTracks.Track))
	for _, t := range body.RecentTracks.Track {
		if t.Attr.NowPlaying == "true" {
			continue // currently-playing track has no played_at
		}
		sec, _ := strconv.ParseInt(t.Date.UTS, 10, 64)
		records = append(records, PlayRecord{
			ExternalID: lastfmTrackKey(t.Artist.Text, t.Name),
			PlayedAt:   time.Unix(sec, 0).UTC(),
			Raw:        t.toAttrBag(),
		})
	}

	curPage, _ := strconv.Atoi(body.RecentTracks.Attr.Page)
	totalPages, _ := strconv.Atoi(body.RecentTracks.Attr.TotalPages)
	hasMore := curPage < totalPages
	nextPage := ""
	if hasMore {
		nextPage = strconv.Itoa(curPage + 1)
	}
	return records, hasMore, nextPage, nil
}

// LoveTrack calls track.love, which requires a signed, authenticated call;
// the signature is computed per Last.fm's documented md5(sorted params +
// secret) scheme.
func (a *LastFMAdapter) LoveTrack(ctx context.Context, artist, title string) (bool, error) {
	params := map[string]string{
		"method": "track.love", "track": title, "artist": artist,
		"api_key": a.apiKey, "sk": a.username,
	}
	params["api_sig"] = a.sign(params)
	params["format"] = "json"

	resp, err := a.client.R().SetContext(ctx).SetFormData(params).Post("")
	if err := a.wrapError(resp, err); err != nil {
		return false, err
	}
	return true, nil
}

func (a *LastFMAdapter) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	raw := ""
	for _, k := range keys {
		raw += k + params[k]
	}
	raw += a.secret

	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func lastfmTrackKey(artist, title string) string {
	return artist + "::" + title
}

func firstArtistName(ct models.ConnectorTrack) string {
	if len(ct.Artists) == 0 {
		return ""
	}
	return ct.Artists[0].Name
}

type rawLastFMTrack struct {
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	Listeners string `json:"listeners"`
	MBID     string `json:"mbid"`
}

func (t rawLastFMTrack) toAttrBag() models.AttrBag {
	listeners, _ := strconv.ParseInt(t.Listeners, 10, 64)
	return models.AttrBag{
		"title":     models.StrAttr(t.Name),
		"artist":    models.StrAttr(t.Artist),
		"mbid":      models.StrAttr(t.MBID),
		"listeners": models.IntAttr(listeners),
	}
}

type rawLastFMTrackInfo struct {
	Name       string `json:"name"`
	Duration   string `json:"duration"`
	Playcount  string `json:"playcount"`
	Listeners  string `json:"listeners"`
	MBID       string `json:"mbid"`
	Artist     struct {
		Name string `json:"name"`
	} `json:"artist"`
	UserPlaycount string `json:"userplaycount"`
}

func (t rawLastFMTrackInfo) toAttrBag() models.AttrBag {
	duration, _ := strconv.ParseInt(t.Duration, 10, 64)
	playcount, _ := strconv.ParseInt(t.Playcount, 10, 64)
	listeners, _ := strconv.ParseInt(t.Listeners, 10, 64)
	userPlaycount, _ := strconv.ParseInt(t.UserPlaycount, 10, 64)
	return models.AttrBag{
		"title":          models.StrAttr(t.Name),
		"artist":         models.StrAttr(t.Artist.Name),
		"mbid":           models.StrAttr(t.MBID),
		"duration_ms":    models.IntAttr(duration),
		"playcount":      models.IntAttr(playcount),
		"listeners":      models.IntAttr(listeners),
		"userplaycount":  models.IntAttr(userPlaycount),
	}
}

type rawLastFMLovedTrack struct {
	Name   string `json:"name"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
	Date struct {
		UTS string `json:"uts"`
	} `json:"date"`
}

func (t rawLastFMLovedTrack) toAttrBag() models.AttrBag {
	return models.AttrBag{
		"title":  models.StrAttr(t.Name),
		"artist": models.StrAttr(t.Artist.Name),
	}
}

type rawLastFMRecentTrack struct {
	Name   string `json:"name"`
	Artist struct {
		Text string `json:"#text"`
	} `json:"artist"`
	Album struct {
		Text string `json:"#text"`
	} `json:"album"`
	Date struct {
		UTS string `json:"uts"`
	} `json:"date"`
	Attr struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

func (t rawLastFMRecentTrack) toAttrBag() models.AttrBag {
	return models.AttrBag{
		"title":  models.StrAttr(t.Name),
		"artist": models.StrAttr(t.Artist.Text),
		"album":  models.StrAttr(t.Album.Text),
	}
}
