package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/models"
)

func writeExportFile(t *testing.T, records string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(records), 0o644))
	return path
}

func TestSpotifyFileFetcher_ParsesValidRecordsAndSkipsMalformedOnes(t *testing.T) {
	path := writeExportFile(t, `[
		{"ts":"2026-01-01T12:00:00Z","spotify_track_uri":"spotify:track:abc","master_metadata_track_name":"Nude","master_metadata_album_artist_name":"Radiohead","master_metadata_album_album_name":"In Rainbows","ms_played":250000},
		{"ts":"2026-01-02T12:00:00Z","spotify_track_uri":"","master_metadata_track_name":"Missing URI"},
		{"ts":"not-a-timestamp","spotify_track_uri":"spotify:track:def","master_metadata_track_name":"Bad Timestamp"}
	]`)

	f := NewSpotifyFileFetcher(path, logging.NewDefault())
	plays, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, plays, 1)
	require.Equal(t, "Nude", plays[0].Context.String(models.CtxTitle))
	require.Equal(t, int64(250000), *plays[0].MsPlayed)
}

func TestSpotifyFileFetcher_SecondCallReturnsEmpty(t *testing.T) {
	path := writeExportFile(t, `[]`)
	f := NewSpotifyFileFetcher(path, logging.NewDefault())

	_, err := f.Fetch(context.Background())
	require.NoError(t, err)

	second, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Empty(t, second)
}

func TestSpotifyFileFetcher_MissingFileReturnsError(t *testing.T) {
	f := NewSpotifyFileFetcher(filepath.Join(t.TempDir(), "missing.json"), logging.NewDefault())
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
}

func TestSpotifyFileResolver_LooksUpByURI(t *testing.T) {
	id := int64(7)
	resolver := &SpotifyFileResolver{resolved: map[string]*int64{"spotify:track:abc": &id}}

	raw := RawPlay{Context: models.AttrBag{models.CtxSpotifyURI: models.StrAttr("spotify:track:abc")}}
	got, err := resolver.Resolve(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, &id, got)
}

func TestSpotifyFileResolver_UnknownURIResolvesNil(t *testing.T) {
	resolver := &SpotifyFileResolver{resolved: map[string]*int64{}}

	raw := RawPlay{Context: models.AttrBag{models.CtxSpotifyURI: models.StrAttr("spotify:track:unknown")}}
	got, err := resolver.Resolve(context.Background(), raw)
	require.NoError(t, err)
	require.Nil(t, got)
}
