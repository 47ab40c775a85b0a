// Package config loads process configuration from environment variables,
// grounded on sglre6355-sgrbot's caarlos0/env/v11 pattern. A .env file is
// loaded first if present (kirbs-btw-spotify-playlist-dataset's godotenv
// pattern) so local development doesn't require exporting vars by hand.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full set of settings the engine needs at startup. Field
// names mirror spec.md §6's environment variable list.
type Config struct {
	DatabasePath string `env:"DATABASE_PATH" envDefault:"narada.db"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	SpotifyRedirectURI  string `env:"SPOTIFY_REDIRECT_URI" envDefault:"http://127.0.0.1:8080/callback"`
	// SpotifyAccessToken is a pre-obtained OAuth token; the interactive
	// authorization-code exchange is CLI-shell territory and out of scope
	// here (spec.md §1's out-of-scope list).
	SpotifyAccessToken  string `env:"SPOTIFY_ACCESS_TOKEN"`
	SpotifyRefreshToken string `env:"SPOTIFY_REFRESH_TOKEN"`

	LastFMUsername  string `env:"LASTFM_USERNAME"`
	LastFMAPIKey    string `env:"LASTFM_API_KEY"`
	LastFMAPISecret string `env:"LASTFM_API_SECRET"`

	DefaultAPIBatchSize    int `env:"DEFAULT_API_BATCH_SIZE" envDefault:"50"`
	DefaultImportBatchSize int `env:"DEFAULT_IMPORT_BATCH_SIZE" envDefault:"50"`
	DefaultMatchBatchSize  int `env:"DEFAULT_MATCH_BATCH_SIZE" envDefault:"30"`
	DefaultSyncBatchSize   int `env:"DEFAULT_SYNC_BATCH_SIZE" envDefault:"20"`

	SpotifyAPIBatchSize int `env:"SPOTIFY_API_BATCH_SIZE" envDefault:"0"`
	LastFMAPIBatchSize  int `env:"LASTFM_API_BATCH_SIZE" envDefault:"0"`
}

// Load reads a .env file if one exists in the working directory, then
// parses environment variables into a Config. A missing .env file is not
// an error; malformed environment values are.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// APIBatchSizeFor returns the per-service override if set, otherwise the
// default API batch size (spec.md §6, "<SERVICE>_API_BATCH_SIZE").
func (c *Config) APIBatchSizeFor(service string) int {
	switch service {
	case "spotify":
		if c.SpotifyAPIBatchSize > 0 {
			return c.SpotifyAPIBatchSize
		}
	case "lastfm":
		if c.LastFMAPIBatchSize > 0 {
			return c.LastFMAPIBatchSize
		}
	}
	return c.DefaultAPIBatchSize
}
