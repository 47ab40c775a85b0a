package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// playsCommand groups every "plays ..." subcommand from spec.md §6.
func playsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "plays",
		Usage: "Import listening history from a service",
		Commands: []*cli.Command{
			{
				Name:  "spotify-file",
				Usage: "Import plays from a Spotify personal-data export file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					result, err := r.PlaysSpotifyFile(ctx, cmd.StringArg("path"))
					return reportResult(r.log, result, err)
				},
			},
			{
				Name:  "lastfm-recent",
				Usage: "Import the most recent Last.fm plays",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum plays to fetch", Value: 200},
					&cli.BoolFlag{Name: "resolve-tracks", Usage: "Attempt fresh matching for unmapped tracks"},
					&cli.StringFlag{Name: "user", Usage: "Checkpoint user id"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					result, err := r.PlaysLastfmRecent(ctx, cmd.String("user"), int(cmd.Int("limit")), cmd.Bool("resolve-tracks"))
					return reportResult(r.log, result, err)
				},
			},
			{
				Name:  "lastfm-incremental",
				Usage: "Import Last.fm plays since the last checkpoint",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Checkpoint user id"},
					&cli.BoolFlag{Name: "resolve-tracks", Usage: "Attempt fresh matching for unmapped tracks", Value: true},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					result, err := r.PlaysLastfmIncremental(ctx, cmd.String("user"), cmd.Bool("resolve-tracks"))
					return reportResult(r.log, result, err)
				},
			},
			{
				Name:  "lastfm-full",
				Usage: "Reset the Last.fm checkpoint and re-import full history",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Checkpoint user id"},
					&cli.BoolFlag{Name: "confirm", Usage: "Confirm the full-history reset"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					result, err := r.PlaysLastfmFull(ctx, cmd.String("user"), cmd.Bool("confirm"))
					return reportResult(r.log, result, err)
				},
			},
		},
	}
}

// metadataCommand groups every "metadata ..." subcommand.
func metadataCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "metadata",
		Usage: "Refresh cached per-service track metrics",
		Commands: []*cli.Command{
			{
				Name:  "refresh-lastfm",
				Usage: "Refresh stale Last.fm metrics (user playcount, global playcount, listeners) for mapped tracks",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "metric", Usage: "Metric name to refresh (repeatable); defaults to every Last.fm-owned metric"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					result, err := r.MetadataRefreshLastfm(ctx, cmd.StringSlice("metric"))
					return reportResult(r.log, result, err)
				},
			},
		},
	}
}

// likesCommand groups every "likes ..." subcommand from spec.md §6.
func likesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "likes",
		Usage: "Sync liked/loved tracks between services",
		Commands: []*cli.Command{
			{
				Name:  "import-spotify",
				Usage: "Import Spotify liked tracks into the internal store",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Checkpoint user id"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					result, err := r.LikesImportSpotify(ctx, cmd.String("user"))
					return reportResult(r.log, result, err)
				},
			},
			{
				Name:  "export-lastfm",
				Usage: "Export unsynced internal likes as Last.fm loves",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Checkpoint user id"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					result, err := r.LikesExportLastfm(ctx, cmd.String("user"))
					return reportResult(r.log, result, err)
				},
			},
		},
	}
}
