// Command narada is the thin CLI shell over the sync engine (spec.md §6):
// it wires configuration, logging, storage, and adapters together and maps
// each use-case's OperationResult onto a process exit code.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/w-ash/narada/internal/config"
	"github.com/w-ash/narada/internal/logging"
	"github.com/w-ash/narada/internal/models"
	"github.com/w-ash/narada/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "narada: load config:", err)
		os.Exit(1)
	}

	log := logging.New(os.Stderr, cfg.LogLevel)

	db, err := repository.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := repository.NewRepositories(db)
	runner := NewRunner(cfg, repos, log)

	app := &cli.Command{
		Name:  "narada",
		Usage: "Reconcile and synchronize listening history and likes across music services",
		Commands: []*cli.Command{
			playsCommand(runner),
			likesCommand(runner),
			metadataCommand(runner),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// reportResult maps an OperationResult and its error to the command's
// return value (spec.md §6, §7): a non-nil error here is what drives a
// non-zero exit code; "zero work" success stays a nil error.
func reportResult(log logging.Logger, result models.OperationResult, err error) error {
	if err != nil {
		return err
	}
	log.Info("operation complete",
		"processed", result.Processed,
		"imported", result.Imported,
		"exported", result.Exported,
		"skipped", result.Skipped,
		"cancelled", result.Cancelled,
	)
	for _, e := range result.Errors {
		log.Warn("operation error", "detail", e)
	}
	if !result.Success {
		return fmt.Errorf("operation did not complete successfully (%d errors)", len(result.Errors))
	}
	return nil
}
