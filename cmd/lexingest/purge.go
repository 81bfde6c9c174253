package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexhaven/lexingest/internal/logging"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <file.pdf>",
	Short: "Delete all vectors for a document",
	Long: `Purge removes every stored vector whose source_pdf matches the given
document name. The name is matched exactly as stored, e.g. "ipc.pdf".

Examples:
  lexingest purge ipc.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runPurge,
}

func runPurge(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(logger) }()

	ctx, cancel := signalContext()
	defer cancel()

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Purge(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("purged vectors for %s\n", args[0])
	return nil
}
