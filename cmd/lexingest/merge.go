package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexhaven/lexingest/internal/chunker"
	"github.com/lexhaven/lexingest/internal/ingest"
	"github.com/lexhaven/lexingest/internal/loader"
	"github.com/lexhaven/lexingest/internal/logging"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <folder> <out.txt>",
	Short: "Merge the text of all PDFs in a folder into one file",
	Long: `Merge extracts the page text of every PDF in the folder, in sorted
order, and writes it to a single text file. Unreadable PDFs are skipped
with a warning.

Examples:
  lexingest merge ./statutes corpus.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runMerge,
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(logger) }()

	ctx, cancel := signalContext()
	defer cancel()

	// Merge only extracts text; no embedder or store is wired.
	svc := ingest.NewService(ingest.Config{
		Collection: cfg.Ingest.Collection,
	}, loader.NewPDFLoader(), chunker.New(chunker.Config{}), nil, nil, logger)

	if err := svc.MergeFolder(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("merged %s into %s\n", args[0], args[1])
	return nil
}
