package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lexhaven/lexingest/internal/logging"
)

var watchMode bool

var indexCmd = &cobra.Command{
	Use:   "index [folder]",
	Short: "Index every PDF in a folder",
	Long: `Index chunks, embeds, and upserts every PDF in the folder. Existing
vectors for each document are deleted first, so rerunning is safe.

The folder argument overrides ingest.data_folder from the config.

Examples:
  # Index the configured data folder
  lexingest index

  # Index a specific folder
  lexingest index ./statutes

  # Index, then keep watching for changes
  lexingest index ./statutes --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&watchMode, "watch", false, "keep watching the folder and reindex on changes")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(logger) }()

	folder := cfg.Ingest.DataFolder
	if len(args) == 1 {
		folder = args[0]
	}

	ctx, cancel := signalContext()
	defer cancel()

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := svc.IndexFolder(ctx, folder)
	if err != nil {
		return err
	}

	failed := 0
	for _, doc := range result.Documents {
		if doc.Failed() {
			failed++
			continue
		}
		fmt.Printf("%s: %d chunks, %d upserted (%s)\n", doc.File, doc.Chunks, doc.Upserted, doc.Act)
	}
	fmt.Printf("indexed %d documents, %d failed, %d entries skipped\n",
		len(result.Documents)-failed, failed, len(result.Skipped))

	if total, err := svc.Count(ctx); err == nil {
		fmt.Printf("collection now holds %d vectors\n", total)
	} else {
		logger.Debug("failed to count collection vectors", zap.Error(err))
	}

	if watchMode {
		if err := svc.Watch(ctx, folder); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	if failed > 0 {
		logger.Warn("some documents failed to index", zap.Int("failed", failed))
		return fmt.Errorf("%d of %d documents failed", failed, len(result.Documents))
	}
	return nil
}
