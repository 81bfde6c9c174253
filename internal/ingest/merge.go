package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// MergeFolder concatenates the page texts of every PDF in dir, sorted by
// name, into a single text file at outPath. Unreadable PDFs are logged and
// skipped; the merge fails only if the folder or output file cannot be
// touched at all.
func (s *Service) MergeFolder(ctx context.Context, dir, outPath string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading folder %s: %w", dir, err)
	}

	var sb strings.Builder
	merged := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		if entry.IsDir() || !isPDF(name) {
			continue
		}

		pages, err := s.loader.Load(ctx, filepath.Join(dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable file in merge",
				zap.String("file", name),
				zap.Error(err),
			)
			continue
		}

		texts := make([]string, len(pages))
		for i, page := range pages {
			texts[i] = page.Text
		}
		sb.WriteString(strings.Join(texts, "\n\n"))
		sb.WriteString("\n")
		merged++
	}

	if err := os.WriteFile(outPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing merged output %s: %w", outPath, err)
	}

	s.logger.Info("merged folder",
		zap.String("folder", dir),
		zap.String("output", outPath),
		zap.Int("documents", merged),
	)
	return nil
}
