package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/lexhaven/lexingest/internal/sanitize"
)

// Watch reindexes PDFs in dir as they change, until ctx is canceled.
//
// Create and Write events schedule a delete-then-reindex of the file after
// a debounce window; editors and downloads emit bursts of writes, and the
// debounce collapses each burst into one reindex. Remove and Rename events
// purge the file's vectors.
func (s *Service) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	s.logger.Info("watching folder", zap.String("folder", dir))

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, t := range timers {
			t.Stop()
		}
	}()

	scheduleReindex := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Stop()
		}
		timers[path] = time.AfterFunc(s.cfg.WatchDebounce, func() {
			mu.Lock()
			delete(timers, path)
			mu.Unlock()

			if ctx.Err() != nil {
				return
			}
			result := s.reindexDocument(ctx, path)
			if result.Failed() {
				s.logger.Error("watch reindex failed",
					zap.String("file", result.File),
					zap.Error(result.Err),
				)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isPDF(event.Name) {
				continue
			}

			switch {
			case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
				scheduleReindex(event.Name)

			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				name := filepath.Base(event.Name)
				if err := s.store.DeleteByField(ctx, s.cfg.Collection, sanitize.KeySourcePDF, name); err != nil {
					s.logger.Error("failed to delete vectors for removed file",
						zap.String("file", name),
						zap.Error(err),
					)
				} else {
					s.logger.Info("deleted vectors for removed file", zap.String("file", name))
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", zap.Error(err))
		}
	}
}
