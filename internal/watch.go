package internal

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls fn each time one of paths is written or created, until ctx is
// done. fn runs on the watching goroutine.
func Watch(ctx context.Context, paths []string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	files := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	// Watch directories rather than files,
	// see: https://github.com/fsnotify/fsnotify#watching-a-file-doesnt-work-well
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		Logger.Load().Debug().Msgf("start watching %s", dir)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !files[filepath.Clean(event.Name)] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				Logger.Load().Debug().Str("file", event.Name).Msg("change detected")
				fn()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			Logger.Load().Warn().Err(err).Msg("watcher error")
		}
	}
}
