package kvstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/folio/internal/checksum"
)

// ReloadCallback is called after a store was reloaded from disk because
// another process changed its file.
type ReloadCallback func(name string)

// Watched pairs a file store with the name reported to the callback.
type Watched struct {
	Name  string
	Store *FileStore
}

const reloadDebounce = 200 * time.Millisecond

// Watch observes the directories of the given file stores until ctx is
// cancelled. A change whose content digest differs from the store's own
// last write triggers Reload followed by cb. Our own saves produce the
// same digest and are ignored.
func Watch(ctx context.Context, logger *slog.Logger, cb ReloadCallback, stores ...Watched) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	byPath := make(map[string]Watched, len(stores))
	dirs := make(map[string]struct{})
	for _, ws := range stores {
		byPath[ws.Store.Path()] = ws
		dirs[filepath.Dir(ws.Store.Path())] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	logger.Info("store watcher: started", slog.Int("stores", len(stores)))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(reloadDebounce)
			timerCh = timer.C
		} else {
			timer.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("store watcher: stopped")
			return nil

		case <-timerCh:
			for p := range pending {
				ws := byPath[p]
				if !changedExternally(ws.Store) {
					continue
				}
				if err := ws.Store.Reload(); err != nil {
					logger.Warn("store watcher: reload failed",
						slog.String("store", ws.Name),
						slog.String("error", err.Error()))
					continue
				}
				logger.Info("store watcher: reloaded", slog.String("store", ws.Name))
				if cb != nil {
					cb(ws.Name)
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, watched := byPath[abs]; !watched {
				continue
			}
			pending[abs] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("store watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func changedExternally(s *FileStore) bool {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return false
	}
	return checksum.Sum(data) != s.LastChecksum()
}
