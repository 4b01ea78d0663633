package schema

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/ridge/quartz/meta"
	"github.com/ridge/quartz/tlog"
	"go.uber.org/zap"
)

// Watch reloads the schema file into live whenever it changes, and
// whenever a value arrives on reload, until ctx is closed.
//
// A file that fails to load is logged and the current registry stays.
func Watch(ctx context.Context, path string, live *meta.Live, reload <-chan struct{}) error {
	path = filepath.Clean(path)
	ctx = tlog.With(ctx, zap.String("schema", path))

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// editors often replace the file, so the directory is watched
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reload:
			reloadInto(ctx, path, live)
		case event := <-w.Events:
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloadInto(ctx, path, live)
		case err := <-w.Errors:
			return err
		}
	}
}

func reloadInto(ctx context.Context, path string, live *meta.Live) {
	logger := tlog.Get(ctx)
	reg, err := Load(path)
	if err != nil {
		logger.Error("Schema reload failed, keeping the current schema", zap.Error(err))
		return
	}
	live.Store(reg)
	logger.Info("Schema reloaded", zap.Int("types", len(reg.Types())))
}
