package gen

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/broady/rawendpoints/rawgen"
)

// watch regenerates whenever a Go source file in a scanned package changes.
// It returns when ctx is canceled.
func (c *Cmd) watch(ctx context.Context, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	watched := make(map[string]bool)
	track := func(res *rawgen.Result) {
		if res == nil {
			return
		}
		dirs := append([]string{filepath.Join(c.Dir, c.AggregateDir)}, res.Dirs...)
		for _, dir := range dirs {
			abs, err := filepath.Abs(dir)
			if err != nil || watched[abs] {
				continue
			}
			if err := w.Add(abs); err != nil {
				logger.WarnContext(ctx, "cannot watch directory", "dir", abs, "err", err)
				continue
			}
			watched[abs] = true
			logger.DebugContext(ctx, "watching", "dir", abs)
		}
	}

	res, err := c.runOnce(ctx, logger)
	if err != nil && !errors.Is(err, ErrDiagnostics) {
		logger.ErrorContext(ctx, "generation failed", "err", err)
	}
	track(res)
	if len(watched) == 0 {
		return errors.New("no directories to watch")
	}
	logger.InfoContext(ctx, "watching for changes", "dirs", len(watched))

	timer := time.NewTimer(c.Debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			logger.DebugContext(ctx, "change", "file", event.Name, "op", event.Op.String())
			timer.Reset(c.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "watch error", "err", err)
		case <-timer.C:
			res, err := c.runOnce(ctx, logger)
			if err != nil && !errors.Is(err, ErrDiagnostics) {
				logger.ErrorContext(ctx, "generation failed", "err", err)
			}
			track(res)
		}
	}
}

// relevant reports whether event concerns a hand-written Go file.
// Generated files are ignored so that writing them does not retrigger.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	switch {
	case !strings.HasSuffix(name, ".go"):
		return false
	case strings.HasPrefix(name, "."):
		return false
	case strings.HasSuffix(name, rawgen.ArtifactSuffix), name == rawgen.AggregateFile:
		return false
	}
	return true
}
