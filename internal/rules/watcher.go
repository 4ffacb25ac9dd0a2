package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/quarantine-engine/internal/logger"
	"github.com/oshokin/quarantine-engine/internal/metrics"
)

// DefaultReloadDebounce collapses the burst of events editors produce on save.
const DefaultReloadDebounce = 500 * time.Millisecond

// Watcher reloads a rules file into a Holder whenever the file changes.
// An invalid file is logged and the previous rules stay active.
type Watcher struct {
	// path is the watched rules file.
	path string
	// holder receives successfully loaded rules.
	holder *Holder
	// debounce is the quiet period before a reload.
	debounce time.Duration
}

// NewWatcher creates a watcher for path feeding holder.
func NewWatcher(path string, holder *Holder) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		holder:   holder,
		debounce: DefaultReloadDebounce,
	}
}

// Reload loads the file once and publishes the result.
func (w *Watcher) Reload(ctx context.Context) error {
	rules, err := LoadFile(w.path)
	if err != nil {
		metrics.RulesReloadTotal.WithLabelValues("failed").Inc()

		return err
	}

	if w.holder.Set(rules) {
		metrics.RulesReloadTotal.WithLabelValues("changed").Inc()
		logger.InfoKV(ctx, "Quarantine rules reloaded",
			"red_hours", rules.RedWarningQuarantine().Hours(),
			"yellow_hours", rules.YellowWarningQuarantine().Hours(),
			"self_diagnosed_hours", rules.SelfDiagnosedQuarantine().Hours(),
		)
	} else {
		metrics.RulesReloadTotal.WithLabelValues("unchanged").Inc()
	}

	return nil
}

// Run watches the directory of the rules file until ctx is done.
// The directory is watched rather than the file so that atomic replacements
// (write to temp, rename) are seen as well.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "rules")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		_ = watcher.Close()
	}()

	if err = watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch rules directory: %w", err)
	}

	logger.InfoKV(ctx, "Watching quarantine rules", "path", w.path)

	var (
		debounceTimer *time.Timer
		debounceC     <-chan time.Time
	)

	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Rules watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			logger.DebugKV(ctx, "Rules file changed", "op", event.Op.String())

			if debounceTimer == nil {
				debounceTimer = time.NewTimer(w.debounce)
			} else {
				debounceTimer.Reset(w.debounce)
			}

			debounceC = debounceTimer.C

		case <-debounceC:
			debounceC = nil

			if err := w.Reload(ctx); err != nil {
				logger.ErrorKV(ctx, "Rules reload failed, keeping previous rules", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.ErrorKV(ctx, "Rules watcher error", "error", err)
		}
	}
}
