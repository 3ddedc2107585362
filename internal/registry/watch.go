package registry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/logging"
)

// DefaultDebounce coalesces bursts of editor writes into one rebuild.
const DefaultDebounce = 250 * time.Millisecond

// Watch rebuilds the catalog whenever a descriptor changes, until ctx is
// cancelled. onBuild, when non-nil, observes every rebuild attempt.
func Watch(ctx context.Context, cfg Config, debounce time.Duration, logger *zap.Logger, onBuild func(*Catalog, error)) error {
	logger = logging.OrNop(logger).Named("registry")
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onBuild == nil {
		onBuild = func(*Catalog, error) {}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range []string{cfg.PrimaryDir, cfg.SecondaryDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	onBuild(Build(cfg, logger))

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, descriptorExt) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("descriptor changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(debounce)
		case <-timer.C:
			onBuild(Build(cfg, logger))
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("registry watcher error", zap.Error(err))
		}
	}
}
