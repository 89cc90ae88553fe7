package axonflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher watches a YAML config file and publishes reloaded
// configurations to subscribers. Long-running applications use it to rotate
// credentials or retune timeouts without a restart: on each change they
// build a fresh client from the new snapshot and retire the old one.
type ConfigWatcher struct {
	path   string
	logger *slog.Logger

	mu          sync.RWMutex
	current     Config
	subscribers []chan Config

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

// NewConfigWatcher loads path and begins watching it for changes. The
// initial load must succeed; later reload failures keep the previous
// snapshot and are logged.
func NewConfigWatcher(path string, logger *slog.Logger) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := LoadConfigFile(absPath)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory, not the file: editors and orchestrators replace
	// config files atomically, which unlinks the watched inode.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &ConfigWatcher{
		path:    absPath,
		logger:  logger,
		current: cfg,
		watcher: watcher,
		cancel:  cancel,
	}
	go w.watchLoop(ctx)
	return w, nil
}

// Current returns the latest successfully loaded configuration.
func (w *ConfigWatcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe returns a channel that receives each reloaded configuration.
// The current snapshot is delivered immediately. Slow consumers miss
// intermediate snapshots rather than blocking the watcher.
func (w *ConfigWatcher) Subscribe() <-chan Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan Config, 1)
	w.subscribers = append(w.subscribers, ch)
	ch <- w.current
	return ch
}

// Close stops watching. Subscriber channels stop receiving but are not
// closed, so a racing reload never sends on a closed channel.
func (w *ConfigWatcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

func (w *ConfigWatcher) watchLoop(ctx context.Context) {
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Chmod) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, w.reload)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := LoadConfigFile(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous snapshot",
			"path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	subscribers := make([]chan Config, len(w.subscribers))
	copy(subscribers, w.subscribers)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded", "path", w.path)
	for _, ch := range subscribers {
		select {
		case ch <- cfg:
		default:
		}
	}
}
