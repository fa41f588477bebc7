package config

import (
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Watcher keeps the current configuration and hot-reloads it when the file
// changes. A file that becomes unreadable or invalid leaves the last
// known-good configuration in effect; the failure is logged once per change
// event, never retried in a loop.
type Watcher struct {
	v      *viper.Viper
	logger *zap.Logger

	mu      sync.RWMutex
	current *Config

	updates chan *Config
}

// NewWatcher loads the initial configuration. There is no known-good state to
// fall back to yet, so a broken initial file is a hard error.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	v := newViper(path)
	cfg, err := load(v)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		v:       v,
		logger:  logger,
		current: cfg,
		updates: make(chan *Config, 1),
	}, nil
}

// Current returns the last known-good configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Updates delivers each accepted configuration change. Identical rewrites are
// suppressed so consumers can treat every message as a real change.
func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Start begins watching the config file. Reload handling runs on viper's
// watch goroutine; Start returns immediately.
func (w *Watcher) Start() {
	w.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := load(w.v)
		if err != nil {
			w.logger.Warn("config_reload_error",
				zap.String("file", e.Name),
				zap.Error(err),
			)
			return
		}

		w.mu.Lock()
		unchanged := reflect.DeepEqual(cfg, w.current)
		if !unchanged {
			w.current = cfg
		}
		w.mu.Unlock()
		if unchanged {
			return
		}

		w.logger.Info("config_reloaded",
			zap.String("file", e.Name),
			zap.Int("streams", len(cfg.Streams)),
			zap.Int("heartbeat_seconds", cfg.HeartbeatSeconds),
		)

		// keep only the newest pending update
		select {
		case <-w.updates:
		default:
		}
		w.updates <- cfg
	})
	w.v.WatchConfig()
}
