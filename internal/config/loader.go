package config

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BindEnv registers the VECINDEX_-prefixed environment overrides this
// package understands with a viper instance, for hosts that want viper's
// broader binding (flags, remote providers) layered on top of our own
// Config.LoadFromEnv. Most callers can just use Load; this exists for a
// host embedding the engine alongside its own viper-based CLI flags.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("vecindex")
	v.AutomaticEnv()
	for _, key := range []string{
		"dims", "metric", "data_dir", "cache_dir",
		"storage.backend", "server.addr", "server.jwt_secret", "log_level",
	} {
		_ = v.BindEnv(key)
	}
}

// Watcher reloads a Config from disk whenever its backing file changes,
// per the teacher's daemon config-watch pattern
// (internal/daemon/daemon.go's startConfigWatcher/watchConfigFile): one
// fsnotify.Watcher on the file, write events trigger LoadFromFile, a
// lastModTime guard skips spurious re-triggers.
type Watcher struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	fsw    *fsnotify.Watcher
	onErr  func(error)
	stopCh chan struct{}
}

// NewWatcher loads cfg from path and starts watching it for writes. Call
// Close to stop. onErr, if non-nil, receives errors from both the watcher
// and failed reloads (a failed reload keeps serving the last good Config).
func NewWatcher(path string, onErr func(error)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if path != "" {
		if err := fsw.Add(path); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch config file: %w", err)
		}
	}

	w := &Watcher{path: path, cfg: cfg, fsw: fsw, onErr: onErr, stopCh: make(chan struct{})}
	go w.run()
	return w, nil
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

func (w *Watcher) run() {
	var lastMod int64
	if info, err := os.Stat(w.path); err == nil {
		lastMod = info.ModTime().UnixNano()
	}

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write != fsnotify.Write {
				continue
			}
			info, err := os.Stat(w.path)
			if err != nil {
				w.reportErr(err)
				continue
			}
			if info.ModTime().UnixNano() <= lastMod {
				continue
			}
			lastMod = info.ModTime().UnixNano()
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.reportErr(err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.reportErr(fmt.Errorf("reload config: %w", err))
		return
	}
	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()
}

func (w *Watcher) reportErr(err error) {
	if w.onErr != nil {
		w.onErr(err)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stopCh)
	return w.fsw.Close()
}

// Wait blocks until ctx is done, then closes the watcher. Convenience for
// callers that just want the watcher to live alongside a server context.
func (w *Watcher) Wait(ctx context.Context) {
	<-ctx.Done()
	w.Close()
}
