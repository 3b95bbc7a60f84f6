// Package watcher implements the filesystem watcher data source: it
// polls an on-disk repository checkout for changes to flag artifacts and
// reloads the config store when they change.
package watcher

import (
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/lekkodev/sidecar/pkg/loader"
	"github.com/lekkodev/sidecar/pkg/log"
	"github.com/lekkodev/sidecar/pkg/metrics"
	"github.com/lekkodev/sidecar/pkg/store"
	"github.com/rs/zerolog"
)

const pollInterval = time.Second

// Watcher polls root for changes to *.proto.bin flag artifacts and
// reloads st when it sees one. It deliberately does not use an
// inotify/kqueue-backed library: a ~1s polling cadence over a directory
// this small is simple and has no platform-specific edge cases.
type Watcher struct {
	root   string
	st     *store.Store
	logger zerolog.Logger
	stopCh chan struct{}

	fingerprint map[string]time.Time
}

// New constructs a Watcher over root, writing reloads into st.
func New(root string, st *store.Store) *Watcher {
	return &Watcher{
		root:        root,
		st:          st,
		logger:      log.WithComponent("watcher"),
		stopCh:      make(chan struct{}),
		fingerprint: make(map[string]time.Time),
	}
}

// Start begins the polling loop in its own goroutine.
func (w *Watcher) Start() {
	go w.run()
}

// Stop terminates the polling loop.
func (w *Watcher) Stop() {
	close(w.stopCh)
}

func (w *Watcher) run() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	w.logger.Info().Str("root", w.root).Msg("filesystem watcher started")

	for {
		select {
		case <-ticker.C:
			w.tick()
		case <-w.stopCh:
			w.logger.Info().Msg("filesystem watcher stopped")
			return
		}
	}
}

func (w *Watcher) tick() {
	changed, err := w.scan()
	if err != nil {
		w.logger.Warn().Err(err).Msg("scanning repository root failed")
		metrics.WatchCyclesTotal.WithLabelValues("scan_error").Inc()
		return
	}
	if !changed {
		metrics.WatchCyclesTotal.WithLabelValues("unchanged").Inc()
		return
	}

	timer := metrics.NewTimer()
	res, err := loader.Load(w.root)
	timer.ObserveDurationVec(metrics.StoreRefreshDuration, "watcher")
	if err != nil {
		w.logger.Error().Err(err).Msg("reload after filesystem change failed")
		metrics.StoreRefreshTotal.WithLabelValues("watcher", "error").Inc()
		metrics.WatchCyclesTotal.WithLabelValues("reload_error").Inc()
		return
	}

	w.st.Replace(res.Namespaces, res.Commit)
	w.logger.Info().Str("commit", res.Commit).Msg("repository reloaded from filesystem change")
	metrics.StoreRefreshTotal.WithLabelValues("watcher", "success").Inc()
	metrics.WatchCyclesTotal.WithLabelValues("reloaded").Inc()
}

// scan walks the tree looking for *.proto.bin files under any gen/proto
// directory, comparing mtimes against the previous scan. Non-unicode
// paths are skipped rather than causing an error.
func (w *Watcher) scan() (bool, error) {
	current := make(map[string]time.Time)
	changed := false

	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !utf8.ValidString(path) {
			return nil
		}
		if !matchesWatchedPath(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		current[path] = info.ModTime()
		if prev, ok := w.fingerprint[path]; !ok || !prev.Equal(info.ModTime()) {
			changed = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if len(current) != len(w.fingerprint) {
		changed = true
	}
	w.fingerprint = current
	return changed, nil
}

// matchesWatchedPath reports whether path looks like
// */gen/proto/*.proto.bin.
func matchesWatchedPath(path string) bool {
	if filepath.Ext(filepath.Base(path)) == "" {
		return false
	}
	if filepath.Base(filepath.Dir(path)) != "proto" {
		return false
	}
	if filepath.Base(filepath.Dir(filepath.Dir(path))) != "gen" {
		return false
	}
	const suffix = ".proto.bin"
	name := filepath.Base(path)
	return len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix
}
