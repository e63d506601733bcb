// Package watcher reloads the config file when it changes and executes
// settingsChanged for every setting that differs.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/tomb.v2"

	"github.com/dshills/reqhub/internal/config"
	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
)

var logger = loggo.GetLogger("reqhub.config.watcher")

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the file must stay quiet before a reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithClock sets the clock used for debouncing.
func WithClock(clk clock.Clock) Option {
	return func(w *Watcher) {
		w.clock = clk
	}
}

// WithEnviron sets the environment overlaid on every reload. The default is
// the process environment when the Watcher is created.
func WithEnviron(environ []string) Option {
	return func(w *Watcher) {
		w.environ = environ
	}
}

// Watcher follows one config file.
type Watcher struct {
	path     string
	store    *config.Store
	hub      *hub.Hub
	clock    clock.Clock
	debounce time.Duration
	environ  []string

	fsw  *fsnotify.Watcher
	tomb tomb.Tomb
}

// New watches the config file at path. Reloaded settings replace the
// contents of store and changes are executed on h.
//
// The parent directory is watched so that files replaced by rename are
// followed.
func New(path string, store *config.Store, h *hub.Hub, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	w := &Watcher{
		path:     abs,
		store:    store,
		hub:      h,
		clock:    clock.WallClock,
		debounce: 100 * time.Millisecond,
		environ:  os.Environ(),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Annotate(err, "creating file watcher")
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, errors.Annotatef(err, "watching %s", filepath.Dir(abs))
	}
	w.fsw = fsw
	w.tomb.Go(w.loop)
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.tomb.Kill(nil)
	return w.tomb.Wait()
}

func (w *Watcher) loop() error {
	defer func() { _ = w.fsw.Close() }()

	var reload <-chan time.Time
	for {
		select {
		case <-w.tomb.Dying():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			logger.Tracef("%s: %s", ev.Op, ev.Name)
			reload = w.clock.After(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warningf("watching %s: %v", w.path, err)
		case <-reload:
			reload = nil
			if _, err := w.Reload(w.tomb.Context(nil)); err != nil {
				logger.Errorf("reloading %s: %v", w.path, err)
			}
		}
	}
}

// Reload reads the file now and executes settingsChanged for each setting
// that differs from the store. A file that fails to load leaves the store
// unchanged.
func (w *Watcher) Reload(ctx context.Context) ([]config.Change, error) {
	cfg, err := config.LoadFrom(w.path, w.environ)
	if err != nil {
		return nil, errors.Trace(err)
	}

	changes := w.store.Replace(cfg.FlatSettings())
	for _, c := range changes {
		entry := &requisition.SettingEntry{Key: c.Key, Value: c.Value}
		if !hub.Execute(ctx, w.hub, requisition.SettingsChanged, entry) {
			logger.Debugf("settingsChanged %s not handled", c.Key)
		}
	}
	if len(changes) > 0 {
		logger.Infof("reloaded %s: %d settings changed", filepath.Base(w.path), len(changes))
	}
	return changes, nil
}
