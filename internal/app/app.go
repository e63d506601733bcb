// Package app wires the reqhub components together and serves webviews.
//
// An App owns the host and its global hub, the settings store and its
// file watcher, the optional shell backend session, Lua scripts, the
// traffic recorder and the status bar. Webviews connect over a websocket
// and each gets a provider on the host.
package app

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"
	"gopkg.in/tomb.v2"

	"github.com/dshills/reqhub/internal/config"
	"github.com/dshills/reqhub/internal/config/watcher"
	"github.com/dshills/reqhub/internal/host"
	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
	"github.com/dshills/reqhub/internal/script"
	"github.com/dshills/reqhub/internal/shell"
	"github.com/dshills/reqhub/internal/statusbar"
	"github.com/dshills/reqhub/internal/traffic"
	"github.com/dshills/reqhub/internal/transport"
)

var logger = loggo.GetLogger("reqhub.app")

const shutdownTimeout = 5 * time.Second

// Options configures an App.
type Options struct {
	// ConfigPath is the TOML file to load and watch. Empty means defaults
	// and environment only.
	ConfigPath string

	// Config is used instead of loading ConfigPath when set.
	Config *config.Config

	// Screen is used for the status line instead of the terminal.
	Screen tcell.Screen

	// Dialer overrides how the shell backend is reached.
	Dialer shell.Dialer
}

// App is a running reqhub host.
type App struct {
	cfg      *config.Config
	host     *host.Host
	store    *config.Store
	registry *prometheus.Registry
	bar      *statusbar.Bar
	tap      *traffic.Tap
	recorder *traffic.Recorder

	watcher  *watcher.Watcher
	shell    *shell.Session
	scripts  *script.Engine
	screen   tcell.Screen
	renderer *statusbar.Renderer

	relays    *hub.Scope
	unforward func()

	ctx    context.Context
	cancel context.CancelFunc
	server *http.Server
	tomb   tomb.Tomb

	closeOnce sync.Once
}

// New builds an App. Nothing is served until Run or Serve.
func New(opts Options) (*App, error) {
	c := dig.New()
	providers := []any{
		func() (*config.Config, error) { return loadConfig(opts) },
		prometheus.NewRegistry,
		func(cfg *config.Config) *config.Store { return config.NewStore(cfg.FlatSettings()) },
		func() *statusbar.Bar { return statusbar.New(nil) },
		newTap,
		newHost,
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, errors.Annotate(err, "wiring components")
		}
	}

	a := &App{}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	if err := c.Invoke(func(d deps) { a.setDeps(d) }); err != nil {
		a.cancel()
		return nil, errors.Annotate(dig.RootCause(err), "initializing")
	}

	if err := a.bootstrap(opts); err != nil {
		_ = a.Close()
		return nil, errors.Trace(err)
	}
	return a, nil
}

func loadConfig(opts Options) (*config.Config, error) {
	if opts.Config != nil {
		return opts.Config, nil
	}
	cfg, err := config.Load(opts.ConfigPath)
	return cfg, errors.Annotatef(err, "loading %s", opts.ConfigPath)
}

// Config returns the configuration in use.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Host returns the host.
func (a *App) Host() *host.Host {
	return a.host
}

// Hub returns the global hub.
func (a *App) Hub() *hub.Hub {
	return a.host.Hub()
}

// Settings returns the settings store.
func (a *App) Settings() *config.Store {
	return a.store
}

// StatusBar returns the host status bar.
func (a *App) StatusBar() *statusbar.Bar {
	return a.bar
}

// Traffic returns the traffic recorder, or nil when recording is off.
func (a *App) Traffic() *traffic.Recorder {
	return a.recorder
}

// Handler serves webview websockets and metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(a.cfg.Server.WebSocketPath, a.serveWebSocket)
	mux.Handle(a.cfg.Server.MetricsPath, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return mux
}

func (a *App) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := transport.Upgrade(w, r)
	if err != nil {
		logger.Warningf("webview connection from %s: %v", r.RemoteAddr, err)
		return
	}
	caption := r.URL.Query().Get("caption")
	if caption == "" {
		caption = "Shell"
	}
	if _, err := a.host.Open(a.ctx, caption, ws); err != nil {
		logger.Errorf("opening webview from %s: %v", r.RemoteAddr, err)
	}
}

// Run listens on the configured address and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return errors.Annotatef(err, "listening on %s", a.cfg.Server.Addr)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or the server fails, then closes
// the App.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.server = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Infof("serving webviews on ws://%s%s", ln.Addr(), a.cfg.Server.WebSocketPath)
	hub.Execute(ctx, a.Hub(), requisition.ApplicationDidStart, requisition.Empty{})

	a.tomb.Go(func() error {
		if err := a.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return errors.Annotate(err, "serving")
		}
		return nil
	})
	a.tomb.Go(func() error {
		select {
		case <-ctx.Done():
		case <-a.tomb.Dying():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Trace(a.server.Shutdown(shutdownCtx))
	})

	err := a.tomb.Wait()
	if closeErr := a.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close tells webviews the application is finishing and stops every
// component. Later calls do nothing.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.close()
	})
	return err
}

func (a *App) close() error {
	a.tomb.Kill(nil)
	if a.host != nil {
		hub.Execute(context.Background(), a.Hub(), requisition.ApplicationWillFinish, requisition.Empty{})
	}
	if a.relays != nil {
		a.relays.Close()
	}
	if a.unforward != nil {
		a.unforward()
	}
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.scripts != nil {
		a.scripts.Close()
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			logger.Warningf("closing config watcher: %v", err)
		}
	}
	if a.shell != nil {
		if err := a.shell.Close(); err != nil {
			logger.Warningf("closing shell session: %v", err)
		}
	}

	var err error
	if a.host != nil {
		err = a.host.Close()
	}
	a.cancel()

	if a.bar != nil {
		a.bar.Close()
	}
	if a.screen != nil {
		a.screen.Fini()
	}
	return errors.Trace(err)
}

// configExists reports whether path names a file that can be watched.
func configExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
