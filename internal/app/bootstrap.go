package app

import (
	"context"

	"github.com/gdamore/tcell/v2"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"github.com/dshills/reqhub/internal/config"
	"github.com/dshills/reqhub/internal/config/watcher"
	"github.com/dshills/reqhub/internal/host"
	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
	"github.com/dshills/reqhub/internal/script"
	"github.com/dshills/reqhub/internal/shell"
	"github.com/dshills/reqhub/internal/statusbar"
	"github.com/dshills/reqhub/internal/traffic"
)

type deps struct {
	dig.In

	Config   *config.Config
	Registry *prometheus.Registry
	Store    *config.Store
	Bar      *statusbar.Bar
	Tap      *traffic.Tap
	Host     *host.Host
}

func (a *App) setDeps(d deps) {
	a.cfg = d.Config
	a.registry = d.Registry
	a.store = d.Store
	a.bar = d.Bar
	a.tap = d.Tap
	a.host = d.Host
}

// newTap returns nil when traffic recording is off.
func newTap(cfg *config.Config) *traffic.Tap {
	if !cfg.Traffic.Enabled {
		return nil
	}
	return traffic.NewTap(nil)
}

func newHost(cfg *config.Config, reg *prometheus.Registry, store *config.Store, bar *statusbar.Bar, tap *traffic.Tap) (*host.Host, error) {
	return host.New(
		host.WithSettings(store),
		host.WithStatusBar(bar),
		host.WithTap(tap),
		host.WithMetrics(reg),
		host.WithNotificationLimit(cfg.Host.NotificationLimit),
		host.WithHubOptions(hub.WithHandlerTimeout(cfg.Hub.HandlerTimeout.Std())),
	)
}

// relayed are executed on the global hub by host-side components and sent
// on to every webview.
var relayed = []requisition.Name{
	requisition.SocketStateChanged.Name(),
	requisition.WebSessionStarted.Name(),
	requisition.SettingsChanged.Name(),
	requisition.ApplicationWillFinish.Name(),
	requisition.ShellResponse.Name(),
}

// bootstrap starts the optional components in dependency order.
func (a *App) bootstrap(opts Options) error {
	steps := []struct {
		name string
		fn   func(Options) error
	}{
		{"relays", a.initRelays},
		{"traffic", a.initTraffic},
		{"scripts", a.initScripts},
		{"shell", a.initShell},
		{"config watcher", a.initWatcher},
		{"status line", a.initStatusLine},
		{"metrics", func(Options) error { return a.registerGauges(a.registry) }},
	}
	for _, step := range steps {
		if err := step.fn(opts); err != nil {
			return errors.Annotatef(err, "initializing %s", step.name)
		}
	}
	return nil
}

func (a *App) initRelays(Options) error {
	a.relays = a.Hub().NewScope()
	for _, name := range relayed {
		name := name
		if _, err := a.relays.Register(name, hub.HandlerFunc(func(ctx context.Context, payload any) (bool, error) {
			n, err := a.host.BroadcastRequest(ctx, nil, name, payload)
			return n > 0, err
		})); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (a *App) initTraffic(Options) error {
	if a.tap == nil {
		return nil
	}
	a.recorder = traffic.NewRecorder(a.tap, a.cfg.Traffic.Limit)
	if a.cfg.Traffic.Forward {
		a.unforward = traffic.Forward(a.ctx, a.tap, a.Hub())
	}
	return nil
}

func (a *App) initScripts(Options) error {
	if a.cfg.Scripts.Dir == "" {
		return nil
	}
	a.scripts = script.NewEngine(a.Hub(), "scripts")
	n, err := a.scripts.LoadDir(a.ctx, a.cfg.Scripts.Dir)
	if err != nil {
		return errors.Trace(err)
	}
	logger.Infof("loaded %d scripts from %s", n, a.cfg.Scripts.Dir)
	return nil
}

func (a *App) initShell(opts Options) error {
	dial := opts.Dialer
	if dial == nil {
		if a.cfg.Shell.URL == "" {
			return nil
		}
		dial = shell.DialURL(a.cfg.Shell.URL)
	}
	s, err := shell.NewSession(shell.Config{
		Dial:           dial,
		Hub:            a.Hub(),
		GracePeriod:    a.cfg.Shell.GracePeriod.Std(),
		RetryDelay:     a.cfg.Shell.RetryDelay.Std(),
		MaxRetryDelay:  a.cfg.Shell.MaxRetryDelay.Std(),
		RequestTimeout: a.cfg.Shell.RequestTimeout.Std(),
		Debug:          a.cfg.Shell.Debug,
	})
	if err != nil {
		return errors.Trace(err)
	}
	a.shell = s
	// Webview commands escalate to the host and run on the backend.
	_, err = s.Serve(a.relays)
	return errors.Trace(err)
}

func (a *App) initWatcher(opts Options) error {
	if opts.Config != nil || !configExists(opts.ConfigPath) {
		return nil
	}
	w, err := watcher.New(opts.ConfigPath, a.store, a.Hub())
	if err != nil {
		return errors.Trace(err)
	}
	a.watcher = w
	return nil
}

func (a *App) initStatusLine(opts Options) error {
	screen := opts.Screen
	if screen == nil {
		if !a.cfg.StatusBar.Terminal {
			return nil
		}
		var err error
		if screen, err = tcell.NewScreen(); err != nil {
			return errors.Trace(err)
		}
	}
	if err := screen.Init(); err != nil {
		return errors.Trace(err)
	}
	a.screen = screen
	a.renderer = statusbar.NewRenderer(screen, a.bar)
	a.bar.OnChange(a.renderer.Draw)
	a.renderer.Draw()
	return nil
}
