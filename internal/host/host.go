// Package host implements the host side of the requisition system: a global
// hub for host-only concerns and one provider per connected webview. The
// host is the escalation target of every provider hub, so a requisition no
// webview side subscriber handles either lands on a privileged host
// subscriber or is re-broadcast to the other webviews.
package host

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/reqhub/internal/bridge"
	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
	"github.com/dshills/reqhub/internal/statusbar"
	"github.com/dshills/reqhub/internal/traffic"
	"github.com/dshills/reqhub/internal/transport"
)

var logger = loggo.GetLogger("reqhub.host")

// Source labels envelopes written by the host.
const Source = "host"

// ErrNotDelivered is returned by BroadcastRequest for providers whose
// bridge refused the requisition.
const ErrNotDelivered = errors.ConstError("requisition not delivered")

// Settings stores configuration values changed by webviews.
type Settings interface {
	Set(key string, value any) error
}

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// Notification is a message a webview asked the host to show.
type Notification struct {
	Time     time.Time
	Level    Level
	Messages []string
}

// Option configures a Host.
type Option func(*Host)

// WithSettings sets where settingsChanged values are written.
func WithSettings(s Settings) Option {
	return func(h *Host) {
		h.settings = s
	}
}

// WithStatusBar routes updateStatusBarItem requisitions to bar.
func WithStatusBar(bar *statusbar.Bar) Option {
	return func(h *Host) {
		h.bar = bar
	}
}

// WithTap records the traffic of every provider bridge.
func WithTap(tap *traffic.Tap) Option {
	return func(h *Host) {
		h.tap = tap
	}
}

// WithMetrics registers the counters of every hub the host creates.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(h *Host) {
		h.registerer = reg
	}
}

// WithHubOptions adds options to every hub the host creates.
func WithHubOptions(opts ...hub.Option) Option {
	return func(h *Host) {
		h.hubOpts = append(h.hubOpts, opts...)
	}
}

// WithClock sets the clock used to stamp notifications.
func WithClock(clk clock.Clock) Option {
	return func(h *Host) {
		if clk != nil {
			h.clock = clk
		}
	}
}

// WithNotificationLimit bounds the notification log.
func WithNotificationLimit(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.notificationLimit = n
		}
	}
}

// Host owns the global hub and the open providers.
type Host struct {
	hub               *hub.Hub
	scope             *hub.Scope
	settings          Settings
	bar               *statusbar.Bar
	tap               *traffic.Tap
	registerer        prometheus.Registerer
	hubOpts           []hub.Option
	clock             clock.Clock
	notificationLimit int

	seq atomic.Uint64

	mu            sync.RWMutex
	providers     map[string]*Provider
	notifications []Notification
	latestPages   map[int]string
}

// New creates a host and registers its privileged subscribers.
func New(opts ...Option) (*Host, error) {
	h := &Host{
		clock:             clock.WallClock,
		notificationLimit: 200,
		providers:         make(map[string]*Provider),
		latestPages:       make(map[int]string),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.hub = hub.New(h.hubOptions(hub.WithSource(Source))...)
	h.scope = h.hub.NewScope()

	if err := h.registerPrivileged(); err != nil {
		h.scope.Close()
		return nil, errors.Annotate(err, "registering host subscribers")
	}
	return h, nil
}

func (h *Host) hubOptions(opts ...hub.Option) []hub.Option {
	opts = append(opts, hub.WithMetrics(h.registerer))
	return append(opts, h.hubOpts...)
}

// Hub returns the global host hub.
func (h *Host) Hub() *hub.Hub {
	return h.hub
}

func (h *Host) registerPrivileged() error {
	if h.bar != nil {
		if _, err := hub.On(h.scope, requisition.UpdateStatusBar, func(_ context.Context, u requisition.UpdateStatusBarItem) (bool, error) {
			return h.bar.Update(u), nil
		}); err != nil {
			return errors.Trace(err)
		}
	}

	notices := []struct {
		kind  requisition.Kind[string]
		level Level
	}{
		{requisition.ShowInfo, LevelInfo},
		{requisition.ShowWarning, LevelWarning},
		{requisition.ShowError, LevelError},
	}
	for _, n := range notices {
		level := n.level
		if _, err := hub.On(h.scope, n.kind, func(_ context.Context, msg string) (bool, error) {
			h.notify(level, msg)
			return true, nil
		}); err != nil {
			return errors.Trace(err)
		}
	}
	if _, err := hub.On(h.scope, requisition.ShowFatalError, func(_ context.Context, msgs []string) (bool, error) {
		h.notify(LevelFatal, msgs...)
		return true, nil
	}); err != nil {
		return errors.Trace(err)
	}

	_, err := hub.On(h.scope, requisition.Proxy, h.trackPages)
	return errors.Trace(err)
}

func (h *Host) notify(level Level, msgs ...string) {
	switch level {
	case LevelError, LevelFatal:
		logger.Errorf("%s: %v", level, msgs)
	case LevelWarning:
		logger.Warningf("%v", msgs)
	default:
		logger.Infof("%v", msgs)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifications = append(h.notifications, Notification{
		Time:     h.clock.Now(),
		Level:    level,
		Messages: msgs,
	})
	if over := len(h.notifications) - h.notificationLimit; over > 0 {
		h.notifications = append(h.notifications[:0], h.notifications[over:]...)
	}
}

// Notifications returns the logged notifications, oldest first.
func (h *Host) Notifications() []Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Notification, len(h.notifications))
	copy(out, h.notifications)
	return out
}

// trackPages remembers the page last shown for each connection.
func (h *Host) trackPages(_ context.Context, req requisition.ProxyRequest) (bool, error) {
	switch p := req.Original.Parameter.(type) {
	case requisition.DocumentOpenData:
		if p.Connection == nil {
			return false, nil
		}
		return h.setLatestPage(p.Connection.ID, p.PageID), nil
	case requisition.DocumentRef:
		return h.setLatestPage(p.ConnectionID, p.PageID), nil
	case requisition.ConnectionTabSelection:
		return h.setLatestPage(p.ConnectionID, p.PageID), nil
	}
	return false, nil
}

func (h *Host) setLatestPage(connectionID int, pageID string) bool {
	if pageID == "" || connectionID < 1 {
		return false
	}
	h.mu.Lock()
	h.latestPages[connectionID] = pageID
	h.mu.Unlock()
	return true
}

// LatestPage returns the page last opened or selected for a connection.
func (h *Host) LatestPage(connectionID int) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	page, ok := h.latestPages[connectionID]
	return page, ok
}

// Open creates a provider for a webview connected over ch, starts its
// bridge and reveals it.
func (h *Host) Open(ctx context.Context, caption string, ch transport.Channel) (*Provider, error) {
	p := &Provider{
		id:      uuid.NewString(),
		seq:     h.seq.Add(1),
		host:    h,
		caption: caption,
		state:   Created,
	}
	p.hub = hub.New(h.hubOptions(
		hub.WithSource(Source),
		hub.WithRemoteTarget(h),
		hub.WithProvider(p),
	)...)
	p.scope = p.hub.NewScope()
	if err := p.registerDefaults(); err != nil {
		p.scope.Close()
		_ = ch.Close()
		return nil, errors.Annotatef(err, "opening %q", caption)
	}

	p.bridge = bridge.New(p.hub, ch,
		bridge.WithPeer(p.id),
		bridge.WithTap(h.tap),
		bridge.WithDisconnectHandler(func(err error) {
			if err != nil {
				logger.Warningf("provider %q lost its webview: %v", p.Caption(), err)
			}
			p.Dispose()
		}),
	)

	h.mu.Lock()
	h.providers[p.id] = p
	h.mu.Unlock()

	if err := p.bridge.Start(ctx); err != nil {
		p.Dispose()
		return nil, errors.Annotatef(err, "opening %q", caption)
	}
	if err := p.Reveal(); err != nil {
		return nil, errors.Trace(err)
	}
	logger.Infof("opened provider %q (%s)", caption, p.id)
	return p, nil
}

// Provider returns the open provider with the given id.
func (h *Host) Provider(id string) (*Provider, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.providers[id]
	return p, ok
}

// Providers returns the open providers in the order they were opened.
func (h *Host) Providers() []*Provider {
	h.mu.RLock()
	out := make([]*Provider, 0, len(h.providers))
	for _, p := range h.providers {
		out = append(out, p)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (h *Host) remove(p *Provider) {
	h.mu.Lock()
	delete(h.providers, p.id)
	h.mu.Unlock()
}

// ProxyRequest handles a requisition a provider hub could not handle.
//
// The original requisition goes to the host's own subscribers first, then
// proxyRequest observers see the wrapped request. When neither handles it
// the original is broadcast to every other provider.
func (h *Host) ProxyRequest(ctx context.Context, req requisition.ProxyRequest) (bool, error) {
	name := req.Original.RequestType
	if h.hub.Execute(ctx, name, req.Original.Parameter) {
		return true, nil
	}
	if hub.Execute(ctx, h.hub, requisition.Proxy, req) {
		return true, nil
	}

	sender, _ := req.Provider.(*Provider)
	n, err := h.BroadcastRequest(ctx, sender, name, req.Original.Parameter)
	return n > 0, err
}

// BroadcastRequest sends a requisition to every live provider except
// sender, concurrently. It returns how many providers accepted it.
func (h *Host) BroadcastRequest(ctx context.Context, sender *Provider, name requisition.Name, payload any) (int, error) {
	var targets []*Provider
	for _, p := range h.Providers() {
		if p == sender || p.State() == Disposed {
			continue
		}
		targets = append(targets, p)
	}
	if len(targets) == 0 {
		logger.Debugf("no provider to broadcast %q to", name)
		return 0, nil
	}

	var (
		g         errgroup.Group
		delivered atomic.Int32
	)
	for _, p := range targets {
		p := p
		g.Go(func() error {
			if !p.hub.ExecuteRemote(ctx, name, payload) {
				return errors.Annotatef(ErrNotDelivered, "%q to provider %q", name, p.Caption())
			}
			delivered.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(delivered.Load()), err
}

// Close disposes every provider and waits for their bridges to stop.
func (h *Host) Close() error {
	providers := h.Providers()
	for _, p := range providers {
		p.Dispose()
	}
	for _, p := range providers {
		if err := p.bridge.Wait(); err != nil {
			logger.Warningf("provider %q: %v", p.Caption(), err)
		}
	}
	h.scope.Close()
	return nil
}
