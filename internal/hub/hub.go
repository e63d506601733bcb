package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/dshills/reqhub/internal/hub/dispatch"
	"github.com/dshills/reqhub/internal/requisition"
)

var logger = loggo.GetLogger("reqhub.hub")

const (
	// ErrConsumed may be returned by a subscriber to mark a requisition
	// handled and stop delivery to later subscribers.
	ErrConsumed = dispatch.ErrConsumed

	// ErrScopeClosed is returned when registering through a closed Scope.
	ErrScopeClosed = errors.ConstError("scope closed")
)

// Remote carries requisitions to the peer on the other side of a channel.
type Remote interface {
	Send(ctx context.Context, env requisition.Envelope) error
}

// RemoteTarget receives requisitions no local subscriber handled.
type RemoteTarget interface {
	ProxyRequest(ctx context.Context, req requisition.ProxyRequest) (bool, error)
}

// Registrar is implemented by Hub and Scope.
type Registrar interface {
	Register(name requisition.Name, handler Handler) (*Subscription, error)
	Unregister(sub *Subscription) bool
}

// Hub is a callback registry with a local dispatcher, an optional remote
// channel and an optional escalation target.
type Hub struct {
	source   string
	registry *Registry
	executor *dispatch.Executor
	metrics  *metrics

	mu       sync.RWMutex
	remote   Remote
	target   RemoteTarget
	provider requisition.ProviderRef
}

// New creates a hub.
func New(opts ...Option) *Hub {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	execOpts := []dispatch.ExecutorOption{dispatch.WithTimeout(cfg.handlerTimeout)}
	if cfg.panicHandler != nil {
		execOpts = append(execOpts, dispatch.WithPanicHandler(cfg.panicHandler))
	}

	return &Hub{
		source:   cfg.source,
		registry: NewRegistry(),
		executor: dispatch.NewExecutor(execOpts...),
		metrics:  newMetrics(cfg.registerer),
		remote:   cfg.remote,
		target:   cfg.target,
		provider: cfg.provider,
	}
}

// Source returns the label the hub puts on outgoing envelopes.
func (h *Hub) Source() string {
	return h.source
}

// Register adds handler as a subscriber of name. Subscribers run in
// registration order. Registering the same handler twice creates two
// subscriptions and delivers twice.
func (h *Hub) Register(name requisition.Name, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.NotValidf("nil handler for %q", name)
	}
	if !requisition.Known(name) {
		return nil, errors.NotFoundf("requisition %q", name)
	}

	sub := newSubscription(uuid.NewString(), name, handler)
	h.registry.Add(sub)
	logger.Tracef("%s: registered %s for %q", h.source, sub.id, name)
	return sub, nil
}

// Unregister removes a subscription. Unknown or already consumed handles
// are ignored and report false.
func (h *Hub) Unregister(sub *Subscription) bool {
	if sub == nil || !h.registry.Remove(sub) {
		return false
	}
	sub.cancel()
	logger.Tracef("%s: unregistered %s for %q", h.source, sub.id, sub.name)
	return true
}

// Registrations returns the number of subscribers of name.
func (h *Hub) Registrations(name requisition.Name) int {
	return h.registry.Count(name)
}

// Subscriptions returns the number of subscribers across all names.
func (h *Hub) Subscriptions() int {
	return h.registry.Total()
}

// Clear unregisters every subscriber and returns how many were removed.
func (h *Hub) Clear() int {
	subs := h.registry.Clear()
	for _, sub := range subs {
		sub.cancel()
	}
	return len(subs)
}

// SetRemote attaches or detaches (nil) the remote channel.
func (h *Hub) SetRemote(r Remote) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remote = r
}

// SetRemoteTarget installs or removes (nil) the escalation target.
func (h *Hub) SetRemoteTarget(t RemoteTarget) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.target = t
}

// SetProvider sets the provider reported in escalated requisitions.
func (h *Hub) SetProvider(p requisition.ProviderRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.provider = p
}

// Execute delivers payload to the subscribers of name one after another and
// reports whether at least one of them handled it. A subscriber that fails
// or panics is logged and counts as not handled. When nothing handled the
// requisition and a remote target is installed, it is escalated exactly
// once and the target's answer is returned.
func (h *Hub) Execute(ctx context.Context, name requisition.Name, payload any) bool {
	return h.execute(ctx, name, payload, false)
}

// ExecuteConcurrent is Execute with all subscribers running at once.
// Registration order is not preserved.
func (h *Hub) ExecuteConcurrent(ctx context.Context, name requisition.Name, payload any) bool {
	return h.execute(ctx, name, payload, true)
}

func (h *Hub) execute(ctx context.Context, name requisition.Name, payload any, concurrent bool) bool {
	p, err := requisition.Normalize(name, payload)
	if err != nil {
		logger.Errorf("%s: cannot execute %q: %v", h.source, name, err)
		return false
	}

	if h.dispatch(ctx, name, p, concurrent) {
		return true
	}
	// Job steps escalate individually.
	if name == requisition.Job.Name() {
		return false
	}
	return h.escalate(ctx, name, p)
}

func (h *Hub) dispatch(ctx context.Context, name requisition.Name, payload any, concurrent bool) bool {
	h.metrics.executed(h.source, name)

	handled := false
	if name == requisition.Job.Name() {
		handled = h.runJob(ctx, payload.([]requisition.JobEntry))
	}

	subs := h.registry.Snapshot(name)
	if len(subs) == 0 {
		logger.Tracef("%s: no subscribers for %q", h.source, name)
		return handled
	}

	handlers := make([]dispatch.Handler, len(subs))
	for i, sub := range subs {
		handlers[i] = sub
	}

	var results []dispatch.Result
	if concurrent {
		results = h.executor.Concurrent(ctx, payload, handlers)
	} else {
		results = h.executor.Sequential(ctx, payload, handlers)
	}

	for i, r := range results {
		switch {
		case r.Panicked:
			h.metrics.failed(h.source, name, "panic")
			logger.Errorf("%s: subscriber %s of %q panicked: %v", h.source, subs[i].id, name, r.PanicValue)
		case r.Failed():
			h.metrics.failed(h.source, name, "error")
			logger.Errorf("%s: subscriber %s of %q failed: %v", h.source, subs[i].id, name, r.Err)
		}
	}

	if dispatch.AnyHandled(results) {
		handled = true
	}
	if handled {
		h.metrics.wasHandled(h.source, name)
	}
	return handled
}

func (h *Hub) escalate(ctx context.Context, name requisition.Name, payload any) bool {
	h.mu.RLock()
	target, provider := h.target, h.provider
	h.mu.RUnlock()

	if target == nil || name == requisition.Proxy.Name() {
		return false
	}

	h.metrics.escalated(h.source, name)
	logger.Debugf("%s: escalating unhandled %q", h.source, name)

	handled, err := target.ProxyRequest(ctx, requisition.ProxyRequest{
		Provider: provider,
		Original: requisition.Original{RequestType: name, Parameter: payload},
	})
	if err != nil {
		logger.Warningf("%s: escalating %q: %v", h.source, name, err)
	}
	return handled
}

// ExecuteRemote sends the requisition to the attached remote peer. It
// returns false when no remote is attached or the send failed; delivery on
// the other side is not awaited.
func (h *Hub) ExecuteRemote(ctx context.Context, name requisition.Name, payload any) bool {
	h.mu.RLock()
	remote := h.remote
	h.mu.RUnlock()

	if remote == nil {
		logger.Debugf("%s: no remote attached, dropping %q", h.source, name)
		return false
	}

	p, err := requisition.Normalize(name, payload)
	if err != nil {
		logger.Errorf("%s: cannot send %q: %v", h.source, name, err)
		return false
	}
	env, err := requisition.NewEnvelope(h.source, name, p)
	if err != nil {
		logger.Errorf("%s: cannot send %q: %v", h.source, name, err)
		return false
	}

	if err := remote.Send(ctx, env); err != nil {
		h.metrics.remoteOutcome(h.source, name, "failed")
		logger.Warningf("%s: sending %q: %v", h.source, name, err)
		return false
	}
	h.metrics.remoteOutcome(h.source, name, "sent")
	return true
}

// HandleRemote decodes an envelope received from the peer and executes it
// locally. Envelopes that cannot be decoded are dropped.
func (h *Hub) HandleRemote(ctx context.Context, env requisition.Envelope) bool {
	payload, err := env.Payload()
	if err != nil {
		h.metrics.remoteOutcome(h.source, env.RequestType, "dropped")
		logger.Warningf("%s: dropping remote %q from %q: %v", h.source, env.RequestType, env.Source, err)
		return false
	}
	h.metrics.remoteOutcome(h.source, env.RequestType, "received")
	return h.Execute(ctx, env.RequestType, payload)
}
