package hub

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/reqhub/internal/hub/dispatch"
	"github.com/dshills/reqhub/internal/requisition"
)

// Option configures a Hub.
type Option func(*config)

type config struct {
	// source labels envelopes sent by the hub and its metrics.
	source string

	remote   Remote
	target   RemoteTarget
	provider requisition.ProviderRef

	// registerer receives the hub metrics. Nil disables metrics.
	registerer prometheus.Registerer

	// handlerTimeout bounds each subscriber invocation. Zero means no bound.
	handlerTimeout time.Duration

	panicHandler dispatch.PanicHandler
}

func defaultConfig() config {
	return config{
		source: "app",
	}
}

// WithSource sets the label identifying the hub on the wire.
func WithSource(source string) Option {
	return func(c *config) {
		if source != "" {
			c.source = source
		}
	}
}

// WithRemote attaches the channel used by ExecuteRemote.
func WithRemote(r Remote) Option {
	return func(c *config) {
		c.remote = r
	}
}

// WithRemoteTarget installs the escalation target.
func WithRemoteTarget(t RemoteTarget) Option {
	return func(c *config) {
		c.target = t
	}
}

// WithProvider sets the provider reported in escalated requisitions.
func WithProvider(p requisition.ProviderRef) Option {
	return func(c *config) {
		c.provider = p
	}
}

// WithMetrics registers hub counters with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}

// WithHandlerTimeout bounds each subscriber invocation.
func WithHandlerTimeout(d time.Duration) Option {
	return func(c *config) {
		c.handlerTimeout = d
	}
}

// WithPanicHandler replaces the default panic logger.
func WithPanicHandler(h dispatch.PanicHandler) Option {
	return func(c *config) {
		if h != nil {
			c.panicHandler = h
		}
	}
}
