package hub

import (
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/reqhub/internal/requisition"
)

const metricsNamespace = "reqhub"

// metrics is safe to use through a nil pointer.
type metrics struct {
	executes    *prometheus.CounterVec
	handled     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	escalations *prometheus.CounterVec
	remote      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	return &metrics{
		executes: registerCounter(reg, prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "executes_total",
			Help:      "Requisitions executed locally.",
		}, "source", "requisition"),
		handled: registerCounter(reg, prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "handled_total",
			Help:      "Requisitions handled by at least one local subscriber.",
		}, "source", "requisition"),
		failures: registerCounter(reg, prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "subscriber_failures_total",
			Help:      "Subscriber invocations that returned an error or panicked.",
		}, "source", "requisition", "reason"),
		escalations: registerCounter(reg, prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "escalations_total",
			Help:      "Unhandled requisitions forwarded to the remote target.",
		}, "source", "requisition"),
		remote: registerCounter(reg, prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "remote_total",
			Help:      "Requisitions exchanged with the remote peer by outcome.",
		}, "source", "requisition", "outcome"),
	}
}

// registerCounter reuses an identical collector registered by another hub.
func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		logger.Warningf("registering metric %s: %v", opts.Name, err)
	}
	return c
}

func (m *metrics) executed(source string, name requisition.Name) {
	if m == nil {
		return
	}
	m.executes.WithLabelValues(source, string(name)).Inc()
}

func (m *metrics) wasHandled(source string, name requisition.Name) {
	if m == nil {
		return
	}
	m.handled.WithLabelValues(source, string(name)).Inc()
}

func (m *metrics) failed(source string, name requisition.Name, reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(source, string(name), reason).Inc()
}

func (m *metrics) escalated(source string, name requisition.Name) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(source, string(name)).Inc()
}

func (m *metrics) remoteOutcome(source string, name requisition.Name, outcome string) {
	if m == nil {
		return
	}
	m.remote.WithLabelValues(source, string(name), outcome).Inc()
}
