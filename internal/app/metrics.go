package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "reqhub"

// registerGauges exposes the state of the running components. Hub
// counters are registered by the hubs themselves.
func (a *App) registerGauges(reg prometheus.Registerer) error {
	gauges := []prometheus.Collector{
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "host",
			Name:      "providers",
			Help:      "Open webview providers.",
		}, func() float64 {
			return float64(len(a.host.Providers()))
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "host",
			Name:      "notifications",
			Help:      "Notifications kept by the host.",
		}, func() float64 {
			return float64(len(a.host.Notifications()))
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "subscriptions",
			Help:      "Subscribers registered on the global hub.",
		}, func() float64 {
			return float64(a.Hub().Subscriptions())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "shell",
			Name:      "connected",
			Help:      "Whether the shell backend is reachable.",
		}, func() float64 {
			if a.shell != nil && a.shell.Connected() {
				return 1
			}
			return 0
		}),
	}
	if a.recorder != nil {
		gauges = append(gauges, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "traffic",
			Name:      "records",
			Help:      "Messages kept by the traffic recorder.",
		}, func() float64 {
			return float64(a.recorder.Len())
		}))
	}
	for _, c := range gauges {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
