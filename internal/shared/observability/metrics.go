// Package observability defines the process-wide prometheus metrics.
package observability

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pycheck_daemon_requests_total",
		Help: "Total number of daemon requests served, by command.",
	}, []string{"command"})

	FscacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pycheck_fscache_hits_total",
		Help: "Total number of filesystem cache hits (including cached errors).",
	})

	FscacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pycheck_fscache_misses_total",
		Help: "Total number of filesystem cache misses.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pycheck_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	ModulesChecked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pycheck_modules_checked_total",
		Help: "Total number of modules re-analyzed across all checks.",
	})

	WorkerJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pycheck_worker_jobs_total",
		Help: "Total number of SCC jobs dispatched to workers, by outcome.",
	}, []string{"outcome"})

	GraphModules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pycheck_graph_modules_total",
		Help: "Number of modules in the daemon's build graph.",
	})

	GraphSCCs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pycheck_graph_sccs_total",
		Help: "Number of strongly connected components in the build graph.",
	})
)

// Snapshot gathers the registered pycheck metrics into a flat
// name-to-value map. Vector metrics get one entry per label set,
// rendered in exposition format (`name{label="value"}`). Runtime
// collector families are left out.
func Snapshot() map[string]float64 {
	fams, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil
	}
	out := make(map[string]float64)
	for _, fam := range fams {
		if !strings.HasPrefix(fam.GetName(), "pycheck_") {
			continue
		}
		for _, m := range fam.GetMetric() {
			name := fam.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				parts := make([]string, len(labels))
				for i, l := range labels {
					parts[i] = fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
				}
				name += "{" + strings.Join(parts, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[name] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[name] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}
