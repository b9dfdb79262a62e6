// Package metrics records the measurements of one analysis run in a
// private Prometheus registry and writes them out in the node exporter
// textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of one run. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	reg *prometheus.Registry

	Pages          prometheus.Gauge
	GraphNodes     *prometheus.GaugeVec
	GraphEdges     *prometheus.GaugeVec
	Iterations     *prometheus.GaugeVec
	Converged      *prometheus.GaugeVec
	Findings       *prometheus.GaugeVec
	WarningsTotal  *prometheus.CounterVec
	StageDurations *prometheus.GaugeVec
}

// New registers a fresh set of collectors on a new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Pages: f.NewGauge(prometheus.GaugeOpts{
			Name: "siterank_pages",
			Help: "Number of fused pages in the run",
		}),
		GraphNodes: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "siterank_graph_nodes",
			Help: "Number of nodes in the link graph",
		}, []string{"graph"}),
		GraphEdges: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "siterank_graph_edges",
			Help: "Number of weighted arcs in the link graph",
		}, []string{"graph"}),
		Iterations: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "siterank_pagerank_iterations",
			Help: "Power iterations performed by the authority pass",
		}, []string{"graph"}),
		Converged: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "siterank_pagerank_converged",
			Help: "1 if the authority pass converged within its iteration cap",
		}, []string{"graph"}),
		Findings: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "siterank_findings",
			Help: "Pages tagged per opportunity kind",
		}, []string{"tag"}),
		WarningsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "siterank_warnings_total",
			Help: "Warnings raised during the run",
		}, []string{"kind"}), // e.g., 'degraded_signal', 'non_convergence'
		StageDurations: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "siterank_stage_duration_seconds",
			Help: "Wall time spent in each pipeline stage",
		}, []string{"stage"}),
	}
}

// ObserveGraph records the size of one graph variant.
func (m *Metrics) ObserveGraph(graph string, nodes, edges int) {
	if m == nil {
		return
	}
	m.GraphNodes.WithLabelValues(graph).Set(float64(nodes))
	m.GraphEdges.WithLabelValues(graph).Set(float64(edges))
}

// ObserveRanking records the outcome of one authority pass.
func (m *Metrics) ObserveRanking(graph string, iterations int, converged bool) {
	if m == nil {
		return
	}
	m.Iterations.WithLabelValues(graph).Set(float64(iterations))
	v := 0.0
	if converged {
		v = 1
	}
	m.Converged.WithLabelValues(graph).Set(v)
}

// SetPages records the fused page count.
func (m *Metrics) SetPages(n int) {
	if m == nil {
		return
	}
	m.Pages.Set(float64(n))
}

// SetFindings records the number of pages carrying a tag.
func (m *Metrics) SetFindings(tag string, n int) {
	if m == nil {
		return
	}
	m.Findings.WithLabelValues(tag).Set(float64(n))
}

// IncWarnings counts one warning of the given kind.
func (m *Metrics) IncWarnings(kind string) {
	if m == nil {
		return
	}
	m.WarningsTotal.WithLabelValues(kind).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDurations.WithLabelValues(stage).Set(d.Seconds())
}

// Registry exposes the underlying registry. It is nil for a nil Metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// WriteTextfile writes every collector to path atomically in the textfile
// collector format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", path, err)
	}
	return nil
}
