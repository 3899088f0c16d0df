package metricsmanager

import (
	"fmt"
	"time"

	"github.com/kubescape/find-deleted/pkg/metricsmanager"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ metricsmanager.MetricsManager = (*PrometheusMetric)(nil)

// PrometheusMetric writes gauges to a file for the node_exporter textfile
// collector. The tool does not serve metrics itself.
type PrometheusMetric struct {
	registry *prometheus.Registry
	textfile string

	stalePathsGauge       prometheus.Gauge
	unitsGauge            prometheus.Gauge
	executablesGauge      prometheus.Gauge
	droppedProcessesGauge prometheus.Gauge
	permissionErrorsGauge prometheus.Gauge
	scanDurationGauge     prometheus.Gauge
	lastScanGauge         prometheus.Gauge
}

func NewPrometheusMetric(textfile string) *PrometheusMetric {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &PrometheusMetric{
		registry: registry,
		textfile: textfile,
		stalePathsGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "find_deleted_stale_paths",
			Help: "Number of deleted or replaced files still mapped by a process",
		}),
		unitsGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "find_deleted_units_needing_restart",
			Help: "Number of systemd units holding stale mappings",
		}),
		executablesGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "find_deleted_executables_needing_restart",
			Help: "Number of executables with stale mappings running outside an actionable unit",
		}),
		droppedProcessesGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "find_deleted_unattributed_processes",
			Help: "Number of processes with stale mappings and neither a unit nor an executable",
		}),
		permissionErrorsGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "find_deleted_permission_errors",
			Help: "Number of reads or stats refused during the scan",
		}),
		scanDurationGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "find_deleted_scan_duration_seconds",
			Help: "Wall time of the last scan",
		}),
		lastScanGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "find_deleted_last_scan_timestamp_seconds",
			Help: "Unix time the last scan finished",
		}),
	}
}

func (p *PrometheusMetric) ReportStalePaths(count int) {
	p.stalePathsGauge.Set(float64(count))
}

func (p *PrometheusMetric) ReportUnits(count int) {
	p.unitsGauge.Set(float64(count))
}

func (p *PrometheusMetric) ReportExecutables(count int) {
	p.executablesGauge.Set(float64(count))
}

func (p *PrometheusMetric) ReportDroppedProcesses(count int) {
	p.droppedProcessesGauge.Set(float64(count))
}

func (p *PrometheusMetric) ReportPermissionErrors(count int) {
	p.permissionErrorsGauge.Set(float64(count))
}

func (p *PrometheusMetric) ReportScanDuration(duration time.Duration) {
	p.scanDurationGauge.Set(duration.Seconds())
	p.lastScanGauge.SetToCurrentTime()
}

// Destroy writes the textfile atomically.
func (p *PrometheusMetric) Destroy() error {
	if err := prometheus.WriteToTextfile(p.textfile, p.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", p.textfile, err)
	}
	logger.L().Debug("PrometheusMetric - metrics written", helpers.String("path", p.textfile))
	return nil
}
