package metricsmanager

import (
	"time"

	"github.com/goradd/maps"
)

var _ MetricsManager = (*MetricsMock)(nil)

type MetricsMock struct {
	Gauges   maps.SafeMap[string, int]
	Duration time.Duration
}

func NewMetricsMock() *MetricsMock {
	return &MetricsMock{}
}

func (m *MetricsMock) ReportStalePaths(count int) {
	m.Gauges.Set("stale_paths", count)
}

func (m *MetricsMock) ReportUnits(count int) {
	m.Gauges.Set("units", count)
}

func (m *MetricsMock) ReportExecutables(count int) {
	m.Gauges.Set("executables", count)
}

func (m *MetricsMock) ReportDroppedProcesses(count int) {
	m.Gauges.Set("dropped_processes", count)
}

func (m *MetricsMock) ReportPermissionErrors(count int) {
	m.Gauges.Set("permission_errors", count)
}

func (m *MetricsMock) ReportScanDuration(duration time.Duration) {
	m.Duration = duration
}

func (m *MetricsMock) Destroy() error {
	return nil
}
