package metricsmanager

import "time"

// MetricsManager is an interface for reporting the outcome of a scan
type MetricsManager interface {
	ReportStalePaths(count int)
	ReportUnits(count int)
	ReportExecutables(count int)
	ReportDroppedProcesses(count int)
	ReportPermissionErrors(count int)
	ReportScanDuration(duration time.Duration)
	// Destroy publishes the collected metrics.
	Destroy() error
}
