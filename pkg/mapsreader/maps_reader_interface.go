package mapsreader

import "github.com/kubescape/find-deleted/pkg/tracker"

// VisitFunc receives the raw maps lines of one process.
type VisitFunc func(pid int, lines []string)

// MapsReader enumerates live processes and reads their memory map tables.
// A process whose table cannot be read is recorded in the tracker and
// skipped; only a failure to list processes at all is returned.
type MapsReader interface {
	Walk(t *tracker.Tracker, visit VisitFunc) error
}
