// Package tracker accumulates the non-fatal failures of a single scan.
//
// A Tracker is created once per invocation and handed to every collaborator
// that can fail partially. Nothing in a scan is retried, so the tracker is the
// only place those failures survive until the report is rendered.
package tracker

import (
	"errors"
	"io/fs"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

type Tracker struct {
	PermissionErrors int
	ReadFailures     int
	ParseFailures    int
	StatFailures     int

	// paths whose stat failed for a reason other than not-exist
	unverified mapset.Set[string]
	// pids with stale mappings but neither a unit nor an executable
	dropped []int
}

func NewTracker() *Tracker {
	return &Tracker{
		unverified: mapset.NewThreadUnsafeSet[string](),
	}
}

// RecordReadFailure notes that the maps table of pid could not be read.
func (t *Tracker) RecordReadFailure(pid int, err error) {
	t.ReadFailures++
	t.countPermission(err)
	logger.L().Warning("reading details of pid", helpers.Int("pid", pid), helpers.Error(err))
}

// RecordParseFailure notes a maps line that did not match the expected shape.
func (t *Tracker) RecordParseFailure(pid int, line string) {
	t.ParseFailures++
	logger.L().Warning("parse error in maps", helpers.Int("pid", pid), helpers.String("line", line))
}

// RecordStatFailure notes a mapped path that could not be verified.
func (t *Tracker) RecordStatFailure(pid int, path string, err error) {
	t.StatFailures++
	t.countPermission(err)
	t.unverified.Add(path)
	logger.L().Warning("failed to stat mapped file", helpers.String("path", path), helpers.Int("pid", pid), helpers.Error(err))
}

// RecordDropped notes a pid that contributes to neither exposure table.
func (t *Tracker) RecordDropped(pid int) {
	t.dropped = append(t.dropped, pid)
	logger.L().Warning("no unit and no exe for pid", helpers.Int("pid", pid))
}

// Unverified returns the sorted paths whose staleness could not be decided.
func (t *Tracker) Unverified() []string {
	if t.unverified.Cardinality() == 0 {
		return nil
	}
	paths := t.unverified.ToSlice()
	slices.Sort(paths)
	return paths
}

// Dropped returns the sorted pids that could not be attributed.
func (t *Tracker) Dropped() []int {
	pids := slices.Clone(t.dropped)
	slices.Sort(pids)
	return pids
}

// Incomplete reports whether running with more privileges could change the result.
func (t *Tracker) Incomplete() bool {
	return t.PermissionErrors > 0
}

func (t *Tracker) countPermission(err error) {
	if errors.Is(err, fs.ErrPermission) {
		t.PermissionErrors++
	}
}
