// Package scanner runs the detection half of a scan: it reads every
// process's maps, drops mappings that are not files or not eligible, and
// keeps the paths whose on-disk file no longer matches the mapping.
package scanner

import (
	"slices"

	"github.com/aquilax/truncate"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kubescape/find-deleted/pkg/mapsparser"
	"github.com/kubescape/find-deleted/pkg/mapsreader"
	"github.com/kubescape/find-deleted/pkg/staleness"
	"github.com/kubescape/find-deleted/pkg/tracker"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

const maxLoggedLine = 160

// StaleFileUsage maps each stale path to the pids that still map it.
type StaleFileUsage map[string]mapset.Set[int]

func (u StaleFileUsage) add(path string, pid int) {
	pids, ok := u[path]
	if !ok {
		pids = mapset.NewThreadUnsafeSet[int]()
		u[path] = pids
	}
	pids.Add(pid)
}

// ByPid inverts the usage into pid -> stale paths.
func (u StaleFileUsage) ByPid() map[int]mapset.Set[string] {
	out := make(map[int]mapset.Set[string])
	for path, pids := range u {
		for pid := range pids.Iter() {
			paths, ok := out[pid]
			if !ok {
				paths = mapset.NewThreadUnsafeSet[string]()
				out[pid] = paths
			}
			paths.Add(path)
		}
	}
	return out
}

// Pids returns every pid owning at least one stale mapping, ascending.
func (u StaleFileUsage) Pids() []int {
	all := mapset.NewThreadUnsafeSet[int]()
	for _, pids := range u {
		all = all.Union(pids)
	}
	out := all.ToSlice()
	slices.Sort(out)
	return out
}

// PathFilter tells whether a path is worth a stat.
type PathFilter interface {
	Eligible(path string) bool
}

type Scanner struct {
	reader     mapsreader.MapsReader
	filter     PathFilter
	classifier *staleness.Classifier
	tracker    *tracker.Tracker
}

func NewScanner(reader mapsreader.MapsReader, filter PathFilter, classifier *staleness.Classifier, t *tracker.Tracker) *Scanner {
	return &Scanner{
		reader:     reader,
		filter:     filter,
		classifier: classifier,
		tracker:    t,
	}
}

// Scan fails only when the process table cannot be listed.
func (s *Scanner) Scan() (StaleFileUsage, error) {
	usage := make(StaleFileUsage)
	err := s.reader.Walk(s.tracker, func(pid int, lines []string) {
		s.scanProcess(usage, pid, lines)
	})
	if err != nil {
		return nil, err
	}
	logger.L().Debug("Scanner - scan complete", helpers.Int("stalePaths", len(usage)))
	return usage, nil
}

func (s *Scanner) scanProcess(usage StaleFileUsage, pid int, lines []string) {
	for _, line := range lines {
		record, err := mapsparser.ParseLine(line)
		if err != nil {
			s.tracker.RecordParseFailure(pid, truncate.Truncate(line, maxLoggedLine, "...", truncate.PositionEnd))
			continue
		}
		if !record.IsFile() || !s.filter.Eligible(record.Path) {
			continue
		}
		if s.classifier.Classify(pid, record.Inode, record.Path) == staleness.Stale {
			usage.add(record.Path, pid)
		}
	}
}
