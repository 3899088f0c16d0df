// Package grouping attributes stale mappings to the thing an operator would
// restart: a systemd unit when the process has an actionable one, otherwise
// the executable the process runs.
package grouping

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kubescape/find-deleted/pkg/matcher"
	"github.com/kubescape/find-deleted/pkg/procinfo"
	"github.com/kubescape/find-deleted/pkg/scanner"
	"github.com/kubescape/find-deleted/pkg/tracker"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
)

// Result holds both exposure tables. A pid contributes to at most one of them.
type Result struct {
	// unit -> stale paths of its processes
	UnitExposure map[string]mapset.Set[string]
	// executable -> pids running it outside any actionable unit
	ExecutableExposure map[string]mapset.Set[int]
	// group -> units, units only
	Groups map[string]mapset.Set[string]
	// pid -> stale paths, for every pid in Usage
	PidPaths map[int]mapset.Set[string]
	// set when at least one pid runs in a catchall unit
	NonUnitProcesses bool
}

type Engine struct {
	catchall    matcher.Matcher
	groups      *matcher.Groups
	executables procinfo.ExecutableResolver
	tracker     *tracker.Tracker
}

func NewEngine(catchall matcher.Matcher, groups *matcher.Groups, executables procinfo.ExecutableResolver, t *tracker.Tracker) *Engine {
	return &Engine{
		catchall:    catchall,
		groups:      groups,
		executables: executables,
		tracker:     t,
	}
}

// Actionable reports whether unit is worth restarting.
func (e *Engine) Actionable(unit string) bool {
	return unit != "" && !e.catchall.Match(unit)
}

// Build consumes the stale usage and the pid -> unit map. Executables are
// only resolved for pids that have no actionable unit.
func (e *Engine) Build(usage scanner.StaleFileUsage, units map[int]string) *Result {
	res := &Result{
		UnitExposure:       make(map[string]mapset.Set[string]),
		ExecutableExposure: make(map[string]mapset.Set[int]),
		Groups:             make(map[string]mapset.Set[string]),
		PidPaths:           usage.ByPid(),
	}
	for _, pid := range usage.Pids() {
		paths := res.PidPaths[pid]
		unit := units[pid]
		if e.Actionable(unit) {
			addAll(res.UnitExposure, unit, paths)
			add(res.Groups, e.groups.Classify(unit), unit)
			continue
		}
		if unit != "" {
			// a catchall unit: restarting it would not help
			res.NonUnitProcesses = true
		}
		exe, err := e.executables.Executable(pid)
		if err != nil {
			logger.L().Warning("unable to find path of pid", helpers.Int("pid", pid), helpers.Error(err))
			e.tracker.RecordDropped(pid)
			continue
		}
		add(res.ExecutableExposure, exe, pid)
	}
	return res
}

func add[K comparable, V comparable](m map[K]mapset.Set[V], key K, value V) {
	set, ok := m[key]
	if !ok {
		set = mapset.NewThreadUnsafeSet[V]()
		m[key] = set
	}
	set.Add(value)
}

func addAll[K comparable, V comparable](m map[K]mapset.Set[V], key K, values mapset.Set[V]) {
	for value := range values.Iter() {
		add(m, key, value)
	}
}
