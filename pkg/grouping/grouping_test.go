package grouping

import (
	"errors"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kubescape/find-deleted/pkg/config"
	"github.com/kubescape/find-deleted/pkg/matcher"
	"github.com/kubescape/find-deleted/pkg/scanner"
	"github.com/kubescape/find-deleted/pkg/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutables struct {
	exes  map[int]string
	calls []int
}

func (f *fakeExecutables) Executable(pid int) (string, error) {
	f.calls = append(f.calls, pid)
	if exe, ok := f.exes[pid]; ok {
		return exe, nil
	}
	return "", errors.New("no such process")
}

func usageOf(entries map[string][]int) scanner.StaleFileUsage {
	usage := scanner.StaleFileUsage{}
	for path, pids := range entries {
		usage[path] = mapset.NewThreadUnsafeSet(pids...)
	}
	return usage
}

func newEngine(t *testing.T, groups []config.GroupSpec, exes *fakeExecutables, tr *tracker.Tracker) *Engine {
	t.Helper()
	catchall, err := matcher.FromSpec(config.DefaultCatchallUnits())
	require.NoError(t, err)
	g, err := matcher.NewGroups(groups)
	require.NoError(t, err)
	return NewEngine(catchall, g, exes, tr)
}

func TestBuild(t *testing.T) {
	usage := usageOf(map[string][]int{
		"/usr/lib/libfoo.so.1": {100, 300, 400},
		"/usr/lib/libssl.so.3": {100, 101},
		"/opt/app/libgone.so":  {300, 301},
		"/usr/lib/libbar.so":   {500},
	})
	units := map[int]string{
		100: "nginx.service",
		101: "nginx.service",
		400: "user@1000.service",
		600: "unrelated.service",
	}
	exes := &fakeExecutables{exes: map[int]string{
		300: "/opt/app/worker",
		301: "/opt/app/worker",
		400: "/usr/bin/pipewire",
		100: "/usr/sbin/nginx",
	}}
	tr := tracker.NewTracker()
	e := newEngine(t, []config.GroupSpec{
		{Group: "web", MatcherSpec: config.MatcherSpec{ByPrefix: []string{"nginx"}}},
	}, exes, tr)

	res := e.Build(usage, units)

	require.Len(t, res.UnitExposure, 1)
	assert.ElementsMatch(t, []string{"/usr/lib/libfoo.so.1", "/usr/lib/libssl.so.3"}, res.UnitExposure["nginx.service"].ToSlice())

	require.Len(t, res.ExecutableExposure, 2)
	assert.ElementsMatch(t, []int{300, 301}, res.ExecutableExposure["/opt/app/worker"].ToSlice())
	// catchall unit falls back to the executable
	assert.ElementsMatch(t, []int{400}, res.ExecutableExposure["/usr/bin/pipewire"].ToSlice())

	assert.ElementsMatch(t, []string{"nginx.service"}, res.Groups["web"].ToSlice())
	assert.True(t, res.NonUnitProcesses)

	// 500 has neither unit nor executable
	assert.Equal(t, []int{500}, tr.Dropped())

	// executables are only looked up for pids without an actionable unit
	assert.ElementsMatch(t, []int{300, 301, 400, 500}, exes.calls)
}

func TestBuild_ExposuresAreDisjoint(t *testing.T) {
	usage := usageOf(map[string][]int{
		"/a.so": {1, 2, 3, 4},
		"/b.so": {2, 5},
	})
	units := map[int]string{1: "a.service", 2: "session-4.scope", 5: "b.service"}
	exes := &fakeExecutables{exes: map[int]string{1: "/bin/a", 2: "/bin/b", 3: "/bin/c", 5: "/bin/e"}}
	tr := tracker.NewTracker()
	res := newEngine(t, nil, exes, tr).Build(usage, units)

	unitPids := mapset.NewThreadUnsafeSet[int]()
	for pid, unit := range units {
		if _, ok := res.UnitExposure[unit]; ok {
			unitPids.Add(pid)
		}
	}
	exePids := mapset.NewThreadUnsafeSet[int]()
	for _, pids := range res.ExecutableExposure {
		exePids = exePids.Union(pids)
	}

	assert.True(t, unitPids.Intersect(exePids).IsEmpty())
	allPids := mapset.NewThreadUnsafeSet(usage.Pids()...)
	assert.True(t, unitPids.IsSubset(allPids))
	assert.True(t, exePids.IsSubset(allPids))
	// every pid lands somewhere unless it was dropped
	assert.Equal(t, allPids.Cardinality(), unitPids.Cardinality()+exePids.Cardinality()+len(tr.Dropped()))
	assert.ElementsMatch(t, []string{"a.service", "b.service"}, res.Groups[matcher.OtherGroup].ToSlice())
}

func TestBuild_Empty(t *testing.T) {
	exes := &fakeExecutables{}
	res := newEngine(t, nil, exes, tracker.NewTracker()).Build(scanner.StaleFileUsage{}, map[int]string{1: "a.service"})
	assert.Empty(t, res.UnitExposure)
	assert.Empty(t, res.ExecutableExposure)
	assert.Empty(t, res.Groups)
	assert.False(t, res.NonUnitProcesses)
	assert.Empty(t, exes.calls)
}

func TestBuild_NonUnitProcessesNeedsCatchall(t *testing.T) {
	usage := usageOf(map[string][]int{"/usr/lib/libfoo.so.1": {10, 20}})
	exes := &fakeExecutables{exes: map[int]string{10: "/usr/bin/a", 20: "/usr/bin/b"}}

	// no unit at all
	res := newEngine(t, nil, exes, tracker.NewTracker()).Build(usage, map[int]string{10: "a.service"})
	assert.False(t, res.NonUnitProcesses)
	assert.Len(t, res.ExecutableExposure, 1)

	res = newEngine(t, nil, exes, tracker.NewTracker()).Build(usage, map[int]string{10: "a.service", 20: "session-3.scope"})
	assert.True(t, res.NonUnitProcesses)
}

func TestActionable(t *testing.T) {
	e := newEngine(t, nil, &fakeExecutables{}, tracker.NewTracker())
	assert.True(t, e.Actionable("nginx.service"))
	assert.False(t, e.Actionable(""))
	assert.False(t, e.Actionable("user@1000.service"))
	assert.False(t, e.Actionable("session-12.scope"))
	assert.False(t, e.Actionable("init.scope"))
	assert.False(t, e.Actionable("user-1000.slice"))
}
