// Package report turns a grouping result into what the operator reads.
package report

import (
	"slices"
	"strings"

	"github.com/facette/natsort"
	"github.com/kubescape/find-deleted/pkg/grouping"
	"github.com/kubescape/find-deleted/pkg/procinfo"
	"github.com/kubescape/find-deleted/pkg/tracker"
)

type Group struct {
	Name           string   `json:"name"`
	Units          []string `json:"units"`
	RestartCommand string   `json:"restartCommand"`
}

type Unit struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
}

type Process struct {
	Pid   int    `json:"pid"`
	Owner string `json:"owner"`
}

type Executable struct {
	Path      string    `json:"path"`
	Processes []Process `json:"processes"`
	Paths     []string  `json:"paths"`
}

type Summary struct {
	StalePaths       int `json:"stalePaths"`
	Units            int `json:"units"`
	Executables      int `json:"executables"`
	DroppedProcesses int `json:"droppedProcesses"`
	PermissionErrors int `json:"permissionErrors"`
	ReadFailures     int `json:"readFailures"`
	ParseFailures    int `json:"parseFailures"`
	StatFailures     int `json:"statFailures"`
}

// Document is the complete, deterministically ordered outcome of a scan.
type Document struct {
	Groups           []Group      `json:"groups"`
	Units            []Unit       `json:"units"`
	Executables      []Executable `json:"executables"`
	NonUnitProcesses bool         `json:"nonUnitProcesses"`
	UnverifiedPaths  []string     `json:"unverifiedPaths,omitempty"`
	DroppedPids      []int        `json:"droppedPids,omitempty"`
	Summary          Summary      `json:"summary"`
}

func RestartCommand(units []string) string {
	return "sudo systemctl restart " + strings.Join(units, " ")
}

func NewDocument(res *grouping.Result, stalePaths int, t *tracker.Tracker, owners procinfo.OwnerResolver) Document {
	doc := Document{
		Groups:           []Group{},
		Units:            []Unit{},
		Executables:      []Executable{},
		NonUnitProcesses: res.NonUnitProcesses,
		UnverifiedPaths:  t.Unverified(),
		DroppedPids:      t.Dropped(),
	}

	for _, name := range sortedKeys(res.Groups) {
		units := res.Groups[name].ToSlice()
		natsort.Sort(units)
		doc.Groups = append(doc.Groups, Group{
			Name:           name,
			Units:          units,
			RestartCommand: RestartCommand(units),
		})
	}

	unitNames := make([]string, 0, len(res.UnitExposure))
	for name := range res.UnitExposure {
		unitNames = append(unitNames, name)
	}
	natsort.Sort(unitNames)
	for _, name := range unitNames {
		paths := res.UnitExposure[name].ToSlice()
		slices.Sort(paths)
		doc.Units = append(doc.Units, Unit{Name: name, Paths: paths})
	}

	for _, exe := range sortedKeys(res.ExecutableExposure) {
		pids := res.ExecutableExposure[exe].ToSlice()
		slices.Sort(pids)
		entry := Executable{Path: exe}
		var paths []string
		for _, pid := range pids {
			entry.Processes = append(entry.Processes, Process{Pid: pid, Owner: owners.Owner(pid)})
			if pidPaths, ok := res.PidPaths[pid]; ok {
				paths = append(paths, pidPaths.ToSlice()...)
			}
		}
		slices.Sort(paths)
		entry.Paths = slices.Compact(paths)
		doc.Executables = append(doc.Executables, entry)
	}

	doc.Summary = Summary{
		StalePaths:       stalePaths,
		Units:            len(doc.Units),
		Executables:      len(doc.Executables),
		DroppedProcesses: len(doc.DroppedPids),
		PermissionErrors: t.PermissionErrors,
		ReadFailures:     t.ReadFailures,
		ParseFailures:    t.ParseFailures,
		StatFailures:     t.StatFailures,
	}
	return doc
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
