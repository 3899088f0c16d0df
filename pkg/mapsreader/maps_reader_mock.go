package mapsreader

import (
	"slices"

	"github.com/kubescape/find-deleted/pkg/tracker"
)

type MapsReaderMock struct {
	Maps   map[int][]string
	Errors map[int]error
}

var _ MapsReader = (*MapsReaderMock)(nil)

func CreateMapsReaderMock(maps map[int][]string) *MapsReaderMock {
	return &MapsReaderMock{
		Maps:   maps,
		Errors: map[int]error{},
	}
}

func (m *MapsReaderMock) Walk(t *tracker.Tracker, visit VisitFunc) error {
	pids := make([]int, 0, len(m.Maps)+len(m.Errors))
	for pid := range m.Maps {
		pids = append(pids, pid)
	}
	for pid := range m.Errors {
		if _, ok := m.Maps[pid]; !ok {
			pids = append(pids, pid)
		}
	}
	slices.Sort(pids)
	for _, pid := range pids {
		if err, ok := m.Errors[pid]; ok {
			t.RecordReadFailure(pid, err)
			continue
		}
		visit(pid, m.Maps[pid])
	}
	return nil
}
