package mapsreader

import (
	"bufio"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/kubescape/find-deleted/pkg/mapsreader"
	"github.com/kubescape/find-deleted/pkg/tracker"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/spf13/afero"
)

type MapsReader struct {
	appFs    afero.Fs
	procRoot string
}

var _ mapsreader.MapsReader = (*MapsReader)(nil)

func CreateMapsReader(procRoot string) *MapsReader {
	return &MapsReader{
		appFs:    afero.NewOsFs(),
		procRoot: procRoot,
	}
}

// Walk visits processes in ascending pid order.
func (m *MapsReader) Walk(t *tracker.Tracker, visit mapsreader.VisitFunc) error {
	pids, err := m.listPids()
	if err != nil {
		return err
	}
	logger.L().Debug("MapsReader - scanning processes", helpers.Int("count", len(pids)))
	for _, pid := range pids {
		lines, err := m.readMaps(pid)
		if err != nil {
			t.RecordReadFailure(pid, err)
			continue
		}
		visit(pid, lines)
	}
	return nil
}

func (m *MapsReader) listPids() ([]int, error) {
	entries, err := afero.ReadDir(m.appFs, m.procRoot)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", m.procRoot, err)
	}
	pids := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	slices.Sort(pids)
	return pids, nil
}

// readMaps reads the whole table and closes it before returning, so that no
// descriptor outlives the process it belongs to.
func (m *MapsReader) readMaps(pid int) ([]string, error) {
	f, err := m.appFs.Open(filepath.Join(m.procRoot, strconv.Itoa(pid), "maps"))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading maps of pid %d: %w", pid, err)
	}
	return lines, nil
}
