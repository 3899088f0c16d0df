package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/kubescape/find-deleted/pkg/config"
	"github.com/kubescape/find-deleted/pkg/mapsreader"
	"github.com/kubescape/find-deleted/pkg/metricsmanager"
	"github.com/kubescape/find-deleted/pkg/report"
	"github.com/kubescape/find-deleted/pkg/unitresolver"
	"github.com/kubescape/find-deleted/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStater map[string]uint64

func (f fakeStater) Inode(path string) (uint64, error) {
	if inode, ok := f[path]; ok {
		return inode, nil
	}
	return 0, &fs.PathError{Op: "stat", Path: path, Err: syscall.ENOENT}
}

type fakeProcs map[int]string

func (f fakeProcs) Executable(pid int) (string, error) {
	if exe, ok := f[pid]; ok {
		return exe, nil
	}
	return "", errors.New("gone")
}

func (f fakeProcs) Owner(int) string {
	return "root [0]"
}

func line(inode uint64, path string) string {
	return fmt.Sprintf("7f0000000000-7f0000001000 r-xp 00000000 08:01 %d    %s", inode, path)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.LoadConfig(writeConfig(t, "group_services:\n  - group: web\n    by_prefix: [nginx]\n"), nil)
	require.NoError(t, err)
	return cfg
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deleted.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestExecute(t *testing.T) {
	reader := mapsreader.CreateMapsReaderMock(map[int][]string{
		100: {line(11, "/usr/lib/libssl.so.3 (deleted)"), line(12, "/usr/lib/libc.so.6")},
		200: {line(11, "/usr/lib/libssl.so.3 (deleted)")},
		300: {line(13, "/usr/lib/libz.so.1"), line(14, "/tmp/scratch (deleted)")},
	})
	units := unitresolver.CreateUnitResolverMock(map[int]string{
		100: "nginx.service",
		200: "session-4.scope",
	})
	metrics := metricsmanager.NewMetricsMock()
	deps := collaborators{
		reader: reader,
		// libz was replaced: the path now has a different inode
		stater:  fakeStater{"/usr/lib/libc.so.6": 12, "/usr/lib/libz.so.1": 99},
		units:   units,
		procs:   fakeProcs{200: "/usr/bin/bash", 300: "/usr/sbin/cron"},
		metrics: metrics,
	}

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), testConfig(t), deps, &out, report.FormatText))

	assert.Equal(t, [][]int{{100, 200, 300}}, units.Calls)
	assert.Contains(t, out.String(), " * web\n   - sudo systemctl restart nginx.service\n")
	assert.Contains(t, out.String(), "Some pids not associated with units need restarting.")
	assert.Contains(t, out.String(), " * /usr/bin/bash\n")
	assert.Contains(t, out.String(), " * /usr/sbin/cron\n")
	assert.NotContains(t, out.String(), "/tmp/scratch")
	assert.NotContains(t, out.String(), "libc.so.6")

	assert.Equal(t, 2, metrics.Gauges.Get("stale_paths"))
	assert.Equal(t, 1, metrics.Gauges.Get("units"))
	assert.Equal(t, 2, metrics.Gauges.Get("executables"))
}

func TestExecute_NothingStale(t *testing.T) {
	deps := collaborators{
		reader:  mapsreader.CreateMapsReaderMock(map[int][]string{1: {line(5, "/usr/lib/systemd/systemd")}}),
		stater:  fakeStater{"/usr/lib/systemd/systemd": 5},
		units:   unitresolver.CreateUnitResolverMock(nil),
		procs:   fakeProcs{},
		metrics: metricsmanager.NewMetricsMock(),
	}
	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), testConfig(t), deps, &out, report.FormatText))
	assert.Equal(t, "No units need restarting.\n", out.String())
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown flag", args: []string{"--frobnicate"}},
		{name: "bad output format", args: []string{"--output", "xml"}},
		{name: "missing explicit config", args: []string{"--config", "/nonexistent/deleted.yml"}},
		{name: "unknown config key", args: []string{"--config", writeConfig(t, "ignore_pathz: {}\n")}},
		{name: "bad regex", args: []string{"--config", writeConfig(t, "ignore_paths:\n  by_regex: ['(']\n")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, utils.ExitCodeInvalidConfig, run(context.Background(), tt.args, &out))
			assert.Empty(t, out.String())
		})
	}
}

func TestRun_Help(t *testing.T) {
	assert.Equal(t, utils.ExitCodeSuccess, run(context.Background(), []string{"--help"}, &bytes.Buffer{}))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, utils.ExitCodeInvalidConfig, exitCode(fmt.Errorf("%w: x", config.ErrInvalidConfig)))
	assert.Equal(t, utils.ExitCodeError, exitCode(errors.New("boom")))
}
