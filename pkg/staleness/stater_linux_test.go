package staleness

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/kubescape/find-deleted/pkg/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func inodeOf(t *testing.T, path string) uint64 {
	t.Helper()
	var st unix.Stat_t
	require.NoError(t, unix.Stat(path, &st))
	return st.Ino
}

func TestUnixStater(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libfoo.so.1")
	require.NoError(t, os.WriteFile(lib, []byte("v1"), 0644))
	oldInode := inodeOf(t, lib)

	s := NewUnixStater("/")
	got, err := s.Inode(lib)
	require.NoError(t, err)
	assert.Equal(t, oldInode, got)

	// package managers replace files by renaming a new one over the old one
	next := filepath.Join(dir, "libfoo.so.1.tmp")
	require.NoError(t, os.WriteFile(next, []byte("v2"), 0644))
	require.NoError(t, os.Rename(next, lib))

	c := NewClassifier(s, tracker.NewTracker())
	assert.Equal(t, Stale, c.Classify(1, oldInode, lib))

	_, err = s.Inode(filepath.Join(dir, "missing.so"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestUnixStater_HostRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr", "lib"), 0755))
	lib := filepath.Join(root, "usr", "lib", "libbar.so")
	require.NoError(t, os.WriteFile(lib, []byte("x"), 0644))

	s := NewUnixStater(root)
	got, err := s.Inode("/usr/lib/libbar.so")
	require.NoError(t, err)
	assert.Equal(t, inodeOf(t, lib), got)

	_, err = s.Inode("/usr/lib/missing.so")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
