package pathfilter

import (
	"fmt"
	"io"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dghubble/trie"
	"github.com/moby/sys/mountinfo"
)

// MountTable answers which filesystem type a path lives on, without touching
// the path itself.
type MountTable struct {
	mountpoints *trie.PathTrie
	rootFSType  string
	ignored     mapset.Set[string]
}

// NewMountTable indexes mounts by mountpoint. Paths on a filesystem whose type
// is in ignoredFSTypes are reported as ignored. Later mounts on the same
// mountpoint shadow earlier ones.
func NewMountTable(mounts []*mountinfo.Info, ignoredFSTypes []string) *MountTable {
	t := &MountTable{
		mountpoints: trie.NewPathTrie(),
		ignored:     mapset.NewThreadUnsafeSet(ignoredFSTypes...),
	}
	for _, m := range mounts {
		if m.Mountpoint == "/" {
			t.rootFSType = m.FSType
			continue
		}
		t.mountpoints.Put(m.Mountpoint, m.FSType)
	}
	return t
}

// LoadMountTable reads the mount table of the current mount namespace.
func LoadMountTable(ignoredFSTypes []string) (*MountTable, error) {
	mounts, err := mountinfo.GetMounts(nil)
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	return NewMountTable(mounts, ignoredFSTypes), nil
}

// LoadMountTableFromReader parses a mountinfo formatted table.
func LoadMountTableFromReader(r io.Reader, ignoredFSTypes []string) (*MountTable, error) {
	mounts, err := mountinfo.GetMountsFromReader(r, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing mount table: %w", err)
	}
	return NewMountTable(mounts, ignoredFSTypes), nil
}

// FSType returns the filesystem type of the longest mountpoint containing path.
func (t *MountTable) FSType(path string) string {
	fsType := t.rootFSType
	_ = t.mountpoints.WalkPath(path, func(_ string, value interface{}) error {
		if s, ok := value.(string); ok {
			fsType = s
		}
		return nil
	})
	return fsType
}

func (t *MountTable) Ignored(path string) bool {
	if t.ignored.Cardinality() == 0 {
		return false
	}
	return t.ignored.Contains(t.FSType(path))
}
