package staleness

import (
	"io/fs"

	securejoin "github.com/cyphar/filepath-securejoin"
	"golang.org/x/sys/unix"
)

// UnixStater stats paths as seen from hostRoot.
type UnixStater struct {
	hostRoot string
}

var _ Stater = (*UnixStater)(nil)

func NewUnixStater(hostRoot string) *UnixStater {
	if hostRoot == "/" {
		hostRoot = ""
	}
	return &UnixStater{hostRoot: hostRoot}
}

func (s *UnixStater) Inode(path string) (uint64, error) {
	if s.hostRoot != "" {
		joined, err := securejoin.SecureJoin(s.hostRoot, path)
		if err != nil {
			return 0, err
		}
		path = joined
	}
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	return st.Ino, nil
}
