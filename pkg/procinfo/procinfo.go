// Package procinfo resolves per-process identity from procfs: the running
// executable and the owning user.
package procinfo

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/procfs"
)

const ownerCacheSize = 256

var ErrNoExecutable = errors.New("process has no executable")

// ExecutableResolver returns the path of the image a process runs.
type ExecutableResolver interface {
	Executable(pid int) (string, error)
}

// OwnerResolver describes the user a process runs as.
type OwnerResolver interface {
	Owner(pid int) string
}

type Resolver struct {
	fs     procfs.FS
	owners *lru.Cache[uint64, string]
}

var _ ExecutableResolver = (*Resolver)(nil)
var _ OwnerResolver = (*Resolver)(nil)

func NewResolver(procRoot string) (*Resolver, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize procfs: %w", err)
	}
	owners, err := lru.New[uint64, string](ownerCacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{fs: fs, owners: owners}, nil
}

// Executable fails when the process has exited or its exe link is unreadable.
func (r *Resolver) Executable(pid int) (string, error) {
	proc, err := r.fs.Proc(pid)
	if err != nil {
		return "", err
	}
	exe, err := proc.Executable()
	if err != nil {
		return "", err
	}
	if exe == "" {
		// kernel threads, or the process is gone
		return "", fmt.Errorf("pid %d: %w", pid, ErrNoExecutable)
	}
	return exe, nil
}

// Owner formats the effective user of pid as "name [uid]", "??? [uid]" when
// the uid has no account, or "unknown" when the process is gone.
func (r *Resolver) Owner(pid int) string {
	proc, err := r.fs.Proc(pid)
	if err != nil {
		return "unknown"
	}
	status, err := proc.NewStatus()
	if err != nil {
		return "unknown"
	}
	uid := status.UIDs[1]
	if name, ok := r.owners.Get(uid); ok {
		return name
	}
	owner := formatOwner(uid)
	r.owners.Add(uid, owner)
	return owner
}

func formatOwner(uid uint64) string {
	id := strconv.FormatUint(uid, 10)
	u, err := user.LookupId(id)
	if err != nil {
		return fmt.Sprintf("??? [%s]", id)
	}
	return fmt.Sprintf("%s [%s]", u.Username, id)
}
