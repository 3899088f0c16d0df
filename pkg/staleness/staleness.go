// Package staleness decides whether a mapped file still matches what is on disk.
package staleness

import (
	"errors"
	"io/fs"
	"syscall"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kubescape/find-deleted/pkg/tracker"
)

type Verdict int

const (
	// Current: the path still refers to the mapped inode.
	Current Verdict = iota
	// Stale: the path is gone or now refers to another inode.
	Stale
	// Unverified: the path could not be stat'd for another reason.
	Unverified
)

func (v Verdict) String() string {
	switch v {
	case Current:
		return "current"
	case Stale:
		return "stale"
	case Unverified:
		return "unverified"
	}
	return "unknown"
}

// Stater returns the inode currently found at path.
type Stater interface {
	Inode(path string) (uint64, error)
}

type statResult struct {
	inode uint64
	err   error
}

type mapping struct {
	pid  int
	path string
}

// Classifier stats every path at most once per scan. A failed stat is
// recorded once per process, however many segments of the file it maps.
type Classifier struct {
	stater   Stater
	tracker  *tracker.Tracker
	seen     map[string]statResult
	reported mapset.Set[mapping]
}

func NewClassifier(stater Stater, t *tracker.Tracker) *Classifier {
	return &Classifier{
		stater:   stater,
		tracker:  t,
		seen:     make(map[string]statResult),
		reported: mapset.NewThreadUnsafeSet[mapping](),
	}
}

// Classify compares the inode pid has mapped at path with the inode on disk.
func (c *Classifier) Classify(pid int, inode uint64, path string) Verdict {
	res, ok := c.seen[path]
	if !ok {
		res.inode, res.err = c.stater.Inode(path)
		c.seen[path] = res
	}
	switch {
	case res.err == nil && res.inode == inode:
		return Current
	case res.err == nil:
		return Stale
	case isGone(res.err):
		return Stale
	default:
		if c.reported.Add(mapping{pid: pid, path: path}) {
			c.tracker.RecordStatFailure(pid, path, res.err)
		}
		return Unverified
	}
}

// a path component replaced by a non-directory is as gone as a missing file
func isGone(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
