// Package pathfilter decides which mapped paths are worth checking for
// staleness at all.
package pathfilter

import (
	"fmt"

	"github.com/kubescape/find-deleted/pkg/config"
	"github.com/kubescape/find-deleted/pkg/matcher"
)

// Virtual matches pseudo paths the kernel reports for mappings that are not
// regular files: bracketed names, anonymous huge pages, device nodes, DRM and
// memfd objects, /proc self references and System V IPC segments.
func Virtual() matcher.Matcher {
	return matcher.NewPrefixSet(
		"[",
		"/[aio]",
		"/anon_hugepage",
		"anon_inode:",
		"/dev/",
		"/dmabuf:",
		"/drm",
		"/i915",
		"/memfd:",
		"/proc/",
		"/SYSV",
	)
}

// Ephemeral matches shared-memory, temp and runtime-state directories whose
// files churn by design.
func Ephemeral() matcher.Matcher {
	return matcher.NewPrefixSet(
		"/dev/shm/",
		"/run/",
		"/tmp/",
		"/var/run/",
		"/var/tmp/",
	)
}

// Filter excludes paths that can never be acted upon.
type Filter struct {
	excluded matcher.Any
	mounts   *MountTable
}

// NewFilter combines the configured builtin categories with the operator's
// ignore_paths. mounts may be nil when no filesystem types are ignored.
func NewFilter(cfg config.Config, mounts *MountTable) (*Filter, error) {
	f := &Filter{mounts: mounts}
	for _, name := range cfg.BuiltinFilters {
		switch name {
		case config.FilterVirtual:
			f.excluded = append(f.excluded, Virtual())
		case config.FilterEphemeral:
			f.excluded = append(f.excluded, Ephemeral())
		default:
			return nil, fmt.Errorf("unknown builtin filter %q", name)
		}
	}
	ignore, err := matcher.FromSpec(cfg.IgnorePaths)
	if err != nil {
		return nil, fmt.Errorf("ignore_paths: %w", err)
	}
	f.excluded = append(f.excluded, ignore)
	return f, nil
}

// Eligible reports whether path should go on to the staleness check.
func (f *Filter) Eligible(path string) bool {
	if path == "" {
		return false
	}
	if f.excluded.Match(path) {
		return false
	}
	if f.mounts != nil && f.mounts.Ignored(path) {
		return false
	}
	return true
}
