// Package mapsparser parses lines of /proc/<pid>/maps.
package mapsparser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// DeletedSuffix is appended by the kernel to the path of an unlinked mapping.
const DeletedSuffix = " (deleted)"

var ErrUnparseable = errors.New("unparseable maps line")

// <start>-<end> <perms> <offset> <major>:<minor> <inode> <path>
var mapLine = regexp.MustCompile(`^[\da-f]+-[\da-f]+ [r-][w-][x-][sp-] [\da-f]+ [\da-f]{2,}:[\da-f]{2,} (\d+) *(.*)$`)

// Record is one mapping of a process. Inode 0 marks a mapping that is not
// backed by a file.
type Record struct {
	Inode uint64
	Path  string
	// Deleted is informational only; staleness is always re-verified on disk.
	Deleted bool
}

// IsFile reports whether the mapping is backed by a file.
func (r Record) IsFile() bool {
	return r.Inode != 0
}

// ParseLine parses a single maps line, with or without its trailing newline.
func ParseLine(line string) (Record, error) {
	line = strings.TrimSuffix(line, "\n")
	m := mapLine.FindStringSubmatch(line)
	if m == nil {
		return Record{}, ErrUnparseable
	}
	inode, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return Record{}, ErrUnparseable
	}
	path, deleted := strings.CutSuffix(m[2], DeletedSuffix)
	return Record{
		Inode:   inode,
		Path:    path,
		Deleted: deleted,
	}, nil
}
