// Package matcher implements the string predicates used for path exclusion,
// catchall unit detection and unit grouping.
//
// A matcher is one of a closed set of variants: PrefixSet, ExactSet, RegexSet
// and Any, an ordered composite of the others. Every variant is built and
// validated up front; none of them matches the empty string.
package matcher

import (
	"errors"
	"fmt"
	"regexp"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dghubble/trie"
	"github.com/kubescape/find-deleted/pkg/config"
)

type Matcher interface {
	Match(s string) bool
}

var errMatched = errors.New("matched")

// PrefixSet matches strings starting with any of its prefixes.
type PrefixSet struct {
	prefixes *trie.RuneTrie
	size     int
}

var _ Matcher = (*PrefixSet)(nil)

func NewPrefixSet(prefixes ...string) *PrefixSet {
	p := &PrefixSet{prefixes: trie.NewRuneTrie()}
	for _, prefix := range prefixes {
		if p.prefixes.Put(prefix, struct{}{}) {
			p.size++
		}
	}
	return p
}

func (p *PrefixSet) Match(s string) bool {
	if s == "" || p.size == 0 {
		return false
	}
	// the walk visits every stored prefix of s, the first one is enough
	err := p.prefixes.WalkPath(s, func(_ string, _ interface{}) error {
		return errMatched
	})
	return errors.Is(err, errMatched)
}

// ExactSet matches strings equal to one of its members.
type ExactSet struct {
	members mapset.Set[string]
}

var _ Matcher = (*ExactSet)(nil)

func NewExactSet(members ...string) *ExactSet {
	return &ExactSet{members: mapset.NewThreadUnsafeSet(members...)}
}

func (e *ExactSet) Match(s string) bool {
	return s != "" && e.members.Contains(s)
}

// RegexSet matches strings fully matched by one of its expressions.
type RegexSet struct {
	exprs []*regexp.Regexp
}

var _ Matcher = (*RegexSet)(nil)

func NewRegexSet(exprs ...string) (*RegexSet, error) {
	r := &RegexSet{}
	for _, expr := range exprs {
		re, err := regexp.Compile(`^(?:` + expr + `)$`)
		if err != nil {
			return nil, fmt.Errorf("compiling %q: %w", expr, err)
		}
		r.exprs = append(r.exprs, re)
	}
	return r, nil
}

func (r *RegexSet) Match(s string) bool {
	if s == "" {
		return false
	}
	for _, re := range r.exprs {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Any matches when one of its matchers does, tried in order.
type Any []Matcher

var _ Matcher = Any(nil)

func (a Any) Match(s string) bool {
	if s == "" {
		return false
	}
	for _, m := range a {
		if m.Match(s) {
			return true
		}
	}
	return false
}

// FromSpec builds prefix, exact and regex matchers, in that order.
func FromSpec(spec config.MatcherSpec) (Matcher, error) {
	regexes, err := NewRegexSet(spec.ByRegex...)
	if err != nil {
		return nil, err
	}
	var matchers Any
	if len(spec.ByPrefix) > 0 {
		matchers = append(matchers, NewPrefixSet(spec.ByPrefix...))
	}
	if len(spec.ByFull) > 0 {
		matchers = append(matchers, NewExactSet(spec.ByFull...))
	}
	if len(regexes.exprs) > 0 {
		matchers = append(matchers, regexes)
	}
	return matchers, nil
}
