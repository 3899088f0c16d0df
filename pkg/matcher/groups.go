package matcher

import (
	"fmt"

	"github.com/kubescape/find-deleted/pkg/config"
)

// OtherGroup collects units no configured group claims.
const OtherGroup = "other"

type group struct {
	name    string
	matcher Matcher
}

// Groups folds unit names into operator-defined groups. The first group
// whose matcher accepts a unit wins.
type Groups struct {
	groups []group
}

func NewGroups(specs []config.GroupSpec) (*Groups, error) {
	g := &Groups{}
	for i, spec := range specs {
		if spec.Group == "" {
			return nil, fmt.Errorf("group_services[%d]: missing group name", i)
		}
		m, err := FromSpec(spec.MatcherSpec)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", spec.Group, err)
		}
		g.groups = append(g.groups, group{name: spec.Group, matcher: m})
	}
	return g, nil
}

func (g *Groups) Classify(unit string) string {
	for _, gr := range g.groups {
		if gr.matcher.Match(unit) {
			return gr.name
		}
	}
	return OtherGroup
}
