// Package semver evaluates OS version policies such as ">= 8.0.0".
package semver

import (
	"fmt"

	mvc "github.com/Masterminds/semver/v3"
)

// Policy is a compiled version constraint.
type Policy struct {
	raw        string
	constraint *mvc.Constraints
}

// NewPolicy parses a constraint. An empty expression yields a policy that
// matches every version.
func NewPolicy(expr string) (*Policy, error) {
	if expr == "" {
		return &Policy{}, nil
	}
	c, err := mvc.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid version policy %q: %w", expr, err)
	}
	return &Policy{raw: expr, constraint: c}, nil
}

// Allows reports whether version satisfies the policy. OS versions are often
// reported loosely ("14", "8.1"), which the parser coerces to full versions.
func (p *Policy) Allows(version string) (bool, error) {
	if p == nil || p.constraint == nil {
		return true, nil
	}
	v, err := mvc.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", version, err)
	}
	return p.constraint.Check(v), nil
}

func (p *Policy) String() string {
	if p == nil {
		return ""
	}
	return p.raw
}
