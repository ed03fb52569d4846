package catalogue

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a totally ordered release version. The zero value is the
// negative-infinity sentinel used for plugins with no known release; it
// compares below every parsed version.
type Version struct {
	v *semver.Version
}

// ParseVersion parses a semantic-version-like string such as "1.2", "v2.0.0" or "1.0.0-beta.1".
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty string", ErrInvalidVersion)
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("%w %q: %v", ErrInvalidVersion, s, err)
	}
	return Version{v: v}, nil
}

// MustParseVersion is ParseVersion for literals known to be valid.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// NegativeInfinity returns the sentinel version.
func NegativeInfinity() Version {
	return Version{}
}

// IsSentinel reports whether v is the negative-infinity sentinel.
func (v Version) IsSentinel() bool {
	return v.v == nil
}

// Compare returns -1, 0 or +1.
func (v Version) Compare(other Version) int {
	switch {
	case v.v == nil && other.v == nil:
		return 0
	case v.v == nil:
		return -1
	case other.v == nil:
		return 1
	default:
		return v.v.Compare(other.v)
	}
}

// LessThan reports v < other.
func (v Version) LessThan(other Version) bool { return v.Compare(other) < 0 }

// GreaterThan reports v > other.
func (v Version) GreaterThan(other Version) bool { return v.Compare(other) > 0 }

// Equal reports v == other under semantic-version precedence.
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

func (v Version) String() string {
	if v.v == nil {
		return "N/A"
	}
	return v.v.Original()
}

// Requirement is a pure predicate over versions built from a constraint
// expression such as "*", ">=1.0.0", "~1.2" or ">=1.0,<2.0".
type Requirement struct {
	raw         string
	constraints *semver.Constraints
}

// AnyRequirement accepts every real version.
func AnyRequirement() Requirement {
	return Requirement{raw: "*"}
}

// ParseRequirement parses a constraint expression. An empty expression means "*".
// A prerelease satisfies a range when its position in version order does,
// so ">=1.0.0" accepts "2.0.0-beta.1" and "<2.0.0" accepts it too.
func ParseRequirement(expr string) (Requirement, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "*" {
		return AnyRequirement(), nil
	}
	c, err := semver.NewConstraint(normalizeConstraint(expr))
	if err != nil {
		return Requirement{}, fmt.Errorf("%w %q: %v", ErrInvalidRequirement, expr, err)
	}
	// Prereleases take part in ranges by plain version order, as in Latest.
	c.IncludePrerelease = true
	return Requirement{raw: expr, constraints: c}, nil
}

// MustParseRequirement is ParseRequirement for literals known to be valid.
func MustParseRequirement(expr string) Requirement {
	r, err := ParseRequirement(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// normalizeConstraint maps the "==" operator, which semver constraints spell "=".
func normalizeConstraint(expr string) string {
	return strings.ReplaceAll(expr, "==", "=")
}

// Accept reports whether v satisfies the requirement. The sentinel is never accepted.
func (r Requirement) Accept(v Version) bool {
	if v.IsSentinel() {
		return false
	}
	if r.constraints == nil {
		return true
	}
	return r.constraints.Check(v.v)
}

// IsAny reports whether the requirement accepts every version.
func (r Requirement) IsAny() bool {
	return r.constraints == nil
}

func (r Requirement) String() string {
	if r.raw == "" {
		return "*"
	}
	return r.raw
}
