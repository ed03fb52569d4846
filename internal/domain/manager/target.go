package manager

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/domain/resolver"
)

var targetPattern = regexp.MustCompile(`^([a-z0-9_]+)(.*)$`)

// ParseTarget splits "foo>=2.0.0" into a plugin id and a requirement. The id
// is the leading run of [a-z0-9_]; an empty remainder accepts any version.
func ParseTarget(s string) (resolver.Request, error) {
	s = strings.TrimSpace(s)
	m := targetPattern.FindStringSubmatch(s)
	if m == nil {
		return resolver.Request{}, fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}

	req := catalogue.AnyRequirement()
	if rest := strings.TrimSpace(m[2]); rest != "" {
		parsed, err := catalogue.ParseRequirement(rest)
		if err != nil {
			return resolver.Request{}, fmt.Errorf("%w: %q: %v", ErrInvalidTarget, s, err)
		}
		req = parsed
	}
	return resolver.Request{PluginID: m[1], Requirement: req}, nil
}
