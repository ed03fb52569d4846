package install

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// DefaultPython is the interpreter used to run pip.
const DefaultPython = "python3"

var specNameRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[[^\]]*\])?\s*(.*)$`)

// RequirementSpec is a parsed pip-style requirement such as "requests[socks]>=2.0; python_version>'3'".
type RequirementSpec struct {
	Raw       string
	Name      string
	Specifier string
}

// ParseRequirementSpec splits a requirement into name and version specifier.
// Environment markers are dropped.
func ParseRequirementSpec(raw string) (RequirementSpec, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, ";"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	m := specNameRe.FindStringSubmatch(s)
	if m == nil {
		return RequirementSpec{}, fmt.Errorf("%w: %q", ErrInvalidSpec, raw)
	}
	spec := strings.TrimSpace(m[3])
	spec = strings.TrimSuffix(strings.TrimPrefix(spec, "("), ")")
	return RequirementSpec{Raw: strings.TrimSpace(raw), Name: m[1], Specifier: strings.TrimSpace(spec)}, nil
}

// constraint converts the PEP 440 specifier subset into a semver constraint.
// ok is false when the specifier cannot be expressed.
func (r RequirementSpec) constraint() (*semver.Constraints, bool) {
	if r.Specifier == "" {
		return nil, true
	}
	clauses := strings.Split(r.Specifier, ",")
	out := make([]string, 0, len(clauses))
	for _, clause := range clauses {
		converted, ok := convertClause(strings.TrimSpace(clause))
		if !ok {
			return nil, false
		}
		out = append(out, converted)
	}
	c, err := semver.NewConstraint(strings.Join(out, ", "))
	if err != nil {
		return nil, false
	}
	return c, true
}

func convertClause(clause string) (string, bool) {
	switch {
	case strings.HasPrefix(clause, "==="):
		return "=" + strings.TrimSpace(clause[3:]), true
	case strings.HasPrefix(clause, "~="):
		return compatibleRelease(strings.TrimSpace(clause[2:]))
	case strings.HasPrefix(clause, "=="):
		v := strings.TrimSpace(clause[2:])
		if strings.HasSuffix(v, ".*") {
			return strings.TrimSuffix(v, ".*") + ".x", true
		}
		return "=" + v, true
	case strings.HasPrefix(clause, "!="):
		v := strings.TrimSpace(clause[2:])
		if strings.HasSuffix(v, ".*") {
			return "", false
		}
		return "!=" + v, true
	case strings.HasPrefix(clause, ">="), strings.HasPrefix(clause, "<="),
		strings.HasPrefix(clause, ">"), strings.HasPrefix(clause, "<"):
		return clause, true
	default:
		return "", false
	}
}

// compatibleRelease expands "~=X.Y[.Z]" into ">=X.Y[.Z], <next" where next
// increments the second-to-last segment.
func compatibleRelease(v string) (string, bool) {
	parts := strings.Split(v, ".")
	if len(parts) < 2 {
		return "", false
	}
	prefix := parts[:len(parts)-1]
	last, err := strconv.Atoi(prefix[len(prefix)-1])
	if err != nil {
		return "", false
	}
	upper := append(append([]string{}, prefix[:len(prefix)-1]...), strconv.Itoa(last+1))
	return fmt.Sprintf(">=%s, <%s", v, strings.Join(upper, ".")), true
}

// RequirementInstaller ensures pip-style requirements are present by running pip.
type RequirementInstaller struct {
	runner ports.CommandRunner
	python string
	logger ports.Logger
}

// NewRequirementInstaller creates an installer running pip through python.
func NewRequirementInstaller(runner ports.CommandRunner, python string, logger ports.Logger) *RequirementInstaller {
	if python == "" {
		python = DefaultPython
	}
	if logger == nil {
		logger = ports.NewNopLogger()
	}
	return &RequirementInstaller{runner: runner, python: python, logger: logger}
}

// Ensure installs spec unless it is already satisfied. It reports whether pip
// install ran. An installed version outside the specifier is a conflict.
func (i *RequirementInstaller) Ensure(ctx context.Context, raw string) (bool, error) {
	spec, err := ParseRequirementSpec(raw)
	if err != nil {
		return false, &RequirementInstallError{Spec: raw, Err: err}
	}

	installed, found, err := i.installedVersion(ctx, spec.Name)
	if err != nil {
		return false, &RequirementInstallError{Spec: raw, Err: err}
	}
	if found {
		c, ok := spec.constraint()
		v, verr := semver.NewVersion(installed)
		if ok && verr == nil {
			if c == nil || c.Check(v) {
				i.logger.Debug(ctx, "requirement already satisfied", ports.F(ports.KeySpec, raw), ports.F(ports.KeyVersion, installed))
				return false, nil
			}
			return false, &RequirementInstallError{
				Spec: raw,
				Err:  fmt.Errorf("%w: %s %s is installed", ErrVersionConflict, spec.Name, installed),
			}
		}
	}

	i.logger.Info(ctx, "installing requirement", ports.F(ports.KeySpec, raw))
	result, err := i.runner.Run(ctx, i.python, pipArgs("install", raw, "-q")...)
	if err != nil {
		return false, &RequirementInstallError{Spec: raw, Err: err}
	}
	if !result.Success() {
		return false, &RequirementInstallError{
			Spec: raw,
			Err:  fmt.Errorf("pip exited with code %d: %s", result.ExitCode, result.Output()),
		}
	}
	return true, nil
}

// installedVersion asks pip for the installed version of a distribution.
func (i *RequirementInstaller) installedVersion(ctx context.Context, name string) (string, bool, error) {
	result, err := i.runner.Run(ctx, i.python, pipArgs("show", name)...)
	if err != nil {
		return "", false, err
	}
	if !result.Success() {
		return "", false, nil
	}
	scanner := bufio.NewScanner(strings.NewReader(result.Stdout))
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "Version:"); ok {
			return strings.TrimSpace(v), true, nil
		}
	}
	return "", true, nil
}

func pipArgs(args ...string) []string {
	return append([]string{"-m", "pip", "--disable-pip-version-check"}, args...)
}
