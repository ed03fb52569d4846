package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// UnsupportedDependencyError reports a blacklisted dependency the host does
// not satisfy. It needs manual intervention.
type UnsupportedDependencyError struct {
	ID          string
	Requirement string
	RequiredBy  string
}

func (e *UnsupportedDependencyError) Error() string {
	msg := fmt.Sprintf("dependency %q (%s) is managed by the host and must be installed manually", e.ID, e.Requirement)
	if e.RequiredBy != "" {
		msg += fmt.Sprintf("; required by %q", e.RequiredBy)
	}
	return msg
}

// CyclicDependencyError indicates a cyclic dependency was detected.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// VersionConflictError reports two edges requiring incompatible versions of one plugin.
type VersionConflictError struct {
	ID          string
	Requirement string
	Chosen      string
	RequiredBy  string
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%q requires %s %s, but %s was already chosen", e.RequiredBy, e.ID, e.Requirement, e.Chosen)
}

// IsUnsupportedDependency returns true if the error is an UnsupportedDependencyError.
func IsUnsupportedDependency(err error) bool {
	var e *UnsupportedDependencyError
	return errors.As(err, &e)
}

// IsCyclicDependency returns true if the error is a cyclic dependency error.
func IsCyclicDependency(err error) bool {
	var e *CyclicDependencyError
	return errors.As(err, &e)
}

// IsVersionConflict returns true if the error is a VersionConflictError.
func IsVersionConflict(err error) bool {
	var e *VersionConflictError
	return errors.As(err, &e)
}
