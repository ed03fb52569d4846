package install

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
var (
	// ErrVersionConflict indicates an installed package violates a requirement spec.
	ErrVersionConflict = errors.New("installed version conflicts with requirement")
	// ErrNoAsset indicates the chosen release has nothing to download.
	ErrNoAsset = errors.New("release has no downloadable asset")
	// ErrInvalidSpec indicates a requirement spec could not be parsed.
	ErrInvalidSpec = errors.New("invalid requirement spec")
)

// RequirementInstallError reports a requirement that could not be satisfied.
type RequirementInstallError struct {
	Spec string
	Err  error
}

func (e *RequirementInstallError) Error() string {
	return fmt.Sprintf("failed to install requirement %q: %v", e.Spec, e.Err)
}

func (e *RequirementInstallError) Unwrap() error {
	return e.Err
}

// DependencyInstallError reports a failed dependency step of a plan.
type DependencyInstallError struct {
	DependencyID string
	Dependent    string
	Err          error
}

func (e *DependencyInstallError) Error() string {
	return fmt.Sprintf("failed to install dependency %q of %q: %v", e.DependencyID, e.Dependent, e.Err)
}

func (e *DependencyInstallError) Unwrap() error {
	return e.Err
}

// StepError reports the stage at which a plugin step failed.
type StepError struct {
	PluginID string
	Version  string
	Stage    Stage
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s@%s failed during %s: %v", e.PluginID, e.Version, e.Stage, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsRequirementInstall reports whether err is a RequirementInstallError.
func IsRequirementInstall(err error) bool {
	var e *RequirementInstallError
	return errors.As(err, &e)
}

// IsDependencyInstall reports whether err is a DependencyInstallError.
func IsDependencyInstall(err error) bool {
	var e *DependencyInstallError
	return errors.As(err, &e)
}

// IsStepError reports whether err is a StepError.
func IsStepError(err error) bool {
	var e *StepError
	return errors.As(err, &e)
}
