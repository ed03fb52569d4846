package manager

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/addonctl/internal/domain/resolver"
)

// Sentinel errors for programmatic error handling.
var (
	// ErrNotInstalled indicates the host has no plugin with the given id.
	ErrNotInstalled = errors.New("plugin is not installed")
	// ErrInvalidTarget indicates an install target could not be parsed.
	ErrInvalidTarget = errors.New("invalid install target")
	// ErrEmptyCatalogue indicates no catalogue data is available at all.
	ErrEmptyCatalogue = errors.New("catalogue is empty; run update first")
)

// PermissionDeniedError reports a requester below the configured permission level.
type PermissionDeniedError struct {
	Operation string
	Required  int
	Actual    int
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied for %s: level %d required, have %d", e.Operation, e.Required, e.Actual)
}

// InvalidPageError reports a page number outside 1..MaxPage.
type InvalidPageError struct {
	Page    int
	MaxPage int
}

func (e *InvalidPageError) Error() string {
	return fmt.Sprintf("page %d is out of range (1-%d)", e.Page, e.MaxPage)
}

// UnknownIndexError reports a browse index that is neither built in nor a known label.
type UnknownIndexError struct {
	Index string
	Known []string
}

func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("unknown index %q (available: %s)", e.Index, strings.Join(e.Known, ", "))
}

// ConfirmationRequiredError is returned instead of running a plan when the
// requester must repeat the command. It is not a failure.
type ConfirmationRequiredError struct {
	TargetSpec string
	Plan       *resolver.Plan
	ExpiresAt  time.Time
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("repeat the command before %s to confirm %s", e.ExpiresAt.Format("15:04:05"), e.TargetSpec)
}

// IsPermissionDenied reports whether err is a PermissionDeniedError.
func IsPermissionDenied(err error) bool {
	var e *PermissionDeniedError
	return errors.As(err, &e)
}

// IsInvalidPage reports whether err is an InvalidPageError.
func IsInvalidPage(err error) bool {
	var e *InvalidPageError
	return errors.As(err, &e)
}

// IsUnknownIndex reports whether err is an UnknownIndexError.
func IsUnknownIndex(err error) bool {
	var e *UnknownIndexError
	return errors.As(err, &e)
}

// AsConfirmationRequired extracts a ConfirmationRequiredError.
func AsConfirmationRequired(err error) (*ConfirmationRequiredError, bool) {
	var e *ConfirmationRequiredError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
