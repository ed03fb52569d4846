package catalogue

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic error handling.
var (
	// ErrPluginNotFound indicates the id is not present in the catalogue.
	ErrPluginNotFound = errors.New("plugin not found in catalogue")
	// ErrInvalidVersion indicates a version string could not be parsed.
	ErrInvalidVersion = errors.New("invalid version")
	// ErrInvalidRequirement indicates a constraint expression could not be parsed.
	ErrInvalidRequirement = errors.New("invalid version requirement")
	// ErrEmptyArchive indicates the downloaded archive has no entries.
	ErrEmptyArchive = errors.New("catalogue archive is empty")
	// ErrNoCatalogueRoot indicates no plugin directories were found in the tree.
	ErrNoCatalogueRoot = errors.New("no plugin metadata directories found")
)

// PluginNotFoundError reports an unknown plugin id.
type PluginNotFoundError struct {
	ID string
}

func (e *PluginNotFoundError) Error() string {
	return fmt.Sprintf("plugin %q not found", e.ID)
}

func (e *PluginNotFoundError) Unwrap() error {
	return ErrPluginNotFound
}

// NoMatchingReleaseError reports that no asset-bearing release satisfies a requirement.
type NoMatchingReleaseError struct {
	ID          string
	Requirement string
	Unknown     bool
}

func (e *NoMatchingReleaseError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("no release of %q matches %s: plugin not in catalogue", e.ID, e.Requirement)
	}
	return fmt.Sprintf("no release of %q matches %s", e.ID, e.Requirement)
}

// Unwrap exposes ErrPluginNotFound when the plugin itself is unknown.
func (e *NoMatchingReleaseError) Unwrap() error {
	if e.Unknown {
		return ErrPluginNotFound
	}
	return nil
}

// InvalidSortKeyError reports an unrecognized sort key.
type InvalidSortKeyError struct {
	Key string
}

func (e *InvalidSortKeyError) Error() string {
	keys := make([]string, 0, len(sortKeys))
	for _, k := range sortKeys {
		keys = append(keys, string(k))
	}
	return fmt.Sprintf("invalid sort key %q (expected one of %s)", e.Key, strings.Join(keys, ", "))
}

// CatalogueLoadError reports an unusable on-disk cache. Callers treat the
// catalogue as empty and refresh.
type CatalogueLoadError struct {
	Dir string
	Err error
}

func (e *CatalogueLoadError) Error() string {
	return fmt.Sprintf("loading catalogue cache %s: %v", e.Dir, e.Err)
}

func (e *CatalogueLoadError) Unwrap() error {
	return e.Err
}

// CatalogueCorruptionError reports a downloaded archive that failed verification or parsing.
type CatalogueCorruptionError struct {
	Source string
	Err    error
}

func (e *CatalogueCorruptionError) Error() string {
	return fmt.Sprintf("catalogue archive from %s is corrupt: %v", e.Source, e.Err)
}

func (e *CatalogueCorruptionError) Unwrap() error {
	return e.Err
}

// IsPluginNotFound reports whether err means the plugin is unknown.
func IsPluginNotFound(err error) bool {
	return errors.Is(err, ErrPluginNotFound)
}

// IsNoMatchingRelease reports whether err is a NoMatchingReleaseError.
func IsNoMatchingRelease(err error) bool {
	var e *NoMatchingReleaseError
	return errors.As(err, &e)
}

// IsInvalidSortKey reports whether err is an InvalidSortKeyError.
func IsInvalidSortKey(err error) bool {
	var e *InvalidSortKeyError
	return errors.As(err, &e)
}

// IsCatalogueLoad reports whether err is a CatalogueLoadError.
func IsCatalogueLoad(err error) bool {
	var e *CatalogueLoadError
	return errors.As(err, &e)
}

// IsCatalogueCorruption reports whether err is a CatalogueCorruptionError.
func IsCatalogueCorruption(err error) bool {
	var e *CatalogueCorruptionError
	return errors.As(err, &e)
}
