package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Error codes for categorization.
const (
	ErrCodeConfigNotFound   = "CONFIG_NOT_FOUND"
	ErrCodeConfigParse      = "CONFIG_PARSE"
	ErrCodeFormatUnknown    = "FORMAT_UNKNOWN"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

// UserError is a configuration problem the user can fix.
type UserError struct {
	Code       string
	Message    string
	Context    string // file path or option name
	Suggestion string
	Underlying error
}

func (e *UserError) Error() string {
	if e.Context == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (at %s)", e.Message, e.Context)
}

func (e *UserError) Unwrap() error {
	return e.Underlying
}

// Is matches another UserError by code.
func (e *UserError) Is(target error) bool {
	t, ok := target.(*UserError)
	return ok && e.Code == t.Code
}

// Format renders the code, location, suggestion and cause on separate lines.
func (e *UserError) Format() string {
	lines := []string{fmt.Sprintf("[%s] %s", e.Code, e.Message)}
	if e.Context != "" {
		lines = append(lines, "  Location: "+e.Context)
	}
	if e.Suggestion != "" {
		lines = append(lines, "  Suggestion: "+e.Suggestion)
	}
	if e.Underlying != nil {
		lines = append(lines, fmt.Sprintf("  Cause: %v", e.Underlying))
	}
	return strings.Join(lines, "\n")
}

// ErrorList collects every validation problem of one configuration.
type ErrorList struct {
	items []*UserError
}

// NewErrorList creates an empty ErrorList.
func NewErrorList() *ErrorList {
	return &ErrorList{}
}

// Add appends err unless it is nil.
func (l *ErrorList) Add(err *UserError) {
	if err != nil {
		l.items = append(l.items, err)
	}
}

// AddValidation records an invalid option.
func (l *ErrorList) AddValidation(option, message, suggestion string) {
	l.Add(&UserError{
		Code:       ErrCodeValidationFailed,
		Message:    option + ": " + message,
		Context:    option,
		Suggestion: suggestion,
	})
}

// HasErrors reports whether anything was recorded.
func (l *ErrorList) HasErrors() bool {
	return len(l.items) > 0
}

// Len returns the number of recorded problems.
func (l *ErrorList) Len() int {
	return len(l.items)
}

func (l *ErrorList) Error() string {
	switch len(l.items) {
	case 0:
		return ""
	case 1:
		return l.items[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d configuration problems:", len(l.items))
	for _, err := range l.items {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Format renders every problem with UserError.Format.
func (l *ErrorList) Format() string {
	if len(l.items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(l.items)+1)
	parts = append(parts, fmt.Sprintf("Found %d configuration problem(s):", len(l.items)))
	for _, err := range l.items {
		parts = append(parts, err.Format())
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (l *ErrorList) Unwrap() []error {
	out := make([]error, len(l.items))
	for i, err := range l.items {
		out[i] = err
	}
	return out
}

// AsError returns the list, or nil when it is empty.
func (l *ErrorList) AsError() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}

// NewConfigNotFoundError reports an explicit --config path that does not exist.
func NewConfigNotFoundError(path string) *UserError {
	return &UserError{
		Code:       ErrCodeConfigNotFound,
		Message:    "configuration file not found: " + path,
		Context:    path,
		Suggestion: "Check the --config path, or omit it to use addonctl.yaml from the working directory.",
	}
}

// NewFormatUnknownError reports an unsupported file extension.
func NewFormatUnknownError(path string) *UserError {
	return &UserError{
		Code:       ErrCodeFormatUnknown,
		Message:    "unsupported configuration format",
		Context:    path,
		Suggestion: "Use a .yaml, .yml, .toml, .ini or .cfg file.",
	}
}

// NewConfigParseError wraps a TOML or INI decoding failure.
func NewConfigParseError(path string, err error) *UserError {
	return &UserError{
		Code:       ErrCodeConfigParse,
		Message:    "failed to parse configuration file",
		Context:    path,
		Suggestion: "Check the file syntax and that every option name is spelled as documented.",
		Underlying: err,
	}
}

// IsUserError reports whether err carries a UserError with code.
func IsUserError(err error, code string) bool {
	ue := GetUserError(err)
	return ue != nil && ue.Code == code
}

// GetUserError returns the first UserError in err's chain.
func GetUserError(err error) *UserError {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}
	return nil
}

// yamlHint maps a yaml.v3 error fragment to a readable message.
type yamlHint struct {
	fragments  []string
	message    string
	suggestion string
}

var yamlHints = []yamlHint{
	{
		fragments:  []string{"not found in type"},
		message:    "unknown configuration option",
		suggestion: "Remove the option or check its spelling, e.g. 'update-interval-seconds'.",
	},
	{
		fragments: []string{"cannot unmarshal !!map into []string"},
		message:   "expected a list but found an object",
		suggestion: `List options take '- item' entries:
  dependency-blacklist:
    - python
    - mcdreforged`,
	},
	{
		fragments:  []string{"cannot unmarshal !!seq into map"},
		message:    "expected an object but found a list",
		suggestion: "'host-provided-versions' takes 'id: version' pairs.",
	},
	{
		fragments:  []string{"cannot unmarshal !!str", "into int"},
		message:    "expected a number",
		suggestion: "Numeric options such as 'page-size' must not be quoted.",
	},
	{
		fragments:  []string{"cannot unmarshal !!str", "into bool"},
		message:    "expected true or false",
		suggestion: "Boolean options such as 'check-upgrade-on-refresh' take true or false.",
	},
	{
		fragments:  []string{"mapping values are not allowed"},
		message:    "invalid YAML structure",
		suggestion: "Check for a missing colon after a key or wrong indentation.",
	},
	{
		fragments:  []string{"found character that cannot start"},
		message:    "invalid character in YAML",
		suggestion: "Quote values that contain ':', '#' or '{'.",
	},
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// NewYAMLParseError turns a yaml.v3 decoding error into a UserError.
func NewYAMLParseError(path string, err error) *UserError {
	text := err.Error()
	ue := &UserError{
		Code:       ErrCodeConfigParse,
		Message:    "invalid YAML syntax",
		Context:    path,
		Suggestion: "Check indentation, colons and quoting of special characters.",
		Underlying: err,
	}
	for _, h := range yamlHints {
		if containsAll(text, h.fragments) {
			ue.Message = h.message
			ue.Suggestion = h.suggestion
			break
		}
	}
	if m := yamlLine.FindStringSubmatch(text); m != nil {
		ue.Context = fmt.Sprintf("%s (line %s)", path, m[1])
	}
	return ue
}

func containsAll(s string, fragments []string) bool {
	for _, f := range fragments {
		if !strings.Contains(s, f) {
			return false
		}
	}
	return true
}
