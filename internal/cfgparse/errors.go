package cfgparse

import (
	"errors"
	"fmt"
)

// Parse error codes (E200-E299)
const (
	ErrFieldCount         = "E201" // wrong number of fields on a line
	ErrBadNumber          = "E202" // unparsable numeric field
	ErrUnknownInput       = "E203" // descriptor references an undefined input
	ErrUnknownDescriptor  = "E204" // class references an undefined descriptor
	ErrUnknownCluster     = "E205" // class references an undefined cluster
	ErrUnknownDetector    = "E206" // input names a detector missing from the registry
	ErrDuplicate          = "E207" // entity name or class bit already defined
	ErrBadClassMask       = "E208" // class mask is not a single bit
	ErrLineOutsideSection = "E209" // data line before any section header
	ErrRead               = "E210" // configuration text could not be read
)

// ParseError is a fatal error from the explicit dialect.
type ParseError struct {
	Code    string `json:"code"`
	Line    int    `json:"line"`
	Content string `json:"content"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("[%s] line %d: %s: %q", e.Code, e.Line, e.Message, e.Content)
}

// IsParseError reports whether err is or wraps a *ParseError with the given
// code. An empty code matches any ParseError.
func IsParseError(err error, code string) bool {
	var pe *ParseError
	if !errors.As(err, &pe) {
		return false
	}
	return code == "" || pe.Code == code
}

// Severity grades a Diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is a recoverable problem found by the inferred dialect.
type Diagnostic struct {
	Line     int      `json:"line"`
	Content  string   `json:"content"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s: %s: %q", d.Line, d.Severity, d.Message, d.Content)
}

// MarshalText renders the severity by name in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
