package cfgparse

import (
	"fmt"
	"io"

	"github.com/roach88/ctprun/internal/ctp"
	"github.com/roach88/ctprun/internal/detector"
)

// Dialect selects a parser.
type Dialect string

const (
	DialectExplicit Dialect = "explicit"
	DialectInferred Dialect = "inferred"
)

// Dialects lists the accepted dialect names.
var Dialects = []Dialect{DialectExplicit, DialectInferred}

// ParseDialect validates a dialect name.
func ParseDialect(name string) (Dialect, error) {
	for _, d := range Dialects {
		if string(d) == name {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dialect %q: must be one of %v", name, Dialects)
}

// Result is a parsed configuration with any recoverable problems.
type Result struct {
	Config      *ctp.Configuration `json:"configuration"`
	Diagnostics []Diagnostic       `json:"diagnostics"`
}

// Parse runs the parser for d. The explicit dialect never yields
// diagnostics; the inferred dialect never returns an error.
func Parse(d Dialect, text string, reg detector.Registry) (*Result, error) {
	switch d {
	case DialectExplicit:
		cfg, err := ParseExplicit(text, reg)
		if err != nil {
			return nil, err
		}
		return &Result{Config: cfg, Diagnostics: []Diagnostic{}}, nil
	case DialectInferred:
		cfg, diags := ParseInferred(text, reg)
		if diags == nil {
			diags = []Diagnostic{}
		}
		return &Result{Config: cfg, Diagnostics: diags}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", d)
	}
}

// ReadText reads a whole configuration from r.
func ReadText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", &ParseError{Code: ErrRead, Message: err.Error()}
	}
	return string(b), nil
}
