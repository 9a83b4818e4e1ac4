// Package detector resolves detector names to the small integer ids and
// bit masks used by trigger configurations.
//
// The registry is injected into the configuration parsers; nothing here is
// global mutable state.
package detector

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ID is a detector identifier. Valid ids are small and non-negative.
type ID int

// Invalid marks a detector participation record whose name did not resolve.
const Invalid ID = -1

// Valid reports whether the id refers to a known detector.
func (id ID) Valid() bool {
	return id >= 0
}

// Mask returns the single-bit mask for the id, or 0 for an invalid id.
func (id ID) Mask() uint64 {
	if !id.Valid() || id >= 64 {
		return 0
	}
	return 1 << uint(id)
}

// Registry resolves a detector name to its id and bit mask.
// ok is false when the name is unknown.
type Registry interface {
	Resolve(name string) (id ID, mask uint64, ok bool)
	Name(id ID) string
}

// Names is the detector table in id order.
var Names = []string{
	"ITS", "TPC", "TRD", "TOF", "PHS", "CPV", "EMC", "HMP", "MFT",
	"MCH", "MID", "ZDC", "FT0", "FV0", "FDD", "TST", "CTP",
}

var upper = cases.Upper(language.Und)

// Normalize trims and upper-cases a detector name.
func Normalize(name string) string {
	return upper.String(strings.TrimSpace(name))
}

// StaticRegistry is a Registry over a fixed name table where the id is the
// table index.
type StaticRegistry struct {
	names []string
	ids   map[string]ID
}

// NewStaticRegistry builds a registry from names; the i-th name gets id i.
// Names are normalized, so lookups are case-insensitive.
func NewStaticRegistry(names []string) *StaticRegistry {
	r := &StaticRegistry{
		names: make([]string, len(names)),
		ids:   make(map[string]ID, len(names)),
	}
	for i, n := range names {
		norm := Normalize(n)
		r.names[i] = norm
		r.ids[norm] = ID(i)
	}
	return r
}

// Default returns a registry over Names.
func Default() *StaticRegistry {
	return NewStaticRegistry(Names)
}

// Resolve implements Registry.
func (r *StaticRegistry) Resolve(name string) (ID, uint64, bool) {
	id, ok := r.ids[Normalize(name)]
	if !ok {
		return Invalid, 0, false
	}
	return id, id.Mask(), true
}

// Name implements Registry. Unknown ids render as "?".
func (r *StaticRegistry) Name(id ID) string {
	if !id.Valid() || int(id) >= len(r.names) {
		return "?"
	}
	return r.names[id]
}

// MaskNames lists the names of the detectors whose bits are set in mask,
// in id order.
func MaskNames(r Registry, mask uint64) []string {
	var names []string
	for i := 0; i < 64; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		names = append(names, r.Name(ID(i)))
	}
	return names
}
