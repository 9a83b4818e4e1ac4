package cfgparse

import (
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"strconv"
	"strings"

	"github.com/roach88/ctprun/internal/ctp"
	"github.com/roach88/ctprun/internal/detector"
)

// section is the explicit dialect's parsing mode.
type section int

const (
	sectionNone section = iota
	sectionInputs
	sectionDescriptors
	sectionClusters
	sectionClasses
)

func (s section) String() string {
	switch s {
	case sectionInputs:
		return "INPUTS"
	case sectionDescriptors:
		return "DESCRIPTORS"
	case sectionClusters:
		return "CLUSTERS"
	case sectionClasses:
		return "CLASSES"
	default:
		return "NONE"
	}
}

// Header tokens, matched anywhere in a line in this order.
const (
	headerPartition   = "PARTITION:"
	headerVersion     = "VERSION:"
	headerInputs      = "INPUTS:"
	headerDescriptors = "DESCRIPTORS:"
	headerClusters    = "CLUSTERS:"
	headerClasses     = "CLASSES:"
)

var sectionHeaders = []struct {
	token   string
	section section
}{
	{headerInputs, sectionInputs},
	{headerDescriptors, sectionDescriptors},
	{headerClusters, sectionClusters},
	{headerClasses, sectionClasses},
}

type explicitParser struct {
	reg     detector.Registry
	cfg     *ctp.Configuration
	section section
}

// ParseExplicit parses the explicit-section dialect.
//
// Layout:
//
//	PARTITION: <name>
//	VERSION: <version>
//	INPUTS:
//	<name> <detector> <level> <mask>
//	DESCRIPTORS:
//	<name> <input>...
//	CLUSTERS:
//	<name> <detector>...
//	CLASSES:
//	<name> <class-mask> <descriptor> <cluster>
//
// Masks accept decimal, 0x hex and 0b binary. Unknown cluster detectors are
// logged and left out of the cluster mask; every other violation stops the
// parse with a *ParseError.
func ParseExplicit(text string, reg detector.Registry) (*ctp.Configuration, error) {
	p := &explicitParser{reg: reg, cfg: ctp.New()}
	slog.Debug("parsing explicit configuration")
	for i, raw := range lines(text) {
		if err := p.line(i+1, Trim(raw)); err != nil {
			return nil, err
		}
	}
	slog.Info("configuration parsed",
		"dialect", "explicit",
		"partition", p.cfg.Name,
		"inputs", len(p.cfg.Inputs()),
		"descriptors", len(p.cfg.Descriptors()),
		"clusters", len(p.cfg.Clusters()),
		"classes", len(p.cfg.Classes()),
	)
	return p.cfg, nil
}

func (p *explicitParser) line(n int, line string) error {
	if skippable(line) {
		return nil
	}
	if i := strings.Index(line, headerPartition); i >= 0 {
		p.cfg.Name = Trim(line[:i] + line[i+len(headerPartition):])
		return nil
	}
	if i := strings.Index(line, headerVersion); i >= 0 {
		p.cfg.Version = Trim(line[:i] + line[i+len(headerVersion):])
		return nil
	}
	for _, h := range sectionHeaders {
		if strings.Contains(line, h.token) {
			p.section = h.section
			return nil
		}
	}

	tokens := Tokenize(line)
	fail := func(code, format string, args ...any) error {
		return &ParseError{Code: code, Line: n, Content: line, Message: p.section.String() + ": " + fmt.Sprintf(format, args...)}
	}

	switch p.section {
	case sectionInputs:
		return p.input(tokens, fail)
	case sectionDescriptors:
		return p.descriptor(tokens, fail)
	case sectionClusters:
		return p.cluster(tokens, n, fail)
	case sectionClasses:
		return p.class(tokens, fail)
	default:
		return fail(ErrLineOutsideSection, "line before any section header")
	}
}

type failFunc func(code, format string, args ...any) error

func (p *explicitParser) input(tokens []string, fail failFunc) error {
	if len(tokens) != 4 {
		return fail(ErrFieldCount, "expected 4 fields (name detector level mask), got %d", len(tokens))
	}
	id, _, ok := p.reg.Resolve(tokens[1])
	if !ok {
		return fail(ErrUnknownDetector, "detector %q not in registry", tokens[1])
	}
	mask, err := strconv.ParseUint(tokens[3], 0, 64)
	if err != nil {
		return fail(ErrBadNumber, "bad input mask %q", tokens[3])
	}
	inp := &ctp.Input{
		Name:         tokens[0],
		Detector:     id,
		DetectorName: p.reg.Name(id),
		Level:        tokens[2],
		Mask:         mask,
	}
	if err := p.cfg.AddInput(inp); err != nil {
		return fail(ErrDuplicate, "%v", err)
	}
	return nil
}

func (p *explicitParser) descriptor(tokens []string, fail failFunc) error {
	desc := &ctp.Descriptor{Name: tokens[0]}
	for _, name := range tokens[1:] {
		inp, ok := p.cfg.InputByName(name)
		if !ok {
			return fail(ErrUnknownInput, "input %q not defined in INPUTS", name)
		}
		desc.Inputs = append(desc.Inputs, inp)
	}
	if err := p.cfg.AddDescriptor(desc); err != nil {
		return fail(ErrDuplicate, "%v", err)
	}
	return nil
}

func (p *explicitParser) cluster(tokens []string, n int, fail failFunc) error {
	cl := &ctp.Cluster{Name: tokens[0]}
	for _, name := range tokens[1:] {
		id, mask, ok := p.reg.Resolve(name)
		if !ok {
			slog.Warn("unknown detector in cluster", "line", n, "cluster", cl.Name, "detector", name)
			continue
		}
		cl.DetectorMask |= mask
		cl.Detectors = append(cl.Detectors, p.reg.Name(id))
	}
	if err := p.cfg.AddCluster(cl); err != nil {
		return fail(ErrDuplicate, "%v", err)
	}
	return nil
}

func (p *explicitParser) class(tokens []string, fail failFunc) error {
	if len(tokens) != 4 {
		return fail(ErrFieldCount, "expected 4 fields (name mask descriptor cluster), got %d", len(tokens))
	}
	mask, err := strconv.ParseUint(tokens[1], 10, 64)
	if err != nil {
		return fail(ErrBadNumber, "bad class mask %q", tokens[1])
	}
	if bits.OnesCount64(mask) != 1 {
		return fail(ErrBadClassMask, "class mask %d must select exactly one class bit", mask)
	}
	desc, ok := p.cfg.DescriptorByName(tokens[2])
	if !ok {
		return fail(ErrUnknownDescriptor, "descriptor %q not defined", tokens[2])
	}
	cl, ok := p.cfg.ClusterByName(tokens[3])
	if !ok {
		return fail(ErrUnknownCluster, "cluster %q not defined", tokens[3])
	}
	cls := &ctp.Class{Name: tokens[0], Mask: mask, Descriptor: desc, Cluster: cl}
	if err := p.cfg.AddClass(cls); err != nil {
		if errors.Is(err, ctp.ErrDuplicateName) {
			return fail(ErrDuplicate, "%v", err)
		}
		return fail(ErrBadClassMask, "%v", err)
	}
	return nil
}
