package cfgparse

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/ctprun/internal/ctp"
	"github.com/roach88/ctprun/internal/detector"
)

// Level is the inferred dialect's section state, carried across lines.
type Level int

const (
	LevelRun Level = iota
	LevelMasks
	LevelGens
	LevelLTG
	LevelLTGItems
	LevelCluster
	LevelClass
	LevelUnknown
)

// InitialLevel is the level before the first line.
const InitialLevel = LevelMasks

func (l Level) String() string {
	switch l {
	case LevelRun:
		return "RUN"
	case LevelMasks:
		return "MASKS"
	case LevelGens:
		return "GENS"
	case LevelLTG:
		return "LTG"
	case LevelLTGItems:
		return "LTGITEMS"
	case LevelCluster:
		return "CLUSTER"
	case LevelClass:
		return "CLASS"
	default:
		return "UNKNOWN"
	}
}

// EffectKind says which field of an Effect is populated.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectRunNumber
	EffectBCMask
	EffectGenerator
	EffectDetector
	EffectMode
	EffectCluster
	EffectClass
)

// Effect is what a single line contributes to the configuration.
type Effect struct {
	Kind      EffectKind
	RunNumber uint32
	BCMask    *ctp.BCMask
	Generator ctp.Generator
	Detector  *ctp.Detector
	Mode      string
	Cluster   *ctp.Cluster
	Class     *PendingClass

	// Problems are recoverable issues found on the line. Unknown is set when
	// no section could be inferred at all.
	Problems []string
	Unknown  bool
}

func (e *Effect) problem(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// PendingClass is a class line whose descriptor and cluster have not been
// linked yet. Cluster is filled in when the effect is applied: it is the
// cluster the class line followed.
type PendingClass struct {
	Index   uint64
	Fields  []string
	Cluster *ctp.Cluster
	Line    int
	Content string
}

// InferLevel picks the level for a line from its keywords. Precedence:
// "run", generator name as first token, "bcm", "LTG", "cluster". Lines
// without a keyword continue an LTGITEMS or CLASS block and are UNKNOWN
// otherwise.
func InferLevel(current Level, line string, tokens []string) Level {
	switch {
	case strings.Contains(line, "run"):
		return LevelRun
	case len(tokens) > 0 && ctp.IsGenerator(tokens[0]):
		return LevelGens
	case strings.Contains(line, "bcm"):
		return LevelMasks
	case strings.Contains(line, "LTG"):
		return LevelLTG
	case strings.Contains(line, "cluster"):
		return LevelCluster
	case current == LevelLTGItems || current == LevelClass:
		return current
	default:
		return LevelUnknown
	}
}

// Step consumes one trimmed, non-blank, non-comment line. It returns the
// level to carry to the next line and the line's effect. Step only reads
// the registry; it never touches a configuration.
//
// A CLUSTER or CLASS line whose leading number does not parse is dropped
// and the incoming level is returned unchanged.
func Step(current Level, line string, reg detector.Registry) (Level, Effect) {
	tokens := Tokenize(line)
	var eff Effect
	if len(tokens) == 0 {
		return current, eff
	}

	level := InferLevel(current, line, tokens)
	switch level {
	case LevelRun:
		if len(tokens) < 2 {
			eff.problem("run line without run number")
			break
		}
		run, err := strconv.ParseUint(tokens[1], 10, 32)
		if err != nil {
			eff.problem("bad run number %q", tokens[1])
			break
		}
		eff.Kind = EffectRunNumber
		eff.RunNumber = uint32(run)

	case LevelMasks:
		if len(tokens) < 2 {
			eff.problem("bc mask line without name")
			break
		}
		eff.Kind = EffectBCMask
		eff.BCMask = parseBCMask(tokens, &eff)

	case LevelGens:
		if len(tokens) < 2 {
			eff.problem("generator %q without frequency", tokens[0])
			break
		}
		eff.Kind = EffectGenerator
		eff.Generator = ctp.Generator{Name: tokens[0], Frequency: tokens[1]}

	case LevelLTG:
		var name string
		if len(tokens) > 1 {
			name = detector.Normalize(tokens[1])
		}
		det := &ctp.Detector{ID: detector.Invalid, Name: name}
		if id, _, ok := reg.Resolve(name); ok {
			det.ID = id
			det.Name = reg.Name(id)
		} else {
			eff.problem("unknown detector %q", name)
		}
		eff.Kind = EffectDetector
		eff.Detector = det
		level = LevelLTGItems

	case LevelLTGItems:
		if len(tokens) != 1 {
			eff.problem("LTG item with %d tokens ignored", len(tokens))
			break
		}
		eff.Kind = EffectMode
		eff.Mode = tokens[0]

	case LevelCluster:
		if len(tokens) < 3 {
			eff.problem("cluster line needs mask, keyword and name")
			return current, eff
		}
		hw, err := strconv.ParseUint(tokens[0], 10, 64)
		if err != nil {
			eff.problem("bad cluster hardware mask %q", tokens[0])
			return current, eff
		}
		cl := &ctp.Cluster{Name: tokens[2], HWMask: hw}
		for _, tok := range tokens[3:] {
			name := detector.Normalize(tok)
			id, mask, ok := reg.Resolve(name)
			if !ok {
				eff.problem("unknown detector %q in cluster %q", name, cl.Name)
				continue
			}
			cl.DetectorMask |= mask
			cl.Detectors = append(cl.Detectors, reg.Name(id))
		}
		eff.Kind = EffectCluster
		eff.Cluster = cl
		level = LevelClass

	case LevelClass:
		index, err := strconv.ParseUint(tokens[0], 10, 64)
		if err != nil {
			eff.problem("bad class index %q", tokens[0])
			return current, eff
		}
		if index >= ctp.NumClasses {
			eff.problem("class index %d >= %d", index, ctp.NumClasses)
			return current, eff
		}
		eff.Kind = EffectClass
		eff.Class = &PendingClass{Index: index, Fields: tokens[1:]}

	default:
		eff.Unknown = true
		eff.problem("unknown line at level %s", current)
	}
	return level, eff
}

// parseBCMask reads "<keyword> <name> <bc>...". A compact L/H encoding in
// the first position is recognized but not decoded.
func parseBCMask(tokens []string, eff *Effect) *ctp.BCMask {
	m := ctp.NewBCMask(tokens[1])
	if len(tokens) < 3 {
		return m
	}
	if strings.ContainsAny(tokens[2], "LH") {
		// TODO: decode the compact L/H bunch notation once its grammar is fixed.
		eff.problem("compact bc notation not decoded for mask %q", m.Name)
		return m
	}
	for _, tok := range tokens[2:] {
		bc, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			eff.problem("bad bunch crossing %q", tok)
			continue
		}
		if err := m.Set(uint32(bc)); err != nil {
			eff.problem("%v", err)
		}
	}
	return m
}

// ParseInferred parses the inferred-section dialect. It never fails: every
// problem is logged, returned as a Diagnostic, and the offending token or
// line is skipped. Classes are linked after the last line (see Link).
func ParseInferred(text string, reg detector.Registry) (*ctp.Configuration, []Diagnostic) {
	cfg := ctp.New()
	var diags []Diagnostic
	var pending []*PendingClass

	report := func(n int, line string, sev Severity, msg string) {
		diags = append(diags, Diagnostic{Line: n, Content: line, Severity: sev, Message: msg})
		if sev == SeverityError {
			slog.Error("configuration line", "line", n, "content", line, "problem", msg)
		} else {
			slog.Warn("configuration line", "line", n, "content", line, "problem", msg)
		}
	}

	level := InitialLevel
	for i, raw := range lines(text) {
		n := i + 1
		line := Trim(raw)
		if skippable(line) {
			continue
		}

		next, eff := Step(level, line, reg)
		slog.Debug("configuration step", "line", n, "level", level, "next", next, "effect", eff.Kind)
		level = next

		sev := SeverityWarning
		if eff.Unknown {
			sev = SeverityError
		}
		for _, msg := range eff.Problems {
			report(n, line, sev, msg)
		}
		if msg := apply(cfg, &eff); msg != "" {
			report(n, line, SeverityWarning, msg)
		}
		if eff.Class != nil {
			eff.Class.Line = n
			eff.Class.Content = line
			pending = append(pending, eff.Class)
		}
	}

	for _, d := range Link(cfg, pending) {
		report(d.Line, d.Content, d.Severity, d.Message)
	}

	slog.Info("configuration parsed",
		"dialect", "inferred",
		"run", cfg.RunNumber,
		"masks", len(cfg.BCMasks()),
		"detectors", len(cfg.Detectors()),
		"clusters", len(cfg.Clusters()),
		"classes", len(cfg.Classes()),
		"diagnostics", len(diags),
	)
	return cfg, diags
}

// apply folds an effect into cfg. It returns a non-empty message when the
// effect could not be applied.
func apply(cfg *ctp.Configuration, eff *Effect) string {
	switch eff.Kind {
	case EffectRunNumber:
		cfg.RunNumber = eff.RunNumber
	case EffectBCMask:
		if err := cfg.AddBCMask(eff.BCMask); err != nil {
			return err.Error()
		}
	case EffectGenerator:
		cfg.AddGenerator(eff.Generator)
	case EffectDetector:
		cfg.AddDetector(eff.Detector)
	case EffectMode:
		det := cfg.LastDetector()
		if det == nil {
			return "LTG item without a detector"
		}
		det.Mode = eff.Mode
	case EffectCluster:
		if err := cfg.AddCluster(eff.Cluster); err != nil {
			return err.Error()
		}
	case EffectClass:
		eff.Class.Cluster = cfg.LastCluster()
	}
	return ""
}
