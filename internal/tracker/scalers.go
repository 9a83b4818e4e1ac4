package tracker

import (
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/ctprun/internal/cfgparse"
	"github.com/roach88/ctprun/internal/ctp"
)

// NumRunSlots is the number of leading counters that carry active run
// numbers.
const NumRunSlots = 16

// classCounterKinds are the per-class counters, in feed order.
var classCounterKinds = [...]string{"lmb", "lma", "l0b", "l0a", "l1b", "l1a"}

// NumCounters is the number of counters in a snapshot, excluding the
// leading timestamp.
const NumCounters = NumRunSlots + len(classCounterKinds)*ctp.NumClasses

// ScalerNames names every counter position: runn0..runn15, then
// lmb0 lma0 l0b0 l0a0 l1b0 l1a0 lmb1 ... l1a63.
var ScalerNames = buildScalerNames()

func buildScalerNames() []string {
	names := make([]string, 0, NumCounters)
	for i := 0; i < NumRunSlots; i++ {
		names = append(names, fmt.Sprintf("runn%d", i))
	}
	for c := 0; c < ctp.NumClasses; c++ {
		for _, kind := range classCounterKinds {
			names = append(names, fmt.Sprintf("%s%d", kind, c))
		}
	}
	return names
}

// classBase is the position of the first counter of class index.
func classBase(index int) int {
	return NumRunSlots + index*len(classCounterKinds)
}

// Snapshot is one parsed line of the counter feed.
type Snapshot struct {
	Timestamp float64
	Counters  []uint64
}

// ParseSnapshot parses "<timestamp> <counter_0> ... <counter_N-1>". Any
// token count other than NumCounters+1 is rejected.
func ParseSnapshot(line string) (*Snapshot, error) {
	tokens := cfgparse.Tokenize(line)
	if len(tokens) != NumCounters+1 {
		return nil, &TrackerError{
			Code:    ErrCodeBadSnapshot,
			Message: fmt.Sprintf("got %d tokens, expected %d", len(tokens), NumCounters+1),
		}
	}
	ts, err := strconv.ParseFloat(tokens[0], 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return nil, &TrackerError{Code: ErrCodeBadSnapshot, Message: fmt.Sprintf("bad timestamp %q", tokens[0])}
	}
	s := &Snapshot{Timestamp: ts, Counters: make([]uint64, NumCounters)}
	for i, tok := range tokens[1:] {
		v, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return nil, &TrackerError{
				Code:    ErrCodeBadSnapshot,
				Message: fmt.Sprintf("counter %s: bad value %q", ScalerNames[i], tok),
			}
		}
		s.Counters[i] = v
	}
	return s, nil
}

// RunSlots returns the active-run block of the snapshot.
func (s *Snapshot) RunSlots() []uint64 {
	return s.Counters[:NumRunSlots]
}

// ClassCounters are the six counters of one trigger class.
type ClassCounters struct {
	Index int    `json:"index"`
	LMB   uint64 `json:"lmb"`
	LMA   uint64 `json:"lma"`
	L0B   uint64 `json:"l0b"`
	L0A   uint64 `json:"l0a"`
	L1B   uint64 `json:"l1b"`
	L1A   uint64 `json:"l1a"`
}

// Class extracts the counters of class index.
func (s *Snapshot) Class(index int) ClassCounters {
	c := s.Counters[classBase(index):]
	return ClassCounters{
		Index: index,
		LMB:   c[0],
		LMA:   c[1],
		L0B:   c[2],
		L0A:   c[3],
		L1B:   c[4],
		L1A:   c[5],
	}
}

// ScalerRecord is one observation of a run's classes.
type ScalerRecord struct {
	Timestamp float64         `json:"timestamp"`
	Classes   []ClassCounters `json:"classes"`
}

// RunScalers accumulates the counters of one run's classes over its life.
type RunScalers struct {
	RunNumber uint32         `json:"run_number"`
	ClassMask uint64         `json:"class_mask"`
	Records   []ScalerRecord `json:"records"`

	classes []int
}

func newRunScalers(run uint32, cfg *ctp.Configuration) *RunScalers {
	return &RunScalers{
		RunNumber: run,
		ClassMask: cfg.TriggerClassMask(),
		Records:   []ScalerRecord{},
		classes:   cfg.TriggerClassList(),
	}
}

// record appends the run's classes from s.
func (rs *RunScalers) record(s *Snapshot) {
	rec := ScalerRecord{Timestamp: s.Timestamp, Classes: make([]ClassCounters, 0, len(rs.classes))}
	for _, idx := range rs.classes {
		rec.Classes = append(rec.Classes, s.Class(idx))
	}
	rs.Records = append(rs.Records, rec)
}
