package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/ctprun/internal/cfgparse"
	"github.com/roach88/ctprun/internal/ctp"
	"github.com/roach88/ctprun/internal/detector"
	"github.com/roach88/ctprun/internal/store"
)

// Archive path keys used when no override is given.
const (
	DefaultConfigPath  = "CTP/Config/Config"
	DefaultScalersPath = "CTP/Calib/Scalers"
)

// DefaultRecentRuns is the default size of the finished-run cache.
const DefaultRecentRuns = 64

// Run is one live data-taking run.
type Run struct {
	Number  uint32
	Config  *ctp.Configuration
	Scalers *RunScalers
	Start   time.Time
	End     time.Time

	// seen is set when the run appears in a snapshot and cleared after each
	// observation. A run still unseen at the end of an observation is stopped.
	seen bool
}

// RunStatus is a read-only view of a live run.
type RunStatus struct {
	Number  uint32    `json:"run"`
	Start   time.Time `json:"start"`
	Seen    bool      `json:"seen"`
	Classes []int     `json:"classes"`
	Records int       `json:"records"`
}

// Finished describes a run that has been stopped.
type Finished struct {
	Number   uint32    `json:"run"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Records  int       `json:"records"`
	Archived bool      `json:"archived"`
	Error    string    `json:"error,omitempty"`
}

// Observation is the outcome of one counter snapshot.
type Observation struct {
	Timestamp float64  `json:"timestamp"`
	Updated   []uint32 `json:"updated"`
	Stopped   []uint32 `json:"stopped"`
}

// Tracker owns the live runs.
type Tracker struct {
	mu        sync.Mutex
	reg       detector.Registry
	archive   store.Writer
	clock     Clock
	positions map[string]int
	runs      map[uint32]*Run
	last      *Snapshot
	recent    *lru.Cache[uint32, Finished]

	configPath  string
	scalersPath string
	recentSize  int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPaths sets the archive path keys for configurations and scalers.
// Empty values keep the defaults.
func WithPaths(configPath, scalersPath string) Option {
	return func(t *Tracker) {
		if configPath != "" {
			t.configPath = configPath
		}
		if scalersPath != "" {
			t.scalersPath = scalersPath
		}
	}
}

// WithRecentRuns sets how many finished runs Recent remembers.
func WithRecentRuns(n int) Option {
	return func(t *Tracker) {
		t.recentSize = n
	}
}

// New creates a Tracker. The counter name to position map is built here
// and never changes afterwards.
func New(reg detector.Registry, archive store.Writer, clock Clock, opts ...Option) (*Tracker, error) {
	if len(ScalerNames) != NumCounters {
		return nil, fmt.Errorf("counter names: have %d, want %d", len(ScalerNames), NumCounters)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if archive == nil {
		archive = store.Nop{}
	}

	t := &Tracker{
		reg:         reg,
		archive:     archive,
		clock:       clock,
		positions:   make(map[string]int, NumCounters),
		runs:        make(map[uint32]*Run),
		configPath:  DefaultConfigPath,
		scalersPath: DefaultScalersPath,
		recentSize:  DefaultRecentRuns,
	}
	for _, opt := range opts {
		opt(t)
	}

	for i, name := range ScalerNames {
		if _, dup := t.positions[name]; dup {
			return nil, fmt.Errorf("counter name %q repeated", name)
		}
		t.positions[name] = i
	}

	cache, err := lru.New[uint32, Finished](t.recentSize)
	if err != nil {
		return nil, fmt.Errorf("recent runs cache: %w", err)
	}
	t.recent = cache
	return t, nil
}

// StartRun parses text with the inferred dialect and registers the run as
// live and seen. Returns the parse diagnostics.
func (t *Tracker) StartRun(ctx context.Context, run uint32, text string) ([]cfgparse.Diagnostic, error) {
	if run == 0 {
		return nil, &TrackerError{Code: ErrCodeInvalidRun, Message: "run number 0 marks an empty slot"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, live := t.runs[run]; live {
		slog.Error("run already live", "run", run)
		return nil, &TrackerError{Code: ErrCodeConflict, Message: "run already live", Run: run}
	}

	cfg, diags := cfgparse.ParseInferred(text, t.reg)
	if cfg.RunNumber != 0 && cfg.RunNumber != run {
		slog.Warn("configuration declares a different run", "run", run, "declared", cfg.RunNumber)
	}
	cfg.RunNumber = run

	t.runs[run] = &Run{
		Number:  run,
		Config:  cfg,
		Scalers: newRunScalers(run, cfg),
		Start:   t.clock.Now(),
		seen:    true,
	}
	slog.Info("run started", "run", run, "classes", len(cfg.Classes()), "diagnostics", len(diags))
	return diags, nil
}

// ObserveCounters applies one counter snapshot. Runs named in the run
// slots are refreshed; live runs named in none of them are stopped in
// ascending order. A malformed snapshot changes nothing.
func (t *Tracker) ObserveCounters(ctx context.Context, line string) (*Observation, error) {
	snap, err := ParseSnapshot(line)
	if err != nil {
		slog.Error("counter snapshot rejected", "error", err)
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = snap
	obs := &Observation{Timestamp: snap.Timestamp, Updated: []uint32{}, Stopped: []uint32{}}
	refreshed := make(map[uint32]bool)
	for slot, v := range snap.RunSlots() {
		if v == 0 || v > math.MaxUint32 {
			continue
		}
		num := uint32(v)
		r, ok := t.runs[num]
		if !ok {
			slog.Debug("slot names an untracked run", "slot", slot, "run", num)
			continue
		}
		if refreshed[num] {
			continue
		}
		refreshed[num] = true
		r.Scalers.record(snap)
		r.seen = true
		obs.Updated = append(obs.Updated, num)
	}

	var gone []uint32
	for num, r := range t.runs {
		if r.seen {
			r.seen = false
			continue
		}
		gone = append(gone, num)
	}
	slices.Sort(gone)
	for _, num := range gone {
		slog.Info("run absent from snapshot", "run", num, "timestamp", snap.Timestamp)
		t.stopLocked(ctx, num)
		obs.Stopped = append(obs.Stopped, num)
	}

	slog.Debug("counter snapshot applied",
		"timestamp", snap.Timestamp,
		"updated", len(obs.Updated),
		"stopped", len(obs.Stopped),
		"live", len(t.runs),
	)
	return obs, nil
}

// StopRun stops a live run explicitly.
func (t *Tracker) StopRun(ctx context.Context, run uint32) (Finished, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.runs[run]; !ok {
		slog.Warn("stop for unknown run", "run", run)
		return Finished{}, &TrackerError{Code: ErrCodeNotFound, Message: "run not live", Run: run}
	}
	return t.stopLocked(ctx, run), nil
}

// stopLocked stamps the end time, archives the run and removes it. The
// run is removed even when archiving fails. Caller holds t.mu.
func (t *Tracker) stopLocked(ctx context.Context, run uint32) Finished {
	r := t.runs[run]
	r.End = t.clock.Now()

	f := Finished{
		Number:  run,
		Start:   r.Start,
		End:     r.End,
		Records: len(r.Scalers.Records),
	}
	if err := t.persist(ctx, r); err != nil {
		slog.Error("run archive failed", "run", run, "error", err)
		f.Error = err.Error()
	} else {
		f.Archived = true
	}

	delete(t.runs, run)
	t.recent.Add(run, f)
	slog.Info("run stopped", "run", run, "archived", f.Archived, "duration", r.End.Sub(r.Start))
	return f
}

// persist writes the configuration and the scalers. Both writes are
// attempted; their errors are joined.
func (t *Tracker) persist(ctx context.Context, r *Run) error {
	meta := map[string]string{store.MetaRunNumber: strconv.FormatUint(uint64(r.Number), 10)}
	from, until := r.Start.UnixMilli(), r.End.UnixMilli()

	put := func(path string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		_, err = t.archive.Put(ctx, store.Entry{
			Path:       path,
			ValidFrom:  from,
			ValidUntil: until,
			Metadata:   maps.Clone(meta),
			Payload:    payload,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	}

	return errors.Join(
		put(t.configPath, r.Config),
		put(t.scalersPath, r.Scalers),
	)
}

// ActiveRuns returns the live run numbers in ascending order.
func (t *Tracker) ActiveRuns() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Sorted(maps.Keys(t.runs))
}

// Status reports on a live run.
func (t *Tracker) Status(run uint32) (RunStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.runs[run]
	if !ok {
		return RunStatus{}, false
	}
	return RunStatus{
		Number:  r.Number,
		Start:   r.Start,
		Seen:    r.seen,
		Classes: slices.Clone(r.Scalers.classes),
		Records: len(r.Scalers.Records),
	}, true
}

// Configuration returns the parsed configuration of a live run.
func (t *Tracker) Configuration(run uint32) (*ctp.Configuration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.runs[run]
	if !ok {
		return nil, false
	}
	return r.Config, true
}

// Recent returns the remembered finished runs, most recently stopped first.
func (t *Tracker) Recent() []Finished {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.recent.Values()
	slices.Reverse(out)
	return out
}

// FinishedRun looks up a remembered finished run.
func (t *Tracker) FinishedRun(run uint32) (Finished, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recent.Peek(run)
}

// CounterPosition returns the snapshot position of a named counter.
func (t *Tracker) CounterPosition(name string) (int, bool) {
	pos, ok := t.positions[name]
	return pos, ok
}

// Counter returns a named counter from the last accepted snapshot.
func (t *Tracker) Counter(name string) (uint64, bool) {
	pos, ok := t.positions[name]
	if !ok {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return 0, false
	}
	return t.last.Counters[pos], true
}
