package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/ctprun/internal/detector"
	"github.com/roach88/ctprun/internal/store"
	"github.com/roach88/ctprun/internal/tracker"
)

// maxFeedLine bounds a single feed line. A snapshot is about 400 counters.
const maxFeedLine = 1 << 20

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database  string
	Backend   string
	StopAtEOF bool

	// Registry and Clock override the tracker's collaborators (for testing).
	// Nil means detector.Default() and the system clock.
	Registry detector.Registry
	Clock    tracker.Clock
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [feed-file]",
		Short: "Track runs from a feed of start, scalers and stop lines",
		Long: `Follow data-taking runs through a feed and archive each run when it ends.

Each feed line is one of:
  start <run> <config-file>   parse the run's configuration and begin tracking
  scalers <timestamp> <n>...  apply one counter snapshot
  stop <run>                  stop a run explicitly

A run missing from the run slots of a snapshot is stopped and archived.
Config file paths are relative to the feed file. Reads stdin when the feed
is "-" or omitted.

Example:
  ctprun run --db ./ctprun.db feed.txt
  tail -f feed.txt | ctprun run --backend s3`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			feed := "-"
			if len(args) == 1 {
				feed = args[0]
			}
			return runTracker(opts, feed, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive (overrides config)")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "archive backend: sqlite|s3|none (overrides config)")
	cmd.Flags().BoolVar(&opts.StopAtEOF, "stop-at-eof", true, "stop and archive runs still live at end of feed")

	return cmd
}

// RunSummary is the outcome of processing a feed.
type RunSummary struct {
	Lines     int                `json:"lines"`
	Started   int                `json:"started"`
	Snapshots int                `json:"snapshots"`
	Errors    int                `json:"errors"`
	Finished  []tracker.Finished `json:"finished"`
	Active    []uint32           `json:"active"`
}

// WriteTo renders the summary as text. Times are left out so the output
// is stable for a given feed.
func (s *RunSummary) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	fmt.Fprintf(cw, "Lines: %d\n", s.Lines)
	fmt.Fprintf(cw, "Runs started: %d\n", s.Started)
	fmt.Fprintf(cw, "Snapshots: %d\n", s.Snapshots)
	fmt.Fprintf(cw, "Errors: %d\n", s.Errors)
	fmt.Fprintf(cw, "Finished runs: %d\n", len(s.Finished))
	for _, f := range s.Finished {
		fmt.Fprintf(cw, " Run: %d records:%d archived:%t", f.Number, f.Records, f.Archived)
		if f.Error != "" {
			fmt.Fprintf(cw, " error:%s", f.Error)
		}
		fmt.Fprintln(cw)
	}
	fmt.Fprintf(cw, "Active runs: %d\n", len(s.Active))
	for _, run := range s.Active {
		fmt.Fprintf(cw, " Run: %d\n", run)
	}
	return cw.n, cw.err
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

func runTracker(opts *RunOptions, feed string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeUsage, err.Error(), nil)
		return err
	}

	storeOpts := cfg.StoreOptions()
	if opts.Backend != "" {
		storeOpts.Backend = opts.Backend
	}
	if opts.Database != "" {
		storeOpts.SQLitePath = opts.Database
	}
	slog.Info("opening archive", "backend", storeOpts.Backend)
	archive, err := store.OpenArchive(storeOpts)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer func() {
		if closeErr := archive.Close(); closeErr != nil {
			slog.Error("error closing archive", "error", closeErr)
		}
	}()

	reg := opts.Registry
	if reg == nil {
		reg = detector.Default()
	}
	tr, err := tracker.New(reg, archive, opts.Clock, cfg.TrackerOptions()...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create tracker", err)
	}

	in := cmd.InOrStdin()
	baseDir := "."
	if feed != "-" {
		f, err := os.Open(feed)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open feed", err)
		}
		defer f.Close()
		in = f
		baseDir = filepath.Dir(feed)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	summary := &RunSummary{Finished: []tracker.Finished{}}
	fp := &feedProcessor{tracker: tr, baseDir: baseDir, summary: summary}

	slog.Info("tracker started", "feed", feed)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxFeedLine)
	n := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		n++
		if err := fp.line(ctx, n, scanner.Text()); err != nil {
			slog.Error("feed line failed", "line", n, "error", err)
			summary.Errors++
		}
	}
	summary.Lines = n
	if err := scanner.Err(); err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read feed", err)
	}

	if opts.StopAtEOF {
		for _, run := range tr.ActiveRuns() {
			// Archive the remaining runs even after cancellation.
			f, err := tr.StopRun(context.WithoutCancel(ctx), run)
			if err != nil {
				slog.Error("stop at end of feed", "run", run, "error", err)
				continue
			}
			summary.Finished = append(summary.Finished, f)
		}
	}
	summary.Active = tr.ActiveRuns()
	slog.Info("tracker stopped", "lines", summary.Lines, "finished", len(summary.Finished), "errors", summary.Errors)

	if err := formatter.Success(summary); err != nil {
		return err
	}
	if summary.Errors > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d feed lines failed", summary.Errors))
	}
	return nil
}

// feedProcessor applies feed commands to a tracker.
type feedProcessor struct {
	tracker *tracker.Tracker
	baseDir string
	summary *RunSummary
}

func (p *feedProcessor) line(ctx context.Context, n int, text string) error {
	fc, err := ParseFeedLine(n, text)
	if err != nil {
		return err
	}

	switch fc.Kind {
	case FeedStart:
		path := fc.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.baseDir, path)
		}
		cfgText, err := readInput(path, nil)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		diags, err := p.tracker.StartRun(ctx, fc.Run, cfgText)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		for _, d := range diags {
			slog.Warn("run configuration", "run", fc.Run, "diagnostic", d.String())
		}
		p.summary.Started++

	case FeedScalers:
		obs, err := p.tracker.ObserveCounters(ctx, fc.Snapshot)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		p.summary.Snapshots++
		for _, run := range obs.Stopped {
			if f, ok := p.tracker.FinishedRun(run); ok {
				p.summary.Finished = append(p.summary.Finished, f)
			}
		}

	case FeedStop:
		f, err := p.tracker.StopRun(ctx, fc.Run)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		p.summary.Finished = append(p.summary.Finished, f)
	}
	return nil
}
