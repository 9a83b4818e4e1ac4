package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/ctprun/internal/store"
)

// ArchiveOptions holds flags for the archive commands.
type ArchiveOptions struct {
	*RootOptions
	Database string
	Backend  string
	Path     string
	Run      uint32
}

// runLister is implemented by archives that index entries by run.
type runLister interface {
	ListRun(ctx context.Context, run uint32) ([]store.Entry, error)
}

// NewArchiveCommand creates the archive command group.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived run configurations and scalers",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite archive (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "archive backend: sqlite|s3 (overrides config)")

	cmd.AddCommand(newArchiveListCommand(opts))
	cmd.AddCommand(newArchiveLatestCommand(opts))
	return cmd
}

func newArchiveListCommand(opts *ArchiveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived entries under a path or for a run",
		Long: `List archived entries, oldest validity first.

With only --run, every entry of that run is listed across paths (SQLite
backend only). With --path, entries under the path are listed and --run
filters them.

Example:
  ctprun archive list --db ./ctprun.db --path CTP/Config/Config
  ctprun archive list --db ./ctprun.db --run 523456`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveList(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Path, "path", "", "archive path to list")
	cmd.Flags().Uint32Var(&opts.Run, "run", 0, "only entries of this run")
	return cmd
}

func newArchiveLatestCommand(opts *ArchiveOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "latest <path> <time-ms>",
		Short: "Print the newest entry under path valid at a time",
		Long: `Print the newest entry under path whose validity contains time-ms.
The payload is written as stored.

Example:
  ctprun archive latest --db ./ctprun.db CTP/Config/Config 1700000000000`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveLatest(opts, args[0], args[1], cmd)
		},
	}
}

// openReader opens the configured archive for reading.
func openReader(opts *ArchiveOptions, cmd *cobra.Command, formatter *OutputFormatter) (store.Archive, error) {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeUsage, err.Error(), nil)
		return nil, err
	}
	storeOpts := cfg.StoreOptions()
	if opts.Backend != "" {
		storeOpts.Backend = opts.Backend
	}
	if opts.Database != "" {
		storeOpts.SQLitePath = opts.Database
	}
	if storeOpts.Backend == store.BackendNone {
		err := errors.New("archive backend \"none\" has nothing to read")
		_ = formatter.Error(ErrCodeUsage, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "invalid backend", err)
	}
	archive, err := store.OpenArchive(storeOpts)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	return archive, nil
}

// entryList renders entries as a table.
type entryList []store.Entry

func (l entryList) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tRUN\tVALID FROM\tVALID UNTIL")
	for _, e := range l {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", e.ID, e.Path, e.RunNumber(), e.ValidFrom, e.ValidUntil)
	}
	if err := tw.Flush(); err != nil {
		return cw.n, err
	}
	fmt.Fprintf(cw, "%d entries\n", len(l))
	return cw.n, cw.err
}

func runArchiveList(opts *ArchiveOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if opts.Path == "" && opts.Run == 0 {
		err := errors.New("one of --path or --run is required")
		_ = formatter.Error(ErrCodeUsage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}

	archive, err := openReader(opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer archive.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var entries []store.Entry
	if opts.Path == "" {
		rl, ok := archive.(runLister)
		if !ok {
			err := errors.New("this backend cannot list by run; pass --path")
			_ = formatter.Error(ErrCodeUsage, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		entries, err = rl.ListRun(ctx, opts.Run)
	} else {
		entries, err = archive.List(ctx, opts.Path)
		if err == nil && opts.Run != 0 {
			entries = filterRun(entries, opts.Run)
		}
	}
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list archive", err)
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	return formatter.Success(entryList(entries))
}

func filterRun(entries []store.Entry, run uint32) []store.Entry {
	out := make([]store.Entry, 0, len(entries))
	for _, e := range entries {
		if e.RunNumber() == run {
			out = append(out, e)
		}
	}
	return out
}

// latestEntry is an entry with its payload, for output.
type latestEntry struct {
	store.Entry
	Payload string `json:"payload"`
}

func (l latestEntry) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	fmt.Fprintf(cw, "Entry: %s\n", l.ID)
	fmt.Fprintf(cw, " Path: %s\n", l.Path)
	fmt.Fprintf(cw, " Run: %d\n", l.RunNumber())
	fmt.Fprintf(cw, " Valid: %d..%d\n", l.ValidFrom, l.ValidUntil)
	fmt.Fprintln(cw, l.Payload)
	return cw.n, cw.err
}

func runArchiveLatest(opts *ArchiveOptions, path, at string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ms, err := strconv.ParseInt(at, 10, 64)
	if err != nil {
		_ = formatter.Error(ErrCodeUsage, fmt.Sprintf("bad time %q", at), nil)
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}

	archive, err := openReader(opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer archive.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := archive.Latest(ctx, path, ms)
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no entry under %s valid at %d", path, ms), nil)
		return WrapExitError(ExitFailure, "entry not found", err)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read archive", err)
	}
	return formatter.Success(latestEntry{Entry: *e, Payload: string(e.Payload)})
}

var _ runLister = (*store.SQLiteArchive)(nil)
