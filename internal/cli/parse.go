package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ctprun/internal/cfgparse"
	"github.com/roach88/ctprun/internal/detector"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Dialect string
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <config-file>",
		Short: "Parse a trigger configuration and print it",
		Long: `Parse a trigger configuration file and print the resulting model.

The explicit dialect (PARTITION:/INPUTS:/... headers) stops at the first
structural error. The inferred dialect always produces a configuration and
reports skipped lines as diagnostics. Use "-" to read from stdin.

Example:
  ctprun parse --dialect explicit physics.cfg
  ctprun parse --format json run3.cfg`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", string(cfgparse.DialectInferred), "configuration dialect (explicit|inferred)")

	return cmd
}

// parseOutput renders a parse result as text.
type parseOutput struct {
	*cfgparse.Result
}

func (p parseOutput) WriteTo(w io.Writer) (int64, error) {
	n, err := p.Config.WriteTo(w)
	if err != nil || len(p.Diagnostics) == 0 {
		return n, err
	}
	m, err := fmt.Fprintf(w, "Diagnostics: %d\n", len(p.Diagnostics))
	n += int64(m)
	if err != nil {
		return n, err
	}
	for _, d := range p.Diagnostics {
		m, err = fmt.Fprintf(w, " %s\n", d)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func runParse(opts *ParseOptions, path string, cmd *cobra.Command) error {
	setupLogging(cmd.ErrOrStderr(), slog.LevelWarn, opts.Verbose)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	dialect, err := cfgparse.ParseDialect(opts.Dialect)
	if err != nil {
		_ = formatter.Error(ErrCodeUsage, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid dialect", err)
	}

	text, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(cfgparse.ErrRead, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read configuration", err)
	}
	formatter.VerboseLog("Parsing %s (%d bytes) as %s", path, len(text), dialect)

	res, err := cfgparse.Parse(dialect, text, detector.Default())
	if err != nil {
		var pe *cfgparse.ParseError
		if errors.As(err, &pe) {
			_ = formatter.Error(pe.Code, pe.Error(), pe)
		} else {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		}
		return WrapExitError(ExitFailure, "parse failed", err)
	}

	return formatter.Success(parseOutput{res})
}

// readInput reads a whole file, or stdin for "-".
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		return cfgparse.ReadText(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return cfgparse.ReadText(f)
}
