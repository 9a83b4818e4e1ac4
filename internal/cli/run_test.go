package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ctprun/internal/store"
	"github.com/roach88/ctprun/internal/testutil"
	"github.com/roach88/ctprun/internal/tracker"
)

const testStartMillis = 1_700_000_000_000

// snapshotFeedLine builds a "scalers" feed line with the given run slots.
func snapshotFeedLine(ts string, runs ...uint64) string {
	values := make([]string, tracker.NumCounters)
	for i := range values {
		values[i] = "0"
	}
	for i, r := range runs {
		values[i] = fmt.Sprint(r)
	}
	return "scalers " + ts + " " + strings.Join(values, " ")
}

// runFeed drives runTracker directly so tests can inject a clock.
func runFeed(t *testing.T, opts *RunOptions, feed string, stdin string) (string, error) {
	t.Helper()
	if opts.RootOptions == nil {
		opts.RootOptions = &RootOptions{Format: "text"}
	}
	if opts.Clock == nil {
		opts.Clock = testutil.NewFixedClockMillis(testStartMillis)
	}
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetContext(context.Background())
	err := runTracker(opts, feed, cmd)
	return out.String(), err
}

func TestRun_FeedFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "archive.db")

	out, _, err := executeCommand(t, "run", "--db", dbPath, "testdata/feed.txt")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "run_feed", []byte(out))
}

func TestRun_ArchivesBothPaths(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "archive.db")
	_, err := runFeed(t, &RunOptions{Database: dbPath, StopAtEOF: true}, "testdata/feed.txt", "")
	require.NoError(t, err)

	archive, err := store.Open(dbPath)
	require.NoError(t, err)
	defer archive.Close()

	entries, err := archive.ListRun(context.Background(), 523457)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Ordered by path.
	assert.Equal(t, tracker.DefaultScalersPath, entries[0].Path)
	assert.Equal(t, tracker.DefaultConfigPath, entries[1].Path)
	for _, e := range entries {
		assert.Equal(t, int64(testStartMillis), e.ValidFrom)
		assert.Equal(t, int64(testStartMillis), e.ValidUntil)
	}

	cfgEntry, err := archive.Latest(context.Background(), tracker.DefaultConfigPath, testStartMillis)
	require.NoError(t, err)
	var payload struct {
		RunNumber uint32 `json:"run_number"`
	}
	require.NoError(t, json.Unmarshal(cfgEntry.Payload, &payload))
	assert.Contains(t, []uint32{523456, 523457}, payload.RunNumber)
}

func TestRun_Stdin(t *testing.T) {
	cfgPath, err := filepath.Abs("testdata/run3.cfg")
	require.NoError(t, err)

	feed := strings.Join([]string{
		"start 11 " + cfgPath,
		snapshotFeedLine("1.0", 11),
		snapshotFeedLine("2.0", 11),
	}, "\n")

	out, err := runFeed(t, &RunOptions{Backend: store.BackendNone, StopAtEOF: true}, "-", feed)
	require.NoError(t, err)
	assert.Contains(t, out, "Lines: 3\n")
	assert.Contains(t, out, " Run: 11 records:2 archived:true\n")
	assert.Contains(t, out, "Active runs: 0\n")
}

func TestRun_KeepRunsLiveAtEOF(t *testing.T) {
	cfgPath, err := filepath.Abs("testdata/run3.cfg")
	require.NoError(t, err)

	feed := "start 11 " + cfgPath + "\n" + snapshotFeedLine("1.0", 11) + "\n"

	out, err := runFeed(t, &RunOptions{Backend: store.BackendNone, StopAtEOF: false}, "-", feed)
	require.NoError(t, err)
	assert.Contains(t, out, "Finished runs: 0\n")
	assert.Contains(t, out, "Active runs: 1\n Run: 11\n")
}

func TestRun_LineErrorsAreCounted(t *testing.T) {
	cfgPath, err := filepath.Abs("testdata/run3.cfg")
	require.NoError(t, err)

	feed := strings.Join([]string{
		"pause 1",
		"start 11 " + cfgPath,
		"start 11 " + cfgPath,
		"scalers 1.0 1 2 3",
		"stop 99",
		"start 12 missing.cfg",
	}, "\n")

	out, err := runFeed(t, &RunOptions{Backend: store.BackendNone, StopAtEOF: true}, "-", feed)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "5 feed lines failed")

	assert.Contains(t, out, "Runs started: 1\n")
	assert.Contains(t, out, "Snapshots: 0\n")
	assert.Contains(t, out, "Errors: 5\n")
	assert.Contains(t, out, " Run: 11 records:0 archived:true\n")
}

func TestRun_JSONSummary(t *testing.T) {
	out, err := runFeed(t, &RunOptions{
		RootOptions: &RootOptions{Format: "json"},
		Backend:     store.BackendNone,
		StopAtEOF:   true,
	}, "testdata/feed.txt", "")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Started)
	require.Len(t, resp.Data.Finished, 2)
	assert.Equal(t, uint32(523457), resp.Data.Finished[0].Number)
	assert.Equal(t, uint32(523456), resp.Data.Finished[1].Number)
	assert.Empty(t, resp.Data.Active)
}

func TestRun_MissingFeed(t *testing.T) {
	_, err := runFeed(t, &RunOptions{Backend: store.BackendNone}, "testdata/nope.txt", "")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open feed")
}

func TestRun_UnknownBackend(t *testing.T) {
	_, err := runFeed(t, &RunOptions{Backend: "tape"}, "testdata/feed.txt", "")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open archive")
}

func TestRun_CancelledContextStopsReading(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(ctx)

	opts := &RunOptions{RootOptions: &RootOptions{Format: "text"}, Backend: store.BackendNone, StopAtEOF: true}
	require.NoError(t, runTracker(opts, "testdata/feed.txt", cmd))
	assert.Contains(t, out.String(), "Lines: 0\n")
}

func TestRunSummary_WriteToReportsErrors(t *testing.T) {
	s := &RunSummary{Finished: []tracker.Finished{{Number: 3, Records: 1, Error: "archive down"}}}
	var buf bytes.Buffer
	n, err := s.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), " Run: 3 records:1 archived:false error:archive down\n")
}
