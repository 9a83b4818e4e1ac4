package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestParse_ExplicitText(t *testing.T) {
	out, _, err := executeCommand(t, "parse", "--dialect", "explicit", "testdata/physics.cfg")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "parse_explicit", []byte(out))
}

func TestParse_InferredText(t *testing.T) {
	out, stderr, err := executeCommand(t, "parse", "testdata/run3.cfg")
	require.NoError(t, err)

	newGoldie(t).Assert(t, "parse_inferred", []byte(out))
	assert.Contains(t, stderr, "unknown detector", "warnings are logged at the default level")
}

func TestParse_InferredJSON(t *testing.T) {
	out, _, err := executeCommand(t, "--format", "json", "parse", "testdata/run3.cfg")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Configuration struct {
				RunNumber uint32 `json:"run_number"`
				Clusters  []struct {
					Name         string `json:"name"`
					DetectorMask uint64 `json:"detector_mask"`
				} `json:"clusters"`
				Classes []struct {
					Name string `json:"name"`
				} `json:"classes"`
			} `json:"configuration"`
			Diagnostics []struct {
				Line     int    `json:"line"`
				Severity string `json:"severity"`
			} `json:"diagnostics"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, uint32(523456), resp.Data.Configuration.RunNumber)
	require.Len(t, resp.Data.Configuration.Clusters, 1)
	assert.Equal(t, uint64(0x3), resp.Data.Configuration.Clusters[0].DetectorMask)
	require.Len(t, resp.Data.Configuration.Classes, 1)
	assert.Equal(t, "CMTVX", resp.Data.Configuration.Classes[0].Name)
	require.Len(t, resp.Data.Diagnostics, 2)
	assert.Equal(t, 6, resp.Data.Diagnostics[0].Line)
	assert.Equal(t, "warning", resp.Data.Diagnostics[0].Severity)
}

func TestParse_ExplicitJSONHasEmptyDiagnostics(t *testing.T) {
	out, _, err := executeCommand(t, "--format", "json", "parse", "-d", "explicit", "testdata/physics.cfg")
	require.NoError(t, err)
	assert.Contains(t, out, `"diagnostics":[]`)
}

func TestParse_ExplicitFailure(t *testing.T) {
	out, _, err := executeCommand(t, "parse", "-d", "explicit", "testdata/broken.cfg")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E203]")
	assert.Contains(t, out, `line 4: DESCRIPTORS: input "MISSING" not defined in INPUTS`)
}

func TestParse_ExplicitFailureJSON(t *testing.T) {
	out, _, err := executeCommand(t, "--format", "json", "parse", "-d", "explicit", "testdata/broken.cfg")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E203", resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(4), details["line"])
}

func TestParse_InferredNeverFails(t *testing.T) {
	// The explicit file is not meaningful in the inferred dialect, but it
	// still yields a configuration.
	out, _, err := executeCommand(t, "parse", "testdata/physics.cfg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Configuration: "))
	assert.Contains(t, out, "Diagnostics: ")
}

func TestParse_Stdin(t *testing.T) {
	cmd := NewRootCommand()
	out := &strings.Builder{}
	cmd.SetOut(out)
	cmd.SetErr(&strings.Builder{})
	cmd.SetIn(strings.NewReader("run 7\n"))
	cmd.SetArgs([]string{"parse", "-"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), " Run: 7\n")
}

func TestParse_BadDialect(t *testing.T) {
	out, _, err := executeCommand(t, "parse", "-d", "yaml", "testdata/run3.cfg")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestParse_MissingFile(t *testing.T) {
	out, _, err := executeCommand(t, "parse", "testdata/nope.cfg")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E210]")
}
