package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/testutil"
)

var testStart = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

const testConnection = "Username-Password-Authentication"

// cliHarness drives the real root command against a fake directory.
type cliHarness struct {
	dir     *testutil.FakeDirectory
	clock   *testutil.FakeClock
	workDir string
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
}

// isolateEnv runs the test in an empty directory with no rollcall
// settings inherited from the environment.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("NO_COLOR", "1")
	for _, name := range []string{"DOMAIN", "CLIENT_ID", "SECRET", "AUDIENCE", "CONNECTION", "INACTIVE", "INACTIVE_DAYS"} {
		t.Setenv(name, "")
	}
	return dir
}

func newHarness(t *testing.T, users ...testutil.FakeUser) *cliHarness {
	t.Helper()
	workDir := isolateEnv(t)

	dir := testutil.NewFakeDirectory(t, users...)
	t.Setenv("DOMAIN", dir.URL())
	t.Setenv("CLIENT_ID", dir.ClientID())
	t.Setenv("SECRET", dir.ClientSecret())
	t.Setenv("CONNECTION", testConnection)
	t.Setenv("ROLLCALL_EXECUTOR_PACE", "0s")

	return &cliHarness{
		dir:     dir,
		clock:   testutil.NewFakeClock(testStart),
		workDir: workDir,
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
	}
}

// run executes one command line with stdin as its input.
func (h *cliHarness) run(stdin string, args ...string) error {
	h.stdout.Reset()
	h.stderr.Reset()

	opts := &RootOptions{
		Clock:  h.clock,
		RunIDs: engine.NewFixedGenerator("run-1"),
	}
	cmd := NewRootCommandWithOptions(opts)
	cmd.SetOut(h.stdout)
	cmd.SetErr(h.stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	return cmd.Execute()
}

// writeFile writes body under the harness working directory.
func (h *cliHarness) writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(h.workDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
	RunID  string          `json:"run_id"`
}

func decodeEnvelope(t *testing.T, out []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(out, &env), "stdout: %s", out)
	return env
}

func decodeReport(t *testing.T, out []byte) engine.Report {
	t.Helper()
	env := decodeEnvelope(t, out)
	require.Equal(t, "ok", env.Status)
	var report engine.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	return report
}

func decodeListing(t *testing.T, out []byte) engine.Listing {
	t.Helper()
	env := decodeEnvelope(t, out)
	require.Equal(t, "ok", env.Status)
	var listing engine.Listing
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	return listing
}
