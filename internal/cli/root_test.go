package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// response mirrors CLIResponse with the payload left undecoded.
type response struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   *CLIError       `json:"error"`
	TraceID string          `json:"trace_id"`
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func decodeResponse(t *testing.T, out string) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "nvsh", cmd.Use)
	assert.Contains(t, cmd.Long, "nvsh.yaml")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "dump", "validate", "test", "trace", "replay", "repl"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "max-index", "seed", "trace-db", "log-level", "profile-dir"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	assert.NotNil(t, testCmd.Flags().Lookup("filter"))
	assert.NotNil(t, testCmd.Flags().Lookup("golden-dir"))
}

func TestDumpCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	dumpCmd, _, err := cmd.Find([]string{"dump"})
	require.NoError(t, err)

	queryFlag := dumpCmd.Flags().Lookup("query")
	require.NotNil(t, queryFlag)
	assert.Equal(t, "q", queryFlag.Shorthand)
}

func TestFormatValidationIntegration(t *testing.T) {
	_, err := execute(t, "--format", "invalid", "validate", "testdata/profiles/base")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigFileSetsDefaults(t *testing.T) {
	profileDir, err := filepath.Abs("testdata/profiles/base")
	require.NoError(t, err)

	cfgFile := filepath.Join(t.TempDir(), "nvsh.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("format: json\nprofile_dir: "+profileDir+"\n"), 0644))

	out, err := execute(t, "--config", cfgFile, "validate")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	out, err = execute(t, "--config", cfgFile, "--format", "text", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "validate", "testdata/profiles/base")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestNoProfileDir(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "profile_dir")
}
