package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trialText = `Participants were randomly assigned to treatment or placebo in a
double-blind design. Data were analysed with SPSS version 26. Normality was
checked with the Shapiro-Wilk test. Results are reported as mean ± SD with
95% confidence intervals; p < 0.05 was considered significant.`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rigoraudit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\naudit:\n  workers: 2\n"), 0o644))
	return path
}

// execute runs the root command with a throwaway config and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(append([]string{"--config", writeTestConfig(t), "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "rigoraudit", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.True(t, cmd.SilenceUsage)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"audit", "batch", "serve", "worker", "migrate", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"config", "c", ""},
		{"log-level", "", "info"},
		{"output", "o", "text"},
		{"verbose", "v", "false"},
		{"timeout", "", "5m0s"},
		{"server", "", ""},
		{"api-key", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := cmd.PersistentFlags().Lookup(tt.name)
			require.NotNil(t, f)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestDaemonAnnotations(t *testing.T) {
	cmd := NewRootCommand()
	for _, sub := range cmd.Commands() {
		daemon := sub.Annotations[annotationDaemon] == "true"
		switch sub.Name() {
		case "serve", "worker":
			assert.True(t, daemon, sub.Name())
		default:
			assert.False(t, daemon, sub.Name())
		}
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := execute(t, "", "version", "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestMissingConfigFile(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "version"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config initialization failed")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version", "-o", "json")
	require.NoError(t, err)

	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")

	out, err = execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rigoraudit "+Version)
}

func TestGetCLIContext(t *testing.T) {
	_, err := GetCLIContext(&cobra.Command{})
	assert.Error(t, err)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	_, err = GetCLIContext(cmd)
	assert.Error(t, err)

	want := &CLIContext{OutputFormat: "json"}
	cmd.SetContext(context.WithValue(context.Background(), cliContextKey{}, want))
	got, err := GetCLIContext(cmd)
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestPrintResult_WithoutContextFallsBackToJSON(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, PrintResult(cmd, map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a":1}`, out.String())
}

func TestPrintError(t *testing.T) {
	cmd := &cobra.Command{}
	var errOut bytes.Buffer
	cmd.SetErr(&errOut)
	PrintError(cmd, nil)
	assert.Empty(t, errOut.String())
	PrintError(cmd, assert.AnError)
	assert.Equal(t, "Error: "+assert.AnError.Error()+"\n", errOut.String())
}

func TestFormatTable(t *testing.T) {
	got := FormatTable([]string{"NAME", "SCORE"}, [][]string{{"alpha", "9.5"}, {"b", "10"}})
	want := "NAME   SCORE\n" +
		"-----  -----\n" +
		"alpha  9.5\n" +
		"b      10\n"
	assert.Equal(t, want, got)

	assert.Empty(t, FormatTable(nil, nil))
	assert.Equal(t, "X\n-\n\n", FormatTable([]string{"X"}, [][]string{{}}))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef", padRight("abcdef", 3))
}
