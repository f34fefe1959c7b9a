package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/fixed-ratio-trading/internal/pda"
	"github.com/lugondev/fixed-ratio-trading/internal/program"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Program Version: "+program.Version)
}

func TestPDASystem(t *testing.T) {
	want, err := pda.FindSystemState(program.DefaultProgramID)
	require.NoError(t, err)

	out, err := run(t, "pda", "system")
	require.NoError(t, err)
	assert.Contains(t, out, want.Key.String())
}

func TestPDAPoolRejectsBadRatio(t *testing.T) {
	mint := program.DefaultProgramID.String()
	_, err := run(t, "pda", "pool", mint, mint, "two", "1")
	assert.ErrorContains(t, err, "invalid ratio")
}

func TestSimulateBasicScenario(t *testing.T) {
	out, err := run(t, "simulate", "../../../internal/scenario/testdata/basic.yaml", "--skip-failed")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Scenario: basic")
	assert.Contains(t, out, "steps behaved as expected")
	assert.Contains(t, out, "Persisted")
}
