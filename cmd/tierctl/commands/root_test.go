package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "tierctl", cmd.Use)

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "deploy")
	assert.Contains(t, names, "failover")
	assert.Contains(t, names, "validate")
	assert.Contains(t, names, "version")
}

func TestDeploy_Flags(t *testing.T) {
	cmd := Deploy()

	require.NotNil(t, cmd.RunE)

	plan := cmd.Flags().Lookup("plan")
	require.NotNil(t, plan)
	assert.Equal(t, "p", plan.Shorthand)
	assert.Equal(t, "", plan.DefValue)

	concurrency := cmd.Flags().Lookup("concurrency")
	require.NotNil(t, concurrency)
	assert.Equal(t, "0", concurrency.DefValue)
}

func TestFailover_Flags(t *testing.T) {
	cmd := Failover()

	require.NotNil(t, cmd.RunE)

	resume := cmd.Flags().Lookup("resume-gates")
	require.NotNil(t, resume)
	assert.Equal(t, "false", resume.DefValue)

	plan := cmd.Flags().Lookup("plan")
	require.NotNil(t, plan)
	assert.Equal(t, "p", plan.Shorthand)
}

func TestValidate_Flags(t *testing.T) {
	cmd := Validate()

	require.NotNil(t, cmd.RunE)
	require.NotNil(t, cmd.Flags().Lookup("plan"))
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-08-30")
	defer SetVersionInfo("dev", "none", "unknown")

	cmd := Version()
	require.NotNil(t, cmd)
	assert.Equal(t, "version", cmd.Use)
	assert.NotNil(t, cmd.Run)
	assert.Equal(t, "1.2.3", version)
}
