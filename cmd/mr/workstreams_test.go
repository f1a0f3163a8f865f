package main

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/rag"
)

func profileTestCmd(name string) (*cobra.Command, map[string]*string) {
	answers := map[string]*string{}
	cmd := &cobra.Command{Use: name}
	addProfileFlags(cmd, answers)
	return cmd, answers
}

func TestProfileFromFlags(t *testing.T) {
	cmd, answers := profileTestCmd("set")
	require.NoError(t, cmd.ParseFlags([]string{
		"--work-type=delivery", "--deadline-nature=hard_contractual", "--deliverable-type=built_solution",
		"--budget-exposure=client_billable", "--dependency-level=depends_1_2", "--risk-level=high",
		"--phase=in_flight", "--update-frequency=weekly", "--audience=senior_leadership",
	}))
	p, ok, err := profileFromFlags(cmd, answers)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rag.DeadlineNature("hard_contractual"), p.DeadlineNature)
	assert.Equal(t, rag.RiskLevel("high"), p.RiskLevel)
}

func TestProfileFromFlagsOptionalOnCreate(t *testing.T) {
	cmd, answers := profileTestCmd("create")
	_, ok, err := profileFromFlags(cmd, answers)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cmd.ParseFlags([]string{"--risk-level=extreme"}))
	_, _, err = profileFromFlags(cmd, answers)
	assert.True(t, errors.Is(err, rag.ErrConfiguration))
}

func TestStatusLabel(t *testing.T) {
	assert.Contains(t, statusLabel("red"), "RED")
	assert.Contains(t, statusLabel(""), "unscored")
}
