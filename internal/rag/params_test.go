package rag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseProfile() Profile {
	return Profile{
		WorkType:        WorkDelivery,
		DeadlineNature:  DeadlineSelfImposed,
		DeliverableType: DeliverableBuiltSolution,
		BudgetExposure:  BudgetApprovedInternal,
		DependencyLevel: DependencySelfContained,
		RiskLevel:       RiskLow,
		Phase:           PhaseInFlight,
		UpdateFrequency: UpdateWeekly,
		Audience:        AudienceMyTeam,
	}
}

func TestResolve_Base(t *testing.T) {
	params, err := Resolve(baseProfile())
	require.NoError(t, err)

	assert.Equal(t, Weights{Schedule: 0.40, Budget: 0.35, Blocker: 0.25}, params.Weights)
	assert.Equal(t, Band{Amber: -10, Red: -25}, params.Schedule)
	assert.Equal(t, Band{Amber: -5, Red: -15}, params.Budget)
	assert.Equal(t, AgeBands{Mid: 3, High: 7}, params.Blocker)
	assert.True(t, params.BudgetTracked)
	assert.Zero(t, params.Compression)
	assert.False(t, params.OverdueFloor)
}

func TestResolve_HardDeadline(t *testing.T) {
	p := baseProfile()
	p.DeadlineNature = DeadlineHardContractual
	params, err := Resolve(p)
	require.NoError(t, err)
	assert.Equal(t, Band{Amber: -5, Red: -15}, params.Schedule)
}

func TestResolve_ClientBillable(t *testing.T) {
	p := baseProfile()
	p.BudgetExposure = BudgetClientBillable
	params, err := Resolve(p)
	require.NoError(t, err)

	assert.InDelta(t, 0.45, params.Weights.Budget, 1e-12)
	assert.InDelta(t, 0.55*0.40/0.65, params.Weights.Schedule, 1e-12)
	assert.InDelta(t, 0.55*0.25/0.65, params.Weights.Blocker, 1e-12)
	assert.InDelta(t, BaseScheduleWeight/BaseBlockerWeight, params.Weights.Schedule/params.Weights.Blocker, 1e-12)
	require.NoError(t, params.Weights.Validate())
	assert.Equal(t, Band{Amber: -3, Red: -10}, params.Budget)
}

func TestResolve_BudgetSuppressed(t *testing.T) {
	p := baseProfile()
	p.BudgetExposure = BudgetInformalNone
	params, err := Resolve(p)
	require.NoError(t, err)

	assert.False(t, params.BudgetTracked)
	assert.Zero(t, params.Weights.Budget)
	assert.InDelta(t, 1.0, params.Weights.Schedule+params.Weights.Blocker, 1e-12)
	assert.InDelta(t, 0.40/0.65, params.Weights.Schedule, 1e-12)
	assert.InDelta(t, 0.25/0.65, params.Weights.Blocker, 1e-12)
}

func TestResolve_ExternalDependencyHalvesAges(t *testing.T) {
	p := baseProfile()
	p.DependencyLevel = DependencyBlockedExternal
	params, err := Resolve(p)
	require.NoError(t, err)
	assert.Equal(t, AgeBands{Mid: 1.5, High: 3.5}, params.Blocker)
}

func TestResolve_RiskCompression(t *testing.T) {
	for _, risk := range []RiskLevel{RiskHigh, RiskCritical} {
		t.Run(string(risk), func(t *testing.T) {
			p := baseProfile()
			p.RiskLevel = risk
			params, err := Resolve(p)
			require.NoError(t, err)

			assert.Equal(t, RiskCompression, params.Compression)
			assert.Equal(t, Band{Amber: -10, Red: -17.5}, params.Schedule)
			assert.Equal(t, Band{Amber: -5, Red: -10}, params.Budget)
			assert.Equal(t, AgeBands{Mid: 3, High: 5}, params.Blocker)
		})
	}
}

func TestResolve_RulesCompose(t *testing.T) {
	p := baseProfile()
	p.DeadlineNature = DeadlineHardContractual
	p.BudgetExposure = BudgetClientBillable
	p.DependencyLevel = DependencyBlockedExternal
	p.RiskLevel = RiskCritical
	p.Phase = PhaseReviewClosing
	params, err := Resolve(p)
	require.NoError(t, err)

	// compression applies on top of the tightened thresholds
	assert.Equal(t, Band{Amber: -5, Red: -10}, params.Schedule)
	assert.Equal(t, Band{Amber: -3, Red: -6.5}, params.Budget)
	assert.Equal(t, AgeBands{Mid: 1.5, High: 2.5}, params.Blocker)
	assert.True(t, params.OverdueFloor)
	assert.LessOrEqual(t, params.Schedule.Red, params.Schedule.Amber)
	assert.LessOrEqual(t, params.Budget.Red, params.Budget.Amber)
}

func TestResolve_CompressionSkipsSuppressedBudget(t *testing.T) {
	p := baseProfile()
	p.BudgetExposure = BudgetInformalNone
	p.RiskLevel = RiskHigh
	params, err := Resolve(p)
	require.NoError(t, err)
	assert.Equal(t, Band{Amber: -5, Red: -15}, params.Budget)
}

func TestResolve_WeightsAlwaysSumToOne(t *testing.T) {
	for _, exposure := range []BudgetExposure{BudgetClientBillable, BudgetApprovedInternal, BudgetInformalNone} {
		for _, risk := range []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical} {
			p := baseProfile()
			p.BudgetExposure = exposure
			p.RiskLevel = risk
			params, err := Resolve(p)
			require.NoError(t, err)
			assert.NoError(t, params.Weights.Validate(), "%s/%s", exposure, risk)
		}
	}
}

func TestResolve_InvalidProfile(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Profile)
		field string
	}{
		{"missing deadline", func(p *Profile) { p.DeadlineNature = "" }, "deadline_nature"},
		{"unknown budget", func(p *Profile) { p.BudgetExposure = "lavish" }, "budget_exposure"},
		{"unknown cadence", func(p *Profile) { p.UpdateFrequency = "hourly" }, "update_frequency"},
		{"informational answers are validated too", func(p *Profile) { p.Audience = "everyone" }, "audience"},
		{"empty profile", func(p *Profile) { *p = Profile{} }, "work_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseProfile()
			tt.edit(&p)
			_, err := Resolve(p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestProfileFromAnswers(t *testing.T) {
	p, err := ProfileFromAnswers(baseProfile().Answers())
	require.NoError(t, err)
	assert.Equal(t, baseProfile(), p)

	answers := baseProfile().Answers()
	delete(answers, "phase")
	_, err = ProfileFromAnswers(answers)
	assert.ErrorIs(t, err, ErrConfiguration)
}
