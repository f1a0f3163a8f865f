package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/config"
	"meridian/internal/db"
	"meridian/internal/domain"
	"meridian/internal/engine"
	"meridian/internal/migrate"
	"meridian/internal/publish"
	"meridian/internal/rag"
	"meridian/internal/repo"
)

type testEnv struct {
	Engine    engine.Engine
	Ctx       context.Context
	Published *publish.Memory
	clock     *time.Time
}

func (env testEnv) advance(d time.Duration) { *env.clock = env.clock.Add(d) }

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(conn)
	require.NoError(t, err)

	clock := time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)
	mem := &publish.Memory{}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return clock }
	eng.Publisher = mem
	return testEnv{Engine: eng, Ctx: context.Background(), Published: mem, clock: &clock}
}

func testProfile() rag.Profile {
	return rag.Profile{
		WorkType:        rag.WorkDelivery,
		DeadlineNature:  rag.DeadlineBusinessDriven,
		DeliverableType: rag.DeliverableBuiltSolution,
		BudgetExposure:  rag.BudgetApprovedInternal,
		DependencyLevel: rag.DependencySelfContained,
		RiskLevel:       rag.RiskLow,
		Phase:           rag.PhaseInFlight,
		UpdateFrequency: rag.UpdateWeekly,
		Audience:        rag.AudienceMyTeam,
	}
}

func budget(v float64) *float64 { return &v }

func (env testEnv) createConfigured(t *testing.T, name string) domain.Workstream {
	t.Helper()
	p := testProfile()
	w, err := env.Engine.CreateWorkstream(env.Ctx, engine.WorkstreamCreateOptions{
		Name:          name,
		StartDate:     "2025-01-01",
		EndDate:       "2025-01-31",
		PlannedBudget: budget(10000),
		Profile:       &p,
		ActorID:       "tester",
	})
	require.NoError(t, err)
	return w
}

func TestCreateWorkstreamScoresImmediately(t *testing.T) {
	env := newTestEnv(t)
	w := env.createConfigured(t, "Billing migration")
	assert.Equal(t, "in_flight", w.Phase)

	s, err := env.Engine.Repo.GetScore(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.CompositeScore)
	assert.Equal(t, "green", s.RAGStatus)
	require.NotNil(t, s.BudgetScore)
	assert.False(t, s.IsStale)

	hist, err := env.Engine.History(env.Ctx, w.ID, "", 0)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	snaps := env.Published.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "create", snaps[0].Trigger)

	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, w.ID, "")
	require.NoError(t, err)
	var types []string
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.ElementsMatch(t, []string{"workstream.create", "profile.configure", "score.recalculate"}, types)
}

func TestBlockersDriveScore(t *testing.T) {
	env := newTestEnv(t)
	w := env.createConfigured(t, "Vendor onboarding")

	first, err := env.Engine.RaiseBlocker(env.Ctx, engine.BlockerCreateOptions{WorkstreamID: w.ID, Description: "Awaiting legal", DateRaised: "2025-01-15"})
	require.NoError(t, err)
	s, err := env.Engine.Repo.GetScore(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, s.BlockerScore)
	assert.Equal(t, 95.0, s.CompositeScore)

	_, err = env.Engine.RaiseBlocker(env.Ctx, engine.BlockerCreateOptions{WorkstreamID: w.ID, Description: "No test data"})
	require.NoError(t, err)
	s, err = env.Engine.Repo.GetScore(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(rag.BlockerScoreMultiple), s.BlockerScore)
	assert.Equal(t, 85.0, s.CompositeScore)

	resolved, err := env.Engine.ResolveBlocker(env.Ctx, first.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, "resolved", resolved.Status)
	s, err = env.Engine.Repo.GetScore(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, s.BlockerScore)

	_, err = env.Engine.ResolveBlocker(env.Ctx, first.ID, "tester")
	var ve *engine.ValidationError
	assert.ErrorAs(t, err, &ve)

	hist, err := env.Engine.History(env.Ctx, w.ID, "", 0)
	require.NoError(t, err)
	assert.Len(t, hist, 4)
}

func TestUnconfiguredWorkstreamIsNotScored(t *testing.T) {
	env := newTestEnv(t)
	w, err := env.Engine.CreateWorkstream(env.Ctx, engine.WorkstreamCreateOptions{
		Name: "Draft", StartDate: "2025-01-01", EndDate: "2025-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "discovery", w.Phase)

	_, err = env.Engine.Repo.GetScore(env.Ctx, w.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	_, err = env.Engine.Recalculate(env.Ctx, w.ID, "tester")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rag.ErrConfiguration))
	var ce *rag.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "profile", ce.Field)

	// Mutations still succeed while unconfigured.
	_, err = env.Engine.AddMilestone(env.Ctx, engine.MilestoneCreateOptions{WorkstreamID: w.ID, Name: "Kickoff", DueDate: "2025-01-20"})
	require.NoError(t, err)

	p := testProfile()
	p.BudgetExposure = rag.BudgetInformalNone
	_, err = env.Engine.SetProfile(env.Ctx, w.ID, p, "tester")
	require.NoError(t, err)
	s, err := env.Engine.Repo.GetScore(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, s.BudgetScore)

	got, err := env.Engine.Repo.GetWorkstream(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_flight", got.Phase)
}

func TestRecalculateUnknownWorkstream(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Recalculate(env.Ctx, "missing", "tester")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestInvalidProfileRejected(t *testing.T) {
	env := newTestEnv(t)
	p := testProfile()
	p.RiskLevel = "extreme"
	_, err := env.Engine.CreateWorkstream(env.Ctx, engine.WorkstreamCreateOptions{
		Name: "Bad", StartDate: "2025-01-01", EndDate: "2025-02-01", Profile: &p,
	})
	var ce *rag.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "risk_level", ce.Field)

	items, err := env.Engine.Repo.ListWorkstreams(env.Ctx, repo.WorkstreamFilters{IncludeArchived: true})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSweepFlipsStaleness(t *testing.T) {
	env := newTestEnv(t)
	w := env.createConfigured(t, "Quarterly report")

	res, err := env.Engine.Sweep(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	assert.Equal(t, 0, res.Stale)

	env.advance(9 * 24 * time.Hour)
	res, err = env.Engine.Sweep(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stale)
	s, err := env.Engine.Repo.GetScore(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, s.IsStale)

	// Any write counts as activity.
	_, err = env.Engine.AddSpend(env.Ctx, engine.SpendCreateOptions{WorkstreamID: w.ID, Amount: 250})
	require.NoError(t, err)
	s, err = env.Engine.Repo.GetScore(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, s.IsStale)
}

func TestSpendCountsTowardsBudget(t *testing.T) {
	env := newTestEnv(t)
	w := env.createConfigured(t, "Data platform")

	_, err := env.Engine.AddSpend(env.Ctx, engine.SpendCreateOptions{WorkstreamID: w.ID, Amount: 9000, SpentOn: "2025-01-10"})
	require.NoError(t, err)
	s, err := env.Engine.Repo.GetScore(env.Ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, s.BudgetScore)
	require.NotNil(t, s.BudgetVariance)
	assert.Less(t, *s.BudgetVariance, -15.0)
	assert.Less(t, *s.BudgetScore, float64(rag.AmberFloor))

	d, err := env.Engine.DescribeWorkstream(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, d.SpendToDate)
}

func TestOverdueMilestones(t *testing.T) {
	env := newTestEnv(t)
	w := env.createConfigured(t, "Launch")
	late, err := env.Engine.AddMilestone(env.Ctx, engine.MilestoneCreateOptions{WorkstreamID: w.ID, Name: "Design sign-off", DueDate: "2025-01-10"})
	require.NoError(t, err)
	_, err = env.Engine.AddMilestone(env.Ctx, engine.MilestoneCreateOptions{WorkstreamID: w.ID, Name: "Go live", DueDate: "2025-01-30"})
	require.NoError(t, err)

	over, err := env.Engine.Overdue(env.Ctx)
	require.NoError(t, err)
	require.Len(t, over, 1)
	assert.Equal(t, late.ID, over[0].Milestone.ID)
	assert.Equal(t, "Launch", over[0].WorkstreamName)
	assert.Equal(t, 6, over[0].DaysOverdue)

	s, err := env.Engine.Repo.GetScore(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.Less(t, s.ScheduleScore, 100.0)

	done := string(rag.MilestoneComplete)
	_, err = env.Engine.UpdateMilestone(env.Ctx, engine.MilestoneUpdateOptions{ID: late.ID, Status: &done})
	require.NoError(t, err)
	over, err = env.Engine.Overdue(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, over)

	require.NoError(t, env.Engine.DeleteMilestone(env.Ctx, late.ID, "tester"))
	ms, err := env.Engine.Repo.ListMilestones(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, ms, 1)
}

func TestPortfolioOrdering(t *testing.T) {
	env := newTestEnv(t)
	green := env.createConfigured(t, "Healthy")

	p := testProfile()
	red, err := env.Engine.CreateWorkstream(env.Ctx, engine.WorkstreamCreateOptions{
		Name: "Troubled", StartDate: "2024-12-01", EndDate: "2025-01-20", Profile: &p,
	})
	require.NoError(t, err)
	for _, name := range []string{"Scope agreed", "Build done"} {
		_, err := env.Engine.AddMilestone(env.Ctx, engine.MilestoneCreateOptions{WorkstreamID: red.ID, Name: name, DueDate: "2025-01-18"})
		require.NoError(t, err)
	}
	for _, desc := range []string{"No sponsor", "No environment"} {
		_, err := env.Engine.RaiseBlocker(env.Ctx, engine.BlockerCreateOptions{WorkstreamID: red.ID, Description: desc, DateRaised: "2025-01-05"})
		require.NoError(t, err)
	}
	unscored, err := env.Engine.CreateWorkstream(env.Ctx, engine.WorkstreamCreateOptions{
		Name: "Idea", StartDate: "2025-01-01", EndDate: "2025-06-30",
	})
	require.NoError(t, err)

	view, err := env.Engine.Portfolio(env.Ctx)
	require.NoError(t, err)
	require.Len(t, view.Items, 3)
	assert.Equal(t, red.ID, view.Items[0].Workstream.ID)
	assert.Equal(t, "red", view.Items[0].Score.RAGStatus)
	assert.Equal(t, green.ID, view.Items[1].Workstream.ID)
	assert.Equal(t, unscored.ID, view.Items[2].Workstream.ID)
	assert.Nil(t, view.Items[2].Score)
	assert.Equal(t, engine.PortfolioSummary{Total: 3, Green: 1, Red: 1, Unscored: 1}, view.Summary)
}

func TestArchivedWorkstreams(t *testing.T) {
	env := newTestEnv(t)
	w := env.createConfigured(t, "Retired")
	_, err := env.Engine.ArchiveWorkstream(env.Ctx, w.ID, true, "tester")
	require.NoError(t, err)

	_, err = env.Engine.AddMilestone(env.Ctx, engine.MilestoneCreateOptions{WorkstreamID: w.ID, Name: "x", DueDate: "2025-01-20"})
	var ve *engine.ValidationError
	require.ErrorAs(t, err, &ve)

	view, err := env.Engine.Portfolio(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	res, err := env.Engine.Sweep(env.Ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Evaluated)

	restored, err := env.Engine.ArchiveWorkstream(env.Ctx, w.ID, false, "tester")
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)
}

func TestUpdateWorkstream(t *testing.T) {
	env := newTestEnv(t)
	w := env.createConfigured(t, "Rename me")
	name := "Renamed"
	end := "2025-02-28"
	got, err := env.Engine.UpdateWorkstream(env.Ctx, engine.WorkstreamUpdateOptions{ID: w.ID, Name: &name, EndDate: &end, ClearBudget: true})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, end, got.EndDate)
	assert.Nil(t, got.PlannedBudget)

	s, err := env.Engine.Repo.GetScore(env.Ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, s.BudgetScore)

	_, err = env.Engine.UpdateWorkstream(env.Ctx, engine.WorkstreamUpdateOptions{ID: w.ID})
	var ve *engine.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]engine.WorkstreamCreateOptions{
		"name":     {StartDate: "2025-01-01", EndDate: "2025-02-01"},
		"long":     {Name: strings.Repeat("x", 121), StartDate: "2025-01-01", EndDate: "2025-02-01"},
		"end_date": {Name: "a", StartDate: "2025-02-01", EndDate: "2025-02-01"},
		"format":   {Name: "a", StartDate: "01/02/2025", EndDate: "2025-02-01"},
		"budget":   {Name: "a", StartDate: "2025-01-01", EndDate: "2025-02-01", PlannedBudget: budget(-1)},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.Engine.CreateWorkstream(env.Ctx, opts)
			var ve *engine.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}

	w := env.createConfigured(t, "Items")
	_, err := env.Engine.AddMilestone(env.Ctx, engine.MilestoneCreateOptions{WorkstreamID: w.ID, Name: "m", Status: "done", DueDate: "2025-01-20"})
	var ve *engine.ValidationError
	assert.ErrorAs(t, err, &ve)
	_, err = env.Engine.RaiseBlocker(env.Ctx, engine.BlockerCreateOptions{WorkstreamID: w.ID, Description: "later", DateRaised: "2025-02-01"})
	assert.ErrorAs(t, err, &ve)
	_, err = env.Engine.AddSpend(env.Ctx, engine.SpendCreateOptions{WorkstreamID: w.ID, Amount: 0})
	assert.ErrorAs(t, err, &ve)
}
