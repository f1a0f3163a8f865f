package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/db"
	"meridian/internal/domain"
	"meridian/internal/migrate"
	"meridian/internal/rag"
	"meridian/internal/repo"
)

func newRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	version, err := migrate.Migrate(conn)
	require.NoError(t, err)
	require.Equal(t, 1, version)
	return repo.Repo{DB: conn}, context.Background()
}

func inTx(t *testing.T, r repo.Repo, fn func(tx *sql.Tx)) {
	t.Helper()
	tx, err := r.DB.Begin()
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit())
}

func seedWorkstream(t *testing.T, r repo.Repo, ctx context.Context, id string, planned *float64) {
	t.Helper()
	inTx(t, r, func(tx *sql.Tx) {
		require.NoError(t, r.InsertWorkstream(ctx, tx, domain.Workstream{
			ID: id, Name: id, StartDate: "2025-01-01", EndDate: "2025-01-31", PlannedBudget: planned,
			Phase: "in_flight", OwnerID: "tester", LastActivityAt: "2025-01-15T09:00:00Z",
			CreatedAt: "2025-01-01T00:00:00Z", UpdatedAt: "2025-01-01T00:00:00Z",
		}))
	})
}

func TestLoadScoringInput(t *testing.T) {
	r, ctx := newRepo(t)
	planned := 5000.0
	seedWorkstream(t, r, ctx, "ws-1", &planned)
	inTx(t, r, func(tx *sql.Tx) {
		require.NoError(t, r.InsertMilestone(ctx, tx, domain.Milestone{ID: "m1", WorkstreamID: "ws-1", Name: "a", Status: "complete", DueDate: "2025-01-10", CreatedAt: "x", UpdatedAt: "x"}))
		require.NoError(t, r.InsertSpend(ctx, tx, domain.SpendEntry{ID: "s1", WorkstreamID: "ws-1", Amount: 1200, SpentOn: "2025-01-05", CreatedBy: "t", CreatedAt: "x"}))
		require.NoError(t, r.InsertSpend(ctx, tx, domain.SpendEntry{ID: "s2", WorkstreamID: "ws-1", Amount: 800, SpentOn: "2025-01-25", CreatedBy: "t", CreatedAt: "x"}))
		require.NoError(t, r.InsertBlocker(ctx, tx, domain.Blocker{ID: "b1", WorkstreamID: "ws-1", Description: "open", DateRaised: "2025-01-06", Status: "open", CreatedBy: "t", CreatedAt: "x"}))
		require.NoError(t, r.InsertBlocker(ctx, tx, domain.Blocker{ID: "b2", WorkstreamID: "ws-1", Description: "closed", DateRaised: "2025-01-02", Status: "open", CreatedBy: "t", CreatedAt: "x"}))
		require.NoError(t, r.ResolveBlocker(ctx, tx, "b2", "2025-01-08T00:00:00Z"))
	})

	asOf := time.Date(2025, 1, 16, 18, 0, 0, 0, time.UTC)
	in, err := r.LoadScoringInput(ctx, r.DB, "ws-1", asOf)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), in.Window.Start)
	require.Len(t, in.Milestones, 1)
	assert.Equal(t, rag.MilestoneComplete, in.Milestones[0].Status)
	require.NotNil(t, in.Budget)
	assert.Equal(t, 1200.0, in.Budget.ActualToDate)
	assert.Equal(t, []rag.Blocker{{AgeDays: 10}}, in.Blockers)
	assert.Equal(t, time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC), in.LastActivityAt)
	require.NoError(t, in.Validate())
}

func TestLoadScoringInputUntrackedBudget(t *testing.T) {
	r, ctx := newRepo(t)
	seedWorkstream(t, r, ctx, "ws-1", nil)
	in, err := r.LoadScoringInput(ctx, r.DB, "ws-1", time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, in.Budget)
	assert.Empty(t, in.Milestones)

	_, err = r.LoadScoringInput(ctx, r.DB, "nope", time.Now())
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestProfileFor(t *testing.T) {
	r, ctx := newRepo(t)
	seedWorkstream(t, r, ctx, "ws-1", nil)

	_, err := r.ProfileFor(ctx, r.DB, "ws-1")
	assert.True(t, errors.Is(err, rag.ErrConfiguration))

	p := rag.Profile{
		WorkType: rag.WorkAnalysis, DeadlineNature: rag.DeadlineOngoing, DeliverableType: rag.DeliverableRecommendation,
		BudgetExposure: rag.BudgetClientBillable, DependencyLevel: rag.DependencyMultiple, RiskLevel: rag.RiskMedium,
		Phase: rag.PhasePlanning, UpdateFrequency: rag.UpdateMonthly, Audience: rag.AudienceExternalClient,
	}
	wp := repo.FromProfile("ws-1", p)
	wp.ConfiguredBy, wp.ConfiguredAt = "tester", "2025-01-02T00:00:00Z"
	inTx(t, r, func(tx *sql.Tx) { require.NoError(t, r.UpsertProfile(ctx, tx, wp)) })

	got, err := r.ProfileFor(ctx, r.DB, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func score(id, evaluatedAt string, composite float64) domain.Score {
	return domain.Score{
		WorkstreamID: id, ScheduleScore: composite, BlockerScore: 100, CompositeScore: composite,
		RAGStatus: string(rag.StatusFor(composite)), EvaluatedAt: evaluatedAt, CalculatedAt: evaluatedAt,
	}
}

func TestSaveScoreLastWriterWins(t *testing.T) {
	r, ctx := newRepo(t)
	seedWorkstream(t, r, ctx, "ws-1", nil)

	var applied bool
	var err error
	inTx(t, r, func(tx *sql.Tx) {
		applied, err = r.SaveScore(ctx, tx, score("ws-1", "2025-01-16T10:00:00Z", 80))
	})
	require.NoError(t, err)
	assert.True(t, applied)

	inTx(t, r, func(tx *sql.Tx) {
		applied, err = r.SaveScore(ctx, tx, score("ws-1", "2025-01-16T09:00:00Z", 20))
	})
	require.NoError(t, err)
	assert.False(t, applied)
	s, err := r.GetScore(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, 80.0, s.CompositeScore)

	inTx(t, r, func(tx *sql.Tx) {
		applied, err = r.SaveScore(ctx, tx, score("ws-1", "2025-01-16T11:00:00Z", 50))
	})
	require.NoError(t, err)
	assert.True(t, applied)
	s, err = r.GetScore(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "amber", s.RAGStatus)
	assert.Nil(t, s.BudgetScore)
}

func TestHistoryIsAppendOnly(t *testing.T) {
	r, ctx := newRepo(t)
	seedWorkstream(t, r, ctx, "ws-1", nil)
	inTx(t, r, func(tx *sql.Tx) {
		for i, ts := range []string{"2025-01-14T00:00:00Z", "2025-01-15T00:00:00Z", "2025-01-16T00:00:00Z"} {
			_, err := r.AppendSnapshot(ctx, tx, score("ws-1", ts, float64(90-i*30)))
			require.NoError(t, err)
		}
	})
	all, err := r.ListHistory(ctx, "ws-1", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "green", all[0].RAGStatus)
	assert.Equal(t, "red", all[2].RAGStatus)

	recent, err := r.ListHistory(ctx, "ws-1", "2025-01-15", 0)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestNotFound(t *testing.T) {
	r, ctx := newRepo(t)
	_, err := r.GetWorkstream(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = r.GetScore(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = r.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	inTx(t, r, func(tx *sql.Tx) {
		assert.ErrorIs(t, r.TouchWorkstream(ctx, tx, "missing", "2025-01-01T00:00:00Z"), repo.ErrNotFound)
	})
}
