package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meridian/internal/domain"
	"meridian/internal/rag"
)

// ProfileFor loads the wizard answers of a workstream as a scoring profile.
// A workstream that never ran the wizard yields a ConfigurationError.
func (r Repo) ProfileFor(ctx context.Context, q Querier, workstreamID string) (rag.Profile, error) {
	wp, err := r.GetProfileTx(ctx, q, workstreamID)
	if err == ErrNotFound {
		return rag.Profile{}, &rag.ConfigurationError{Field: "profile", Reason: "workstream has not been configured"}
	}
	if err != nil {
		return rag.Profile{}, err
	}
	return ToProfile(wp), nil
}

func ToProfile(wp domain.WizardProfile) rag.Profile {
	return rag.Profile{
		WorkType:        rag.WorkType(wp.WorkType),
		DeadlineNature:  rag.DeadlineNature(wp.DeadlineNature),
		DeliverableType: rag.DeliverableType(wp.DeliverableType),
		BudgetExposure:  rag.BudgetExposure(wp.BudgetExposure),
		DependencyLevel: rag.DependencyLevel(wp.DependencyLevel),
		RiskLevel:       rag.RiskLevel(wp.RiskLevel),
		Phase:           rag.Phase(wp.Phase),
		UpdateFrequency: rag.UpdateFrequency(wp.UpdateFrequency),
		Audience:        rag.Audience(wp.Audience),
	}
}

func FromProfile(workstreamID string, p rag.Profile) domain.WizardProfile {
	return domain.WizardProfile{
		WorkstreamID:    workstreamID,
		WorkType:        string(p.WorkType),
		DeadlineNature:  string(p.DeadlineNature),
		DeliverableType: string(p.DeliverableType),
		BudgetExposure:  string(p.BudgetExposure),
		DependencyLevel: string(p.DependencyLevel),
		RiskLevel:       string(p.RiskLevel),
		Phase:           string(p.Phase),
		UpdateFrequency: string(p.UpdateFrequency),
		Audience:        string(p.Audience),
	}
}

// LoadScoringInput assembles the scoring snapshot of a workstream from a single
// read point q. Blocker ages are counted in calendar days up to asOf.
func (r Repo) LoadScoringInput(ctx context.Context, q Querier, workstreamID string, asOf time.Time) (rag.Input, error) {
	ws, err := r.GetWorkstreamTx(ctx, q, workstreamID)
	if err != nil {
		return rag.Input{}, err
	}
	in := rag.Input{AsOf: asOf.UTC()}
	if in.Window.Start, err = parseDate("start_date", ws.StartDate); err != nil {
		return rag.Input{}, err
	}
	if in.Window.End, err = parseDate("end_date", ws.EndDate); err != nil {
		return rag.Input{}, err
	}
	if ws.LastActivityAt != "" {
		if in.LastActivityAt, err = time.Parse(TimestampLayout, ws.LastActivityAt); err != nil {
			return rag.Input{}, &rag.InputError{Field: "last_activity_at", Reason: err.Error()}
		}
	}

	ms, err := r.ListMilestonesTx(ctx, q, workstreamID)
	if err != nil {
		return rag.Input{}, err
	}
	for _, m := range ms {
		due, err := parseDate("milestones", m.DueDate)
		if err != nil {
			return rag.Input{}, err
		}
		in.Milestones = append(in.Milestones, rag.Milestone{Status: rag.MilestoneStatus(m.Status), Due: due})
	}

	if ws.PlannedBudget != nil {
		spent, err := r.SpendToDate(ctx, q, workstreamID, asOf)
		if err != nil {
			return rag.Input{}, err
		}
		in.Budget = &rag.Budget{PlannedTotal: *ws.PlannedBudget, ActualToDate: spent}
	}

	open, err := r.ListBlockersTx(ctx, q, workstreamID, "open")
	if err != nil {
		return rag.Input{}, err
	}
	for _, b := range open {
		raised, err := parseDate("blockers", b.DateRaised)
		if err != nil {
			return rag.Input{}, err
		}
		in.Blockers = append(in.Blockers, rag.Blocker{AgeDays: rag.DaysBetween(raised, asOf)})
	}
	return in, nil
}

func parseDate(field, v string) (time.Time, error) {
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, &rag.InputError{Field: field, Reason: fmt.Sprintf("invalid date %q", v)}
	}
	return t, nil
}

// ScoreFromOutput flattens an evaluation for storage.
func ScoreFromOutput(workstreamID string, out rag.Output, calculatedAt time.Time) domain.Score {
	return domain.Score{
		WorkstreamID:     workstreamID,
		ScheduleScore:    out.ScheduleScore,
		BudgetScore:      out.BudgetScore,
		BlockerScore:     out.BlockerScore,
		CompositeScore:   out.CompositeScore,
		RAGStatus:        string(out.Status),
		IsStale:          out.IsStale,
		ScheduleVariance: out.ScheduleVariance,
		BudgetVariance:   out.BudgetVariance,
		EvaluatedAt:      out.EvaluatedAt.UTC().Format(TimestampLayout),
		CalculatedAt:     calculatedAt.UTC().Format(TimestampLayout),
	}
}

// SaveScore overwrites the current score of a workstream. Writes carrying an
// older evaluated_at than the stored row are ignored; applied reports whether
// the row changed.
func (r Repo) SaveScore(ctx context.Context, tx *sql.Tx, s domain.Score) (applied bool, err error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO rag_scores(workstream_id,schedule_score,budget_score,blocker_score,composite_score,rag_status,is_stale,schedule_variance,budget_variance,evaluated_at,calculated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(workstream_id) DO UPDATE SET schedule_score=excluded.schedule_score, budget_score=excluded.budget_score,
  blocker_score=excluded.blocker_score, composite_score=excluded.composite_score, rag_status=excluded.rag_status,
  is_stale=excluded.is_stale, schedule_variance=excluded.schedule_variance, budget_variance=excluded.budget_variance,
  evaluated_at=excluded.evaluated_at, calculated_at=excluded.calculated_at
WHERE excluded.evaluated_at >= rag_scores.evaluated_at`,
		s.WorkstreamID, s.ScheduleScore, nullableFloat(s.BudgetScore), s.BlockerScore, s.CompositeScore, s.RAGStatus,
		s.IsStale, s.ScheduleVariance, nullableFloat(s.BudgetVariance), s.EvaluatedAt, s.CalculatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const scoreCols = `workstream_id,schedule_score,budget_score,blocker_score,composite_score,rag_status,is_stale,schedule_variance,budget_variance,evaluated_at,calculated_at`

func scanScore(row rowScanner) (domain.Score, error) {
	var s domain.Score
	var budget, budgetVar sql.NullFloat64
	err := row.Scan(&s.WorkstreamID, &s.ScheduleScore, &budget, &s.BlockerScore, &s.CompositeScore, &s.RAGStatus,
		&s.IsStale, &s.ScheduleVariance, &budgetVar, &s.EvaluatedAt, &s.CalculatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if budget.Valid {
		s.BudgetScore = &budget.Float64
	}
	if budgetVar.Valid {
		s.BudgetVariance = &budgetVar.Float64
	}
	return s, err
}

func (r Repo) GetScore(ctx context.Context, workstreamID string) (domain.Score, error) {
	return r.GetScoreTx(ctx, r.DB, workstreamID)
}

func (r Repo) GetScoreTx(ctx context.Context, q Querier, workstreamID string) (domain.Score, error) {
	return scanScore(q.QueryRowContext(ctx, `SELECT `+scoreCols+` FROM rag_scores WHERE workstream_id=?`, workstreamID))
}

// AppendSnapshot adds one point to the score history. History rows are never
// updated or deleted.
func (r Repo) AppendSnapshot(ctx context.Context, tx *sql.Tx, s domain.Score) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO rag_history(workstream_id,schedule_score,budget_score,blocker_score,composite_score,rag_status,is_stale,evaluated_at) VALUES (?,?,?,?,?,?,?,?)`,
		s.WorkstreamID, s.ScheduleScore, nullableFloat(s.BudgetScore), s.BlockerScore, s.CompositeScore, s.RAGStatus, s.IsStale, s.EvaluatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListHistory returns snapshots oldest first; since filters when non-empty.
func (r Repo) ListHistory(ctx context.Context, workstreamID, since string, limit int) ([]domain.ScoreSnapshot, error) {
	query := `SELECT id,workstream_id,schedule_score,budget_score,blocker_score,composite_score,rag_status,is_stale,evaluated_at FROM rag_history WHERE workstream_id=?`
	args := []any{workstreamID}
	if since != "" {
		query += ` AND evaluated_at>=?`
		args = append(args, since)
	}
	query += ` ORDER BY evaluated_at, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ScoreSnapshot
	for rows.Next() {
		var s domain.ScoreSnapshot
		var budget sql.NullFloat64
		if err := rows.Scan(&s.ID, &s.WorkstreamID, &s.ScheduleScore, &budget, &s.BlockerScore, &s.CompositeScore, &s.RAGStatus, &s.IsStale, &s.EvaluatedAt); err != nil {
			return nil, err
		}
		if budget.Valid {
			s.BudgetScore = &budget.Float64
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// Portfolio lists active workstreams with their current scores, red first,
// then amber, green and unscored, most recently updated first within a band.
func (r Repo) Portfolio(ctx context.Context) ([]domain.PortfolioItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT w.id,w.name,COALESCE(w.description,''),w.start_date,w.end_date,w.planned_budget,w.phase,w.owner_id,w.is_archived,w.last_activity_at,w.created_at,w.updated_at,
  s.workstream_id,s.schedule_score,s.budget_score,s.blocker_score,s.composite_score,s.rag_status,s.is_stale,s.schedule_variance,s.budget_variance,s.evaluated_at,s.calculated_at
FROM workstreams w LEFT JOIN rag_scores s ON s.workstream_id = w.id
WHERE w.is_archived=0
ORDER BY CASE s.rag_status WHEN 'red' THEN 0 WHEN 'amber' THEN 1 WHEN 'green' THEN 2 ELSE 3 END, w.updated_at DESC, w.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PortfolioItem
	for rows.Next() {
		var it domain.PortfolioItem
		w := &it.Workstream
		var budget sql.NullFloat64
		var sID, sStatus, sEval, sCalc sql.NullString
		var sSched, sBudget, sBlock, sComp, sVar, sBudgetVar sql.NullFloat64
		var sStale sql.NullBool
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.StartDate, &w.EndDate, &budget, &w.Phase, &w.OwnerID, &w.IsArchived, &w.LastActivityAt, &w.CreatedAt, &w.UpdatedAt,
			&sID, &sSched, &sBudget, &sBlock, &sComp, &sStatus, &sStale, &sVar, &sBudgetVar, &sEval, &sCalc); err != nil {
			return nil, err
		}
		if budget.Valid {
			w.PlannedBudget = &budget.Float64
		}
		if sID.Valid {
			s := &domain.Score{
				WorkstreamID:     sID.String,
				ScheduleScore:    sSched.Float64,
				BlockerScore:     sBlock.Float64,
				CompositeScore:   sComp.Float64,
				RAGStatus:        sStatus.String,
				IsStale:          sStale.Bool,
				ScheduleVariance: sVar.Float64,
				EvaluatedAt:      sEval.String,
				CalculatedAt:     sCalc.String,
			}
			if sBudget.Valid {
				s.BudgetScore = &sBudget.Float64
			}
			if sBudgetVar.Valid {
				s.BudgetVariance = &sBudgetVar.Float64
			}
			it.Score = s
		}
		res = append(res, it)
	}
	return res, rows.Err()
}
