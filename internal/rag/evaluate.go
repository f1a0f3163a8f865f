package rag

import "time"

// Input is the scoring snapshot for one workstream at one instant.
type Input struct {
	Milestones     []Milestone
	Window         Window
	Budget         *Budget
	Blockers       []Blocker
	AsOf           time.Time
	LastActivityAt time.Time
}

// Output is the full result of one evaluation. It is always recomputed whole.
type Output struct {
	ScheduleScore    float64    `json:"schedule_score"`
	BudgetScore      *float64   `json:"budget_score"`
	BlockerScore     float64    `json:"blocker_score"`
	CompositeScore   float64    `json:"composite_score"`
	Status           Status     `json:"rag_status"`
	IsStale          bool       `json:"is_stale"`
	EvaluatedAt      time.Time  `json:"evaluated_at"`
	ScheduleVariance float64    `json:"schedule_variance"`
	BudgetVariance   *float64   `json:"budget_variance,omitempty"`
	Parameters       Parameters `json:"parameters"`
}

// Validate rejects snapshots that indicate upstream data defects.
func (in Input) Validate() error {
	if in.AsOf.IsZero() {
		return inputErr("as_of", "evaluation instant is required")
	}
	if in.LastActivityAt.IsZero() {
		return inputErr("last_activity_at", "last activity timestamp is required")
	}
	if in.Window.Start.IsZero() || in.Window.End.IsZero() {
		return inputErr("schedule_window", "start and end dates are required")
	}
	if in.Window.End.Before(in.Window.Start) {
		return inputErr("schedule_window", "end %s is before start %s",
			in.Window.End.Format(time.DateOnly), in.Window.Start.Format(time.DateOnly))
	}
	for i, m := range in.Milestones {
		if !m.Status.Valid() {
			return inputErr("milestones", "milestone %d has unknown status %q", i, m.Status)
		}
		if m.Due.IsZero() {
			return inputErr("milestones", "milestone %d has no due date", i)
		}
	}
	if in.Budget != nil {
		if in.Budget.PlannedTotal < 0 {
			return inputErr("budget", "planned total %.2f is negative", in.Budget.PlannedTotal)
		}
		if in.Budget.ActualToDate < 0 {
			return inputErr("budget", "actual spend %.2f is negative", in.Budget.ActualToDate)
		}
	}
	for i, b := range in.Blockers {
		if b.AgeDays < 0 {
			return inputErr("blockers", "blocker %d has negative age %d", i, b.AgeDays)
		}
	}
	return nil
}

// Evaluate runs the whole engine: resolve the profile, validate the snapshot,
// score each dimension, aggregate and evaluate staleness. It is a pure function
// of its arguments.
func Evaluate(in Input, p Profile) (Output, error) {
	params, err := Resolve(p)
	if err != nil {
		return Output{}, err
	}
	if err := in.Validate(); err != nil {
		return Output{}, err
	}

	sched := ScoreSchedule(in.Milestones, in.Window, in.AsOf, params.Schedule, params.OverdueFloor)
	blocker := ScoreBlocker(in.Blockers, params.Blocker)

	out := Output{
		ScheduleScore:    round(sched.Score, 2),
		BlockerScore:     round(blocker, 2),
		EvaluatedAt:      in.AsOf,
		ScheduleVariance: sched.Variance,
	}
	if score, variance, ok := ScoreBudget(in.Budget, in.Window, in.AsOf, params.Budget, params.BudgetTracked); ok {
		s := round(score, 2)
		out.BudgetScore = &s
		out.BudgetVariance = &variance
	} else if params.Weights.Budget > 0 {
		params.Weights = params.Weights.WithoutBudget()
	}
	out.Parameters = params
	out.CompositeScore, out.Status = Aggregate(DimensionScores{
		Schedule: out.ScheduleScore,
		Budget:   out.BudgetScore,
		Blocker:  out.BlockerScore,
	}, params.Weights)
	out.IsStale = EvaluateStaleness(in.LastActivityAt, in.AsOf, p.UpdateFrequency)
	return out, nil
}
