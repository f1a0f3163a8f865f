package rag

import "time"

// DimensionScores are the three dimension scores. Budget is nil when the
// dimension does not apply.
type DimensionScores struct {
	Schedule float64
	Budget   *float64
	Blocker  float64
}

// Aggregate combines the dimension scores into a composite score and status.
// Weights already exclude a suppressed budget; if the budget is absent for
// another reason its weight is redistributed here so the triple still sums to 1.
func Aggregate(s DimensionScores, w Weights) (float64, Status) {
	if s.Budget == nil && w.Budget > 0 {
		w = w.WithoutBudget()
	}
	composite := s.Schedule*w.Schedule + s.Blocker*w.Blocker
	if s.Budget != nil {
		composite += *s.Budget * w.Budget
	}
	composite = round(clamp(composite, 0, 100), 2)
	return composite, StatusFor(composite)
}

// StaleAfterDays maps an update cadence to the number of days without activity
// after which a workstream is stale.
var StaleAfterDays = map[UpdateFrequency]int{
	UpdateDaily:    2,
	UpdateWeekly:   8,
	UpdateBiweekly: 16,
	UpdateMonthly:  35,
}

// EvaluateStaleness reports whether more than the cadence window has passed
// since lastActivity. It is independent of the RAG status.
func EvaluateStaleness(lastActivity, asOf time.Time, cadence UpdateFrequency) bool {
	days, ok := StaleAfterDays[cadence]
	if !ok {
		return false
	}
	return asOf.Sub(lastActivity) > time.Duration(days)*24*time.Hour
}
