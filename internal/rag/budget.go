package rag

import "time"

// Budget is the spend position of a workstream. PlannedTotal of zero means the
// budget is not tracked.
type Budget struct {
	PlannedTotal float64
	ActualToDate float64
}

// ScoreBudget compares actual spend with a straight-line burn of the planned
// total over the window. ok is false when the dimension does not apply: budget
// suppressed by the profile, or no planned total.
func ScoreBudget(b *Budget, w Window, asOf time.Time, band Band, tracked bool) (score, variance float64, ok bool) {
	if !tracked || b == nil || b.PlannedTotal == 0 {
		return 0, 0, false
	}
	plannedToDate := b.PlannedTotal * ElapsedPct(w, asOf) / 100
	variance = round((plannedToDate-b.ActualToDate)/b.PlannedTotal*100, 6)
	return band.Map(variance), variance, true
}
