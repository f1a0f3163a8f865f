package rag

import "time"

type MilestoneStatus string

const (
	MilestoneNotStarted MilestoneStatus = "not_started"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneComplete   MilestoneStatus = "complete"
)

func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestoneNotStarted, MilestoneInProgress, MilestoneComplete:
		return true
	}
	return false
}

type Milestone struct {
	Status MilestoneStatus
	Due    time.Time
}

// Window is the planned schedule of a workstream. End >= Start.
type Window struct {
	Start time.Time
	End   time.Time
}

// OverdueGraceDays is how long an incomplete milestone may sit past its due date
// before the review-phase floor kicks in.
const OverdueGraceDays = 2

// ScheduleResult is the schedule dimension plus the figures it was derived from.
type ScheduleResult struct {
	Score          float64
	Variance       float64
	CompletionPct  float64
	ElapsedPct     float64
	OverdueFloored bool
}

// CompletionPct is the share of complete milestones. No milestones counts as 100.
func CompletionPct(ms []Milestone) float64 {
	if len(ms) == 0 {
		return 100
	}
	complete := 0
	for _, m := range ms {
		if m.Status == MilestoneComplete {
			complete++
		}
	}
	return float64(complete*100) / float64(len(ms))
}

// ElapsedPct is the share of the window elapsed at asOf, clamped to 0..100.
// A zero-length window is fully elapsed from its start onward.
func ElapsedPct(w Window, asOf time.Time) float64 {
	if !w.End.After(w.Start) {
		if asOf.Before(w.Start) {
			return 0
		}
		return 100
	}
	ratio := float64(asOf.Sub(w.Start)) / float64(w.End.Sub(w.Start))
	return clamp(ratio, 0, 1) * 100
}

// ScoreSchedule compares milestone completion with elapsed time. With
// floorOverdue set, any incomplete milestone more than OverdueGraceDays past due
// caps the score inside the amber band.
func ScoreSchedule(ms []Milestone, w Window, asOf time.Time, band Band, floorOverdue bool) ScheduleResult {
	res := ScheduleResult{
		CompletionPct: CompletionPct(ms),
		ElapsedPct:    ElapsedPct(w, asOf),
	}
	res.Variance = round(res.CompletionPct-res.ElapsedPct, 6)
	res.Score = band.Map(res.Variance)
	if floorOverdue && res.Score > amberCeiling && hasOverdue(ms, asOf) {
		res.Score = amberCeiling
		res.OverdueFloored = true
	}
	return res
}

func hasOverdue(ms []Milestone, asOf time.Time) bool {
	for _, m := range ms {
		if m.Status != MilestoneComplete && DaysBetween(m.Due, asOf) > OverdueGraceDays {
			return true
		}
	}
	return false
}

// DaysBetween counts whole calendar days (UTC) from from to to. Negative when to
// precedes from.
func DaysBetween(from, to time.Time) int {
	f := truncateDay(from)
	t := truncateDay(to)
	return int(t.Sub(f).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
