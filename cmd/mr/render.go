package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"meridian/internal/domain"
	"meridian/internal/engine"
	"meridian/internal/rag"
)

var (
	greenStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3FB950"))
	amberStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D29922"))
	redStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F85149"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
)

func statusLabel(status string) string {
	switch rag.Status(status) {
	case rag.StatusGreen:
		return greenStyle.Render("GREEN")
	case rag.StatusAmber:
		return amberStyle.Render("AMBER")
	case rag.StatusRed:
		return redStyle.Render("RED")
	default:
		return mutedStyle.Render("unscored")
	}
}

func staleLabel(stale bool) string {
	if stale {
		return amberStyle.Render("stale")
	}
	return ""
}

func budgetCell(v *float64) string {
	if v == nil {
		return mutedStyle.Render("n/a")
	}
	return fmt.Sprintf("%.2f", *v)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func renderWorkstreams(items []domain.Workstream) {
	tw := newTable(table.Row{"ID", "Name", "Phase", "Start", "End", "Budget", "Archived"})
	for _, w := range items {
		tw.AppendRow(table.Row{w.ID, w.Name, w.Phase, w.StartDate, w.EndDate, budgetCell(w.PlannedBudget), w.IsArchived})
	}
	tw.Render()
}

func renderScore(s domain.Score) {
	fmt.Printf("%s  %s %.2f %s\n", headStyle.Render(s.WorkstreamID), statusLabel(s.RAGStatus), s.CompositeScore, staleLabel(s.IsStale))
	tw := newTable(table.Row{"Dimension", "Score", "Variance"})
	tw.AppendRow(table.Row{"schedule", fmt.Sprintf("%.2f", s.ScheduleScore), fmt.Sprintf("%.2f", s.ScheduleVariance)})
	tw.AppendRow(table.Row{"budget", budgetCell(s.BudgetScore), budgetCell(s.BudgetVariance)})
	tw.AppendRow(table.Row{"blockers", fmt.Sprintf("%.2f", s.BlockerScore), ""})
	tw.Render()
	fmt.Println(mutedStyle.Render("evaluated " + s.EvaluatedAt))
}

func renderDetail(d engine.WorkstreamDetail) {
	w := d.Workstream
	fmt.Printf("%s %s\n", headStyle.Render(w.Name), mutedStyle.Render("("+w.ID+")"))
	fmt.Printf("window %s .. %s  phase %s  spend %.2f / %s\n", w.StartDate, w.EndDate, w.Phase, d.SpendToDate, budgetCell(w.PlannedBudget))
	if d.Profile == nil {
		fmt.Println(mutedStyle.Render("not configured: run 'mr profile set " + w.ID + "'"))
	}
	if d.Score != nil {
		renderScore(*d.Score)
	}
	if len(d.Milestones) > 0 {
		renderMilestones(d.Milestones)
	}
	if len(d.Blockers) > 0 {
		renderBlockers(d.Blockers)
	}
}

func renderQuestions(qs []rag.Question) {
	tw := newTable(table.Row{"#", "Field", "Answers"})
	for i, q := range qs {
		tw.AppendRow(table.Row{i + 1, q.Field, strings.Join(q.Choices, ", ")})
	}
	tw.Render()
}

func renderMilestones(items []domain.Milestone) {
	tw := newTable(table.Row{"ID", "Name", "Status", "Due"})
	for _, m := range items {
		tw.AppendRow(table.Row{m.ID, m.Name, m.Status, m.DueDate})
	}
	tw.Render()
}

func renderSpend(items []domain.SpendEntry) {
	tw := newTable(table.Row{"ID", "Spent on", "Amount", "Note"})
	total := 0.0
	for _, s := range items {
		total += s.Amount
		tw.AppendRow(table.Row{s.ID, s.SpentOn, fmt.Sprintf("%.2f", s.Amount), s.Note})
	}
	tw.AppendFooter(table.Row{"", "total", fmt.Sprintf("%.2f", total), ""})
	tw.Render()
}

func renderBlockers(items []domain.Blocker) {
	tw := newTable(table.Row{"ID", "Description", "Raised", "Status"})
	for _, b := range items {
		status := b.Status
		if status == "open" {
			status = redStyle.Render(status)
		}
		tw.AppendRow(table.Row{b.ID, b.Description, b.DateRaised, status})
	}
	tw.Render()
}

func renderHistory(items []domain.ScoreSnapshot) {
	tw := newTable(table.Row{"Evaluated", "Composite", "Status", "Schedule", "Budget", "Blockers", ""})
	for _, s := range items {
		tw.AppendRow(table.Row{
			s.EvaluatedAt,
			fmt.Sprintf("%.2f", s.CompositeScore),
			statusLabel(s.RAGStatus),
			fmt.Sprintf("%.2f", s.ScheduleScore),
			budgetCell(s.BudgetScore),
			fmt.Sprintf("%.2f", s.BlockerScore),
			staleLabel(s.IsStale),
		})
	}
	tw.Render()
}

func renderPortfolio(v engine.PortfolioView) {
	sum := v.Summary
	fmt.Printf("%d active: %s %d  %s %d  %s %d  %s %d  stale %d\n",
		sum.Total,
		redStyle.Render("red"), sum.Red,
		amberStyle.Render("amber"), sum.Amber,
		greenStyle.Render("green"), sum.Green,
		mutedStyle.Render("unscored"), sum.Unscored,
		sum.Stale)
	tw := newTable(table.Row{"Status", "Composite", "Workstream", "Phase", "End", ""})
	for _, it := range v.Items {
		status, composite, stale := "", "", ""
		if it.Score != nil {
			status = it.Score.RAGStatus
			composite = fmt.Sprintf("%.2f", it.Score.CompositeScore)
			stale = staleLabel(it.Score.IsStale)
		}
		tw.AppendRow(table.Row{statusLabel(status), composite, it.Workstream.Name, it.Workstream.Phase, it.Workstream.EndDate, stale})
	}
	tw.Render()
}

func renderOverdue(items []domain.OverdueMilestone) {
	tw := newTable(table.Row{"Workstream", "Milestone", "Due", "Days overdue"})
	for _, o := range items {
		tw.AppendRow(table.Row{o.WorkstreamName, o.Milestone.Name, o.Milestone.DueDate, redStyle.Render(fmt.Sprint(o.DaysOverdue))})
	}
	tw.Render()
}

func renderEvents(items []domain.Event) {
	tw := newTable(table.Row{"ID", "TS", "Type", "Workstream", "Actor", "Payload"})
	for _, e := range items {
		tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.WorkstreamID, e.ActorID, e.Payload})
	}
	tw.Render()
}
