package server

import (
	"encoding/json"

	"meridian/internal/domain"
	"meridian/internal/engine"
	"meridian/internal/rag"
)

// Request payloads

// ProfileRequest carries raw wizard answers. Values are checked by the
// scoring engine so an unknown answer is reported as not_configured.
type ProfileRequest struct {
	WorkType        string `json:"work_type"`
	DeadlineNature  string `json:"deadline_nature"`
	DeliverableType string `json:"deliverable_type"`
	BudgetExposure  string `json:"budget_exposure"`
	DependencyLevel string `json:"dependency_level"`
	RiskLevel       string `json:"risk_level"`
	Phase           string `json:"phase"`
	UpdateFrequency string `json:"update_frequency"`
	Audience        string `json:"audience"`
}

func (p ProfileRequest) toProfile() rag.Profile {
	return rag.Profile{
		WorkType:        rag.WorkType(p.WorkType),
		DeadlineNature:  rag.DeadlineNature(p.DeadlineNature),
		DeliverableType: rag.DeliverableType(p.DeliverableType),
		BudgetExposure:  rag.BudgetExposure(p.BudgetExposure),
		DependencyLevel: rag.DependencyLevel(p.DependencyLevel),
		RiskLevel:       rag.RiskLevel(p.RiskLevel),
		Phase:           rag.Phase(p.Phase),
		UpdateFrequency: rag.UpdateFrequency(p.UpdateFrequency),
		Audience:        rag.Audience(p.Audience),
	}
}

type CreateWorkstreamRequest struct {
	Name          string          `json:"name"`
	Description   *string         `json:"description,omitempty"`
	StartDate     string          `json:"start_date" doc:"YYYY-MM-DD"`
	EndDate       string          `json:"end_date" doc:"YYYY-MM-DD"`
	PlannedBudget *float64        `json:"planned_budget,omitempty"`
	Profile       *ProfileRequest `json:"profile,omitempty"`
}

type UpdateWorkstreamRequest struct {
	Name          *string  `json:"name,omitempty"`
	Description   *string  `json:"description,omitempty"`
	StartDate     *string  `json:"start_date,omitempty"`
	EndDate       *string  `json:"end_date,omitempty"`
	PlannedBudget *float64 `json:"planned_budget,omitempty"`
	ClearBudget   bool     `json:"clear_budget,omitempty"`
}

type CreateMilestoneRequest struct {
	Name    string `json:"name"`
	Status  string `json:"status,omitempty" enum:"not_started,in_progress,complete"`
	DueDate string `json:"due_date" doc:"YYYY-MM-DD"`
}

type UpdateMilestoneRequest struct {
	Name    *string `json:"name,omitempty"`
	Status  *string `json:"status,omitempty" enum:"not_started,in_progress,complete"`
	DueDate *string `json:"due_date,omitempty"`
}

type CreateSpendRequest struct {
	Amount  float64 `json:"amount"`
	SpentOn *string `json:"spent_on,omitempty" doc:"YYYY-MM-DD, defaults to today"`
	Note    *string `json:"note,omitempty"`
}

type CreateBlockerRequest struct {
	Description string  `json:"description"`
	DateRaised  *string `json:"date_raised,omitempty" doc:"YYYY-MM-DD, defaults to today"`
}

// Response payloads

type QuestionResponse struct {
	Field   string   `json:"field"`
	Choices []string `json:"choices"`
}

type WorkstreamResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	PlannedBudget  *float64 `json:"planned_budget,omitempty"`
	Phase          string   `json:"phase"`
	OwnerID        string   `json:"owner_id"`
	IsArchived     bool     `json:"is_archived"`
	LastActivityAt string   `json:"last_activity_at"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

type ProfileResponse struct {
	WorkstreamID string            `json:"workstream_id"`
	Answers      map[string]string `json:"answers"`
	ConfiguredBy string            `json:"configured_by"`
	ConfiguredAt string            `json:"configured_at"`
}

type MilestoneResponse struct {
	ID           string `json:"id"`
	WorkstreamID string `json:"workstream_id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	DueDate      string `json:"due_date"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type OverdueMilestoneResponse struct {
	Milestone      MilestoneResponse `json:"milestone"`
	WorkstreamName string            `json:"workstream_name"`
	DaysOverdue    int               `json:"days_overdue"`
}

type SpendResponse struct {
	ID           string  `json:"id"`
	WorkstreamID string  `json:"workstream_id"`
	Amount       float64 `json:"amount"`
	SpentOn      string  `json:"spent_on"`
	Note         string  `json:"note,omitempty"`
	CreatedBy    string  `json:"created_by"`
	CreatedAt    string  `json:"created_at"`
}

type BlockerResponse struct {
	ID           string  `json:"id"`
	WorkstreamID string  `json:"workstream_id"`
	Description  string  `json:"description"`
	DateRaised   string  `json:"date_raised"`
	Status       string  `json:"status"`
	ResolvedAt   *string `json:"resolved_at,omitempty"`
	CreatedBy    string  `json:"created_by"`
	CreatedAt    string  `json:"created_at"`
}

type ScoreResponse struct {
	WorkstreamID     string   `json:"workstream_id"`
	ScheduleScore    float64  `json:"schedule_score"`
	BudgetScore      *float64 `json:"budget_score"`
	BlockerScore     float64  `json:"blocker_score"`
	CompositeScore   float64  `json:"composite_score"`
	RAGStatus        string   `json:"rag_status"`
	IsStale          bool     `json:"is_stale"`
	ScheduleVariance float64  `json:"schedule_variance"`
	BudgetVariance   *float64 `json:"budget_variance,omitempty"`
	EvaluatedAt      string   `json:"evaluated_at"`
	CalculatedAt     string   `json:"calculated_at"`
}

type SnapshotResponse struct {
	ID             int64    `json:"id"`
	WorkstreamID   string   `json:"workstream_id"`
	CompositeScore float64  `json:"composite_score"`
	ScheduleScore  float64  `json:"schedule_score"`
	BudgetScore    *float64 `json:"budget_score"`
	BlockerScore   float64  `json:"blocker_score"`
	RAGStatus      string   `json:"rag_status"`
	IsStale        bool     `json:"is_stale"`
	EvaluatedAt    string   `json:"evaluated_at"`
}

type PortfolioEntry struct {
	Workstream WorkstreamResponse `json:"workstream"`
	Score      *ScoreResponse     `json:"score,omitempty"`
}

type PortfolioResponse struct {
	Items   []PortfolioEntry        `json:"items"`
	Summary engine.PortfolioSummary `json:"summary"`
}

type EventResponse struct {
	ID           int64          `json:"id"`
	TS           string         `json:"ts"`
	Type         string         `json:"type"`
	WorkstreamID string         `json:"workstream_id,omitempty"`
	EntityKind   string         `json:"entity_kind"`
	EntityID     string         `json:"entity_id,omitempty"`
	ActorID      string         `json:"actor_id"`
	Payload      map[string]any `json:"payload"`
}

func workstreamResponse(w domain.Workstream) WorkstreamResponse {
	return WorkstreamResponse(w)
}

func mapWorkstreams(items []domain.Workstream) []WorkstreamResponse {
	out := make([]WorkstreamResponse, 0, len(items))
	for _, w := range items {
		out = append(out, workstreamResponse(w))
	}
	return out
}

func profileResponse(p domain.WizardProfile) ProfileResponse {
	return ProfileResponse{
		WorkstreamID: p.WorkstreamID,
		Answers: map[string]string{
			"work_type":        p.WorkType,
			"deadline_nature":  p.DeadlineNature,
			"deliverable_type": p.DeliverableType,
			"budget_exposure":  p.BudgetExposure,
			"dependency_level": p.DependencyLevel,
			"risk_level":       p.RiskLevel,
			"phase":            p.Phase,
			"update_frequency": p.UpdateFrequency,
			"audience":         p.Audience,
		},
		ConfiguredBy: p.ConfiguredBy,
		ConfiguredAt: p.ConfiguredAt,
	}
}

func milestoneResponse(m domain.Milestone) MilestoneResponse {
	return MilestoneResponse(m)
}

func spendResponse(s domain.SpendEntry) SpendResponse {
	return SpendResponse(s)
}

func blockerResponse(b domain.Blocker) BlockerResponse {
	return BlockerResponse(b)
}

func scoreResponse(s domain.Score) ScoreResponse {
	return ScoreResponse(s)
}

func snapshotResponse(s domain.ScoreSnapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:             s.ID,
		WorkstreamID:   s.WorkstreamID,
		CompositeScore: s.CompositeScore,
		ScheduleScore:  s.ScheduleScore,
		BudgetScore:    s.BudgetScore,
		BlockerScore:   s.BlockerScore,
		RAGStatus:      s.RAGStatus,
		IsStale:        s.IsStale,
		EvaluatedAt:    s.EvaluatedAt,
	}
}

func portfolioResponse(v engine.PortfolioView) PortfolioResponse {
	items := make([]PortfolioEntry, 0, len(v.Items))
	for _, it := range v.Items {
		entry := PortfolioEntry{Workstream: workstreamResponse(it.Workstream)}
		if it.Score != nil {
			s := scoreResponse(*it.Score)
			entry.Score = &s
		}
		items = append(items, entry)
	}
	return PortfolioResponse{Items: items, Summary: v.Summary}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		TS:           e.TS,
		Type:         e.Type,
		WorkstreamID: e.WorkstreamID,
		EntityKind:   e.EntityKind,
		EntityID:     e.EntityID,
		ActorID:      e.ActorID,
		Payload:      decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}
