package domain

// Dates are YYYY-MM-DD strings and timestamps RFC3339 UTC strings, as stored.

type Workstream struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	StartDate      string   `json:"start_date" format:"date"`
	EndDate        string   `json:"end_date" format:"date"`
	PlannedBudget  *float64 `json:"planned_budget,omitempty"`
	Phase          string   `json:"phase" enum:"discovery,planning,in_flight,review_closing"`
	OwnerID        string   `json:"owner_id"`
	IsArchived     bool     `json:"is_archived"`
	LastActivityAt string   `json:"last_activity_at" format:"date-time"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
}

type WizardProfile struct {
	WorkstreamID    string `json:"workstream_id"`
	WorkType        string `json:"work_type" enum:"delivery,analysis,process_improvement,reporting,strategy,other"`
	DeadlineNature  string `json:"deadline_nature" enum:"hard_contractual,business_driven,self_imposed,ongoing"`
	DeliverableType string `json:"deliverable_type" enum:"document_report,decision_approval,built_solution,process_change,recommendation"`
	BudgetExposure  string `json:"budget_exposure" enum:"client_billable,approved_internal,informal_none"`
	DependencyLevel string `json:"dependency_level" enum:"self_contained,depends_1_2,depends_multiple,blocked_external"`
	RiskLevel       string `json:"risk_level" enum:"low,medium,high,critical"`
	Phase           string `json:"phase" enum:"discovery,planning,in_flight,review_closing"`
	UpdateFrequency string `json:"update_frequency" enum:"daily,weekly,biweekly,monthly"`
	Audience        string `json:"audience" enum:"just_me,my_team,senior_leadership,external_client"`
	ConfiguredBy    string `json:"configured_by"`
	ConfiguredAt    string `json:"configured_at" format:"date-time"`
}

type Milestone struct {
	ID           string `json:"id"`
	WorkstreamID string `json:"workstream_id"`
	Name         string `json:"name"`
	Status       string `json:"status" enum:"not_started,in_progress,complete"`
	DueDate      string `json:"due_date" format:"date"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type SpendEntry struct {
	ID           string  `json:"id"`
	WorkstreamID string  `json:"workstream_id"`
	Amount       float64 `json:"amount"`
	SpentOn      string  `json:"spent_on" format:"date"`
	Note         string  `json:"note,omitempty"`
	CreatedBy    string  `json:"created_by"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type Blocker struct {
	ID           string  `json:"id"`
	WorkstreamID string  `json:"workstream_id"`
	Description  string  `json:"description"`
	DateRaised   string  `json:"date_raised" format:"date"`
	Status       string  `json:"status" enum:"open,resolved"`
	ResolvedAt   *string `json:"resolved_at,omitempty" format:"date-time"`
	CreatedBy    string  `json:"created_by"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

// Score is the current rating of a workstream, overwritten wholesale on each run.
type Score struct {
	WorkstreamID     string   `json:"workstream_id"`
	ScheduleScore    float64  `json:"schedule_score"`
	BudgetScore      *float64 `json:"budget_score"`
	BlockerScore     float64  `json:"blocker_score"`
	CompositeScore   float64  `json:"composite_score"`
	RAGStatus        string   `json:"rag_status" enum:"green,amber,red"`
	IsStale          bool     `json:"is_stale"`
	ScheduleVariance float64  `json:"schedule_variance"`
	BudgetVariance   *float64 `json:"budget_variance,omitempty"`
	EvaluatedAt      string   `json:"evaluated_at" format:"date-time"`
	CalculatedAt     string   `json:"calculated_at" format:"date-time"`
}

// ScoreSnapshot is one append-only point of a workstream's score history.
type ScoreSnapshot struct {
	ID             int64    `json:"id"`
	WorkstreamID   string   `json:"workstream_id"`
	ScheduleScore  float64  `json:"schedule_score"`
	BudgetScore    *float64 `json:"budget_score"`
	BlockerScore   float64  `json:"blocker_score"`
	CompositeScore float64  `json:"composite_score"`
	RAGStatus      string   `json:"rag_status"`
	IsStale        bool     `json:"is_stale"`
	EvaluatedAt    string   `json:"evaluated_at" format:"date-time"`
}

// PortfolioItem is a workstream joined with its current score, if any.
type PortfolioItem struct {
	Workstream Workstream `json:"workstream"`
	Score      *Score     `json:"score,omitempty"`
}

type OverdueMilestone struct {
	Milestone      Milestone `json:"milestone"`
	WorkstreamName string    `json:"workstream_name"`
	DaysOverdue    int       `json:"days_overdue"`
}

type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	WorkstreamID string `json:"workstream_id,omitempty"`
	EntityKind   string `json:"entity_kind"`
	EntityID     string `json:"entity_id,omitempty"`
	ActorID      string `json:"actor_id"`
	Payload      string `json:"payload_json"`
}
