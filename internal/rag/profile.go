package rag

type WorkType string

const (
	WorkDelivery           WorkType = "delivery"
	WorkAnalysis           WorkType = "analysis"
	WorkProcessImprovement WorkType = "process_improvement"
	WorkReporting          WorkType = "reporting"
	WorkStrategy           WorkType = "strategy"
	WorkOther              WorkType = "other"
)

type DeadlineNature string

const (
	DeadlineHardContractual DeadlineNature = "hard_contractual"
	DeadlineBusinessDriven  DeadlineNature = "business_driven"
	DeadlineSelfImposed     DeadlineNature = "self_imposed"
	DeadlineOngoing         DeadlineNature = "ongoing"
)

type DeliverableType string

const (
	DeliverableDocumentReport   DeliverableType = "document_report"
	DeliverableDecisionApproval DeliverableType = "decision_approval"
	DeliverableBuiltSolution    DeliverableType = "built_solution"
	DeliverableProcessChange    DeliverableType = "process_change"
	DeliverableRecommendation   DeliverableType = "recommendation"
)

type BudgetExposure string

const (
	BudgetClientBillable   BudgetExposure = "client_billable"
	BudgetApprovedInternal BudgetExposure = "approved_internal"
	BudgetInformalNone     BudgetExposure = "informal_none"
)

type DependencyLevel string

const (
	DependencySelfContained   DependencyLevel = "self_contained"
	DependencyOneOrTwo        DependencyLevel = "depends_1_2"
	DependencyMultiple        DependencyLevel = "depends_multiple"
	DependencyBlockedExternal DependencyLevel = "blocked_external"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type Phase string

const (
	PhaseDiscovery     Phase = "discovery"
	PhasePlanning      Phase = "planning"
	PhaseInFlight      Phase = "in_flight"
	PhaseReviewClosing Phase = "review_closing"
)

type UpdateFrequency string

const (
	UpdateDaily    UpdateFrequency = "daily"
	UpdateWeekly   UpdateFrequency = "weekly"
	UpdateBiweekly UpdateFrequency = "biweekly"
	UpdateMonthly  UpdateFrequency = "monthly"
)

type Audience string

const (
	AudienceJustMe           Audience = "just_me"
	AudienceMyTeam           Audience = "my_team"
	AudienceSeniorLeadership Audience = "senior_leadership"
	AudienceExternalClient   Audience = "external_client"
)

// Profile is the nine-answer scoring wizard captured once per workstream.
// WorkType, DeliverableType and Audience are informational only.
type Profile struct {
	WorkType        WorkType        `json:"work_type" yaml:"work_type"`
	DeadlineNature  DeadlineNature  `json:"deadline_nature" yaml:"deadline_nature"`
	DeliverableType DeliverableType `json:"deliverable_type" yaml:"deliverable_type"`
	BudgetExposure  BudgetExposure  `json:"budget_exposure" yaml:"budget_exposure"`
	DependencyLevel DependencyLevel `json:"dependency_level" yaml:"dependency_level"`
	RiskLevel       RiskLevel       `json:"risk_level" yaml:"risk_level"`
	Phase           Phase           `json:"phase" yaml:"phase"`
	UpdateFrequency UpdateFrequency `json:"update_frequency" yaml:"update_frequency"`
	Audience        Audience        `json:"audience" yaml:"audience"`
}

// Question lists the allowed answers for one wizard field, in wizard order.
type Question struct {
	Field   string
	Choices []string
}

// Questions is the wizard in presentation order.
var Questions = []Question{
	{"work_type", []string{"delivery", "analysis", "process_improvement", "reporting", "strategy", "other"}},
	{"deadline_nature", []string{"hard_contractual", "business_driven", "self_imposed", "ongoing"}},
	{"deliverable_type", []string{"document_report", "decision_approval", "built_solution", "process_change", "recommendation"}},
	{"budget_exposure", []string{"client_billable", "approved_internal", "informal_none"}},
	{"dependency_level", []string{"self_contained", "depends_1_2", "depends_multiple", "blocked_external"}},
	{"risk_level", []string{"low", "medium", "high", "critical"}},
	{"phase", []string{"discovery", "planning", "in_flight", "review_closing"}},
	{"update_frequency", []string{"daily", "weekly", "biweekly", "monthly"}},
	{"audience", []string{"just_me", "my_team", "senior_leadership", "external_client"}},
}

// Answers returns the profile as field -> answer pairs keyed like Questions.
func (p Profile) Answers() map[string]string {
	return map[string]string{
		"work_type":        string(p.WorkType),
		"deadline_nature":  string(p.DeadlineNature),
		"deliverable_type": string(p.DeliverableType),
		"budget_exposure":  string(p.BudgetExposure),
		"dependency_level": string(p.DependencyLevel),
		"risk_level":       string(p.RiskLevel),
		"phase":            string(p.Phase),
		"update_frequency": string(p.UpdateFrequency),
		"audience":         string(p.Audience),
	}
}

// Validate checks every answer against its domain. Nothing is defaulted.
func (p Profile) Validate() error {
	answers := p.Answers()
	for _, q := range Questions {
		v := answers[q.Field]
		if v == "" {
			return &ConfigurationError{Field: q.Field, Reason: "answer is required"}
		}
		if !contains(q.Choices, v) {
			return &ConfigurationError{Field: q.Field, Value: v, Reason: "not an allowed answer"}
		}
	}
	return nil
}

// ProfileFromAnswers builds a Profile from field -> answer pairs and validates it.
func ProfileFromAnswers(answers map[string]string) (Profile, error) {
	p := Profile{
		WorkType:        WorkType(answers["work_type"]),
		DeadlineNature:  DeadlineNature(answers["deadline_nature"]),
		DeliverableType: DeliverableType(answers["deliverable_type"]),
		BudgetExposure:  BudgetExposure(answers["budget_exposure"]),
		DependencyLevel: DependencyLevel(answers["dependency_level"]),
		RiskLevel:       RiskLevel(answers["risk_level"]),
		Phase:           Phase(answers["phase"]),
		UpdateFrequency: UpdateFrequency(answers["update_frequency"]),
		Audience:        Audience(answers["audience"]),
	}
	return p, p.Validate()
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}
