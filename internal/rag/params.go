package rag

import (
	"fmt"
	"math"
)

// Base weights and thresholds before any wizard rule applies.
const (
	BaseScheduleWeight = 0.40
	BaseBudgetWeight   = 0.35
	BaseBlockerWeight  = 0.25

	ClientBillableBudgetWeight = 0.45

	// RiskCompression is the share of the Amber-to-Red gap removed for
	// high and critical risk workstreams.
	RiskCompression = 0.5

	weightTolerance = 1e-9
)

// Weights is the per-dimension weight triple. It always sums to 1.
type Weights struct {
	Schedule float64 `json:"schedule"`
	Budget   float64 `json:"budget"`
	Blocker  float64 `json:"blocker"`
}

func (w Weights) Sum() float64 { return w.Schedule + w.Budget + w.Blocker }

// Validate checks that the triple is non-negative and sums to 1.
func (w Weights) Validate() error {
	if w.Schedule < 0 || w.Budget < 0 || w.Blocker < 0 {
		return fmt.Errorf("negative weight in %+v", w)
	}
	if math.Abs(w.Sum()-1) > weightTolerance {
		return fmt.Errorf("weights sum to %.6f, must sum to 1", w.Sum())
	}
	return nil
}

// WithBudget sets the Budget weight and scales Schedule and Blocker to share the
// remainder in their current ratio.
func (w Weights) WithBudget(budget float64) Weights {
	rest := w.Schedule + w.Blocker
	if rest <= 0 {
		return Weights{Schedule: (1 - budget) / 2, Budget: budget, Blocker: (1 - budget) / 2}
	}
	scale := (1 - budget) / rest
	return Weights{Schedule: w.Schedule * scale, Budget: budget, Blocker: w.Blocker * scale}
}

// WithoutBudget drops the Budget weight and redistributes it proportionally.
func (w Weights) WithoutBudget() Weights { return w.WithBudget(0) }

// Band holds the Amber and Red variance boundaries of a dimension, in signed
// percentage points. Red <= Amber < 0.
type Band struct {
	Amber float64 `json:"amber"`
	Red   float64 `json:"red"`
}

// compress pulls Red toward Amber by fraction c of the gap. Red never crosses Amber.
func (b Band) compress(c float64) Band {
	return Band{Amber: b.Amber, Red: b.Amber + (b.Red-b.Amber)*(1-c)}
}

// AgeBands splits a single blocker's age into low (< Mid), mid (Mid..High) and
// high (> High).
type AgeBands struct {
	Mid  float64 `json:"mid_days"`
	High float64 `json:"high_days"`
}

func (a AgeBands) compress(c float64) AgeBands {
	return AgeBands{Mid: a.Mid, High: a.Mid + (a.High-a.Mid)*(1-c)}
}

// Parameters are the effective weights and thresholds resolved from a Profile.
type Parameters struct {
	Weights       Weights  `json:"weights"`
	Schedule      Band     `json:"schedule"`
	Budget        Band     `json:"budget"`
	Blocker       AgeBands `json:"blocker"`
	BudgetTracked bool     `json:"budget_tracked"`
	Compression   float64  `json:"compression"`
	OverdueFloor  bool     `json:"overdue_floor"`
}

// Rule is one step of the resolution pipeline.
type Rule struct {
	Name  string
	Apply func(Profile, Parameters) Parameters
}

// Rules is the resolution pipeline. Order matters: each rule composes with the
// output of the previous one.
var Rules = []Rule{
	{Name: "base", Apply: baseRule},
	{Name: "hard_deadline", Apply: hardDeadlineRule},
	{Name: "client_billable", Apply: clientBillableRule},
	{Name: "budget_suppressed", Apply: budgetSuppressedRule},
	{Name: "external_dependency", Apply: externalDependencyRule},
	{Name: "risk_compression", Apply: riskCompressionRule},
	{Name: "review_phase", Apply: reviewPhaseRule},
}

// Resolve validates p and folds it through Rules.
func Resolve(p Profile) (Parameters, error) {
	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	var params Parameters
	for _, r := range Rules {
		params = r.Apply(p, params)
	}
	return params, nil
}

func baseRule(_ Profile, _ Parameters) Parameters {
	return Parameters{
		Weights:       Weights{Schedule: BaseScheduleWeight, Budget: BaseBudgetWeight, Blocker: BaseBlockerWeight},
		Schedule:      Band{Amber: -10, Red: -25},
		Budget:        Band{Amber: -5, Red: -15},
		Blocker:       AgeBands{Mid: 3, High: 7},
		BudgetTracked: true,
	}
}

func hardDeadlineRule(p Profile, params Parameters) Parameters {
	if p.DeadlineNature == DeadlineHardContractual {
		params.Schedule = Band{Amber: -5, Red: -15}
	}
	return params
}

func clientBillableRule(p Profile, params Parameters) Parameters {
	if p.BudgetExposure == BudgetClientBillable {
		params.Weights = params.Weights.WithBudget(ClientBillableBudgetWeight)
		params.Budget = Band{Amber: -3, Red: -10}
	}
	return params
}

func budgetSuppressedRule(p Profile, params Parameters) Parameters {
	if p.BudgetExposure == BudgetInformalNone {
		params.Weights = params.Weights.WithoutBudget()
		params.BudgetTracked = false
	}
	return params
}

func externalDependencyRule(p Profile, params Parameters) Parameters {
	if p.DependencyLevel == DependencyBlockedExternal {
		params.Blocker = AgeBands{Mid: params.Blocker.Mid / 2, High: params.Blocker.High / 2}
	}
	return params
}

func riskCompressionRule(p Profile, params Parameters) Parameters {
	if p.RiskLevel != RiskHigh && p.RiskLevel != RiskCritical {
		return params
	}
	params.Compression = RiskCompression
	params.Schedule = params.Schedule.compress(RiskCompression)
	if params.BudgetTracked {
		params.Budget = params.Budget.compress(RiskCompression)
	}
	params.Blocker = params.Blocker.compress(RiskCompression)
	return params
}

func reviewPhaseRule(p Profile, params Parameters) Parameters {
	if p.Phase == PhaseReviewClosing {
		params.OverdueFloor = true
	}
	return params
}
