package engine

import (
	"context"
	"database/sql"
	"strings"

	"meridian/internal/domain"
	"meridian/internal/events"
	"meridian/internal/rag"
)

type MilestoneCreateOptions struct {
	WorkstreamID string
	Name         string
	Status       string
	DueDate      string
	ActorID      string
}

func (e Engine) AddMilestone(ctx context.Context, opts MilestoneCreateOptions) (domain.Milestone, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Milestone{}, invalid("name", "is required")
	}
	if opts.Status == "" {
		opts.Status = string(rag.MilestoneNotStarted)
	}
	if !rag.MilestoneStatus(opts.Status).Valid() {
		return domain.Milestone{}, invalid("status", "unknown milestone status %q", opts.Status)
	}
	if _, err := parseDay("due_date", opts.DueDate); err != nil {
		return domain.Milestone{}, err
	}
	now := e.timestamp()
	m := domain.Milestone{
		ID:           newID(),
		WorkstreamID: opts.WorkstreamID,
		Name:         name,
		Status:       opts.Status,
		DueDate:      opts.DueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := e.mutate(ctx, opts.WorkstreamID, "milestone.create", opts.ActorID, func(tx *sql.Tx, _ domain.Workstream) error {
		if err := e.Repo.InsertMilestone(ctx, tx, m); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "milestone.create", m.WorkstreamID, "milestone", m.ID, opts.ActorID,
			events.EventPayload{"name": m.Name, "status": m.Status, "due_date": m.DueDate})
	})
	if err != nil {
		return domain.Milestone{}, err
	}
	return m, nil
}

type MilestoneUpdateOptions struct {
	ID      string
	Name    *string
	Status  *string
	DueDate *string
	ActorID string
}

func (e Engine) UpdateMilestone(ctx context.Context, opts MilestoneUpdateOptions) (domain.Milestone, error) {
	m, err := e.Repo.GetMilestoneTx(ctx, e.DB, opts.ID)
	if err != nil {
		return domain.Milestone{}, err
	}
	changes := events.EventPayload{}
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if name == "" {
			return domain.Milestone{}, invalid("name", "is required")
		}
		m.Name = name
		changes["name"] = name
	}
	if opts.Status != nil {
		if !rag.MilestoneStatus(*opts.Status).Valid() {
			return domain.Milestone{}, invalid("status", "unknown milestone status %q", *opts.Status)
		}
		changes["from_status"] = m.Status
		m.Status = *opts.Status
		changes["status"] = m.Status
	}
	if opts.DueDate != nil {
		if _, err := parseDay("due_date", *opts.DueDate); err != nil {
			return domain.Milestone{}, err
		}
		m.DueDate = *opts.DueDate
		changes["due_date"] = m.DueDate
	}
	if len(changes) == 0 {
		return domain.Milestone{}, invalid("update", "no fields to change")
	}
	m.UpdatedAt = e.timestamp()
	err = e.mutate(ctx, m.WorkstreamID, "milestone.update", opts.ActorID, func(tx *sql.Tx, _ domain.Workstream) error {
		if err := e.Repo.UpdateMilestone(ctx, tx, m); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "milestone.update", m.WorkstreamID, "milestone", m.ID, opts.ActorID, changes)
	})
	if err != nil {
		return domain.Milestone{}, err
	}
	return m, nil
}

func (e Engine) DeleteMilestone(ctx context.Context, id, actorID string) error {
	m, err := e.Repo.GetMilestoneTx(ctx, e.DB, id)
	if err != nil {
		return err
	}
	return e.mutate(ctx, m.WorkstreamID, "milestone.delete", actorID, func(tx *sql.Tx, _ domain.Workstream) error {
		if err := e.Repo.DeleteMilestone(ctx, tx, m.ID); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "milestone.delete", m.WorkstreamID, "milestone", m.ID, actorID, events.EventPayload{"name": m.Name})
	})
}

type SpendCreateOptions struct {
	WorkstreamID string
	Amount       float64
	SpentOn      string
	Note         string
	ActorID      string
}

// AddSpend records actual spend; entries are summed into spend to date.
func (e Engine) AddSpend(ctx context.Context, opts SpendCreateOptions) (domain.SpendEntry, error) {
	if opts.Amount <= 0 {
		return domain.SpendEntry{}, invalid("amount", "must be positive")
	}
	if opts.SpentOn == "" {
		opts.SpentOn = e.today()
	}
	if _, err := parseDay("spent_on", opts.SpentOn); err != nil {
		return domain.SpendEntry{}, err
	}
	s := domain.SpendEntry{
		ID:           newID(),
		WorkstreamID: opts.WorkstreamID,
		Amount:       opts.Amount,
		SpentOn:      opts.SpentOn,
		Note:         strings.TrimSpace(opts.Note),
		CreatedBy:    actorOrDefault(opts.ActorID),
		CreatedAt:    e.timestamp(),
	}
	err := e.mutate(ctx, opts.WorkstreamID, "spend.create", opts.ActorID, func(tx *sql.Tx, _ domain.Workstream) error {
		if err := e.Repo.InsertSpend(ctx, tx, s); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "spend.create", s.WorkstreamID, "spend", s.ID, opts.ActorID,
			events.EventPayload{"amount": s.Amount, "spent_on": s.SpentOn})
	})
	if err != nil {
		return domain.SpendEntry{}, err
	}
	return s, nil
}

func (e Engine) DeleteSpend(ctx context.Context, id, actorID string) error {
	s, err := e.Repo.GetSpendTx(ctx, e.DB, id)
	if err != nil {
		return err
	}
	return e.mutate(ctx, s.WorkstreamID, "spend.delete", actorID, func(tx *sql.Tx, _ domain.Workstream) error {
		if err := e.Repo.DeleteSpend(ctx, tx, s.ID); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "spend.delete", s.WorkstreamID, "spend", s.ID, actorID, events.EventPayload{"amount": s.Amount})
	})
}

type BlockerCreateOptions struct {
	WorkstreamID string
	Description  string
	DateRaised   string
	ActorID      string
}

// RaiseBlocker opens a blocker. It cannot be dated in the future, so its age
// is never negative.
func (e Engine) RaiseBlocker(ctx context.Context, opts BlockerCreateOptions) (domain.Blocker, error) {
	desc := strings.TrimSpace(opts.Description)
	if desc == "" {
		return domain.Blocker{}, invalid("description", "is required")
	}
	if opts.DateRaised == "" {
		opts.DateRaised = e.today()
	}
	raised, err := parseDay("date_raised", opts.DateRaised)
	if err != nil {
		return domain.Blocker{}, err
	}
	if rag.DaysBetween(raised, e.now()) < 0 {
		return domain.Blocker{}, invalid("date_raised", "%s is in the future", opts.DateRaised)
	}
	b := domain.Blocker{
		ID:           newID(),
		WorkstreamID: opts.WorkstreamID,
		Description:  desc,
		DateRaised:   opts.DateRaised,
		Status:       "open",
		CreatedBy:    actorOrDefault(opts.ActorID),
		CreatedAt:    e.timestamp(),
	}
	err = e.mutate(ctx, opts.WorkstreamID, "blocker.raise", opts.ActorID, func(tx *sql.Tx, _ domain.Workstream) error {
		if err := e.Repo.InsertBlocker(ctx, tx, b); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "blocker.raise", b.WorkstreamID, "blocker", b.ID, opts.ActorID,
			events.EventPayload{"description": b.Description, "date_raised": b.DateRaised})
	})
	if err != nil {
		return domain.Blocker{}, err
	}
	return b, nil
}

func (e Engine) ResolveBlocker(ctx context.Context, id, actorID string) (domain.Blocker, error) {
	b, err := e.Repo.GetBlockerTx(ctx, e.DB, id)
	if err != nil {
		return domain.Blocker{}, err
	}
	if b.Status != "open" {
		return domain.Blocker{}, invalid("status", "blocker %s is already resolved", id)
	}
	now := e.timestamp()
	err = e.mutate(ctx, b.WorkstreamID, "blocker.resolve", actorID, func(tx *sql.Tx, _ domain.Workstream) error {
		if err := e.Repo.ResolveBlocker(ctx, tx, b.ID, now); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, "blocker.resolve", b.WorkstreamID, "blocker", b.ID, actorID, nil)
	})
	if err != nil {
		return domain.Blocker{}, err
	}
	b.Status = "resolved"
	b.ResolvedAt = &now
	return b, nil
}
