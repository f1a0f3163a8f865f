package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"meridian/internal/domain"
	"meridian/internal/events"
	"meridian/internal/rag"
	"meridian/internal/repo"
)

const maxNameLen = 120

// WorkstreamCreateOptions are parameters for creating a workstream. Profile
// is optional; a workstream without one stays unscored until configured.
type WorkstreamCreateOptions struct {
	ID            string
	Name          string
	Description   string
	StartDate     string
	EndDate       string
	PlannedBudget *float64
	Profile       *rag.Profile
	ActorID       string
}

func (e Engine) CreateWorkstream(ctx context.Context, opts WorkstreamCreateOptions) (domain.Workstream, error) {
	name, err := validName(opts.Name)
	if err != nil {
		return domain.Workstream{}, err
	}
	if err := validWindow(opts.StartDate, opts.EndDate); err != nil {
		return domain.Workstream{}, err
	}
	if err := validBudget(opts.PlannedBudget); err != nil {
		return domain.Workstream{}, err
	}
	phase := string(rag.PhaseDiscovery)
	if opts.Profile != nil {
		if err := opts.Profile.Validate(); err != nil {
			return domain.Workstream{}, err
		}
		phase = string(opts.Profile.Phase)
	}
	id := opts.ID
	if id == "" {
		id = newID()
	}
	now := e.timestamp()
	w := domain.Workstream{
		ID:             id,
		Name:           name,
		Description:    strings.TrimSpace(opts.Description),
		StartDate:      opts.StartDate,
		EndDate:        opts.EndDate,
		PlannedBudget:  opts.PlannedBudget,
		Phase:          phase,
		OwnerID:        actorOrDefault(opts.ActorID),
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Workstream{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertWorkstream(ctx, tx, w); err != nil {
		return domain.Workstream{}, fmt.Errorf("insert workstream: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "workstream.create", w.ID, "workstream", w.ID, opts.ActorID, events.EventPayload{"name": w.Name}); err != nil {
		return domain.Workstream{}, err
	}
	if opts.Profile != nil {
		if err := e.saveProfile(ctx, tx, w.ID, *opts.Profile, opts.ActorID, now); err != nil {
			return domain.Workstream{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Workstream{}, err
	}
	if opts.Profile != nil {
		e.rescore(ctx, w.ID, "create", opts.ActorID)
	}
	return w, nil
}

// WorkstreamUpdateOptions changes only the fields that are set.
type WorkstreamUpdateOptions struct {
	ID            string
	Name          *string
	Description   *string
	StartDate     *string
	EndDate       *string
	PlannedBudget *float64
	ClearBudget   bool
	ActorID       string
}

func (e Engine) UpdateWorkstream(ctx context.Context, opts WorkstreamUpdateOptions) (domain.Workstream, error) {
	var w domain.Workstream
	err := e.mutate(ctx, opts.ID, "workstream.update", opts.ActorID, func(tx *sql.Tx, cur domain.Workstream) error {
		changes := events.EventPayload{}
		if opts.Name != nil {
			name, err := validName(*opts.Name)
			if err != nil {
				return err
			}
			cur.Name = name
			changes["name"] = name
		}
		if opts.Description != nil {
			cur.Description = strings.TrimSpace(*opts.Description)
			changes["description"] = cur.Description
		}
		if opts.StartDate != nil {
			cur.StartDate = *opts.StartDate
			changes["start_date"] = cur.StartDate
		}
		if opts.EndDate != nil {
			cur.EndDate = *opts.EndDate
			changes["end_date"] = cur.EndDate
		}
		if err := validWindow(cur.StartDate, cur.EndDate); err != nil {
			return err
		}
		switch {
		case opts.ClearBudget:
			cur.PlannedBudget = nil
			changes["planned_budget"] = nil
		case opts.PlannedBudget != nil:
			if err := validBudget(opts.PlannedBudget); err != nil {
				return err
			}
			cur.PlannedBudget = opts.PlannedBudget
			changes["planned_budget"] = *opts.PlannedBudget
		}
		if len(changes) == 0 {
			return invalid("update", "no fields to change")
		}
		cur.UpdatedAt = e.timestamp()
		if err := e.Repo.UpdateWorkstream(ctx, tx, cur); err != nil {
			return err
		}
		w = cur
		return e.appendEvent(ctx, tx, "workstream.update", cur.ID, "workstream", cur.ID, opts.ActorID, changes)
	})
	if err != nil {
		return domain.Workstream{}, err
	}
	return e.Repo.GetWorkstream(ctx, w.ID)
}

// SetProfile stores the wizard answers and rescores. The workstream phase
// follows the profile.
func (e Engine) SetProfile(ctx context.Context, workstreamID string, p rag.Profile, actorID string) (domain.WizardProfile, error) {
	if err := p.Validate(); err != nil {
		return domain.WizardProfile{}, err
	}
	err := e.mutate(ctx, workstreamID, "profile.configure", actorID, func(tx *sql.Tx, cur domain.Workstream) error {
		return e.saveProfile(ctx, tx, cur.ID, p, actorID, e.timestamp())
	})
	if err != nil {
		return domain.WizardProfile{}, err
	}
	return e.Repo.GetProfile(ctx, workstreamID)
}

func (e Engine) saveProfile(ctx context.Context, tx *sql.Tx, workstreamID string, p rag.Profile, actorID, now string) error {
	wp := repo.FromProfile(workstreamID, p)
	wp.ConfiguredBy = actorOrDefault(actorID)
	wp.ConfiguredAt = now
	if err := e.Repo.UpsertProfile(ctx, tx, wp); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE workstreams SET phase=? WHERE id=?`, wp.Phase, workstreamID); err != nil {
		return fmt.Errorf("sync phase: %w", err)
	}
	payload := events.EventPayload{}
	for k, v := range p.Answers() {
		payload[k] = v
	}
	return e.appendEvent(ctx, tx, "profile.configure", workstreamID, "profile", workstreamID, actorID, payload)
}

// ArchiveWorkstream hides a workstream from listings and sweeps. Its score and
// history are kept.
func (e Engine) ArchiveWorkstream(ctx context.Context, workstreamID string, archived bool, actorID string) (domain.Workstream, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Workstream{}, err
	}
	defer tx.Rollback()

	w, err := e.Repo.GetWorkstreamTx(ctx, tx, workstreamID)
	if err != nil {
		return domain.Workstream{}, err
	}
	if w.IsArchived == archived {
		return w, nil
	}
	w.IsArchived = archived
	w.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateWorkstream(ctx, tx, w); err != nil {
		return domain.Workstream{}, err
	}
	evt := "workstream.archive"
	if !archived {
		evt = "workstream.restore"
	}
	if err := e.appendEvent(ctx, tx, evt, w.ID, "workstream", w.ID, actorID, nil); err != nil {
		return domain.Workstream{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Workstream{}, err
	}
	if !archived {
		e.rescore(ctx, w.ID, "restore", actorID)
	}
	return w, nil
}

// WorkstreamDetail bundles a workstream with everything that feeds its score.
type WorkstreamDetail struct {
	Workstream  domain.Workstream     `json:"workstream"`
	Profile     *domain.WizardProfile `json:"profile,omitempty"`
	Score       *domain.Score         `json:"score,omitempty"`
	Milestones  []domain.Milestone    `json:"milestones"`
	Blockers    []domain.Blocker      `json:"blockers"`
	SpendToDate float64               `json:"spend_to_date"`
}

func (e Engine) DescribeWorkstream(ctx context.Context, workstreamID string) (WorkstreamDetail, error) {
	w, err := e.Repo.GetWorkstream(ctx, workstreamID)
	if err != nil {
		return WorkstreamDetail{}, err
	}
	d := WorkstreamDetail{Workstream: w}
	if p, err := e.Repo.GetProfile(ctx, w.ID); err == nil {
		d.Profile = &p
	} else if !errors.Is(err, repo.ErrNotFound) {
		return WorkstreamDetail{}, err
	}
	if s, err := e.Repo.GetScore(ctx, w.ID); err == nil {
		d.Score = &s
	} else if !errors.Is(err, repo.ErrNotFound) {
		return WorkstreamDetail{}, err
	}
	if d.Milestones, err = e.Repo.ListMilestones(ctx, w.ID); err != nil {
		return WorkstreamDetail{}, err
	}
	if d.Blockers, err = e.Repo.ListBlockers(ctx, w.ID, ""); err != nil {
		return WorkstreamDetail{}, err
	}
	if d.SpendToDate, err = e.Repo.SpendToDate(ctx, e.DB, w.ID, e.now()); err != nil {
		return WorkstreamDetail{}, err
	}
	return d, nil
}

// mutate runs fn in a transaction on an active workstream, records the
// activity and rescores after commit.
func (e Engine) mutate(ctx context.Context, workstreamID, trigger, actorID string, fn func(tx *sql.Tx, cur domain.Workstream) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cur, err := e.Repo.GetWorkstreamTx(ctx, tx, workstreamID)
	if err != nil {
		return err
	}
	if cur.IsArchived {
		return invalid("workstream", "%s is archived", workstreamID)
	}
	if err := fn(tx, cur); err != nil {
		return err
	}
	if err := e.Repo.TouchWorkstream(ctx, tx, workstreamID, e.timestamp()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.rescore(ctx, workstreamID, trigger, actorID)
	return nil
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", invalid("name", "must be at most %d characters", maxNameLen)
	}
	return name, nil
}

func validWindow(start, end string) error {
	s, err := parseDay("start_date", start)
	if err != nil {
		return err
	}
	en, err := parseDay("end_date", end)
	if err != nil {
		return err
	}
	if !en.After(s) {
		return invalid("end_date", "must be after start_date %s", start)
	}
	return nil
}

func validBudget(b *float64) error {
	if b != nil && *b < 0 {
		return invalid("planned_budget", "must not be negative")
	}
	return nil
}

func actorOrDefault(actorID string) string {
	if actorID == "" {
		return "local-user"
	}
	return actorID
}
