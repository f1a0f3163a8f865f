package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meridian/internal/domain"
	"meridian/internal/events"
	"meridian/internal/publish"
	"meridian/internal/rag"
	"meridian/internal/repo"
)

// Recalculate scores one workstream now, whatever its data looks like. An
// unconfigured workstream yields a rag.ConfigurationError and its stored score
// is left untouched.
func (e Engine) Recalculate(ctx context.Context, workstreamID, actorID string) (domain.Score, error) {
	s, _, err := e.recalculate(ctx, workstreamID, "manual", actorID)
	return s, err
}

// recalculate loads, scores and stores under the workstream lock. applied is
// false when a newer evaluation was already stored.
func (e Engine) recalculate(ctx context.Context, workstreamID, trigger, actorID string) (domain.Score, bool, error) {
	unlock := e.lock(workstreamID)
	defer unlock()

	started := time.Now()
	s, prev, applied, err := e.evaluateAndStore(ctx, workstreamID, trigger, actorID)
	log := e.Log.With().Str("workstream_id", workstreamID).Str("trigger", trigger).Logger()
	switch {
	case errors.Is(err, rag.ErrConfiguration):
		e.Metrics.RecordEvaluation(trigger, "not_configured", 0)
		log.Warn().Err(err).Msg("workstream not scored")
		return domain.Score{}, false, err
	case errors.Is(err, rag.ErrInput):
		e.Metrics.RecordEvaluation(trigger, "invalid_input", 0)
		log.Warn().Err(err).Msg("scoring input rejected")
		return domain.Score{}, false, err
	case err != nil:
		e.Metrics.RecordEvaluation(trigger, "error", 0)
		if !errors.Is(err, repo.ErrNotFound) {
			log.Error().Err(err).Msg("recalculate failed")
		}
		return domain.Score{}, false, err
	}
	e.Metrics.RecordEvaluation(trigger, "ok", time.Since(started).Seconds())
	if !applied {
		log.Debug().Str("evaluated_at", s.EvaluatedAt).Msg("newer score already stored")
		return s, false, nil
	}
	e.Metrics.SetScore(workstreamID, s.RAGStatus, s.CompositeScore)
	log.Debug().
		Float64("composite", s.CompositeScore).
		Str("status", s.RAGStatus).
		Bool("stale", s.IsStale).
		Msg("recalculated")

	if e.Publisher != nil {
		snap := publish.Snapshot{Score: s, Trigger: trigger, PreviousStatus: prev}
		if err := e.Publisher.Publish(ctx, snap); err != nil {
			e.Metrics.RecordPublishError()
			log.Error().Err(err).Msg("publish snapshot")
		}
	}
	return s, true, nil
}

func (e Engine) evaluateAndStore(ctx context.Context, workstreamID, trigger, actorID string) (s domain.Score, prevStatus string, applied bool, err error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return s, "", false, err
	}
	defer tx.Rollback()

	asOf := e.now().UTC()
	profile, err := e.Repo.ProfileFor(ctx, tx, workstreamID)
	if err != nil {
		if _, gerr := e.Repo.GetWorkstreamTx(ctx, tx, workstreamID); gerr != nil {
			return s, "", false, gerr
		}
		return s, "", false, err
	}
	in, err := e.Repo.LoadScoringInput(ctx, tx, workstreamID, asOf)
	if err != nil {
		return s, "", false, err
	}
	out, err := rag.Evaluate(in, profile)
	if err != nil {
		return s, "", false, err
	}
	s = repo.ScoreFromOutput(workstreamID, out, e.now())

	if prev, err := e.Repo.GetScoreTx(ctx, tx, workstreamID); err == nil {
		prevStatus = prev.RAGStatus
	} else if !errors.Is(err, repo.ErrNotFound) {
		return s, "", false, err
	}
	applied, err = e.Repo.SaveScore(ctx, tx, s)
	if err != nil {
		return s, "", false, fmt.Errorf("save score: %w", err)
	}
	if !applied {
		return s, prevStatus, false, nil
	}
	if _, err := e.Repo.AppendSnapshot(ctx, tx, s); err != nil {
		return s, "", false, fmt.Errorf("append snapshot: %w", err)
	}
	if err := e.appendEvent(ctx, tx, "score.recalculate", workstreamID, "score", workstreamID, actorID, events.EventPayload{
		"trigger":   trigger,
		"composite": s.CompositeScore,
		"status":    s.RAGStatus,
		"stale":     s.IsStale,
	}); err != nil {
		return s, "", false, err
	}
	return s, prevStatus, true, tx.Commit()
}

// rescore follows a committed mutation. The mutation stands even when scoring
// fails, so errors are logged rather than returned.
func (e Engine) rescore(ctx context.Context, workstreamID, trigger, actorID string) {
	_, _, _ = e.recalculate(ctx, workstreamID, trigger, actorID)
}

type SweepResult struct {
	Evaluated     int `json:"evaluated"`
	NotConfigured int `json:"not_configured"`
	Failed        int `json:"failed"`
	Stale         int `json:"stale"`
}

// Sweep recalculates every active workstream so staleness follows the clock
// even when nobody writes.
func (e Engine) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	ids, err := e.Repo.ActiveWorkstreamIDs(ctx)
	if err != nil {
		return res, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s, _, err := e.recalculate(ctx, id, "sweep", "system")
		switch {
		case errors.Is(err, rag.ErrConfiguration):
			res.NotConfigured++
		case err != nil:
			res.Failed++
		default:
			res.Evaluated++
			if s.IsStale {
				res.Stale++
			}
		}
	}
	e.Metrics.SetStale(res.Stale)
	e.Log.Info().
		Int("evaluated", res.Evaluated).
		Int("not_configured", res.NotConfigured).
		Int("failed", res.Failed).
		Int("stale", res.Stale).
		Msg("sweep complete")
	return res, nil
}

// RunSweeper sweeps every interval until ctx is done. A non-positive interval
// disables it.
func (e Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Sweep(ctx); err != nil && ctx.Err() == nil {
				e.Log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

type PortfolioSummary struct {
	Total    int `json:"total"`
	Green    int `json:"green"`
	Amber    int `json:"amber"`
	Red      int `json:"red"`
	Unscored int `json:"unscored"`
	Stale    int `json:"stale"`
}

type PortfolioView struct {
	Items   []domain.PortfolioItem `json:"items"`
	Summary PortfolioSummary       `json:"summary"`
}

// Portfolio lists active workstreams red first with summary counts.
func (e Engine) Portfolio(ctx context.Context) (PortfolioView, error) {
	items, err := e.Repo.Portfolio(ctx)
	if err != nil {
		return PortfolioView{}, err
	}
	p := PortfolioView{Items: items}
	for _, it := range items {
		p.Summary.Total++
		if it.Score == nil {
			p.Summary.Unscored++
			continue
		}
		switch rag.Status(it.Score.RAGStatus) {
		case rag.StatusGreen:
			p.Summary.Green++
		case rag.StatusAmber:
			p.Summary.Amber++
		case rag.StatusRed:
			p.Summary.Red++
		}
		if it.Score.IsStale {
			p.Summary.Stale++
		}
	}
	return p, nil
}

// History returns the score time series of a workstream, oldest first.
func (e Engine) History(ctx context.Context, workstreamID, since string, limit int) ([]domain.ScoreSnapshot, error) {
	if _, err := e.Repo.GetWorkstream(ctx, workstreamID); err != nil {
		return nil, err
	}
	if since != "" {
		if _, err := parseDay("since", since); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListHistory(ctx, workstreamID, since, limit)
}

// Overdue lists incomplete milestones past their due date across active workstreams.
func (e Engine) Overdue(ctx context.Context) ([]domain.OverdueMilestone, error) {
	return e.Repo.ListOverdueMilestones(ctx, e.now())
}
