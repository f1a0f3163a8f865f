package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"meridian/internal/domain"
	"meridian/internal/rag"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	DateLayout      = time.DateOnly
	TimestampLayout = time.RFC3339
)

const workstreamCols = `id,name,COALESCE(description,''),start_date,end_date,planned_budget,phase,owner_id,is_archived,last_activity_at,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkstream(row rowScanner) (domain.Workstream, error) {
	var w domain.Workstream
	var budget sql.NullFloat64
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.StartDate, &w.EndDate, &budget, &w.Phase, &w.OwnerID, &w.IsArchived, &w.LastActivityAt, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if budget.Valid {
		w.PlannedBudget = &budget.Float64
	}
	return w, err
}

func (r Repo) InsertWorkstream(ctx context.Context, tx *sql.Tx, w domain.Workstream) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workstreams(id,name,description,start_date,end_date,planned_budget,phase,owner_id,is_archived,last_activity_at,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.Name, nullable(w.Description), w.StartDate, w.EndDate, nullableFloat(w.PlannedBudget), w.Phase, w.OwnerID, w.IsArchived, w.LastActivityAt, w.CreatedAt, w.UpdatedAt)
	return err
}

func (r Repo) GetWorkstream(ctx context.Context, id string) (domain.Workstream, error) {
	return r.GetWorkstreamTx(ctx, r.DB, id)
}

func (r Repo) GetWorkstreamTx(ctx context.Context, q Querier, id string) (domain.Workstream, error) {
	return scanWorkstream(q.QueryRowContext(ctx, `SELECT `+workstreamCols+` FROM workstreams WHERE id=?`, id))
}

type WorkstreamFilters struct {
	IncludeArchived bool
	Phase           string
}

func (r Repo) ListWorkstreams(ctx context.Context, f WorkstreamFilters) ([]domain.Workstream, error) {
	clauses := []string{"1=1"}
	var args []any
	if !f.IncludeArchived {
		clauses = append(clauses, "is_archived=0")
	}
	if f.Phase != "" {
		clauses = append(clauses, "phase=?")
		args = append(args, f.Phase)
	}
	query := `SELECT ` + workstreamCols + ` FROM workstreams WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY updated_at DESC, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Workstream
	for rows.Next() {
		w, err := scanWorkstream(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

// ActiveWorkstreamIDs lists every non-archived workstream.
func (r Repo) ActiveWorkstreamIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM workstreams WHERE is_archived=0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r Repo) UpdateWorkstream(ctx context.Context, tx *sql.Tx, w domain.Workstream) error {
	res, err := tx.ExecContext(ctx, `UPDATE workstreams SET name=?,description=?,start_date=?,end_date=?,planned_budget=?,phase=?,is_archived=?,updated_at=? WHERE id=?`,
		w.Name, nullable(w.Description), w.StartDate, w.EndDate, nullableFloat(w.PlannedBudget), w.Phase, w.IsArchived, w.UpdatedAt, w.ID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// TouchWorkstream records a data-changing event at ts.
func (r Repo) TouchWorkstream(ctx context.Context, tx *sql.Tx, id, ts string) error {
	res, err := tx.ExecContext(ctx, `UPDATE workstreams SET last_activity_at=?, updated_at=? WHERE id=?`, ts, ts, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// --- wizard profile ---

const profileCols = `workstream_id,work_type,deadline_nature,deliverable_type,budget_exposure,dependency_level,risk_level,phase,update_frequency,audience,configured_by,configured_at`

func (r Repo) UpsertProfile(ctx context.Context, tx *sql.Tx, p domain.WizardProfile) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO wizard_profiles(`+profileCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(workstream_id) DO UPDATE SET work_type=excluded.work_type, deadline_nature=excluded.deadline_nature,
  deliverable_type=excluded.deliverable_type, budget_exposure=excluded.budget_exposure,
  dependency_level=excluded.dependency_level, risk_level=excluded.risk_level, phase=excluded.phase,
  update_frequency=excluded.update_frequency, audience=excluded.audience,
  configured_by=excluded.configured_by, configured_at=excluded.configured_at`,
		p.WorkstreamID, p.WorkType, p.DeadlineNature, p.DeliverableType, p.BudgetExposure, p.DependencyLevel,
		p.RiskLevel, p.Phase, p.UpdateFrequency, p.Audience, p.ConfiguredBy, p.ConfiguredAt)
	return err
}

func (r Repo) GetProfile(ctx context.Context, workstreamID string) (domain.WizardProfile, error) {
	return r.GetProfileTx(ctx, r.DB, workstreamID)
}

func (r Repo) GetProfileTx(ctx context.Context, q Querier, workstreamID string) (domain.WizardProfile, error) {
	var p domain.WizardProfile
	err := q.QueryRowContext(ctx, `SELECT `+profileCols+` FROM wizard_profiles WHERE workstream_id=?`, workstreamID).Scan(
		&p.WorkstreamID, &p.WorkType, &p.DeadlineNature, &p.DeliverableType, &p.BudgetExposure, &p.DependencyLevel,
		&p.RiskLevel, &p.Phase, &p.UpdateFrequency, &p.Audience, &p.ConfiguredBy, &p.ConfiguredAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// --- milestones ---

const milestoneCols = `id,workstream_id,name,status,due_date,created_at,updated_at`

func scanMilestone(row rowScanner) (domain.Milestone, error) {
	var m domain.Milestone
	err := row.Scan(&m.ID, &m.WorkstreamID, &m.Name, &m.Status, &m.DueDate, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) InsertMilestone(ctx context.Context, tx *sql.Tx, m domain.Milestone) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO milestones(`+milestoneCols+`) VALUES (?,?,?,?,?,?,?)`,
		m.ID, m.WorkstreamID, m.Name, m.Status, m.DueDate, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMilestoneTx(ctx context.Context, q Querier, id string) (domain.Milestone, error) {
	return scanMilestone(q.QueryRowContext(ctx, `SELECT `+milestoneCols+` FROM milestones WHERE id=?`, id))
}

func (r Repo) UpdateMilestone(ctx context.Context, tx *sql.Tx, m domain.Milestone) error {
	res, err := tx.ExecContext(ctx, `UPDATE milestones SET name=?,status=?,due_date=?,updated_at=? WHERE id=?`,
		m.Name, m.Status, m.DueDate, m.UpdatedAt, m.ID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r Repo) DeleteMilestone(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM milestones WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r Repo) ListMilestones(ctx context.Context, workstreamID string) ([]domain.Milestone, error) {
	return r.ListMilestonesTx(ctx, r.DB, workstreamID)
}

func (r Repo) ListMilestonesTx(ctx context.Context, q Querier, workstreamID string) ([]domain.Milestone, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+milestoneCols+` FROM milestones WHERE workstream_id=? ORDER BY due_date, id`, workstreamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// ListOverdueMilestones returns incomplete milestones due before asOf across
// active workstreams, most overdue first.
func (r Repo) ListOverdueMilestones(ctx context.Context, asOf time.Time) ([]domain.OverdueMilestone, error) {
	today := asOf.UTC().Format(DateLayout)
	rows, err := r.DB.QueryContext(ctx, `SELECT m.id,m.workstream_id,m.name,m.status,m.due_date,m.created_at,m.updated_at,w.name
FROM milestones m JOIN workstreams w ON w.id = m.workstream_id
WHERE w.is_archived=0 AND m.status != 'complete' AND m.due_date < ?
ORDER BY m.due_date, m.id`, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OverdueMilestone
	for rows.Next() {
		var o domain.OverdueMilestone
		m := &o.Milestone
		if err := rows.Scan(&m.ID, &m.WorkstreamID, &m.Name, &m.Status, &m.DueDate, &m.CreatedAt, &m.UpdatedAt, &o.WorkstreamName); err != nil {
			return nil, err
		}
		due, err := time.Parse(DateLayout, m.DueDate)
		if err != nil {
			return nil, fmt.Errorf("milestone %s due date: %w", m.ID, err)
		}
		o.DaysOverdue = rag.DaysBetween(due, asOf)
		res = append(res, o)
	}
	return res, rows.Err()
}

// --- spend ---

func (r Repo) InsertSpend(ctx context.Context, tx *sql.Tx, s domain.SpendEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO spend_entries(id,workstream_id,amount,spent_on,note,created_by,created_at) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.WorkstreamID, s.Amount, s.SpentOn, nullable(s.Note), s.CreatedBy, s.CreatedAt)
	return err
}

func (r Repo) GetSpendTx(ctx context.Context, q Querier, id string) (domain.SpendEntry, error) {
	var s domain.SpendEntry
	err := q.QueryRowContext(ctx, `SELECT id,workstream_id,amount,spent_on,COALESCE(note,''),created_by,created_at FROM spend_entries WHERE id=?`, id).
		Scan(&s.ID, &s.WorkstreamID, &s.Amount, &s.SpentOn, &s.Note, &s.CreatedBy, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) DeleteSpend(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM spend_entries WHERE id=?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r Repo) ListSpend(ctx context.Context, workstreamID string) ([]domain.SpendEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,workstream_id,amount,spent_on,COALESCE(note,''),created_by,created_at FROM spend_entries WHERE workstream_id=? ORDER BY spent_on, id`, workstreamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SpendEntry
	for rows.Next() {
		var s domain.SpendEntry
		if err := rows.Scan(&s.ID, &s.WorkstreamID, &s.Amount, &s.SpentOn, &s.Note, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// SpendToDate sums the spend entries dated on or before asOf.
func (r Repo) SpendToDate(ctx context.Context, q Querier, workstreamID string, asOf time.Time) (float64, error) {
	var total float64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount),0) FROM spend_entries WHERE workstream_id=? AND spent_on<=?`,
		workstreamID, asOf.UTC().Format(DateLayout)).Scan(&total)
	return total, err
}

// --- blockers ---

const blockerCols = `id,workstream_id,description,date_raised,status,resolved_at,created_by,created_at`

func scanBlocker(row rowScanner) (domain.Blocker, error) {
	var b domain.Blocker
	var resolved sql.NullString
	err := row.Scan(&b.ID, &b.WorkstreamID, &b.Description, &b.DateRaised, &b.Status, &resolved, &b.CreatedBy, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if resolved.Valid {
		b.ResolvedAt = &resolved.String
	}
	return b, err
}

func (r Repo) InsertBlocker(ctx context.Context, tx *sql.Tx, b domain.Blocker) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO blockers(`+blockerCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		b.ID, b.WorkstreamID, b.Description, b.DateRaised, b.Status, b.ResolvedAt, b.CreatedBy, b.CreatedAt)
	return err
}

func (r Repo) GetBlockerTx(ctx context.Context, q Querier, id string) (domain.Blocker, error) {
	return scanBlocker(q.QueryRowContext(ctx, `SELECT `+blockerCols+` FROM blockers WHERE id=?`, id))
}

func (r Repo) ResolveBlocker(ctx context.Context, tx *sql.Tx, id, ts string) error {
	res, err := tx.ExecContext(ctx, `UPDATE blockers SET status='resolved', resolved_at=? WHERE id=? AND status='open'`, ts, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// ListBlockers lists blockers of a workstream; status filters when non-empty.
func (r Repo) ListBlockers(ctx context.Context, workstreamID, status string) ([]domain.Blocker, error) {
	return r.ListBlockersTx(ctx, r.DB, workstreamID, status)
}

func (r Repo) ListBlockersTx(ctx context.Context, q Querier, workstreamID, status string) ([]domain.Blocker, error) {
	query := `SELECT ` + blockerCols + ` FROM blockers WHERE workstream_id=?`
	args := []any{workstreamID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY date_raised, id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Blocker
	for rows.Next() {
		b, err := scanBlocker(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// --- events ---

func (r Repo) LatestEvents(ctx context.Context, limit int, workstreamID, evtType string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if workstreamID != "" {
		clauses = append(clauses, "workstream_id=?")
		args = append(args, workstreamID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(workstream_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.WorkstreamID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns up to limit events with id > afterID, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, afterID int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(workstream_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.WorkstreamID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
