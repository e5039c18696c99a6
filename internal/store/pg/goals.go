package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// PGGoalStore implements store.GoalStore. Grounded on
// original_source/app/db/goals.py.
type PGGoalStore struct {
	db *sql.DB
}

func NewPGGoalStore(db *sql.DB) *PGGoalStore {
	return &PGGoalStore{db: db}
}

func (s *PGGoalStore) Create(ctx context.Context, g *store.Goal) error {
	if g.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return store.NewError(store.KindFatal, "uuid gen", err)
		}
		g.ID = id
	}
	if g.Status == "" {
		g.Status = store.GoalActive
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_goals
			(id, title, description, success_criteria, source, priority, status,
			 total_tasks, completed_tasks, failed_tasks, verified_by_master, master_feedback, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), now(), now())`,
		g.ID, g.Title, g.Description, g.SuccessCriteria, g.Source, g.Priority, g.Status,
		g.TotalTasks, g.CompletedTasks, g.FailedTasks, g.VerifiedByMaster, g.MasterFeedback)
	if err != nil {
		return store.NewError(store.KindTransient, "goal create", err)
	}
	return nil
}

const goalCols = `id, title, description, success_criteria, source, priority, status,
	total_tasks, completed_tasks, failed_tasks, verified_by_master, COALESCE(master_feedback, ''), created_at, updated_at`

func scanGoal(row interface{ Scan(dest ...any) error }) (*store.Goal, error) {
	var g store.Goal
	if err := row.Scan(&g.ID, &g.Title, &g.Description, &g.SuccessCriteria, &g.Source, &g.Priority, &g.Status,
		&g.TotalTasks, &g.CompletedTasks, &g.FailedTasks, &g.VerifiedByMaster, &g.MasterFeedback,
		&g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *PGGoalStore) Get(ctx context.Context, id uuid.UUID) (*store.Goal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+goalCols+` FROM agent_goals WHERE id = $1`, id)
	g, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(store.KindTransient, "goal get", err)
	}
	return g, nil
}

func (s *PGGoalStore) Update(ctx context.Context, g *store.Goal) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_goals SET
			status = $2, verified_by_master = $3, master_feedback = NULLIF($4, ''), updated_at = now()
		WHERE id = $1`, g.ID, g.Status, g.VerifiedByMaster, g.MasterFeedback)
	if err != nil {
		return store.NewError(store.KindTransient, "goal update", err)
	}
	return nil
}

// IncrementCounters atomically bumps completed_tasks/failed_tasks —
// the "counters maintained by triggers on task status transitions"
// invariant of spec §3, expressed here as an explicit call from the
// task executor rather than a DB trigger. The executor (internal/tasks)
// makes this call after the task's own update, not in the same transaction.
func (s *PGGoalStore) IncrementCounters(ctx context.Context, id uuid.UUID, completedDelta, failedDelta int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_goals SET completed_tasks = completed_tasks + $2, failed_tasks = failed_tasks + $3, updated_at = now()
		WHERE id = $1`, id, completedDelta, failedDelta)
	if err != nil {
		return store.NewError(store.KindTransient, "goal increment counters", err)
	}
	return nil
}

// NeedingAttention returns active goals where completed+failed has
// reached total_tasks — "ready for verification" or "has failures"
// per spec §3's goal invariants.
func (s *PGGoalStore) NeedingAttention(ctx context.Context) ([]*store.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+goalCols+` FROM agent_goals
		WHERE status = 'active' AND total_tasks > 0 AND (completed_tasks + failed_tasks) >= total_tasks
		ORDER BY updated_at ASC`)
	if err != nil {
		return nil, store.NewError(store.KindTransient, "goal needing attention", err)
	}
	defer rows.Close()
	var out []*store.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, store.NewError(store.KindTransient, "goal needing attention scan", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
