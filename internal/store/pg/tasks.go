package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// PGTaskStore implements store.TaskStore. NextRootCandidate applies the
// ordering rule of verbatim: master before self, priority
// rank, oldest-created tiebreak, root tasks only
// (`depth = 0`) — callers recurse into pending subtasks themselves
// (internal/tasks owns that recursion; this store only exposes the
// indexed queries). Grounded on original_source/app/db/tasks.py.
type PGTaskStore struct {
	db *sql.DB
}

func NewPGTaskStore(db *sql.DB) *PGTaskStore {
	return &PGTaskStore{db: db}
}

func (s *PGTaskStore) Create(ctx context.Context, t *store.Task) error {
	if t.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return store.NewError(store.KindFatal, "uuid gen", err)
		}
		t.ID = id
	}
	if t.Status == "" {
		t.Status = store.TaskPending
	}
	if t.MaxAttempts == 0 {
		t.MaxAttempts = store.TaskDefaultMaxAttempts
	}
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agent_tasks
				(id, title, description, priority, status, source, goal_criteria, attempts, max_attempts,
				 last_result, blocked_by, parent_id, order_index, depth, goal_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, NULLIF($10, ''), $11, $12, $13, $14, $15, now())`,
			t.ID, t.Title, t.Description, t.Priority, t.Status, t.Source, t.GoalCriteria,
			t.Attempts, t.MaxAttempts, t.LastResult, pq.Array(t.BlockedBy), t.ParentID, t.OrderIndex, t.Depth, t.GoalID); err != nil {
			return err
		}
		// Every task attached to a goal counts toward its total_tasks —
		// spec §3's "counters maintained by triggers on task status
		// transitions" extended to the one transition every goal-linked
		// task undergoes exactly once: coming into existence. Kept in the
		// same transaction as the insert so total_tasks can never
		// under-count a row that's actually there.
		if t.GoalID != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE agent_goals SET total_tasks = total_tasks + 1, updated_at = now() WHERE id = $1`, *t.GoalID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return store.NewError(store.KindTransient, "task create", err)
	}
	return nil
}

const taskCols = `id, title, description, priority, status, source, COALESCE(goal_criteria, ''), attempts, max_attempts,
	COALESCE(last_result, ''), blocked_by, parent_id, order_index, depth, goal_id, created_at, started_at, completed_at`

func scanTask(row interface{ Scan(dest...any) error }) (*store.Task, error) {
	var t store.Task
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.Source, &t.GoalCriteria,
		&t.Attempts, &t.MaxAttempts, &t.LastResult, pq.Array(&t.BlockedBy), &t.ParentID, &t.OrderIndex, &t.Depth,
		&t.GoalID, &t.CreatedAt, &t.StartedAt, &t.CompletedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PGTaskStore) Get(ctx context.Context, id uuid.UUID) (*store.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM agent_tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(store.KindTransient, "task get", err)
	}
	return t, nil
}

func (s *PGTaskStore) Update(ctx context.Context, t *store.Task) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_tasks SET
			status = $2, attempts = $3, last_result = NULLIF($4, ''), started_at = $5, completed_at = $6
		WHERE id = $1`,
		t.ID, t.Status, t.Attempts, t.LastResult, t.StartedAt, t.CompletedAt)
	if err != nil {
		return store.NewError(store.KindTransient, "task update", err)
	}
	return nil
}

// NextRootCandidate applies the §4.6 ordering: source master-first,
// priority rank (mapped to an integer CASE so SQL can order on it),
// then oldest created_at, restricted to root tasks.
func (s *PGTaskStore) NextRootCandidate(ctx context.Context) (*store.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskCols+` FROM agent_tasks
		WHERE status = 'pending' AND depth = 0
		ORDER BY
			CASE source WHEN 'master' THEN 0 ELSE 1 END,
			CASE priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
			created_at ASC
		LIMIT 1`)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.NewError(store.KindTransient, "task next root", err)
	}
	return t, nil
}

// PendingSubtasks returns a parent's pending children ordered by
// order_index ascending — the "lowest order_index pending subtask"
// rule of §4.6 step 5.
func (s *PGTaskStore) PendingSubtasks(ctx context.Context, parentID uuid.UUID) ([]*store.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskCols+` FROM agent_tasks
		WHERE parent_id = $1 AND status = 'pending' ORDER BY order_index ASC`, parentID)
	if err != nil {
		return nil, store.NewError(store.KindTransient, "task pending subtasks", err)
	}
	defer rows.Close()
	var out []*store.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, store.NewError(store.KindTransient, "task pending subtasks scan", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListPending returns up to limit pending tasks of any depth, most
// urgent first, for the proactive scheduler's queue-summary prompt input
// — unlike NextRootCandidate this is
// read-only reporting, not a selection rule, so it isn't restricted to
// roots.
func (s *PGTaskStore) ListPending(ctx context.Context, limit int) ([]*store.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskCols+` FROM agent_tasks
		WHERE status = 'pending'
		ORDER BY
			CASE source WHEN 'master' THEN 0 ELSE 1 END,
			CASE priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
			created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, store.NewError(store.KindTransient, "task list pending", err)
	}
	defer rows.Close()
	var out []*store.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, store.NewError(store.KindTransient, "task list pending scan", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PGTaskStore) CountPendingOrRunningChildren(ctx context.Context, parentID uuid.UUID) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM agent_tasks WHERE parent_id = $1 AND status IN ('pending', 'running')`, parentID)
	if err := row.Scan(&n); err != nil {
		return 0, store.NewError(store.KindTransient, "task count children", err)
	}
	return n, nil
}
