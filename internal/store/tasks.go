package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ada/internal/domain"
)

const taskColumns = `id,workflow_name,frequency_type,day_of_week,hour,minute,second,params,transport,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.ScheduledTask, error) {
	var (
		t                    domain.ScheduledTask
		params               string
		createdAt, updatedAt int64
	)
	err := row.Scan(&t.ID, &t.WorkflowName, &t.Frequency.Kind, &t.Frequency.DayOfWeek, &t.Frequency.Hour,
		&t.Frequency.Minute, &t.Frequency.Second, &params, &t.Transport, &createdAt, &updatedAt)
	if err != nil {
		return domain.ScheduledTask{}, err
	}
	t.Params = domain.Params{}
	dec := json.NewDecoder(strings.NewReader(params))
	dec.UseNumber()
	if err := dec.Decode(&t.Params); err != nil {
		return domain.ScheduledTask{}, fmt.Errorf("task %s: decode params: %w", t.ID, err)
	}
	t.CreatedAt, t.UpdatedAt = fromMillis(createdAt), fromMillis(updatedAt)
	return t, nil
}

func encodeParams(p domain.Params) (string, error) {
	if p == nil {
		p = domain.Params{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(b), nil
}

func (r *sqliteRepo) CreateScheduledTask(ctx context.Context, t domain.ScheduledTask) (domain.ScheduledTask, error) {
	if t.ID == "" {
		t.ID = "tsk_" + uuid.NewString()
	}
	params, err := encodeParams(t.Params)
	if err != nil {
		return domain.ScheduledTask{}, err
	}
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err = r.db.ExecContext(ctx, `
INSERT INTO scheduled_tasks (`+taskColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
`, t.ID, t.WorkflowName, t.Frequency.Kind, t.Frequency.DayOfWeek, t.Frequency.Hour, t.Frequency.Minute,
		t.Frequency.Second, params, t.Transport, millis(now), millis(now))
	if err != nil {
		return domain.ScheduledTask{}, fmt.Errorf("insert task: %w", err)
	}
	if t.Params == nil {
		t.Params = domain.Params{}
	}
	return t, nil
}

func (r *sqliteRepo) GetScheduledTask(ctx context.Context, id string) (domain.ScheduledTask, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if err != nil {
		return domain.ScheduledTask{}, notFound(err, "task", id)
	}
	return t, nil
}

// ListScheduledTasks returns every task ordered by creation time.
func (r *sqliteRepo) ListScheduledTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *sqliteRepo) UpdateScheduledTask(ctx context.Context, t domain.ScheduledTask) (domain.ScheduledTask, error) {
	params, err := encodeParams(t.Params)
	if err != nil {
		return domain.ScheduledTask{}, err
	}
	t.UpdatedAt = r.now()
	res, err := r.db.ExecContext(ctx, `
UPDATE scheduled_tasks
SET workflow_name=?,frequency_type=?,day_of_week=?,hour=?,minute=?,second=?,params=?,transport=?,updated_at=?
WHERE id=?`, t.WorkflowName, t.Frequency.Kind, t.Frequency.DayOfWeek, t.Frequency.Hour, t.Frequency.Minute,
		t.Frequency.Second, params, t.Transport, millis(t.UpdatedAt), t.ID)
	if err != nil {
		return domain.ScheduledTask{}, fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ScheduledTask{}, fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return t, nil
}

func (r *sqliteRepo) DeleteScheduledTask(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "scheduled_tasks", id)
}
