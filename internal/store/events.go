package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"ada/internal/notify"
)

const defaultEventLimit = 100

// EventFilter narrows ListEvents. Zero fields are ignored.
type EventFilter struct {
	TaskID string
	Status notify.Status
	Since  time.Time
	Until  time.Time
	Limit  uint64
}

var eventColumns = []string{
	"id", "task_id", "workflow_name", "transport", "triggered_by", "status", "stage", "reason",
	"scheduled_for", "started_at", "finished_at",
}

func (r *sqliteRepo) RecordEvent(ctx context.Context, e notify.StatusEvent) (notify.StatusEvent, error) {
	query, args, err := sq.Insert("task_events").
		Columns(eventColumns[1:]...).
		Values(e.TaskID, e.WorkflowName, e.Transport, string(e.Trigger), string(e.Status), e.Stage, e.Reason,
			millis(e.ScheduledFor), millis(e.StartedAt), millis(e.FinishedAt)).
		ToSql()
	if err != nil {
		return notify.StatusEvent{}, fmt.Errorf("build insert: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return notify.StatusEvent{}, fmt.Errorf("insert event: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return notify.StatusEvent{}, err
	}
	return e, nil
}

// ListEvents returns matching events, newest first.
func (r *sqliteRepo) ListEvents(ctx context.Context, f EventFilter) ([]notify.StatusEvent, error) {
	q := sq.Select(eventColumns...).From("task_events").OrderBy("id DESC")
	if f.TaskID != "" {
		q = q.Where(sq.Eq{"task_id": f.TaskID})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if !f.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"finished_at": millis(f.Since)})
	}
	if !f.Until.IsZero() {
		q = q.Where(sq.Lt{"finished_at": millis(f.Until)})
	}
	limit := f.Limit
	if limit == 0 {
		limit = defaultEventLimit
	}
	query, args, err := q.Limit(limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []notify.StatusEvent
	for rows.Next() {
		var (
			e                                   notify.StatusEvent
			trigger, status                     string
			scheduledFor, startedAt, finishedAt int64
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.WorkflowName, &e.Transport, &trigger, &status, &e.Stage, &e.Reason,
			&scheduledFor, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		e.Trigger, e.Status = notify.Trigger(trigger), notify.Status(status)
		e.ScheduledFor, e.StartedAt, e.FinishedAt = fromMillis(scheduledFor), fromMillis(startedAt), fromMillis(finishedAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

// PruneEvents deletes events that finished before the cutoff.
func (r *sqliteRepo) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := sq.Delete("task_events").Where(sq.Lt{"finished_at": millis(before)}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}
