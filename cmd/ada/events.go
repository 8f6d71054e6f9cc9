package main

import (
	"context"
	"flag"
	"io"
	"time"

	"ada/internal/notify"
	"ada/internal/store"
)

func runEvents(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	o := outputFlag(fs)
	taskID := fs.String("task", "", "only events of this task id")
	status := fs.String("status", "", "success or failure")
	since := fs.Duration("since", 0, "only events newer than this, e.g. 24h")
	limit := fs.Uint64("limit", 20, "maximum number of events")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}

	f := store.EventFilter{TaskID: *taskID, Status: notify.Status(*status), Limit: *limit}
	if *since > 0 {
		f.Since = a.clock.Now().Add(-*since)
	}
	events, err := a.repo.ListEvents(ctx, f)
	if err != nil {
		return err
	}
	return render(out, *o, events, func() table {
		t := table{header: []string{"FINISHED", "TASK", "WORKFLOW", "TRIGGER", "STATUS", "TOOK", "REASON"}}
		for _, e := range events {
			reason := e.Reason
			if e.Stage != "" {
				reason = e.Stage + ": " + reason
			}
			t.add(e.FinishedAt.In(a.loc).Format(time.DateTime), e.TaskID, e.WorkflowName,
				string(e.Trigger), string(e.Status), e.Duration().Round(time.Millisecond).String(), reason)
		}
		return t
	})
}
