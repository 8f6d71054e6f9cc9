package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"ada/internal/domain"
	"ada/internal/notify"
	"ada/internal/workflow"
)

// paramFlag collects repeated -param key=value pairs. Values stay strings;
// the workflow coerces them when the task runs.
type paramFlag domain.Params

func (p paramFlag) String() string { return strings.Join(p.keys(), ",") }

func (p paramFlag) keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p paramFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	p[k] = v
	return nil
}

func runWorkflows(_ context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("workflows", flag.ContinueOnError)
	o := outputFlag(fs)
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}

	type view struct {
		Name         string                `json:"name" yaml:"name"`
		HumanName    string                `json:"human_name" yaml:"human_name"`
		Requirements workflow.Requirements `json:"requirements" yaml:"requirements"`
		Transports   []domain.Transport    `json:"transports" yaml:"transports"`
	}
	var views []view
	for _, w := range a.registry.All() {
		views = append(views, view{w.Name(), w.HumanName(), w.Requirements(), w.Transports()})
	}
	return render(out, *o, views, func() table {
		t := table{header: []string{"NAME", "DESCRIPTION", "PARAMS", "TRANSPORTS"}}
		for _, v := range views {
			params := make([]string, 0, len(v.Requirements))
			for k, typ := range v.Requirements {
				params = append(params, k+":"+string(typ))
			}
			sort.Strings(params)
			ts := make([]string, len(v.Transports))
			for i, tr := range v.Transports {
				ts[i] = string(tr)
			}
			t.add(v.Name, v.HumanName, strings.Join(params, " "), strings.Join(ts, ","))
		}
		return t
	})
}

func runTasks(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usagef("usage: ada tasks list|create|update|delete|preview|run")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return tasksList(ctx, a, rest, out)
	case "create":
		return tasksCreate(ctx, a, rest, out)
	case "update":
		return tasksUpdate(ctx, a, rest, out)
	case "delete":
		return tasksDelete(ctx, a, rest, out)
	case "preview":
		return tasksExecute(ctx, a, "preview", rest, out)
	case "run":
		return tasksExecute(ctx, a, "run", rest, out)
	}
	return usagef("unknown tasks command %q", sub)
}

func taskTable(a *app, tasks []domain.ScheduledTask) func() table {
	return func() table {
		t := table{header: []string{"ID", "WORKFLOW", "FREQUENCY", "NEXT RUN", "TRANSPORT", "PARAMS"}}
		now := a.clock.Now().In(a.loc)
		for _, task := range tasks {
			next := "-"
			if at, err := task.Frequency.NextAfter(now); err == nil {
				next = at.Format("Mon 2 Jan 15:04:05")
			}
			t.add(task.ID, task.WorkflowName, task.Frequency.String(), next, string(task.Transport), paramFlag(task.Params).pairs())
		}
		return t
	}
}

func (p paramFlag) pairs() string {
	out := make([]string, 0, len(p))
	for _, k := range p.keys() {
		out = append(out, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return strings.Join(out, " ")
}

func tasksList(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tasks list", flag.ContinueOnError)
	o := outputFlag(fs)
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	tasks, err := a.repo.ListScheduledTasks(ctx)
	if err != nil {
		return err
	}
	return render(out, *o, tasks, taskTable(a, tasks))
}

// taskFlags are shared by create and update. Unset flags leave the
// corresponding attribute nil.
type taskFlags struct {
	fs        *flag.FlagSet
	o         *format
	transport *string
	params    paramFlag
}

func newTaskFlags(name string) *taskFlags {
	f := &taskFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError), params: paramFlag{}}
	f.o = outputFlag(f.fs)
	f.transport = f.fs.String("transport", "", "delivery transport (default email)")
	f.fs.Var(f.params, "param", "workflow parameter key=value (repeatable)")
	return f
}

func (f *taskFlags) attrs(workflowName, freq string) (domain.TaskAttrs, error) {
	var attrs domain.TaskAttrs
	if workflowName != "" {
		attrs.WorkflowName = &workflowName
	}
	if freq != "" {
		fa, err := domain.ParseFrequencySpec(freq)
		if err != nil {
			return attrs, usageError(err.Error())
		}
		attrs.Frequency = &fa
	}
	if *f.transport != "" {
		attrs.Transport = f.transport
	}
	if len(f.params) > 0 {
		attrs.Params = domain.Params(f.params)
	}
	return attrs, nil
}

func printWarnings(out io.Writer, ws []domain.FieldWarning) {
	for _, w := range ws {
		fmt.Fprintf(out, "warning: %s %s\n", w.Field, w.Message)
	}
}

func tasksCreate(ctx context.Context, a *app, args []string, out io.Writer) error {
	f := newTaskFlags("tasks create")
	f.fs.Usage = func() {
		fmt.Fprintln(f.fs.Output(), "usage: ada tasks create [flags] <workflow> <frequency>")
		f.fs.PrintDefaults()
	}
	if err := f.fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if f.fs.NArg() != 2 {
		return usagef("usage: ada tasks create [flags] <workflow> <frequency>")
	}
	attrs, err := f.attrs(f.fs.Arg(0), f.fs.Arg(1))
	if err != nil {
		return err
	}
	task, warnings, err := domain.ValidateTask(domain.ScheduledTask{}, attrs, a.registry)
	printWarnings(out, warnings)
	if err != nil {
		return err
	}
	created, err := a.repo.CreateScheduledTask(ctx, task)
	if err != nil {
		return err
	}
	return render(out, *f.o, created, taskTable(a, []domain.ScheduledTask{created}))
}

func tasksUpdate(ctx context.Context, a *app, args []string, out io.Writer) error {
	f := newTaskFlags("tasks update")
	workflowName := f.fs.String("workflow", "", "new workflow name")
	freq := f.fs.String("frequency", "", "new frequency, e.g. daily:9:30")
	if err := f.fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if f.fs.NArg() != 1 {
		return usagef("usage: ada tasks update [flags] <id>")
	}
	existing, err := a.repo.GetScheduledTask(ctx, f.fs.Arg(0))
	if err != nil {
		return err
	}
	attrs, err := f.attrs(*workflowName, *freq)
	if err != nil {
		return err
	}
	task, warnings, err := domain.ValidateTask(existing, attrs, a.registry)
	printWarnings(out, warnings)
	if err != nil {
		return err
	}
	updated, err := a.repo.UpdateScheduledTask(ctx, task)
	if err != nil {
		return err
	}
	return render(out, *f.o, updated, taskTable(a, []domain.ScheduledTask{updated}))
}

func tasksDelete(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) != 1 {
		return usagef("usage: ada tasks delete <id>")
	}
	if err := a.repo.DeleteScheduledTask(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %s\n", args[0])
	return nil
}

// tasksExecute previews or runs one task. -raw on preview prints the fetched
// data instead of the formatted payload.
func tasksExecute(ctx context.Context, a *app, mode string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tasks "+mode, flag.ContinueOnError)
	o := outputFlag(fs)
	raw := fs.Bool("raw", false, "print raw fetched data (preview only)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() != 1 {
		return usagef("usage: ada tasks %s [flags] <id>", mode)
	}
	task, err := a.repo.GetScheduledTask(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	// Manual runs record their outcome like scheduled ones.
	events := &notify.Recorder{}
	runner := a.runner(events)

	var result any
	switch {
	case mode == "run":
		result, err = runner.Trigger(ctx, task, notify.TriggerManual, time.Time{})
		for _, e := range events.Events() {
			if _, rerr := a.repo.RecordEvent(ctx, e); rerr != nil {
				a.log.Warn().Err(rerr).Msg("record event")
			}
		}
	case *raw:
		result, err = runner.RawData(ctx, task)
	default:
		result, err = runner.Preview(ctx, task)
	}
	if err != nil {
		var ee *workflow.ExecutionError
		if errors.As(err, &ee) {
			return fmt.Errorf("%s failed at %s: %w", mode, ee.Stage, ee.Err)
		}
		return err
	}

	f := *o
	if f == formatTable {
		f = formatYAML
	}
	return render(out, f, result, nil)
}
