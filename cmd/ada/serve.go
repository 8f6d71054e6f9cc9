package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"ada/internal/api"
	"ada/internal/config"
	"ada/internal/logging"
	"ada/internal/notify"
	"ada/internal/scheduler"
)

// systemdStatus reports the number of running executions through sd_notify,
// which `systemctl status` shows. Outside systemd it only logs.
type systemdStatus struct{ log zerolog.Logger }

func (s systemdStatus) TasksRunning(n int) {
	s.log.Debug().Int("running", n).Msg("tasks running")
	status := "idle"
	if n > 0 {
		status = fmt.Sprintf("%d task(s) running", n)
	}
	_, _ = daemon.SdNotify(false, "STATUS="+status)
}

func runServe(ctx context.Context, a *app, args []string, _ io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	cfg := a.cfg

	hub := notify.NewHub(cfg.Notify.QueueSize).WithLogger(a.log)
	hub.Subscribe(notify.LogSubscriber{Logger: a.log.With().Str("component", "events").Logger()})
	hub.Subscribe(notify.StoreSubscriber{Store: a.repo})
	if cfg.Notify.AMQP.URL != "" {
		pub := notify.NewAMQPPublisher(cfg.Notify.AMQP.URL, cfg.Notify.AMQP.Exchange)
		defer pub.Close()
		hub.Subscribe(pub)
	}
	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go hub.Run(hubCtx)

	runner := a.runner(hub)
	svc := scheduler.NewService(scheduler.Config{
		Interval:    cfg.Scheduler.Interval,
		Location:    a.loc,
		TaskTimeout: cfg.Scheduler.TaskTimeout,
		MaxCatchUp:  cfg.Scheduler.MaxCatchUp,
		Concurrency: cfg.Scheduler.Concurrency,
	}, a.repo, runner, a.clock, systemdStatus{log: a.log}).WithLogger(a.log)
	go svc.Start(ctx)

	pruner, err := startPruner(a)
	if err != nil {
		return err
	}

	if a.cfgPath != "" {
		go func() {
			err := config.Watch(ctx, a.cfgPath, a.overrides, a.log, func(c *config.Config) {
				if err := logging.SetLevel(c.Log.Level); err != nil {
					a.log.Warn().Err(err).Msg("log level not applied")
				}
			})
			if err != nil {
				a.log.Warn().Err(err).Msg("config watch stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewServer(api.Deps{
			Repo: a.repo, Registry: a.registry, Runner: runner,
			Clock: a.clock, Location: a.loc, Logger: a.log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", cfg.HTTP.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-srvErr:
		a.log.Error().Err(runErr).Msg("http server")
	}

	a.log.Info().Msg("shutting down")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	<-pruner.Stop().Done()
	if err := svc.Stop(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("executions still running at shutdown")
	}
	if err := hub.Close(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("status events not fully delivered")
	}
	if n := hub.Dropped(); n > 0 {
		a.log.Warn().Uint64("dropped", n).Msg("status events dropped")
	}
	return runErr
}

// startPruner schedules deletion of events older than the retention window.
// A zero retention or an empty schedule keeps history forever.
func startPruner(a *app) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(a.loc))
	ev := a.cfg.Events
	if ev.Retention > 0 && ev.PruneSchedule != "" {
		_, err := c.AddFunc(ev.PruneSchedule, func() {
			n, err := a.repo.PruneEvents(context.Background(), a.clock.Now().Add(-ev.Retention))
			if err != nil {
				a.log.Error().Err(err).Msg("prune events")
				return
			}
			a.log.Info().Int64("deleted", n).Msg("pruned events")
		})
		if err != nil {
			return nil, fmt.Errorf("events.prune_schedule: %w", err)
		}
	}
	c.Start()
	return c, nil
}
