package main

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"ada/internal/clock"
	"ada/internal/config"
	"ada/internal/domain"
	"ada/internal/email"
	"ada/internal/httpclient"
	"ada/internal/notify"
	"ada/internal/scheduler"
	"ada/internal/store"
	"ada/internal/transport"
	"ada/internal/workflow"
	"ada/internal/workflows/lastfm"
	"ada/internal/workflows/news"
	"ada/internal/workflows/weather"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg        *config.Config
	cfgPath    string
	overrides  map[string]any
	log        zerolog.Logger
	clock      clock.Clock
	loc        *time.Location
	db         *sql.DB
	repo       store.Repository
	registry   *workflow.Registry
	pipeline   *workflow.Pipeline
	dispatcher *transport.Dispatcher
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.DB.Path, cfg.DB.BusyTimeout)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, clock: clock.Real{}, loc: loc, db: db}
	a.repo = store.NewSQLiteRepo(db, a.clock)

	client := httpclient.New(
		httpclient.WithTimeout(cfg.HTTPClient.Timeout),
		httpclient.WithLogger(log),
	)

	a.registry = workflow.NewRegistry()
	a.registry.MustRegister(
		news.New(news.Config{
			APIKey:  cfg.Sources.Guardian.APIKey,
			BaseURL: cfg.Sources.Guardian.BaseURL,
		}, a.repo, client, a.clock),
		weather.New(weather.Config{BaseURL: cfg.Sources.Weather.BaseURL}, a.repo, client),
		lastfm.New(lastfm.Config{
			APIKey:  cfg.Sources.LastFM.APIKey,
			BaseURL: cfg.Sources.LastFM.BaseURL,
		}, a.repo, client, a.clock),
	)
	a.pipeline = workflow.NewPipeline(a.registry, cfg.Scheduler.FetchTimeout)
	a.dispatcher = transport.NewDispatcher().
		Handle(domain.TransportEmail, email.NewDeliverer(emailAdapter(cfg.Email, client, log)))
	return a, nil
}

func emailAdapter(cfg config.Email, client *httpclient.Client, log zerolog.Logger) email.Adapter {
	if cfg.Adapter == "sendgrid" {
		return email.NewSendgridAdapter(email.SendgridConfig{
			APIKey:     cfg.Sendgrid.APIKey,
			BaseURL:    cfg.Sendgrid.BaseURL,
			From:       email.Sender{Email: cfg.From, Name: cfg.FromName},
			RatePerSec: cfg.RatePerSec,
		}, client)
	}
	return email.NewLogAdapter(log)
}

func (a *app) runner(sink notify.Sink) *scheduler.Runner {
	return scheduler.NewRunner(a.pipeline, a.dispatcher, sink, a.clock)
}

func (a *app) Close() error { return a.db.Close() }
