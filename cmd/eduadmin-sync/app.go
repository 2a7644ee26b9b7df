package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"

	"eduadmin-sync/internal/config"
	"eduadmin-sync/internal/content"
	"eduadmin-sync/internal/eduadmin"
	"eduadmin-sync/internal/httpapi"
	"eduadmin-sync/internal/logging"
	"eduadmin-sync/internal/media"
	"eduadmin-sync/internal/scheduler"
	"eduadmin-sync/internal/state"
	"eduadmin-sync/internal/status"
	"eduadmin-sync/internal/sync"
)

type app struct {
	cfg      config.Config
	state    state.Store
	content  content.Store
	engine   *sync.Engine
	reporter *status.Reporter
}

func newApp(cfg config.Config) (*app, error) {
	if !cfg.HasCredentials() {
		return nil, errors.New("missing EDUADMIN_USERNAME / EDUADMIN_PASSWORD")
	}
	loc, err := time.LoadLocation(cfg.EduAdmin.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}

	st, err := state.Open(cfg.State.DSN)
	if err != nil {
		return nil, err
	}
	cs, err := content.Open(cfg.Content.DSN)
	if err != nil {
		st.Close()
		return nil, err
	}

	tokens := eduadmin.NewTokenCache(cfg.EduAdmin.TokenURL, cfg.EduAdmin.Username, cfg.EduAdmin.Password, st, cfg.EduAdmin.TokenTimeout)
	client := eduadmin.New(cfg.EduAdmin.BaseURL, tokens, loc, cfg.EduAdmin.RequestTimeout, cfg.EduAdmin.MaxAttempts)
	images := media.NewImporter(cfg.Import.MediaDir, cs)
	reporter := status.NewReporter(st, cs, cfg.Import.HistorySize, loc)

	engine := sync.NewEngine(client, cs, images, reporter, sync.Options{
		Location:        loc,
		PastMonths:      cfg.EduAdmin.PastMonths,
		RetentionMonths: cfg.Import.RetentionMonths,
		ThrottleEvery:   cfg.Import.ThrottleEvery,
		ThrottlePause:   cfg.Import.ThrottlePause,
		DurationFieldID: cfg.Import.DurationFieldID,
		LanguageFieldID: cfg.Import.LanguageFieldID,
	})

	return &app{cfg: cfg, state: st, content: cs, engine: engine, reporter: reporter}, nil
}

func (a *app) Close() {
	if err := a.content.Close(); err != nil {
		logging.Warn().Err(err).Msg("closing content store")
	}
	if err := a.state.Close(); err != nil {
		logging.Warn().Err(err).Msg("closing state store")
	}
}

// supervisor builds the service tree: the import scheduler and the HTTP API.
func (a *app) supervisor() *suture.Supervisor {
	sched := scheduler.New(a.cfg.Import.Interval, func(ctx context.Context) error {
		_, err := a.engine.Run(ctx)
		return err
	})
	a.reporter.SetNextRun(sched.NextRun)

	api := httpapi.New(httpapi.Config{
		JWTSecret:     a.cfg.HTTP.JWTSecret,
		RequiredScope: a.cfg.HTTP.RequiredScope,
		TriggerRate:   a.cfg.HTTP.TriggerRate,
	}, a.engine, a.reporter)
	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sup := suture.New("eduadmin-sync", suture.Spec{
		EventHook:        supervisorHook,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	sup.Add(sched)
	sup.Add(httpapi.NewService(server, 10*time.Second))
	return sup
}

func supervisorHook(e suture.Event) {
	ev := logging.Warn()
	if e.Type() == suture.EventTypeServicePanic {
		ev = logging.Error()
	}
	ev.Fields(e.Map()).Msg(e.String())
}
