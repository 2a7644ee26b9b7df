// Package sync reconciles EduAdmin course templates and events into the
// local content store.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eduadmin-sync/internal/content"
	"eduadmin-sync/internal/domain"
	"eduadmin-sync/internal/eduadmin"
	"eduadmin-sync/internal/logging"
	"eduadmin-sync/internal/mappers"
	"eduadmin-sync/internal/metrics"
)

var (
	ErrAuth          = errors.New("sync: authentication failed")
	ErrTemplateFetch = errors.New("sync: template fetch failed")
)

// RunMessage is recorded in the status history after a completed run.
const RunMessage = "Course import finished"

type Fetcher interface {
	Authenticate(ctx context.Context) error
	FetchEvents(ctx context.Context, w eduadmin.Window) ([]domain.RemoteEvent, error)
	FetchTemplates(ctx context.Context, ids []string) ([]domain.RemoteTemplate, error)
}

type ImageImporter interface {
	Import(ctx context.Context, imageURL, title string) (int64, error)
}

type Recorder interface {
	Record(ctx context.Context, message string, stats domain.RunStats) error
}

type Options struct {
	Location        *time.Location
	PastMonths      int
	RetentionMonths int
	ThrottleEvery   int
	ThrottlePause   time.Duration
	DurationFieldID int
	LanguageFieldID int
}

// Engine runs one import at a time per call. Concurrent Run calls are not
// serialized.
type Engine struct {
	fetcher  Fetcher
	store    content.Store
	images   ImageImporter
	recorder Recorder
	opts     Options

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewEngine(f Fetcher, store content.Store, images ImageImporter, recorder Recorder, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Engine{
		fetcher:  f,
		store:    store,
		images:   images,
		recorder: recorder,
		opts:     opts,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// SetClock replaces the time source. Used by tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Run performs a full import: fetch both event windows, fetch the templates
// seen in them, reconcile every template, sweep old events and record stats.
func (e *Engine) Run(ctx context.Context) (domain.RunStats, error) {
	started := time.Now()
	stats, outcome, err := e.run(ctx)
	metrics.RecordRun(outcome, stats, time.Since(started))
	return stats, err
}

func (e *Engine) run(ctx context.Context) (domain.RunStats, string, error) {
	var stats domain.RunStats
	log := logging.With().Str("component", "import").Logger()

	if err := e.fetcher.Authenticate(ctx); err != nil {
		log.Error().Err(err).Msg("authentication failed, aborting run")
		return stats, "auth_error", fmt.Errorf("%w: %v", ErrAuth, err)
	}

	now := e.now().In(e.opts.Location)
	windows := []eduadmin.Window{
		eduadmin.FutureWindow(now),
		eduadmin.RecentWindow(now, e.opts.PastMonths),
	}

	byTemplate := map[string][]domain.RemoteEvent{}
	var ids []string
	for _, w := range windows {
		events, err := e.fetcher.FetchEvents(ctx, w)
		if err != nil {
			metrics.FetchErrors.WithLabelValues("events_" + w.Name).Inc()
			log.Warn().Err(err).Str("window", w.Name).Msg("skipping event window")
			continue
		}
		log.Info().Str("window", w.Name).Int("events", len(events)).Msg("events fetched")
		for _, ev := range events {
			if _, seen := byTemplate[ev.TemplateID]; !seen {
				ids = append(ids, ev.TemplateID)
			}
			byTemplate[ev.TemplateID] = append(byTemplate[ev.TemplateID], ev)
		}
	}
	if len(ids) == 0 {
		log.Info().Msg("no events returned, nothing to import")
		return stats, "empty", nil
	}

	templates, err := e.fetcher.FetchTemplates(ctx, ids)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("templates").Inc()
		log.Error().Err(err).Msg("template fetch failed, aborting run")
		return stats, "fetch_error", fmt.Errorf("%w: %v", ErrTemplateFetch, err)
	}
	if len(templates) == 0 {
		log.Info().Int("template_ids", len(ids)).Msg("no templates returned, nothing to import")
		return stats, "empty", nil
	}
	log.Info().Int("templates", len(templates)).Msg("templates fetched")

	for i, tpl := range templates {
		if err := e.reconcile(ctx, tpl, byTemplate[tpl.ID], now, &stats); err != nil {
			metrics.TemplateErrors.Inc()
			log.Warn().Err(err).Str("template_id", tpl.ID).Msg("skipping template")
		}
		if e.opts.ThrottleEvery > 0 && (i+1)%e.opts.ThrottleEvery == 0 {
			e.sleep(ctx, e.opts.ThrottlePause)
		}
	}

	removed, err := e.Sweep(ctx, e.opts.RetentionMonths)
	if err != nil {
		log.Warn().Err(err).Msg("retention sweep failed")
	}
	stats.EventsRemoved = removed

	if e.recorder != nil {
		if err := e.recorder.Record(ctx, RunMessage, stats); err != nil {
			log.Warn().Err(err).Msg("failed to record run status")
		}
	}

	log.Info().
		Int("imported", stats.Imported).
		Int("updated", stats.Updated).
		Int("events_added", stats.EventsAdded).
		Int("events_updated", stats.EventsUpdated).
		Int("events_removed", stats.EventsRemoved).
		Msg(RunMessage)
	return stats, "success", nil
}

// reconcile applies one template and its fetched events to the local record.
func (e *Engine) reconcile(ctx context.Context, tpl domain.RemoteTemplate, events []domain.RemoteEvent, now time.Time, stats *domain.RunStats) error {
	post := mappers.PostFromTemplate(tpl)

	id, isNew, postUpdated, err := e.upsertCourse(ctx, tpl.ID, post)
	if err != nil {
		return err
	}
	switch {
	case isNew:
		stats.Imported++
	case postUpdated:
		stats.Updated++
	}

	changed := false
	for _, f := range mappers.TemplateFields(tpl) {
		c, err := e.setIfChanged(ctx, id, f.Name, f.Value)
		if err != nil {
			return err
		}
		changed = changed || c
	}

	if tpl.ImageURL != "" {
		c, err := e.syncThumbnail(ctx, id, tpl.ImageURL)
		if err != nil {
			logging.Warn().Err(err).Str("template_id", tpl.ID).Msg("image import failed")
		}
		changed = changed || c
	}

	duration, language := mappers.CustomFieldValues(tpl, e.opts.DurationFieldID, e.opts.LanguageFieldID)
	for _, f := range []mappers.Field{{Name: mappers.FieldDuration, Value: duration}, {Name: mappers.FieldLanguage, Value: language}} {
		if f.Value == "" {
			continue
		}
		c, err := e.setIfChanged(ctx, id, f.Name, f.Value)
		if err != nil {
			return err
		}
		changed = changed || c
	}

	stored, err := e.store.GetEvents(ctx, id)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	merged := MergeEvents(stored, events)
	stats.EventsAdded += merged.Added
	stats.EventsUpdated += merged.Updated
	if merged.Changed {
		if err := e.store.SetEvents(ctx, id, merged.Events); err != nil {
			return fmt.Errorf("write events: %w", err)
		}
		changed = true
	}

	if city := SelectLocation(merged.Events, now, e.opts.Location); city != "" {
		c, err := e.setIfChanged(ctx, id, mappers.FieldLocation, city)
		if err != nil {
			return err
		}
		changed = changed || c
	}

	if changed && !isNew && !postUpdated {
		stats.Updated++
	}
	return nil
}

// upsertCourse finds the record for templateID or creates it. An existing
// record is only rewritten when its title, content or excerpt differ.
func (e *Engine) upsertCourse(ctx context.Context, templateID string, post mappers.Post) (id int64, isNew, updated bool, err error) {
	id, err = e.store.FindCourseByTemplateID(ctx, templateID)
	if errors.Is(err, content.ErrNotFound) {
		id, err = e.store.CreateCourse(ctx, domain.CourseRecord{
			Title:   post.Title,
			Content: post.Content,
			Excerpt: post.Excerpt,
			Status:  domain.StatusPublish,
			Fields:  map[string]string{mappers.FieldTemplateID: templateID},
		})
		if err != nil {
			return 0, false, false, fmt.Errorf("create course: %w", err)
		}
		return id, true, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("find course: %w", err)
	}

	current, err := e.store.GetCourse(ctx, id)
	if err != nil {
		return 0, false, false, fmt.Errorf("load course %d: %w", id, err)
	}
	if !post.Differs(current) {
		return id, false, false, nil
	}
	if err := e.store.UpdateCourse(ctx, id, post.Title, post.Content, post.Excerpt); err != nil {
		return 0, false, false, fmt.Errorf("update course %d: %w", id, err)
	}
	return id, false, true, nil
}

// setIfChanged writes a field only when the stored value differs.
func (e *Engine) setIfChanged(ctx context.Context, id int64, name, value string) (bool, error) {
	current, err := e.store.GetField(ctx, id, name)
	if err != nil {
		return false, fmt.Errorf("read field %s: %w", name, err)
	}
	if current == value {
		return false, nil
	}
	if err := e.store.SetField(ctx, id, name, value); err != nil {
		return false, fmt.Errorf("write field %s: %w", name, err)
	}
	return true, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
