// Package status keeps the bounded run history and renders the status
// fragment shown after a manual import and on the status endpoint.
package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"eduadmin-sync/internal/content"
	"eduadmin-sync/internal/domain"
	"eduadmin-sync/internal/state"
)

// NextRunFunc reports when the scheduler fires next. A zero time means unknown.
type NextRunFunc func() time.Time

type Reporter struct {
	state    state.Store
	content  content.Store
	size     int
	location *time.Location
	now      func() time.Time

	mu      sync.Mutex
	nextRun NextRunFunc
}

func NewReporter(st state.Store, cs content.Store, size int, loc *time.Location) *Reporter {
	if size <= 0 {
		size = DefaultHistorySize
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Reporter{
		state:    st,
		content:  cs,
		size:     size,
		location: loc,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (r *Reporter) SetClock(now func() time.Time) {
	r.now = now
}

// SetNextRun wires the scheduler's next fire time into snapshots.
func (r *Reporter) SetNextRun(f NextRunFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRun = f
}

// Record prepends a timestamped entry to the persisted history.
func (r *Reporter) Record(ctx context.Context, message string, stats domain.RunStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.history(ctx)
	if err != nil {
		return err
	}
	h = h.Push(Entry{
		ID:      uuid.NewString(),
		Time:    r.now().UTC(),
		Message: message,
		Stats:   stats,
	}, r.size)
	if err := r.state.Set(ctx, state.KeyHistory, h); err != nil {
		return fmt.Errorf("status: save history: %w", err)
	}
	return nil
}

// History returns the persisted entries, newest first.
func (r *Reporter) History(ctx context.Context) (History, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history(ctx)
}

func (r *Reporter) history(ctx context.Context) (History, error) {
	var h History
	err := r.state.Get(ctx, state.KeyHistory, &h)
	if errors.Is(err, state.ErrNotFound) {
		return History{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("status: load history: %w", err)
	}
	return h, nil
}

// MarkManual stores the time of the last manual import.
func (r *Reporter) MarkManual(ctx context.Context) error {
	if err := r.state.Set(ctx, state.KeyLastManual, r.now().UTC()); err != nil {
		return fmt.Errorf("status: save last manual import: %w", err)
	}
	return nil
}

// LastManual returns the zero time when no manual import was recorded.
func (r *Reporter) LastManual(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := r.state.Get(ctx, state.KeyLastManual, &t)
	if errors.Is(err, state.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("status: load last manual import: %w", err)
	}
	return t, nil
}

type NextEvent struct {
	Course string    `json:"course"`
	Start  time.Time `json:"start"`
}

type Snapshot struct {
	Courses       int        `json:"courses"`
	Events        int        `json:"events"`
	NextEvent     *NextEvent `json:"next_event,omitempty"`
	LastRun       *Entry     `json:"last_run,omitempty"`
	LastManual    time.Time  `json:"last_manual"`
	NextScheduled time.Time  `json:"next_scheduled"`
}

// Snapshot aggregates published courses, their events and the run history.
func (r *Reporter) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	courses, err := r.content.ListCourses(ctx)
	if err != nil {
		return snap, fmt.Errorf("status: list courses: %w", err)
	}
	now := r.now().In(r.location)
	for _, c := range courses {
		if c.Status != domain.StatusPublish {
			continue
		}
		snap.Courses++
		snap.Events += len(c.Events)
		for _, ev := range c.Events {
			start, ok := ev.Start(r.location)
			if !ok || !start.After(now) {
				continue
			}
			if snap.NextEvent == nil || start.Before(snap.NextEvent.Start) {
				snap.NextEvent = &NextEvent{Course: c.Title, Start: start}
			}
		}
	}

	h, err := r.History(ctx)
	if err != nil {
		return snap, err
	}
	if e, ok := h.Latest(); ok {
		snap.LastRun = &e
	}

	if snap.LastManual, err = r.LastManual(ctx); err != nil {
		return snap, err
	}

	r.mu.Lock()
	next := r.nextRun
	r.mu.Unlock()
	if next != nil {
		snap.NextScheduled = next()
	}
	return snap, nil
}
