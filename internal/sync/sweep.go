package sync

import (
	"context"
	"fmt"
	"time"

	"eduadmin-sync/internal/domain"
	"eduadmin-sync/internal/logging"
)

// Sweep drops events that ended before now minus months from every course.
// An event ending exactly at the cutoff is kept; a missing or malformed end
// date counts as the Unix epoch. It returns the number of removed events.
func (e *Engine) Sweep(ctx context.Context, months int) (int, error) {
	now := e.now().In(e.opts.Location)
	cutoff := now.AddDate(0, -months, 0)

	ids, err := e.store.ListCourseIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep: list courses: %w", err)
	}

	removed := 0
	for _, id := range ids {
		events, err := e.store.GetEvents(ctx, id)
		if err != nil {
			logging.Warn().Err(err).Int64("course_id", id).Msg("sweep: skipping course")
			continue
		}
		if len(events) == 0 {
			continue
		}

		kept := RetainEvents(events, cutoff, e.opts.Location)
		if len(kept) == len(events) {
			continue
		}
		if err := e.store.SetEvents(ctx, id, kept); err != nil {
			logging.Warn().Err(err).Int64("course_id", id).Msg("sweep: failed to write events")
			continue
		}
		removed += len(events) - len(kept)
	}
	return removed, nil
}

// RetainEvents returns the events whose end is not before cutoff.
func RetainEvents(events []domain.EventEntry, cutoff time.Time, loc *time.Location) []domain.EventEntry {
	kept := make([]domain.EventEntry, 0, len(events))
	for _, ev := range events {
		end, ok := ev.End(loc)
		if !ok {
			end = time.Unix(0, 0)
		}
		// An end equal to the cutoff is kept.
		if !end.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	return kept
}
