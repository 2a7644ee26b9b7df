package sync

import (
	"maps"
	"reflect"

	"eduadmin-sync/internal/domain"
)

// MergeResult is the outcome of merging fetched events into a stored collection.
type MergeResult struct {
	Events  []domain.EventEntry
	Added   int
	Updated int
	Changed bool
}

// MergeEvents folds fetched events into the stored collection keyed by event
// id. Each entry is a shallow union where fetched values win, so attributes
// absent from the fetch survive. Stored entries without an id are dropped and
// fetched events without an id are ignored. Updated counts only entries whose
// merged value differs from the stored one.
func MergeEvents(stored []domain.EventEntry, fetched []domain.RemoteEvent) MergeResult {
	var res MergeResult
	index := make(map[string]int, len(stored))
	for _, e := range stored {
		id := e.ID()
		if id == "" {
			continue
		}
		if i, ok := index[id]; ok {
			res.Events[i] = e
			continue
		}
		index[id] = len(res.Events)
		res.Events = append(res.Events, e)
	}

	for _, ev := range fetched {
		if ev.EventID == "" {
			continue
		}
		i, ok := index[ev.EventID]
		if !ok {
			index[ev.EventID] = len(res.Events)
			res.Events = append(res.Events, ev.Entry())
			res.Added++
			continue
		}

		prior := res.Events[i]
		merged := maps.Clone(prior)
		if merged == nil {
			merged = domain.EventEntry{}
		}
		maps.Copy(merged, ev.Attrs)
		if !reflect.DeepEqual(prior, merged) {
			res.Updated++
		}
		res.Events[i] = merged
	}

	res.Changed = !eventsEqual(stored, res.Events)
	if res.Events == nil {
		res.Events = []domain.EventEntry{}
	}
	return res
}

func eventsEqual(a, b []domain.EventEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
