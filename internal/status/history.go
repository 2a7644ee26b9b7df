package status

import (
	"time"

	"eduadmin-sync/internal/domain"
)

// DefaultHistorySize is the number of run entries kept when no size is configured.
const DefaultHistorySize = 50

// Entry is one line of the run history.
type Entry struct {
	ID      string          `json:"id"`
	Time    time.Time       `json:"time"`
	Message string          `json:"msg"`
	Stats   domain.RunStats `json:"stats"`
}

// History is a newest-first list capped at a fixed size.
type History []Entry

// Push prepends e and evicts the oldest entries beyond max.
func (h History) Push(e Entry, max int) History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	out := make(History, 0, min(len(h)+1, max))
	out = append(out, e)
	for _, old := range h {
		if len(out) == max {
			break
		}
		out = append(out, old)
	}
	return out
}

// Latest returns the newest entry.
func (h History) Latest() (Entry, bool) {
	if len(h) == 0 {
		return Entry{}, false
	}
	return h[0], true
}
