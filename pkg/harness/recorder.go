package harness

import (
	"sort"
	"sync"

	"pubharness/pkg/publisher"
)

// Recorder keeps the payloads notified by every publisher, in arrival order.
type Recorder struct {
	mu        sync.Mutex
	published map[string][]string
}

func NewRecorder() *Recorder {
	return &Recorder{published: map[string][]string{}}
}

// Callback returns the notification callback recording for publisherID.
func (r *Recorder) Callback(publisherID string) publisher.Callback {
	return func(payload string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.published[publisherID] = append(r.published[publisherID], payload)
	}
}

// Snapshot copies the payloads recorded so far.
func (r *Recorder) Snapshot() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]string, len(r.published))
	for id, payloads := range r.published {
		out[id] = append([]string(nil), payloads...)
	}
	return out
}

// Report is the outcome of a supervised run.
type Report struct {
	Published map[string][]string
	Failures  map[string]error
	// Interrupted is set when the run was cancelled before its duration.
	Interrupted bool
}

// Total returns the number of notifications across all publishers.
func (r Report) Total() int {
	n := 0
	for _, payloads := range r.Published {
		n += len(payloads)
	}
	return n
}

// PublisherIDs returns the ids present in the report in sorted order.
func (r Report) PublisherIDs() []string {
	seen := map[string]bool{}
	for id := range r.Published {
		seen[id] = true
	}
	for id := range r.Failures {
		seen[id] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
