package mirror

import (
	"reflect"
	"sync"

	"pressline.sync/internal/core/domain"
)

const (
	defaultWindowSize = 50
	defaultRecentSize = 5
)

// Update is one reconciled change, published to subscribers (the relay hub,
// fanout publishers, the archive).
type Update struct {
	Type  domain.EventType   `json:"type"`
	Job   *domain.Job        `json:"job,omitempty"`
	Stats *domain.QueueStats `json:"stats,omitempty"`
}

// Reconciler merges push events and poll snapshots into one ordered,
// deduplicated job window plus a stats projection. It is the single writer
// over both; every mutation is a full-record replacement keyed by job ID,
// so the last applied write wins regardless of which path delivered it.
// A stale poll snapshot landing after a fresher push event may momentarily
// rewind a job's displayed status; the next update corrects it.
type Reconciler struct {
	mu         sync.RWMutex
	jobs       []*domain.Job // most-recent-first, capped at windowSize
	stats      *domain.QueueStats
	windowSize int
	recentSize int
	subs       []chan Update
}

func NewReconciler(windowSize, recentSize int) *Reconciler {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	if recentSize <= 0 {
		recentSize = defaultRecentSize
	}
	if recentSize > windowSize {
		recentSize = windowSize
	}
	return &Reconciler{
		windowSize: windowSize,
		recentSize: recentSize,
	}
}

// ApplyEvent applies one decoded push event.
func (r *Reconciler) ApplyEvent(ev *domain.Event) {
	if ev == nil {
		return
	}
	r.mu.Lock()
	switch {
	case ev.Type == domain.EventStatsUpdated && ev.Stats != nil:
		s := *ev.Stats
		r.stats = &s
	case ev.Job != nil:
		r.upsertLocked(ev.Job)
	}
	r.mu.Unlock()

	r.publish(Update{Type: ev.Type, Job: ev.Job, Stats: ev.Stats})
}

// ApplySnapshot applies a polled full-state read. Stats are replaced
// wholesale; jobs are upserted through the same keyed-replacement rule as
// push events. Snapshot-sourced changes are published like push events, so
// subscribers keep receiving job updates while the push channel is down.
// Either argument may be nil when its fetch failed.
func (r *Reconciler) ApplySnapshot(jobs []*domain.Job, stats *domain.QueueStats) {
	r.mu.Lock()
	if stats != nil {
		s := *stats
		r.stats = &s
	}
	// Pages arrive most-recent-first; upserting in reverse lands unseen
	// jobs at the front in snapshot order.
	var changed []*domain.Job
	for i := len(jobs) - 1; i >= 0; i-- {
		if jobs[i] != nil && r.upsertLocked(jobs[i]) {
			changed = append(changed, jobs[i])
		}
	}
	r.mu.Unlock()

	for _, job := range changed {
		r.publish(Update{Type: domain.EventJobUpdated, Job: job})
	}
	if stats != nil {
		r.publish(Update{Type: domain.EventStatsUpdated, Stats: stats})
	}
}

// upsertLocked is the merge rule: absent IDs insert at the front of the
// recency order, present IDs are replaced in place keeping their position.
// It reports whether the window changed; an identical record re-observed by
// a poll is not a change and must not be re-published downstream.
func (r *Reconciler) upsertLocked(job *domain.Job) bool {
	for i, j := range r.jobs {
		if j.ID == job.ID {
			if reflect.DeepEqual(j, job) {
				return false
			}
			r.jobs[i] = job
			return true
		}
	}
	r.jobs = append(r.jobs, nil)
	copy(r.jobs[1:], r.jobs)
	r.jobs[0] = job
	if len(r.jobs) > r.windowSize {
		r.jobs = r.jobs[:r.windowSize]
	}
	return true
}

// Jobs returns a copy of the bounded job window, most recent first.
func (r *Reconciler) Jobs() []*domain.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// Recent returns the recent-jobs projection: the front of the window,
// capped at the configured size.
func (r *Reconciler) Recent() []*domain.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := r.recentSize
	if n > len(r.jobs) {
		n = len(r.jobs)
	}
	out := make([]*domain.Job, n)
	copy(out, r.jobs[:n])
	return out
}

// Stats returns a copy of the latest aggregate counts, or nil before the
// first stats observation.
func (r *Reconciler) Stats() *domain.QueueStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stats == nil {
		return nil
	}
	s := *r.stats
	return &s
}

// Subscribe returns a channel receiving every applied update. Slow
// subscribers drop updates rather than back-pressuring the reconciler.
func (r *Reconciler) Subscribe() <-chan Update {
	ch := make(chan Update, 64)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

func (r *Reconciler) publish(u Update) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
