package mirror

import (
	"fmt"
	"testing"

	"pressline.sync/internal/core/domain"
)

func jobEvent(et domain.EventType, id int64, status domain.JobStatus) *domain.Event {
	return &domain.Event{
		Type: et,
		Job:  &domain.Job{ID: id, Project: fmt.Sprintf("proj-%d", id), Status: status},
	}
}

func TestReconcilerLastWriteWins(t *testing.T) {
	r := NewReconciler(50, 5)

	r.ApplyEvent(jobEvent(domain.EventJobCreated, 1, domain.JobStatusPending))
	r.ApplyEvent(jobEvent(domain.EventJobCreated, 2, domain.JobStatusPending))
	r.ApplyEvent(jobEvent(domain.EventJobUpdated, 1, domain.JobStatusInProgress))
	r.ApplyEvent(jobEvent(domain.EventJobUpdated, 2, domain.JobStatusFailed))
	last := &domain.Event{
		Type: domain.EventJobUpdated,
		Job:  &domain.Job{ID: 1, Project: "renamed", Status: domain.JobStatusCompleted, Priority: 9},
	}
	r.ApplyEvent(last)

	var got *domain.Job
	for _, j := range r.Jobs() {
		if j.ID == 1 {
			got = j
		}
	}
	if got == nil {
		t.Fatal("job 1 missing from window")
	}
	if got.Status != domain.JobStatusCompleted || got.Project != "renamed" || got.Priority != 9 {
		t.Errorf("job 1 = %+v, want last event's payload", got)
	}
}

func TestReconcilerStatsReplacedWholesale(t *testing.T) {
	r := NewReconciler(50, 5)

	r.ApplyEvent(&domain.Event{
		Type:  domain.EventStatsUpdated,
		Stats: &domain.QueueStats{Pending: 5, Cancelled: 3, Total: 20},
	})
	r.ApplyEvent(&domain.Event{
		Type:  domain.EventStatsUpdated,
		Stats: &domain.QueueStats{Pending: 6},
	})

	stats := r.Stats()
	if stats == nil {
		t.Fatal("stats missing")
	}
	if stats.Pending != 6 {
		t.Errorf("Pending = %d, want 6", stats.Pending)
	}
	if stats.Cancelled != 0 || stats.Total != 0 {
		t.Errorf("stale fields carried over: %+v", stats)
	}
}

func TestReconcilerCreateThenStart(t *testing.T) {
	r := NewReconciler(50, 5)

	r.ApplyEvent(jobEvent(domain.EventJobCreated, 42, domain.JobStatusPending))
	r.ApplyEvent(jobEvent(domain.EventJobStarted, 42, domain.JobStatusInProgress))

	recent := r.Recent()
	if len(recent) != 1 {
		t.Fatalf("recent has %d entries, want 1", len(recent))
	}
	if recent[0].ID != 42 || recent[0].Status != domain.JobStatusInProgress {
		t.Errorf("recent[0] = %+v, want id 42 in_progress", recent[0])
	}
}

func TestReconcilerRecentCapEvictsOldest(t *testing.T) {
	r := NewReconciler(50, 5)

	for id := int64(1); id <= 6; id++ {
		r.ApplyEvent(jobEvent(domain.EventJobCreated, id, domain.JobStatusPending))
	}

	recent := r.Recent()
	want := []int64{6, 5, 4, 3, 2}
	if len(recent) != len(want) {
		t.Fatalf("recent has %d entries, want %d", len(recent), len(want))
	}
	for i, id := range want {
		if recent[i].ID != id {
			t.Errorf("recent[%d].ID = %d, want %d", i, recent[i].ID, id)
		}
	}
	// Evicted from the projection only, not from the window.
	if len(r.Jobs()) != 6 {
		t.Errorf("window has %d entries, want 6", len(r.Jobs()))
	}
}

func TestReconcilerWindowCap(t *testing.T) {
	r := NewReconciler(3, 2)

	for id := int64(1); id <= 5; id++ {
		r.ApplyEvent(jobEvent(domain.EventJobCreated, id, domain.JobStatusPending))
	}

	jobs := r.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("window has %d entries, want 3", len(jobs))
	}
	if jobs[0].ID != 5 || jobs[2].ID != 3 {
		t.Errorf("window = %v, want ids 5,4,3", jobs)
	}
}

func TestReconcilerSnapshotOrder(t *testing.T) {
	r := NewReconciler(50, 5)

	// Pages arrive most-recent-first.
	page := []*domain.Job{
		{ID: 3, Status: domain.JobStatusPending},
		{ID: 2, Status: domain.JobStatusInProgress},
		{ID: 1, Status: domain.JobStatusCompleted},
	}
	r.ApplySnapshot(page, &domain.QueueStats{Pending: 1})

	jobs := r.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("window has %d entries, want 3", len(jobs))
	}
	for i, want := range []int64{3, 2, 1} {
		if jobs[i].ID != want {
			t.Errorf("jobs[%d].ID = %d, want %d", i, jobs[i].ID, want)
		}
	}
	if r.Stats() == nil || r.Stats().Pending != 1 {
		t.Errorf("snapshot stats not applied: %+v", r.Stats())
	}
}

func TestReconcilerSnapshotKeepsPositions(t *testing.T) {
	r := NewReconciler(50, 5)

	r.ApplyEvent(jobEvent(domain.EventJobCreated, 1, domain.JobStatusPending))
	r.ApplyEvent(jobEvent(domain.EventJobCreated, 2, domain.JobStatusPending))

	r.ApplySnapshot([]*domain.Job{
		{ID: 3, Status: domain.JobStatusPending},
		{ID: 2, Status: domain.JobStatusInProgress},
	}, nil)

	jobs := r.Jobs()
	for i, want := range []int64{3, 2, 1} {
		if jobs[i].ID != want {
			t.Fatalf("jobs = %v, want ids 3,2,1", jobs)
		}
	}
	if jobs[1].Status != domain.JobStatusInProgress {
		t.Errorf("job 2 not replaced in place: %+v", jobs[1])
	}
}

func TestReconcilerStaleSnapshotStillWins(t *testing.T) {
	r := NewReconciler(50, 5)

	// A poll started before a push event may resolve after it; the last
	// applied write wins regardless of source.
	r.ApplyEvent(jobEvent(domain.EventJobCompleted, 9, domain.JobStatusCompleted))
	r.ApplySnapshot([]*domain.Job{{ID: 9, Status: domain.JobStatusInProgress}}, nil)

	jobs := r.Jobs()
	if len(jobs) != 1 || jobs[0].Status != domain.JobStatusInProgress {
		t.Errorf("jobs = %+v, want the snapshot's (stale) record", jobs)
	}
}

func TestReconcilerSnapshotPublishesJobUpdates(t *testing.T) {
	r := NewReconciler(50, 5)
	updates := r.Subscribe()

	// With the push channel down, polling is the only source; subscribers
	// must still see the job changes a snapshot brings in.
	r.ApplySnapshot([]*domain.Job{{ID: 1, Status: domain.JobStatusCompleted}}, &domain.QueueStats{Completed: 1})

	var gotJob, gotStats bool
	for len(updates) > 0 {
		u := <-updates
		switch {
		case u.Type == domain.EventJobUpdated && u.Job != nil && u.Job.ID == 1:
			if u.Job.Status != domain.JobStatusCompleted {
				t.Errorf("published job = %+v, want completed", u.Job)
			}
			gotJob = true
		case u.Type == domain.EventStatsUpdated && u.Stats != nil:
			gotStats = true
		}
	}
	if !gotJob {
		t.Error("snapshot applied a job update but none was published")
	}
	if !gotStats {
		t.Error("snapshot stats update not published")
	}

	// Re-observing identical records is not a change; downstream consumers
	// (the archive in particular) must not be rewritten every poll tick.
	r.ApplySnapshot([]*domain.Job{{ID: 1, Status: domain.JobStatusCompleted}}, nil)
	for len(updates) > 0 {
		if u := <-updates; u.Job != nil {
			t.Errorf("unchanged snapshot record re-published: %+v", u)
		}
	}
}

func TestReconcilerSubscribe(t *testing.T) {
	r := NewReconciler(50, 5)
	updates := r.Subscribe()

	r.ApplyEvent(jobEvent(domain.EventJobCreated, 1, domain.JobStatusPending))

	select {
	case u := <-updates:
		if u.Type != domain.EventJobCreated || u.Job == nil || u.Job.ID != 1 {
			t.Errorf("update = %+v, want job_created for id 1", u)
		}
	default:
		t.Fatal("no update published")
	}
}
