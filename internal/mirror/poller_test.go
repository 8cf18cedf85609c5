package mirror

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"pressline.sync/internal/core/domain"
)

type mockSnapshotter struct {
	statsFunc func(ctx context.Context) (*domain.QueueStats, error)
	jobsFunc  func(ctx context.Context, page, pageSize int) (*domain.JobPage, error)
}

func (m *mockSnapshotter) FetchStats(ctx context.Context) (*domain.QueueStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx)
	}
	return &domain.QueueStats{}, nil
}

func (m *mockSnapshotter) FetchRecentJobs(ctx context.Context, page, pageSize int) (*domain.JobPage, error) {
	if m.jobsFunc != nil {
		return m.jobsFunc(ctx, page, pageSize)
	}
	return &domain.JobPage{}, nil
}

func staticHealth(st domain.ConnectionState) func() domain.ConnectionState {
	return func() domain.ConnectionState { return st }
}

func TestPollerIntervalFollowsHealth(t *testing.T) {
	healthy := 30 * time.Second
	degraded := 10 * time.Second

	tests := []struct {
		state domain.ConnectionState
		want  time.Duration
	}{
		{domain.ConnConnected, healthy},
		{domain.ConnDisconnected, degraded},
		{domain.ConnConnecting, degraded},
		{domain.ConnReconnecting, degraded},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			p := NewPoller(&mockSnapshotter{}, NewReconciler(0, 0), staticHealth(tt.state), healthy, degraded, 20)
			if got := p.Interval(); got != tt.want {
				t.Errorf("Interval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPollerAppliesSnapshot(t *testing.T) {
	rec := NewReconciler(0, 0)
	snap := &mockSnapshotter{
		statsFunc: func(ctx context.Context) (*domain.QueueStats, error) {
			return &domain.QueueStats{Pending: 4}, nil
		},
		jobsFunc: func(ctx context.Context, page, pageSize int) (*domain.JobPage, error) {
			if page != 1 {
				t.Errorf("page = %d, want 1", page)
			}
			return &domain.JobPage{Jobs: []*domain.Job{
				{ID: 2, Status: domain.JobStatusInProgress},
				{ID: 1, Status: domain.JobStatusPending},
			}}, nil
		},
	}
	p := NewPoller(snap, rec, staticHealth(domain.ConnConnected), 0, 0, 20)

	p.poll(context.Background())

	if got := rec.Stats(); got == nil || got.Pending != 4 {
		t.Errorf("stats = %+v, want pending 4", got)
	}
	jobs := rec.Jobs()
	if len(jobs) != 2 || jobs[0].ID != 2 || jobs[1].ID != 1 {
		t.Errorf("jobs = %+v, want ids 2,1", jobs)
	}
}

func TestPollerToleratesFetchFailures(t *testing.T) {
	rec := NewReconciler(0, 0)
	snap := &mockSnapshotter{
		statsFunc: func(ctx context.Context) (*domain.QueueStats, error) {
			return nil, errors.New("boom")
		},
		jobsFunc: func(ctx context.Context, page, pageSize int) (*domain.JobPage, error) {
			return &domain.JobPage{Jobs: []*domain.Job{{ID: 1}}}, nil
		},
	}
	p := NewPoller(snap, rec, staticHealth(domain.ConnDisconnected), 0, 0, 20)

	p.poll(context.Background())

	if rec.Stats() != nil {
		t.Errorf("failed stats fetch still applied: %+v", rec.Stats())
	}
	if len(rec.Jobs()) != 1 {
		t.Errorf("surviving job fetch not applied: %v", rec.Jobs())
	}

	// Both paths failing leaves the state untouched.
	snap.jobsFunc = func(ctx context.Context, page, pageSize int) (*domain.JobPage, error) {
		return nil, errors.New("boom")
	}
	p.poll(context.Background())
	if len(rec.Jobs()) != 1 {
		t.Errorf("state changed on a fully failed poll: %v", rec.Jobs())
	}
}

func TestPollerRunPollsOnTimer(t *testing.T) {
	var polls atomic.Int64
	snap := &mockSnapshotter{
		statsFunc: func(ctx context.Context) (*domain.QueueStats, error) {
			polls.Add(1)
			return &domain.QueueStats{}, nil
		},
	}
	p := NewPoller(snap, NewReconciler(0, 0), staticHealth(domain.ConnDisconnected), time.Hour, 20*time.Millisecond, 20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	waitFor(t, 2*time.Second, "repeated polls", func() bool {
		return polls.Load() >= 3
	})
}

func TestPollerKickReArmsForNewHealth(t *testing.T) {
	var polls atomic.Int64
	snap := &mockSnapshotter{
		statsFunc: func(ctx context.Context) (*domain.QueueStats, error) {
			polls.Add(1)
			return &domain.QueueStats{}, nil
		},
	}

	var state atomic.Value
	state.Store(domain.ConnConnected)
	health := func() domain.ConnectionState { return state.Load().(domain.ConnectionState) }

	// Healthy cadence is far too long to fire inside the test window; the
	// kick must swap in the degraded cadence immediately.
	p := NewPoller(snap, NewReconciler(0, 0), health, time.Hour, 20*time.Millisecond, 20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	waitFor(t, 2*time.Second, "initial poll", func() bool {
		return polls.Load() >= 1
	})

	state.Store(domain.ConnDisconnected)
	p.Kick()

	waitFor(t, 2*time.Second, "poll on degraded cadence", func() bool {
		return polls.Load() >= 2
	})
}
