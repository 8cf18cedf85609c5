package ports

import (
	"context"

	"pressline.sync/internal/core/domain"
)

// Snapshotter is the poll path: a full-state read of the backend's stats
// and a bounded page of its most recent jobs.
type Snapshotter interface {
	FetchStats(ctx context.Context) (*domain.QueueStats, error)
	FetchRecentJobs(ctx context.Context, page, pageSize int) (*domain.JobPage, error)
}

// JobArchive persists observed jobs for history queries. Implementations
// are consumers of the reconciled state, never a second writer into it.
type JobArchive interface {
	Upsert(ctx context.Context, job *domain.Job) error
	ListJobs(ctx context.Context, offset, limit int) ([]*domain.Job, error)
	CountJobs(ctx context.Context) (int64, error)
}

// UpdatePublisher fans reconciled updates out to an external channel
// (Redis pub/sub, MQTT topics).
type UpdatePublisher interface {
	PublishJob(ctx context.Context, event domain.EventType, job *domain.Job) error
	PublishStats(ctx context.Context, stats *domain.QueueStats) error
}
