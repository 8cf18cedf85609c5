// Package pg persists every job the mirror observes, giving the dashboard a
// history that outlives the client's bounded in-memory window. It is a
// consumer of reconciled updates, never a source.
package pg

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pressline.sync/internal/core/circuitbreaker"
	"pressline.sync/internal/core/domain"
	"pressline.sync/internal/core/logger"
	"pressline.sync/internal/core/ports"
	"pressline.sync/internal/mirror"
)

// jobRecord is the storage shape. Payload carries the full wire job,
// unmodeled attributes included, so nothing observed is lost.
type jobRecord struct {
	ID           int64            `gorm:"primaryKey"`
	Project      string           `gorm:"index"`
	SourceFile   string
	Status       domain.JobStatus `gorm:"index"`
	Priority     int
	CurrentPhase string
	CreatedAt    time.Time
	ObservedAt   time.Time
	Payload      string
}

func (jobRecord) TableName() string {
	return "observed_jobs"
}

type Archive struct {
	db *gorm.DB
	cb *circuitbreaker.CircuitBreaker
}

var _ ports.JobArchive = (*Archive)(nil)

func NewArchive(dsn string) (*Archive, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&jobRecord{}); err != nil {
		return nil, err
	}
	return &Archive{
		db: db,
		cb: circuitbreaker.New("job-archive"),
	}, nil
}

func (a *Archive) Upsert(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	rec := jobRecord{
		ID:           job.ID,
		Project:      job.Project,
		SourceFile:   job.SourceFile,
		Status:       job.Status,
		Priority:     job.Priority,
		CurrentPhase: job.CurrentPhase,
		CreatedAt:    job.CreatedAt,
		ObservedAt:   time.Now(),
		Payload:      string(payload),
	}
	return a.cb.Execute(func() error {
		return a.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&rec).Error
	})
}

func (a *Archive) ListJobs(ctx context.Context, offset, limit int) ([]*domain.Job, error) {
	var recs []jobRecord
	err := a.db.WithContext(ctx).Order("created_at desc").Offset(offset).Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, err
	}
	jobs := make([]*domain.Job, 0, len(recs))
	for _, rec := range recs {
		var job domain.Job
		if err := json.Unmarshal([]byte(rec.Payload), &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (a *Archive) CountJobs(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&jobRecord{}).Count(&count).Error
	return count, err
}

// DB exposes the underlying handle for health checks.
func (a *Archive) DB() *gorm.DB {
	return a.db
}

// Run archives every observed job update until the channel closes or ctx is
// cancelled. Write failures are logged; the circuit breaker keeps a flaky
// database from slowing the consumer down.
func (a *Archive) Run(ctx context.Context, updates <-chan mirror.Update) {
	log := logger.With("component", "archive")
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Job == nil {
				continue
			}
			if err := a.Upsert(ctx, u.Job); err != nil {
				log.Warn("archive write failed", "job_id", u.Job.ID, "error", err)
			}
		}
	}
}
